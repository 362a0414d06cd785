// Package notif implements the background notification dispatcher: a
// goroutine that repeatedly polls a session for the next notification
// and hands it to a caller-supplied callback, so a subscriber doesn't
// have to call RecvNotif in a loop itself.
package notif

import (
	"sync"
	"time"

	"github.com/netconf-core/netconf/netconf/common"
)

// Source is the subset of *netconf/session.Session a Dispatcher polls.
// Naming it here (rather than importing the session package directly)
// keeps this package usable against any notification source, including
// fakes in tests.
type Source interface {
	RecvNotif(timeoutMS int) (*common.Element, error)
	NotifPollInterval() time.Duration
}

// Hooks mirrors the teacher's ClientTrace notification events.
type Hooks struct {
	Received func(elem *common.Element)
	Dropped  func(elem *common.Element, err error)
}

func (h *Hooks) received(elem *common.Element) {
	if h != nil && h.Received != nil {
		h.Received(elem)
	}
}

func (h *Hooks) dropped(elem *common.Element, err error) {
	if h != nil && h.Dropped != nil {
		h.Dropped(elem, err)
	}
}

// Dispatcher runs one polling goroutine against a Source, delivering
// every notification it receives to a callback until Stop is called or
// a notificationComplete event has been delivered.
type Dispatcher struct {
	src   Source
	hooks *Hooks

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Dispatcher bound to src. hooks may be nil.
func New(src Source, hooks *Hooks) *Dispatcher {
	return &Dispatcher{src: src, hooks: hooks}
}

// Start begins delivering notifications to cb on a background
// goroutine. Only one dispatch loop may run at a time per Dispatcher;
// call Stop before calling Start again.
func (d *Dispatcher) Start(cb func(*common.Element)) {
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		interval := d.src.NotifPollInterval()
		for {
			select {
			case <-d.stop:
				return
			default:
			}
			elem, err := d.src.RecvNotif(0)
			switch {
			case err == nil:
				d.hooks.received(elem)
				cb(elem)
				if elem.IsNotificationComplete() {
					// The second of the dispatcher's only two termination
					// conditions: a replay stream signaling its end, the
					// other being an explicit Stop call.
					return
				}
			default:
				// WouldBlock on an empty queue is the expected steady
				// state; any other error (session torn down) only ends
				// this poll attempt, never the dispatcher itself. Either
				// way the loop sleeps one poll interval before polling
				// again.
				time.Sleep(interval)
			}
		}
	}()
}

// Stop halts the dispatch loop and waits for it to exit.
func (d *Dispatcher) Stop() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	d.wg.Wait()
}

// Package session implements the Message Pump: the per-connection state
// machine that performs the hello handshake, runs the Schema Context
// Loader, frames and demultiplexes rpc/rpc-reply/notification traffic
// over a single transport, and serialises access to it behind one
// bounded lock, matching the teacher's single-goroutine-reader idiom.
package session

import (
	"container/list"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/netconf-core/netconf/netconf/common"
	"github.com/netconf-core/netconf/netconf/errkind"
	"github.com/netconf-core/netconf/netconf/reply"
	"github.com/netconf-core/netconf/netconf/rpc"
	"github.com/netconf-core/netconf/netconf/schema"
	"github.com/netconf-core/netconf/netconf/transport"
	"github.com/netconf-core/netconf/netconf/transport/codec"
	"github.com/netconf-core/netconf/netconf/yangctx"
)

// Status is a Session's lifecycle state (spec §3).
type Status int32

const (
	Starting Status = iota
	Running
	Terminating
	Invalid
)

func (s Status) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Terminating:
		return "Terminating"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// WouldBlock is returned by Recv* calls that timed out without a
// matching message arriving; it classifies as errkind.Transient under
// errors.Is.
var WouldBlock = fmt.Errorf("session: would block: %w", errkind.Transient)

// Handle identifies one outstanding request, returned by SendRPC and
// consumed by RecvReply.
type Handle struct {
	MessageID  uint32
	Descriptor rpc.Descriptor
}

// Session is one NETCONF client session: hello-negotiated, schema-
// bootstrapped, and pumping rpc-reply/notification traffic off a single
// background reader into two mutex-protected FIFOs.
type Session struct {
	id     uint64
	status int32 // atomic Status

	caps    []string
	ctx     yangctx.Context
	ownsCtx bool

	t   transport.Transport
	dec *codec.Decoder
	enc *codec.Encoder

	nextMsgID uint32

	lock     *boundedMutex
	replies  *list.List   // of *common.Element
	notifs   *list.List   // of *common.Element
	pumpErr  atomic.Value // error
	pumpDone chan struct{}

	builder *rpc.Builder
	parser  *reply.Parser

	cfg   *Config
	hooks *Hooks
}

// New performs the hello exchange over t, promotes the session to
// Running once the pump loop is started, and then runs the Schema
// Context Loader. If ctx is nil, a
// GoyangContext rooted at cfg.SchemaSearchPath is constructed and owned
// (closed by Close); otherwise the caller retains ownership.
func New(t transport.Transport, ctx yangctx.Context, cfg *Config, hooks *Hooks) (*Session, error) {
	resolved := Resolve(cfg)

	ownsCtx := false
	if ctx == nil {
		ctx = yangctx.NewGoyangContext(resolved.SchemaSearchPath...)
		ownsCtx = true
	}

	s := &Session{
		ctx:       ctx,
		ownsCtx:   ownsCtx,
		t:         t,
		dec:       codec.NewDecoder(t),
		enc:       codec.NewEncoder(t),
		nextMsgID: 1,
		lock:      newBoundedMutex(),
		replies:   list.New(),
		notifs:    list.New(),
		pumpDone:  make(chan struct{}),
		cfg:       resolved,
		hooks:     hooks,
	}
	s.builder = rpc.NewBuilder(ctx)
	s.parser = reply.NewParser(ctx, s.warnf)

	if err := s.exchangeHello(resolved.SetupTimeout, resolved.DisableChunkedCodec); err != nil {
		return nil, err
	}

	go s.pumpLoop()

	// Running is set as soon as the transport is handed to the pump loop,
	// before schema discovery runs: a caller observing Status() during
	// the Schema Context Loader's get-schema round trips must see the
	// session as running, not still starting up.
	atomic.StoreInt32(&s.status, int32(Running))

	loader := schema.NewLoader(ctx, s, s.warnf)
	loadCtx, cancel := context.WithTimeout(context.Background(), resolved.SetupTimeout)
	st := loader.Load(loadCtx, s.caps)
	cancel()
	if st == schema.Fatal {
		_ = s.Close()
		return nil, fmt.Errorf("session: schema context load failed fatally: %w", errkind.Schema)
	}

	return s, nil
}

func (s *Session) warnf(format string, args ...interface{}) {
	s.hooks.error(fmt.Sprintf(format, args...), nil)
}

// Status returns the session's current lifecycle state.
func (s *Session) Status() Status {
	return Status(atomic.LoadInt32(&s.status))
}

// ID returns the peer-assigned session-id from the hello exchange.
func (s *Session) ID() uint64 {
	return s.id
}

// Capabilities returns the peer's advertised capability list.
func (s *Session) Capabilities() []string {
	return s.caps
}

func (s *Session) exchangeHello(timeout time.Duration, disableChunked bool) error {
	ours := &common.HelloMessage{Capabilities: common.DefaultCapabilities}
	if disableChunked {
		ours.Capabilities = []string{common.CapBase10}
	}
	if err := s.enc.Encode(ours); err != nil {
		return fmt.Errorf("session: writing hello: %w: %w", errkind.Transport, err)
	}

	type result struct {
		msg *common.HelloMessage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var peer common.HelloMessage
		err := s.dec.Decode(&peer)
		ch <- result{&peer, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("session: reading peer hello: %w: %w", errkind.Transport, r.err)
		}
		s.caps = r.msg.Capabilities
		s.id = r.msg.SessionID
		if !disableChunked && common.PeerSupportsChunkedFraming(s.caps) && common.PeerSupportsChunkedFraming(ours.Capabilities) {
			codec.EnableChunkedFraming(s.dec, s.enc)
		}
		s.hooks.helloDone(r.msg)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("session: timed out waiting for peer hello after %s: %w", timeout, errkind.Transient)
	}
}

// SendRPC builds d, assigns it the next strictly-increasing message-id,
// and writes it to the wire. timeoutMS bounds acquiring the write lock
// (0 non-blocking, negative infinite, positive milliseconds).
func (s *Session) SendRPC(d rpc.Descriptor, timeoutMS int) (Handle, error) {
	op, err := s.builder.Build(d)
	if err != nil {
		return Handle{}, err
	}

	if !s.lock.TryLock(timeoutMS) {
		return Handle{}, WouldBlock
	}
	defer s.lock.Unlock()

	msgID := atomic.AddUint32(&s.nextMsgID, 1) - 1
	start := time.Now()

	envelope := struct {
		XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc"`
		MessageID string   `xml:"message-id,attr"`
		Body      struct {
			XMLName xml.Name
			Inner   string `xml:",innerxml"`
		}
	}{MessageID: strconv.FormatUint(uint64(msgID), 10)}
	envelope.Body.XMLName = op.XMLName
	envelope.Body.Inner = op.InnerXML

	if err := s.enc.Encode(&envelope); err != nil {
		s.hooks.rpcError(d.Kind.String(), err)
		return Handle{}, fmt.Errorf("session: writing rpc: %w: %w", errkind.Transport, err)
	}
	s.hooks.rpcSent(msgID, time.Since(start))
	return Handle{MessageID: msgID, Descriptor: d}, nil
}

// RecvReply waits up to timeoutMS milliseconds for the reply matching
// h.MessageID, leaving any non-matching replies parked in the queue
// (park-and-skip) rather than discarding them.
func (s *Session) RecvReply(h Handle, timeoutMS int) (reply.Reply, error) {
	start := time.Now()
	elem, err := s.getMsg(timeoutMS, h.MessageID)
	if err != nil {
		return reply.Reply{}, err
	}
	r, err := s.parser.Parse(h.Descriptor, elem.InnerXML)
	if err != nil {
		return reply.Reply{}, err
	}
	s.hooks.replyReceived(h.MessageID, time.Since(start))
	return r, nil
}

// RecvNotif waits up to timeoutMS milliseconds for the next parked
// notification.
func (s *Session) RecvNotif(timeoutMS int) (*common.Element, error) {
	return s.getNotif(timeoutMS)
}

// NotifPollInterval returns the configured sleep between RecvNotif(0)
// polls, for a netconf/notif.Dispatcher wrapping this session.
func (s *Session) NotifPollInterval() time.Duration {
	return s.cfg.NotifPollInterval
}

// Close terminates the session: it stops the pump loop by closing the
// transport, and releases an owned schema context.
func (s *Session) Close() error {
	atomic.StoreInt32(&s.status, int32(Terminating))
	err := s.t.Close()
	<-s.pumpDone
	if s.ownsCtx {
		if closer, ok := s.ctx.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	atomic.StoreInt32(&s.status, int32(Invalid))
	return err
}

// SendGetSchema implements schema.RPCTransport, letting the Schema
// Context Loader issue a reentrant get-schema RPC through this very
// session while it is still bootstrapping.
func (s *Session) SendGetSchema(ctx context.Context, identifier, version string, budget time.Duration) (string, bool) {
	h, err := s.SendRPC(rpc.Descriptor{Kind: rpc.GetSchema, Identifier: identifier, Version: version, Format: "yin"}, int(budget.Milliseconds()))
	if err != nil {
		return "", false
	}
	r, err := s.RecvReply(h, int(budget.Milliseconds()))
	if err != nil || r.Kind != reply.KindData {
		return "", false
	}
	// Hand back the <data> element with its wrapper; the Loader strips it.
	name := r.Data.XMLName.Local
	return "<" + name + ">" + r.Data.InnerXML + "</" + name + ">", true
}

// getMsg is the demultiplexing poll loop: it repeatedly scans the
// replies FIFO under the session lock for an entry whose message-id
// matches want, removing and returning only that entry; every other
// entry is left in place (park-and-skip). It blocks, sleeping
// cfg.LockPollInterval between scans, until a match appears or the
// timeout budget expires.
func (s *Session) getMsg(timeoutMS int, want uint32) (*common.Element, error) {
	deadline, infinite := s.deadline(timeoutMS)
	wantStr := strconv.FormatUint(uint64(want), 10)

	for {
		s.lock.Lock()
		for e := s.replies.Front(); e != nil; e = e.Next() {
			elem := e.Value.(*common.Element)
			if elem.MessageID() == wantStr {
				s.replies.Remove(e)
				s.lock.Unlock()
				return elem, nil
			}
		}
		s.lock.Unlock()

		if err, _ := s.pumpErr.Load().(error); err != nil {
			return nil, err
		}
		if !infinite && time.Now().After(deadline) {
			return nil, WouldBlock
		}
		time.Sleep(s.cfg.LockPollInterval)
	}
}

func (s *Session) getNotif(timeoutMS int) (*common.Element, error) {
	deadline, infinite := s.deadline(timeoutMS)

	for {
		s.lock.Lock()
		if front := s.notifs.Front(); front != nil {
			elem := s.notifs.Remove(front).(*common.Element)
			s.lock.Unlock()
			return elem, nil
		}
		s.lock.Unlock()

		if err, _ := s.pumpErr.Load().(error); err != nil {
			return nil, err
		}
		if !infinite && time.Now().After(deadline) {
			return nil, WouldBlock
		}
		time.Sleep(s.cfg.LockPollInterval)
	}
}

func (s *Session) deadline(timeoutMS int) (time.Time, bool) {
	if timeoutMS < 0 {
		return time.Time{}, true
	}
	return time.Now().Add(time.Duration(timeoutMS) * time.Millisecond), false
}

// pumpLoop is the session's sole reader: it decodes one framed message
// at a time for as long as the transport is alive and classifies each
// into the replies or notifications FIFO (or drops it, per spec §6's
// non-fatal protocol violations), guarding every FIFO mutation with the
// session lock so getMsg/getNotif never race it.
func (s *Session) pumpLoop() {
	defer close(s.pumpDone)
	for {
		var elem common.Element
		if err := s.dec.Decode(&elem); err != nil {
			s.pumpErr.Store(fmt.Errorf("session: transport closed: %w: %w", errkind.Transport, err))
			return
		}
		s.classify(&elem)
	}
}

func (s *Session) classify(elem *common.Element) {
	switch {
	case elem.Is(common.NetconfNotifyNS, "notification"):
		s.hooks.notificationReceived(elem)
		s.lock.Lock()
		s.notifs.PushBack(elem)
		s.lock.Unlock()

	case elem.Is(common.NetconfNS, "rpc-reply"):
		if elem.MessageID() == "" {
			// Edge case: a reply with no message-id cannot be matched to
			// any outstanding request. Dropped and logged, not fatal.
			s.warnf("session: dropping rpc-reply with no message-id")
			return
		}
		s.lock.Lock()
		s.replies.PushBack(elem)
		s.lock.Unlock()

	case elem.Is(common.NetconfNS, "rpc"):
		// This core is a client; an inbound <rpc> is a peer protocol
		// violation. Surfaced to the next getMsg/getNotif caller as an
		// error, not silently dropped.
		s.warnf("session: dropping unexpected client-bound rpc element")
		s.pumpErr.Store(fmt.Errorf("session: unexpected client-bound rpc element: %w", errkind.Protocol))

	case elem.Is(common.NetconfNS, "hello"):
		// A second hello after the handshake has completed is a protocol
		// violation; since this implementation dedicates its pump
		// goroutine to post-handshake traffic only, this can only be a
		// misbehaving peer. The session reports Error and transitions to
		// Invalid rather than merely logging.
		s.warnf("session: dropping unexpected post-handshake hello element")
		s.pumpErr.Store(fmt.Errorf("session: unexpected post-handshake hello element: %w", errkind.Protocol))
		atomic.StoreInt32(&s.status, int32(Invalid))

	default:
		s.warnf("session: dropping unrecognised top-level element %s", elem.XMLName.Local)
	}
}

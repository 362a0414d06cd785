package session

import (
	"log"
	"time"

	"github.com/netconf-core/netconf/netconf/common"
)

// Hooks mirrors the teacher's ClientTrace shape, scoped to the events
// this package's pump, builder and dispatcher can observe; transport
// dial/connect events live in netconf/transport/ssh.Hooks instead.
type Hooks struct {
	HelloDone func(msg *common.HelloMessage)

	RPCSent  func(msgID uint32, d time.Duration)
	RPCError func(context string, err error)

	ReplyReceived func(msgID uint32, d time.Duration)

	NotificationReceived func(elem *common.Element)
	NotificationDropped  func(elem *common.Element)

	Error func(context string, err error)
}

func (h *Hooks) helloDone(msg *common.HelloMessage) {
	if h != nil && h.HelloDone != nil {
		h.HelloDone(msg)
	}
}

func (h *Hooks) rpcSent(msgID uint32, d time.Duration) {
	if h != nil && h.RPCSent != nil {
		h.RPCSent(msgID, d)
	}
}

func (h *Hooks) rpcError(context string, err error) {
	if h != nil && h.RPCError != nil {
		h.RPCError(context, err)
	}
}

func (h *Hooks) replyReceived(msgID uint32, d time.Duration) {
	if h != nil && h.ReplyReceived != nil {
		h.ReplyReceived(msgID, d)
	}
}

func (h *Hooks) notificationReceived(elem *common.Element) {
	if h != nil && h.NotificationReceived != nil {
		h.NotificationReceived(elem)
	}
}

func (h *Hooks) notificationDropped(elem *common.Element) {
	if h != nil && h.NotificationDropped != nil {
		h.NotificationDropped(elem)
	}
}

func (h *Hooks) error(context string, err error) {
	if h != nil && h.Error != nil {
		h.Error(context, err)
	}
}

// NoOpHooks does nothing for every event; the zero value of *Hooks
// already behaves this way via the nil-safe methods above, but this is
// provided for callers that want an explicit, non-nil value.
var NoOpHooks = &Hooks{}

// DefaultHooks logs only errors, matching the teacher's
// DefaultLoggingHooks.
var DefaultHooks = &Hooks{
	Error: func(context string, err error) {
		log.Printf("NETCONF-Error context:%s err:%v\n", context, err)
	},
}

// DiagnosticHooks logs every event, matching the teacher's
// DiagnosticLoggingHooks density.
var DiagnosticHooks = &Hooks{
	HelloDone: func(msg *common.HelloMessage) {
		log.Printf("NETCONF-HelloDone session-id:%d caps:%v\n", msg.SessionID, msg.Capabilities)
	},
	RPCSent: func(msgID uint32, d time.Duration) {
		log.Printf("NETCONF-RPCSent msg-id:%d took:%dms\n", msgID, d.Milliseconds())
	},
	RPCError: func(context string, err error) {
		log.Printf("NETCONF-RPCError context:%s err:%v\n", context, err)
	},
	ReplyReceived: func(msgID uint32, d time.Duration) {
		log.Printf("NETCONF-ReplyReceived msg-id:%d took:%dms\n", msgID, d.Milliseconds())
	},
	NotificationReceived: func(elem *common.Element) {
		log.Printf("NETCONF-NotificationReceived %s\n", elem.XMLName.Local)
	},
	NotificationDropped: func(elem *common.Element) {
		log.Printf("NETCONF-NotificationDropped %s\n", elem.XMLName.Local)
	},
	Error: DefaultHooks.Error,
}

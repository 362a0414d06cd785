package testserver

import (
	"encoding/xml"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	assert "github.com/stretchr/testify/require"

	"github.com/netconf-core/netconf/netconf/common"
	"github.com/netconf-core/netconf/netconf/transport/codec"
)

// RequestHandler inspects one decoded <rpc> request body and returns the
// element to wrap in the matching <rpc-reply> (typically a <data> or
// <ok> element); a nil return lets SessionHandler send its default
// stub <ok/> reply.
type RequestHandler func(h *SessionHandler, req *common.Element) *common.Element

// SessionHandler is the server side of one active netconf SSH session:
// it performs the server's half of the hello exchange and then services
// <rpc> requests, in the manner of the teacher's server-side message
// pump, adapted to this module's common.Element wire currency instead
// of the teacher's RpcRequestMessage/RpcReplyMessage pair.
type SessionHandler struct {
	server *TestNCServer
	sid    uint64

	ch      ssh.Channel
	dec     *codec.Decoder
	enc     *codec.Encoder
	encLock sync.Mutex

	capabilities []string
	reqHandlers  []RequestHandler

	helloCh     chan struct{}
	clientHello *common.HelloMessage

	reqCount int32
	lastReq  atomic.Value // *common.Element
}

func newSessionHandler(server *TestNCServer, sid uint64) *SessionHandler {
	return &SessionHandler{
		server:       server,
		sid:          sid,
		helloCh:      make(chan struct{}, 1),
		capabilities: common.DefaultCapabilities,
	}
}

// ID returns the server-assigned session-id reported to the client in
// the server hello.
func (h *SessionHandler) ID() uint64 { return h.sid }

// ReqCount returns the number of <rpc> requests handled so far.
func (h *SessionHandler) ReqCount() int { return int(atomic.LoadInt32(&h.reqCount)) }

// LastReq returns the most recently handled request, or nil if none yet.
func (h *SessionHandler) LastReq() *common.Element {
	v, _ := h.lastReq.Load().(*common.Element)
	return v
}

// Handle implements testserver.SSHHandler: it runs the server's hello
// exchange over ch and then services rpc traffic until the channel
// closes.
func (h *SessionHandler) Handle(t assert.TestingT, ch ssh.Channel) {
	h.ch = ch
	h.dec = codec.NewDecoder(ch)
	h.enc = codec.NewEncoder(ch)

	if err := h.encode(&common.HelloMessage{Capabilities: h.capabilities, SessionID: h.sid}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.pumpLoop()
	}()

	select {
	case <-h.helloCh:
	case <-time.After(5 * time.Second):
		return
	}

	<-done
}

// Close tears down the underlying SSH channel.
func (h *SessionHandler) Close() {
	_ = h.ch.Close()
}

func (h *SessionHandler) pumpLoop() {
	for {
		var elem common.Element
		if err := h.dec.Decode(&elem); err != nil {
			return
		}
		switch {
		case elem.Is(common.NetconfNS, "hello"):
			h.handleHello(&elem)
		case elem.Is(common.NetconfNS, "rpc"):
			h.handleRPC(&elem)
		}
	}
}

func (h *SessionHandler) handleHello(elem *common.Element) {
	hello, err := decodeHello(elem)
	if err == nil {
		h.clientHello = hello
		if common.PeerSupportsChunkedFraming(hello.Capabilities) && common.PeerSupportsChunkedFraming(h.capabilities) {
			codec.EnableChunkedFraming(h.dec, h.enc)
		}
	}
	select {
	case h.helloCh <- struct{}{}:
	default:
	}
}

func (h *SessionHandler) handleRPC(elem *common.Element) {
	atomic.AddInt32(&h.reqCount, 1)
	req := elem
	var op common.Element
	if err := xml.Unmarshal([]byte(elem.InnerXML), &op); err == nil {
		req = &op
	}
	h.lastReq.Store(req)

	var body *common.Element
	for _, rh := range h.reqHandlers {
		if reply := rh(h, req); reply != nil {
			body = reply
			break
		}
	}
	if body == nil {
		body = &common.Element{XMLName: common.NameOk}
	}

	h.sendReply(elem.MessageID(), body)
}

// PushNotification sends a <notification> carrying the given raw inner
// XML (an <eventTime> element plus the event payload) to the connected
// client, for tests exercising netconf/notif against a real session.
func (h *SessionHandler) PushNotification(innerXML string) error {
	envelope := wireNotificationEnvelope{}
	envelope.Inner = innerXML
	return h.encode(&envelope)
}

type wireNotificationEnvelope struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:netconf:notification:1.0 notification"`
	Inner   string   `xml:",innerxml"`
}

func (h *SessionHandler) sendReply(messageID string, body *common.Element) {
	envelope := wireReplyEnvelope{MessageID: messageID}
	envelope.Body.XMLName = body.XMLName
	envelope.Body.Inner = body.InnerXML
	_ = h.encode(&envelope)
}

func (h *SessionHandler) encode(m interface{}) error {
	h.encLock.Lock()
	defer h.encLock.Unlock()
	return h.enc.Encode(m)
}

// wireReplyEnvelope mirrors netconf/session's own SendRPC envelope shape:
// the nested, untagged Body.XMLName field drives the marshaled element
// name for whatever reply body is set.
type wireReplyEnvelope struct {
	XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc-reply"`
	MessageID string   `xml:"message-id,attr"`
	Body      struct {
		XMLName xml.Name
		Inner   string `xml:",innerxml"`
	}
}

// decodeHello recovers the capability list from a generically-decoded
// hello element by re-wrapping its inner XML and unmarshalling it as a
// common.HelloMessage, the same shape the client side writes.
func decodeHello(elem *common.Element) (*common.HelloMessage, error) {
	wrapped := fmt.Sprintf("<hello xmlns=%q>%s</hello>", common.NetconfNS, elem.InnerXML)
	var hello common.HelloMessage
	if err := xml.Unmarshal([]byte(wrapped), &hello); err != nil {
		return nil, err
	}
	return &hello, nil
}

package session

import (
	"encoding/xml"
	"net"
	"strconv"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/netconf-core/netconf/netconf/common"
	"github.com/netconf-core/netconf/netconf/reply"
	"github.com/netconf-core/netconf/netconf/rpc"
	"github.com/netconf-core/netconf/netconf/transport/codec"
	"github.com/netconf-core/netconf/netconf/yangctx"
)

func seededSchemaCtx() *yangctx.FakeContext {
	ctx := yangctx.NewFakeContext()
	ctx.Seed(&yangctx.FakeModule{ModuleName: "ietf-netconf"})
	return ctx
}

// peerConn wraps the server half of an in-memory pipe with a raw codec
// so tests can play the remote NETCONF peer without a real transport.
type peerConn struct {
	dec *codec.Decoder
	enc *codec.Encoder
}

func newPeer(conn net.Conn) *peerConn {
	return &peerConn{dec: codec.NewDecoder(conn), enc: codec.NewEncoder(conn)}
}

func (p *peerConn) readHello(t *testing.T) {
	t.Helper()
	var hello common.HelloMessage
	assert.NoError(t, p.dec.Decode(&hello))
}

func (p *peerConn) sendHello(t *testing.T, sessionID uint64) {
	t.Helper()
	assert.NoError(t, p.enc.Encode(&common.HelloMessage{
		Capabilities: []string{common.CapBase10},
		SessionID:    sessionID,
	}))
}

func (p *peerConn) readRPC(t *testing.T) *common.Element {
	t.Helper()
	var elem common.Element
	assert.NoError(t, p.dec.Decode(&elem))
	return &elem
}

type wireReply struct {
	XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc-reply"`
	MessageID string   `xml:"message-id,attr,omitempty"`
	Body      struct {
		XMLName xml.Name
		Inner   string `xml:",innerxml"`
	}
}

func (p *peerConn) sendOkReply(t *testing.T, msgID uint32) {
	t.Helper()
	r := wireReply{MessageID: strconv.FormatUint(uint64(msgID), 10)}
	r.Body.XMLName = xml.Name{Space: common.NetconfNS, Local: "ok"}
	assert.NoError(t, p.enc.Encode(&r))
}

func (p *peerConn) sendReplyWithNoMessageID(t *testing.T) {
	t.Helper()
	r := wireReply{}
	r.Body.XMLName = xml.Name{Space: common.NetconfNS, Local: "ok"}
	assert.NoError(t, p.enc.Encode(&r))
}

func newTestSession(t *testing.T) (*Session, *peerConn) {
	t.Helper()
	client, server := net.Pipe()
	peer := newPeer(server)

	done := make(chan struct{})
	go func() {
		defer close(done)
		peer.readHello(t)
		peer.sendHello(t, 7)
	}()

	cfg := &Config{SetupTimeout: 2 * time.Second, DisableChunkedCodec: true}
	s, err := New(client, seededSchemaCtx(), cfg, nil)
	assert.NoError(t, err)
	<-done
	assert.Equal(t, Running, s.Status())
	return s, peer
}

func TestMessageIDsIncreaseSequentially(t *testing.T) {
	s, peer := newTestSession(t)
	defer s.Close()

	go func() {
		for i := 0; i < 3; i++ {
			elem := peer.readRPC(t)
			id, _ := strconv.ParseUint(elem.MessageID(), 10, 32)
			peer.sendOkReply(t, uint32(id))
		}
	}()

	var ids []uint32
	for i := 0; i < 3; i++ {
		h, err := s.SendRPC(rpc.Descriptor{Kind: rpc.Get}, 1000)
		assert.NoError(t, err)
		ids = append(ids, h.MessageID)
		_, err = s.RecvReply(h, 1000)
		assert.NoError(t, err)
	}
	assert.Equal(t, []uint32{ids[0], ids[0] + 1, ids[0] + 2}, ids)
}

func TestParkAndSkipDeliversOutOfOrderReplies(t *testing.T) {
	s, peer := newTestSession(t)
	defer s.Close()

	peerDone := make(chan [2]uint32)
	go func() {
		e1 := peer.readRPC(t)
		e2 := peer.readRPC(t)
		id1, _ := strconv.ParseUint(e1.MessageID(), 10, 32)
		id2, _ := strconv.ParseUint(e2.MessageID(), 10, 32)
		// Reply to the second request first; the first caller must not
		// see it until it asks for its own message-id.
		peer.sendOkReply(t, uint32(id2))
		time.Sleep(20 * time.Millisecond)
		peer.sendOkReply(t, uint32(id1))
		peerDone <- [2]uint32{uint32(id1), uint32(id2)}
	}()

	h1, err := s.SendRPC(rpc.Descriptor{Kind: rpc.Get}, 1000)
	assert.NoError(t, err)
	h2, err := s.SendRPC(rpc.Descriptor{Kind: rpc.Get}, 1000)
	assert.NoError(t, err)
	<-peerDone

	r1, err := s.RecvReply(h1, 2000)
	assert.NoError(t, err)
	assert.Equal(t, reply.KindOk, r1.Kind)

	r2, err := s.RecvReply(h2, 1000)
	assert.NoError(t, err)
	assert.Equal(t, reply.KindOk, r2.Kind)
}

func TestRecvReplyWouldBlockWithoutTraffic(t *testing.T) {
	s, peer := newTestSession(t)
	defer s.Close()

	go peer.readRPC(t)

	h, err := s.SendRPC(rpc.Descriptor{Kind: rpc.Get}, 1000)
	assert.NoError(t, err)

	_, err = s.RecvReply(h, 50)
	assert.ErrorIs(t, err, WouldBlock)
}

func TestRPCReplyWithoutMessageIDIsDroppedNotFatal(t *testing.T) {
	s, peer := newTestSession(t)
	defer s.Close()

	msgIDReceived := make(chan uint32, 1)
	go func() {
		elem := peer.readRPC(t)
		id, _ := strconv.ParseUint(elem.MessageID(), 10, 32)
		peer.sendReplyWithNoMessageID(t)
		peer.sendOkReply(t, uint32(id))
		msgIDReceived <- uint32(id)
	}()

	h, err := s.SendRPC(rpc.Descriptor{Kind: rpc.Get}, 1000)
	assert.NoError(t, err)
	<-msgIDReceived

	r, err := s.RecvReply(h, 2000)
	assert.NoError(t, err)
	assert.Equal(t, reply.KindOk, r.Kind)
}

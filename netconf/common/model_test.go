package common

import (
	"encoding/xml"
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestPeerSupportsChunkedFraming(t *testing.T) {
	assert.False(t, PeerSupportsChunkedFraming([]string{NetconfNS, NetconfNotifyNS, CapBase10}))
	assert.True(t, PeerSupportsChunkedFraming([]string{NetconfNS, NetconfNotifyNS, CapBase11}))
}

func TestElementMessageID(t *testing.T) {
	e := &Element{
		XMLName: NameRPCReply,
		Attrs:   []xml.Attr{{Name: xml.Name{Local: "message-id"}, Value: "7"}},
	}
	assert.Equal(t, "7", e.MessageID())

	e2 := &Element{XMLName: NameRPCReply}
	assert.Equal(t, "", e2.MessageID())
}

func TestElementIs(t *testing.T) {
	e := &Element{XMLName: NameHello}
	assert.True(t, e.Is(NetconfNS, "hello"))
	assert.False(t, e.Is(NetconfNS, "rpc"))
}

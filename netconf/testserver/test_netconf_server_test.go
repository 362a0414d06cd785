package testserver_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/netconf-core/netconf/netconf/common"
	"github.com/netconf-core/netconf/netconf/notif"
	"github.com/netconf-core/netconf/netconf/rpc"
	"github.com/netconf-core/netconf/netconf/session"
	"github.com/netconf-core/netconf/netconf/testserver"
	sshtransport "github.com/netconf-core/netconf/netconf/transport/ssh"
	"github.com/netconf-core/netconf/netconf/yangctx"
)

func sshConfig() *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            testserver.TestUserName,
		Auth:            []ssh.AuthMethod{ssh.Password(testserver.TestPassword)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         2 * time.Second,
	}
}

func newTestSchemaCtx() *yangctx.FakeContext {
	ctx := yangctx.NewFakeContext()
	ctx.Seed(&yangctx.FakeModule{ModuleName: "ietf-netconf"})
	return ctx
}

func dialSession(t *testing.T, srv *testserver.TestNCServer) *session.Session {
	t.Helper()
	target := fmt.Sprintf("localhost:%d", srv.Port())
	dialer := sshtransport.NewDialer(target, sshConfig(), nil)
	tr, err := sshtransport.New(context.Background(), dialer, target, nil)
	assert.NoError(t, err)

	s, err := session.New(tr, newTestSchemaCtx(), &session.Config{
		SetupTimeout:        2 * time.Second,
		DisableChunkedCodec: false,
	}, nil)
	assert.NoError(t, err)
	return s
}

func TestSessionEstablishesOverTestServer(t *testing.T) {
	srv := testserver.NewTestNetconfServer(t)
	defer srv.Close()

	s := dialSession(t, srv)
	defer s.Close()

	assert.Equal(t, session.Running, s.Status())
	assert.NotZero(t, s.ID())
}

func TestSessionAdvertisedCapabilitiesMatchServer(t *testing.T) {
	customCaps := []string{common.CapBase10, common.CapBase11}
	srv := testserver.NewTestNetconfServer(t).WithCapabilities(customCaps)
	defer srv.Close()

	s := dialSession(t, srv)
	defer s.Close()

	assert.ElementsMatch(t, customCaps, s.Capabilities())
}

func TestGetRequestReceivesConfiguredReply(t *testing.T) {
	srv := testserver.NewTestNetconfServer(t).WithRequestHandler(
		func(h *testserver.SessionHandler, req *common.Element) *common.Element {
			if !req.Is(common.NetconfNS, "get") {
				return nil
			}
			return &common.Element{
				XMLName:  common.NameOk,
				InnerXML: `<data xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><top/></data>`,
			}
		})
	defer srv.Close()

	s := dialSession(t, srv)
	defer s.Close()

	h, err := s.SendRPC(rpc.Descriptor{Kind: rpc.Get}, 2000)
	assert.NoError(t, err)

	_, err = s.RecvReply(h, 2000)
	assert.NoError(t, err)

	handler := srv.SessionHandler(s.ID())
	assert.Equal(t, 1, handler.ReqCount())
	assert.True(t, handler.LastReq().Is(common.NetconfNS, "get"))
}

func TestMultipleSessionsEachGetDistinctSessionID(t *testing.T) {
	srv := testserver.NewTestNetconfServer(t)
	defer srv.Close()

	s1 := dialSession(t, srv)
	defer s1.Close()
	s2 := dialSession(t, srv)
	defer s2.Close()

	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestNotificationDispatcherDeliversServerPushedEvent(t *testing.T) {
	srv := testserver.NewTestNetconfServer(t)
	defer srv.Close()

	s := dialSession(t, srv)
	defer s.Close()

	d := notif.New(s, nil)
	received := make(chan *common.Element, 1)
	d.Start(func(elem *common.Element) { received <- elem })
	defer d.Stop()

	handler := srv.SessionHandler(s.ID())
	err := handler.PushNotification(`<eventTime>2026-07-30T00:00:00Z</eventTime><event>link-up</event>`)
	assert.NoError(t, err)

	select {
	case elem := <-received:
		assert.True(t, elem.Is(common.NetconfNotifyNS, "notification"))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched notification")
	}
}

// Package ssh implements the Transport collaborator over an SSH
// "netconf" subsystem channel, grounded on the teacher's SSH transport.
package ssh

import (
	"context"
	"io"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netconf-core/netconf/netconf/transport"
)

// ClientFactory dials (and, on close, tears down) an *ssh.Client. Tests
// substitute a factory that hands back a pre-established client instead
// of dialing.
type ClientFactory interface {
	Dial(ctx context.Context) (*ssh.Client, error)
	Close(*ssh.Client) error
}

// Hooks is the subset of observability callbacks the transport invokes;
// every field defaults to a no-op so callers only implement what they
// need. Mirrors the teacher's ClientTrace but scoped to transport-level
// events only (dial start, dial done, connection closed), since
// session-level events belong to the session package.
type Hooks struct {
	DialStart        func(cfg *ssh.ClientConfig, target string)
	DialDone         func(cfg *ssh.ClientConfig, target string, err error, d time.Duration)
	ConnectionClosed func(target string, err error)
}

func (h *Hooks) dialStart(cfg *ssh.ClientConfig, target string) {
	if h != nil && h.DialStart != nil {
		h.DialStart(cfg, target)
	}
}

func (h *Hooks) dialDone(cfg *ssh.ClientConfig, target string, err error, d time.Duration) {
	if h != nil && h.DialDone != nil {
		h.DialDone(cfg, target, err, d)
	}
}

func (h *Hooks) connectionClosed(target string, err error) {
	if h != nil && h.ConnectionClosed != nil {
		h.ConnectionClosed(target, err)
	}
}

type dialer struct {
	target string
	config *ssh.ClientConfig
	hooks  *Hooks
}

// NewDialer returns a ClientFactory that dials target over SSH using
// clientConfig.
func NewDialer(target string, clientConfig *ssh.ClientConfig, hooks *Hooks) ClientFactory {
	return &dialer{target: target, config: clientConfig, hooks: hooks}
}

func (d *dialer) Dial(ctx context.Context) (cli *ssh.Client, err error) {
	_ = ctx
	d.hooks.dialStart(d.config, d.target)
	defer func(begin time.Time) {
		d.hooks.dialDone(d.config, d.target, err, time.Since(begin))
	}(time.Now())

	return ssh.Dial("tcp", d.target, d.config)
}

func (d *dialer) Close(cli *ssh.Client) error {
	if cli == nil {
		return nil
	}
	return cli.Close()
}

type preEstablished struct {
	client *ssh.Client
}

// FromClient wraps an already-connected *ssh.Client, used when the
// caller manages the underlying SSH connection itself (Call Home is a
// transport-establishment concern out of this core's scope, but still
// needs a ClientFactory that doesn't try to dial).
func FromClient(client *ssh.Client) ClientFactory {
	return &preEstablished{client: client}
}

func (p *preEstablished) Dial(ctx context.Context) (*ssh.Client, error) {
	return p.client, nil
}

func (p *preEstablished) Close(*ssh.Client) error {
	// The caller owns the lifecycle of a pre-established client.
	return nil
}

type netconfTransport struct {
	client  *ssh.Client
	session *ssh.Session

	reader io.Reader
	writer io.WriteCloser

	target string
	hooks  *Hooks
	dialer ClientFactory
}

// New connects to target via dialer and opens the "netconf" SSH
// subsystem, returning a transport.Transport ready for the hello
// exchange.
func New(ctx context.Context, dialer ClientFactory, target string, hooks *Hooks) (t transport.Transport, err error) {
	impl := &netconfTransport{target: target, hooks: hooks, dialer: dialer}

	defer func() {
		if err != nil {
			_ = dialer.Close(impl.client)
			if impl.session != nil {
				_ = impl.session.Close()
			}
		}
	}()

	impl.client, err = dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	if impl.session, err = impl.client.NewSession(); err != nil {
		return nil, err
	}
	if err = impl.session.RequestSubsystem("netconf"); err != nil {
		return nil, err
	}
	if impl.reader, err = impl.session.StdoutPipe(); err != nil {
		return nil, err
	}
	if impl.writer, err = impl.session.StdinPipe(); err != nil {
		return nil, err
	}

	return impl, nil
}

func (t *netconfTransport) Read(p []byte) (int, error)  { return t.reader.Read(p) }
func (t *netconfTransport) Write(p []byte) (int, error) { return t.writer.Write(p) }

// Close tears down, in order, the stdin pipe, the SSH session, and
// (via the dialer, so a pre-established client isn't closed out from
// under its owner) the SSH client.
func (t *netconfTransport) Close() (err error) {
	defer t.hooks.connectionClosed(t.target, err)

	var writeErr, sessionErr error
	if t.writer != nil {
		writeErr = t.writer.Close()
	}
	if t.session != nil {
		sessionErr = t.session.Close()
	}
	err = t.dialer.Close(t.client)
	if err == nil {
		err = writeErr
	}
	if err == nil {
		err = sessionErr
	}
	return err
}

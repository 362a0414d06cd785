// Command netconf-probe connects to a NETCONF server, runs the hello
// handshake and Schema Context Loader, issues one RPC, and prints the
// reply, then closes the session. It exists to exercise the core
// end-to-end against a real device or the testserver package, the way
// the teacher's example command exercises its own client package.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netconf-core/netconf/netconf/reply"
	"github.com/netconf-core/netconf/netconf/rpc"
	"github.com/netconf-core/netconf/netconf/session"
	sshtransport "github.com/netconf-core/netconf/netconf/transport/ssh"
)

func main() {
	var (
		address      string
		username     string
		password     string
		keyfile      string
		searchPath   string
		filter       string
		setupTimeout time.Duration
		rpcTimeout   time.Duration
	)

	flag.StringVar(&address, "address", "localhost:830", "NETCONF server address, host:port")
	flag.StringVar(&username, "user", "admin", "Username")
	flag.StringVar(&password, "pass", "", "Password (ignored if -keyfile is set)")
	flag.StringVar(&keyfile, "keyfile", "", "SSH private key file, used instead of password auth when set")
	flag.StringVar(&searchPath, "schema-path", "", "Comma-separated local YANG module search directories")
	flag.StringVar(&filter, "filter", "", "Subtree filter (raw XML, leading '<') for the probe <get>; empty means no filter")
	flag.DurationVar(&setupTimeout, "setup-timeout", 10*time.Second, "Hello/schema-load timeout")
	flag.DurationVar(&rpcTimeout, "rpc-timeout", 10*time.Second, "Timeout for the probe RPC")
	flag.Parse()

	auth, err := authMethod(password, keyfile)
	if err != nil {
		log.Fatalf("netconf-probe: %v", err)
	}

	clientCfg := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // probe tool, not for production use
		Timeout:         setupTimeout,
	}

	dialer := sshtransport.NewDialer(address, clientCfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	t, err := sshtransport.New(ctx, dialer, address, nil)
	if err != nil {
		log.Fatalf("netconf-probe: connecting to %s: %v", address, err)
	}

	var path []string
	if searchPath != "" {
		path = strings.Split(searchPath, ",")
	}

	s, err := session.New(t, nil, &session.Config{
		SetupTimeout:     setupTimeout,
		SchemaSearchPath: path,
	}, session.DefaultHooks)
	if err != nil {
		log.Fatalf("netconf-probe: establishing session: %v", err)
	}
	defer s.Close()

	fmt.Fprintf(os.Stdout, "session-id=%d capabilities=%v\n", s.ID(), s.Capabilities())

	h, err := s.SendRPC(rpc.Descriptor{Kind: rpc.Get, Filter: filter}, int(rpcTimeout.Milliseconds()))
	if err != nil {
		log.Fatalf("netconf-probe: sending get: %v", err)
	}

	r, err := s.RecvReply(h, int(rpcTimeout.Milliseconds()))
	if err != nil {
		log.Fatalf("netconf-probe: receiving reply: %v", err)
	}

	printReply(r)
}

func printReply(r reply.Reply) {
	switch r.Kind {
	case reply.KindOk:
		fmt.Fprintln(os.Stdout, "reply: ok")
	case reply.KindData:
		fmt.Fprintf(os.Stdout, "reply: data\n%s\n", r.Data.InnerXML)
	case reply.KindError:
		for _, e := range r.Errors {
			fmt.Fprintf(os.Stdout, "reply: error type=%s severity=%s tag=%s message=%s\n",
				e.Type, e.Severity, e.Tag, e.Message)
		}
	}
}

func authMethod(password, keyfile string) (ssh.AuthMethod, error) {
	if keyfile == "" {
		return ssh.Password(password), nil
	}
	key, err := os.ReadFile(keyfile)
	if err != nil {
		return nil, fmt.Errorf("reading key file %s: %w", keyfile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing key file %s: %w", keyfile, err)
	}
	return ssh.PublicKeys(signer), nil
}

// Package transport defines the byte-stream collaborator the session
// core depends on. Establishing the connection (TCP/SSH/TLS/fd-pair/Call
// Home) is out of this core's scope per spec §1; this package only names
// the interface and ships the SSH implementation the teacher carries.
package transport

import "io"

// Transport is an established, full-duplex byte stream to a NETCONF peer.
// The core never looks past this interface for I/O.
type Transport interface {
	io.ReadWriteCloser
}

// Upgradable names a transport that can switch framing mode in place.
// No transport in this module implements it and the session never calls
// it: when both peers advertise base:1.1, the session switches its own
// codec to chunked framing with codec.EnableChunkedFraming.
type Upgradable interface {
	Upgrade()
}

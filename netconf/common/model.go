// Package common defines the wire-level NETCONF message envelopes shared
// by every other package in this module: the hello exchange, the generic
// rpc/rpc-reply/notification containers, and the namespace constants that
// the rest of the core dispatches on.
package common

import (
	"encoding/xml"
	"strings"
)

// NetconfNS is the base NETCONF 1.0 namespace every rpc, rpc-reply and
// hello element lives in.
const (
	NetconfNS       = "urn:ietf:params:xml:ns:netconf:base:1.0"
	NetconfNotifyNS = "urn:ietf:params:xml:ns:netconf:notification:1.0"

	// NcNotificationsModuleNS is the nc-notifications module namespace
	// (RFC 6241 Appendix B.4/B.5) that the notificationComplete event
	// signaling the end of an event-stream replay is defined in.
	NcNotificationsModuleNS = "urn:ietf:params:xml:ns:netmod:notification"

	CapBase10 = "urn:ietf:params:netconf:base:1.0"
	CapBase11 = "urn:ietf:params:netconf:base:1.1"
)

// Well-known element names dispatched on by the message pump and reply parser.
var (
	NameHello        = xml.Name{Space: NetconfNS, Local: "hello"}
	NameRPC          = xml.Name{Space: NetconfNS, Local: "rpc"}
	NameRPCReply     = xml.Name{Space: NetconfNS, Local: "rpc-reply"}
	NameRPCError     = xml.Name{Space: NetconfNS, Local: "rpc-error"}
	NameOk           = xml.Name{Space: NetconfNS, Local: "ok"}
	NameNotification = xml.Name{Space: NetconfNotifyNS, Local: "notification"}
)

// DefaultCapabilities are advertised by this module's clients during the
// hello exchange.
var DefaultCapabilities = []string{
	CapBase10,
	CapBase11,
}

// HelloMessage is exchanged, unframed, as the first message on a new
// transport in each direction.
type HelloMessage struct {
	XMLName      xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 hello"`
	Capabilities []string `xml:"capabilities>capability"`
	SessionID    uint64   `xml:"session-id,omitempty"`
}

// PeerSupportsChunkedFraming reports whether the capability list includes
// base:1.1, the capability that makes RFC 6242 chunked framing available.
func PeerSupportsChunkedFraming(caps []string) bool {
	for _, c := range caps {
		if c == CapBase11 {
			return true
		}
	}
	return false
}

// Element is a generic, namespace-aware XML element tree. It is the
// currency the message pump, RPC builder and reply parser exchange: a
// parsed root plus its raw inner XML, decoded lazily by whichever layer
// understands the schema for that element.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	InnerXML string     `xml:",innerxml"`
}

// MessageID extracts the message-id attribute from an Element's
// attribute set, returning "" if absent.
func (e *Element) MessageID() string {
	for _, a := range e.Attrs {
		if a.Name.Local == "message-id" {
			return a.Value
		}
	}
	return ""
}

// Is reports whether the element's name matches the given namespace and
// local name.
func (e *Element) Is(space, local string) bool {
	return e.XMLName.Space == space && e.XMLName.Local == local
}

// IsNotificationComplete reports whether e is a <notification> element
// whose body carries the nc-notifications notificationComplete event,
// the dispatcher's second termination condition alongside Stop.
func (e *Element) IsNotificationComplete() bool {
	if !e.Is(NetconfNotifyNS, "notification") {
		return false
	}
	var body struct {
		Children []struct {
			XMLName xml.Name
		} `xml:",any"`
	}
	dec := xml.NewDecoder(strings.NewReader("<root>" + e.InnerXML + "</root>"))
	if err := dec.Decode(&body); err != nil {
		return false
	}
	for _, c := range body.Children {
		if c.XMLName.Local == "notificationComplete" && (c.XMLName.Space == "" || c.XMLName.Space == NcNotificationsModuleNS) {
			return true
		}
	}
	return false
}

// Package reply implements the Reply Parser: given the RPC descriptor
// that produced a request and the raw XML element received for it,
// decode an Ok, a typed Data reply, or an Error reply carrying a vector
// of structured ErrorRecords.
package reply

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/netconf-core/netconf/netconf/common"
	"github.com/netconf-core/netconf/netconf/errkind"
	"github.com/netconf-core/netconf/netconf/rpc"
	"github.com/netconf-core/netconf/netconf/yangctx"
)

// Kind discriminates the Reply variant.
type Kind int

const (
	KindOk Kind = iota
	KindData
	KindError
)

// Reply is the tagged {Ok, Data(tree), Error(list<ErrorRecord>)} variant
// the parser produces.
type Reply struct {
	Kind   Kind
	Data   *common.Element
	Errors []ErrorRecord
}

// ErrorType is the error-type enumeration (RFC 6241 section 4.3).
type ErrorType string

const (
	ErrTransport  ErrorType = "transport"
	ErrRPC        ErrorType = "rpc"
	ErrProtocol   ErrorType = "protocol"
	ErrApplication ErrorType = "application"
)

// ErrorSeverity is the error-severity enumeration.
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// knownErrorTags is the closed set of 19 NETCONF error-tag values.
var knownErrorTags = map[string]struct{}{
	"in-use":                  {},
	"invalid-value":           {},
	"too-big":                 {},
	"missing-attribute":       {},
	"bad-attribute":           {},
	"unknown-attribute":       {},
	"missing-element":         {},
	"bad-element":             {},
	"unknown-element":         {},
	"unknown-namespace":       {},
	"access-denied":           {},
	"lock-denied":             {},
	"resource-denied":         {},
	"rollback-failed":         {},
	"data-exists":             {},
	"data-missing":            {},
	"operation-not-supported": {},
	"operation-failed":        {},
	"malformed-message":       {},
}

// ForeignInfo is one foreign-namespace <error-info> child preserved
// verbatim, since it belongs to a schema this core does not parse.
type ForeignInfo struct {
	XMLName xml.Name
	Raw     string
}

// ErrorRecord is the fully decoded form of one <rpc-error> element.
type ErrorRecord struct {
	Type     ErrorType
	Tag      string
	Severity ErrorSeverity
	AppTag   string
	Path     string
	Message  string
	Lang     string
	SessionID uint64

	BadAttr      []string
	BadElement   []string
	BadNamespace []string
	Other        []ForeignInfo
}

// wireRPCError is the raw decode target for a single <rpc-error>,
// permissive about ordering and repeated children so the parser can
// apply the "duplicate singleton fields log a warning, first wins"
// rule itself rather than relying on encoding/xml's overwrite-on-repeat
// behaviour.
type wireRPCError struct {
	XMLName  xml.Name      `xml:"rpc-error"`
	Children []wireChild `xml:",any"`
}

type wireChild struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Chardata string    `xml:",chardata"`
	Inner    string    `xml:",innerxml"`
}

// warnFunc is overridable by tests; production callers get it wired via
// Parser.warn.
type warnFunc func(format string, args ...interface{})

// Parser decodes raw reply XML against the descriptor that produced
// the originating request.
type Parser struct {
	ctx  yangctx.Context
	warn warnFunc
}

// NewParser constructs a Parser. warn may be nil.
func NewParser(ctx yangctx.Context, warn func(string, ...interface{})) *Parser {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}
	return &Parser{ctx: ctx, warn: warn}
}

// Parse decodes rawXML (the contents of one <rpc-reply>, already
// stripped of its envelope) in the context of the descriptor that
// produced the request, d.
func (p *Parser) Parse(d rpc.Descriptor, rawXML string) (Reply, error) {
	// The wrapper re-declares the base namespace the stripped <rpc-reply>
	// envelope carried, so unprefixed children such as <ok/> keep it.
	dec := xml.NewDecoder(strings.NewReader(`<root xmlns="` + common.NetconfNS + `">` + rawXML + "</root>"))
	var root struct {
		Children []wireChild `xml:",any"`
	}
	if err := dec.Decode(&root); err != nil {
		return Reply{}, fmt.Errorf("reply: malformed rpc-reply body: %w: %w", errkind.Protocol, err)
	}

	if len(root.Children) == 0 {
		return Reply{}, fmt.Errorf("reply: rpc-reply has no children: %w", errkind.Protocol)
	}

	first := root.Children[0]
	switch {
	case first.XMLName.Space == common.NetconfNS && first.XMLName.Local == "rpc-error":
		records := make([]ErrorRecord, 0, len(root.Children))
		for _, c := range root.Children {
			if c.XMLName.Space != common.NetconfNS || c.XMLName.Local != "rpc-error" {
				return Reply{}, fmt.Errorf("reply: mixed rpc-error and non-error siblings: %w", errkind.Protocol)
			}
			rec, err := p.decodeErrorRecord(c)
			if err != nil {
				return Reply{}, err
			}
			records = append(records, rec)
		}
		return Reply{Kind: KindError, Errors: records}, nil

	case first.XMLName.Space == common.NetconfNS && first.XMLName.Local == "ok":
		if len(root.Children) != 1 {
			return Reply{}, fmt.Errorf("reply: <ok> must be the only child: %w", errkind.Protocol)
		}
		return Reply{Kind: KindOk}, nil

	default:
		if noOutputExpected(d.Kind) {
			return Reply{}, fmt.Errorf("reply: %s does not produce data output: %w", d.Kind, errkind.Protocol)
		}
		elem, err := p.resolveData(d, rawXML)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Kind: KindData, Data: elem}, nil
	}
}

// noOutputExpected reports whether RFC 6241 specifies that kind's reply
// carries no data, so receiving a non-ok, non-error body is itself an
// error.
func noOutputExpected(k rpc.Kind) bool {
	switch k {
	case rpc.Edit, rpc.Copy, rpc.Delete, rpc.Lock, rpc.Unlock, rpc.Kill,
		rpc.Commit, rpc.Discard, rpc.Cancel, rpc.Validate, rpc.Subscribe:
		return true
	default:
		return false
	}
}

// resolveData resolves the schema node driving how the reply's data is
// decoded, per descriptor kind, then parses rawXML against it.
func (p *Parser) resolveData(d rpc.Descriptor, rawXML string) (*common.Element, error) {
	var node yangctx.Module
	var err error

	switch d.Kind {
	case rpc.GetConfig:
		node, err = p.ctx.ParsePath("/ietf-netconf:get-config", "get-config")
	case rpc.Get:
		node, err = p.ctx.ParsePath("/ietf-netconf:get", "get")
	case rpc.GetSchema:
		node, err = p.ctx.ParsePath("/ietf-netconf-monitoring:get-schema", "get-schema")
	case rpc.Generic:
		node = d.GenericSchemaNode
		if node == nil {
			node, err = p.ctx.ParsePath("/"+d.GenericOp, "generic")
		}
	default:
		return nil, fmt.Errorf("reply: %s does not produce data output: %w", d.Kind, errkind.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("reply: resolving schema node for %s: %w: %w", d.Kind, errkind.Schema, err)
	}

	return p.ctx.ParseXML(rawXML, node)
}

func (p *Parser) decodeErrorRecord(raw wireChild) (ErrorRecord, error) {
	var wrapped wireRPCError
	dec := xml.NewDecoder(strings.NewReader("<rpc-error>" + raw.Inner + "</rpc-error>"))
	if err := dec.Decode(&wrapped); err != nil {
		return ErrorRecord{}, fmt.Errorf("reply: malformed rpc-error: %w: %w", errkind.Protocol, err)
	}

	rec := ErrorRecord{Severity: SeverityError}
	seen := make(map[string]bool)

	for _, c := range wrapped.Children {
		switch c.XMLName.Local {
		case "error-type":
			typ := ErrorType(strings.TrimSpace(c.Chardata))
			if typ != ErrTransport && typ != ErrRPC && typ != ErrProtocol && typ != ErrApplication {
				p.warn("reply: unknown error-type %q dropped", typ)
				continue
			}
			p.setSingleton(&rec.Type, typ, seen, "error-type")
		case "error-tag":
			tag := strings.TrimSpace(c.Chardata)
			if _, ok := knownErrorTags[tag]; !ok {
				p.warn("reply: unknown error-tag %q dropped", tag)
				continue
			}
			p.setSingleton(&rec.Tag, tag, seen, "error-tag")
		case "error-severity":
			sev := ErrorSeverity(strings.TrimSpace(c.Chardata))
			if sev != SeverityError && sev != SeverityWarning {
				p.warn("reply: unknown error-severity %q dropped", sev)
				continue
			}
			p.setSingleton(&rec.Severity, sev, seen, "error-severity")
		case "error-app-tag":
			p.setSingleton(&rec.AppTag, strings.TrimSpace(c.Chardata), seen, "error-app-tag")
		case "error-path":
			p.setSingleton(&rec.Path, strings.TrimSpace(c.Chardata), seen, "error-path")
		case "error-message":
			if seen["error-message"] {
				p.warn("reply: duplicate error-message, first wins")
				continue
			}
			seen["error-message"] = true
			rec.Message = strings.TrimSpace(c.Chardata)
			for _, a := range c.Attrs {
				if a.Name.Local == "lang" {
					rec.Lang = a.Value
				}
			}
		case "error-info":
			p.decodeErrorInfo(c, &rec)
		default:
			p.warn("reply: unexpected rpc-error child %q dropped", c.XMLName.Local)
		}
	}

	return rec, nil
}

func (p *Parser) setSingleton(dst interface{}, value interface{}, seen map[string]bool, field string) {
	if seen[field] {
		p.warn("reply: duplicate %s, first wins", field)
		return
	}
	seen[field] = true
	switch d := dst.(type) {
	case *ErrorType:
		*d = value.(ErrorType)
	case *string:
		*d = value.(string)
	case *ErrorSeverity:
		*d = value.(ErrorSeverity)
	}
}

func (p *Parser) decodeErrorInfo(info wireChild, rec *ErrorRecord) {
	var infoChildren struct {
		Children []wireChild `xml:",any"`
	}
	dec := xml.NewDecoder(strings.NewReader("<error-info>" + info.Inner + "</error-info>"))
	if err := dec.Decode(&infoChildren); err != nil {
		p.warn("reply: malformed error-info: %v", err)
		return
	}
	for _, c := range infoChildren.Children {
		if c.XMLName.Space != "" && c.XMLName.Space != common.NetconfNS {
			rec.Other = append(rec.Other, ForeignInfo{XMLName: c.XMLName, Raw: c.Inner})
			continue
		}
		switch c.XMLName.Local {
		case "bad-attribute":
			rec.BadAttr = append(rec.BadAttr, strings.TrimSpace(c.Chardata))
		case "bad-element":
			rec.BadElement = append(rec.BadElement, strings.TrimSpace(c.Chardata))
		case "bad-namespace":
			rec.BadNamespace = append(rec.BadNamespace, strings.TrimSpace(c.Chardata))
		case "session-id":
			if v, err := strconv.ParseUint(strings.TrimSpace(c.Chardata), 10, 64); err == nil {
				rec.SessionID = v
			}
		default:
			rec.Other = append(rec.Other, ForeignInfo{XMLName: c.XMLName, Raw: c.Inner})
		}
	}
}

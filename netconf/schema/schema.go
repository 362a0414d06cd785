// Package schema implements the Schema Context Loader: the one-time,
// post-handshake walk over a peer's advertised capabilities that brings
// a yangctx.Context up to a usable state, enabling ietf-netconf features
// and, where a module isn't available locally, fetching it in-band over
// the same session via get-schema.
package schema

import (
	"context"
	"strings"
	"time"

	"github.com/netconf-core/netconf/netconf/capability"
	"github.com/netconf-core/netconf/netconf/yangctx"
)

// Status is the Loader's aggregate result.
type Status int

const (
	// Ok means every advertised module loaded successfully.
	Ok Status = iota
	// Partial means the base ietf-netconf module loaded but one or more
	// other modules did not; data from those modules is ignored.
	Partial
	// Fatal means even the base ietf-netconf module could not be
	// obtained; the session that produced this result must be torn down.
	Fatal
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case Partial:
		return "Partial"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

const (
	monitoringModule     = "ietf-netconf-monitoring"
	baseModule           = "ietf-netconf"
	getSchemaTimeout     = 250 * time.Millisecond
	capabilityURNPrefix  = "urn:ietf:params:netconf:capability:"
)

// featureByCapability maps an ietf-netconf:capability URI feature name
// to the feature statement it enables on the base ietf-netconf module.
// confirmed-commit and validate have no entry: capability.NetconfFeature
// applies their 1.1-only rule, and their names are enabled unchanged.
var featureByCapability = map[string]string{
	"writable-running":  "writable-running",
	"candidate":         "candidate",
	"rollback-on-error": "rollback-on-error",
	"startup":           "startup",
	"url":               "url",
	"xpath":             "xpath",
}

// RPCTransport is the minimal get-schema sending collaborator the Loader
// needs from the session that is bootstrapping its own schema context.
// It is satisfied by *netconf/session.Session without this package
// importing that one (the Loader runs logically "inside" a session
// that hasn't finished constructing itself yet).
type RPCTransport interface {
	// SendGetSchema issues a <get-schema> RPC for identifier (and,
	// if non-empty, version) in "yin" format and returns the reply's
	// <data> element as text, outer element still in place (the Loader
	// strips it), within budget. ok is false on any failure (timeout, rpc-error,
	// malformed reply); the Loader treats that uniformly as "not
	// found" per spec.
	SendGetSchema(ctx context.Context, identifier, version string, budget time.Duration) (yin string, ok bool)
}

// Loader runs the Schema Context Loader algorithm against a
// yangctx.Context, optionally backed by an RPCTransport for get-schema
// fallback.
type Loader struct {
	ctx       yangctx.Context
	transport RPCTransport

	// warn receives non-fatal diagnostics (missing feature, module load
	// failure tolerated as Partial); nil is a valid no-op sink.
	warn func(format string, args ...interface{})
}

// NewLoader constructs a Loader. transport may be nil, in which case
// get-schema fallback is simply unavailable (as if the peer never
// advertised ietf-netconf-monitoring).
func NewLoader(ctx yangctx.Context, transport RPCTransport, warn func(string, ...interface{})) *Loader {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}
	return &Loader{ctx: ctx, transport: transport, warn: warn}
}

// Load runs the full algorithm against caps, the peer's advertised
// capability list from the hello exchange.
func (l *Loader) Load(ctx context.Context, caps []string) Status {
	getSchemaSupport := capability.HasMonitoring(caps)

	var fetchCallback yangctx.FetchFunc
	if getSchemaSupport {
		if _, err := l.ctx.LoadModule(monitoringModule, ""); err == nil {
			fetchCallback = l.getSchemaFetch(ctx)
			l.ctx.SetModuleCallback(fetchCallback)
		} else {
			l.warn("schema: failed to load %s locally, get-schema fallback disabled: %v", monitoringModule, err)
			getSchemaSupport = false
		}
	}

	base, err := l.ctx.LoadModule(baseModule, "")
	if err != nil {
		return Fatal
	}
	l.enableBaseFeatures(base, caps)

	partial := false
	for _, raw := range caps {
		if isBaseOrCapabilityURI(raw) {
			continue
		}
		cap := capability.Parse(raw)
		if cap.Kind != capability.KindModule || cap.Module == "" {
			continue
		}
		if !l.loadOneModule(ctx, cap, getSchemaSupport, fetchCallback) {
			partial = true
		}
	}

	if partial {
		l.warn("schema: some modules failed to load, data from them will be ignored")
		return Partial
	}
	return Ok
}

func isBaseOrCapabilityURI(raw string) bool {
	return strings.HasPrefix(raw, "urn:ietf:params:netconf:base") ||
		strings.HasPrefix(raw, capabilityURNPrefix)
}

func (l *Loader) enableBaseFeatures(base yangctx.Module, caps []string) {
	for _, raw := range caps {
		if !strings.HasPrefix(raw, capabilityURNPrefix) {
			continue
		}
		c := capability.Parse(raw)
		feature, ok := capability.NetconfFeature(c)
		if !ok {
			continue
		}
		if name, known := featureByCapability[feature]; known {
			l.enableIfPresent(base, name)
			continue
		}
		l.enableIfPresent(base, feature)
	}
}

func (l *Loader) enableIfPresent(m yangctx.Module, feature string) {
	if !m.HasFeature(feature) {
		l.warn("schema: feature %s not declared by loaded %s module", feature, m.Name())
		return
	}
	l.ctx.EnableFeature(m, feature)
}

// loadOneModule attempts to load and enable features for a single
// module capability, retrying once with no fetch callback installed
// when the first attempt fails and get-schema is available.
func (l *Loader) loadOneModule(ctx context.Context, cap capability.Capability, getSchemaSupport bool, fetchCallback yangctx.FetchFunc) bool {
	m, err := l.ctx.LoadModule(cap.Module, cap.Revision)
	if err != nil && getSchemaSupport {
		// The retry runs with no callback at all, so only a copy the
		// context can find locally satisfies it. A callback the caller
		// installed before Load is not used: Load replaced it with the
		// in-band one and did not keep it.
		prev := l.ctx.SetModuleCallback(nil)
		m, err = l.ctx.LoadModule(cap.Module, cap.Revision)
		l.ctx.SetModuleCallback(fetchCallback)
		_ = prev
	}
	if err != nil {
		l.warn("schema: failed to load module %s@%s: %v", cap.Module, cap.Revision, err)
		return false
	}
	for _, f := range cap.Features {
		l.enableIfPresent(m, f)
	}
	return true
}

// getSchemaFetch returns a yangctx.FetchFunc that issues a <get-schema>
// RPC on the bootstrapping session itself (the "Reentrant fetch").
func (l *Loader) getSchemaFetch(ctx context.Context) yangctx.FetchFunc {
	return func(name, revision string) (string, error) {
		if l.transport == nil {
			return "", errNotFound(name)
		}
		yin, ok := l.transport.SendGetSchema(ctx, name, revision, getSchemaTimeout)
		if !ok {
			return "", errNotFound(name)
		}
		return unwrapDataElement(yin), nil
	}
}

// unwrapDataElement strips the outermost wrapping element from a
// get-schema anyxml payload by removing bytes up to and including the
// first '>' and, from the end, from the last '<' onward, leaving the
// bare YIN document.
func unwrapDataElement(raw string) string {
	start := strings.IndexByte(raw, '>')
	if start < 0 {
		return raw
	}
	end := strings.LastIndexByte(raw, '<')
	if end < 0 || end <= start {
		return raw
	}
	return raw[start+1 : end]
}

type notFoundError struct{ module string }

func (e *notFoundError) Error() string { return "schema: module " + e.module + " not found" }

func errNotFound(module string) error { return &notFoundError{module: module} }

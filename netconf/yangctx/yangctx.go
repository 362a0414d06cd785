// Package yangctx names the YANG schema-context collaborator this
// module's core depends on (spec §6). Schema storage, parsing and
// validation are out of the core's scope; this package only defines the
// interface the Schema Context Loader, RPC Builder and Reply Parser
// program against, plus a default implementation backed by
// github.com/openconfig/goyang for module-graph bookkeeping.
package yangctx

import (
	"github.com/netconf-core/netconf/netconf/common"
)

// Module is the subset of a loaded YANG module's identity the core
// needs: enough to report back what got loaded and to enable features
// on it.
type Module interface {
	Name() string
	Revision() string
	// HasFeature reports whether the named feature statement exists on
	// this module, regardless of whether it is currently enabled.
	HasFeature(name string) bool
}

// FetchFunc is invoked by a Context implementation when it needs the
// text of a module it cannot find locally. The Schema Context Loader
// installs one backed by an in-band get-schema RPC (spec §4.1
// "Reentrant fetch"); it returns the empty string and an error when the
// module cannot be obtained.
type FetchFunc func(name, revision string) (source string, err error)

// Context is the schema-context collaborator interface spec §6 names.
// A Session either owns one exclusively (created with a built-in search
// path) or receives one from the caller, in which case it is shared and
// never freed by the Session (spec §4.5).
type Context interface {
	// GetModule returns a module already present in the context, or nil
	// if it has not been loaded.
	GetModule(name, revision string) Module

	// LoadModule attempts to load a module by name (and optional
	// revision) from the context's search path, invoking the fetch
	// callback (if any) when not found locally. Returns nil, err on
	// failure.
	LoadModule(name, revision string) (Module, error)

	// ParsePath resolves a schema-node path in the given format (e.g.
	// "get", "get-config", or a YANG instance-identifier), used by the
	// Reply Parser to find the schema node that should drive how reply
	// data is decoded.
	ParsePath(path, format string) (Module, error)

	// EnableFeature turns on a feature statement previously confirmed
	// present via Module.HasFeature. The implementations in this package
	// do not check the name against the module: an unknown feature is
	// recorded as enabled like any other.
	EnableFeature(m Module, name string)

	// SetModuleCallback installs fn as the context's module-fetch
	// callback, returning the previously installed one (which may be
	// nil) so a caller can temporarily swap it out and restore it.
	SetModuleCallback(fn FetchFunc) FetchFunc

	// GetModuleCallback returns the currently installed fetch callback,
	// or nil.
	GetModuleCallback() FetchFunc

	// ParseXML parses raw reply XML against the schema node resolved for
	// the originating request, producing a generic Element tree when no
	// schema-specific decoding is needed.
	ParseXML(xml string, schemaNode Module) (*common.Element, error)

	// Validate checks tree against the schema in strict mode, returning
	// a non-nil error describing the first constraint violation found.
	Validate(tree interface{}, strict bool) error
}

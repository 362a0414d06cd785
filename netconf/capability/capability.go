// Package capability parses the NETCONF capability-URI grammar advertised
// in a peer's <hello> message: the base capabilities, the
// urn:ietf:params:netconf:capability:<name>[:version] feature URIs, and
// module-URIs carrying module=/revision=/features= query parameters.
package capability

import (
	"net/url"
	"strings"

	"github.com/netconf-core/netconf/netconf/common"
)

const (
	basePrefix    = "urn:ietf:params:netconf:base:"
	featurePrefix = "urn:ietf:params:netconf:capability:"
)

// Kind classifies a capability URI.
type Kind int

const (
	// KindBase is a urn:ietf:params:netconf:base:1.x capability, ignored
	// beyond the hello exchange.
	KindBase Kind = iota
	// KindFeature is a urn:ietf:params:netconf:capability:<name>[:version]
	// capability, mapped to a feature enabled on ietf-netconf.
	KindFeature
	// KindModule is a module-uri?module=...&revision=...&features=...
	// capability, a model load request.
	KindModule
)

// Capability is one parsed entry from a peer's advertised capability list.
type Capability struct {
	Raw  string
	Kind Kind

	// Feature name, populated for KindFeature (e.g. "candidate").
	Feature string
	// FeatureVersion, populated for KindFeature when the URI carries a
	// trailing :<version> segment (e.g. "1.1" in confirmed-commit:1.1).
	FeatureVersion string

	// Module, Revision, Features populated for KindModule.
	Module   string
	Revision string
	Features []string
}

// Parse classifies a single capability URI per the grammar in spec §6.
func Parse(raw string) Capability {
	switch {
	case strings.HasPrefix(raw, basePrefix):
		return Capability{Raw: raw, Kind: KindBase}
	case strings.HasPrefix(raw, featurePrefix):
		return parseFeature(raw)
	default:
		return parseModule(raw)
	}
}

func parseFeature(raw string) Capability {
	rest := strings.TrimPrefix(raw, featurePrefix)
	parts := strings.Split(rest, ":")
	c := Capability{Raw: raw, Kind: KindFeature, Feature: parts[0]}
	if len(parts) > 1 {
		c.FeatureVersion = parts[1]
	}
	return c
}

// parseModule parses a module-uri?module=name&revision=YYYY-MM-DD&features=f1,f2
// capability. module= is required by the invariant in spec §3; a URI
// without it is still returned, with Module == "", so callers can warn
// and skip it rather than panic.
func parseModule(raw string) Capability {
	c := Capability{Raw: raw, Kind: KindModule}

	u, err := url.Parse(raw)
	if err != nil {
		return c
	}

	q := u.Query()
	c.Module = q.Get("module")
	c.Revision = q.Get("revision")
	if f := q.Get("features"); f != "" {
		c.Features = strings.Split(f, ",")
	}
	return c
}

// ParseAll parses every capability in a hello's capability list.
func ParseAll(caps []string) []Capability {
	out := make([]Capability, 0, len(caps))
	for _, raw := range caps {
		out = append(out, Parse(raw))
	}
	return out
}

// IsBase reports whether raw is a urn:ietf:params:netconf:base:1.x capability.
func IsBase(raw string) bool {
	return strings.HasPrefix(raw, basePrefix)
}

// HasMonitoring reports whether the capability set advertises
// ietf-netconf-monitoring support (and therefore get-schema).
func HasMonitoring(caps []string) bool {
	const monitoringNS = "urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring"
	for _, raw := range caps {
		if strings.HasPrefix(raw, monitoringNS) {
			return true
		}
	}
	return false
}

// NetconfFeature maps a urn:ietf:params:netconf:capability:<name>
// URI to the ietf-netconf feature name it enables, per spec §4.1 step 2.
// confirmed-commit and validate only map when the URI names version 1.1;
// the others map regardless of version.
func NetconfFeature(c Capability) (feature string, ok bool) {
	if c.Kind != KindFeature {
		return "", false
	}
	switch c.Feature {
	case "writable-running":
		return "writable-running", true
	case "candidate":
		return "candidate", true
	case "confirmed-commit":
		if c.FeatureVersion == "1.1" {
			return "confirmed-commit", true
		}
		return "", false
	case "rollback-on-error":
		return "rollback-on-error", true
	case "validate":
		if c.FeatureVersion == "1.1" {
			return "validate", true
		}
		return "", false
	case "startup":
		return "startup", true
	case "url":
		return "url", true
	case "xpath":
		return "xpath", true
	default:
		return "", false
	}
}

// Set is a deduplicated collection of capability strings, grounded on
// nemith-netconf's CapabilitySet but simplified to the subset this module
// needs (membership test and ordered iteration for hello encoding).
type Set struct {
	order []string
	index map[string]struct{}
}

// NewSet builds a Set from a list of capability strings.
func NewSet(caps ...string) Set {
	s := Set{index: make(map[string]struct{}, len(caps))}
	for _, c := range caps {
		s.Add(c)
	}
	return s
}

// Add inserts a capability if not already present.
func (s *Set) Add(c string) {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[c]; ok {
		return
	}
	s.index[c] = struct{}{}
	s.order = append(s.order, c)
}

// Has reports whether c is present in the set.
func (s Set) Has(c string) bool {
	_, ok := s.index[c]
	return ok
}

// All returns the capabilities in insertion order.
func (s Set) All() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DefaultClientSet is the capability set this module advertises by
// default in its outgoing <hello>.
var DefaultClientSet = NewSet(common.DefaultCapabilities...)

package schema

import (
	"context"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/netconf-core/netconf/netconf/yangctx"
)

func seedBase(ctx *yangctx.FakeContext, features ...string) {
	m := &yangctx.FakeModule{ModuleName: "ietf-netconf", Features: make(map[string]struct{})}
	for _, f := range features {
		m.Features[f] = struct{}{}
	}
	ctx.Seed(m)
}

func TestLoadOkNoMonitoring(t *testing.T) {
	fc := yangctx.NewFakeContext()
	seedBase(fc, "writable-running")
	fc.Seed(&yangctx.FakeModule{ModuleName: "acme", ModuleRevision: "2021-05-01", Features: map[string]struct{}{"f1": {}}})

	l := NewLoader(fc, nil, nil)
	caps := []string{
		"urn:ietf:params:netconf:base:1.1",
		"urn:ietf:params:netconf:capability:writable-running:1.0",
		"acme?module=acme&revision=2021-05-01&features=f1",
	}
	status := l.Load(context.Background(), caps)
	assert.Equal(t, Ok, status)
	assert.True(t, fc.FeatureEnabled("ietf-netconf", "writable-running"))
	assert.True(t, fc.FeatureEnabled("acme", "f1"))
}

func TestLoadFatalWithoutBase(t *testing.T) {
	fc := yangctx.NewFakeContext() // base not seeded, no fetch callback
	l := NewLoader(fc, nil, nil)
	status := l.Load(context.Background(), []string{"urn:ietf:params:netconf:base:1.0"})
	assert.Equal(t, Fatal, status)
}

func TestLoadPartialWhenNonBaseModuleMissing(t *testing.T) {
	fc := yangctx.NewFakeContext()
	seedBase(fc)
	// "widget" is never seeded and no fetch callback is installed.
	l := NewLoader(fc, nil, nil)
	caps := []string{
		"urn:ietf:params:netconf:base:1.0",
		"widget?module=widget&revision=2020-01-01",
	}
	status := l.Load(context.Background(), caps)
	assert.Equal(t, Partial, status)
}

type fakeTransport struct {
	response string
	ok       bool
	calls    int
}

func (f *fakeTransport) SendGetSchema(ctx context.Context, identifier, version string, budget time.Duration) (string, bool) {
	f.calls++
	return f.response, f.ok
}

func TestLoadGetSchemaFallback(t *testing.T) {
	fc := yangctx.NewFakeContext()
	seedBase(fc)
	fc.Seed(&yangctx.FakeModule{ModuleName: "ietf-netconf-monitoring", ModuleRevision: "2010-10-04"})

	ft := &fakeTransport{response: `<data><module>contents</module></data>`, ok: true}
	l := NewLoader(fc, ft, nil)

	caps := []string{
		"urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring?module=ietf-netconf-monitoring&revision=2010-10-04",
		"urn:ietf:params:netconf:base:1.1",
		"acme?module=acme&revision=2021-05-01&features=f1,f2",
	}
	status := l.Load(context.Background(), caps)
	assert.Equal(t, Ok, status)
	assert.Equal(t, 1, ft.calls)

	m := fc.GetModule("acme", "")
	assert.NotNil(t, m)
}

func TestLoadGetSchemaFallbackFails(t *testing.T) {
	fc := yangctx.NewFakeContext()
	seedBase(fc)
	fc.Seed(&yangctx.FakeModule{ModuleName: "ietf-netconf-monitoring"})

	ft := &fakeTransport{ok: false}
	l := NewLoader(fc, ft, nil)

	caps := []string{
		"urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring?module=ietf-netconf-monitoring&revision=2010-10-04",
		"acme?module=acme&revision=2021-05-01",
	}
	status := l.Load(context.Background(), caps)
	assert.Equal(t, Partial, status)
}

func TestUnwrapDataElement(t *testing.T) {
	in := `<data xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><module name="acme"/></data>`
	out := unwrapDataElement(in)
	assert.Equal(t, `<module name="acme"/>`, out)
}

func TestUnwrapDataElementNoAngleBrackets(t *testing.T) {
	assert.Equal(t, "plain", unwrapDataElement("plain"))
}

func TestMissingFeatureIsWarningNotFailure(t *testing.T) {
	fc := yangctx.NewFakeContext()
	seedBase(fc) // no features declared
	var warnings []string
	l := NewLoader(fc, nil, func(format string, args ...interface{}) {
		warnings = append(warnings, format)
	})
	status := l.Load(context.Background(), []string{
		"urn:ietf:params:netconf:capability:candidate:1.0",
	})
	assert.Equal(t, Ok, status)
	assert.NotEmpty(t, warnings)
}

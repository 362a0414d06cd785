package yangctx

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	assert "github.com/stretchr/testify/require"
)

const testModuleSource = `module ietf-netconf {
  namespace "urn:ietf:params:xml:ns:netconf:base:1.0";
  prefix nc;

  revision 2011-06-01;

  feature candidate {
    description "Candidate configuration datastore support.";
  }
  feature validate {
    description "Validate capability.";
  }
}
`

func writeTestModule(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ietf-netconf.yang")
	assert.NoError(t, os.WriteFile(path, []byte(testModuleSource), 0o600))
	return path
}

func TestGoyangContextLoadModuleFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir)

	ctx := NewGoyangContext(dir)

	m, err := ctx.LoadModule("ietf-netconf", "")
	assert.NoError(t, err)
	assert.Equal(t, "ietf-netconf", m.Name())
	assert.Equal(t, "2011-06-01", m.Revision())
	assert.True(t, m.HasFeature("candidate"))
	assert.False(t, m.HasFeature("no-such-feature"))
}

func TestGoyangContextGetModuleBeforeLoad(t *testing.T) {
	ctx := NewGoyangContext(t.TempDir())
	assert.Nil(t, ctx.GetModule("ietf-netconf", ""))
}

func TestGoyangContextEnableFeature(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir)
	ctx := NewGoyangContext(dir)

	m, err := ctx.LoadModule("ietf-netconf", "")
	assert.NoError(t, err)

	assert.False(t, ctx.FeatureEnabled("ietf-netconf", "candidate"))
	ctx.EnableFeature(m, "candidate")
	assert.True(t, ctx.FeatureEnabled("ietf-netconf", "candidate"))
}

func TestGoyangContextReentrantFetch(t *testing.T) {
	ctx := NewGoyangContext(t.TempDir())

	fetchCalls := 0
	prev := ctx.SetModuleCallback(func(name, revision string) (string, error) {
		fetchCalls++
		assert.Equal(t, "ietf-netconf", name)
		return testModuleSource, nil
	})
	assert.Nil(t, prev)
	assert.NotNil(t, ctx.GetModuleCallback())

	m, err := ctx.LoadModule("ietf-netconf", "")
	assert.NoError(t, err)
	assert.Equal(t, "ietf-netconf", m.Name())
	assert.Equal(t, 1, fetchCalls)

	// Swap-and-restore: a caller installing a temporary callback gets the
	// previous one back so it can be restored afterwards.
	restored := ctx.SetModuleCallback(nil)
	assert.NotNil(t, restored)
	assert.Nil(t, ctx.GetModuleCallback())
}

func TestGoyangContextLoadModuleNotFound(t *testing.T) {
	ctx := NewGoyangContext(t.TempDir())
	_, err := ctx.LoadModule("no-such-module", "")
	assert.Error(t, err)
}

func TestGoyangContextFetchFailurePropagates(t *testing.T) {
	ctx := NewGoyangContext(t.TempDir())
	ctx.SetModuleCallback(func(name, revision string) (string, error) {
		return "", fmt.Errorf("get-schema: rpc-error")
	})
	_, err := ctx.LoadModule("ietf-netconf", "")
	assert.Error(t, err)
}

func TestFakeContextSeedAndLoad(t *testing.T) {
	ctx := NewFakeContext()
	ctx.Seed(&FakeModule{ModuleName: "ietf-netconf-monitoring", ModuleRevision: "2010-10-04"})

	assert.Nil(t, ctx.GetModule("nonexistent", ""))

	m, err := ctx.LoadModule("ietf-netconf-monitoring", "")
	assert.NoError(t, err)
	assert.Equal(t, "ietf-netconf-monitoring", m.Name())

	ctx.EnableFeature(m, "some-feature")
	assert.True(t, ctx.FeatureEnabled("ietf-netconf-monitoring", "some-feature"))
}

func TestFakeContextLoadModuleViaFetch(t *testing.T) {
	ctx := NewFakeContext()
	ctx.SetModuleCallback(func(name, revision string) (string, error) {
		return "<module/>", nil
	})
	m, err := ctx.LoadModule("ietf-netconf", "")
	assert.NoError(t, err)
	assert.Equal(t, "ietf-netconf", m.Name())
}

func TestFakeContextLoadModuleNoFetchConfigured(t *testing.T) {
	ctx := NewFakeContext()
	_, err := ctx.LoadModule("unseeded", "")
	assert.Error(t, err)
}

func TestParseXMLProducesElement(t *testing.T) {
	ctx := NewFakeContext()
	elem, err := ctx.ParseXML(`<data xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><top/></data>`, nil)
	assert.NoError(t, err)
	assert.Equal(t, "data", elem.XMLName.Local)
}

func TestValidateRejectsNonElement(t *testing.T) {
	ctx := NewFakeContext()
	assert.Error(t, ctx.Validate("not an element", true))
}

func TestValidateAcceptsNamedElement(t *testing.T) {
	ctx := NewFakeContext()
	elem, err := ctx.ParseXML(`<ok/>`, nil)
	assert.NoError(t, err)
	assert.NoError(t, ctx.Validate(elem, true))
}

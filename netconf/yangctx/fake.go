package yangctx

import (
	"fmt"

	"github.com/netconf-core/netconf/netconf/common"
)

// FakeModule is a Module whose identity and feature set are set directly
// by a test, rather than parsed from YANG source.
type FakeModule struct {
	ModuleName     string
	ModuleRevision string
	Features       map[string]struct{}
}

func (f *FakeModule) Name() string     { return f.ModuleName }
func (f *FakeModule) Revision() string { return f.ModuleRevision }

func (f *FakeModule) HasFeature(name string) bool {
	_, ok := f.Features[name]
	return ok
}

// FakeContext is an in-memory Context for tests that exercise the
// Schema Context Loader, RPC Builder or Reply Parser without needing a
// real YANG toolchain. Modules are pre-seeded by the test via Seed;
// LoadModule never fetches over the network but will invoke an
// installed callback if one is set, mirroring the reentrant-fetch
// contract so session/schema tests can exercise that path too.
type FakeContext struct {
	modules map[string]*FakeModule
	enabled map[string]map[string]struct{}
	fetch   FetchFunc
}

// NewFakeContext returns an empty FakeContext.
func NewFakeContext() *FakeContext {
	return &FakeContext{
		modules: make(map[string]*FakeModule),
		enabled: make(map[string]map[string]struct{}),
	}
}

// Seed registers m so GetModule/LoadModule can find it without a fetch.
func (c *FakeContext) Seed(m *FakeModule) {
	c.modules[m.ModuleName] = m
}

func (c *FakeContext) GetModule(name, revision string) Module {
	m, ok := c.modules[name]
	if !ok {
		return nil
	}
	if revision != "" && m.ModuleRevision != revision {
		return nil
	}
	return m
}

func (c *FakeContext) LoadModule(name, revision string) (Module, error) {
	if m := c.GetModule(name, revision); m != nil {
		return m, nil
	}
	if c.fetch == nil {
		return nil, fmt.Errorf("yangctx: fake: module %s not seeded and no fetch callback set", name)
	}
	source, err := c.fetch(name, revision)
	if err != nil {
		return nil, err
	}
	m := &FakeModule{ModuleName: name, ModuleRevision: revision, Features: make(map[string]struct{})}
	c.Seed(m)
	_ = source // the fake doesn't parse YANG source, it just records that a fetch happened
	return m, nil
}

func (c *FakeContext) ParsePath(path, format string) (Module, error) {
	_ = format
	for _, m := range c.modules {
		return m, nil
	}
	return nil, fmt.Errorf("yangctx: fake: no module seeded to resolve path %q", path)
}

func (c *FakeContext) EnableFeature(m Module, name string) {
	if m == nil {
		return
	}
	set, ok := c.enabled[m.Name()]
	if !ok {
		set = make(map[string]struct{})
		c.enabled[m.Name()] = set
	}
	set[name] = struct{}{}
}

func (c *FakeContext) FeatureEnabled(moduleName, feature string) bool {
	set, ok := c.enabled[moduleName]
	if !ok {
		return false
	}
	_, ok = set[feature]
	return ok
}

func (c *FakeContext) SetModuleCallback(fn FetchFunc) FetchFunc {
	prev := c.fetch
	c.fetch = fn
	return prev
}

func (c *FakeContext) GetModuleCallback() FetchFunc { return c.fetch }

func (c *FakeContext) ParseXML(x string, schemaNode Module) (*common.Element, error) {
	_ = schemaNode
	return parseElement(x)
}

func (c *FakeContext) Validate(tree interface{}, strict bool) error {
	_ = strict
	elem, ok := tree.(*common.Element)
	if !ok || elem == nil {
		return fmt.Errorf("yangctx: fake: validate: expected *common.Element, got %T", tree)
	}
	if elem.XMLName.Local == "" {
		return fmt.Errorf("yangctx: fake: validate: tree has no root element name")
	}
	return nil
}

var (
	_ Context = (*GoyangContext)(nil)
	_ Context = (*FakeContext)(nil)
)

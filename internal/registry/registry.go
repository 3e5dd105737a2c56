// Package registry knows every benchmark test, caches their descriptors and
// hands out one live instance per test id.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spboyer/wpbench/internal/database"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/scoring"
	"github.com/spboyer/wpbench/internal/suite"
)

// ErrUnknownTest is returned for ids the registry has no constructor for.
var ErrUnknownTest = errors.New("unknown test")

// Deps are the shared services tests are constructed from.
type Deps struct {
	DB            *database.DB
	Guard         *guard.Guard
	TempDir       string
	MemoryLimitMB int

	// Params maps a test id to its params block.
	Params map[string]map[string]any
}

// Env returns the suite environment for test id.
func (d Deps) Env(id string) suite.Env {
	return suite.Env{
		DB:            d.DB,
		Guard:         d.Guard,
		TempDir:       d.TempDir,
		MemoryLimitMB: d.MemoryLimitMB,
		Params:        d.Params[id],
	}
}

// Constructor builds a test from the shared dependencies.
type Constructor func(Deps) (suite.Test, error)

func adapt[T suite.Test](id string, build func(suite.Env) (T, error)) Constructor {
	return func(d Deps) (suite.Test, error) {
		t, err := build(d.Env(id))
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// Builtin returns the constructor table of the shipped tests.
func Builtin() map[string]Constructor {
	return map[string]Constructor{
		suite.IDCPU:         adapt(suite.IDCPU, suite.NewCPU),
		suite.IDMemory:      adapt(suite.IDMemory, suite.NewMemory),
		suite.IDFile:        adapt(suite.IDFile, suite.NewFile),
		suite.IDDBRead:      adapt(suite.IDDBRead, suite.NewDBRead),
		suite.IDDBWrite:     adapt(suite.IDDBWrite, suite.NewDBWrite),
		suite.IDObjectCache: adapt(suite.IDObjectCache, suite.NewObjectCache),
		suite.IDHTTPRequest: adapt(suite.IDHTTPRequest, suite.NewHTTPRequest),
	}
}

// Registry caches descriptors and instances. It is safe for concurrent use.
type Registry struct {
	deps         Deps
	constructors map[string]Constructor

	mu        sync.Mutex
	available []models.TestDescriptor
	instances map[string]suite.Test
}

// New returns a registry over the builtin tests.
func New(deps Deps) *Registry {
	return NewWithConstructors(deps, Builtin())
}

// NewWithConstructors returns a registry over an explicit constructor table.
func NewWithConstructors(deps Deps, constructors map[string]Constructor) *Registry {
	return &Registry{
		deps:         deps,
		constructors: constructors,
		instances:    make(map[string]suite.Test),
	}
}

// Available returns the descriptors of every constructible test, sorted by
// id. The list is computed once.
func (r *Registry) Available() []models.TestDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.available != nil {
		return append([]models.TestDescriptor(nil), r.available...)
	}

	ids := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := make([]models.TestDescriptor, 0, len(ids))
	for _, id := range ids {
		t, err := r.instanceLocked(id)
		if err != nil {
			slog.Warn("Skipping test that failed to construct", "test", id, "error", err)
			continue
		}
		info := t.Info()
		if info.ID == "" {
			slog.Warn("Skipping test with an empty id", "key", id)
			continue
		}
		if err := info.Validate(); err != nil {
			slog.Warn("Skipping test with an invalid descriptor", "test", id, "error", err)
			continue
		}
		list = append(list, info)
	}

	r.available = list
	return append([]models.TestDescriptor(nil), list...)
}

// IDs returns the ids of the available tests, sorted.
func (r *Registry) IDs() []string {
	available := r.Available()
	ids := make([]string, 0, len(available))
	for _, d := range available {
		ids = append(ids, d.ID)
	}
	return ids
}

// Descriptor returns the descriptor for id.
func (r *Registry) Descriptor(id string) (models.TestDescriptor, bool) {
	for _, d := range r.Available() {
		if d.ID == id {
			return d, true
		}
	}
	return models.TestDescriptor{}, false
}

// Instance returns the live test for id, constructing it on first use.
func (r *Registry) Instance(id string) (suite.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instanceLocked(id)
}

func (r *Registry) instanceLocked(id string) (suite.Test, error) {
	if t, ok := r.instances[id]; ok {
		return t, nil
	}

	build, ok := r.constructors[id]
	if !ok {
		slog.Warn("Requested unknown test", "test", id)
		return nil, fmt.Errorf("%w: %q", ErrUnknownTest, id)
	}

	t, err := build(r.deps)
	if err != nil {
		return nil, fmt.Errorf("constructing test %s: %w", id, err)
	}
	r.instances[id] = t
	return t, nil
}

// Scorer resolves id to its scorer. It satisfies scoring.Lookup.
func (r *Registry) Scorer(id string) (scoring.Scorer, error) {
	return r.Instance(id)
}

// DefaultConfig returns every available test's default value.
func (r *Registry) DefaultConfig() map[string]int {
	return r.ClampConfig(nil)
}

// ClampConfig returns a config with one entry per available test: the value
// from cfg clamped to the test's bounds, or its default when absent. Keys
// that match no test are dropped.
func (r *Registry) ClampConfig(cfg map[string]int) map[string]int {
	out := make(map[string]int)
	for _, d := range r.Available() {
		v, ok := cfg[d.ID]
		if !ok {
			v = d.DefaultValue
		}
		out[d.ID] = d.Clamp(v)
	}
	for id := range cfg {
		if _, ok := out[id]; !ok {
			slog.Debug("Ignoring config for unknown test", "test", id)
		}
	}
	return out
}

// DefaultSelection returns the ids of the non-experimental tests.
func (r *Registry) DefaultSelection() []string {
	var ids []string
	for _, d := range r.Available() {
		if !d.Experimental {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Close releases resources held by constructed tests.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var merr *multierror.Error
	for id, t := range r.instances {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				merr = multierror.Append(merr, fmt.Errorf("closing %s: %w", id, err))
			}
		}
	}
	r.instances = make(map[string]suite.Test)
	r.available = nil
	return merr.ErrorOrNil()
}

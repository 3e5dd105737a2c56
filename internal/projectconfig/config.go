// Package projectconfig provides the ProjectConfig struct and loader for
// .wpbench.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/spboyer/wpbench/internal/database"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/hooks"
	"github.com/spboyer/wpbench/internal/store"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".wpbench.yaml"

// Default values for project configuration. These are the single source of
// truth: New() references them and no other code should duplicate them.
const (
	DefaultResultsDir = ".wpbench/results"

	DefaultDatabaseDriver = database.DriverSQLite
	DefaultDatabaseDSN    = ".wpbench/wpbench.db"

	DefaultFixtureOptions = 200
	DefaultFixturePosts   = 500

	DefaultStoreBackend = StoreFile
	DefaultMemoTTL      = 5 * time.Minute

	DefaultMaxIterations = guard.DefaultMaxIterations
)

// Store backends.
const (
	StoreFile = "file"
	StoreSQL  = "sql"
	StoreBlob = "blob"
)

// PathsConfig holds directory paths.
type PathsConfig struct {
	// Results is where the file store keeps run records.
	Results string `yaml:"results,omitempty"`
	// Temp is where the file test writes; empty means the OS temp directory.
	Temp string `yaml:"temp,omitempty"`
}

// FixturesConfig sizes the seeded read-test tables.
type FixturesConfig struct {
	Options int `yaml:"options,omitempty"`
	Posts   int `yaml:"posts,omitempty"`
}

// StoreConfig selects and configures the result store backend.
type StoreConfig struct {
	Backend  string           `yaml:"backend,omitempty"`
	Compress *bool            `yaml:"compress,omitempty"`
	MemoTTL  time.Duration    `yaml:"memo_ttl,omitempty"`
	Blob     store.BlobConfig `yaml:"blob,omitempty"`
}

// TestConfig holds one test's settings.
type TestConfig struct {
	// Value is the default configuration value for runs.
	Value int `yaml:"value,omitempty"`
	// Target overrides the test's target seconds per unit of work.
	Target float64 `yaml:"target,omitempty"`
	// Weight overrides the test's share of the score. Zero excludes it.
	Weight *float64 `yaml:"weight,omitempty"`
	// Params are test-specific settings such as a cache address or URL.
	Params map[string]any `yaml:"params,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .wpbench.yaml.
type ProjectConfig struct {
	Paths         PathsConfig           `yaml:"paths,omitempty"`
	Database      database.Config       `yaml:"database,omitempty"`
	Fixtures      FixturesConfig        `yaml:"fixtures,omitempty"`
	Store         StoreConfig           `yaml:"store,omitempty"`
	Guard         guard.Limits          `yaml:"guard,omitempty"`
	MemoryLimitMB int                   `yaml:"memory_limit_mb,omitempty"`
	Selection     []string              `yaml:"selection,omitempty"`
	Tests         map[string]TestConfig `yaml:"tests,omitempty"`
	Hooks         hooks.HooksConfig     `yaml:"hooks,omitempty"`

	// Source is the file the configuration was read from, if any.
	Source string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Results: DefaultResultsDir,
		},
		Database: database.Config{
			Driver:      DefaultDatabaseDriver,
			DSN:         DefaultDatabaseDSN,
			TablePrefix: database.DefaultTablePrefix,
		},
		Fixtures: FixturesConfig{
			Options: DefaultFixtureOptions,
			Posts:   DefaultFixturePosts,
		},
		Store: StoreConfig{
			Backend:  DefaultStoreBackend,
			Compress: boolPtr(false),
			MemoTTL:  DefaultMemoTTL,
		},
		Guard: guard.Limits{
			MaxIterations: DefaultMaxIterations,
		},
		Tests: map[string]TestConfig{},
	}
}

// Load finds .wpbench.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, path, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	if err := apply(cfg, data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// LoadFile reads the configuration at path. Unlike Load, a missing file is
// an error.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := New()
	if err := apply(cfg, data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

func apply(cfg *ProjectConfig, data []byte) error {
	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return nil
}

// findConfigFile walks up from dir looking for .wpbench.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, string, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Results != "" {
		dst.Paths.Results = src.Paths.Results
	}
	if src.Paths.Temp != "" {
		dst.Paths.Temp = src.Paths.Temp
	}

	// Database
	if src.Database.Driver != "" {
		dst.Database.Driver = src.Database.Driver
	}
	if src.Database.DSN != "" {
		dst.Database.DSN = src.Database.DSN
	}
	if src.Database.TablePrefix != "" {
		dst.Database.TablePrefix = src.Database.TablePrefix
	}
	if src.Database.MaxOpenConns != 0 {
		dst.Database.MaxOpenConns = src.Database.MaxOpenConns
	}

	// Fixtures
	if src.Fixtures.Options != 0 {
		dst.Fixtures.Options = src.Fixtures.Options
	}
	if src.Fixtures.Posts != 0 {
		dst.Fixtures.Posts = src.Fixtures.Posts
	}

	// Store
	if src.Store.Backend != "" {
		dst.Store.Backend = src.Store.Backend
	}
	if src.Store.Compress != nil {
		dst.Store.Compress = src.Store.Compress
	}
	if src.Store.MemoTTL != 0 {
		dst.Store.MemoTTL = src.Store.MemoTTL
	}
	if src.Store.Blob != (store.BlobConfig{}) {
		dst.Store.Blob = src.Store.Blob
	}

	// Guard
	if src.Guard.MaxIterations != 0 {
		dst.Guard.MaxIterations = src.Guard.MaxIterations
	}
	if src.Guard.MaxDuration != 0 {
		dst.Guard.MaxDuration = src.Guard.MaxDuration
	}
	if src.Guard.MaxMemoryMB != 0 {
		dst.Guard.MaxMemoryMB = src.Guard.MaxMemoryMB
	}
	if src.Guard.MaxLoad != 0 {
		dst.Guard.MaxLoad = src.Guard.MaxLoad
	}

	if src.MemoryLimitMB != 0 {
		dst.MemoryLimitMB = src.MemoryLimitMB
	}
	if len(src.Selection) > 0 {
		dst.Selection = src.Selection
	}

	// Hooks replace per lifecycle point.
	if len(src.Hooks.BeforeRun) > 0 {
		dst.Hooks.BeforeRun = src.Hooks.BeforeRun
	}
	if len(src.Hooks.AfterRun) > 0 {
		dst.Hooks.AfterRun = src.Hooks.AfterRun
	}
	if len(src.Hooks.BeforeTest) > 0 {
		dst.Hooks.BeforeTest = src.Hooks.BeforeTest
	}
	if len(src.Hooks.AfterTest) > 0 {
		dst.Hooks.AfterTest = src.Hooks.AfterTest
	}

	// Tests
	if len(src.Tests) > 0 {
		if dst.Tests == nil {
			dst.Tests = map[string]TestConfig{}
		}
		maps.Copy(dst.Tests, src.Tests)
	}
}

// Values returns the configured default value per test id.
func (c *ProjectConfig) Values() map[string]int {
	values := make(map[string]int)
	for id, tc := range c.Tests {
		if tc.Value != 0 {
			values[id] = tc.Value
		}
	}
	return values
}

// Params returns each test's params block with target and weight folded in,
// the shape test constructors decode.
func (c *ProjectConfig) Params() map[string]map[string]any {
	params := make(map[string]map[string]any, len(c.Tests))
	for id, tc := range c.Tests {
		p := make(map[string]any, len(tc.Params)+2)
		maps.Copy(p, tc.Params)
		if tc.Target != 0 {
			p["target"] = tc.Target
		}
		if tc.Weight != nil {
			p["weight"] = *tc.Weight
		}
		if len(p) > 0 {
			params[id] = p
		}
	}
	return params
}

// FixtureSize returns the configured fixture size.
func (c *ProjectConfig) FixtureSize() database.FixtureSize {
	return database.FixtureSize{Options: c.Fixtures.Options, Posts: c.Fixtures.Posts}
}

// Resolve makes relative paths absolute against the directory of the
// configuration file, or against the working directory without one.
func (c *ProjectConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if c.Source != "" {
		return filepath.Join(filepath.Dir(c.Source), path)
	}
	return path
}

func boolPtr(b bool) *bool {
	return &b
}

// Package suite contains the benchmark test units. Each unit turns a single
// positive configuration value into a bounded workload and reports a
// models.TestResult; units never return Go errors or panic past Run.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spboyer/wpbench/internal/database"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/scoring"
)

// Test ids. They are stable and used as map keys in configs and results.
const (
	IDCPU         = "cpu"
	IDMemory      = "memory"
	IDFile        = "file"
	IDDBRead      = "db_read"
	IDDBWrite     = "db_write"
	IDObjectCache = "object_cache"
	IDHTTPRequest = "http_request"
)

// guardInterval is how many inner iterations pass between guard checks.
const guardInterval = 1000

// maxCollectedErrors bounds how many per-cycle errors a result reports.
const maxCollectedErrors = 20

// Test is the contract every benchmark unit implements.
type Test interface {
	// Info returns the test's static metadata. It has no side effects.
	Info() models.TestDescriptor

	// Run executes the workload sized by value.
	Run(ctx context.Context, value int) models.TestResult

	// Score rates a clean result against the test's target-time curve.
	Score(result models.TestResult, value int) (models.SubScore, error)
}

// Env carries the shared services test units are built from.
type Env struct {
	DB    *database.DB
	Guard *guard.Guard

	// TempDir is where file tests create their scratch files. Empty means
	// the OS temp directory.
	TempDir string

	// MemoryLimitMB is the configured memory ceiling for the memory test.
	MemoryLimitMB int

	// Params holds the per-test `params` block from .wpbench.yaml.
	Params map[string]any
}

func (e Env) guardOrDefault() *guard.Guard {
	if e.Guard == nil {
		return guard.Default()
	}
	return e.Guard
}

// Scoring configures a test's target-time curve. Target is seconds per
// test-specific unit of work.
type Scoring struct {
	Target float64 `mapstructure:"target"`
	Weight float64 `mapstructure:"weight"`
}

// rate scores actual seconds against Target*units.
func (s Scoring) rate(id string, actual, units float64) (models.SubScore, error) {
	target := s.Target * units
	if target <= 0 {
		return models.SubScore{}, fmt.Errorf("%s: no target time for %.0f units of work", id, units)
	}

	weight := s.Weight
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}

	return models.SubScore{
		Score:  scoring.Curve(actual, target),
		Weight: weight,
		Target: target,
	}, nil
}

// decodeParams decodes a test's params block onto out, which already holds
// the defaults.
func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(params)
}

// invalidValue is the result for a non-positive configuration value.
func invalidValue(id string, value int) models.TestResult {
	return models.ErrorResult(fmt.Sprintf("invalid %s configuration value %d: must be positive", id, value))
}

// recoverInto converts a panic inside Run into an error result.
func recoverInto(id string, res *models.TestResult) {
	if r := recover(); r != nil {
		slog.Error("Test panicked", "test", id, "panic", r, "stack", string(debug.Stack()))
		res.Error = fmt.Sprintf("%s: unexpected failure: %v", id, r)
	}
}

// checkpoint checks ctx on every iteration and the guard every
// guardInterval iterations.
func checkpoint(ctx context.Context, g *guard.Guard, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i%guardInterval != 0 {
		return nil
	}
	return g.CheckIterations(i)
}

// errorList accumulates per-cycle failures into one semicolon-joined string.
type errorList struct {
	merr    *multierror.Error
	dropped int
}

func (l *errorList) Add(err error) {
	if err == nil {
		return
	}
	if l.merr != nil && len(l.merr.Errors) >= maxCollectedErrors {
		l.dropped++
		return
	}
	l.merr = multierror.Append(l.merr, err)
}

func (l *errorList) Len() int {
	if l.merr == nil {
		return 0
	}
	return len(l.merr.Errors) + l.dropped
}

func (l *errorList) String() string {
	if l.merr == nil {
		return ""
	}
	l.merr.ErrorFormat = joinErrors
	s := l.merr.Error()
	if l.dropped > 0 {
		s += fmt.Sprintf("; ... and %d more", l.dropped)
	}
	return s
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// uniqueSuffix returns a short suffix for per-run table, file and key names.
func uniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func tempDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

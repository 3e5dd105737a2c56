// Package guard provides cooperative resource checks that long-running test
// loops poll to abort runaway work.
package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxIterations is the iteration ceiling used when none is configured.
const DefaultMaxIterations = 10_000_000

var (
	ErrMaxIterationsReached = errors.New("max iterations reached")
	ErrMaxTimeReached       = errors.New("max execution time reached")
	ErrMaxMemoryReached     = errors.New("max memory usage reached")
	ErrMaxLoadReached       = errors.New("max CPU load reached")
)

// Limits configures a Guard. A zero value for any limit other than
// MaxIterations disables that check.
type Limits struct {
	MaxIterations int           `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	MaxDuration   time.Duration `yaml:"max_duration,omitempty" json:"max_duration,omitempty"`
	MaxMemoryMB   int           `yaml:"max_memory_mb,omitempty" json:"max_memory_mb,omitempty"`
	MaxLoad       float64       `yaml:"max_load,omitempty" json:"max_load,omitempty"`
}

// Guard checks counters and process state against configured limits.
type Guard struct {
	limits Limits

	// loadAvg is swapped out in tests.
	loadAvg func() (float64, bool)
}

// New returns a Guard for limits. A non-positive MaxIterations falls back to
// DefaultMaxIterations.
func New(limits Limits) *Guard {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = DefaultMaxIterations
	}
	return &Guard{limits: limits, loadAvg: readLoadAvg}
}

// Default returns a Guard with only the default iteration ceiling.
func Default() *Guard {
	return New(Limits{})
}

// Limits returns the effective limits.
func (g *Guard) Limits() Limits {
	return g.limits
}

// CheckIterations returns ErrMaxIterationsReached iff count exceeds the
// ceiling. overrideMax, when given and positive, replaces the configured
// ceiling for this call.
func (g *Guard) CheckIterations(count int, overrideMax ...int) error {
	ceiling := g.limits.MaxIterations
	if len(overrideMax) > 0 && overrideMax[0] > 0 {
		ceiling = overrideMax[0]
	}
	if count <= ceiling {
		return nil
	}

	slog.Warn("Resource guard tripped", "check", "iterations", "count", count, "max", ceiling)
	return fmt.Errorf("%w: %d > %d", ErrMaxIterationsReached, count, ceiling)
}

// CheckElapsed returns ErrMaxTimeReached once more than MaxDuration has
// passed since start.
func (g *Guard) CheckElapsed(start time.Time) error {
	if g.limits.MaxDuration <= 0 {
		return nil
	}
	elapsed := time.Since(start)
	if elapsed <= g.limits.MaxDuration {
		return nil
	}

	slog.Warn("Resource guard tripped", "check", "elapsed", "elapsed", elapsed, "max", g.limits.MaxDuration)
	return fmt.Errorf("%w: %s > %s", ErrMaxTimeReached, elapsed.Round(time.Millisecond), g.limits.MaxDuration)
}

// CheckMemory returns ErrMaxMemoryReached when the memory obtained from the
// OS exceeds MaxMemoryMB.
func (g *Guard) CheckMemory() error {
	if g.limits.MaxMemoryMB <= 0 {
		return nil
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usedMB := float64(ms.Sys) / (1 << 20)
	if usedMB <= float64(g.limits.MaxMemoryMB) {
		return nil
	}

	slog.Warn("Resource guard tripped", "check", "memory", "used_mb", usedMB, "max_mb", g.limits.MaxMemoryMB)
	return fmt.Errorf("%w: %.1fMB > %dMB", ErrMaxMemoryReached, usedMB, g.limits.MaxMemoryMB)
}

// CheckLoad returns ErrMaxLoadReached when the one-minute load average
// exceeds MaxLoad. Platforms without /proc/loadavg never trip.
func (g *Guard) CheckLoad() error {
	if g.limits.MaxLoad <= 0 {
		return nil
	}
	load, ok := g.loadAvg()
	if !ok || load <= g.limits.MaxLoad {
		return nil
	}

	slog.Warn("Resource guard tripped", "check", "load", "load", load, "max", g.limits.MaxLoad)
	return fmt.Errorf("%w: %.2f > %.2f", ErrMaxLoadReached, load, g.limits.MaxLoad)
}

// IsTripped reports whether err came from any guard check.
func IsTripped(err error) bool {
	return errors.Is(err, ErrMaxIterationsReached) ||
		errors.Is(err, ErrMaxTimeReached) ||
		errors.Is(err, ErrMaxMemoryReached) ||
		errors.Is(err, ErrMaxLoadReached)
}

func readLoadAvg() (float64, bool) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

package suite

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spboyer/wpbench/internal/models"
)

var memoryInfo = models.TestDescriptor{
	ID:           IDMemory,
	Name:         "Memory",
	Description:  "Allocates, touches, hashes and releases one large buffer.",
	ConfigLabel:  "Allocation size",
	ConfigUnit:   "KB",
	DefaultValue: 51_200,
	MinValue:     1_024,
	MaxValue:     1_048_576,
}

const (
	// memoryHeadroom is the share of the memory ceiling a single allocation
	// may use.
	memoryHeadroom = 0.8
	pageSize       = 4096
	mib            = 1 << 20
)

// MemoryTest measures how quickly the process can obtain and release memory.
type MemoryTest struct {
	scoring Scoring
	limitMB int

	// memLimit reports the runtime soft memory limit in bytes.
	memLimit func() int64
}

// NewMemory builds the memory test. Params: target (seconds per 100 MB),
// weight.
func NewMemory(env Env) (*MemoryTest, error) {
	s := Scoring{Target: 0.05, Weight: 0.15}
	if err := decodeParams(env.Params, &s); err != nil {
		return nil, fmt.Errorf("memory params: %w", err)
	}
	return &MemoryTest{
		scoring:  s,
		limitMB:  env.MemoryLimitMB,
		memLimit: func() int64 { return debug.SetMemoryLimit(-1) },
	}, nil
}

func (t *MemoryTest) Info() models.TestDescriptor {
	return memoryInfo
}

// ceilingBytes is the smaller of GOMEMLIMIT and the configured limit, or 0
// when neither is set.
func (t *MemoryTest) ceilingBytes() int64 {
	var ceiling int64
	if limit := t.memLimit(); limit > 0 && limit < math.MaxInt64 {
		ceiling = limit
	}
	if t.limitMB > 0 {
		configured := int64(t.limitMB) * mib
		if ceiling == 0 || configured < ceiling {
			ceiling = configured
		}
	}
	return ceiling
}

func (t *MemoryTest) Run(ctx context.Context, value int) (res models.TestResult) {
	if value <= 0 {
		return invalidValue(IDMemory, value)
	}
	defer recoverInto(IDMemory, &res)

	stats := &models.MemoryStats{RequestedKB: value}
	res.Memory = stats

	allocKB := value
	if ceiling := t.ceilingBytes(); ceiling > 0 {
		maxKB := int(float64(ceiling) * memoryHeadroom / 1024)
		if allocKB > maxKB {
			res.Warning = fmt.Sprintf("requested %d KB reduced to %d KB (%.0f%% of the %d MB memory ceiling)",
				value, maxKB, memoryHeadroom*100, ceiling/mib)
			allocKB = maxKB
		}
	}
	if allocKB <= 0 {
		res.Error = "memory: memory ceiling leaves no room for an allocation"
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Error = fmt.Sprintf("memory: %v", err)
		return res
	}

	peak := processSys()
	start := time.Now()

	buf := make([]byte, allocKB*1024)
	for i := 0; i < len(buf); i += pageSize {
		buf[i] = byte(i / pageSize)
	}
	buf[len(buf)-1] = 0xff
	peak = max(peak, processSys())

	stats.Checksum = xxhash.Sum64(buf)
	stats.AllocatedKB = allocKB

	buf = nil
	runtime.GC()

	res.Time = models.Seconds(time.Since(start))
	peak = max(peak, processSys())
	stats.PeakUsageMB = float64(peak) / mib
	return res
}

// Score rates against Target seconds per 100 MB allocated.
func (t *MemoryTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	kb := value
	if result.Memory != nil && result.Memory.AllocatedKB > 0 {
		kb = result.Memory.AllocatedKB
	}
	return t.scoring.rate(IDMemory, result.Time, float64(kb)/(100*1024))
}

func processSys() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}

package suite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
)

var cpuInfo = models.TestDescriptor{
	ID:           IDCPU,
	Name:         "CPU",
	Description:  "Floating point math in a tight loop with periodic string hashing. Work per iteration grows with the iteration index.",
	ConfigLabel:  "Iterations",
	ConfigUnit:   "iterations",
	DefaultValue: 100_000,
	MinValue:     1_000,
	MaxValue:     2_000_000,
}

const (
	// cpuRoundStep is how many iterations add one extra round of math.
	cpuRoundStep = 10_000
	// cpuHashEvery is how often a random string is folded into the checksum.
	cpuHashEvery = 100
)

// CPUTest burns CPU on sqrt/log/sin/cos.
type CPUTest struct {
	scoring Scoring
	guard   *guard.Guard
}

// NewCPU builds the cpu test. Params: target (seconds per million
// iterations), weight.
func NewCPU(env Env) (*CPUTest, error) {
	s := Scoring{Target: 2.0, Weight: 0.30}
	if err := decodeParams(env.Params, &s); err != nil {
		return nil, fmt.Errorf("cpu params: %w", err)
	}
	return &CPUTest{scoring: s, guard: env.guardOrDefault()}, nil
}

func (t *CPUTest) Info() models.TestDescriptor {
	return cpuInfo
}

func (t *CPUTest) Run(ctx context.Context, value int) (res models.TestResult) {
	if value <= 0 {
		return invalidValue(IDCPU, value)
	}
	defer recoverInto(IDCPU, &res)

	stats := &models.CPUStats{}
	digest := xxhash.New()
	var acc float64

	start := time.Now()
	for i := 0; i < value; i++ {
		if err := checkpoint(ctx, t.guard, i); err != nil {
			res.Error = fmt.Sprintf("cpu: stopped after %d iterations: %v", i, err)
			break
		}

		rounds := 1 + i/cpuRoundStep
		for r := 0; r < rounds; r++ {
			x := float64(i+r) + 1
			acc += math.Sqrt(x) + math.Log(x) + math.Sin(x) + math.Cos(x)
		}
		stats.Operations += int64(rounds) * 4

		if i%cpuHashEvery == 0 {
			_, _ = digest.WriteString(randomString(16))
		}
		stats.Iterations++
	}

	var tail [8]byte
	binary.LittleEndian.PutUint64(tail[:], math.Float64bits(acc))
	_, _ = digest.Write(tail[:])
	stats.Checksum = digest.Sum64()

	res.Time = models.Seconds(time.Since(start))
	res.CPU = stats
	return res
}

// Score rates against Target seconds per million iterations. A result
// without a payload is rated against the configured value.
func (t *CPUTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	iterations := value
	if result.CPU != nil && result.CPU.Iterations > 0 {
		iterations = result.CPU.Iterations
	}
	return t.scoring.rate(IDCPU, result.Time, float64(iterations)/1_000_000)
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

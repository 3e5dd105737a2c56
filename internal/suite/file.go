package suite

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
)

var fileInfo = models.TestDescriptor{
	ID:           IDFile,
	Name:         "File I/O",
	Description:  "Writes a 1 KiB block to a temp file, reads it back and verifies it, once per cycle.",
	ConfigLabel:  "Cycles",
	ConfigUnit:   "cycles",
	DefaultValue: 1_000,
	MinValue:     10,
	MaxValue:     100_000,
}

const fileBlockSize = 1024

// filePattern is the fixed block every cycle writes.
var filePattern = func() []byte {
	seed := []byte("wpbench file io block 0123456789abcdef\n")
	return bytes.Repeat(seed, fileBlockSize/len(seed)+1)[:fileBlockSize]
}()

// FileTest measures small-file write/read round trips.
type FileTest struct {
	scoring Scoring
	dir     string
	guard   *guard.Guard
}

// NewFile builds the file test. Params: target (seconds per 1000 cycles),
// weight. Files go to env.TempDir.
func NewFile(env Env) (*FileTest, error) {
	s := Scoring{Target: 0.5, Weight: 0.15}
	if err := decodeParams(env.Params, &s); err != nil {
		return nil, fmt.Errorf("file params: %w", err)
	}
	return &FileTest{scoring: s, dir: env.TempDir, guard: env.guardOrDefault()}, nil
}

func (t *FileTest) Info() models.TestDescriptor {
	return fileInfo
}

func (t *FileTest) Run(ctx context.Context, value int) (res models.TestResult) {
	if value <= 0 {
		return invalidValue(IDFile, value)
	}
	defer recoverInto(IDFile, &res)

	stats := &models.FileStats{}
	res.File = stats

	dir := tempDir(t.dir)
	if err := probeWritable(dir); err != nil {
		res.Error = fmt.Sprintf("temp directory %s is not writable: %v", dir, err)
		return res
	}

	path := filepath.Join(dir, "wpbench-file-"+uniqueSuffix()+".tmp")
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove temp file", "path", path, "error", err)
		}
	}()

	var errs errorList
	start := time.Now()
	for i := 0; i < value; i++ {
		if err := checkpoint(ctx, t.guard, i); err != nil {
			errs.Add(fmt.Errorf("stopped after %d cycles: %w", i, err))
			break
		}

		if err := os.WriteFile(path, filePattern, 0o600); err != nil {
			errs.Add(fmt.Errorf("cycle %d: write: %w", i, err))
			continue
		}
		stats.Operations++
		stats.BytesWritten += fileBlockSize

		got, err := os.ReadFile(path)
		if err != nil {
			errs.Add(fmt.Errorf("cycle %d: read: %w", i, err))
			continue
		}
		stats.Operations++
		stats.BytesRead += int64(len(got))

		if !bytes.Equal(got, filePattern) {
			errs.Add(fmt.Errorf("cycle %d: read back %d bytes that differ from what was written", i, len(got)))
			continue
		}
		stats.Cycles++
	}
	res.Time = models.Seconds(time.Since(start))

	if errs.Len() > 0 {
		res.Error = errs.String()
	}
	return res
}

// Score rates against Target seconds per 1000 cycles.
func (t *FileTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	cycles := value
	if result.File != nil && result.File.Cycles > 0 {
		cycles = result.File.Cycles
	}
	return t.scoring.rate(IDFile, result.Time, float64(cycles)/1000)
}

// probeWritable creates and removes a scratch file in dir.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, "wpbench-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	closeErr := f.Close()
	if err := os.Remove(name); err != nil {
		return err
	}
	return closeErr
}

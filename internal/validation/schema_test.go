package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfigYAML = `paths:
  results: runs/
database:
  driver: mysql
  dsn: "wp:secret@tcp(localhost:3306)/wordpress"
  table_prefix: wp_
store:
  backend: blob
  compress: true
  memo_ttl: 30s
  blob:
    account_url: https://example.blob.core.windows.net
    container: runs
guard:
  max_iterations: 5000000
  max_duration: 1m30s
  max_load: 8.5
memory_limit_mb: 256
selection: [cpu, db_read]
tests:
  cpu:
    value: 50000
    target: 1.5
    weight: 0.4
  object_cache:
    params:
      addr: localhost:6379
`

const invalidConfigYAML = `database:
  driver: oracle
store:
  backend: s3
  memo_ttl: soon
tests:
  cpu:
    value: 0
    weight: -1
unknown_section: true
`

func TestValidateConfigBytes_Valid(t *testing.T) {
	errs := ValidateConfigBytes([]byte(validConfigYAML))
	require.Empty(t, errs, "valid config should have no errors")
}

func TestValidateConfigBytes_Empty(t *testing.T) {
	require.Empty(t, ValidateConfigBytes(nil))
	require.Empty(t, ValidateConfigBytes([]byte("# nothing here\n")))
}

func TestValidateConfigBytes_Invalid(t *testing.T) {
	errs := ValidateConfigBytes([]byte(invalidConfigYAML))
	require.NotEmpty(t, errs, "invalid config should have errors")

	joined := strings.Join(errs, "\n")
	require.Contains(t, joined, "/database/driver")
	require.Contains(t, joined, "/store/backend")
	require.Contains(t, joined, "/store/memo_ttl")
	require.Contains(t, joined, "/tests/cpu/value")
	require.Contains(t, joined, "/tests/cpu/weight")
	require.Contains(t, joined, "unknown_section")
}

func TestValidateConfigBytes_BadTestID(t *testing.T) {
	errs := ValidateConfigBytes([]byte("selection: [CPU]\n"))
	require.NotEmpty(t, errs)
	require.Contains(t, strings.Join(errs, "\n"), "/selection/0")
}

func TestValidateConfigBytes_YAMLError(t *testing.T) {
	errs := ValidateConfigBytes([]byte("database: [unclosed"))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "YAML parse error")
}

func TestValidateConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".wpbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfigYAML), 0644))

	errs, err := ValidateConfigFile(path)
	require.NoError(t, err)
	require.Empty(t, errs)

	_, err = ValidateConfigFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestValidateConfigBytes_Hooks(t *testing.T) {
	valid := `hooks:
  before_run:
    - command: ./prepare.sh
      error_on_fail: true
  after_test:
    - command: logger done
      exit_codes: [0, 2]
`
	require.Empty(t, ValidateConfigBytes([]byte(valid)))

	errs := ValidateConfigBytes([]byte("hooks:\n  before_run:\n    - working_directory: /tmp\n  on_error: []\n"))
	joined := strings.Join(errs, "\n")
	require.Contains(t, joined, "/hooks/before_run/0")
	require.Contains(t, joined, "on_error")
}

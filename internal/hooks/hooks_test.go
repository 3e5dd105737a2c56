package hooks

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHook(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX true/false")
	}

	tests := []struct {
		name      string
		hook      HookConfig
		wantErr   bool
		errSubstr string
	}{
		{name: "command succeeds", hook: HookConfig{Command: "true"}},
		{name: "empty command", hook: HookConfig{Command: ""}, wantErr: true, errSubstr: "empty command"},
		{name: "whitespace-only command", hook: HookConfig{Command: "   "}, wantErr: true, errSubstr: "empty command"},
		{name: "non-zero exit with error_on_fail", hook: HookConfig{Command: "false", ErrorOnFail: true}, wantErr: true, errSubstr: "exited with code 1"},
		{name: "non-zero exit without error_on_fail", hook: HookConfig{Command: "false"}},
		{name: "custom acceptable exit codes", hook: HookConfig{Command: "false", ExitCodes: []int{1}, ErrorOnFail: true}},
		{name: "missing binary with error_on_fail", hook: HookConfig{Command: "wpbench-no-such-binary", ErrorOnFail: true}, wantErr: true},
		{name: "missing binary without error_on_fail", hook: HookConfig{Command: "wpbench-no-such-binary"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &Runner{}
			err := r.runHook(context.Background(), "before_run", 0, tc.hook, nil)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tc.errSubstr != "" {
				assert.Contains(t, err.Error(), tc.errSubstr)
			}
		})
	}
}

func TestExecute_PassesEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses env(1)")
	}

	var out bytes.Buffer
	r := &Runner{Output: &out, Verbose: true}
	err := r.Execute(context.Background(), "after_test", []HookConfig{{Command: "env"}},
		map[string]string{"WPBENCH_TEST": "cpu", "WPBENCH_TIME": "0.125"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "WPBENCH_TEST=cpu")
	assert.Contains(t, out.String(), "WPBENCH_TIME=0.125")
}

func TestExecute_WorkingDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses touch(1)")
	}

	dir := t.TempDir()
	r := &Runner{}
	err := r.Execute(context.Background(), "before_run",
		[]HookConfig{{Command: "touch marker", WorkingDirectory: dir, ErrorOnFail: true}}, nil)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "marker"))
	assert.NoError(t, err)
}

func TestExecute_StopsOnFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX true/false")
	}

	dir := t.TempDir()
	r := &Runner{}
	err := r.Execute(context.Background(), "before_run", []HookConfig{
		{Command: "false", ErrorOnFail: true},
		{Command: "touch marker", WorkingDirectory: dir},
	}, nil)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "marker"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{}
	err := r.Execute(ctx, "before_test", []HookConfig{{Command: "echo hello"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestExecute_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	r := &Runner{}
	err := r.Execute(ctx, "before_test", []HookConfig{{Command: "echo hello"}}, nil)
	assert.Error(t, err)
}

func TestHooksConfigEmpty(t *testing.T) {
	assert.True(t, HooksConfig{}.Empty())
	assert.False(t, HooksConfig{AfterTest: []HookConfig{{Command: "true"}}}.Empty())
}

func TestEnvListSorted(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}

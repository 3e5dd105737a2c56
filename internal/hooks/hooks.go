// Package hooks runs user commands around a benchmark run and its tests.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"
)

// HookConfig is a single command to run at a lifecycle point.
type HookConfig struct {
	Command          string `yaml:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty"`
	ExitCodes        []int  `yaml:"exit_codes,omitempty"`
	ErrorOnFail      bool   `yaml:"error_on_fail,omitempty"`
}

// HooksConfig groups hooks by lifecycle point.
type HooksConfig struct {
	BeforeRun  []HookConfig `yaml:"before_run,omitempty"`
	AfterRun   []HookConfig `yaml:"after_run,omitempty"`
	BeforeTest []HookConfig `yaml:"before_test,omitempty"`
	AfterTest  []HookConfig `yaml:"after_test,omitempty"`
}

// Empty reports whether no hook is configured.
func (c HooksConfig) Empty() bool {
	return len(c.BeforeRun)+len(c.AfterRun)+len(c.BeforeTest)+len(c.AfterTest) == 0
}

// Runner executes hook commands.
type Runner struct {
	// Output receives the combined output of hooks when Verbose is set.
	Output  io.Writer
	Verbose bool
}

// Execute runs hooks in order. env is added to each command's environment.
// A hook failing with error_on_fail set stops the sequence and is returned;
// other failures are logged.
func (r *Runner) Execute(ctx context.Context, name string, hooks []HookConfig, env map[string]string) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s hook: %w", name, err)
		}
		if err := r.runHook(ctx, name, i, h, env); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, name string, idx int, h HookConfig, env map[string]string) error {
	parts := strings.Fields(h.Command)
	if len(parts) == 0 {
		return fmt.Errorf("%s hook[%d]: empty command", name, idx)
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	if h.WorkingDirectory != "" {
		cmd.Dir = h.WorkingDirectory
	}
	cmd.Env = append(os.Environ(), envList(env)...)

	out, err := cmd.CombinedOutput()
	if r.Verbose && r.Output != nil && len(out) > 0 {
		fmt.Fprintf(r.Output, "  [%s] %s\n", name, strings.TrimRight(string(out), "\n"))
	}

	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// Command could not start.
			if h.ErrorOnFail {
				return fmt.Errorf("%s hook[%d] %q: %w", name, idx, h.Command, err)
			}
			slog.Warn("Hook failed to start", "hook", name, "index", idx, "command", h.Command, "error", err)
			return nil
		}
		exitCode = exitErr.ExitCode()
	}

	if isAcceptableExit(exitCode, h.ExitCodes) {
		return nil
	}
	if h.ErrorOnFail {
		return fmt.Errorf("%s hook[%d] %q exited with code %d", name, idx, h.Command, exitCode)
	}
	slog.Warn("Hook exited with non-zero code", "hook", name, "index", idx, "command", h.Command, "code", exitCode)
	return nil
}

// isAcceptableExit checks an exit code against the allowed list; an empty
// list allows only 0.
func isAcceptableExit(code int, allowed []int) bool {
	if len(allowed) == 0 {
		return code == 0
	}
	return slices.Contains(allowed, code)
}

func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

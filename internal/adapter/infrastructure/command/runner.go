// Package command provides the external command runner adapter implementation.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"
	"netpilot/internal/types"

	"golang.org/x/sync/singleflight"
)

// ExecFunc runs one command and captures its output. A non-zero exit status
// is a result, not an error.
type ExecFunc func(ctx context.Context, name string, args ...string) (types.CommandResult, error)

// RunnerAdapter is an adapter that implements the CommandRunner port using os/exec.
// Results of Run are cached for the life of the adapter, keyed by the exact
// argument vector; concurrent identical calls share one execution.
type RunnerAdapter struct {
	timeout time.Duration
	exec    ExecFunc

	mu    sync.Mutex
	cache map[string]types.CommandResult
	group singleflight.Group
}

// Ensure RunnerAdapter implements the CommandRunner port
var _ port.CommandRunner = (*RunnerAdapter)(nil)

// Option configures a RunnerAdapter.
type Option func(*RunnerAdapter)

// WithExec replaces the process executor.
func WithExec(fn ExecFunc) Option {
	return func(r *RunnerAdapter) {
		r.exec = fn
	}
}

// NewRunnerAdapter creates a command runner bounding every call by timeout.
func NewRunnerAdapter(timeout time.Duration, opts ...Option) *RunnerAdapter {
	r := &RunnerAdapter{
		timeout: timeout,
		exec:    execCommand,
		cache:   make(map[string]types.CommandResult),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the command, or returns the cached result of an earlier
// identical call. Failed executions are not cached. Concurrent identical
// calls share one execution, which is bounded by the runner timeout rather
// than by any single caller's context; each caller stops waiting when its
// own context is done.
func (r *RunnerAdapter) Run(ctx context.Context, name string, args ...string) (types.CommandResult, error) {
	key := cacheKey(name, args)
	logger := logging.WithComponent("command").WithField("command", displayName(name, args))

	r.mu.Lock()
	res, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		logger.Debug("Using cached result")
		return res, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		r.mu.Lock()
		cached, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			return cached, nil
		}

		res, err := r.RunUncached(shared, name, args...)
		if err != nil {
			return res, err
		}
		r.mu.Lock()
		r.cache[key] = res
		r.mu.Unlock()
		return res, nil
	})

	select {
	case <-ctx.Done():
		return types.CommandResult{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return types.CommandResult{}, out.Err
		}
		return out.Val.(types.CommandResult), nil
	}
}

// RunUncached executes the command without consulting or filling the cache.
func (r *RunnerAdapter) RunUncached(ctx context.Context, name string, args ...string) (types.CommandResult, error) {
	logger := logging.WithComponent("command").WithField("command", displayName(name, args))
	logger.Debug("Executing")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.exec(ctx, name, args...)
	if err != nil {
		logger.WithError(err).Debug("Command execution failed")
		return res, err
	}
	if !res.OK() {
		logger.WithFields(map[string]interface{}{
			"exit_code": res.ExitCode,
			"stderr":    strings.TrimSpace(res.Stderr),
		}).Debug("Command exited with non-zero status")
	}
	return res, nil
}

func execCommand(ctx context.Context, name string, args ...string) (types.CommandResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := types.CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		return res, fmt.Errorf("command %s timed out: %w", displayName(name, args), ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to run %s: %w", displayName(name, args), err)
	}
	return res, nil
}

func cacheKey(name string, args []string) string {
	return name + "\x00" + strings.Join(args, "\x00")
}

func displayName(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

package cleanup

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

//go:generate go tool mockgen -source=runner.go -destination=mocks/runner.gen.go -package=mocks

// Runner executes package manager commands. It exists as an interface
// so tests and previews can observe invocations without spawning
// processes.
type Runner interface {
	// Run executes name with args inside dir and returns the combined
	// output.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the local system.
type ExecRunner struct {
	// Timeout bounds each command. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// Run executes the command and returns its combined output. The output
// is returned alongside the error so callers can surface what the tool
// printed before failing.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("run %s: %w", name, err)
	}

	return out, nil
}

package prover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long a killed tool may keep its output pipes open.
const waitDelay = 2 * time.Second

type toolOutput struct {
	stdout string
	stderr string
}

// runTool runs one tool invocation with the pipeline timeout. dir may be
// empty, env entries override the inherited environment.
func (p *Pipeline) runTool(ctx context.Context, label, dir string, env []string, path string, args ...string) (*toolOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	p.log.Info("Running "+label, "cmd", path+" "+strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	out := &toolOutput{stdout: stdout.String(), stderr: stderr.String()}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.log.Error(label+" timed out", "timeout", p.cfg.Timeout, "stderr", out.stderr)
		return out, fmt.Errorf("%w: %s exceeded %s", ErrToolTimeout, label, p.cfg.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		p.log.Error(label+" failed",
			"exitCode", exitErr.ExitCode(),
			"stdout", out.stdout,
			"stderr", out.stderr)
		return out, fmt.Errorf("%w: %s failed (exit %d): %s", ErrToolFailed, label, exitErr.ExitCode(), strings.TrimSpace(out.stderr))
	}
	if err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrToolFailed, label, err)
	}

	p.log.Info(label+" succeeded", "duration", time.Since(start), "stdout", out.stdout)
	return out, nil
}

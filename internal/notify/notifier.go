// Package notify invokes the downstream artifact-regeneration step after a
// successful vault save. The step is a black box: only its exit code is
// observed, and it runs under an explicit timeout so a hung regeneration
// cannot stall the pipeline.
package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/vaultsmith/vaultsmith/internal/logging"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultMaxOutputSize = 1 << 20 // 1 MiB of captured output per stream
)

// Result is the typed outcome of a notifier invocation.
type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration_ms"`
	Killed   bool          `json:"killed"`
}

// Notifier is the port the rotation pipeline calls after a successful save.
// Implementations return a NOTIFIER_ERROR when the step fails or times out;
// the vault itself is already durably saved at that point.
type Notifier interface {
	Notify(ctx context.Context) (*Result, error)
}

// ExecNotifier runs a configured command as a subprocess.
type ExecNotifier struct {
	Command       string
	Args          []string
	Dir           string
	Timeout       time.Duration
	MaxOutputSize int64
	Logger        *slog.Logger
}

// NewExecNotifier creates a subprocess notifier with defaults applied.
func NewExecNotifier(command string, args []string, timeout time.Duration, logger *slog.Logger) *ExecNotifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecNotifier{
		Command:       command,
		Args:          args,
		Timeout:       timeout,
		MaxOutputSize: defaultMaxOutputSize,
		Logger:        logger,
	}
}

// Notify runs the regeneration command. A non-zero exit maps to
// NOTIFIER_ERROR; a deadline hit maps to TIMEOUT_ERROR with Killed set.
func (n *ExecNotifier) Notify(ctx context.Context) (*Result, error) {
	if n.Command == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "notifier command is empty")
	}

	execCtx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, n.Command, n.Args...)
	if n.Dir != "" {
		cmd.Dir = n.Dir
	}

	maxOut := n.MaxOutputSize
	if maxOut <= 0 {
		maxOut = defaultMaxOutputSize
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: maxOut}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxOut}

	logging.LogWith(ctx, n.Logger).Info("invoking notifier",
		slog.String("command", n.Command),
		slog.Duration("timeout", n.Timeout))

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			result.Killed = true
			result.ExitCode = -1
			return result, schema.NewErrorf(schema.ErrCodeTimeout,
				"notifier timed out after %s", n.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, schema.NewErrorf(schema.ErrCodeNotifier,
				"notifier exited with code %d", result.ExitCode).
				WithDetails(map[string]any{"stderr": result.Stderr})
		}
		// Non-exit error (e.g. command not found).
		return result, schema.NewErrorf(schema.ErrCodeNotifier, "notifier: %s", runErr.Error()).WithCause(runErr)
	}

	logging.LogWith(ctx, n.Logger).Info("notifier succeeded",
		slog.Duration("duration", result.Duration))
	return result, nil
}

// limitedWriter wraps a writer and silently discards bytes beyond the limit.
// Write always reports the full len(p) consumed to prevent the subprocess
// from blocking on a full pipe.
type limitedWriter struct {
	w       io.Writer
	limit   int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	total := len(p) // Capture original length before any truncation.
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return total, nil
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	if err != nil {
		return total, err
	}
	return total, nil
}

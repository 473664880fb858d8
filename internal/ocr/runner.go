package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner shells out and reports each invocation through the engine's
// logger.
type execRunner struct {
	logger *slog.Logger
}

const maxLoggedStderr = 4 << 10

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		r.logger.Error("ocr command failed",
			"cmd", name,
			"args", args,
			"elapsed_ms", elapsed,
			"error", err,
			"stderr", clipOutput(errb.String()),
		)
		return out.Bytes(), errb.Bytes(), err
	}
	r.logger.Debug("ocr command ok",
		"cmd", name,
		"args", args,
		"elapsed_ms", elapsed,
		"stdout_bytes", out.Len(),
	)
	return out.Bytes(), errb.Bytes(), nil
}

func clipOutput(s string) string {
	if len(s) <= maxLoggedStderr {
		return s
	}
	return fmt.Sprintf("%s ...(%d more bytes)", s[:maxLoggedStderr], len(s)-maxLoggedStderr)
}

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrToolMissing is returned when an OCR command is not installed.
var ErrToolMissing = errors.New("ocr tool not installed")

// Runner executes the poppler, ImageMagick and tesseract commands the
// extractor shells out to. Tests swap in a fake through WithRunner.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// commandRunner runs commands on the host and logs each invocation.
type commandRunner struct {
	logger *slog.Logger
}

func (r commandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	took := time.Since(start)

	switch {
	case errors.Is(err, exec.ErrNotFound):
		r.logger.Warn("ocr.exec.missing", "cmd", name)
		return nil, nil, fmt.Errorf("%s: %w", name, ErrToolMissing)
	case err != nil:
		r.logger.Error("ocr.exec.failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"took_ms", took.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	default:
		r.logger.Debug("ocr.exec.ok",
			"cmd", name,
			"took_ms", took.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/common"
)

const (
	maxStdoutBytes = 1 << 20
	maxStderrBytes = 8 << 10
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

// Run executes a label tool (tesseract, zbarimg, a HEIC converter). Output past
// the caps is discarded. When ctx ends first the error wraps ctx.Err().
func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.logger
	if scanID := common.ScanIDFromContext(ctx); scanID != "" {
		logger = logger.With("scan_id", scanID)
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	out := &cappedBuffer{max: maxStdoutBytes}
	errb := &cappedBuffer{max: maxStderrBytes}
	cmd.Stdout = out
	cmd.Stderr = errb

	err := cmd.Run()
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		err = fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}
	attrs := []any{"cmd", name, "duration_ms", time.Since(start).Milliseconds(), "stdout_bytes", len(out.buf)}
	if out.dropped > 0 {
		attrs = append(attrs, "stdout_dropped", out.dropped)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Debug("ocr.exec.ok", attrs...)
	case errors.As(err, &exitErr):
		// zbarimg exits non-zero when a label has no barcode
		logger.Warn("ocr.exec.exit_status", append(attrs, "args", strings.Join(args, " "), "code", exitErr.ExitCode(), "stderr", errb.String())...)
	default:
		logger.Error("ocr.exec.failed", append(attrs, "args", strings.Join(args, " "), "error", err, "stderr", errb.String())...)
	}
	return out.buf, errb.buf, err
}

// cappedBuffer keeps the first max bytes and counts the rest. Writes never
// fail so the child process is not killed by a closed pipe.
type cappedBuffer struct {
	max     int
	buf     []byte
	dropped int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := min(max(b.max-len(b.buf), 0), len(p))
	b.buf = append(b.buf, p[:room]...)
	b.dropped += len(p) - room
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.dropped == 0 {
		return string(b.buf)
	}
	return string(b.buf) + "...(truncated)"
}

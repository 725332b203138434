package textsource

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		logger.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10), // cap at 8KB
		)
	} else {
		logger.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
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

// PdftotextSource shells out to poppler's pdftotext in layout mode.
type PdftotextSource struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPdftotextSource(bin string, logger *slog.Logger) *PdftotextSource {
	if bin == "" {
		bin = "pdftotext"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PdftotextSource{bin: bin, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner; used by tests.
func (s *PdftotextSource) WithRunner(r Runner) *PdftotextSource {
	s.runner = r
	return s
}

func (s *PdftotextSource) PageLines(ctx context.Context, content []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "ledger-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			s.logger.Warn("failed to remove temp file", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix -f 1 -l 1 <path> -
	out, errb, err := s.runner.Run(ctx, s.bin, s.logger,
		"-layout", "-enc", "UTF-8", "-eol", "unix", "-f", "1", "-l", "1", tmp.Name(), "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	text := string(out)
	// a form-feed separates pages
	if i := strings.IndexByte(text, '\f'); i >= 0 {
		text = text[:i]
	}
	return Lines(text), nil
}

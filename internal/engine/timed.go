package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/sqlrag/internal/observability"
)

// Timed wraps a Generator with a per-call deadline and records the elapsed
// wall-clock time of every call.
type Timed struct {
	next    Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewTimed wraps g. A zero timeout leaves calls unbounded.
func NewTimed(g Generator, timeout time.Duration, logger *slog.Logger) *Timed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timed{next: g, timeout: timeout, logger: logger}
}

func (t *Timed) Name() string { return t.next.Name() }

// Timeout returns the configured per-call deadline.
func (t *Timed) Timeout() time.Duration { return t.timeout }

func (t *Timed) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.next.Generate(callCtx, prompt, opts)
	elapsed := time.Since(start)

	observability.ObserveGeneration(t.next.Name(), elapsed)
	t.logger.Info("generation finished",
		"backend", t.next.Name(),
		"duration_ms", elapsed.Milliseconds(),
		"tokens_cap", opts.MaxTokens,
	)

	if err != nil {
		// Only our own deadline counts as a timeout; caller cancellation
		// passes through unchanged.
		if t.timeout > 0 && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, t.timeout)
		}
		return "", err
	}
	return out, nil
}

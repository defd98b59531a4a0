// Package session runs the interactive question loop on a terminal.
package session

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/sqlrag/internal/pipeline"
)

// State is the loop's position in its read-eval cycle.
type State int

const (
	AwaitingInput State = iota
	Processing
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Processing:
		return "processing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Prompt is written before every read.
const Prompt = "Ask your question: "

// Runner answers one question.
type Runner interface {
	Run(ctx context.Context, question string) (pipeline.Turn, error)
}

// Options tune a Loop.
type Options struct {
	// GenerationTimeout is shown when a turn hits the generation deadline.
	GenerationTimeout time.Duration
	// OnState, when set, is called on every state transition.
	OnState func(State)
}

// Loop reads questions line by line and prints each turn's SQL and rows.
type Loop struct {
	runner Runner
	in     io.Reader
	out    io.Writer
	opts   Options
	logger *slog.Logger
	state  State
}

// New creates a Loop reading from in and rendering to out.
func New(runner Runner, in io.Reader, out io.Writer, opts Options, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{runner: runner, in: in, out: out, opts: opts, logger: logger, state: AwaitingInput}
}

// State reports the current state.
func (l *Loop) State() State { return l.state }

func (l *Loop) transition(s State) {
	l.state = s
	if l.opts.OnState != nil {
		l.opts.OnState(s)
	}
}

// IsExit reports whether line is an exit keyword.
func IsExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit":
		return true
	}
	return false
}

// Run loops until an exit keyword, end of input or ctx cancellation. Turn
// failures are rendered and never end the loop; the returned error only
// reports a failure to read input.
func (l *Loop) Run(ctx context.Context) error {
	defer l.transition(Done)

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		writeString(l.out, Prompt)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			writeString(l.out, "\n")
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			writeString(l.out, "\n")
			return <-readErr
		}

		if IsExit(line) {
			return nil
		}
		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}

		l.transition(Processing)
		turn, err := l.runner.Run(ctx, question)
		renderTurn(l.out, turn, err, l.opts.GenerationTimeout)
		if err != nil {
			l.logger.Debug("turn failed", "turn_id", turn.ID, "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		l.transition(AwaitingInput)
	}
}

func writeString(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}

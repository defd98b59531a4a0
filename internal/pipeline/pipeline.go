// Package pipeline wires retrieval, prompt composition, generation,
// sanitization and execution into a single question-to-rows turn.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/sqlrag/internal/composer"
	"github.com/kalambet/sqlrag/internal/engine"
	"github.com/kalambet/sqlrag/internal/executor"
	"github.com/kalambet/sqlrag/internal/observability"
	"github.com/kalambet/sqlrag/internal/retrieval"
	"github.com/kalambet/sqlrag/internal/sanitize"
)

// ContextRetriever finds the context chunks most relevant to a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.ScoredChunk, error)
}

// StatementExecutor runs one SQL statement.
type StatementExecutor interface {
	Execute(ctx context.Context, statement string) executor.Result
}

// Turn records every stage of one question.
type Turn struct {
	ID       string
	Question string
	Chunks   []retrieval.ScoredChunk
	// RetrievalEmpty is set when the store returned no chunks. The turn
	// still proceeds with an empty context.
	RetrievalEmpty bool
	Prompt         string
	RawOutput      string
	SQL            string
	Executed       bool
	Result         executor.Result
	Duration       time.Duration
}

// Options tune a Pipeline.
type Options struct {
	TopK      int
	MaxTokens int
}

// Pipeline runs turns one at a time. It holds the components that are
// loaded once at startup and reused by every turn.
type Pipeline struct {
	mu sync.Mutex

	retriever ContextRetriever
	composer  *composer.Composer
	generator engine.Generator
	sanitizer *sanitize.Sanitizer
	executor  StatementExecutor
	opts      Options
	logger    *slog.Logger
}

// New creates a Pipeline. TopK defaults to 3 and MaxTokens to 64 when unset.
func New(
	retriever ContextRetriever,
	comp *composer.Composer,
	gen engine.Generator,
	san *sanitize.Sanitizer,
	exec StatementExecutor,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		retriever: retriever,
		composer:  comp,
		generator: gen,
		sanitizer: san,
		executor:  exec,
		opts:      opts,
		logger:    logger,
	}
}

// Run answers question end to end. A SQL failure is not an error: it is
// reported in Turn.Result. Errors are returned for retrieval failures,
// generation failures (engine.ErrGenerationEmpty, engine.ErrGenerationTimeout
// or a backend error) and sanitize.ErrEmpty. The returned Turn is populated
// up to the failing stage.
func (p *Pipeline) Run(ctx context.Context, question string) (Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	turn, logger, err := p.generate(ctx, question)
	if err != nil {
		turn.Duration = time.Since(start)
		return turn, err
	}

	turn.Result = p.executor.Execute(ctx, turn.SQL)
	turn.Executed = true
	turn.Duration = time.Since(start)

	if turn.Result.Failed() {
		observability.ObserveTurn(observability.OutcomeSQLError)
		logger.Warn("statement failed", "sql", turn.SQL, "error", turn.Result.Error)
	} else {
		observability.ObserveTurn(observability.OutcomeOK)
		logger.Info("turn complete",
			"sql", turn.SQL,
			"rows", len(turn.Result.Rows),
			"duration_ms", turn.Duration.Milliseconds(),
		)
	}
	return turn, nil
}

// GenerateSQL runs the turn up to sanitization without executing.
func (p *Pipeline) GenerateSQL(ctx context.Context, question string) (Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	turn, _, err := p.generate(ctx, question)
	turn.Duration = time.Since(start)
	if err == nil {
		observability.ObserveTurn(observability.OutcomeOK)
	}
	return turn, err
}

// RetrieveContext returns the chunks a turn for question would use.
func (p *Pipeline) RetrieveContext(ctx context.Context, question string) ([]retrieval.ScoredChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	chunks, err := p.retriever.Retrieve(ctx, question, p.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	return chunks, nil
}

func (p *Pipeline) generate(ctx context.Context, question string) (Turn, *slog.Logger, error) {
	turn := Turn{ID: uuid.New().String(), Question: question}
	logger := p.logger.With("turn_id", turn.ID)

	chunks, err := p.retriever.Retrieve(ctx, question, p.opts.TopK)
	if err != nil {
		observability.ObserveTurn(observability.OutcomeError)
		logger.Warn("retrieval failed", "error", err)
		return turn, logger, fmt.Errorf("retrieving context: %w", err)
	}
	observability.ObserveRetrieval(len(chunks))
	turn.Chunks = chunks
	if len(chunks) == 0 {
		turn.RetrievalEmpty = true
		logger.Warn("retrieval returned no context; generating without it")
	}

	turn.Prompt = p.composer.Build(retrieval.Texts(chunks), question)
	logger.Debug("prompt built", "chunks", len(chunks), "prompt_chars", len(turn.Prompt))

	raw, err := p.generator.Generate(ctx, turn.Prompt, engine.Options{
		MaxTokens: p.opts.MaxTokens,
		Stop:      p.sanitizer.StopSequences(),
	})
	if err != nil {
		observability.ObserveTurn(observability.OutcomeGenerationError)
		logger.Warn("generation failed", "backend", p.generator.Name(), "error", err)
		if errors.Is(err, engine.ErrGenerationEmpty) || errors.Is(err, engine.ErrGenerationTimeout) {
			return turn, logger, err
		}
		return turn, logger, fmt.Errorf("generating SQL: %w", err)
	}
	turn.RawOutput = raw

	// Completion servers configured to echo return the prompt first.
	stmt, err := p.sanitizer.Sanitize(strings.TrimPrefix(raw, turn.Prompt))
	if err != nil {
		observability.ObserveTurn(observability.OutcomeSanitizeEmpty)
		logger.Warn("sanitizer produced no statement", "raw_chars", len(raw))
		return turn, logger, err
	}
	turn.SQL = stmt
	return turn, logger, nil
}

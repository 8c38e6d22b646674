package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidmetrics/vidmetrics/internal/dates"
	"github.com/vidmetrics/vidmetrics/internal/nl2sql"
	"github.com/vidmetrics/vidmetrics/internal/observability"
	"github.com/vidmetrics/vidmetrics/internal/prompt"
	"github.com/vidmetrics/vidmetrics/internal/query"
)

// UserMessage is the only failure text shown to people asking questions.
const UserMessage = "Ошибка при обработке запроса"

type Stage string

const (
	StageCompletion Stage = "completion"
	StageExtraction Stage = "extraction"
	StageExecution  Stage = "execution"
)

// Error reports which stage stopped an answer. Statement is set once a
// statement was extracted and is meant for operators only.
type Error struct {
	Stage     Stage
	RequestID string
	Statement string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("answer %s failed at %s: %v", e.RequestID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Config struct {
	RejectMultiStatement bool
}

// Runner executes an extracted statement and reduces it to one integer.
type Runner interface {
	Run(ctx context.Context, stmt query.Statement) (int64, error)
}

// Pipeline turns one question into one integer. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	cfg       Config
	completer nl2sql.Completer
	runner    Runner
	logger    *slog.Logger
	newID     func() string
}

func New(cfg Config, completer nl2sql.Completer, runner Runner, logger *slog.Logger) (*Pipeline, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("statement runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		completer: completer,
		runner:    runner,
		logger:    logger,
		newID:     observability.NewTraceID,
	}, nil
}

// Answer runs normalize, prompt, completion, extraction and execution in
// order and stops at the first failure.
func (p *Pipeline) Answer(ctx context.Context, question string) (int64, error) {
	requestID := observability.TraceIDFromContext(ctx)
	if requestID == "" {
		requestID = p.newID()
	}
	logger := p.logger.With(slog.String("request_id", requestID))

	normalized := dates.Normalize(question)
	logger.InfoContext(ctx, "answer_started",
		slog.String("question", question),
		slog.String("normalized", normalized),
	)

	start := time.Now()
	completion, err := p.completer.Complete(ctx, prompt.Build(normalized))
	observability.ObserveStageDuration(string(StageCompletion), time.Since(start))
	if err != nil {
		return 0, p.fail(ctx, logger, &Error{Stage: StageCompletion, RequestID: requestID, Err: err})
	}

	start = time.Now()
	stmt, err := nl2sql.ExtractWithOptions(completion, nl2sql.ExtractOptions{RejectMultiple: p.cfg.RejectMultiStatement})
	observability.ObserveStageDuration(string(StageExtraction), time.Since(start))
	if err != nil {
		logger.DebugContext(ctx, "completion_rejected", slog.String("completion", completion))
		return 0, p.fail(ctx, logger, &Error{Stage: StageExtraction, RequestID: requestID, Err: err})
	}
	logger.DebugContext(ctx, "statement_extracted", slog.String("sql", stmt.SQL()))
	if stmt.Truncated() {
		observability.IncrementTruncatedStatements()
		logger.WarnContext(ctx, "statement_truncated",
			slog.String("sql", stmt.SQL()),
			slog.String("completion", completion),
		)
	}

	start = time.Now()
	value, err := p.runner.Run(ctx, stmt)
	observability.ObserveStageDuration(string(StageExecution), time.Since(start))
	if err != nil {
		return 0, p.fail(ctx, logger, &Error{Stage: StageExecution, RequestID: requestID, Statement: stmt.SQL(), Err: err})
	}

	observability.ObserveAnswer(observability.OutcomeSuccess, "")
	logger.InfoContext(ctx, "answer_completed", slog.Int64("value", value))
	return value, nil
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, answerErr *Error) error {
	observability.ObserveAnswer(observability.OutcomeFailure, string(answerErr.Stage))
	attrs := []any{
		slog.String("stage", string(answerErr.Stage)),
		slog.Any("error", answerErr.Err),
	}
	if answerErr.Statement != "" {
		attrs = append(attrs, slog.String("sql", answerErr.Statement))
	}
	if errors.Is(answerErr.Err, context.Canceled) {
		logger.WarnContext(ctx, "answer_cancelled", attrs...)
		return answerErr
	}
	logger.ErrorContext(ctx, "answer_failed", attrs...)
	return answerErr
}

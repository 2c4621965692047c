// Package pipeline feeds commands from the broker into the engine.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/engine"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Extractor reads the next message from the source.
type Extractor interface {
	Extract(ctx context.Context) (domain.InboundMessage, error)
}

// Dispatcher applies a command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd engine.Command) error
}

// Pipeline orchestrates the decode-dispatch-commit loop.
type Pipeline struct {
	extractor  Extractor
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline reading from e and dispatching to d.
func New(e Extractor, d Dispatcher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:  e,
		dispatcher: d,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run consumes commands until the context is cancelled or the engine stops.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("command intake started")
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("command intake stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processOne(ctx, &backoff) {
			return nil
		}
	}
}

// processOne handles a single message. Returns false if the loop should stop.
func (p *Pipeline) processOne(ctx context.Context, backoff *time.Duration) bool {
	msg, err := p.extractor.Extract(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract command failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}
	*backoff = initialBackoff
	p.metrics.CommandsConsumed.Inc()

	cmd, err := engine.ParseCommand(msg.Value)
	if err != nil {
		p.logger.Warn("invalid command, skipping message",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		p.metrics.CommandErrors.Inc()
		p.commitOffset(ctx, msg)
		return true
	}

	if err := p.dispatcher.Dispatch(ctx, cmd); err != nil {
		if ctx.Err() != nil || errors.Is(err, engine.ErrNotRunning) {
			// Left uncommitted so the command is redelivered.
			return false
		}
		p.logger.Warn("command rejected",
			"command", cmd.Name(),
			"error", err,
			"offset", msg.Offset,
		)
		p.metrics.CommandErrors.Inc()
	}
	p.commitOffset(ctx, msg)
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the loop should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, msg domain.InboundMessage) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}

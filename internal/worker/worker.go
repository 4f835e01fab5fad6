package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
	"github.com/fedsport/backend/pkg/queue"
)

// dequeueWait bounds each blocking pop so shutdown is noticed promptly.
const dequeueWait = 5 * time.Second

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent job failure")

// EventHandler applies a gateway outcome. Implemented by checkout.Orchestrator.
type EventHandler interface {
	HandleGatewayEvent(ctx context.Context, provider, externalRef string, outcome models.ChargeOutcome) (*models.Payment, error)
}

// JobQueue is the subset of queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) error
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// CallbackProcessor consumes gateway callback jobs and settles payments.
type CallbackProcessor struct {
	handler EventHandler
	queue   JobQueue
	backoff time.Duration
	logger  *zap.Logger
}

// NewCallbackProcessor creates a payment callback processor.
func NewCallbackProcessor(handler EventHandler, q JobQueue, logger *zap.Logger) *CallbackProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackProcessor{handler: handler, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// SetBackoff overrides the delay after a failed job.
func (p *CallbackProcessor) SetBackoff(d time.Duration) {
	p.backoff = d
}

// Process executes one callback job.
func (p *CallbackProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.PaymentCallback()
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	outcome := models.ChargeOutcome(payload.Outcome)
	if !outcome.Valid() {
		return fmt.Errorf("%w: unknown outcome %q", errPermanent, payload.Outcome)
	}

	pay, err := p.handler.HandleGatewayEvent(ctx, payload.Provider, payload.ExternalRef, outcome)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindValidation, apperr.KindInvalidState:
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		// Not found stays retryable: the charge reference may not be committed yet.
		return err
	}
	p.logger.Info("payment callback processed",
		zap.String("job_id", job.ID),
		zap.String("payment_id", pay.ID.String()),
		zap.String("status", string(pay.Status)))
	return nil
}

// Handle processes a job and routes failures to retry or the DLQ.
// It reports whether the job failed.
func (p *CallbackProcessor) Handle(ctx context.Context, job *queue.Job) bool {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		return false
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if errors.Is(err, errPermanent) {
		if dlqErr := p.queue.DeadLetter(ctx, job, err); dlqErr != nil {
			p.logger.Error("dead-letter failed", zap.Error(dlqErr))
		}
		return true
	}
	if reErr := p.queue.Retry(ctx, job, err); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	return true
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CallbackProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("payment callback worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if failed := p.Handle(ctx, job); failed {
			p.sleep(ctx)
		}
	}
}

func (p *CallbackProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

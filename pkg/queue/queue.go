package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueuePaymentCallbacks is the Redis list key for gateway callback jobs.
	QueuePaymentCallbacks = "worker:payment_callbacks"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypePaymentCallback JobType = "payment_callback"
)

// PaymentCallbackPayload carries a verified gateway outcome.
type PaymentCallbackPayload struct {
	Provider    string    `json:"provider"`
	ExternalRef string    `json:"external_ref"`
	Outcome     string    `json:"outcome"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPaymentCallbackJob wraps payload in a fresh job envelope.
func NewPaymentCallbackJob(payload PaymentCallbackPayload) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypePaymentCallback,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// PaymentCallback decodes the job payload.
func (j *Job) PaymentCallback() (PaymentCallbackPayload, error) {
	var p PaymentCallbackPayload
	if j.Type != JobTypePaymentCallback {
		return p, fmt.Errorf("job %s: unexpected type %q", j.ID, j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode payment callback: %w", err)
	}
	return p, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueuePaymentCallback enqueues a gateway callback for the worker.
func (q *Queue) EnqueuePaymentCallback(ctx context.Context, payload PaymentCallbackPayload) error {
	job, err := NewPaymentCallbackJob(payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueuePaymentCallbacks, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued payment callback job",
		zap.String("job_id", job.ID),
		zap.String("external_ref", payload.ExternalRef),
		zap.String("outcome", payload.Outcome))
	return nil
}

// Dequeue blocks up to timeout for a job. A nil job with nil error means the wait expired
// or the entry was unreadable.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueuePaymentCallbacks).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempt >= MaxRetries {
		return q.DeadLetter(ctx, job, cause)
	}
	if err := q.push(ctx, QueuePaymentCallbacks, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetter moves a job straight to the DLQ.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, cause error) error {
	if cause != nil {
		job.LastError = cause.Error()
	}
	if err := q.push(ctx, QueueDLQ, job); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.String("last_error", job.LastError))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

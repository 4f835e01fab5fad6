package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
	"github.com/fedsport/backend/pkg/queue"
)

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) HandleGatewayEvent(ctx context.Context, provider, ref string, outcome models.ChargeOutcome) (*models.Payment, error) {
	args := m.Called(ctx, provider, ref, outcome)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	args := m.Called(ctx, timeout)
	j, _ := args.Get(0).(*queue.Job)
	return j, args.Error(1)
}

func (m *mockQueue) Retry(ctx context.Context, job *queue.Job, cause error) error {
	return m.Called(ctx, job, cause).Error(0)
}

func (m *mockQueue) DeadLetter(ctx context.Context, job *queue.Job, cause error) error {
	return m.Called(ctx, job, cause).Error(0)
}

func callbackJob(t *testing.T, outcome string) *queue.Job {
	job, err := queue.NewPaymentCallbackJob(queue.PaymentCallbackPayload{Provider: "stub", ExternalRef: "stub_1", Outcome: outcome})
	require.NoError(t, err)
	return job
}

func TestHandleRoutesFailures(t *testing.T) {
	ctx := context.Background()
	paid := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusConfirmed}

	tests := []struct {
		name       string
		outcome    string
		handlerErr error
		call       bool
		expect     string // "", "Retry" or "DeadLetter"
	}{
		{"applied", "confirmed", nil, true, ""},
		{"store busy", "confirmed", apperr.New(apperr.KindUnavailable, "busy"), true, "Retry"},
		{"reference not committed yet", "failed", apperr.New(apperr.KindNotFound, "not found"), true, "Retry"},
		{"contradicting outcome", "failed", apperr.New(apperr.KindInvalidState, "already confirmed"), true, "DeadLetter"},
		{"unknown outcome", "refunded", nil, false, "DeadLetter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := new(mockHandler)
			q := new(mockQueue)
			job := callbackJob(t, tt.outcome)
			if tt.call {
				h.On("HandleGatewayEvent", ctx, "stub", "stub_1", models.ChargeOutcome(tt.outcome)).Return(paid, tt.handlerErr).Once()
			}
			if tt.expect != "" {
				q.On(tt.expect, ctx, job, mock.Anything).Return(nil).Once()
			}

			failed := NewCallbackProcessor(h, q, nil).Handle(ctx, job)
			assert.Equal(t, tt.expect != "", failed)
			h.AssertExpectations(t)
			q.AssertExpectations(t)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := new(mockHandler)
	q := new(mockQueue)
	job := callbackJob(t, "confirmed")
	paid := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusConfirmed}

	q.On("Dequeue", mock.Anything, dequeueWait).Return(job, nil).Once()
	q.On("Dequeue", mock.Anything, dequeueWait).Return(nil, errors.New("closed")).Run(func(mock.Arguments) { cancel() })
	h.On("HandleGatewayEvent", mock.Anything, "stub", "stub_1", models.OutcomeConfirmed).Return(paid, nil).Once()

	p := NewCallbackProcessor(h, q, nil)
	p.SetBackoff(time.Millisecond)
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	h.AssertExpectations(t)
}

package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentCallbackJob(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job, err := NewPaymentCallbackJob(PaymentCallbackPayload{
		Provider:    "stub",
		ExternalRef: "stub_abc",
		Outcome:     "confirmed",
		ReceivedAt:  at,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypePaymentCallback, job.Type)
	assert.Zero(t, job.Attempt)

	raw, err := json.Marshal(job)
	require.NoError(t, err)
	var back Job
	require.NoError(t, json.Unmarshal(raw, &back))

	p, err := back.PaymentCallback()
	require.NoError(t, err)
	assert.Equal(t, "stub_abc", p.ExternalRef)
	assert.Equal(t, "confirmed", p.Outcome)
	assert.True(t, at.Equal(p.ReceivedAt))
}

func TestPaymentCallbackRejectsOtherTypes(t *testing.T) {
	job := &Job{ID: "j1", Type: "email", Payload: json.RawMessage(`{}`)}
	_, err := job.PaymentCallback()
	assert.Error(t, err)
}

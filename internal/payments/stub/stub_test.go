package stub

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/payments"
)

func TestCreateCharge(t *testing.T) {
	p := New("s3cret", "https://fed.test/")
	id := uuid.New()

	charge, err := p.CreateCharge(context.Background(), payments.ChargeRequest{PaymentID: id, AmountCents: 12500, Currency: "BRL", MethodID: "pix"})
	require.NoError(t, err)
	assert.Equal(t, "stub_"+id.String(), charge.ExternalRef)
	assert.Equal(t, "https://fed.test/pay/stub?ref=stub_"+id.String(), charge.PayURL)

	_, err = p.CreateCharge(context.Background(), payments.ChargeRequest{PaymentID: id})
	assert.Error(t, err)
}

func TestParseCallback(t *testing.T) {
	p := New("s3cret", "")
	ctx := context.Background()

	body := []byte(`{"external_ref":"stub_1","status":"paid"}`)
	cb, err := p.ParseCallback(ctx, body, map[string]string{"x-signature": Sign("s3cret", body)})
	require.NoError(t, err)
	assert.Equal(t, payments.Callback{ExternalRef: "stub_1", Outcome: models.OutcomeConfirmed}, cb)

	failed := []byte(`{"external_ref":"stub_1","status":"failed"}`)
	cb, err = p.ParseCallback(ctx, failed, map[string]string{"x-signature": Sign("s3cret", failed)})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, cb.Outcome)

	_, err = p.ParseCallback(ctx, body, map[string]string{"x-signature": Sign("other", body)})
	assert.ErrorIs(t, err, payments.ErrInvalidSignature)

	_, err = p.ParseCallback(ctx, body, nil)
	assert.ErrorIs(t, err, payments.ErrInvalidSignature)

	for _, raw := range []string{
		`{"external_ref":"stub_1","status":"maybe"}`,
		`{"external_ref":"stub_1","status":""}`,
		`{"external_ref":"stub_1"}`,
	} {
		body := []byte(raw)
		_, err = p.ParseCallback(ctx, body, map[string]string{"x-signature": Sign("s3cret", body)})
		assert.Error(t, err, raw)
	}
}

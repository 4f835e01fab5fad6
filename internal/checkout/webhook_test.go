package checkout_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsport/backend/config"
	"github.com/fedsport/backend/internal/checkout"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/payments/stub"
	"github.com/fedsport/backend/internal/registrations"
	"github.com/fedsport/backend/internal/store/memory"
	"github.com/fedsport/backend/pkg/queue"
)

type fakeQueue struct {
	jobs []queue.PaymentCallbackPayload
}

func (q *fakeQueue) EnqueuePaymentCallback(_ context.Context, p queue.PaymentCallbackPayload) error {
	q.jobs = append(q.jobs, p)
	return nil
}

func webhookFixture(t *testing.T) (*checkout.Orchestrator, *memory.Store, *models.Payment, *models.Registration) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	gateway := stub.New("hook-secret", "")
	orch := checkout.NewOrchestrator(st.Checkout(), gateway, config.PaymentsConfig{Currency: "BRL", Methods: []string{"pix"}}, nil, nil)

	athlete := models.Actor{ID: uuid.New(), Role: models.RoleAthlete}
	event, modality := uuid.New(), uuid.New()
	st.Fees().SetFee(event, modality, 5000)
	cart := registrations.NewCart(st.Registrations(), st.Fees(), nil, nil)
	reg, err := cart.AddItem(ctx, athlete, event, modality, models.RegistrationAttributes{
		WeightKg: 58, AgeGroup: "juvenile", WeightDivision: "-60kg", Category: "white belt",
	})
	require.NoError(t, err)
	p, err := orch.Checkout(ctx, athlete, []uuid.UUID{reg.ID}, "pix")
	require.NoError(t, err)
	return orch, st, p, reg
}

func post(r *gin.Engine, path string, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAppliesInline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	orch, st, p, reg := webhookFixture(t)
	h := checkout.NewWebhookHandler(orch, stub.New("hook-secret", ""), nil, nil)
	r := gin.New()
	r.POST("/webhooks/payments/:provider", h.PaymentCallback)

	body := []byte(`{"external_ref":"` + p.ExternalRef + `","status":"paid"}`)

	w := post(r, "/webhooks/payments/stub", body, "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/webhooks/payments/other", body, stub.Sign("hook-secret", body))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(r, "/webhooks/payments/stub", body, stub.Sign("hook-secret", body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := st.Registrations().Get(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, got.Status)

	// Gateways redeliver.
	w = post(r, "/webhooks/payments/stub", body, stub.Sign("hook-secret", body))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookEnqueues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	orch, st, p, reg := webhookFixture(t)
	q := &fakeQueue{}
	h := checkout.NewWebhookHandler(orch, stub.New("hook-secret", ""), q, nil)
	r := gin.New()
	r.POST("/webhooks/payments/:provider", h.PaymentCallback)

	body := []byte(`{"external_ref":"` + p.ExternalRef + `","status":"failed"}`)
	w := post(r, "/webhooks/payments/stub", body, stub.Sign("hook-secret", body))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, p.ExternalRef, q.jobs[0].ExternalRef)
	assert.Equal(t, string(models.OutcomeFailed), q.jobs[0].Outcome)

	got, err := st.Registrations().Get(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPendingPayment, got.Status)
}

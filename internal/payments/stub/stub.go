// Package stub is a self-contained gateway for development and tests.
//
// CreateCharge returns a local pay link. Settlement arrives as a POST to the
// webhook with a JSON body {"external_ref": "...", "status": "paid|failed"}
// signed by X-Signature = hex(HMAC-SHA256(secret, body)).
package stub

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/payments"
)

// Name identifies the provider in configuration and webhook routes.
const Name = "stub"

// Provider is the stub gateway.
type Provider struct {
	secret  string
	baseURL string
}

// New creates a stub provider.
func New(secret, baseURL string) *Provider {
	return &Provider{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) Name() string { return Name }

// CreateCharge derives a reference from the payment id.
func (p *Provider) CreateCharge(ctx context.Context, req payments.ChargeRequest) (payments.Charge, error) {
	if err := ctx.Err(); err != nil {
		return payments.Charge{}, err
	}
	if req.AmountCents <= 0 {
		return payments.Charge{}, fmt.Errorf("stub: amount must be positive")
	}
	ref := "stub_" + req.PaymentID.String()
	url := "/pay/stub?ref=" + ref
	if p.baseURL != "" {
		url = p.baseURL + url
	}
	return payments.Charge{ExternalRef: ref, PayURL: url}, nil
}

type webhookPayload struct {
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"` // paid/failed
}

// ParseCallback verifies the signature and maps the status.
func (p *Provider) ParseCallback(ctx context.Context, body []byte, headers map[string]string) (payments.Callback, error) {
	sig := headers["x-signature"]
	if sig == "" || !hmac.Equal([]byte(sig), []byte(Sign(p.secret, body))) {
		return payments.Callback{}, payments.ErrInvalidSignature
	}

	var pl webhookPayload
	if err := json.Unmarshal(body, &pl); err != nil {
		return payments.Callback{}, fmt.Errorf("stub: decode webhook: %w", err)
	}
	if pl.ExternalRef == "" {
		return payments.Callback{}, fmt.Errorf("stub: external_ref required")
	}

	var outcome models.ChargeOutcome
	switch strings.ToLower(strings.TrimSpace(pl.Status)) {
	case "paid", "confirmed":
		outcome = models.OutcomeConfirmed
	case "failed", "cancelled", "declined":
		outcome = models.OutcomeFailed
	default:
		return payments.Callback{}, fmt.Errorf("stub: unknown status %q", pl.Status)
	}
	return payments.Callback{ExternalRef: pl.ExternalRef, Outcome: outcome}, nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

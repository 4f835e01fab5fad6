// Package payments defines the payment gateway boundary used by checkout.
package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
)

// ErrInvalidSignature is returned when a webhook fails authentication.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ChargeRequest asks the gateway to open a charge for a reserved payment.
type ChargeRequest struct {
	PaymentID   uuid.UUID
	AmountCents int64
	Currency    string
	MethodID    string
	Description string
}

// Charge is the gateway's handle for an opened charge.
type Charge struct {
	ExternalRef string
	PayURL      string
}

// Callback is a verified settlement notification.
type Callback struct {
	ExternalRef string
	Outcome     models.ChargeOutcome
}

// Provider is a payment gateway adapter.
type Provider interface {
	Name() string

	// CreateCharge opens a charge and returns the gateway reference and pay link.
	CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error)

	// ParseCallback authenticates a webhook and extracts the outcome.
	// Header keys are lower-case.
	ParseCallback(ctx context.Context, body []byte, headers map[string]string) (Callback, error)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a checkout payment.
type PaymentStatus string

// PaymentStatus for payments: created -> pending (at gateway) -> confirmed | failed.
const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusFailed
}

// ChargeOutcome is a settlement result reported by the payment gateway.
type ChargeOutcome string

const (
	OutcomeConfirmed ChargeOutcome = "confirmed"
	OutcomeFailed    ChargeOutcome = "failed"
)

// Valid reports whether o is a known outcome.
func (o ChargeOutcome) Valid() bool {
	return o == OutcomeConfirmed || o == OutcomeFailed
}

// Failure reasons recorded on failed payments.
const (
	FailureGateway  = "gateway_failed"
	FailureDeclined = "declined"
	FailureVoided   = "voided"
)

// PaymentItem is one registration billed by a payment, fee frozen at checkout.
type PaymentItem struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	FeeCents       int64     `json:"fee_cents"`
}

// Payment is a single charge covering one or more registrations.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	AthleteID     uuid.UUID     `json:"athlete_id"`
	MethodID      string        `json:"method_id"`
	Provider      string        `json:"provider"`
	ExternalRef   string        `json:"external_ref,omitempty"`
	PayURL        string        `json:"pay_url,omitempty"`
	AmountCents   int64         `json:"amount_cents"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Items         []PaymentItem `json:"items"`
	SettledAt     *time.Time    `json:"settled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ItemTotal sums the frozen fees of all items.
func (p *Payment) ItemTotal() int64 {
	var total int64
	for _, it := range p.Items {
		total += it.FeeCents
	}
	return total
}

// Clone returns a deep copy.
func (p *Payment) Clone() *Payment {
	c := *p
	c.Items = append([]PaymentItem(nil), p.Items...)
	c.SettledAt = cloneTime(p.SettledAt)
	return &c
}

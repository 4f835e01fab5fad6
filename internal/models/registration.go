package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/pkg/apperr"
)

// RegistrationStatus is the lifecycle state of a competition registration.
type RegistrationStatus string

const (
	RegistrationCart           RegistrationStatus = "cart"
	RegistrationPendingPayment RegistrationStatus = "pending_payment"
	RegistrationConfirmed      RegistrationStatus = "confirmed"
	RegistrationCancelled      RegistrationStatus = "cancelled"
)

// MaxWeightKg bounds the declared competition weight.
const MaxWeightKg = 300

// Editable reports whether attributes may still change in this status.
func (s RegistrationStatus) Editable() bool {
	return s == RegistrationCart || s == RegistrationPendingPayment
}

// Active reports whether the registration still counts against duplicates.
func (s RegistrationStatus) Active() bool {
	return s != RegistrationCancelled
}

// RegistrationAttributes are the athlete-declared competition details.
type RegistrationAttributes struct {
	WeightKg       float64 `json:"weight_kg"`
	AgeGroup       string  `json:"age_group"`
	WeightDivision string  `json:"weight_division"`
	Category       string  `json:"category"`
}

// Validate checks declared attributes.
func (a RegistrationAttributes) Validate() error {
	if a.WeightKg <= 0 || a.WeightKg > MaxWeightKg {
		return apperr.New(apperr.KindValidation, "weight_kg must be between 0 and 300")
	}
	if strings.TrimSpace(a.AgeGroup) == "" {
		return apperr.New(apperr.KindValidation, "age_group required")
	}
	if strings.TrimSpace(a.WeightDivision) == "" {
		return apperr.New(apperr.KindValidation, "weight_division required")
	}
	if strings.TrimSpace(a.Category) == "" {
		return apperr.New(apperr.KindValidation, "category required")
	}
	return nil
}

// Registration is an athlete's entry into an event competition modality.
type Registration struct {
	ID         uuid.UUID              `json:"id"`
	AthleteID  uuid.UUID              `json:"athlete_id"`
	EventID    uuid.UUID              `json:"event_id"`
	ModalityID uuid.UUID              `json:"competition_modality_id"`
	Attributes RegistrationAttributes `json:"attributes"`
	Status     RegistrationStatus     `json:"status"`
	FeeCents   int64                  `json:"fee_cents"`
	PaymentID  *uuid.UUID             `json:"payment_id,omitempty"`
	Seq        int64                  `json:"-"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Clone returns a deep copy.
func (r *Registration) Clone() *Registration {
	c := *r
	c.PaymentID = cloneUUID(r.PaymentID)
	return &c
}

package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
)

// Store persists payments and runs reservation transactions over
// registrations and payments. Implementations live in internal/store.
type Store interface {
	// RunInTx runs fn atomically. Any error returned by fn rolls back every write.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByExternalRef(ctx context.Context, provider, ref string) (*models.Payment, error)
	ListPaymentsByAthlete(ctx context.Context, athleteID uuid.UUID) ([]*models.Payment, error)
}

// Tx is the transactional view used by the orchestrator.
// Lock methods hold the row until the transaction ends.
type Tx interface {
	GetRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	LockRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// LockRegistrations locks rows in id order. Missing ids are omitted from the result.
	LockRegistrations(ctx context.Context, ids []uuid.UUID) ([]*models.Registration, error)
	// TransitionRegistrations moves ids from one status to another and links them
	// to paymentID (nil clears the link). It returns how many rows matched from.
	TransitionRegistrations(ctx context.Context, ids []uuid.UUID, from, to models.RegistrationStatus, paymentID *uuid.UUID, at time.Time) (int64, error)
	// SettlePaymentRegistrations moves every pending registration linked to the
	// payment to status to, clearing the link when to is cart.
	SettlePaymentRegistrations(ctx context.Context, paymentID uuid.UUID, to models.RegistrationStatus, at time.Time) (int64, error)
	DeleteRegistration(ctx context.Context, id uuid.UUID) error
	InsertPayment(ctx context.Context, p *models.Payment) error
	LockPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
}

// Notifier is told about every committed payment change.
type Notifier interface {
	PaymentChanged(ctx context.Context, p *models.Payment)
}

package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
)

// Store persists registrations. Implementations live in internal/store.
type Store interface {
	// Create inserts r and assigns its creation sequence. It fails with
	// apperr.ErrConflict when the athlete already holds a non-cancelled
	// registration for the same event and modality.
	Create(ctx context.Context, r *models.Registration) error
	Get(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// ListByAthlete returns the athlete's registrations in creation order,
	// restricted to statuses when any are given.
	ListByAthlete(ctx context.Context, athleteID uuid.UUID, statuses ...models.RegistrationStatus) ([]*models.Registration, error)
	// DeleteInCart removes a registration still in the cart. Any other status
	// yields apperr.ErrInvalidState.
	DeleteInCart(ctx context.Context, id uuid.UUID) error
	// UpdateAttributes replaces attributes while the registration is editable,
	// else apperr.ErrInvalidState.
	UpdateAttributes(ctx context.Context, id uuid.UUID, attrs models.RegistrationAttributes, at time.Time) (*models.Registration, error)
}

// FeeSchedule is the read-only competition fee catalog.
type FeeSchedule interface {
	// Fee returns the entry fee in cents, or apperr.ErrNotFound when the event
	// does not offer the modality.
	Fee(ctx context.Context, eventID, modalityID uuid.UUID) (int64, error)
}

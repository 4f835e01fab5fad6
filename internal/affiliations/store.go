package affiliations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
)

// Store persists affiliations. Implementations live in internal/store.
type Store interface {
	// Create inserts a. It fails with apperr.ErrConflict when the athlete already
	// holds a non-rejected affiliation for the same academy and modality.
	Create(ctx context.Context, a *models.Affiliation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Affiliation, error)
	// LatestFor returns the most recent affiliation for the pair, or nil.
	LatestFor(ctx context.Context, athleteID, academyID, modalityID uuid.UUID) (*models.Affiliation, error)
	ListByAthlete(ctx context.Context, athleteID uuid.UUID) ([]*models.Affiliation, error)
	// ListPendingDocuments returns affiliations awaiting document review, oldest first.
	ListPendingDocuments(ctx context.Context) ([]*models.Affiliation, error)
	// ListPendingTechnical returns affiliations with approved documents awaiting technical review, oldest first.
	ListPendingTechnical(ctx context.Context) ([]*models.Affiliation, error)
	// DecideGate atomically sets gate and the derived status. The write only
	// applies while the gate is pending and, for the technical gate, the
	// document gate is approved; otherwise the error from CanDecide is returned.
	DecideGate(ctx context.Context, id uuid.UUID, gate models.Gate, decision models.GateStatus, by uuid.UUID, at time.Time) (*models.Affiliation, error)
}

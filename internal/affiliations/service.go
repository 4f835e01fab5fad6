package affiliations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedsport/backend/internal/access"
	"github.com/fedsport/backend/internal/metrics"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
)

// decideAttempts bounds retries of a gate write after a transient store failure.
const decideAttempts = 3

// Engine runs the two-gate affiliation approval workflow.
type Engine struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates an approval engine.
func NewEngine(store Store, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, metrics: m, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Submit creates a new affiliation request for the calling athlete.
func (e *Engine) Submit(ctx context.Context, actor models.Actor, academyID, modalityID uuid.UUID) (*models.Affiliation, error) {
	if err := access.Authorize(actor, access.SubmitAffiliation); err != nil {
		return nil, err
	}
	if academyID == uuid.Nil || modalityID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "academy_id and modality_id required")
	}

	latest, err := e.store.LatestFor(ctx, actor.ID, academyID, modalityID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindOf(err), "load existing affiliation")
	}
	if latest != nil && latest.Status != models.AffiliationRejected {
		return nil, duplicateErr(latest.Status)
	}

	a := models.NewAffiliation(actor.ID, academyID, modalityID, e.now())
	if latest != nil {
		id := latest.ID
		a.SupersedesID = &id
	}
	if err := e.store.Create(ctx, a); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, duplicateErr(models.AffiliationPending)
		}
		return nil, apperr.Wrap(err, apperr.KindOf(err), "create affiliation")
	}

	e.metrics.IncSubmitted()
	e.logger.Info("affiliation submitted",
		zap.String("affiliation_id", a.ID.String()),
		zap.String("athlete_id", actor.ID.String()),
		zap.String("academy_id", academyID.String()),
		zap.String("modality_id", modalityID.String()))
	return a, nil
}

func duplicateErr(status models.AffiliationStatus) error {
	if status == models.AffiliationApproved {
		return apperr.New(apperr.KindValidation, "athlete is already affiliated with this academy and modality")
	}
	return apperr.New(apperr.KindValidation, "an affiliation request for this academy and modality is already pending")
}

// Get returns one affiliation. Athletes only see their own.
func (e *Engine) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Affiliation, error) {
	if err := access.Authorize(actor, access.ViewAffiliation); err != nil {
		return nil, err
	}
	a, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindOf(err), "affiliation not found")
	}
	if err := access.AuthorizeOwner(actor, access.ViewAffiliation, a.AthleteID); err != nil {
		return nil, apperr.New(apperr.KindNotFound, "affiliation not found")
	}
	return a, nil
}

// ListMine returns every affiliation the calling athlete submitted.
func (e *Engine) ListMine(ctx context.Context, actor models.Actor) ([]*models.Affiliation, error) {
	if err := access.Authorize(actor, access.ListOwnAffiliations); err != nil {
		return nil, err
	}
	return e.store.ListByAthlete(ctx, actor.ID)
}

// ListPendingDocuments returns the administrator document review queue.
func (e *Engine) ListPendingDocuments(ctx context.Context, actor models.Actor) ([]*models.Affiliation, error) {
	if err := access.Authorize(actor, access.ListPendingDocuments); err != nil {
		return nil, err
	}
	return e.store.ListPendingDocuments(ctx)
}

// ListPendingTechnical returns the technical review queue: documents approved, technical pending.
func (e *Engine) ListPendingTechnical(ctx context.Context, actor models.Actor) ([]*models.Affiliation, error) {
	if err := access.Authorize(actor, access.ListPendingTechnical); err != nil {
		return nil, err
	}
	return e.store.ListPendingTechnical(ctx)
}

// SetDocumentGate records the administrator's document decision.
func (e *Engine) SetDocumentGate(ctx context.Context, actor models.Actor, id uuid.UUID, decision models.GateStatus) (*models.Affiliation, error) {
	if err := access.Authorize(actor, access.DecideDocumentGate); err != nil {
		return nil, err
	}
	return e.decide(ctx, actor, id, models.GateDocument, decision)
}

// SetTechnicalGate records a coach or administrator technical decision.
func (e *Engine) SetTechnicalGate(ctx context.Context, actor models.Actor, id uuid.UUID, decision models.GateStatus) (*models.Affiliation, error) {
	if err := access.Authorize(actor, access.DecideTechnicalGate); err != nil {
		return nil, err
	}
	return e.decide(ctx, actor, id, models.GateTechnical, decision)
}

func (e *Engine) decide(ctx context.Context, actor models.Actor, id uuid.UUID, gate models.Gate, decision models.GateStatus) (*models.Affiliation, error) {
	if !decision.IsDecision() {
		return nil, apperr.Newf(apperr.KindValidation, "decision must be %q or %q", models.GateApproved, models.GateRejected)
	}

	var (
		a       *models.Affiliation
		err     error
		retried bool
	)
	for attempt := 1; attempt <= decideAttempts; attempt++ {
		a, err = e.store.DecideGate(ctx, id, gate, decision, actor.ID, e.now())
		if err == nil || !errors.Is(err, apperr.ErrUnavailable) {
			break
		}
		retried = true
		e.logger.Warn("gate write failed, retrying",
			zap.String("affiliation_id", id.String()),
			zap.String("gate", string(gate)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil && retried && apperr.HasKind(err, apperr.KindInvalidState) {
		// An earlier attempt may have committed before its response was lost.
		if cur, getErr := e.store.Get(ctx, id); getErr == nil && appliedBy(cur, gate, decision, actor.ID) {
			a, err = cur, nil
		}
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "affiliation not found")
		}
		if errors.Is(err, apperr.ErrUnavailable) {
			return nil, apperr.Wrap(err, apperr.KindUnavailable, "approval store unavailable, try again")
		}
		return nil, err
	}

	e.metrics.IncGateDecision(string(gate), string(decision))
	e.logger.Info("affiliation gate decided",
		zap.String("affiliation_id", id.String()),
		zap.String("gate", string(gate)),
		zap.String("decision", string(decision)),
		zap.String("decided_by", actor.ID.String()),
		zap.String("status", string(a.Status)))
	return a, nil
}

func appliedBy(a *models.Affiliation, gate models.Gate, decision models.GateStatus, by uuid.UUID) bool {
	decidedBy := a.DecidedBy(gate)
	return a.Gate(gate) == decision && decidedBy != nil && *decidedBy == by
}

package registrations

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

// Cart manages an athlete's pending competition registrations.
type Cart struct {
	store   Store
	fees    FeeSchedule
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCart creates a registration cart.
func NewCart(store Store, fees FeeSchedule, m *metrics.Metrics, logger *zap.Logger) *Cart {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cart{store: store, fees: fees, metrics: m, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// AddItem places a new registration in the athlete's cart at the current fee.
func (c *Cart) AddItem(ctx context.Context, actor models.Actor, eventID, modalityID uuid.UUID, attrs models.RegistrationAttributes) (*models.Registration, error) {
	if err := access.Authorize(actor, access.ManageCart); err != nil {
		return nil, err
	}
	if eventID == uuid.Nil || modalityID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "event_id and competition_modality_id required")
	}
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	fee, err := c.fees.Fee(ctx, eventID, modalityID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.KindValidation, "event does not offer this competition modality")
		}
		return nil, apperr.Wrap(err, apperr.KindOf(err), "load competition fee")
	}

	now := c.now()
	r := &models.Registration{
		ID:         uuid.New(),
		AthleteID:  actor.ID,
		EventID:    eventID,
		ModalityID: modalityID,
		Attributes: attrs,
		Status:     models.RegistrationCart,
		FeeCents:   fee,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.Create(ctx, r); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.New(apperr.KindConflict, "athlete is already registered for this event modality")
		}
		return nil, apperr.Wrap(err, apperr.KindOf(err), "create registration")
	}

	c.metrics.IncCartAction("add")
	c.logger.Info("cart item added",
		zap.String("registration_id", r.ID.String()),
		zap.String("athlete_id", actor.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.Int64("fee_cents", fee))
	return r, nil
}

// RemoveItem deletes a registration that is still in the cart.
func (c *Cart) RemoveItem(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if _, err := c.owned(ctx, actor, access.ManageCart, id); err != nil {
		return err
	}
	if err := c.store.DeleteInCart(ctx, id); err != nil {
		return translate(err, "only cart items can be removed")
	}
	c.metrics.IncCartAction("remove")
	c.logger.Info("cart item removed", zap.String("registration_id", id.String()))
	return nil
}

// UpdateItem replaces the declared attributes of a cart or pending registration.
func (c *Cart) UpdateItem(ctx context.Context, actor models.Actor, id uuid.UUID, attrs models.RegistrationAttributes) (*models.Registration, error) {
	if _, err := c.owned(ctx, actor, access.ManageCart, id); err != nil {
		return nil, err
	}
	if err := attrs.Validate(); err != nil {
		return nil, err
	}
	r, err := c.store.UpdateAttributes(ctx, id, attrs, c.now())
	if err != nil {
		return nil, translate(err, "registration can no longer be edited")
	}
	c.metrics.IncCartAction("update")
	return r, nil
}

// ListCart returns the athlete's cart items in the order they were added.
func (c *Cart) ListCart(ctx context.Context, actor models.Actor) ([]*models.Registration, error) {
	if err := access.Authorize(actor, access.ManageCart); err != nil {
		return nil, err
	}
	return c.store.ListByAthlete(ctx, actor.ID, models.RegistrationCart)
}

// MyRegistrations returns all of the athlete's registrations in any status.
func (c *Cart) MyRegistrations(ctx context.Context, actor models.Actor) ([]*models.Registration, error) {
	if err := access.Authorize(actor, access.ListOwnRegistrations); err != nil {
		return nil, err
	}
	return c.store.ListByAthlete(ctx, actor.ID)
}

func (c *Cart) owned(ctx context.Context, actor models.Actor, op access.Operation, id uuid.UUID) (*models.Registration, error) {
	if err := access.Authorize(actor, op); err != nil {
		return nil, err
	}
	r, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "")
	}
	if err := access.AuthorizeOwner(actor, op, r.AthleteID); err != nil {
		return nil, apperr.New(apperr.KindNotFound, "registration not found")
	}
	return r, nil
}

func translate(err error, invalidState string) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "registration not found")
	case errors.Is(err, apperr.ErrInvalidState):
		return apperr.New(apperr.KindInvalidState, invalidState)
	}
	return apperr.Wrap(err, apperr.KindOf(err), "registration store")
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedsport/backend/config"
	"github.com/fedsport/backend/internal/access"
	"github.com/fedsport/backend/internal/metrics"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/payments"
	"github.com/fedsport/backend/pkg/apperr"
)

// Orchestrator reserves registrations into payments and settles them from
// gateway callbacks.
type Orchestrator struct {
	store    Store
	gateway  payments.Provider
	cfg      config.PaymentsConfig
	metrics  *metrics.Metrics
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	releaseBackoff time.Duration
}

const (
	releaseAttempts       = 4
	defaultReleaseBackoff = 200 * time.Millisecond
)

// NewOrchestrator creates a checkout orchestrator.
func NewOrchestrator(store Store, gateway payments.Provider, cfg config.PaymentsConfig, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },

		releaseBackoff: defaultReleaseBackoff,
	}
}

// SetNotifier sets the listener for committed payment changes (optional).
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// SetReleaseBackoff sets the base delay between attempts to release a
// reservation whose charge failed.
func (o *Orchestrator) SetReleaseBackoff(d time.Duration) {
	o.releaseBackoff = d
}

// CancelResult describes what a cancellation changed.
type CancelResult struct {
	Registration *models.Registration `json:"registration"`
	// Deleted is set when a cart item was removed outright.
	Deleted bool `json:"deleted"`
	// VoidedPayment is the pending payment invalidated by the cancellation.
	VoidedPayment *models.Payment `json:"voided_payment,omitempty"`
}

// Checkout reserves the selected cart registrations into one payment and opens
// a gateway charge for it. The reservation is all-or-nothing.
func (o *Orchestrator) Checkout(ctx context.Context, actor models.Actor, registrationIDs []uuid.UUID, methodID string) (*models.Payment, error) {
	if err := access.Authorize(actor, access.CreateCheckout); err != nil {
		return nil, err
	}
	ids, err := normalizeIDs(registrationIDs)
	if err != nil {
		o.metrics.IncCheckout("rejected")
		return nil, err
	}
	if !o.cfg.MethodAllowed(methodID) {
		o.metrics.IncCheckout("rejected")
		return nil, apperr.Newf(apperr.KindValidation, "unsupported payment method %q", methodID)
	}

	now := o.now()
	p := &models.Payment{
		ID:        uuid.New(),
		AthleteID: actor.ID,
		MethodID:  methodID,
		Provider:  o.gateway.Name(),
		Currency:  o.cfg.Currency,
		Status:    models.PaymentStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = o.store.RunInTx(ctx, func(tx Tx) error {
		regs, err := tx.LockRegistrations(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*models.Registration, len(regs))
		for _, r := range regs {
			byID[r.ID] = r
		}
		if err := classify(actor, ids, byID); err != nil {
			return err
		}

		p.Items = make([]models.PaymentItem, 0, len(ids))
		for _, id := range ids {
			p.Items = append(p.Items, models.PaymentItem{RegistrationID: id, FeeCents: byID[id].FeeCents})
		}
		p.AmountCents = p.ItemTotal()
		if p.AmountCents <= 0 {
			return apperr.New(apperr.KindValidation, "selected registrations have no fee to charge")
		}

		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		n, err := tx.TransitionRegistrations(ctx, ids, models.RegistrationCart, models.RegistrationPendingPayment, &p.ID, now)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return apperr.New(apperr.KindConflict, "registrations were reserved by another checkout")
		}
		return nil
	})
	if err != nil {
		if apperr.HasKind(err, apperr.KindConflict) {
			o.metrics.IncCheckout("conflict")
		} else {
			o.metrics.IncCheckout("rejected")
		}
		return nil, o.classifyStoreErr(err, "reserve registrations")
	}

	o.logger.Info("checkout reserved",
		zap.String("payment_id", p.ID.String()),
		zap.String("athlete_id", actor.ID.String()),
		zap.Int("items", len(p.Items)),
		zap.Int64("amount_cents", p.AmountCents))
	o.notify(ctx, p)

	return o.openCharge(ctx, p)
}

// openCharge calls the gateway outside any transaction and records the result.
func (o *Orchestrator) openCharge(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.ChargeTimeout())
	defer cancel()

	start := time.Now()
	charge, chargeErr := o.gateway.CreateCharge(cctx, payments.ChargeRequest{
		PaymentID:   p.ID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		MethodID:    p.MethodID,
		Description: fmt.Sprintf("Competition registration (%d items)", len(p.Items)),
	})
	o.metrics.ObserveGatewayLatency(time.Since(start))

	// The reservation is committed; record the outcome even if the caller went away.
	wctx := context.WithoutCancel(ctx)

	if chargeErr != nil {
		o.logger.Error("gateway charge failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("provider", p.Provider),
			zap.Error(chargeErr))
		o.releaseCreated(wctx, p.ID)
		o.metrics.IncCheckout("gateway_failed")
		return nil, &apperr.Error{Kind: apperr.KindPaymentCreation, Message: "payment gateway could not create the charge", Err: chargeErr}
	}

	var (
		out     *models.Payment
		settled bool
	)
	err := o.store.RunInTx(wctx, func(tx Tx) error {
		cur, err := tx.LockPayment(wctx, p.ID)
		if err != nil {
			return err
		}
		// The ref is kept on settled payments so late callbacks still resolve.
		cur.ExternalRef = charge.ExternalRef
		cur.PayURL = charge.PayURL
		if cur.Status == models.PaymentStatusCreated {
			cur.Status = models.PaymentStatusPending
		} else {
			settled = true
		}
		cur.UpdatedAt = o.now()
		if err := tx.UpdatePayment(wctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, o.classifyStoreErr(err, "record gateway charge")
	}
	if settled {
		o.metrics.IncCheckout("voided")
		o.logger.Warn("gateway charge created for settled payment",
			zap.String("payment_id", out.ID.String()),
			zap.String("external_ref", out.ExternalRef),
			zap.String("status", string(out.Status)),
			zap.String("failure_reason", string(out.FailureReason)))
		return nil, apperr.Newf(apperr.KindInvalidState, "payment was %s while the charge was being created", out.Status)
	}

	o.metrics.IncCheckout("reserved")
	o.logger.Info("gateway charge created",
		zap.String("payment_id", out.ID.String()),
		zap.String("external_ref", out.ExternalRef),
		zap.String("status", string(out.Status)))
	o.notify(wctx, out)
	return out, nil
}

// releaseCreated runs failCreated with bounded retries. A payment it cannot
// release stays created with its registrations pending.
func (o *Orchestrator) releaseCreated(ctx context.Context, paymentID uuid.UUID) {
	for attempt := 1; ; attempt++ {
		failed, err := o.failCreated(ctx, paymentID)
		if err == nil {
			if failed != nil {
				o.notify(ctx, failed)
			}
			return
		}
		if attempt >= releaseAttempts {
			o.metrics.IncCheckout("release_failed")
			o.logger.Error("release of failed reservation abandoned",
				zap.String("payment_id", paymentID.String()),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}
		o.logger.Warn("release of failed reservation failed, retrying",
			zap.String("payment_id", paymentID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * o.releaseBackoff)
	}
}

// failCreated fails a payment the gateway never accepted and returns its
// registrations to the cart. Payments already moved on are left alone.
func (o *Orchestrator) failCreated(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var out *models.Payment
	err := o.store.RunInTx(ctx, func(tx Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentStatusCreated {
			return nil
		}
		now := o.now()
		p.Status = models.PaymentStatusFailed
		p.FailureReason = models.FailureGateway
		p.SettledAt = &now
		p.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		if _, err := tx.SettlePaymentRegistrations(ctx, p.ID, models.RegistrationCart, now); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// OnGatewayCallback applies a settlement outcome. Repeating the outcome a
// payment already has is a no-op; contradicting it is an invalid state.
func (o *Orchestrator) OnGatewayCallback(ctx context.Context, paymentID uuid.UUID, outcome models.ChargeOutcome) (*models.Payment, error) {
	if !outcome.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown payment outcome %q", outcome)
	}

	var (
		out       *models.Payment
		duplicate bool
	)
	err := o.store.RunInTx(ctx, func(tx Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		switch p.Status {
		case models.PaymentStatusConfirmed:
			if outcome != models.OutcomeConfirmed {
				return apperr.New(apperr.KindInvalidState, "payment already confirmed")
			}
			out, duplicate = p, true
			return nil
		case models.PaymentStatusFailed:
			if outcome != models.OutcomeFailed {
				return apperr.Newf(apperr.KindInvalidState, "payment already failed (%s)", p.FailureReason)
			}
			out, duplicate = p, true
			return nil
		}

		now := o.now()
		p.SettledAt = &now
		p.UpdatedAt = now
		target := models.RegistrationConfirmed
		if outcome == models.OutcomeConfirmed {
			p.Status = models.PaymentStatusConfirmed
		} else {
			p.Status = models.PaymentStatusFailed
			p.FailureReason = models.FailureDeclined
			target = models.RegistrationCart
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		if _, err := tx.SettlePaymentRegistrations(ctx, p.ID, target, now); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		o.metrics.IncCallback(string(outcome), "rejected")
		o.logger.Warn("gateway callback rejected",
			zap.String("payment_id", paymentID.String()),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		return nil, o.classifyStoreErr(err, "apply gateway callback")
	}

	if duplicate {
		o.metrics.IncCallback(string(outcome), "duplicate")
		o.logger.Info("gateway callback already applied", zap.String("payment_id", paymentID.String()), zap.String("outcome", string(outcome)))
		return out, nil
	}
	o.metrics.IncCallback(string(outcome), "applied")
	o.logger.Info("gateway callback applied",
		zap.String("payment_id", out.ID.String()),
		zap.String("status", string(out.Status)))
	o.notify(ctx, out)
	return out, nil
}

// HandleGatewayEvent resolves a provider reference and applies the outcome.
func (o *Orchestrator) HandleGatewayEvent(ctx context.Context, provider, externalRef string, outcome models.ChargeOutcome) (*models.Payment, error) {
	if externalRef == "" {
		return nil, apperr.New(apperr.KindValidation, "external reference required")
	}
	p, err := o.store.GetPaymentByExternalRef(ctx, provider, externalRef)
	if err != nil {
		return nil, o.classifyStoreErr(err, "find payment by reference")
	}
	return o.OnGatewayCallback(ctx, p.ID, outcome)
}

// CancelRegistration withdraws a registration. Cart items are deleted. A
// pending registration is cancelled and voids its payment, returning the
// other items of that payment to the cart.
func (o *Orchestrator) CancelRegistration(ctx context.Context, actor models.Actor, id uuid.UUID) (*CancelResult, error) {
	if err := access.Authorize(actor, access.CancelRegistration); err != nil {
		return nil, err
	}

	var res CancelResult
	err := o.store.RunInTx(ctx, func(tx Tx) error {
		seen, err := tx.GetRegistration(ctx, id)
		if err != nil {
			return err
		}
		if err := access.AuthorizeOwner(actor, access.CancelRegistration, seen.AthleteID); err != nil {
			return err
		}

		// Payment row first, matching the callback path.
		var p *models.Payment
		if seen.PaymentID != nil {
			if p, err = tx.LockPayment(ctx, *seen.PaymentID); err != nil {
				return err
			}
		}
		r, err := tx.LockRegistration(ctx, id)
		if err != nil {
			return err
		}
		if !samePayment(r.PaymentID, seen.PaymentID) {
			return apperr.New(apperr.KindConflict, "registration changed concurrently, retry")
		}

		now := o.now()
		switch r.Status {
		case models.RegistrationCart:
			if err := tx.DeleteRegistration(ctx, r.ID); err != nil {
				return err
			}
			r.Status = models.RegistrationCancelled
			res = CancelResult{Registration: r, Deleted: true}
			return nil
		case models.RegistrationPendingPayment:
			if p == nil || p.Status.Terminal() {
				return apperr.New(apperr.KindInvalidState, "registration payment is already settled")
			}
			if _, err := tx.TransitionRegistrations(ctx, []uuid.UUID{r.ID}, models.RegistrationPendingPayment, models.RegistrationCancelled, nil, now); err != nil {
				return err
			}
			p.Status = models.PaymentStatusFailed
			p.FailureReason = models.FailureVoided
			p.SettledAt = &now
			p.UpdatedAt = now
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return err
			}
			if _, err := tx.SettlePaymentRegistrations(ctx, p.ID, models.RegistrationCart, now); err != nil {
				return err
			}
			r.Status = models.RegistrationCancelled
			r.PaymentID = nil
			r.UpdatedAt = now
			res = CancelResult{Registration: r, VoidedPayment: p}
			return nil
		default:
			return apperr.Newf(apperr.KindInvalidState, "registration is %s and cannot be cancelled", r.Status)
		}
	})
	if err != nil {
		return nil, o.classifyStoreErr(err, "cancel registration")
	}

	o.metrics.IncCartAction("cancel")
	fields := []zap.Field{zap.String("registration_id", id.String()), zap.Bool("deleted", res.Deleted)}
	if res.VoidedPayment != nil {
		fields = append(fields, zap.String("voided_payment_id", res.VoidedPayment.ID.String()))
		o.notify(ctx, res.VoidedPayment)
	}
	o.logger.Info("registration cancelled", fields...)
	return &res, nil
}

// GetPayment returns a payment to its owner or an administrator.
func (o *Orchestrator) GetPayment(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Payment, error) {
	if err := access.Authorize(actor, access.ViewPayment); err != nil {
		return nil, err
	}
	p, err := o.store.GetPayment(ctx, id)
	if err != nil {
		return nil, o.classifyStoreErr(err, "load payment")
	}
	if err := access.AuthorizeOwner(actor, access.ViewPayment, p.AthleteID); err != nil {
		return nil, apperr.New(apperr.KindNotFound, "payment not found")
	}
	return p, nil
}

// ListMyPayments returns the calling athlete's payments, newest first.
func (o *Orchestrator) ListMyPayments(ctx context.Context, actor models.Actor) ([]*models.Payment, error) {
	if err := access.Authorize(actor, access.ListOwnPayments); err != nil {
		return nil, err
	}
	list, err := o.store.ListPaymentsByAthlete(ctx, actor.ID)
	if err != nil {
		return nil, o.classifyStoreErr(err, "list payments")
	}
	return list, nil
}

func (o *Orchestrator) notify(ctx context.Context, p *models.Payment) {
	if o.notifier != nil {
		o.notifier.PaymentChanged(ctx, p.Clone())
	}
}

// classifyStoreErr keeps domain errors and translates store sentinels.
func (o *Orchestrator) classifyStoreErr(err error, op string) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "not found")
	case errors.Is(err, apperr.ErrConflict):
		return apperr.Wrap(err, apperr.KindConflict, "registrations were reserved by another checkout")
	case errors.Is(err, apperr.ErrUnavailable):
		return apperr.Wrap(err, apperr.KindUnavailable, "payments store busy, try again")
	}
	o.logger.Error("checkout store failure", zap.String("op", op), zap.Error(err))
	return apperr.Wrap(err, apperr.KindInternal, op)
}

// normalizeIDs de-duplicates ids preserving first-seen order.
func normalizeIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, apperr.New(apperr.KindValidation, "select at least one registration")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, apperr.New(apperr.KindValidation, "invalid registration id")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// classify checks every requested registration. Invalid selections win over
// conflicts so a request that could never succeed is not reported as retryable.
func classify(actor models.Actor, ids []uuid.UUID, regs map[uuid.UUID]*models.Registration) error {
	var conflict error
	for _, id := range ids {
		r, ok := regs[id]
		if !ok || r.AthleteID != actor.ID {
			return apperr.Newf(apperr.KindValidation, "registration %s is not in your cart", id)
		}
		switch r.Status {
		case models.RegistrationCart:
		case models.RegistrationPendingPayment:
			if conflict == nil {
				conflict = apperr.Newf(apperr.KindConflict, "registration %s is already being paid", id)
			}
		default:
			return apperr.Newf(apperr.KindValidation, "registration %s is %s and cannot be paid", id, r.Status)
		}
	}
	return conflict
}

func samePayment(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

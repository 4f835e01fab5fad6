package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/checkout"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
)

// CheckoutStore implements checkout.Store.
type CheckoutStore struct {
	s *Store
}

// RunInTx holds the store mutex for the whole of fn. Writes made through the
// tx are undone when fn returns an error or panics.
func (v *CheckoutStore) RunInTx(ctx context.Context, fn func(tx checkout.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	tx := &memTx{
		s:           v.s,
		regUndo:     make(map[uuid.UUID]*models.Registration),
		payUndo:     make(map[uuid.UUID]*models.Payment),
		payOrderLen: len(v.s.payOrder),
	}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	return fn(tx)
}

func (v *CheckoutStore) GetPayment(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.payments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p.Clone(), nil
}

func (v *CheckoutStore) GetPaymentByExternalRef(_ context.Context, provider, ref string) (*models.Payment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, p := range v.s.payments {
		if p.Provider == provider && p.ExternalRef == ref {
			return p.Clone(), nil
		}
	}
	return nil, apperr.ErrNotFound
}

// ListPaymentsByAthlete returns newest first.
func (v *CheckoutStore) ListPaymentsByAthlete(_ context.Context, athleteID uuid.UUID) ([]*models.Payment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*models.Payment
	for i := len(v.s.payOrder) - 1; i >= 0; i-- {
		if p := v.s.payments[v.s.payOrder[i]]; p.AthleteID == athleteID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// memTx mutates the store in place and keeps the first prior value of every
// touched record. A nil prior value means the record did not exist.
type memTx struct {
	s           *Store
	regUndo     map[uuid.UUID]*models.Registration
	payUndo     map[uuid.UUID]*models.Payment
	payOrderLen int
}

func (t *memTx) rollback() {
	for id, prev := range t.regUndo {
		if prev == nil {
			delete(t.s.registrations, id)
		} else {
			t.s.registrations[id] = prev
		}
	}
	for id, prev := range t.payUndo {
		if prev == nil {
			delete(t.s.payments, id)
		} else {
			t.s.payments[id] = prev
		}
	}
	t.s.payOrder = t.s.payOrder[:t.payOrderLen]
}

func (t *memTx) saveReg(id uuid.UUID) {
	if _, ok := t.regUndo[id]; ok {
		return
	}
	t.regUndo[id] = t.s.registrations[id]
}

func (t *memTx) savePay(id uuid.UUID) {
	if _, ok := t.payUndo[id]; ok {
		return
	}
	t.payUndo[id] = t.s.payments[id]
}

func (t *memTx) GetRegistration(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	r, ok := t.s.registrations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return r.Clone(), nil
}

func (t *memTx) LockRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return t.GetRegistration(ctx, id)
}

func (t *memTx) LockRegistrations(_ context.Context, ids []uuid.UUID) ([]*models.Registration, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	out := make([]*models.Registration, 0, len(sorted))
	for _, id := range sorted {
		if r, ok := t.s.registrations[id]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (t *memTx) TransitionRegistrations(_ context.Context, ids []uuid.UUID, from, to models.RegistrationStatus, paymentID *uuid.UUID, at time.Time) (int64, error) {
	var n int64
	for _, id := range ids {
		r, ok := t.s.registrations[id]
		if !ok || r.Status != from {
			continue
		}
		t.saveReg(id)
		next := r.Clone()
		next.Status = to
		next.PaymentID = nil
		if paymentID != nil {
			pid := *paymentID
			next.PaymentID = &pid
		}
		next.UpdatedAt = at
		t.s.registrations[id] = next
		n++
	}
	return n, nil
}

func (t *memTx) SettlePaymentRegistrations(_ context.Context, paymentID uuid.UUID, to models.RegistrationStatus, at time.Time) (int64, error) {
	var n int64
	for id, r := range t.s.registrations {
		if r.PaymentID == nil || *r.PaymentID != paymentID || r.Status != models.RegistrationPendingPayment {
			continue
		}
		t.saveReg(id)
		next := r.Clone()
		next.Status = to
		if to == models.RegistrationCart {
			next.PaymentID = nil
		}
		next.UpdatedAt = at
		t.s.registrations[id] = next
		n++
	}
	return n, nil
}

func (t *memTx) DeleteRegistration(_ context.Context, id uuid.UUID) error {
	if _, ok := t.s.registrations[id]; !ok {
		return apperr.ErrNotFound
	}
	t.saveReg(id)
	delete(t.s.registrations, id)
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *models.Payment) error {
	if _, ok := t.s.payments[p.ID]; ok {
		return apperr.ErrConflict
	}
	t.savePay(p.ID)
	t.s.payments[p.ID] = p.Clone()
	t.s.payOrder = append(t.s.payOrder, p.ID)
	return nil
}

func (t *memTx) LockPayment(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	p, ok := t.s.payments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) UpdatePayment(_ context.Context, p *models.Payment) error {
	if _, ok := t.s.payments[p.ID]; !ok {
		return apperr.ErrNotFound
	}
	t.savePay(p.ID)
	t.s.payments[p.ID] = p.Clone()
	return nil
}

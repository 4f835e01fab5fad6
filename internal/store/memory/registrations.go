package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
)

// RegistrationStore implements registrations.Store.
type RegistrationStore struct {
	s *Store
}

func (v *RegistrationStore) Create(_ context.Context, r *models.Registration) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.registrations[r.ID]; ok {
		return apperr.ErrConflict
	}
	for _, cur := range v.s.registrations {
		if cur.AthleteID == r.AthleteID && cur.EventID == r.EventID && cur.ModalityID == r.ModalityID && cur.Status.Active() {
			return apperr.ErrConflict
		}
	}
	v.s.regSeq++
	r.Seq = v.s.regSeq
	v.s.registrations[r.ID] = r.Clone()
	return nil
}

func (v *RegistrationStore) Get(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.registrations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return r.Clone(), nil
}

func (v *RegistrationStore) ListByAthlete(_ context.Context, athleteID uuid.UUID, statuses ...models.RegistrationStatus) ([]*models.Registration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*models.Registration
	for _, r := range v.s.registrations {
		if r.AthleteID != athleteID || !statusIn(r.Status, statuses) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (v *RegistrationStore) DeleteInCart(_ context.Context, id uuid.UUID) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.registrations[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if r.Status != models.RegistrationCart {
		return apperr.ErrInvalidState
	}
	delete(v.s.registrations, id)
	return nil
}

func (v *RegistrationStore) UpdateAttributes(_ context.Context, id uuid.UUID, attrs models.RegistrationAttributes, at time.Time) (*models.Registration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.registrations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if !r.Status.Editable() {
		return nil, apperr.ErrInvalidState
	}
	next := r.Clone()
	next.Attributes = attrs
	next.UpdatedAt = at
	v.s.registrations[id] = next
	return next.Clone(), nil
}

func statusIn(s models.RegistrationStatus, set []models.RegistrationStatus) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

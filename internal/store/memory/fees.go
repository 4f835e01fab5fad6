package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/fedsport/backend/pkg/apperr"
)

// FeeStore implements registrations.FeeSchedule.
type FeeStore struct {
	s *Store
}

// SetFee offers modality at event for cents.
func (v *FeeStore) SetFee(eventID, modalityID uuid.UUID, cents int64) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.fees[feeKey{eventID, modalityID}] = cents
}

func (v *FeeStore) Fee(_ context.Context, eventID, modalityID uuid.UUID) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cents, ok := v.s.fees[feeKey{eventID, modalityID}]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	return cents, nil
}

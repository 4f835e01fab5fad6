package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
)

// AffiliationStore implements affiliations.Store.
type AffiliationStore struct {
	s *Store
}

func (v *AffiliationStore) Create(_ context.Context, a *models.Affiliation) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.affiliations[a.ID]; ok {
		return apperr.ErrConflict
	}
	for _, id := range v.s.affOrder {
		cur := v.s.affiliations[id]
		if cur.AthleteID == a.AthleteID && cur.AcademyID == a.AcademyID && cur.ModalityID == a.ModalityID &&
			cur.Status != models.AffiliationRejected {
			return apperr.ErrConflict
		}
	}
	v.s.affiliations[a.ID] = a.Clone()
	v.s.affOrder = append(v.s.affOrder, a.ID)
	return nil
}

func (v *AffiliationStore) Get(_ context.Context, id uuid.UUID) (*models.Affiliation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	a, ok := v.s.affiliations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return a.Clone(), nil
}

func (v *AffiliationStore) LatestFor(_ context.Context, athleteID, academyID, modalityID uuid.UUID) (*models.Affiliation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for i := len(v.s.affOrder) - 1; i >= 0; i-- {
		a := v.s.affiliations[v.s.affOrder[i]]
		if a.AthleteID == athleteID && a.AcademyID == academyID && a.ModalityID == modalityID {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

// ListByAthlete returns newest first.
func (v *AffiliationStore) ListByAthlete(_ context.Context, athleteID uuid.UUID) ([]*models.Affiliation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*models.Affiliation
	for i := len(v.s.affOrder) - 1; i >= 0; i-- {
		if a := v.s.affiliations[v.s.affOrder[i]]; a.AthleteID == athleteID {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (v *AffiliationStore) ListPendingDocuments(_ context.Context) ([]*models.Affiliation, error) {
	return v.filter(func(a *models.Affiliation) bool {
		return a.DocumentGate == models.GatePending && a.Status != models.AffiliationRejected
	}), nil
}

func (v *AffiliationStore) ListPendingTechnical(_ context.Context) ([]*models.Affiliation, error) {
	return v.filter(func(a *models.Affiliation) bool {
		return a.DocumentGate == models.GateApproved && a.TechnicalGate == models.GatePending
	}), nil
}

// filter returns matches in submission order.
func (v *AffiliationStore) filter(keep func(*models.Affiliation) bool) []*models.Affiliation {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*models.Affiliation
	for _, id := range v.s.affOrder {
		if a := v.s.affiliations[id]; keep(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}

func (v *AffiliationStore) DecideGate(_ context.Context, id uuid.UUID, gate models.Gate, decision models.GateStatus, by uuid.UUID, at time.Time) (*models.Affiliation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	a, ok := v.s.affiliations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	next := a.Clone()
	if err := next.Decide(gate, decision, by, at); err != nil {
		return nil, err
	}
	v.s.affiliations[id] = next
	return next.Clone(), nil
}

// Package memory is an in-process backend for every service store. All
// state sits behind one mutex, so each call and each transaction is
// serialized against all others.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
)

type feeKey struct {
	event, modality uuid.UUID
}

// Store holds affiliations, registrations, payments and fees.
type Store struct {
	mu sync.Mutex

	affiliations map[uuid.UUID]*models.Affiliation
	affOrder     []uuid.UUID

	registrations map[uuid.UUID]*models.Registration
	regSeq        int64

	payments map[uuid.UUID]*models.Payment
	payOrder []uuid.UUID

	fees map[feeKey]int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		affiliations:  make(map[uuid.UUID]*models.Affiliation),
		registrations: make(map[uuid.UUID]*models.Registration),
		payments:      make(map[uuid.UUID]*models.Payment),
		fees:          make(map[feeKey]int64),
	}
}

// Affiliations returns the affiliation store view.
func (s *Store) Affiliations() *AffiliationStore { return &AffiliationStore{s: s} }

// Registrations returns the registration store view.
func (s *Store) Registrations() *RegistrationStore { return &RegistrationStore{s: s} }

// Checkout returns the payment and reservation store view.
func (s *Store) Checkout() *CheckoutStore { return &CheckoutStore{s: s} }

// Fees returns the fee catalog view.
func (s *Store) Fees() *FeeStore { return &FeeStore{s: s} }

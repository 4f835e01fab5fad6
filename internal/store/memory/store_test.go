package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsport/backend/internal/affiliations"
	"github.com/fedsport/backend/internal/checkout"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/registrations"
	"github.com/fedsport/backend/pkg/apperr"
)

var (
	_ affiliations.Store        = (*AffiliationStore)(nil)
	_ registrations.Store       = (*RegistrationStore)(nil)
	_ registrations.FeeSchedule = (*FeeStore)(nil)
	_ checkout.Store            = (*CheckoutStore)(nil)
)

func cartItem(athlete, event, modality uuid.UUID, fee int64) *models.Registration {
	now := time.Now().UTC()
	return &models.Registration{
		ID:         uuid.New(),
		AthleteID:  athlete,
		EventID:    event,
		ModalityID: modality,
		Attributes: models.RegistrationAttributes{WeightKg: 70, AgeGroup: "adult", WeightDivision: "-73kg", Category: "black belt"},
		Status:     models.RegistrationCart,
		FeeCents:   fee,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestAffiliationActivePairIsUnique(t *testing.T) {
	ctx := context.Background()
	st := New().Affiliations()
	athlete, academy, modality := uuid.New(), uuid.New(), uuid.New()

	first := models.NewAffiliation(athlete, academy, modality, time.Now())
	require.NoError(t, st.Create(ctx, first))
	assert.ErrorIs(t, st.Create(ctx, models.NewAffiliation(athlete, academy, modality, time.Now())), apperr.ErrConflict)

	_, err := st.DecideGate(ctx, first.ID, models.GateDocument, models.GateRejected, uuid.New(), time.Now())
	require.NoError(t, err)
	second := models.NewAffiliation(athlete, academy, modality, time.Now())
	require.NoError(t, st.Create(ctx, second))

	latest, err := st.LatestFor(ctx, athlete, academy, modality)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	none, err := st.LatestFor(ctx, athlete, uuid.New(), modality)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAffiliationQueues(t *testing.T) {
	ctx := context.Background()
	st := New().Affiliations()
	admin := uuid.New()

	a := models.NewAffiliation(uuid.New(), uuid.New(), uuid.New(), time.Now())
	b := models.NewAffiliation(uuid.New(), uuid.New(), uuid.New(), time.Now())
	require.NoError(t, st.Create(ctx, a))
	require.NoError(t, st.Create(ctx, b))

	docs, err := st.ListPendingDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a.ID, docs[0].ID)

	_, err = st.DecideGate(ctx, b.ID, models.GateTechnical, models.GateApproved, admin, time.Now())
	assert.True(t, apperr.HasKind(err, apperr.KindInvalidState))

	_, err = st.DecideGate(ctx, b.ID, models.GateDocument, models.GateApproved, admin, time.Now())
	require.NoError(t, err)
	tech, err := st.ListPendingTechnical(ctx)
	require.NoError(t, err)
	require.Len(t, tech, 1)
	assert.Equal(t, b.ID, tech[0].ID)

	_, err = st.DecideGate(ctx, uuid.New(), models.GateDocument, models.GateApproved, admin, time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegistrationUniquenessAndOrder(t *testing.T) {
	ctx := context.Background()
	st := New().Registrations()
	athlete, event := uuid.New(), uuid.New()
	m1, m2 := uuid.New(), uuid.New()

	r1 := cartItem(athlete, event, m1, 5000)
	r2 := cartItem(athlete, event, m2, 7500)
	require.NoError(t, st.Create(ctx, r1))
	require.NoError(t, st.Create(ctx, r2))
	assert.ErrorIs(t, st.Create(ctx, cartItem(athlete, event, m1, 5000)), apperr.ErrConflict)

	list, err := st.ListByAthlete(ctx, athlete, models.RegistrationCart)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []uuid.UUID{r1.ID, r2.ID}, []uuid.UUID{list[0].ID, list[1].ID})

	require.NoError(t, st.DeleteInCart(ctx, r1.ID))
	assert.ErrorIs(t, st.DeleteInCart(ctx, r1.ID), apperr.ErrNotFound)
	require.NoError(t, st.Create(ctx, cartItem(athlete, event, m1, 5000)))
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	athlete := uuid.New()
	r := cartItem(athlete, uuid.New(), uuid.New(), 5000)
	require.NoError(t, s.Registrations().Create(ctx, r))

	boom := errors.New("boom")
	p := &models.Payment{ID: uuid.New(), AthleteID: athlete, Status: models.PaymentStatusCreated, Provider: "stub"}
	err := s.Checkout().RunInTx(ctx, func(tx checkout.Tx) error {
		require.NoError(t, tx.InsertPayment(ctx, p))
		n, err := tx.TransitionRegistrations(ctx, []uuid.UUID{r.ID}, models.RegistrationCart, models.RegistrationPendingPayment, &p.ID, time.Now())
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Checkout().GetPayment(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	got, err := s.Registrations().Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCart, got.Status)
	assert.Nil(t, got.PaymentID)
	list, err := s.Checkout().ListPaymentsByAthlete(ctx, athlete)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSettlePaymentRegistrations(t *testing.T) {
	ctx := context.Background()
	s := New()
	athlete := uuid.New()
	r1 := cartItem(athlete, uuid.New(), uuid.New(), 5000)
	r2 := cartItem(athlete, uuid.New(), uuid.New(), 7500)
	require.NoError(t, s.Registrations().Create(ctx, r1))
	require.NoError(t, s.Registrations().Create(ctx, r2))
	p := &models.Payment{ID: uuid.New(), AthleteID: athlete, Status: models.PaymentStatusPending, Provider: "stub", ExternalRef: "ref-1"}

	require.NoError(t, s.Checkout().RunInTx(ctx, func(tx checkout.Tx) error {
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		_, err := tx.TransitionRegistrations(ctx, []uuid.UUID{r1.ID, r2.ID}, models.RegistrationCart, models.RegistrationPendingPayment, &p.ID, time.Now())
		return err
	}))
	require.NoError(t, s.Checkout().RunInTx(ctx, func(tx checkout.Tx) error {
		n, err := tx.SettlePaymentRegistrations(ctx, p.ID, models.RegistrationCart, time.Now())
		assert.EqualValues(t, 2, n)
		return err
	}))

	for _, id := range []uuid.UUID{r1.ID, r2.ID} {
		got, err := s.Registrations().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationCart, got.Status)
		assert.Nil(t, got.PaymentID)
	}
	byRef, err := s.Checkout().GetPaymentByExternalRef(ctx, "stub", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byRef.ID)
}

func TestFees(t *testing.T) {
	fees := New().Fees()
	event, modality := uuid.New(), uuid.New()
	fees.SetFee(event, modality, 5000)

	got, err := fees.Fee(context.Background(), event, modality)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, got)

	_, err = fees.Fee(context.Background(), event, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

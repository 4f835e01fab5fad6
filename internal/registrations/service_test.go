package registrations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/store/memory"
	"github.com/fedsport/backend/pkg/apperr"
)

type CartSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	cart     *Cart
	athlete  models.Actor
	event    uuid.UUID
	modality uuid.UUID
}

func TestCartSuite(t *testing.T) {
	suite.Run(t, new(CartSuite))
}

func (s *CartSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.cart = NewCart(s.store.Registrations(), s.store.Fees(), nil, nil)
	s.athlete = models.Actor{ID: uuid.New(), Role: models.RoleAthlete}
	s.event, s.modality = uuid.New(), uuid.New()
	s.store.Fees().SetFee(s.event, s.modality, 5000)
}

func validAttrs() models.RegistrationAttributes {
	return models.RegistrationAttributes{WeightKg: 76.5, AgeGroup: "adult", WeightDivision: "-82kg", Category: "brown belt"}
}

func (s *CartSuite) TestAddItemCapturesFee() {
	reg, err := s.cart.AddItem(s.ctx, s.athlete, s.event, s.modality, validAttrs())
	s.Require().NoError(err)
	s.Equal(models.RegistrationCart, reg.Status)
	s.EqualValues(5000, reg.FeeCents)

	s.store.Fees().SetFee(s.event, s.modality, 9900)
	items, err := s.cart.ListCart(s.ctx, s.athlete)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.EqualValues(5000, items[0].FeeCents)
}

func (s *CartSuite) TestAddItemRejections() {
	_, err := s.cart.AddItem(s.ctx, s.athlete, s.event, uuid.New(), validAttrs())
	s.True(apperr.HasKind(err, apperr.KindValidation), "unknown modality: %v", err)

	bad := validAttrs()
	bad.WeightKg = 301
	_, err = s.cart.AddItem(s.ctx, s.athlete, s.event, s.modality, bad)
	s.True(apperr.HasKind(err, apperr.KindValidation))

	coach := models.Actor{ID: uuid.New(), Role: models.RoleCoach}
	_, err = s.cart.AddItem(s.ctx, coach, s.event, s.modality, validAttrs())
	s.True(apperr.HasKind(err, apperr.KindAuthorization))

	_, err = s.cart.AddItem(s.ctx, s.athlete, s.event, s.modality, validAttrs())
	s.Require().NoError(err)
	_, err = s.cart.AddItem(s.ctx, s.athlete, s.event, s.modality, validAttrs())
	s.True(apperr.HasKind(err, apperr.KindConflict))
}

func (s *CartSuite) TestRemoveItem() {
	reg, err := s.cart.AddItem(s.ctx, s.athlete, s.event, s.modality, validAttrs())
	s.Require().NoError(err)

	other := models.Actor{ID: uuid.New(), Role: models.RoleAthlete}
	err = s.cart.RemoveItem(s.ctx, other, reg.ID)
	s.True(apperr.HasKind(err, apperr.KindNotFound))

	s.Require().NoError(s.cart.RemoveItem(s.ctx, s.athlete, reg.ID))
	items, err := s.cart.ListCart(s.ctx, s.athlete)
	s.Require().NoError(err)
	s.Empty(items)

	err = s.cart.RemoveItem(s.ctx, s.athlete, reg.ID)
	s.True(apperr.HasKind(err, apperr.KindNotFound))
}

func (s *CartSuite) TestUpdateItem() {
	reg, err := s.cart.AddItem(s.ctx, s.athlete, s.event, s.modality, validAttrs())
	s.Require().NoError(err)

	attrs := validAttrs()
	attrs.WeightDivision = "-88kg"
	updated, err := s.cart.UpdateItem(s.ctx, s.athlete, reg.ID, attrs)
	s.Require().NoError(err)
	s.Equal("-88kg", updated.Attributes.WeightDivision)

	attrs.Category = " "
	_, err = s.cart.UpdateItem(s.ctx, s.athlete, reg.ID, attrs)
	s.True(apperr.HasKind(err, apperr.KindValidation))
}

func (s *CartSuite) TestListCartKeepsInsertionOrder() {
	var want []uuid.UUID
	for i := 0; i < 5; i++ {
		modality := uuid.New()
		s.store.Fees().SetFee(s.event, modality, int64(1000*(i+1)))
		reg, err := s.cart.AddItem(s.ctx, s.athlete, s.event, modality, validAttrs())
		s.Require().NoError(err)
		want = append(want, reg.ID)
	}
	items, err := s.cart.ListCart(s.ctx, s.athlete)
	s.Require().NoError(err)
	var got []uuid.UUID
	for _, r := range items {
		got = append(got, r.ID)
	}
	s.Equal(want, got)

	all, err := s.cart.MyRegistrations(s.ctx, s.athlete)
	s.Require().NoError(err)
	s.Len(all, 5)
}

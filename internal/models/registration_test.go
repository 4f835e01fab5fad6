package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fedsport/backend/pkg/apperr"
)

func validAttributes() RegistrationAttributes {
	return RegistrationAttributes{WeightKg: 73.5, AgeGroup: "adult", WeightDivision: "-76kg", Category: "black belt"}
}

func TestRegistrationAttributesValidate(t *testing.T) {
	assert.NoError(t, validAttributes().Validate())

	cases := map[string]func(a *RegistrationAttributes){
		"zero weight":      func(a *RegistrationAttributes) { a.WeightKg = 0 },
		"excessive weight": func(a *RegistrationAttributes) { a.WeightKg = 301 },
		"blank age group":  func(a *RegistrationAttributes) { a.AgeGroup = "  " },
		"missing division": func(a *RegistrationAttributes) { a.WeightDivision = "" },
		"missing category": func(a *RegistrationAttributes) { a.Category = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := validAttributes()
			mutate(&a)
			assert.True(t, apperr.HasKind(a.Validate(), apperr.KindValidation))
		})
	}
}

func TestRegistrationStatusRules(t *testing.T) {
	assert.True(t, RegistrationCart.Editable())
	assert.True(t, RegistrationPendingPayment.Editable())
	assert.False(t, RegistrationConfirmed.Editable())
	assert.False(t, RegistrationCancelled.Editable())
	assert.False(t, RegistrationCancelled.Active())
	assert.True(t, RegistrationConfirmed.Active())
}

func TestPaymentItemTotal(t *testing.T) {
	p := &Payment{Items: []PaymentItem{
		{RegistrationID: uuid.New(), FeeCents: 5000},
		{RegistrationID: uuid.New(), FeeCents: 7500},
	}}
	assert.Equal(t, int64(12500), p.ItemTotal())
	assert.True(t, PaymentStatusFailed.Terminal())
	assert.False(t, PaymentStatusPending.Terminal())
}

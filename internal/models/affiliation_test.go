package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsport/backend/pkg/apperr"
)

func TestOverallStatus(t *testing.T) {
	gates := []GateStatus{GatePending, GateApproved, GateRejected}
	for _, doc := range gates {
		for _, tech := range gates {
			want := AffiliationPending
			if doc == GateRejected || tech == GateRejected {
				want = AffiliationRejected
			} else if doc == GateApproved && tech == GateApproved {
				want = AffiliationApproved
			}
			assert.Equal(t, want, OverallStatus(doc, tech), "document=%s technical=%s", doc, tech)
		}
	}
}

func newTestAffiliation() *Affiliation {
	return NewAffiliation(uuid.New(), uuid.New(), uuid.New(), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestNewAffiliationStartsPending(t *testing.T) {
	a := newTestAffiliation()
	assert.Equal(t, GatePending, a.DocumentGate)
	assert.Equal(t, GatePending, a.TechnicalGate)
	assert.Equal(t, AffiliationPending, a.Status)
}

func TestDecide(t *testing.T) {
	reviewer := uuid.New()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("document then technical approves", func(t *testing.T) {
		a := newTestAffiliation()
		require.NoError(t, a.Decide(GateDocument, GateApproved, reviewer, at))
		assert.Equal(t, AffiliationPending, a.Status)
		require.NoError(t, a.Decide(GateTechnical, GateApproved, reviewer, at))
		assert.Equal(t, AffiliationApproved, a.Status)
		assert.Equal(t, reviewer, *a.TechnicalDecidedBy)
		assert.Equal(t, at, *a.DocumentDecidedAt)
	})

	t.Run("technical before documents is invalid state", func(t *testing.T) {
		a := newTestAffiliation()
		err := a.Decide(GateTechnical, GateApproved, reviewer, at)
		assert.True(t, apperr.HasKind(err, apperr.KindInvalidState))
		assert.Equal(t, GatePending, a.TechnicalGate)
	})

	t.Run("gate decided once", func(t *testing.T) {
		a := newTestAffiliation()
		require.NoError(t, a.Decide(GateDocument, GateApproved, reviewer, at))
		err := a.Decide(GateDocument, GateRejected, reviewer, at)
		assert.True(t, apperr.HasKind(err, apperr.KindInvalidState))
		assert.Equal(t, GateApproved, a.DocumentGate)
	})

	t.Run("document rejection is terminal", func(t *testing.T) {
		a := newTestAffiliation()
		require.NoError(t, a.Decide(GateDocument, GateRejected, reviewer, at))
		assert.Equal(t, AffiliationRejected, a.Status)
		err := a.Decide(GateTechnical, GateApproved, reviewer, at)
		assert.True(t, apperr.HasKind(err, apperr.KindInvalidState))
	})

	t.Run("invalid decision value", func(t *testing.T) {
		a := newTestAffiliation()
		err := a.Decide(GateDocument, GatePending, reviewer, at)
		assert.True(t, apperr.HasKind(err, apperr.KindValidation))
	})

	t.Run("approved affiliation accepts no further decisions", func(t *testing.T) {
		a := newTestAffiliation()
		require.NoError(t, a.Decide(GateDocument, GateApproved, reviewer, at))
		require.NoError(t, a.Decide(GateTechnical, GateApproved, reviewer, at))
		for _, g := range []Gate{GateDocument, GateTechnical} {
			err := a.Decide(g, GateRejected, reviewer, at)
			assert.True(t, apperr.HasKind(err, apperr.KindInvalidState), "gate %s", g)
		}
		assert.Equal(t, AffiliationApproved, a.Status)
	})
}

func TestAffiliationCloneIsDeep(t *testing.T) {
	a := newTestAffiliation()
	require.NoError(t, a.Decide(GateDocument, GateApproved, uuid.New(), time.Now()))
	c := a.Clone()
	*c.DocumentDecidedBy = uuid.New()
	assert.NotEqual(t, *a.DocumentDecidedBy, *c.DocumentDecidedBy)
}

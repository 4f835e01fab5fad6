package affiliations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/store/memory"
	"github.com/fedsport/backend/pkg/apperr"
)

type EngineSuite struct {
	suite.Suite
	ctx     context.Context
	store   Store
	engine  *Engine
	athlete models.Actor
	coach   models.Actor
	admin   models.Actor
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New().Affiliations()
	s.engine = NewEngine(s.store, nil, nil)
	s.athlete = models.Actor{ID: uuid.New(), Role: models.RoleAthlete}
	s.coach = models.Actor{ID: uuid.New(), Role: models.RoleCoach}
	s.admin = models.Actor{ID: uuid.New(), Role: models.RoleAdmin}
}

func (s *EngineSuite) submit() *models.Affiliation {
	a, err := s.engine.Submit(s.ctx, s.athlete, uuid.New(), uuid.New())
	s.Require().NoError(err)
	return a
}

func (s *EngineSuite) TestFullApprovalFlow() {
	a := s.submit()
	s.Equal(models.AffiliationPending, a.Status)

	a, err := s.engine.SetDocumentGate(s.ctx, s.admin, a.ID, models.GateApproved)
	s.Require().NoError(err)
	s.Equal(models.AffiliationPending, a.Status)
	s.Equal(s.admin.ID, *a.DocumentDecidedBy)

	a, err = s.engine.SetTechnicalGate(s.ctx, s.coach, a.ID, models.GateApproved)
	s.Require().NoError(err)
	s.Equal(models.AffiliationApproved, a.Status)

	_, err = s.engine.SetTechnicalGate(s.ctx, s.admin, a.ID, models.GateRejected)
	s.True(apperr.HasKind(err, apperr.KindInvalidState))
	_, err = s.engine.SetDocumentGate(s.ctx, s.admin, a.ID, models.GateRejected)
	s.True(apperr.HasKind(err, apperr.KindInvalidState))

	got, err := s.engine.Get(s.ctx, s.athlete, a.ID)
	s.Require().NoError(err)
	s.Equal(models.AffiliationApproved, got.Status)
}

func (s *EngineSuite) TestTechnicalGateWaitsForDocuments() {
	a := s.submit()
	_, err := s.engine.SetTechnicalGate(s.ctx, s.coach, a.ID, models.GateApproved)
	s.True(apperr.HasKind(err, apperr.KindInvalidState))

	_, err = s.engine.SetDocumentGate(s.ctx, s.admin, a.ID, models.GateRejected)
	s.Require().NoError(err)
	_, err = s.engine.SetTechnicalGate(s.ctx, s.coach, a.ID, models.GateApproved)
	s.True(apperr.HasKind(err, apperr.KindInvalidState))

	got, err := s.store.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.AffiliationRejected, got.Status)
	s.Equal(models.GatePending, got.TechnicalGate)
}

func (s *EngineSuite) TestRoleChecks() {
	a := s.submit()

	_, err := s.engine.SetDocumentGate(s.ctx, s.coach, a.ID, models.GateApproved)
	s.True(apperr.HasKind(err, apperr.KindAuthorization))
	_, err = s.engine.ListPendingDocuments(s.ctx, s.coach)
	s.True(apperr.HasKind(err, apperr.KindAuthorization))
	_, err = s.engine.SetTechnicalGate(s.ctx, s.athlete, a.ID, models.GateApproved)
	s.True(apperr.HasKind(err, apperr.KindAuthorization))
	_, err = s.engine.ListPendingTechnical(s.ctx, s.athlete)
	s.True(apperr.HasKind(err, apperr.KindAuthorization))
	_, err = s.engine.Submit(s.ctx, s.coach, uuid.New(), uuid.New())
	s.True(apperr.HasKind(err, apperr.KindAuthorization))

	stranger := models.Actor{ID: uuid.New(), Role: models.RoleAthlete}
	_, err = s.engine.Get(s.ctx, stranger, a.ID)
	s.True(apperr.HasKind(err, apperr.KindNotFound))
	_, err = s.engine.Get(s.ctx, s.coach, a.ID)
	s.NoError(err)
}

func (s *EngineSuite) TestInvalidDecision() {
	a := s.submit()
	_, err := s.engine.SetDocumentGate(s.ctx, s.admin, a.ID, models.GatePending)
	s.True(apperr.HasKind(err, apperr.KindValidation))
	_, err = s.engine.SetDocumentGate(s.ctx, s.admin, uuid.New(), models.GateApproved)
	s.True(apperr.HasKind(err, apperr.KindNotFound))
}

func (s *EngineSuite) TestDuplicateAndResubmission() {
	academy, modality := uuid.New(), uuid.New()
	first, err := s.engine.Submit(s.ctx, s.athlete, academy, modality)
	s.Require().NoError(err)

	_, err = s.engine.Submit(s.ctx, s.athlete, academy, modality)
	s.True(apperr.HasKind(err, apperr.KindValidation))

	_, err = s.engine.SetDocumentGate(s.ctx, s.admin, first.ID, models.GateRejected)
	s.Require().NoError(err)

	second, err := s.engine.Submit(s.ctx, s.athlete, academy, modality)
	s.Require().NoError(err)
	s.Require().NotNil(second.SupersedesID)
	s.Equal(first.ID, *second.SupersedesID)

	mine, err := s.engine.ListMine(s.ctx, s.athlete)
	s.Require().NoError(err)
	s.Len(mine, 2)
}

func (s *EngineSuite) TestConcurrentSubmitAllowsOne() {
	academy, modality := uuid.New(), uuid.New()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.engine.Submit(s.ctx, s.athlete, academy, modality); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, wins)
}

func (s *EngineSuite) TestQueues() {
	a := s.submit()
	b := s.submit()

	docs, err := s.engine.ListPendingDocuments(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Len(docs, 2)

	_, err = s.engine.SetDocumentGate(s.ctx, s.admin, a.ID, models.GateApproved)
	s.Require().NoError(err)

	docs, err = s.engine.ListPendingDocuments(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(b.ID, docs[0].ID)

	tech, err := s.engine.ListPendingTechnical(s.ctx, s.coach)
	s.Require().NoError(err)
	s.Require().Len(tech, 1)
	s.Equal(a.ID, tech[0].ID)
}

// flakyStore fails the first DecideGate calls after applying them, as when a
// commit succeeds but the reply is lost.
type flakyStore struct {
	Store
	failures int
	applied  bool
}

func (f *flakyStore) DecideGate(ctx context.Context, id uuid.UUID, gate models.Gate, decision models.GateStatus, by uuid.UUID, at time.Time) (*models.Affiliation, error) {
	if f.failures > 0 {
		f.failures--
		if !f.applied {
			f.applied = true
			_, _ = f.Store.DecideGate(ctx, id, gate, decision, by, at)
		}
		return nil, apperr.ErrUnavailable
	}
	return f.Store.DecideGate(ctx, id, gate, decision, by, at)
}

func (s *EngineSuite) TestRetryTreatsLostCommitAsSuccess() {
	a := s.submit()
	flaky := &flakyStore{Store: s.store, failures: 1}
	engine := NewEngine(flaky, nil, nil)

	got, err := engine.SetDocumentGate(s.ctx, s.admin, a.ID, models.GateApproved)
	s.Require().NoError(err)
	s.Equal(models.GateApproved, got.DocumentGate)
}

func (s *EngineSuite) TestRetryGivesUpAsUnavailable() {
	a := s.submit()
	down := &flakyStore{Store: s.store, failures: decideAttempts, applied: true}
	engine := NewEngine(down, nil, nil)

	_, err := engine.SetDocumentGate(s.ctx, s.admin, a.ID, models.GateApproved)
	s.True(apperr.HasKind(err, apperr.KindUnavailable))
}

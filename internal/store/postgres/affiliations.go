package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
)

const affiliationColumns = `id, athlete_id, academy_id, modality_id, supersedes_id, submitted_at,
	document_gate, document_decided_by, document_decided_at,
	technical_gate, technical_decided_by, technical_decided_at, status`

// AffiliationRepository implements affiliations.Store.
type AffiliationRepository struct {
	db DBTX
}

// NewAffiliationRepository creates an affiliation repository.
func NewAffiliationRepository(db DBTX) *AffiliationRepository {
	return &AffiliationRepository{db: db}
}

func scanAffiliation(row pgx.Row) (*models.Affiliation, error) {
	var a models.Affiliation
	err := row.Scan(&a.ID, &a.AthleteID, &a.AcademyID, &a.ModalityID, &a.SupersedesID, &a.SubmittedAt,
		&a.DocumentGate, &a.DocumentDecidedBy, &a.DocumentDecidedAt,
		&a.TechnicalGate, &a.TechnicalDecidedBy, &a.TechnicalDecidedAt, &a.Status)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AffiliationRepository) list(ctx context.Context, q string, args ...any) ([]*models.Affiliation, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var list []*models.Affiliation
	for rows.Next() {
		a, err := scanAffiliation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, mapErr(rows.Err())
}

// Create inserts a; the affiliations_active_pair index rejects a second live request.
func (r *AffiliationRepository) Create(ctx context.Context, a *models.Affiliation) error {
	const q = `INSERT INTO affiliations (id, athlete_id, academy_id, modality_id, supersedes_id, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING status`
	return mapErr(r.db.QueryRow(ctx, q, a.ID, a.AthleteID, a.AcademyID, a.ModalityID, a.SupersedesID, a.SubmittedAt).
		Scan(&a.Status))
}

// Get returns an affiliation by ID.
func (r *AffiliationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Affiliation, error) {
	a, err := scanAffiliation(r.db.QueryRow(ctx, `SELECT `+affiliationColumns+` FROM affiliations WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

// LatestFor returns the newest affiliation for the pair, or nil.
func (r *AffiliationRepository) LatestFor(ctx context.Context, athleteID, academyID, modalityID uuid.UUID) (*models.Affiliation, error) {
	const q = `SELECT ` + affiliationColumns + ` FROM affiliations
		WHERE athlete_id = $1 AND academy_id = $2 AND modality_id = $3
		ORDER BY submitted_at DESC, id DESC LIMIT 1`
	a, err := scanAffiliation(r.db.QueryRow(ctx, q, athleteID, academyID, modalityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

// ListByAthlete returns newest first.
func (r *AffiliationRepository) ListByAthlete(ctx context.Context, athleteID uuid.UUID) ([]*models.Affiliation, error) {
	return r.list(ctx, `SELECT `+affiliationColumns+` FROM affiliations WHERE athlete_id = $1
		ORDER BY submitted_at DESC, id DESC`, athleteID)
}

func (r *AffiliationRepository) ListPendingDocuments(ctx context.Context) ([]*models.Affiliation, error) {
	return r.list(ctx, `SELECT `+affiliationColumns+` FROM affiliations
		WHERE document_gate = 'pending' AND technical_gate <> 'rejected'
		ORDER BY submitted_at, id`)
}

func (r *AffiliationRepository) ListPendingTechnical(ctx context.Context) ([]*models.Affiliation, error) {
	return r.list(ctx, `SELECT `+affiliationColumns+` FROM affiliations
		WHERE document_gate = 'approved' AND technical_gate = 'pending'
		ORDER BY submitted_at, id`)
}

// DecideGate writes the gate only while its preconditions still hold.
// When nothing matched, the current row explains why.
func (r *AffiliationRepository) DecideGate(ctx context.Context, id uuid.UUID, gate models.Gate, decision models.GateStatus, by uuid.UUID, at time.Time) (*models.Affiliation, error) {
	if !decision.IsDecision() {
		return nil, apperr.Newf(apperr.KindValidation, "invalid decision %q", decision)
	}
	var q string
	switch gate {
	case models.GateDocument:
		q = `UPDATE affiliations
			SET document_gate = $2, document_decided_by = $3, document_decided_at = $4
			WHERE id = $1 AND document_gate = 'pending' AND technical_gate <> 'rejected'
			RETURNING ` + affiliationColumns
	case models.GateTechnical:
		q = `UPDATE affiliations
			SET technical_gate = $2, technical_decided_by = $3, technical_decided_at = $4
			WHERE id = $1 AND technical_gate = 'pending' AND document_gate = 'approved'
			RETURNING ` + affiliationColumns
	default:
		return nil, apperr.Newf(apperr.KindValidation, "unknown gate %q", gate)
	}

	a, err := scanAffiliation(r.db.QueryRow(ctx, q, id, decision, by, at))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapErr(err)
	}
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cur.CanDecide(gate); err != nil {
		return nil, err
	}
	// The row changed between the update and the read.
	return nil, apperr.ErrUnavailable
}

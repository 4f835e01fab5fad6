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

const registrationColumns = `id, seq, athlete_id, event_id, modality_id,
	weight_kg, age_group, weight_division, category,
	status, fee_cents, payment_id, created_at, updated_at`

// RegistrationRepository implements registrations.Store.
type RegistrationRepository struct {
	db DBTX
}

// NewRegistrationRepository creates a registration repository.
func NewRegistrationRepository(db DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var r models.Registration
	err := row.Scan(&r.ID, &r.Seq, &r.AthleteID, &r.EventID, &r.ModalityID,
		&r.Attributes.WeightKg, &r.Attributes.AgeGroup, &r.Attributes.WeightDivision, &r.Attributes.Category,
		&r.Status, &r.FeeCents, &r.PaymentID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRegistrations(rows pgx.Rows) ([]*models.Registration, error) {
	defer rows.Close()
	var list []*models.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, mapErr(rows.Err())
}

func getRegistration(ctx context.Context, db DBTX, id uuid.UUID, lock bool) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	r, err := scanRegistration(db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

// Create inserts r and assigns its sequence; registrations_active rejects duplicates.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (id, athlete_id, event_id, modality_id,
			weight_kg, age_group, weight_division, category, status, fee_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`
	a := reg.Attributes
	return mapErr(r.db.QueryRow(ctx, q, reg.ID, reg.AthleteID, reg.EventID, reg.ModalityID,
		a.WeightKg, a.AgeGroup, a.WeightDivision, a.Category, reg.Status, reg.FeeCents, reg.CreatedAt, reg.UpdatedAt).
		Scan(&reg.Seq))
}

// Get returns a registration by ID.
func (r *RegistrationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return getRegistration(ctx, r.db, id, false)
}

// ListByAthlete returns registrations in creation order, optionally filtered by status.
func (r *RegistrationRepository) ListByAthlete(ctx context.Context, athleteID uuid.UUID, statuses ...models.RegistrationStatus) ([]*models.Registration, error) {
	var filter []string
	for _, s := range statuses {
		filter = append(filter, string(s))
	}
	const q = `SELECT ` + registrationColumns + ` FROM registrations
		WHERE athlete_id = $1 AND ($2::text[] IS NULL OR status = ANY($2))
		ORDER BY seq`
	rows, err := r.db.Query(ctx, q, athleteID, filter)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectRegistrations(rows)
}

// DeleteInCart removes a registration still in the cart.
func (r *RegistrationRepository) DeleteInCart(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1 AND status = 'cart'`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.explainMiss(ctx, id)
}

// UpdateAttributes replaces attributes while the registration is editable.
func (r *RegistrationRepository) UpdateAttributes(ctx context.Context, id uuid.UUID, attrs models.RegistrationAttributes, at time.Time) (*models.Registration, error) {
	const q = `UPDATE registrations
		SET weight_kg = $2, age_group = $3, weight_division = $4, category = $5, updated_at = $6
		WHERE id = $1 AND status IN ('cart', 'pending_payment')
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(r.db.QueryRow(ctx, q, id, attrs.WeightKg, attrs.AgeGroup, attrs.WeightDivision, attrs.Category, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return reg, nil
}

// explainMiss distinguishes a missing row from one in the wrong status.
func (r *RegistrationRepository) explainMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return apperr.ErrInvalidState
}

package postgres

import (
	"context"

	"github.com/google/uuid"
)

// FeeRepository implements registrations.FeeSchedule over competition_fees.
type FeeRepository struct {
	db DBTX
}

// NewFeeRepository creates a fee repository.
func NewFeeRepository(db DBTX) *FeeRepository {
	return &FeeRepository{db: db}
}

func (r *FeeRepository) Fee(ctx context.Context, eventID, modalityID uuid.UUID) (int64, error) {
	var cents int64
	err := r.db.QueryRow(ctx, `SELECT fee_cents FROM competition_fees WHERE event_id = $1 AND modality_id = $2`,
		eventID, modalityID).Scan(&cents)
	return cents, mapErr(err)
}

// SetFee offers modality at event for cents, replacing any previous fee.
func (r *FeeRepository) SetFee(ctx context.Context, eventID, modalityID uuid.UUID, cents int64) error {
	const q = `INSERT INTO competition_fees (event_id, modality_id, fee_cents) VALUES ($1, $2, $3)
		ON CONFLICT (event_id, modality_id) DO UPDATE SET fee_cents = EXCLUDED.fee_cents`
	_, err := r.db.Exec(ctx, q, eventID, modalityID, cents)
	return mapErr(err)
}

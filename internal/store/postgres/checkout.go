package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fedsport/backend/internal/checkout"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
)

const paymentColumns = `id, athlete_id, method_id, provider, external_ref, pay_url, amount_cents, currency,
	status, failure_reason, settled_at, created_at, updated_at`

// CheckoutRepository implements checkout.Store.
type CheckoutRepository struct {
	db TxBeginner
}

// NewCheckoutRepository creates a payment and reservation repository.
func NewCheckoutRepository(db TxBeginner) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// RunInTx runs fn in a read-committed transaction. Row locks taken through the
// tx serialize competing reservations; fn's error is returned unchanged.
func (r *CheckoutRepository) RunInTx(ctx context.Context, fn func(tx checkout.Tx) error) error {
	return mapErr(pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	}))
}

func (r *CheckoutRepository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return getPayment(ctx, r.db, `WHERE id = $1`, id)
}

func (r *CheckoutRepository) GetPaymentByExternalRef(ctx context.Context, provider, ref string) (*models.Payment, error) {
	return getPayment(ctx, r.db, `WHERE provider = $1 AND external_ref = $2`, provider, ref)
}

// ListPaymentsByAthlete returns newest first.
func (r *CheckoutRepository) ListPaymentsByAthlete(ctx context.Context, athleteID uuid.UUID) ([]*models.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE athlete_id = $1
		ORDER BY created_at DESC, id DESC`, athleteID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var list []*models.Payment
	byID := make(map[uuid.UUID]*models.Payment)
	var ids []uuid.UUID
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	rows.Close()
	if len(ids) == 0 {
		return list, nil
	}

	items, err := r.db.Query(ctx, `SELECT payment_id, registration_id, fee_cents FROM payment_items
		WHERE payment_id = ANY($1) ORDER BY payment_id, position`, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	defer items.Close()
	for items.Next() {
		var paymentID uuid.UUID
		var it models.PaymentItem
		if err := items.Scan(&paymentID, &it.RegistrationID, &it.FeeCents); err != nil {
			return nil, err
		}
		if p := byID[paymentID]; p != nil {
			p.Items = append(p.Items, it)
		}
	}
	return list, mapErr(items.Err())
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	var ref, url, reason *string
	err := row.Scan(&p.ID, &p.AthleteID, &p.MethodID, &p.Provider, &ref, &url, &p.AmountCents, &p.Currency,
		&p.Status, &reason, &p.SettledAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ExternalRef, p.PayURL, p.FailureReason = deref(ref), deref(url), deref(reason)
	return &p, nil
}

// getPayment loads one payment matching where, with its items.
func getPayment(ctx context.Context, db DBTX, where string, args ...any) (*models.Payment, error) {
	p, err := scanPayment(db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments `+where, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	if err := loadItems(ctx, db, p); err != nil {
		return nil, err
	}
	return p, nil
}

func loadItems(ctx context.Context, db DBTX, p *models.Payment) error {
	rows, err := db.Query(ctx, `SELECT registration_id, fee_cents FROM payment_items
		WHERE payment_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()
	p.Items = p.Items[:0]
	for rows.Next() {
		var it models.PaymentItem
		if err := rows.Scan(&it.RegistrationID, &it.FeeCents); err != nil {
			return err
		}
		p.Items = append(p.Items, it)
	}
	return mapErr(rows.Err())
}

// pgTx implements checkout.Tx on an open transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return getRegistration(ctx, t.tx, id, false)
}

func (t *pgTx) LockRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return getRegistration(ctx, t.tx, id, true)
}

// LockRegistrations locks in id order so overlapping checkouts never deadlock.
func (t *pgTx) LockRegistrations(ctx context.Context, ids []uuid.UUID) ([]*models.Registration, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+registrationColumns+` FROM registrations
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectRegistrations(rows)
}

func (t *pgTx) TransitionRegistrations(ctx context.Context, ids []uuid.UUID, from, to models.RegistrationStatus, paymentID *uuid.UUID, at time.Time) (int64, error) {
	const q = `UPDATE registrations SET status = $3, payment_id = $4, updated_at = $5
		WHERE id = ANY($1) AND status = $2`
	tag, err := t.tx.Exec(ctx, q, ids, from, to, paymentID, at)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) SettlePaymentRegistrations(ctx context.Context, paymentID uuid.UUID, to models.RegistrationStatus, at time.Time) (int64, error) {
	const q = `UPDATE registrations
		SET status = $2::text,
			payment_id = CASE WHEN $2::text = 'cart' THEN NULL ELSE payment_id END,
			updated_at = $3
		WHERE payment_id = $1 AND status = 'pending_payment'`
	tag, err := t.tx.Exec(ctx, q, paymentID, to, at)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// InsertPayment writes the payment and its frozen items in one batch.
func (t *pgTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	const insertPayment = `INSERT INTO payments (id, athlete_id, method_id, provider, external_ref, pay_url,
			amount_cents, currency, status, failure_reason, settled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	const insertItem = `INSERT INTO payment_items (payment_id, position, registration_id, fee_cents)
		VALUES ($1, $2, $3, $4)`

	b := &pgx.Batch{}
	b.Queue(insertPayment, p.ID, p.AthleteID, p.MethodID, p.Provider, nullable(p.ExternalRef), nullable(p.PayURL),
		p.AmountCents, p.Currency, p.Status, nullable(p.FailureReason), p.SettledAt, p.CreatedAt, p.UpdatedAt)
	for i, it := range p.Items {
		b.Queue(insertItem, p.ID, i, it.RegistrationID, it.FeeCents)
	}
	return mapErr(t.tx.SendBatch(ctx, b).Close())
}

func (t *pgTx) LockPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return getPayment(ctx, t.tx, `WHERE id = $1 FOR UPDATE`, id)
}

// UpdatePayment writes the mutable payment fields. Items are frozen at insert.
func (t *pgTx) UpdatePayment(ctx context.Context, p *models.Payment) error {
	const q = `UPDATE payments
		SET external_ref = $2, pay_url = $3, status = $4, failure_reason = $5, settled_at = $6, updated_at = $7
		WHERE id = $1`
	tag, err := t.tx.Exec(ctx, q, p.ID, nullable(p.ExternalRef), nullable(p.PayURL), p.Status,
		nullable(p.FailureReason), p.SettledAt, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

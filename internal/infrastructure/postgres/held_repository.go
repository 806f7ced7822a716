package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finhealth/internal/domain/banksync"
	"finhealth/internal/shared/apperr"
)

const heldColumns = `id, user_id, link_id, external_id, amount, direction, category, sub_category, description,
	account, to_char(txn_date, 'YYYY-MM-DD'), matched_transaction_id, status, created_at, resolved_at`

// HeldRepository stores bank-sync candidates awaiting review. Rows are
// resolved, never deleted, so a dismissal outlives later syncs.
type HeldRepository struct {
	db *DB
}

var _ banksync.HeldRepository = (*HeldRepository)(nil)

func NewHeldRepository(db *DB) *HeldRepository {
	return &HeldRepository{db: db}
}

func scanHeld(row rowScanner) (*banksync.HeldTransaction, error) {
	var h banksync.HeldTransaction
	var linkID, sub, matched sql.NullString
	var resolved sql.NullTime

	err := row.Scan(
		&h.ID, &h.UserID, &linkID, &h.ExternalID, &h.Amount, &h.Direction, &h.Category, &sub, &h.Description,
		&h.Account, &h.Date, &matched, &h.Status, &h.CreatedAt, &resolved,
	)
	if err != nil {
		return nil, err
	}

	h.LinkID = linkID.String
	if sub.Valid {
		h.SubCategory = &sub.String
	}
	if matched.Valid {
		h.MatchedTransactionID = &matched.String
	}
	if resolved.Valid {
		h.ResolvedAt = &resolved.Time
	}
	return &h, nil
}

func (r *HeldRepository) Hold(ctx context.Context, h *banksync.HeldTransaction) (*banksync.HeldTransaction, error) {
	stored, err := scanHeld(r.db.QueryRowContext(ctx, `
		INSERT INTO held_transactions (id, user_id, link_id, external_id, amount, direction, category, sub_category,
		                               description, account, txn_date, matched_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::date, $12)
		ON CONFLICT (user_id, external_id) DO NOTHING
		RETURNING `+heldColumns,
		uuid.NewString(), h.UserID, sql.NullString{String: h.LinkID, Valid: h.LinkID != ""}, h.ExternalID,
		h.Amount, h.Direction, h.Category, h.SubCategory, h.Description, h.Account, h.Date, h.MatchedTransactionID,
	))
	if err == sql.ErrNoRows {
		stored, err = scanHeld(r.db.QueryRowContext(ctx,
			`SELECT `+heldColumns+` FROM held_transactions WHERE user_id = $1 AND external_id = $2`,
			h.UserID, h.ExternalID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hold transaction: %w", err)
	}
	return stored, nil
}

func (r *HeldRepository) GetByID(ctx context.Context, userID, id string) (*banksync.HeldTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("held transaction")
	}

	h, err := scanHeld(r.db.QueryRowContext(ctx,
		`SELECT `+heldColumns+` FROM held_transactions WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("held transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get held transaction: %w", err)
	}
	return h, nil
}

func (r *HeldRepository) ListPending(ctx context.Context, userID string) ([]*banksync.HeldTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+heldColumns+` FROM held_transactions
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list held transactions: %w", err)
	}
	defer rows.Close()

	out := []*banksync.HeldTransaction{}
	for rows.Next() {
		h, err := scanHeld(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan held transaction: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating held transactions: %w", err)
	}
	return out, nil
}

// Resolve only moves pending rows, so two concurrent resolutions cannot
// both succeed.
func (r *HeldRepository) Resolve(ctx context.Context, userID, id string, status banksync.HeldStatus, at time.Time) (*banksync.HeldTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("held transaction")
	}

	h, err := scanHeld(r.db.QueryRowContext(ctx, `
		UPDATE held_transactions SET status = $3, resolved_at = $4
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING `+heldColumns, id, userID, status, at))
	if err == sql.ErrNoRows {
		current, getErr := r.GetByID(ctx, userID, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperr.Conflict(apperr.CodeConflict, "held transaction is already "+string(current.Status))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve held transaction: %w", err)
	}
	return h, nil
}

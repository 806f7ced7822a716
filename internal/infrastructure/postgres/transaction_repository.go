package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finhealth/internal/domain/transaction"
	"finhealth/internal/shared/apperr"
)

const transactionColumns = `id, user_id, amount, direction, category, sub_category, description, account,
	to_char(txn_date, 'YYYY-MM-DD'), origin, external_id, possible_duplicate, duplicate_dismissed_at,
	notes, created_at, updated_at`

type TransactionRepository struct {
	db *DB
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var sub, extID sql.NullString
	var dismissed sql.NullTime

	err := row.Scan(
		&t.ID, &t.UserID, &t.Amount, &t.Direction, &t.Category, &sub, &t.Description, &t.Account,
		&t.Date, &t.Origin, &extID, &t.PossibleDuplicate, &dismissed,
		&t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sub.Valid {
		t.SubCategory = &sub.String
	}
	if extID.Valid {
		t.ExternalID = &extID.String
	}
	if dismissed.Valid {
		t.DuplicateDismissedAt = &dismissed.Time
	}
	return &t, nil
}

func (r *TransactionRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []*transaction.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

func (r *TransactionRepository) Create(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions (id, user_id, amount, direction, category, sub_category, description,
		                          account, txn_date, origin, external_id, possible_duplicate, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10, $11, $12, $13)
		RETURNING ` + transactionColumns

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, params.Amount, params.Direction, params.Category, params.SubCategory,
		params.Description, params.Account, params.Date, params.Origin, params.ExternalID,
		params.PossibleDuplicate, params.Notes,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict(apperr.CodeConflict, "transaction with this external id already exists")
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("transaction")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByExternalID(ctx context.Context, userID, externalID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND external_id = $2`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, userID, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by external id: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) List(ctx context.Context, userID string, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Direction != "" {
		add("direction = $%d", filter.Direction)
	}
	if filter.Origin != "" {
		add("origin = $%d", filter.Origin)
	}
	if filter.From != "" {
		add("txn_date >= $%d::date", filter.From)
	}
	if filter.To != "" {
		add("txn_date <= $%d::date", filter.To)
	}
	if filter.OnlyDuplicates {
		conds = append(conds, "possible_duplicate")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY txn_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	return r.queryTransactions(ctx, query, args...)
}

func (r *TransactionRepository) ListInDateRange(ctx context.Context, userID, from, to string) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 AND txn_date BETWEEN $2::date AND $3::date
		ORDER BY txn_date, created_at`
	return r.queryTransactions(ctx, query, userID, from, to)
}

func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions
		SET amount = $3, direction = $4, category = $5, sub_category = $6, description = $7,
		    account = $8, txn_date = $9::date, notes = $10, possible_duplicate = $11, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + transactionColumns

	updated, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		t.ID, t.UserID, t.Amount, t.Direction, t.Category, t.SubCategory, t.Description,
		t.Account, t.Date, t.Notes, t.PossibleDuplicate,
	))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return updated, nil
}

func (r *TransactionRepository) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("transaction")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("transaction")
	}
	return nil
}

func (r *TransactionRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear transactions: %w", err)
	}
	return result.RowsAffected()
}

func (r *TransactionRepository) SumExpenses(ctx context.Context, userID, category, period string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE user_id = $1 AND category = $2 AND direction = 'expense'
		  AND ($3::text = '' OR to_char(txn_date, 'YYYY-MM') = $3::text)`,
		userID, category, period,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}
	return sum, nil
}

func (r *TransactionRepository) SetPossibleDuplicate(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET possible_duplicate = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to flag transaction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("transaction")
	}
	return nil
}

func (r *TransactionRepository) DismissDuplicate(ctx context.Context, userID, id string, at time.Time) (*transaction.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("transaction")
	}

	query := `
		UPDATE transactions
		SET possible_duplicate = FALSE, duplicate_dismissed_at = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + transactionColumns

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, userID, at))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dismiss duplicate: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM transactions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finhealth/internal/domain/banksync"
)

const accountColumns = `id, link_id, user_id, external_account_id, name, official_name, type, subtype, mask,
	available_balance, current_balance, currency, updated_at`

type AccountRepository struct {
	db *DB
}

var _ banksync.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row rowScanner) (*banksync.Account, error) {
	var a banksync.Account
	var officialName, subtype, mask, currency sql.NullString
	var available, current decimal.NullDecimal

	err := row.Scan(
		&a.ID, &a.LinkID, &a.UserID, &a.ExternalAccountID, &a.Name, &officialName, &a.Type, &subtype, &mask,
		&available, &current, &currency, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.OfficialName = nullString(officialName)
	a.Subtype = nullString(subtype)
	a.Mask = nullString(mask)
	a.Currency = nullString(currency)
	if available.Valid {
		a.AvailableBalance = &available.Decimal
	}
	if current.Valid {
		a.CurrentBalance = &current.Decimal
	}
	return &a, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// Upsert refreshes an account's metadata and balances, keyed by the
// aggregator account id.
func (r *AccountRepository) Upsert(ctx context.Context, a *banksync.Account) (*banksync.Account, error) {
	query := `
		INSERT INTO external_accounts (id, link_id, user_id, external_account_id, name, official_name, type,
		                               subtype, mask, available_balance, current_balance, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (external_account_id) DO UPDATE SET
			link_id = EXCLUDED.link_id,
			name = EXCLUDED.name,
			official_name = EXCLUDED.official_name,
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			mask = EXCLUDED.mask,
			available_balance = EXCLUDED.available_balance,
			current_balance = EXCLUDED.current_balance,
			currency = EXCLUDED.currency,
			updated_at = NOW()
		RETURNING ` + accountColumns

	saved, err := scanAccount(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), a.LinkID, a.UserID, a.ExternalAccountID, a.Name, a.OfficialName, a.Type,
		a.Subtype, a.Mask, nullDecimal(a.AvailableBalance), nullDecimal(a.CurrentBalance), a.Currency,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return saved, nil
}

func (r *AccountRepository) ListByLink(ctx context.Context, userID, linkID string) ([]*banksync.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM external_accounts
		WHERE user_id = $1 AND link_id = $2
		ORDER BY name`, userID, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*banksync.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

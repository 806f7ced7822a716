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

const linkColumns = `id, user_id, item_id, access_token, token_fingerprint, institution_id, institution_name,
	status, error_code, last_synced_at, created_at, updated_at`

// liveInstitutionIndex allows one non-disconnected link per user and institution.
const liveInstitutionIndex = "idx_links_user_institution_live"

type LinkRepository struct {
	db *DB
}

var _ banksync.LinkRepository = (*LinkRepository)(nil)

func NewLinkRepository(db *DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func scanLink(row rowScanner) (*banksync.Link, error) {
	var l banksync.Link
	var errorCode sql.NullString
	var lastSynced sql.NullTime
	err := row.Scan(
		&l.ID, &l.UserID, &l.ItemID, &l.AccessToken, &l.TokenFingerprint, &l.InstitutionID, &l.InstitutionName,
		&l.Status, &errorCode, &lastSynced, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if errorCode.Valid {
		l.ErrorCode = &errorCode.String
	}
	if lastSynced.Valid {
		l.LastSyncedAt = &lastSynced.Time
	}
	return &l, nil
}

func (r *LinkRepository) Create(ctx context.Context, p banksync.CreateLinkParams) (*banksync.Link, error) {
	query := `
		INSERT INTO external_account_links (id, user_id, item_id, access_token, token_fingerprint,
		                                    institution_id, institution_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + linkColumns

	l, err := scanLink(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), p.UserID, p.ItemID, p.AccessToken, p.TokenFingerprint,
		p.InstitutionID, p.InstitutionName, banksync.StatusActive))
	if err != nil {
		return nil, linkCreateError(err)
	}
	return l, nil
}

func linkCreateError(err error) error {
	constraint, ok := violatedConstraint(err)
	switch {
	case ok && constraint == liveInstitutionIndex:
		return apperr.Conflict(apperr.CodeDuplicateLink, "institution is already linked")
	case ok:
		return apperr.Conflict(apperr.CodeDuplicateLink, "item is already linked")
	}
	return fmt.Errorf("failed to create link: %w", err)
}

func (r *LinkRepository) GetByID(ctx context.Context, userID, id string) (*banksync.Link, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("link")
	}

	l, err := scanLink(r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM external_account_links WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("link")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return l, nil
}

func (r *LinkRepository) GetByItemID(ctx context.Context, itemID string) (*banksync.Link, error) {
	l, err := scanLink(r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM external_account_links WHERE item_id = $1`, itemID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("link")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link by item: %w", err)
	}
	return l, nil
}

func (r *LinkRepository) FindActiveByInstitution(ctx context.Context, userID, institutionID string) (*banksync.Link, error) {
	l, err := scanLink(r.db.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM external_account_links
		WHERE user_id = $1 AND institution_id = $2 AND status <> $3
		LIMIT 1`, userID, institutionID, banksync.StatusDisconnected))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return l, nil
}

func (r *LinkRepository) ListByUser(ctx context.Context, userID string) ([]*banksync.Link, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM external_account_links WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := []*banksync.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *LinkRepository) UpdateStatus(ctx context.Context, id string, status banksync.Status, errorCode *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE external_account_links SET status = $2, error_code = $3, updated_at = NOW()
		WHERE id = $1`, id, status, errorCode)
	if err != nil {
		return fmt.Errorf("failed to update link status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("link")
	}
	return nil
}

func (r *LinkRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE external_account_links SET last_synced_at = $2, updated_at = NOW()
		WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("failed to mark link synced: %w", err)
	}
	return nil
}

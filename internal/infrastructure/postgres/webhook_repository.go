package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"finhealth/internal/domain/banksync"
	"finhealth/internal/shared/apperr"
)

const eventColumns = `id, item_id, webhook_type, webhook_code, payload, processed, received_at, processed_at`

// WebhookRepository is append-only: rows are never deleted and only the
// processed marker changes.
type WebhookRepository struct {
	db *DB
}

var _ banksync.EventRepository = (*WebhookRepository)(nil)

func NewWebhookRepository(db *DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func scanEvent(row rowScanner) (*banksync.Event, error) {
	var e banksync.Event
	var payload []byte
	var processedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.ItemID, &e.WebhookType, &e.WebhookCode, &payload, &e.Processed, &e.ReceivedAt, &processedAt); err != nil {
		return nil, err
	}
	e.Payload = payload
	if processedAt.Valid {
		e.ProcessedAt = &processedAt.Time
	}
	return &e, nil
}

// storableText makes an arbitrary body acceptable to a TEXT column, which
// rejects NUL bytes and invalid UTF-8.
func storableText(raw []byte) string {
	return strings.ToValidUTF8(strings.ReplaceAll(string(raw), "\x00", ""), "\uFFFD")
}

func (r *WebhookRepository) Record(ctx context.Context, e *banksync.Event) (*banksync.Event, error) {
	saved, err := scanEvent(r.db.QueryRowContext(ctx, `
		INSERT INTO webhook_events (id, item_id, webhook_type, webhook_code, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+eventColumns,
		uuid.NewString(), e.ItemID, e.WebhookType, e.WebhookCode, storableText(e.Payload), e.ReceivedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return saved, nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*banksync.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("webhook event")
	}

	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM webhook_events WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("webhook event")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return e, nil
}

func (r *WebhookRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events SET processed = TRUE, processed_at = $2
		WHERE id = $1 AND NOT processed`, id, at); err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}

func (r *WebhookRepository) ListUnprocessed(ctx context.Context, limit int) ([]*banksync.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM webhook_events
		WHERE NOT processed
		ORDER BY received_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed webhooks: %w", err)
	}
	defer rows.Close()

	var events []*banksync.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type OutboxRepo struct {
	db DBTX
}

func NewOutboxRepo(db DBTX) *OutboxRepo {
	return &OutboxRepo{db: db}
}

func (r *OutboxRepo) Enqueue(ctx context.Context, e *models.OutboxEvent) error {
	e.Status = models.OutboxStatusPending
	return r.db.QueryRow(ctx, `
		INSERT INTO outbox_events (event_type, payload) VALUES ($1, $2)
		RETURNING id, created_at
	`, e.EventType, e.Payload).Scan(&e.ID, &e.CreatedAt)
}

// ListPending skips rows another relay already holds.
func (r *OutboxRepo) ListPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, event_type, payload, status, attempts, last_error, created_at, processed_at
		FROM outbox_events WHERE status = 'pending'
		ORDER BY created_at LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE outbox_events SET status = 'processed', processed_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, maxAttempts int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET attempts = attempts + 1, last_error = $1,
		    status = CASE WHEN $2 > 0 AND attempts + 1 >= $2 THEN 'failed' ELSE status END
		WHERE id = $3
	`, lastErr, maxAttempts, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type outboxStore struct{ s *Store }

func (r outboxStore) Enqueue(ctx context.Context, e *models.OutboxEvent) error {
	defer r.s.lock()()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = models.OutboxStatusPending
	e.CreatedAt = r.s.now()
	r.s.st.outbox[e.ID] = *e
	return nil
}

func (r outboxStore) ListPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	defer r.s.lock()()

	var out []models.OutboxEvent
	for _, e := range r.s.st.outbox {
		if e.Status == models.OutboxStatusPending {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (r outboxStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()

	e, ok := r.s.st.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	now := r.s.now()
	e.Status = models.OutboxStatusProcessed
	e.ProcessedAt = &now
	r.s.st.outbox[id] = e
	return nil
}

func (r outboxStore) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, maxAttempts int) error {
	defer r.s.lock()()

	e, ok := r.s.st.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Attempts++
	e.LastError = &lastErr
	if maxAttempts > 0 && e.Attempts >= maxAttempts {
		e.Status = models.OutboxStatusFailed
	}
	r.s.st.outbox[id] = e
	return nil
}

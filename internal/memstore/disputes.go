package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type disputeStore struct{ s *Store }

func (r disputeStore) Create(ctx context.Context, d *models.Dispute) error {
	defer r.s.lock()()

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = models.DisputeStatusOpen
	}
	if d.Status == models.DisputeStatusOpen {
		for _, other := range r.s.st.disputes {
			if other.TransactionID == d.TransactionID && other.Status == models.DisputeStatusOpen {
				return store.ErrDuplicate
			}
		}
	}
	d.CreatedAt = r.s.now()
	d.Evidence = append([]string(nil), d.Evidence...)
	r.s.st.disputes[d.ID] = *d
	return nil
}

func (r disputeStore) GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	defer r.s.lock()()

	var latest *models.Dispute
	for _, d := range r.s.st.disputes {
		if d.TransactionID != transactionID {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			d := d
			latest = &d
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (r disputeStore) Update(ctx context.Context, d *models.Dispute) error {
	defer r.s.lock()()

	cur, ok := r.s.st.disputes[d.ID]
	if !ok {
		return store.ErrNotFound
	}
	next := *d
	next.CreatedAt = cur.CreatedAt
	next.Evidence = append([]string(nil), d.Evidence...)
	r.s.st.disputes[d.ID] = next
	return nil
}

func (r disputeStore) List(ctx context.Context, f store.DisputeFilter) ([]models.Dispute, error) {
	defer r.s.lock()()

	var out []models.Dispute
	for _, d := range r.s.st.disputes {
		if f.TransactionID != nil && d.TransactionID != *f.TransactionID {
			continue
		}
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		out = append(out, d)
	}
	newestFirst(out, func(d models.Dispute) (time.Time, uuid.UUID) { return d.CreatedAt, d.ID })
	return page(out, store.PageLimit(f.Limit), 0), nil
}

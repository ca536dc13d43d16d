package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type transactionStore struct{ s *Store }

func isLive(status models.TransactionStatus) bool {
	return status == models.TransactionStatusPending ||
		status == models.TransactionStatusHeld ||
		status == models.TransactionStatusCompleted
}

func (r transactionStore) Create(ctx context.Context, t *models.RehomingTransaction) error {
	defer r.s.lock()()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if isLive(t.Status) {
		for _, other := range r.s.st.transactions {
			if other.AdoptionRequestID == t.AdoptionRequestID && isLive(other.Status) {
				return store.ErrDuplicate
			}
		}
	}
	now := r.s.now()
	t.Version = 1
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.st.transactions[t.ID] = *t
	return nil
}

func (r transactionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.RehomingTransaction, error) {
	defer r.s.lock()()

	t, ok := r.s.st.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (r transactionStore) List(ctx context.Context, f store.TransactionFilter) ([]models.RehomingTransaction, error) {
	defer r.s.lock()()

	var out []models.RehomingTransaction
	for _, t := range r.s.st.transactions {
		if f.UserID != nil && !t.IsParty(*f.UserID) {
			continue
		}
		if f.AdoptionRequestID != nil && t.AdoptionRequestID != *f.AdoptionRequestID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
			continue
		}
		if len(f.DisputeStatuses) > 0 && !slices.Contains(f.DisputeStatuses, t.DisputeStatus) {
			continue
		}
		if f.UpdatedBefore != nil && !t.UpdatedAt.Before(*f.UpdatedBefore) {
			continue
		}
		if f.HeldBefore != nil && (t.HeldAt == nil || !t.HeldAt.Before(*f.HeldBefore)) {
			continue
		}
		out = append(out, t)
	}
	byCreated(out, func(t models.RehomingTransaction) (time.Time, uuid.UUID) { return t.CreatedAt, t.ID }, f.OldestFirst)
	return page(out, store.PageLimit(f.Limit), f.Offset), nil
}

func (r transactionStore) Update(ctx context.Context, t *models.RehomingTransaction) error {
	defer r.s.lock()()

	cur, ok := r.s.st.transactions[t.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != t.Version {
		return store.ErrVersionConflict
	}
	// Parties and amounts are fixed at creation, as in the SQL UPDATE.
	next := *t
	next.AdoptionRequestID = cur.AdoptionRequestID
	next.PetID = cur.PetID
	next.FromUser, next.ToUser = cur.FromUser, cur.ToUser
	next.Amount, next.PlatformFee, next.NetAmount = cur.Amount, cur.PlatformFee, cur.NetAmount
	next.Currency, next.FeeBPS = cur.Currency, cur.FeeBPS
	next.CreatedAt = cur.CreatedAt
	next.Version++
	next.UpdatedAt = r.s.now()
	r.s.st.transactions[t.ID] = next
	*t = next
	return nil
}

package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type requestStore struct{ s *Store }

func (r requestStore) conflicts(candidate models.AdoptionRequest) bool {
	for _, other := range r.s.st.requests {
		if other.ID == candidate.ID || other.PetID != candidate.PetID {
			continue
		}
		if candidate.Status.IsActive() && other.Status.IsActive() {
			return true
		}
		if other.AdopterID == candidate.AdopterID && !other.Status.IsTerminal() && !candidate.Status.IsTerminal() {
			return true
		}
	}
	return false
}

func (r requestStore) Create(ctx context.Context, req *models.AdoptionRequest) error {
	defer r.s.lock()()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if r.conflicts(*req) {
		return store.ErrDuplicate
	}
	now := r.s.now()
	req.Version = 1
	req.CreatedAt, req.UpdatedAt = now, now
	r.s.st.requests[req.ID] = *req
	return nil
}

func (r requestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.AdoptionRequest, error) {
	defer r.s.lock()()

	req, ok := r.s.st.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &req, nil
}

func (r requestStore) List(ctx context.Context, f store.RequestFilter) ([]models.AdoptionRequest, error) {
	defer r.s.lock()()

	var out []models.AdoptionRequest
	for _, req := range r.s.st.requests {
		if f.PetID != nil && req.PetID != *f.PetID {
			continue
		}
		if f.AdopterID != nil && req.AdopterID != *f.AdopterID {
			continue
		}
		if f.ExcludeID != nil && req.ID == *f.ExcludeID {
			continue
		}
		if f.OwnerID != nil {
			pet, ok := r.s.st.pets[req.PetID]
			if !ok || pet.OwnerID != *f.OwnerID {
				continue
			}
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, req.Status) {
			continue
		}
		if f.UpdatedBefore != nil && !req.UpdatedAt.Before(*f.UpdatedBefore) {
			continue
		}
		out = append(out, req)
	}
	byCreated(out, func(r models.AdoptionRequest) (time.Time, uuid.UUID) { return r.CreatedAt, r.ID }, f.OldestFirst)
	return page(out, store.PageLimit(f.Limit), f.Offset), nil
}

func (r requestStore) UpdateStatus(ctx context.Context, req *models.AdoptionRequest, status models.RequestStatus) error {
	defer r.s.lock()()

	cur, ok := r.s.st.requests[req.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != req.Version {
		return store.ErrVersionConflict
	}
	next := cur
	next.Status = status
	if r.conflicts(next) {
		return store.ErrDuplicate
	}
	now := r.s.now()
	next.Version++
	next.UpdatedAt = now
	if cur.Status == models.RequestStatusPending && status != models.RequestStatusPending {
		next.DecidedAt = &now
	}
	r.s.st.requests[req.ID] = next
	*req = next
	return nil
}

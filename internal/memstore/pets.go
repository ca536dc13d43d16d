package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type petStore struct{ s *Store }

func (r petStore) Create(ctx context.Context, p *models.RehomingPet) error {
	defer r.s.lock()()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.pets[p.ID] = *p
	return nil
}

func (r petStore) GetByID(ctx context.Context, id uuid.UUID) (*models.RehomingPet, error) {
	defer r.s.lock()()

	p, ok := r.s.st.pets[id]
	if !ok || p.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// GetForUpdate is GetByID; Atomic already serializes the whole store.
func (r petStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.RehomingPet, error) {
	return r.GetByID(ctx, id)
}

func (r petStore) Update(ctx context.Context, p *models.RehomingPet) error {
	defer r.s.lock()()

	cur, ok := r.s.st.pets[p.ID]
	if !ok || cur.DeletedAt != nil {
		return store.ErrNotFound
	}
	// owner edits never touch workflow-owned flags
	p.IsAdopted, p.IsVerified, p.CreatedAt = cur.IsAdopted, cur.IsVerified, cur.CreatedAt
	p.UpdatedAt = r.s.now()
	r.s.st.pets[p.ID] = *p
	return nil
}

func (r petStore) MarkAdopted(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()

	p, ok := r.s.st.pets[id]
	if !ok {
		return store.ErrNotFound
	}
	p.IsAdopted = true
	p.UpdatedAt = r.s.now()
	r.s.st.pets[id] = p
	return nil
}

func (r petStore) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	defer r.s.lock()()

	p, ok := r.s.st.pets[id]
	if !ok || p.DeletedAt != nil {
		return store.ErrNotFound
	}
	p.IsVerified = verified
	p.UpdatedAt = r.s.now()
	r.s.st.pets[id] = p
	return nil
}

func (r petStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()

	p, ok := r.s.st.pets[id]
	if !ok || p.DeletedAt != nil {
		return store.ErrNotFound
	}
	now := r.s.now()
	p.DeletedAt = &now
	p.UpdatedAt = now
	r.s.st.pets[id] = p
	return nil
}

func (r petStore) List(ctx context.Context, f store.PetFilter) ([]models.RehomingPet, error) {
	defer r.s.lock()()

	var out []models.RehomingPet
	for _, p := range r.s.st.pets {
		if p.DeletedAt != nil {
			continue
		}
		if f.OnlyAvailable && p.IsAdopted {
			continue
		}
		if f.OwnerID != nil && p.OwnerID != *f.OwnerID {
			continue
		}
		if f.Species != nil && p.Species != *f.Species {
			continue
		}
		if f.AdoptionType != nil && p.AdoptionType != *f.AdoptionType {
			continue
		}
		out = append(out, p)
	}
	newestFirst(out, func(p models.RehomingPet) (time.Time, uuid.UUID) { return p.CreatedAt, p.ID })
	return page(out, store.PageLimit(f.Limit), f.Offset), nil
}

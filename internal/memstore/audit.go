package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
)

type auditStore struct{ s *Store }

func (r auditStore) Log(ctx context.Context, entry models.AuditLog) error {
	defer r.s.lock()()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.s.now()
	}
	r.s.st.audit = append(r.s.st.audit, entry)
	return nil
}

func (r auditStore) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	defer r.s.lock()()

	var out []models.AuditLog
	for i := len(r.s.st.audit) - 1; i >= 0; i-- {
		e := r.s.st.audit[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}

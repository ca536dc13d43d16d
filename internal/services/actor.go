package services

import (
	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/rbac"
)

// Actor identifies who triggered an operation, for authorization and the audit log.
type Actor struct {
	ID   *uuid.UUID
	Type string
}

func UserActor(id uuid.UUID) Actor {
	return Actor{ID: &id, Type: models.ActorUser}
}

func SystemActor() Actor {
	return Actor{Type: models.ActorSystem}
}

// ArbiterActor is an internal caller; id is nil for token-authenticated services.
func ArbiterActor(id *uuid.UUID) Actor {
	return Actor{ID: id, Type: models.ActorArbiter}
}

// internalRole maps non-user actors to the arbiter role. Users get no role here;
// their role always comes from their relation to the entity.
func (a Actor) internalRole() string {
	if a.Type == models.ActorSystem || a.Type == models.ActorArbiter {
		return rbac.RoleArbiter
	}
	return ""
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types
const (
	ActorUser    = "user"
	ActorSystem  = "system"
	ActorArbiter = "arbiter"
)

// Audited entity types
const (
	EntityPet             = "pet"
	EntityAdoptionRequest = "adoption_request"
	EntityTransaction     = "transaction"
	EntityDispute         = "dispute"
)

type AuditLog struct {
	ID          uuid.UUID      `json:"id"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorType   string         `json:"actor_type"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    *uuid.UUID     `json:"entity_id,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

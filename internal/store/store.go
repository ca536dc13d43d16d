// Package store declares the persistence contracts of the adoption workflow.
// Implementations live in internal/repositories (PostgreSQL) and internal/memstore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrVersionConflict = errors.New("store: version conflict")
	ErrDuplicate       = errors.New("store: duplicate")
)

// List limits shared by every implementation.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageLimit applies the default and the cap to a filter's Limit.
func PageLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

type PetFilter struct {
	OwnerID       *uuid.UUID
	Species       *string
	AdoptionType  *models.AdoptionType
	OnlyAvailable bool
	Limit         int
	Offset        int
}

type RequestFilter struct {
	PetID         *uuid.UUID
	AdopterID     *uuid.UUID
	OwnerID       *uuid.UUID // through the pet
	Statuses      []models.RequestStatus
	ExcludeID     *uuid.UUID
	UpdatedBefore *time.Time
	OldestFirst   bool // default is newest first
	Limit         int
	Offset        int
}

type TransactionFilter struct {
	UserID            *uuid.UUID // either party
	AdoptionRequestID *uuid.UUID
	Statuses          []models.TransactionStatus
	DisputeStatuses   []models.DisputeState
	UpdatedBefore     *time.Time
	HeldBefore        *time.Time
	OldestFirst       bool // default is newest first
	Limit             int
	Offset            int
}

type DisputeFilter struct {
	TransactionID *uuid.UUID
	Status        *models.DisputeRecordStatus
	Limit         int
}

type PetStore interface {
	Create(ctx context.Context, p *models.RehomingPet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RehomingPet, error)
	// GetForUpdate reads the pet and holds its row lock until the surrounding
	// Atomic call returns.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.RehomingPet, error)
	Update(ctx context.Context, p *models.RehomingPet) error
	MarkAdopted(ctx context.Context, id uuid.UUID) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f PetFilter) ([]models.RehomingPet, error)
}

type RequestStore interface {
	// Create returns ErrDuplicate when the adopter already holds a non-terminal
	// request for the pet, or the pet already has an active request.
	Create(ctx context.Context, r *models.AdoptionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AdoptionRequest, error)
	List(ctx context.Context, f RequestFilter) ([]models.AdoptionRequest, error)
	// UpdateStatus moves r to status if r.Version is still current, bumping the
	// version in place. ErrVersionConflict otherwise; ErrDuplicate if the move
	// would give the pet a second active request.
	UpdateStatus(ctx context.Context, r *models.AdoptionRequest, status models.RequestStatus) error
}

type TransactionStore interface {
	// Create returns ErrDuplicate when the request already has a live
	// (pending, held or completed) transaction.
	Create(ctx context.Context, t *models.RehomingTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RehomingTransaction, error)
	List(ctx context.Context, f TransactionFilter) ([]models.RehomingTransaction, error)
	// Update persists t if t.Version is still current and bumps it in place.
	Update(ctx context.Context, t *models.RehomingTransaction) error
}

type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error)
	Update(ctx context.Context, d *models.Dispute) error
	List(ctx context.Context, f DisputeFilter) ([]models.Dispute, error)
}

type ConfirmationStore interface {
	Create(ctx context.Context, c *models.TransferConfirmation) error
	Get(ctx context.Context, transactionID uuid.UUID) (*models.TransferConfirmation, error)
	// Confirm sets the role's flag if unset. changed is false when it was
	// already set.
	Confirm(ctx context.Context, transactionID uuid.UUID, role models.PartyRole, at time.Time) (c *models.TransferConfirmation, changed bool, err error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

type OutboxStore interface {
	Enqueue(ctx context.Context, e *models.OutboxEvent) error
	ListPending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// MarkFailed records the error; after maxAttempts the event is parked as failed.
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, maxAttempts int) error
}

type Store interface {
	Pets() PetStore
	Requests() RequestStore
	Transactions() TransactionStore
	Disputes() DisputeStore
	Confirmations() ConfirmationStore
	Audit() AuditStore
	Outbox() OutboxStore
	// Atomic runs fn against a Store bound to one transaction. Any error rolls
	// every write back. Nested calls join the outer transaction.
	Atomic(ctx context.Context, fn func(Store) error) error
}

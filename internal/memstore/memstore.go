// Package memstore is an in-memory store.Store for development mode and tests.
// It enforces the same uniqueness and version rules as the PostgreSQL schema.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type state struct {
	pets          map[uuid.UUID]models.RehomingPet
	requests      map[uuid.UUID]models.AdoptionRequest
	transactions  map[uuid.UUID]models.RehomingTransaction
	disputes      map[uuid.UUID]models.Dispute
	confirmations map[uuid.UUID]models.TransferConfirmation
	audit         []models.AuditLog
	outbox        map[uuid.UUID]models.OutboxEvent
}

func newState() *state {
	return &state{
		pets:          make(map[uuid.UUID]models.RehomingPet),
		requests:      make(map[uuid.UUID]models.AdoptionRequest),
		transactions:  make(map[uuid.UUID]models.RehomingTransaction),
		disputes:      make(map[uuid.UUID]models.Dispute),
		confirmations: make(map[uuid.UUID]models.TransferConfirmation),
		outbox:        make(map[uuid.UUID]models.OutboxEvent),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.pets {
		c.pets[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.disputes {
		c.disputes[k] = v
	}
	for k, v := range s.confirmations {
		c.confirmations[k] = v
	}
	c.audit = append([]models.AuditLog(nil), s.audit...)
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

// Store is safe for concurrent use. Atomic holds the store-wide lock for the
// duration of fn and restores a snapshot if fn fails.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
	now  func() time.Time
}

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState(), now: time.Now}
}

// WithClock replaces the timestamp source. Tests use it to age records.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Atomic(ctx context.Context, fn func(store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&Store{mu: s.mu, st: s.st, inTx: true, now: s.now}); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

func (s *Store) Pets() store.PetStore                   { return petStore{s} }
func (s *Store) Requests() store.RequestStore           { return requestStore{s} }
func (s *Store) Transactions() store.TransactionStore   { return transactionStore{s} }
func (s *Store) Disputes() store.DisputeStore           { return disputeStore{s} }
func (s *Store) Confirmations() store.ConfirmationStore { return confirmationStore{s} }
func (s *Store) Audit() store.AuditStore                { return auditStore{s} }
func (s *Store) Outbox() store.OutboxStore              { return outboxStore{s} }

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// byCreated orders items by creation time, ties broken by id so pages are stable.
func byCreated[T any](items []T, key func(T) (time.Time, uuid.UUID), oldestFirst bool) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !oldestFirst {
			ti, tj = tj, ti
			idi, idj = idj, idi
		}
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi.String() < idj.String()
	})
}

func newestFirst[T any](items []T, key func(T) (time.Time, uuid.UUID)) {
	byCreated(items, key, false)
}

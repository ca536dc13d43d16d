package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

type confirmationStore struct{ s *Store }

func (r confirmationStore) Create(ctx context.Context, c *models.TransferConfirmation) error {
	defer r.s.lock()()

	if _, ok := r.s.st.confirmations[c.TransactionID]; ok {
		return store.ErrDuplicate
	}
	c.UpdatedAt = r.s.now()
	r.s.st.confirmations[c.TransactionID] = *c
	return nil
}

func (r confirmationStore) Get(ctx context.Context, transactionID uuid.UUID) (*models.TransferConfirmation, error) {
	defer r.s.lock()()

	c, ok := r.s.st.confirmations[transactionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r confirmationStore) Confirm(ctx context.Context, transactionID uuid.UUID, role models.PartyRole, at time.Time) (*models.TransferConfirmation, bool, error) {
	defer r.s.lock()()

	c, ok := r.s.st.confirmations[transactionID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if c.Confirmed(role) {
		return &c, false, nil
	}
	switch role {
	case models.PartyOwner:
		c.OwnerConfirmedAt = &at
	case models.PartyAdopter:
		c.AdopterConfirmedAt = &at
	}
	c.UpdatedAt = r.s.now()
	r.s.st.confirmations[transactionID] = c
	return &c, true, nil
}

package services

import (
	"context"
	"testing"

	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveTransaction(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, h *harness) *models.RehomingTransaction
		to     models.TransactionStatus
		escrow models.EscrowStatus
		reason string
	}{
		{
			name: "pending to held",
			setup: func(t *testing.T, h *harness) *models.RehomingTransaction {
				txn, _, _ := h.pendingTransaction(t, 1000)
				return txn
			},
			to:     models.TransactionStatusHeld,
			escrow: models.EscrowStatusHeld,
		},
		{
			name: "pending straight to completed",
			setup: func(t *testing.T, h *harness) *models.RehomingTransaction {
				txn, _, _ := h.pendingTransaction(t, 1000)
				return txn
			},
			to:     models.TransactionStatusCompleted,
			escrow: models.EscrowStatusReleased,
			reason: "invalid_transition",
		},
		{
			name: "held escrow back to none",
			setup: func(t *testing.T, h *harness) *models.RehomingTransaction {
				txn, _, _ := h.heldTransaction(t, 1000)
				return txn
			},
			to:     models.TransactionStatusHeld,
			escrow: models.EscrowStatusNone,
			reason: "invalid_escrow_transition",
		},
		{
			name: "refunded released afterwards",
			setup: func(t *testing.T, h *harness) *models.RehomingTransaction {
				txn, _, _ := h.heldTransaction(t, 1000)
				_, err := h.escrow.Refund(context.Background(), txn.ID, "changed my mind", SystemActor())
				require.NoError(t, err)
				return txn
			},
			to:     models.TransactionStatusCompleted,
			escrow: models.EscrowStatusReleased,
			reason: "invalid_transition",
		},
		{
			name: "failed payment held",
			setup: func(t *testing.T, h *harness) *models.RehomingTransaction {
				txn, _, _ := h.pendingTransaction(t, 1000)
				_, err := h.escrow.FailStale(context.Background(), txn.ID)
				require.NoError(t, err)
				return txn
			},
			to:     models.TransactionStatusHeld,
			escrow: models.EscrowStatusHeld,
			reason: "invalid_transition",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			before := h.transaction(t, tt.setup(t, h).ID)

			err := h.store.Atomic(ctx, func(tx store.Store) error {
				cur := *before
				return moveTransaction(ctx, tx, &cur, tt.to, tt.escrow)
			})
			after := h.transaction(t, before.ID)

			if tt.reason != "" {
				assert.True(t, apperr.Is(err, apperr.InvalidState))
				assert.Equal(t, tt.reason, apperr.ReasonOf(err))
				assert.Equal(t, before.Version, after.Version)
				assert.Equal(t, before.Status, after.Status)
				assert.Equal(t, before.EscrowStatus, after.EscrowStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, after.Status)
			assert.Equal(t, tt.escrow, after.EscrowStatus)
			assert.Equal(t, before.Version+1, after.Version)
		})
	}
}

func TestMoveTransaction_StaleVersion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, _, _ := h.pendingTransaction(t, 1000)
	stale := *h.transaction(t, txn.ID)

	_, err := h.escrow.FailStale(ctx, txn.ID)
	require.NoError(t, err)

	err = h.store.Atomic(ctx, func(tx store.Store) error {
		return moveTransaction(ctx, tx, &stale, models.TransactionStatusHeld, models.EscrowStatusHeld)
	})
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, models.TransactionStatusFailed, h.transaction(t, txn.ID).Status)
}

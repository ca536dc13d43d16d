package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func at(d time.Duration) func() time.Time {
	return func() time.Time { return time.Now().Add(d) }
}

func TestSweeper_NothingToDo(t *testing.T) {
	h := newHarness(t)
	h.acceptedRequest(t, 1000)
	h.heldTransaction(t, 1000)

	assert.Equal(t, SweepReport{}, h.sweeper.SweepOnce(context.Background()))
}

func TestSweeper_ExpiresUnpaidRequests(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, paid, _, _ := h.acceptedRequest(t, 1000)
	_, free, _, _ := h.acceptedRequest(t, 0)

	report := h.sweeper.WithClock(at(15 * 24 * time.Hour)).SweepOnce(ctx)
	assert.Equal(t, 2, report.Expired)
	assert.Equal(t, models.RequestStatusCancelled, h.request(t, paid.ID).Status)
	assert.Equal(t, models.RequestStatusCancelled, h.request(t, free.ID).Status)
}

func TestSweeper_FailsStalePendingPayments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	stuck, req, adopter := h.pendingTransaction(t, 1000)

	report := h.sweeper.WithClock(at(time.Hour)).SweepOnce(ctx)
	assert.Equal(t, 1, report.FailedPayments)
	assert.Equal(t, models.TransactionStatusFailed, h.transaction(t, stuck.ID).Status)
	assert.Equal(t, models.RequestStatusPaymentPending, h.request(t, req.ID).Status)

	txn, err := h.escrow.InitiatePayment(ctx, req.ID, adopter, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusHeld, txn.Status)
}

func TestSweeper_RefundsUnconfirmedTransfer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, owner, _ := h.heldTransaction(t, 1000)
	_, err := h.transfer.Confirm(ctx, txn.ID, owner, "")
	require.NoError(t, err)

	assert.Equal(t, SweepReport{}, h.sweeper.WithClock(at(29*24*time.Hour)).SweepOnce(ctx))

	report := h.sweeper.WithClock(at(31 * 24 * time.Hour)).SweepOnce(ctx)
	assert.Equal(t, 1, report.Refunded)
	cur := h.transaction(t, txn.ID)
	assert.Equal(t, models.EscrowStatusRefunded, cur.EscrowStatus)
	require.NotNil(t, cur.RefundReason)
	assert.Equal(t, "transfer_timeout", *cur.RefundReason)
}

func TestSweeper_LeavesOpenDisputesAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, _, adopter := h.heldTransaction(t, 1000)
	_, err := h.disputes.Open(ctx, txn.ID, adopter, "waiting on the vet report", nil)
	require.NoError(t, err)

	report := h.sweeper.WithClock(at(60 * 24 * time.Hour)).SweepOnce(ctx)
	assert.Equal(t, 0, report.Refunded)
	assert.Equal(t, models.EscrowStatusHeld, h.transaction(t, txn.ID).EscrowStatus)
}

// brokenUpdates is a store whose transaction updates always fail.
type brokenUpdates struct{ store.Store }

func (b brokenUpdates) Transactions() store.TransactionStore {
	return brokenTransactionUpdates{b.Store.Transactions()}
}

func (b brokenUpdates) Atomic(ctx context.Context, fn func(store.Store) error) error {
	return b.Store.Atomic(ctx, func(tx store.Store) error { return fn(brokenUpdates{tx}) })
}

type brokenTransactionUpdates struct{ store.TransactionStore }

func (brokenTransactionUpdates) Update(ctx context.Context, t *models.RehomingTransaction) error {
	return errors.New("connection reset")
}

func TestSweeper_CountsFailedStalePaymentWrites(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	stuck, _, _ := h.pendingTransaction(t, 1000)

	broken := brokenUpdates{h.store}
	escrow := NewEscrowService(broken, h.gateway, h.cfg, zap.NewNop())
	sweeper := NewSweeper(broken, h.requests, escrow, h.cfg, zap.NewNop()).WithClock(at(time.Hour))

	failed, err := escrow.FailStale(ctx, stuck.ID)
	assert.Error(t, err)
	assert.False(t, failed)

	report := sweeper.SweepOnce(ctx)
	assert.Equal(t, 0, report.FailedPayments)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, models.TransactionStatusPending, h.transaction(t, stuck.ID).Status)

	report = h.sweeper.WithClock(at(time.Hour)).SweepOnce(ctx)
	assert.Equal(t, 1, report.FailedPayments)
	assert.Equal(t, 0, report.Errors)
}

func TestSweeper_ReachesOldestHeldBeyondOnePage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	due, _, _ := h.heldTransaction(t, 1000)

	h.store.WithClock(at(20 * 24 * time.Hour))
	h.escrow.now = at(20 * 24 * time.Hour)
	for i := 0; i < sweepBatch; i++ {
		h.heldTransaction(t, 1000)
	}

	report := h.sweeper.WithClock(at(31 * 24 * time.Hour)).SweepOnce(ctx)
	assert.Equal(t, 1, report.Refunded)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, models.EscrowStatusRefunded, h.transaction(t, due.ID).EscrowStatus)
}

func TestSweeper_ReachesDueRowBehindFullPage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.escrow.now = at(20 * 24 * time.Hour)
	waiting := make([]*models.RehomingTransaction, 0, sweepBatch)
	for i := 0; i < sweepBatch; i++ {
		txn, _, _ := h.heldTransaction(t, 1000)
		waiting = append(waiting, txn)
	}

	h.store.WithClock(at(time.Hour))
	h.escrow.now = time.Now
	due, _, _ := h.heldTransaction(t, 1000)

	report := h.sweeper.WithClock(at(31 * 24 * time.Hour)).SweepOnce(ctx)
	assert.Equal(t, 1, report.Refunded)
	assert.Equal(t, models.EscrowStatusRefunded, h.transaction(t, due.ID).EscrowStatus)
	for _, txn := range waiting {
		assert.Equal(t, models.EscrowStatusHeld, h.transaction(t, txn.ID).EscrowStatus)
	}
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPaidAdoption_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pet, req, owner, adopter := h.acceptedRequest(t, 1000)

	txn, err := h.escrow.InitiatePayment(ctx, req.ID, adopter, 1000, "card_4242")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusHeld, txn.Status)
	assert.Equal(t, models.EscrowStatusHeld, txn.EscrowStatus)
	assert.Equal(t, int64(50), txn.PlatformFee)
	assert.Equal(t, int64(950), txn.NetAmount)
	assert.Equal(t, "USD", txn.Currency)
	assert.Equal(t, models.RequestStatusPetTransferPending, h.request(t, req.ID).Status)

	res, err := h.transfer.Confirm(ctx, txn.ID, adopter, "")
	require.NoError(t, err)
	assert.False(t, res.Released)
	assert.Equal(t, models.RequestStatusPetTransferPending, h.request(t, req.ID).Status)

	res, err = h.transfer.Confirm(ctx, txn.ID, owner, models.PartyOwner)
	require.NoError(t, err)
	assert.True(t, res.Released)
	assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
	assert.Equal(t, models.EscrowStatusReleased, res.Transaction.EscrowStatus)
	assert.NotNil(t, res.Transaction.ReleasedAt)

	assert.Equal(t, models.RequestStatusCompleted, h.request(t, req.ID).Status)
	assert.True(t, h.pet(t, pet.ID).IsAdopted)
	assert.Equal(t, 1, h.gateway.Moved(payments.OpCapture))
	assert.Equal(t, 1, h.gateway.Moved(payments.OpPayout))
	assert.Equal(t, 0, h.gateway.Moved(payments.OpRefund))

	types := h.pendingEventTypes(t)
	for _, want := range []string{events.EventPaymentHeld, events.EventTransferConfirmed, events.EventEscrowReleased, events.EventAdoptionCompleted} {
		assert.Contains(t, types, want)
	}
}

func TestInitiatePayment_Guards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, req, owner, adopter := h.acceptedRequest(t, 1000)

	_, err := h.escrow.InitiatePayment(ctx, req.ID, owner, 1000, "")
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = h.escrow.InitiatePayment(ctx, req.ID, adopter, 999, "")
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, "amount_mismatch", apperr.ReasonOf(err))

	_, freeReq, _, freeAdopter := h.acceptedRequest(t, 0)
	_, err = h.escrow.InitiatePayment(ctx, freeReq.ID, freeAdopter, 0, "")
	assert.True(t, apperr.Is(err, apperr.InvalidState))

	_, err = h.escrow.InitiatePayment(ctx, req.ID, adopter, 1000, "")
	require.NoError(t, err)
	_, err = h.escrow.InitiatePayment(ctx, req.ID, adopter, 1000, "")
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, 1, h.gateway.Moved(payments.OpCapture))
}

func TestInitiatePayment_GatewayFailureKeepsRequestPayable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, req, _, adopter := h.acceptedRequest(t, 1000)

	h.gateway.FailNext(payments.OpCapture, errors.New("gateway timeout"))
	_, err := h.escrow.InitiatePayment(ctx, req.ID, adopter, 1000, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.UpstreamFailure))
	assert.Equal(t, models.RequestStatusPaymentPending, h.request(t, req.ID).Status)

	failed, err := h.escrow.ListMine(ctx, adopter, []models.TransactionStatus{models.TransactionStatusFailed}, 0, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].FailureReason)
	assert.Contains(t, h.pendingEventTypes(t), events.EventPaymentFailed)

	txn, err := h.escrow.InitiatePayment(ctx, req.ID, adopter, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusHeld, txn.Status)
}

func TestRelease_RequiresBothConfirmations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, _, adopter := h.heldTransaction(t, 1000)

	_, err := h.escrow.Release(ctx, txn.ID, UserActor(adopter))
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = h.escrow.Release(ctx, txn.ID, SystemActor())
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, "transfer_not_confirmed", apperr.ReasonOf(err))
	assert.Equal(t, 0, h.gateway.Calls(payments.OpPayout))
}

func TestRelease_BlockedWhileDisputeOpen(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, owner, adopter := h.heldTransaction(t, 1000)

	_, err := h.transfer.Confirm(ctx, txn.ID, owner, "")
	require.NoError(t, err)
	_, err = h.disputes.Open(ctx, txn.ID, adopter, "the cat never arrived", nil)
	require.NoError(t, err)

	res, err := h.transfer.Confirm(ctx, txn.ID, adopter, "")
	require.NoError(t, err)
	assert.False(t, res.Released)

	_, err = h.escrow.Release(ctx, txn.ID, SystemActor())
	assert.True(t, apperr.Is(err, apperr.Blocked))
	_, err = h.escrow.Refund(ctx, txn.ID, "", SystemActor())
	assert.True(t, apperr.Is(err, apperr.Blocked))
	assert.Equal(t, 0, h.gateway.Calls(payments.OpPayout))
	assert.Equal(t, 0, h.gateway.Calls(payments.OpRefund))
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, owner, adopter := h.heldTransaction(t, 1000)
	_, err := h.transfer.Confirm(ctx, txn.ID, owner, "")
	require.NoError(t, err)
	_, err = h.transfer.Confirm(ctx, txn.ID, adopter, "")
	require.NoError(t, err)

	again, err := h.escrow.Release(ctx, txn.ID, SystemActor())
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, again.EscrowStatus)
	assert.Equal(t, 1, h.gateway.Calls(payments.OpPayout))

	_, err = h.escrow.Refund(ctx, txn.ID, "", SystemActor())
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, "already_released", apperr.ReasonOf(err))
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, _, _ := h.heldTransaction(t, 1000)

	refunded, err := h.escrow.Refund(ctx, txn.ID, "owner changed their mind", ArbiterActor(nil))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, refunded.Status)
	assert.Equal(t, models.EscrowStatusRefunded, refunded.EscrowStatus)
	require.NotNil(t, refunded.RefundReason)
	assert.Equal(t, models.RequestStatusCancelled, h.request(t, txn.AdoptionRequestID).Status)
	assert.False(t, h.pet(t, txn.PetID).IsAdopted)

	again, err := h.escrow.Refund(ctx, txn.ID, "", ArbiterActor(nil))
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, again.EscrowStatus)
	assert.Equal(t, 1, h.gateway.Calls(payments.OpRefund))

	_, err = h.escrow.Release(ctx, txn.ID, SystemActor())
	assert.True(t, apperr.Is(err, apperr.InvalidState))
}

func TestReleaseAndRefundAreExclusive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, _, _ := h.heldTransaction(t, 1000)

	// Set both flags directly so nothing triggers a release yet.
	_, _, err := h.store.Confirmations().Confirm(ctx, txn.ID, models.PartyOwner, h.escrow.now())
	require.NoError(t, err)
	_, _, err = h.store.Confirmations().Confirm(ctx, txn.ID, models.PartyAdopter, h.escrow.now())
	require.NoError(t, err)

	var releaseErr, refundErr error
	var g errgroup.Group
	g.Go(func() error {
		_, releaseErr = h.escrow.Release(ctx, txn.ID, SystemActor())
		return nil
	})
	g.Go(func() error {
		_, refundErr = h.escrow.Refund(ctx, txn.ID, "timeout", SystemActor())
		return nil
	})
	require.NoError(t, g.Wait())

	assert.True(t, (releaseErr == nil) != (refundErr == nil), "release=%v refund=%v", releaseErr, refundErr)
	final := h.transaction(t, txn.ID)
	if releaseErr == nil {
		assert.Equal(t, models.EscrowStatusReleased, final.EscrowStatus)
	} else {
		assert.Equal(t, models.EscrowStatusRefunded, final.EscrowStatus)
	}
	assert.Equal(t, 1, h.gateway.Moved(payments.OpPayout)+h.gateway.Moved(payments.OpRefund))
}

func TestRelease_GatewayFailureKeepsClaim(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, owner, adopter := h.heldTransaction(t, 1000)
	_, err := h.transfer.Confirm(ctx, txn.ID, owner, "")
	require.NoError(t, err)

	h.gateway.FailNext(payments.OpPayout, errors.New("connection reset"))
	res, err := h.transfer.Confirm(ctx, txn.ID, adopter, "")
	require.NoError(t, err)
	assert.False(t, res.Released)

	cur := h.transaction(t, txn.ID)
	assert.Equal(t, models.EscrowStatusHeld, cur.EscrowStatus)
	assert.Equal(t, models.SettlementRelease, cur.Settlement)

	_, err = h.escrow.Refund(ctx, txn.ID, "", SystemActor())
	assert.True(t, apperr.Is(err, apperr.Conflict))

	_, err = h.disputes.Open(ctx, txn.ID, adopter, "too late", nil)
	assert.True(t, apperr.Is(err, apperr.Blocked))

	report := h.sweeper.SweepOnce(ctx)
	assert.Equal(t, 1, report.Released)
	assert.Equal(t, models.EscrowStatusReleased, h.transaction(t, txn.ID).EscrowStatus)
	assert.Equal(t, 1, h.gateway.Moved(payments.OpPayout))
}

func TestGetTransaction_PartiesOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	txn, owner, adopter := h.heldTransaction(t, 1000)

	for _, actor := range []Actor{UserActor(owner), UserActor(adopter), ArbiterActor(nil)} {
		got, err := h.escrow.Get(ctx, txn.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, txn.ID, got.ID)
	}
	_, err := h.escrow.Get(ctx, txn.ID, UserActor(uuid.New()))
	assert.True(t, apperr.Is(err, apperr.Forbidden))
	_, err = h.escrow.Get(ctx, uuid.New(), UserActor(owner))
	assert.True(t, apperr.Is(err, apperr.NotFound))

	history, err := h.escrow.History(ctx, txn.ID, UserActor(owner))
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

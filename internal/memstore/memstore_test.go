package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPet(t *testing.T, s *Store) *models.RehomingPet {
	t.Helper()
	p := &models.RehomingPet{OwnerID: uuid.New(), Name: "Rex", Species: "dog", AdoptionType: models.AdoptionTypeFree}
	require.NoError(t, s.Pets().Create(context.Background(), p))
	return p
}

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	pet := seedPet(t, s)

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx store.Store) error {
		require.NoError(t, tx.Pets().MarkAdopted(ctx, pet.ID))
		require.NoError(t, tx.Requests().Create(ctx, &models.AdoptionRequest{PetID: pet.ID, AdopterID: uuid.New()}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Pets().GetByID(ctx, pet.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAdopted)

	reqs, err := s.Requests().List(ctx, store.RequestFilter{PetID: &pet.ID})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestAtomicNestedCallsJoin(t *testing.T) {
	ctx := context.Background()
	s := New()
	pet := seedPet(t, s)

	err := s.Atomic(ctx, func(tx store.Store) error {
		return tx.Atomic(ctx, func(inner store.Store) error {
			return inner.Pets().MarkAdopted(ctx, pet.ID)
		})
	})
	require.NoError(t, err)

	got, err := s.Pets().GetByID(ctx, pet.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdopted)
}

func TestRequestVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	pet := seedPet(t, s)

	req := &models.AdoptionRequest{PetID: pet.ID, AdopterID: uuid.New()}
	require.NoError(t, s.Requests().Create(ctx, req))
	stale := *req

	require.NoError(t, s.Requests().UpdateStatus(ctx, req, models.RequestStatusAccepted))
	assert.Equal(t, int64(2), req.Version)
	assert.NotNil(t, req.DecidedAt)

	err := s.Requests().UpdateStatus(ctx, &stale, models.RequestStatusRejected)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
}

func TestRequestUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	pet := seedPet(t, s)
	adopter := uuid.New()

	first := &models.AdoptionRequest{PetID: pet.ID, AdopterID: adopter}
	require.NoError(t, s.Requests().Create(ctx, first))

	dup := &models.AdoptionRequest{PetID: pet.ID, AdopterID: adopter}
	assert.ErrorIs(t, s.Requests().Create(ctx, dup), store.ErrDuplicate)

	other := &models.AdoptionRequest{PetID: pet.ID, AdopterID: uuid.New()}
	require.NoError(t, s.Requests().Create(ctx, other))

	require.NoError(t, s.Requests().UpdateStatus(ctx, first, models.RequestStatusAccepted))
	assert.ErrorIs(t, s.Requests().UpdateStatus(ctx, other, models.RequestStatusAccepted), store.ErrDuplicate)

	// once the first request ends, the adopter may apply again
	require.NoError(t, s.Requests().UpdateStatus(ctx, first, models.RequestStatusCancelled))
	require.NoError(t, s.Requests().Create(ctx, &models.AdoptionRequest{PetID: pet.ID, AdopterID: adopter}))
}

func TestOneLiveTransactionPerRequest(t *testing.T) {
	ctx := context.Background()
	s := New()
	reqID := uuid.New()

	first := &models.RehomingTransaction{AdoptionRequestID: reqID, Status: models.TransactionStatusPending}
	require.NoError(t, s.Transactions().Create(ctx, first))
	assert.ErrorIs(t, s.Transactions().Create(ctx, &models.RehomingTransaction{AdoptionRequestID: reqID, Status: models.TransactionStatusPending}), store.ErrDuplicate)

	first.Status = models.TransactionStatusFailed
	require.NoError(t, s.Transactions().Update(ctx, first))
	require.NoError(t, s.Transactions().Create(ctx, &models.RehomingTransaction{AdoptionRequestID: reqID, Status: models.TransactionStatusPending}))
}

func TestTransactionUpdateKeepsAmounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	txn := &models.RehomingTransaction{
		AdoptionRequestID: uuid.New(),
		PetID:             uuid.New(),
		FromUser:          uuid.New(),
		ToUser:            uuid.New(),
		Amount:            1000,
		PlatformFee:       50,
		NetAmount:         950,
		Currency:          "USD",
		FeeBPS:            500,
		Status:            models.TransactionStatusPending,
	}
	require.NoError(t, s.Transactions().Create(ctx, txn))

	edit := *txn
	edit.Amount, edit.PlatformFee, edit.NetAmount = 1, 0, 1
	edit.Currency = "EUR"
	edit.Status = models.TransactionStatusHeld
	require.NoError(t, s.Transactions().Update(ctx, &edit))
	assert.Equal(t, int64(1000), edit.Amount)
	assert.Equal(t, int64(2), edit.Version)

	got, err := s.Transactions().GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusHeld, got.Status)
	assert.Equal(t, int64(1000), got.Amount)
	assert.Equal(t, int64(50), got.PlatformFee)
	assert.Equal(t, int64(950), got.NetAmount)
	assert.Equal(t, "USD", got.Currency)
}

func TestListPaging(t *testing.T) {
	ctx := context.Background()
	start := time.Now()
	tick := 0
	s := New().WithClock(func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Minute)
	})

	var ids []uuid.UUID
	for i := 0; i < store.MaxLimit+5; i++ {
		txn := &models.RehomingTransaction{AdoptionRequestID: uuid.New(), Status: models.TransactionStatusHeld}
		require.NoError(t, s.Transactions().Create(ctx, txn))
		ids = append(ids, txn.ID)
	}

	got, err := s.Transactions().List(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, got, store.DefaultLimit)
	assert.Equal(t, ids[len(ids)-1], got[0].ID)

	got, err = s.Transactions().List(ctx, store.TransactionFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, got, store.MaxLimit)

	got, err = s.Transactions().List(ctx, store.TransactionFilter{OldestFirst: true, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[1], got[0].ID)
	assert.Equal(t, ids[2], got[1].ID)
}

func TestConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	txID := uuid.New()
	require.NoError(t, s.Confirmations().Create(ctx, &models.TransferConfirmation{TransactionID: txID}))

	c, changed, err := s.Confirmations().Confirm(ctx, txID, models.PartyOwner, s.now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, c.Complete())

	_, changed, err = s.Confirmations().Confirm(ctx, txID, models.PartyOwner, s.now())
	require.NoError(t, err)
	assert.False(t, changed)

	c, changed, err = s.Confirmations().Confirm(ctx, txID, models.PartyAdopter, s.now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.Complete())
}

func TestOutboxParksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := &models.OutboxEvent{EventType: "x"}
	require.NoError(t, s.Outbox().Enqueue(ctx, e))

	require.NoError(t, s.Outbox().MarkFailed(ctx, e.ID, "down", 2))
	pending, err := s.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.Outbox().MarkFailed(ctx, e.ID, "down", 2))
	pending, err = s.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

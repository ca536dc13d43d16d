package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/rbac"
	"github.com/pet-rehoming/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCreateRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner, adopter := uuid.New(), uuid.New()
	pet := h.listPet(t, owner, 0)

	req, err := h.requests.Create(ctx, pet.ID, adopter, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "hello", req.Message)
	assert.Contains(t, h.pendingEventTypes(t), events.EventAdoptionRequested)

	_, err = h.requests.Create(ctx, pet.ID, adopter, "again")
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, "duplicate_request", apperr.ReasonOf(err))

	_, err = h.requests.Create(ctx, pet.ID, owner, "mine")
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = h.requests.Create(ctx, uuid.New(), adopter, "")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCreateRequest_DeletedOrAdoptedPet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := uuid.New()

	deleted := h.listPet(t, owner, 0)
	require.NoError(t, h.listings.Delete(ctx, deleted.ID, owner))
	_, err := h.requests.Create(ctx, deleted.ID, uuid.New(), "")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	adopted := h.listPet(t, owner, 0)
	require.NoError(t, h.store.Pets().MarkAdopted(ctx, adopted.ID))
	_, err = h.requests.Create(ctx, adopted.ID, uuid.New(), "")
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, "pet_adopted", apperr.ReasonOf(err))
}

func TestRespond_FreeAndPaid(t *testing.T) {
	h := newHarness(t)

	_, free, _, _ := h.acceptedRequest(t, 0)
	assert.Equal(t, models.RequestStatusAccepted, free.Status)
	assert.NotNil(t, free.DecidedAt)

	_, paid, _, _ := h.acceptedRequest(t, 1000)
	assert.Equal(t, models.RequestStatusPaymentPending, paid.Status)
}

func TestRespond_Errors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner, adopter := uuid.New(), uuid.New()
	pet := h.listPet(t, owner, 0)
	req, err := h.requests.Create(ctx, pet.ID, adopter, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		caller   uuid.UUID
		decision models.Decision
		kind     apperr.Kind
	}{
		{"stranger", uuid.New(), models.DecisionAccept, apperr.Forbidden},
		{"adopter answers own request", adopter, models.DecisionAccept, apperr.Forbidden},
		{"unknown decision", owner, models.Decision("maybe"), apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.requests.Respond(ctx, req.ID, tt.caller, tt.decision)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}

	_, err = h.requests.Respond(ctx, req.ID, owner, models.DecisionReject)
	require.NoError(t, err)
	_, err = h.requests.Respond(ctx, req.ID, owner, models.DecisionAccept)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, "request_not_pending", apperr.ReasonOf(err))
}

func TestRespond_SecondAcceptConflicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := uuid.New()
	pet := h.listPet(t, owner, 0)

	first, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
	require.NoError(t, err)
	second, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = h.requests.Respond(ctx, first.ID, owner, models.DecisionAccept)
	require.NoError(t, err)

	_, err = h.requests.Respond(ctx, second.ID, owner, models.DecisionAccept)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, "pet_already_allocated", apperr.ReasonOf(err))
	assert.Equal(t, models.RequestStatusPending, h.request(t, second.ID).Status)
}

func TestRespond_ConcurrentAcceptsAllocateOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := uuid.New()
	pet := h.listPet(t, owner, 1000)

	ids := make([]uuid.UUID, 8)
	for i := range ids {
		req, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
		require.NoError(t, err)
		ids[i] = req.ID
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			_, errs[i] = h.requests.Respond(ctx, id, owner, models.DecisionAccept)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)
	}
	assert.Equal(t, 1, accepted)

	active, err := h.requests.ListForPet(ctx, pet.ID, owner, models.ActiveRequestStatuses, 0, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestRespond_AutoRejectSiblings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cfg.AutoRejectSiblings = true
	owner := uuid.New()
	pet := h.listPet(t, owner, 0)

	first, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
	require.NoError(t, err)
	second, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = h.requests.Respond(ctx, first.ID, owner, models.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, h.request(t, second.ID).Status)
}

func TestRespond_AutoRejectsMoreThanOnePageOfSiblings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cfg.AutoRejectSiblings = true
	owner := uuid.New()
	pet := h.listPet(t, owner, 0)

	first, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
	require.NoError(t, err)
	var siblings []uuid.UUID
	for i := 0; i < store.MaxLimit+10; i++ {
		req, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
		require.NoError(t, err)
		siblings = append(siblings, req.ID)
	}

	_, err = h.requests.Respond(ctx, first.ID, owner, models.DecisionAccept)
	require.NoError(t, err)
	for _, id := range siblings {
		assert.Equal(t, models.RequestStatusRejected, h.request(t, id).Status)
	}
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, req, owner, adopter := h.acceptedRequest(t, 0)

	_, err := h.requests.Withdraw(ctx, req.ID, owner)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	req, err = h.requests.Withdraw(ctx, req.ID, adopter)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, req.Status)

	_, err = h.requests.Withdraw(ctx, req.ID, adopter)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
}

func TestWithdraw_AfterPaymentHeldIsRejected(t *testing.T) {
	h := newHarness(t)
	txn, _, adopter := h.heldTransaction(t, 1000)

	_, err := h.requests.Withdraw(context.Background(), txn.AdoptionRequestID, adopter)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
}

func TestCompleteFreeAdoption(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pet, req, owner, adopter := h.acceptedRequest(t, 0)
	sibling, err := h.requests.Create(ctx, pet.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = h.requests.CompleteFreeAdoption(ctx, req.ID, adopter)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	req, err = h.requests.CompleteFreeAdoption(ctx, req.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, req.Status)
	assert.True(t, h.pet(t, pet.ID).IsAdopted)
	assert.Equal(t, models.RequestStatusRejected, h.request(t, sibling.ID).Status)
	assert.Contains(t, h.pendingEventTypes(t), events.EventAdoptionCompleted)

	_, err = h.requests.Create(ctx, pet.ID, uuid.New(), "")
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestCompleteFreeAdoption_PaidPetRefused(t *testing.T) {
	h := newHarness(t)
	_, req, owner, _ := h.acceptedRequest(t, 500)

	_, err := h.requests.CompleteFreeAdoption(context.Background(), req.ID, owner)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, "not_free_adoption", apperr.ReasonOf(err))
}

func TestListMine(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, req, owner, adopter := h.acceptedRequest(t, 0)

	mine, err := h.requests.ListMine(ctx, adopter, rbac.RoleAdopter, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, req.ID, mine[0].ID)

	received, err := h.requests.ListMine(ctx, owner, rbac.RoleOwner, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, received, 1)

	_, err = h.requests.ListMine(ctx, owner, "arbiter", nil, 0, 0)
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = h.requests.Get(ctx, req.ID, uuid.New())
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/arbitration"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/memstore"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/payments"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	store    *memstore.Store
	gateway  *payments.Sandbox
	desk     *arbitration.ManualDesk
	cfg      *config.Config
	listings *ListingService
	requests *RequestService
	escrow   *EscrowService
	transfer *TransferService
	disputes *DisputeService
	sweeper  *Sweeper
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{
		PlatformFeeBPS:    500,
		Currency:          "USD",
		PaymentTimeout:    336 * time.Hour,
		TransferTimeout:   720 * time.Hour,
		StalePaymentAfter: 30 * time.Minute,
	}

	h := &harness{
		store:   memstore.New(),
		gateway: payments.NewSandbox(),
		desk:    arbitration.NewManualDesk(log),
		cfg:     cfg,
	}
	h.listings = NewListingService(h.store, log)
	h.requests = NewRequestService(h.store, cfg, log)
	h.escrow = NewEscrowService(h.store, h.gateway, cfg, log)
	h.transfer = NewTransferService(h.store, h.escrow, log)
	h.disputes = NewDisputeService(h.store, h.escrow, h.desk, log)
	h.sweeper = NewSweeper(h.store, h.requests, h.escrow, cfg, log)
	return h
}

func (h *harness) listPet(t *testing.T, owner uuid.UUID, price int64) *models.RehomingPet {
	t.Helper()
	in := PetInput{Name: "Biscuit", Species: "dog", AdoptionType: models.AdoptionTypeFree}
	if price > 0 {
		in.AdoptionType = models.AdoptionTypePaid
		in.Price = &price
	}
	pet, err := h.listings.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return pet
}

// acceptedRequest lists a pet, requests it and has the owner accept.
func (h *harness) acceptedRequest(t *testing.T, price int64) (pet *models.RehomingPet, req *models.AdoptionRequest, owner, adopter uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	owner, adopter = uuid.New(), uuid.New()
	pet = h.listPet(t, owner, price)

	req, err := h.requests.Create(ctx, pet.ID, adopter, "we have a big garden")
	require.NoError(t, err)
	req, err = h.requests.Respond(ctx, req.ID, owner, models.DecisionAccept)
	require.NoError(t, err)
	return pet, req, owner, adopter
}

// heldTransaction walks a paid adoption up to money held in escrow.
func (h *harness) heldTransaction(t *testing.T, price int64) (txn *models.RehomingTransaction, owner, adopter uuid.UUID) {
	t.Helper()
	_, req, owner, adopter := h.acceptedRequest(t, price)
	txn, err := h.escrow.InitiatePayment(context.Background(), req.ID, adopter, price, "card_4242")
	require.NoError(t, err)
	return txn, owner, adopter
}

// pendingTransaction leaves a transaction in pending, as if the process died
// between the gateway call and the escrow commit.
func (h *harness) pendingTransaction(t *testing.T, price int64) (txn *models.RehomingTransaction, req *models.AdoptionRequest, adopter uuid.UUID) {
	t.Helper()
	_, req, owner, adopter := h.acceptedRequest(t, price)
	fee := price * int64(h.cfg.PlatformFeeBPS) / 10000
	txn = &models.RehomingTransaction{
		AdoptionRequestID: req.ID,
		PetID:             req.PetID,
		FromUser:          adopter,
		ToUser:            owner,
		Amount:            price,
		PlatformFee:       fee,
		NetAmount:         price - fee,
		Currency:          h.cfg.Currency,
		FeeBPS:            h.cfg.PlatformFeeBPS,
		Status:            models.TransactionStatusPending,
		EscrowStatus:      models.EscrowStatusNone,
		DisputeStatus:     models.DisputeStateNone,
	}
	require.NoError(t, h.store.Transactions().Create(context.Background(), txn))
	return txn, req, adopter
}

func (h *harness) request(t *testing.T, id uuid.UUID) *models.AdoptionRequest {
	t.Helper()
	req, err := h.store.Requests().GetByID(context.Background(), id)
	require.NoError(t, err)
	return req
}

func (h *harness) transaction(t *testing.T, id uuid.UUID) *models.RehomingTransaction {
	t.Helper()
	txn, err := h.store.Transactions().GetByID(context.Background(), id)
	require.NoError(t, err)
	return txn
}

func (h *harness) pet(t *testing.T, id uuid.UUID) *models.RehomingPet {
	t.Helper()
	pet, err := h.store.Pets().GetByID(context.Background(), id)
	require.NoError(t, err)
	return pet
}

func (h *harness) pendingEventTypes(t *testing.T) []string {
	t.Helper()
	evs, err := h.store.Outbox().ListPending(context.Background(), 1000)
	require.NoError(t, err)
	types := make([]string, 0, len(evs))
	for _, e := range evs {
		types = append(types, e.EventType)
	}
	return types
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/rbac"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

// TransferService collects the owner's and adopter's confirmation that the pet
// changed hands and triggers the escrow release when both are in.
type TransferService struct {
	store  store.Store
	escrow *EscrowService
	log    *zap.Logger
	now    func() time.Time
}

func NewTransferService(st store.Store, escrow *EscrowService, log *zap.Logger) *TransferService {
	return &TransferService{store: st, escrow: escrow, log: log, now: time.Now}
}

type ConfirmResult struct {
	Confirmation *models.TransferConfirmation `json:"confirmation"`
	Transaction  *models.RehomingTransaction  `json:"transaction"`
	// Released is set when this confirmation completed the pair and the
	// escrow was paid out.
	Released     bool                         `json:"released"`
}

// Confirm records the caller's side of the handover. role may be empty, in
// which case it is derived from the caller's relation to the transaction.
func (s *TransferService) Confirm(ctx context.Context, txID, actorID uuid.UUID, role models.PartyRole) (*ConfirmResult, error) {
	res := &ConfirmResult{}
	var pairCompleted bool

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		txn, err := tx.Transactions().GetByID(ctx, txID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		res.Transaction = txn

		actual, ok := txn.Role(actorID)
		if !ok {
			return apperr.New(apperr.Forbidden, "not_a_party", "not a party to this transaction")
		}
		if role != "" && role != actual {
			return apperr.Newf(apperr.Forbidden, "role_mismatch", "caller is the %s, not the %s", actual, role)
		}
		if err := authorize(string(actual), rbac.PermConfirmTransfer); err != nil {
			return err
		}

		if txn.Status != models.TransactionStatusHeld {
			// Repeats after settlement succeed without changes.
			if c, err := tx.Confirmations().Get(ctx, txID); err == nil && c.Confirmed(actual) {
				res.Confirmation = c
				return nil
			}
			return apperr.Newf(apperr.InvalidState, "transaction_not_held", "transaction is %s", txn.Status)
		}

		c, changed, err := tx.Confirmations().Confirm(ctx, txID, actual, s.now())
		if err != nil {
			return apperr.FromStore(err, "transfer_confirmation")
		}
		res.Confirmation = c
		if !changed {
			return nil
		}

		parties := []uuid.UUID{txn.FromUser, txn.ToUser}
		payload := transactionPayload(txn)
		payload["role"] = string(actual)
		payload["complete"] = c.Complete()
		if err := record(ctx, tx, change{
			actor:      UserActor(actorID),
			action:     "transfer_confirmed",
			entityType: models.EntityTransaction,
			entityID:   txn.ID,
			meta:       map[string]any{"role": string(actual)},
			event:      events.EventTransferConfirmed,
			payload:    payload,
			recipients: parties,
		}); err != nil {
			return err
		}
		if !c.Complete() {
			return nil
		}

		pairCompleted = true
		req, pet, err := lockRequest(ctx, tx, txn.AdoptionRequestID)
		if err != nil {
			return err
		}
		if err := moveRequest(ctx, tx, req, models.RequestStatusPaymentVerified); err != nil {
			return err
		}
		return record(ctx, tx, change{
			actor:      UserActor(actorID),
			action:     "payment_verified",
			entityType: models.EntityAdoptionRequest,
			entityID:   req.ID,
			event:      events.EventRequestStatusChanged,
			payload:    requestPayload(req, pet),
			recipients: parties,
		})
	})
	if err != nil {
		return nil, err
	}
	if !pairCompleted {
		return res, nil
	}

	s.log.Info("transfer confirmed by both parties", zap.String("transaction_id", txID.String()))
	if res.Transaction.DisputeStatus == models.DisputeStateOpen {
		return res, nil
	}
	txn, err := s.escrow.Release(ctx, txID, SystemActor())
	if err != nil {
		// The sweeper retries releases of fully confirmed transactions.
		s.log.Warn("automatic release failed",
			zap.String("transaction_id", txID.String()),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err))
		return res, nil
	}
	res.Transaction = txn
	res.Released = txn.EscrowStatus == models.EscrowStatusReleased
	return res, nil
}

// GetConfirmations returns the handover state to a party or an internal caller.
func (s *TransferService) GetConfirmations(ctx context.Context, txID uuid.UUID, actor Actor) (*models.TransferConfirmation, error) {
	txn, err := s.store.Transactions().GetByID(ctx, txID)
	if err != nil {
		return nil, apperr.FromStore(err, "transaction")
	}
	if err := authorize(transactionRole(txn, actor), rbac.PermViewTransaction); err != nil {
		return nil, err
	}
	c, err := s.store.Confirmations().Get(ctx, txID)
	if err != nil {
		return nil, apperr.FromStore(err, "transfer_confirmation")
	}
	return c, nil
}

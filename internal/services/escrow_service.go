package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/payments"
	"github.com/pet-rehoming/backend/internal/rbac"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

// EscrowService holds adoption fees between the adopter's payment and the
// confirmed handover. Money only moves after a settlement claim has been
// committed, and the local record is only advanced after the gateway agreed.
type EscrowService struct {
	store   store.Store
	gateway payments.Gateway
	locks   keyedMutex
	cfg     *config.Config
	log     *zap.Logger
	now     func() time.Time
}

func NewEscrowService(st store.Store, gateway payments.Gateway, cfg *config.Config, log *zap.Logger) *EscrowService {
	return &EscrowService{
		store:   st,
		gateway: gateway,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// InitiatePayment charges the adopter and parks the money in escrow.
func (s *EscrowService) InitiatePayment(ctx context.Context, requestID, adopterID uuid.UUID, amount int64, payerRef string) (*models.RehomingTransaction, error) {
	unlock := s.locks.Lock("request:" + requestID.String())
	defer unlock()

	var txn *models.RehomingTransaction
	var pet *models.RehomingPet
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		req, p, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		pet = p
		if err := authorize(petRole(nil, req, adopterID), rbac.PermInitiatePayment); err != nil {
			return err
		}
		if req.Status != models.RequestStatusPaymentPending {
			return apperr.Newf(apperr.InvalidState, "request_not_payment_pending", "request is %s, not payment_pending", req.Status)
		}
		if pet.AdoptionType != models.AdoptionTypePaid || pet.Price == nil {
			return apperr.New(apperr.InvalidState, "not_paid_adoption", "pet has no adoption fee")
		}
		if amount != *pet.Price {
			return apperr.Newf(apperr.Validation, "amount_mismatch", "amount must equal the adoption fee of %d", *pet.Price)
		}

		fee, net := models.ComputeFee(amount, s.cfg.PlatformFeeBPS)
		txn = &models.RehomingTransaction{
			AdoptionRequestID: req.ID,
			PetID:             pet.ID,
			FromUser:          req.AdopterID,
			ToUser:            pet.OwnerID,
			Amount:            amount,
			PlatformFee:       fee,
			NetAmount:         net,
			Currency:          s.cfg.Currency,
			FeeBPS:            s.cfg.PlatformFeeBPS,
			Status:            models.TransactionStatusPending,
			EscrowStatus:      models.EscrowStatusNone,
			DisputeStatus:     models.DisputeStateNone,
		}
		if err := tx.Transactions().Create(ctx, txn); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.New(apperr.Conflict, "payment_in_progress", "a payment for this request already exists")
			}
			return apperr.FromStore(err, "transaction")
		}
		return record(ctx, tx, change{
			actor:      UserActor(adopterID),
			action:     "payment_initiated",
			entityType: models.EntityTransaction,
			entityID:   txn.ID,
			meta:       map[string]any{"amount": amount, "platform_fee": fee, "net_amount": net},
		})
	})
	if err != nil {
		return nil, err
	}

	ref, err := s.charge(ctx, txn, payerRef)
	if err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("hold", "upstream_error").Inc()
		s.log.Warn("payment capture failed",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		s.failPending(ctx, txn.ID, err.Error(), pet)
		return nil, apperr.Wrap(apperr.UpstreamFailure, "payment_gateway_failed", err)
	}

	err = s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Transactions().GetByID(ctx, txn.ID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		if cur.Status != models.TransactionStatusPending {
			return apperr.Newf(apperr.InvalidState, "transaction_not_pending", "transaction became %s during capture", cur.Status)
		}
		req, err := tx.Requests().GetByID(ctx, cur.AdoptionRequestID)
		if err != nil {
			return apperr.FromStore(err, "adoption_request")
		}

		now := s.now()
		cur.GatewayRef = &ref
		cur.HeldAt = &now
		if err := moveTransaction(ctx, tx, cur, models.TransactionStatusHeld, models.EscrowStatusHeld); err != nil {
			return err
		}
		if err := moveRequest(ctx, tx, req, models.RequestStatusPetTransferPending); err != nil {
			return err
		}
		if err := tx.Confirmations().Create(ctx, &models.TransferConfirmation{TransactionID: cur.ID}); err != nil {
			return apperr.FromStore(err, "transfer_confirmation")
		}
		txn = cur
		return record(ctx, tx, change{
			actor:      UserActor(adopterID),
			action:     "payment_held",
			entityType: models.EntityTransaction,
			entityID:   cur.ID,
			meta:       map[string]any{"gateway_ref": ref},
			event:      events.EventPaymentHeld,
			payload:    withPet(transactionPayload(cur), pet),
			recipients: []uuid.UUID{cur.FromUser, cur.ToUser},
		})
	})
	if err != nil {
		// Money was captured but the escrow record could not be committed.
		metrics.EscrowOpsTotal.WithLabelValues("hold", "commit_error").Inc()
		s.log.Error("escrow commit failed after capture, refunding",
			zap.String("transaction_id", txn.ID.String()), zap.Error(err))
		bg := context.WithoutCancel(ctx)
		if _, rerr := s.gateway.Refund(bg, ref, txn.Amount, "void:"+txn.ID.String()); rerr != nil {
			s.log.Error("compensating refund failed",
				zap.String("transaction_id", txn.ID.String()),
				zap.String("gateway_ref", ref),
				zap.Error(rerr))
		}
		s.failPending(ctx, txn.ID, "escrow commit failed: "+err.Error(), pet)
		return nil, err
	}

	metrics.EscrowOpsTotal.WithLabelValues("hold", "ok").Inc()
	s.log.Info("payment held in escrow",
		zap.String("transaction_id", txn.ID.String()),
		zap.Int64("amount", txn.Amount),
		zap.Int64("platform_fee", txn.PlatformFee))
	return txn, nil
}

func (s *EscrowService) charge(ctx context.Context, txn *models.RehomingTransaction, payerRef string) (string, error) {
	key := txn.ID.String()
	auth, err := s.gateway.Authorize(ctx, payments.AuthorizeRequest{
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		PayerRef:       payerRef,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"transaction_id": key,
			"request_id":     txn.AdoptionRequestID.String(),
		},
	})
	if err != nil {
		return "", err
	}
	captured, err := s.gateway.Capture(ctx, auth.Ref, txn.Amount, key)
	if err != nil {
		return "", err
	}
	return captured.Ref, nil
}

// failPending marks a pending transaction failed. The request stays
// payment_pending so the adopter can retry. failed is false when the
// transaction had already left pending.
func (s *EscrowService) failPending(ctx context.Context, txID uuid.UUID, reason string, pet *models.RehomingPet) (failed bool, err error) {
	ctx = context.WithoutCancel(ctx)
	err = s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Transactions().GetByID(ctx, txID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		if cur.Status != models.TransactionStatusPending {
			return nil
		}
		cur.FailureReason = &reason
		if err := moveTransaction(ctx, tx, cur, models.TransactionStatusFailed, cur.EscrowStatus); err != nil {
			return err
		}
		failed = true
		return record(ctx, tx, change{
			actor:      SystemActor(),
			action:     "payment_failed",
			entityType: models.EntityTransaction,
			entityID:   cur.ID,
			meta:       map[string]any{"reason": reason},
			event:      events.EventPaymentFailed,
			payload:    withPet(transactionPayload(cur), pet),
			recipients: []uuid.UUID{cur.FromUser},
		})
	})
	if err != nil {
		s.log.Error("failed to mark transaction failed", zap.String("transaction_id", txID.String()), zap.Error(err))
		return false, err
	}
	return failed, nil
}

// FailStale fails a transaction stuck in pending, e.g. after a crash between
// the gateway call and the escrow commit.
func (s *EscrowService) FailStale(ctx context.Context, txID uuid.UUID) (bool, error) {
	return s.failPending(ctx, txID, "payment timed out", nil)
}

// claim takes the settlement claim on a held transaction. done reports that
// the requested settlement already happened.
func (s *EscrowService) claim(ctx context.Context, txID uuid.UUID, want models.Settlement, actor Actor) (txn *models.RehomingTransaction, done bool, err error) {
	err = s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Transactions().GetByID(ctx, txID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		txn = cur

		switch {
		case want == models.SettlementRelease && cur.EscrowStatus == models.EscrowStatusReleased,
			want == models.SettlementRefund && cur.EscrowStatus == models.EscrowStatusRefunded:
			done = true
			return nil
		case want == models.SettlementRefund && cur.EscrowStatus == models.EscrowStatusReleased:
			return apperr.New(apperr.InvalidState, "already_released", "escrow was already released to the owner")
		case want == models.SettlementRelease && cur.EscrowStatus == models.EscrowStatusRefunded:
			return apperr.New(apperr.InvalidState, "already_refunded", "escrow was already refunded to the adopter")
		case cur.Status != models.TransactionStatusHeld || cur.EscrowStatus != models.EscrowStatusHeld:
			return apperr.Newf(apperr.InvalidState, "transaction_not_held", "transaction is %s", cur.Status)
		case cur.DisputeStatus == models.DisputeStateOpen:
			return apperr.New(apperr.Blocked, "dispute_open", "escrow is frozen while a dispute is open")
		case cur.Settlement == want:
			return nil
		case cur.Settlement != models.SettlementNone:
			return apperr.Newf(apperr.Conflict, "settlement_in_progress", "a %s is already in progress", cur.Settlement)
		}

		switch want {
		case models.SettlementRelease:
			if err := s.checkReleasable(ctx, tx, cur); err != nil {
				return err
			}
		case models.SettlementRefund:
			if err := checkRefundable(ctx, tx, cur); err != nil {
				return err
			}
		}

		cur.Settlement = want
		if err := tx.Transactions().Update(ctx, cur); err != nil {
			return apperr.FromStore(err, "transaction")
		}
		return record(ctx, tx, change{
			actor:      actor,
			action:     "settlement_claimed",
			entityType: models.EntityTransaction,
			entityID:   cur.ID,
			meta:       map[string]any{"settlement": string(want)},
		})
	})
	return txn, done, err
}

// checkReleasable requires both handover confirmations, or a dispute decided
// for the owner.
func (s *EscrowService) checkReleasable(ctx context.Context, tx store.Store, txn *models.RehomingTransaction) error {
	if txn.DisputeStatus == models.DisputeStateResolved {
		d, err := tx.Disputes().GetLatestByTransaction(ctx, txn.ID)
		if err != nil {
			return apperr.FromStore(err, "dispute")
		}
		if d.Outcome != nil && *d.Outcome == models.OutcomeFavorOwner {
			return nil
		}
		return apperr.New(apperr.InvalidState, "dispute_favored_adopter", "dispute was resolved for the adopter")
	}
	c, err := tx.Confirmations().Get(ctx, txn.ID)
	if err != nil {
		return apperr.FromStore(err, "transfer_confirmation")
	}
	if !c.Complete() {
		return apperr.New(apperr.InvalidState, "transfer_not_confirmed", "both parties must confirm the handover first")
	}
	return nil
}

// checkRefundable refuses to undo an arbiter's decision for the owner.
func checkRefundable(ctx context.Context, tx store.Store, txn *models.RehomingTransaction) error {
	if txn.DisputeStatus != models.DisputeStateResolved {
		return nil
	}
	d, err := tx.Disputes().GetLatestByTransaction(ctx, txn.ID)
	if err != nil {
		return apperr.FromStore(err, "dispute")
	}
	if d.Outcome != nil && *d.Outcome == models.OutcomeFavorOwner {
		return apperr.New(apperr.InvalidState, "dispute_favored_owner", "dispute was resolved for the owner")
	}
	return nil
}

// Release pays the owner's net amount out of escrow and completes the adoption.
// Releasing an already released transaction returns it unchanged.
func (s *EscrowService) Release(ctx context.Context, txID uuid.UUID, actor Actor) (*models.RehomingTransaction, error) {
	if err := authorize(actor.internalRole(), rbac.PermReleaseEscrow); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(txID.String())
	defer unlock()

	txn, done, err := s.claim(ctx, txID, models.SettlementRelease, actor)
	if err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("release", string(apperr.KindOf(err))).Inc()
		return nil, err
	}
	if done {
		return txn, nil
	}

	payout, err := s.gateway.Payout(ctx, payments.PayoutRequest{
		SourceRef:      derefString(txn.GatewayRef),
		PayeeID:        txn.ToUser,
		Amount:         txn.NetAmount,
		Currency:       txn.Currency,
		IdempotencyKey: "release:" + txn.ID.String(),
	})
	if err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("release", "upstream_error").Inc()
		s.log.Warn("payout failed, release will be retried",
			zap.String("transaction_id", txID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.UpstreamFailure, "payment_gateway_failed", err)
	}

	err = s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Transactions().GetByID(ctx, txID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		if cur.EscrowStatus == models.EscrowStatusReleased {
			txn = cur
			return nil
		}
		req, pet, err := lockRequest(ctx, tx, cur.AdoptionRequestID)
		if err != nil {
			return err
		}

		now := s.now()
		cur.ReleasedAt = &now
		if err := moveTransaction(ctx, tx, cur, models.TransactionStatusCompleted, models.EscrowStatusReleased); err != nil {
			return err
		}
		if err := moveRequest(ctx, tx, req, models.RequestStatusCompleted); err != nil {
			return err
		}
		if err := tx.Pets().MarkAdopted(ctx, pet.ID); err != nil {
			return apperr.FromStore(err, "pet")
		}
		txn = cur

		parties := []uuid.UUID{cur.FromUser, cur.ToUser}
		if err := record(ctx, tx, change{
			actor:      actor,
			action:     "escrow_released",
			entityType: models.EntityTransaction,
			entityID:   cur.ID,
			meta:       map[string]any{"payout_ref": payout.Ref, "net_amount": cur.NetAmount, "platform_fee": cur.PlatformFee},
			event:      events.EventEscrowReleased,
			payload:    withPet(transactionPayload(cur), pet),
			recipients: parties,
		}); err != nil {
			return err
		}
		if err := record(ctx, tx, change{
			actor:      actor,
			action:     "adoption_completed",
			entityType: models.EntityAdoptionRequest,
			entityID:   req.ID,
			event:      events.EventAdoptionCompleted,
			payload:    requestPayload(req, pet),
			recipients: parties,
		}); err != nil {
			return err
		}
		return rejectPendingSiblings(ctx, tx, pet, req.ID, actor, "pet was adopted")
	})
	if err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("release", "commit_error").Inc()
		s.log.Error("release commit failed after payout, will be retried",
			zap.String("transaction_id", txID.String()), zap.Error(err))
		return nil, err
	}

	metrics.EscrowOpsTotal.WithLabelValues("release", "ok").Inc()
	s.log.Info("escrow released",
		zap.String("transaction_id", txID.String()),
		zap.Int64("net_amount", txn.NetAmount))
	return txn, nil
}

// Refund returns the full amount to the adopter and cancels the request.
// Refunding an already refunded transaction returns it unchanged.
func (s *EscrowService) Refund(ctx context.Context, txID uuid.UUID, reason string, actor Actor) (*models.RehomingTransaction, error) {
	if err := authorize(actor.internalRole(), rbac.PermRefundEscrow); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(txID.String())
	defer unlock()

	txn, done, err := s.claim(ctx, txID, models.SettlementRefund, actor)
	if err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("refund", string(apperr.KindOf(err))).Inc()
		return nil, err
	}
	if done {
		return txn, nil
	}

	refund, err := s.gateway.Refund(ctx, derefString(txn.GatewayRef), txn.Amount, "refund:"+txn.ID.String())
	if err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("refund", "upstream_error").Inc()
		s.log.Warn("refund failed, will be retried",
			zap.String("transaction_id", txID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.UpstreamFailure, "payment_gateway_failed", err)
	}

	err = s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Transactions().GetByID(ctx, txID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		if cur.EscrowStatus == models.EscrowStatusRefunded {
			txn = cur
			return nil
		}
		req, pet, err := lockRequest(ctx, tx, cur.AdoptionRequestID)
		if err != nil {
			return err
		}

		now := s.now()
		cur.RefundedAt = &now
		if reason != "" {
			cur.RefundReason = &reason
		}
		if err := moveTransaction(ctx, tx, cur, models.TransactionStatusRefunded, models.EscrowStatusRefunded); err != nil {
			return err
		}
		if err := moveRequest(ctx, tx, req, models.RequestStatusCancelled); err != nil {
			return err
		}
		txn = cur
		return record(ctx, tx, change{
			actor:      actor,
			action:     "escrow_refunded",
			entityType: models.EntityTransaction,
			entityID:   cur.ID,
			meta:       map[string]any{"refund_ref": refund.Ref, "reason": reason},
			event:      events.EventEscrowRefunded,
			payload:    withPet(transactionPayload(cur), pet),
			recipients: []uuid.UUID{cur.FromUser, cur.ToUser},
		})
	})
	if err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("refund", "commit_error").Inc()
		s.log.Error("refund commit failed after gateway refund, will be retried",
			zap.String("transaction_id", txID.String()), zap.Error(err))
		return nil, err
	}

	metrics.EscrowOpsTotal.WithLabelValues("refund", "ok").Inc()
	s.log.Info("escrow refunded", zap.String("transaction_id", txID.String()), zap.String("reason", reason))
	return txn, nil
}

// Get returns a transaction to one of its parties or an internal caller.
func (s *EscrowService) Get(ctx context.Context, txID uuid.UUID, actor Actor) (*models.RehomingTransaction, error) {
	txn, err := s.store.Transactions().GetByID(ctx, txID)
	if err != nil {
		return nil, apperr.FromStore(err, "transaction")
	}
	if err := authorize(transactionRole(txn, actor), rbac.PermViewTransaction); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *EscrowService) ListMine(ctx context.Context, userID uuid.UUID, statuses []models.TransactionStatus, limit, offset int) ([]models.RehomingTransaction, error) {
	txns, err := s.store.Transactions().List(ctx, store.TransactionFilter{
		UserID:   &userID,
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "transaction")
	}
	return txns, nil
}

// History returns the audit trail of a transaction.
func (s *EscrowService) History(ctx context.Context, txID uuid.UUID, actor Actor) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, txID, actor); err != nil {
		return nil, err
	}
	logs, err := s.store.Audit().GetByEntity(ctx, models.EntityTransaction, txID, 100, 0)
	if err != nil {
		return nil, apperr.FromStore(err, "audit_log")
	}
	return logs, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/arbitration"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/rbac"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

const maxEvidenceItems = 20

// DisputeService freezes escrow while a party contests the handover and
// applies the arbitration outcome.
type DisputeService struct {
	store       store.Store
	escrow      *EscrowService
	arbitration arbitration.Service
	locks       keyedMutex
	log         *zap.Logger
	now         func() time.Time
}

func NewDisputeService(st store.Store, escrow *EscrowService, arb arbitration.Service, log *zap.Logger) *DisputeService {
	return &DisputeService{store: st, escrow: escrow, arbitration: arb, log: log, now: time.Now}
}

// checkOpenable reports why a dispute cannot be opened on txn, if it cannot.
func checkOpenable(txn *models.RehomingTransaction) error {
	switch txn.DisputeStatus {
	case models.DisputeStateOpen:
		return apperr.New(apperr.Conflict, "dispute_open", "a dispute is already open for this transaction")
	case models.DisputeStateResolved:
		return apperr.New(apperr.InvalidState, "dispute_resolved", "the dispute for this transaction was already resolved")
	}
	switch txn.Status {
	case models.TransactionStatusHeld:
		switch txn.Settlement {
		case models.SettlementRelease:
			return apperr.New(apperr.Blocked, "release_in_progress", "escrow is being released")
		case models.SettlementRefund:
			return apperr.New(apperr.InvalidState, "refund_in_progress", "escrow is being refunded")
		}
		return nil
	case models.TransactionStatusCompleted:
		return nil
	}
	return apperr.Newf(apperr.InvalidState, "transaction_not_disputable", "cannot dispute a %s transaction", txn.Status)
}

// Open files a dispute for a party. On a held transaction it freezes the escrow.
func (s *DisputeService) Open(ctx context.Context, txID, actorID uuid.UUID, reason string, evidence []string) (*models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.New(apperr.Validation, "reason_required", "dispute reason is required")
	}
	if len(evidence) > maxEvidenceItems {
		return nil, apperr.Newf(apperr.Validation, "too_much_evidence", "at most %d evidence items", maxEvidenceItems)
	}

	unlock := s.locks.Lock(txID.String())
	defer unlock()

	txn, err := s.store.Transactions().GetByID(ctx, txID)
	if err != nil {
		return nil, apperr.FromStore(err, "transaction")
	}
	role, ok := txn.Role(actorID)
	if !ok {
		return nil, apperr.New(apperr.Forbidden, "not_a_party", "not a party to this transaction")
	}
	if err := authorize(string(role), rbac.PermOpenDispute); err != nil {
		return nil, err
	}
	if err := checkOpenable(txn); err != nil {
		return nil, err
	}

	d := &models.Dispute{
		ID:            uuid.New(),
		TransactionID: txID,
		OpenedBy:      actorID,
		Reason:        reason,
		Evidence:      evidence,
		Status:        models.DisputeStatusOpen,
	}
	caseRef, err := s.arbitration.OpenCase(ctx, arbitration.CaseRequest{
		DisputeID:     d.ID,
		TransactionID: txID,
		OpenedBy:      actorID,
		Reason:        reason,
		Evidence:      evidence,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Released:      txn.EscrowStatus == models.EscrowStatusReleased,
	})
	if err != nil {
		metrics.DisputesTotal.WithLabelValues("opened", "upstream_error").Inc()
		return nil, apperr.Wrap(apperr.UpstreamFailure, "arbitration_unavailable", err)
	}
	d.ArbitrationCaseRef = &caseRef

	err = s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Transactions().GetByID(ctx, txID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		if err := checkOpenable(cur); err != nil {
			return err
		}
		if err := tx.Disputes().Create(ctx, d); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.New(apperr.Conflict, "dispute_open", "a dispute is already open for this transaction")
			}
			return apperr.FromStore(err, "dispute")
		}
		cur.DisputeStatus = models.DisputeStateOpen
		if err := tx.Transactions().Update(ctx, cur); err != nil {
			return apperr.FromStore(err, "transaction")
		}
		txn = cur

		payload := transactionPayload(cur)
		payload["dispute_id"] = d.ID.String()
		payload["opened_by"] = string(role)
		return record(ctx, tx, change{
			actor:      UserActor(actorID),
			action:     "dispute_opened",
			entityType: models.EntityDispute,
			entityID:   d.ID,
			meta:       map[string]any{"transaction_id": txID.String(), "reason": reason, "case_ref": caseRef},
			event:      events.EventDisputeOpened,
			payload:    payload,
			recipients: []uuid.UUID{cur.FromUser, cur.ToUser},
		})
	})
	if err != nil {
		if cerr := s.arbitration.CancelCase(context.WithoutCancel(ctx), caseRef); cerr != nil {
			s.log.Error("failed to withdraw arbitration case",
				zap.String("case_ref", caseRef),
				zap.String("transaction_id", txID.String()),
				zap.Error(cerr))
		}
		return nil, err
	}

	metrics.DisputesTotal.WithLabelValues("opened", string(txn.Status)).Inc()
	s.log.Info("dispute opened",
		zap.String("dispute_id", d.ID.String()),
		zap.String("transaction_id", txID.String()),
		zap.String("case_ref", caseRef))
	return d, nil
}

type ResolveResult struct {
	Dispute       *models.Dispute             `json:"dispute"`
	Transaction   *models.RehomingTransaction `json:"transaction"`
	// FollowUpError is set when the outcome was recorded but moving the
	// escrow failed. The sweeper retries it.
	FollowUpError error                       `json:"-"`
}

// Resolve records the arbitration outcome and settles the escrow accordingly.
func (s *DisputeService) Resolve(ctx context.Context, txID uuid.UUID, outcome models.DisputeOutcome, note string, actor Actor) (*ResolveResult, error) {
	if !outcome.IsValid() {
		return nil, apperr.Newf(apperr.Validation, "invalid_outcome", "outcome must be %s or %s", models.OutcomeFavorOwner, models.OutcomeFavorAdopter)
	}
	if err := authorize(actor.internalRole(), rbac.PermResolveDispute); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(txID.String())
	res := &ResolveResult{}
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		txn, err := tx.Transactions().GetByID(ctx, txID)
		if err != nil {
			return apperr.FromStore(err, "transaction")
		}
		d, err := tx.Disputes().GetLatestByTransaction(ctx, txID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.New(apperr.InvalidState, "dispute_not_open", "no dispute is open for this transaction")
			}
			return apperr.FromStore(err, "dispute")
		}
		if d.Status != models.DisputeStatusOpen || txn.DisputeStatus != models.DisputeStateOpen {
			return apperr.New(apperr.InvalidState, "dispute_not_open", "no dispute is open for this transaction")
		}

		now := s.now()
		d.Status = models.DisputeStatusResolved
		d.Outcome = &outcome
		d.ResolvedAt = &now
		if note = strings.TrimSpace(note); note != "" {
			d.ResolutionNote = &note
		}
		if err := tx.Disputes().Update(ctx, d); err != nil {
			return apperr.FromStore(err, "dispute")
		}
		txn.DisputeStatus = models.DisputeStateResolved
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return apperr.FromStore(err, "transaction")
		}
		res.Dispute, res.Transaction = d, txn

		payload := transactionPayload(txn)
		payload["dispute_id"] = d.ID.String()
		payload["outcome"] = string(outcome)
		// Funds already reached the owner; recovering them is an offline process.
		payload["manual_clawback"] = txn.Status == models.TransactionStatusCompleted && outcome == models.OutcomeFavorAdopter
		return record(ctx, tx, change{
			actor:      actor,
			action:     "dispute_resolved",
			entityType: models.EntityDispute,
			entityID:   d.ID,
			meta:       map[string]any{"transaction_id": txID.String(), "outcome": string(outcome), "note": note},
			event:      events.EventDisputeResolved,
			payload:    payload,
			recipients: []uuid.UUID{txn.FromUser, txn.ToUser},
		})
	})
	unlock()
	if err != nil {
		return nil, err
	}

	metrics.DisputesTotal.WithLabelValues("resolved", string(outcome)).Inc()
	s.log.Info("dispute resolved",
		zap.String("dispute_id", res.Dispute.ID.String()),
		zap.String("transaction_id", txID.String()),
		zap.String("outcome", string(outcome)))

	if res.Transaction.Status != models.TransactionStatusHeld {
		return res, nil
	}
	txn, err := s.applyOutcome(ctx, res.Transaction.ID, outcome, actor)
	if err != nil {
		s.log.Warn("dispute follow-up failed",
			zap.String("transaction_id", txID.String()),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		res.FollowUpError = err
		return res, nil
	}
	res.Transaction = txn
	return res, nil
}

func (s *DisputeService) applyOutcome(ctx context.Context, txID uuid.UUID, outcome models.DisputeOutcome, actor Actor) (*models.RehomingTransaction, error) {
	if outcome == models.OutcomeFavorAdopter {
		return s.escrow.Refund(ctx, txID, "dispute resolved for the adopter", actor)
	}
	return s.escrow.Release(ctx, txID, actor)
}

// Get returns the latest dispute of a transaction to a party or an internal caller.
func (s *DisputeService) Get(ctx context.Context, txID uuid.UUID, actor Actor) (*models.Dispute, error) {
	txn, err := s.store.Transactions().GetByID(ctx, txID)
	if err != nil {
		return nil, apperr.FromStore(err, "transaction")
	}
	if err := authorize(transactionRole(txn, actor), rbac.PermViewTransaction); err != nil {
		return nil, err
	}
	d, err := s.store.Disputes().GetLatestByTransaction(ctx, txID)
	if err != nil {
		return nil, apperr.FromStore(err, "dispute")
	}
	return d, nil
}

package services

import (
	"context"
	"time"

	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

const (
	sweepBatch    = 100
	maxSweepPages = 1000
)

// SweepReport counts what one pass did.
type SweepReport struct {
	Expired        int
	FailedPayments int
	Released       int
	Refunded       int
	Errors         int
}

// Sweeper drives the time-based transitions and retries settlements whose
// decision was recorded but whose money movement failed.
type Sweeper struct {
	store    store.Store
	requests *RequestService
	escrow   *EscrowService
	cfg      *config.Config
	log      *zap.Logger
	now      func() time.Time
}

func NewSweeper(st store.Store, requests *RequestService, escrow *EscrowService, cfg *config.Config, log *zap.Logger) *Sweeper {
	return &Sweeper{store: st, requests: requests, escrow: escrow, cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the sweeper's clock.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r := s.SweepOnce(ctx)
			if r != (SweepReport{}) {
				s.log.Info("sweep finished",
					zap.Int("expired", r.Expired),
					zap.Int("failed_payments", r.FailedPayments),
					zap.Int("released", r.Released),
					zap.Int("refunded", r.Refunded),
					zap.Int("errors", r.Errors))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) SweepReport {
	var r SweepReport
	s.failStalePayments(ctx, &r)
	s.expireRequests(ctx, &r)
	s.settleHeld(ctx, &r)
	return r
}

func (s *Sweeper) count(action string, err error, r *SweepReport) bool {
	if err != nil {
		metrics.SweepActionsTotal.WithLabelValues(action, string(apperr.KindOf(err))).Inc()
		r.Errors++
		return false
	}
	metrics.SweepActionsTotal.WithLabelValues(action, "ok").Inc()
	return true
}

// drain walks a listing oldest first until it is exhausted. handle reports
// whether the row left the listed set, so rows that stay are skipped on the
// next page and the ones behind them are still reached.
func drain[T any](ctx context.Context, list func(offset int) ([]T, error), handle func(*T) bool) error {
	offset := 0
	for pages := 0; pages < maxSweepPages; pages++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := list(offset)
		if err != nil {
			return err
		}
		for i := range items {
			if !handle(&items[i]) {
				offset++
			}
		}
		if len(items) < sweepBatch {
			return nil
		}
	}
	return nil
}

func (s *Sweeper) failStalePayments(ctx context.Context, r *SweepReport) {
	cutoff := s.now().Add(-s.cfg.StalePaymentAfter)
	err := drain(ctx, func(offset int) ([]models.RehomingTransaction, error) {
		return s.store.Transactions().List(ctx, store.TransactionFilter{
			Statuses:      []models.TransactionStatus{models.TransactionStatusPending},
			UpdatedBefore: &cutoff,
			OldestFirst:   true,
			Limit:         sweepBatch,
			Offset:        offset,
		})
	}, func(txn *models.RehomingTransaction) bool {
		failed, err := s.escrow.FailStale(ctx, txn.ID)
		if !s.count("fail_stale_payment", err, r) {
			s.log.Warn("failed to fail stale payment", zap.String("transaction_id", txn.ID.String()), zap.Error(err))
			return false
		}
		if failed {
			s.log.Info("stale payment failed", zap.String("transaction_id", txn.ID.String()))
			r.FailedPayments++
		}
		return true
	})
	if err != nil && ctx.Err() == nil {
		s.log.Error("failed to list stale payments", zap.Error(err))
	}
}

func (s *Sweeper) expireRequests(ctx context.Context, r *SweepReport) {
	cutoff := s.now().Add(-s.cfg.PaymentTimeout)
	err := drain(ctx, func(offset int) ([]models.AdoptionRequest, error) {
		return s.store.Requests().List(ctx, store.RequestFilter{
			Statuses:      []models.RequestStatus{models.RequestStatusAccepted, models.RequestStatusPaymentPending},
			UpdatedBefore: &cutoff,
			OldestFirst:   true,
			Limit:         sweepBatch,
			Offset:        offset,
		})
	}, func(req *models.AdoptionRequest) bool {
		_, err := s.requests.Expire(ctx, req.ID, "payment window expired")
		if apperr.Is(err, apperr.Blocked) {
			return false
		}
		if s.count("expire_request", err, r) {
			r.Expired++
			return true
		}
		s.log.Warn("failed to expire request", zap.String("request_id", req.ID.String()), zap.Error(err))
		return false
	})
	if err != nil && ctx.Err() == nil {
		s.log.Error("failed to list expired requests", zap.Error(err))
	}
}

// settleHeld moves held escrow that is no longer waiting on a person. Every
// held row without an open dispute is visited on each pass.
func (s *Sweeper) settleHeld(ctx context.Context, r *SweepReport) {
	transferCutoff := s.now().Add(-s.cfg.TransferTimeout)
	err := drain(ctx, func(offset int) ([]models.RehomingTransaction, error) {
		return s.store.Transactions().List(ctx, store.TransactionFilter{
			Statuses:        []models.TransactionStatus{models.TransactionStatusHeld},
			DisputeStatuses: []models.DisputeState{models.DisputeStateNone, models.DisputeStateResolved},
			OldestFirst:     true,
			Limit:           sweepBatch,
			Offset:          offset,
		})
	}, func(txn *models.RehomingTransaction) bool {
		return s.settle(ctx, txn, transferCutoff, r)
	})
	if err != nil && ctx.Err() == nil {
		s.log.Error("failed to list held transactions", zap.Error(err))
	}
}

func (s *Sweeper) settle(ctx context.Context, txn *models.RehomingTransaction, transferCutoff time.Time, r *SweepReport) bool {
	action, reason := s.nextSettlement(ctx, txn, transferCutoff)
	log := s.log.With(zap.String("transaction_id", txn.ID.String()), zap.String("reason", reason))

	switch action {
	case models.SettlementRelease:
		_, err := s.escrow.Release(ctx, txn.ID, SystemActor())
		if s.count("release", err, r) {
			r.Released++
			log.Info("escrow released by sweeper")
			return true
		}
		log.Warn("sweeper release failed", zap.Error(err))
	case models.SettlementRefund:
		_, err := s.escrow.Refund(ctx, txn.ID, reason, SystemActor())
		if s.count("refund", err, r) {
			r.Refunded++
			log.Info("escrow refunded by sweeper")
			return true
		}
		log.Warn("sweeper refund failed", zap.Error(err))
	}
	return false
}

func (s *Sweeper) nextSettlement(ctx context.Context, txn *models.RehomingTransaction, transferCutoff time.Time) (models.Settlement, string) {
	if txn.DisputeStatus == models.DisputeStateOpen {
		return models.SettlementNone, ""
	}
	if txn.Settlement != models.SettlementNone {
		return txn.Settlement, "resume claimed settlement"
	}
	if txn.DisputeStatus == models.DisputeStateResolved {
		d, err := s.store.Disputes().GetLatestByTransaction(ctx, txn.ID)
		if err != nil || d.Outcome == nil {
			s.log.Error("resolved dispute without outcome", zap.String("transaction_id", txn.ID.String()), zap.Error(err))
			return models.SettlementNone, ""
		}
		if *d.Outcome == models.OutcomeFavorAdopter {
			return models.SettlementRefund, "dispute resolved for the adopter"
		}
		return models.SettlementRelease, "dispute resolved for the owner"
	}

	c, err := s.store.Confirmations().Get(ctx, txn.ID)
	if err != nil {
		s.log.Error("held transaction without confirmation record", zap.String("transaction_id", txn.ID.String()), zap.Error(err))
		return models.SettlementNone, ""
	}
	if c.Complete() {
		return models.SettlementRelease, "transfer confirmed"
	}
	if txn.HeldAt != nil && txn.HeldAt.Before(transferCutoff) {
		return models.SettlementRefund, "transfer_timeout"
	}
	return models.SettlementNone, ""
}

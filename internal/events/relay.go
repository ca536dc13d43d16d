package events

import (
	"context"
	"time"

	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 10

// Relay publishes committed outbox events. Delivery is at-least-once: an event
// whose MarkProcessed fails after a successful publish is sent again.
type Relay struct {
	store       store.Store
	pub         Publisher
	stream      string
	batchSize   int
	maxAttempts int
	log         *zap.Logger
}

func NewRelay(st store.Store, pub Publisher, batchSize int, log *zap.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		store:       st,
		pub:         pub,
		stream:      StreamRehoming,
		batchSize:   batchSize,
		maxAttempts: defaultMaxAttempts,
		log:         log,
	}
}

// RunOnce relays one batch and returns how many events were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.store.Atomic(ctx, func(tx store.Store) error {
		pending, err := tx.Outbox().ListPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		for _, oe := range pending {
			if err := r.pub.Publish(ctx, r.stream, toEvent(oe)); err != nil {
				metrics.OutboxPublishedTotal.WithLabelValues(oe.EventType, "error").Inc()
				r.log.Warn("outbox publish failed",
					zap.String("event_id", oe.ID.String()),
					zap.String("type", oe.EventType),
					zap.Int("attempts", oe.Attempts+1),
					zap.Error(err))
				if err := tx.Outbox().MarkFailed(ctx, oe.ID, err.Error(), r.maxAttempts); err != nil {
					return err
				}
				continue
			}
			if err := tx.Outbox().MarkProcessed(ctx, oe.ID); err != nil {
				return err
			}
			metrics.OutboxPublishedTotal.WithLabelValues(oe.EventType, "ok").Inc()
			published++
		}
		return nil
	})
	return published, err
}

// Run relays on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("outbox relay failed", zap.Error(err))
			}
		}
	}
}

func toEvent(oe models.OutboxEvent) Event {
	return Event{
		ID:         oe.ID,
		Type:       oe.EventType,
		Payload:    oe.Payload,
		OccurredAt: oe.CreatedAt,
	}
}

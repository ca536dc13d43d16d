package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/db"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/notify"
	"go.uber.org/zap"
)

// Notify bridge subscribes to workflow events on Redis and forwards one
// notification per recipient to the notification service.

const sendTimeout = 10 * time.Second

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.NotifierURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifierURL, log)
	} else {
		log.Warn("NOTIFIER_URL is not set, notifications are only logged")
	}

	subscriber := events.NewRedisSubscriber(rdb, log)
	if err := subscriber.Subscribe(ctx, events.StreamRehoming, func(event events.Event) {
		forward(ctx, notifier, event, log)
	}); err != nil {
		log.Fatal("failed to subscribe", zap.String("stream", events.StreamRehoming), zap.Error(err))
	}

	log.Info("notify-bridge started")
	<-ctx.Done()
	log.Info("shutting down notify-bridge")
}

func forward(ctx context.Context, notifier notify.Notifier, event events.Event, log *zap.Logger) {
	recipients := event.Recipients()
	if len(recipients) == 0 {
		return
	}
	text := notify.Text(event.Type, event.Payload)

	for _, userID := range recipients {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := notifier.Send(sendCtx, notify.Message{
			UserID:    userID,
			EventType: event.Type,
			Text:      text,
			Data:      event.Payload,
		})
		cancel()
		if err != nil {
			log.Warn("failed to forward notification",
				zap.String("event_id", event.ID.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}
}

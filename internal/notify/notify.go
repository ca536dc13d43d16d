// Package notify delivers user-facing notifications. Delivery is fire and
// forget: callers log failures and move on.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Message struct {
	UserID    uuid.UUID      `json:"user_id"`
	EventType string         `json:"event_type"`
	Text      string         `json:"text"`
	Data      map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.Info("notification",
		zap.String("user_id", msg.UserID.String()),
		zap.String("event_type", msg.EventType),
		zap.String("text", msg.Text))
	return nil
}

var eventTexts = map[string]string{
	"adoption_requested":              "Someone asked to adopt %s.",
	"adoption_request_status_changed": "Your adoption request for %s is now %s.",
	"adoption_completed":              "The adoption of %s is complete.",
	"payment_held":                    "Payment for %s is held in escrow until the handover is confirmed.",
	"payment_failed":                  "Payment for %s did not go through. You can try again.",
	"transfer_confirmed":              "The handover of %s was confirmed by the %s.",
	"escrow_released":                 "Escrow for %s was released to the owner.",
	"escrow_refunded":                 "Escrow for %s was refunded to the adopter.",
	"dispute_opened":                  "A dispute was opened on the adoption of %s.",
	"dispute_resolved":                "The dispute on the adoption of %s was resolved: %s.",
}

// Text renders a short human message for an event type. Unknown types fall
// back to the type name.
func Text(eventType string, payload map[string]any) string {
	tmpl, ok := eventTexts[eventType]
	if !ok {
		return strings.ReplaceAll(eventType, "_", " ")
	}
	pet := stringField(payload, "pet_name", "your pet")
	n := strings.Count(tmpl, "%s")
	if n == 1 {
		return fmt.Sprintf(tmpl, pet)
	}
	second := stringField(payload, "status", "")
	switch eventType {
	case "transfer_confirmed":
		second = stringField(payload, "role", "other party")
	case "dispute_resolved":
		second = strings.ReplaceAll(stringField(payload, "outcome", "closed"), "_", " ")
	}
	return fmt.Sprintf(tmpl, pet, strings.ReplaceAll(second, "_", " "))
}

func stringField(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

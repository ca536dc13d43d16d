package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StreamRehoming carries every workflow event.
const StreamRehoming = "events:rehoming"

// Event types
const (
	EventPetListed            = "pet_listed"
	EventPetUpdated           = "pet_updated"
	EventPetRemoved           = "pet_removed"
	EventPetVerified          = "pet_verified"
	EventAdoptionRequested    = "adoption_requested"
	EventRequestStatusChanged = "adoption_request_status_changed"
	EventAdoptionCompleted    = "adoption_completed"
	EventPaymentHeld          = "payment_held"
	EventPaymentFailed        = "payment_failed"
	EventTransferConfirmed    = "transfer_confirmed"
	EventEscrowReleased       = "escrow_released"
	EventEscrowRefunded       = "escrow_refunded"
	EventDisputeOpened        = "dispute_opened"
	EventDisputeResolved      = "dispute_resolved"
)

// PayloadRecipients lists the user ids an event is addressed to.
const PayloadRecipients = "recipients"

type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Recipients decodes the recipients list, which after a JSON round trip is a
// []any of strings.
func (e Event) Recipients() []uuid.UUID {
	var out []uuid.UUID
	switch v := e.Payload[PayloadRecipients].(type) {
	case []string:
		for _, s := range v {
			if id, err := uuid.Parse(s); err == nil {
				out = append(out, id)
			}
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if id, err := uuid.Parse(s); err == nil {
				out = append(out, id)
			}
		}
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Package payments defines the payment gateway capability the escrow engine
// moves money through.
package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDeclined is returned when the gateway refuses the operation itself, as
// opposed to being unreachable.
var ErrDeclined = errors.New("payments: declined")

type AuthorizeRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	PayerRef       string            `json:"payer_ref"`
	IdempotencyKey string            `json:"-"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type PayoutRequest struct {
	SourceRef      string    `json:"source_ref"`
	PayeeID        uuid.UUID `json:"payee_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	IdempotencyKey string    `json:"-"`
}

type Result struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

// Gateway calls are idempotent per key: repeating a call with the same key
// returns the original result without moving money twice.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error)
	Capture(ctx context.Context, ref string, amount int64, idempotencyKey string) (*Result, error)
	Refund(ctx context.Context, ref string, amount int64, idempotencyKey string) (*Result, error)
	Payout(ctx context.Context, req PayoutRequest) (*Result, error)
}

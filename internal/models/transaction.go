package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusHeld      TransactionStatus = "held"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
	TransactionStatusFailed    TransactionStatus = "failed"
)

var ValidTransactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:   {TransactionStatusHeld, TransactionStatusFailed},
	TransactionStatusHeld:      {TransactionStatusCompleted, TransactionStatusRefunded},
	TransactionStatusCompleted: {},
	TransactionStatusRefunded:  {},
	TransactionStatusFailed:    {},
}

func IsValidTransactionTransition(from, to TransactionStatus) bool {
	for _, s := range ValidTransactionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none" // nothing captured yet, or the capture failed
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// Escrow moves one way only.
var ValidEscrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusNone:     {EscrowStatusHeld},
	EscrowStatusHeld:     {EscrowStatusReleased, EscrowStatusRefunded},
	EscrowStatusReleased: {},
	EscrowStatusRefunded: {},
}

func IsValidEscrowTransition(from, to EscrowStatus) bool {
	for _, s := range ValidEscrowTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type DisputeState string

const (
	DisputeStateNone     DisputeState = "none"
	DisputeStateOpen     DisputeState = "open"
	DisputeStateResolved DisputeState = "resolved"
)

// Settlement is the claim a release or refund takes on a held transaction
// before any money moves.
type Settlement string

const (
	SettlementNone    Settlement = ""
	SettlementRelease Settlement = "release"
	SettlementRefund  Settlement = "refund"
)

type RehomingTransaction struct {
	ID                uuid.UUID         `json:"id"`
	AdoptionRequestID uuid.UUID         `json:"adoption_request_id"`
	PetID             uuid.UUID         `json:"pet_id"`
	FromUser          uuid.UUID         `json:"from_user"` // adopter
	ToUser            uuid.UUID         `json:"to_user"`   // owner
	Amount            int64             `json:"amount"`
	PlatformFee       int64             `json:"platform_fee"`
	NetAmount         int64             `json:"net_amount"`
	Currency          string            `json:"currency"`
	FeeBPS            int               `json:"fee_bps"`
	Status            TransactionStatus `json:"status"`
	EscrowStatus      EscrowStatus      `json:"escrow_status"`
	DisputeStatus     DisputeState      `json:"dispute_status"`
	Settlement        Settlement        `json:"settlement,omitempty"`
	GatewayRef        *string           `json:"gateway_ref,omitempty"`
	FailureReason     *string           `json:"failure_reason,omitempty"`
	RefundReason      *string           `json:"refund_reason,omitempty"`
	Version           int64             `json:"version"`
	HeldAt            *time.Time        `json:"held_at,omitempty"`
	ReleasedAt        *time.Time        `json:"released_at,omitempty"`
	RefundedAt        *time.Time        `json:"refunded_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Role returns the party role userID plays in the transaction.
func (t *RehomingTransaction) Role(userID uuid.UUID) (PartyRole, bool) {
	switch userID {
	case t.ToUser:
		return PartyOwner, true
	case t.FromUser:
		return PartyAdopter, true
	}
	return "", false
}

func (t *RehomingTransaction) IsParty(userID uuid.UUID) bool {
	_, ok := t.Role(userID)
	return ok
}

// ComputeFee splits amount into the platform fee and the owner's net amount.
// feeBPS is in basis points (500 = 5%); the fee rounds down.
func ComputeFee(amount int64, feeBPS int) (fee, net int64) {
	if amount <= 0 || feeBPS <= 0 {
		return 0, amount
	}
	fee = amount * int64(feeBPS) / 10000
	return fee, amount - fee
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

// Adoption request statuses
const (
	RequestStatusPending            RequestStatus = "pending"
	RequestStatusAccepted           RequestStatus = "accepted"
	RequestStatusRejected           RequestStatus = "rejected"
	RequestStatusPaymentPending     RequestStatus = "payment_pending"
	RequestStatusPetTransferPending RequestStatus = "pet_transfer_pending"
	RequestStatusPaymentVerified    RequestStatus = "payment_verified"
	RequestStatusCompleted          RequestStatus = "completed"
	RequestStatusCancelled          RequestStatus = "cancelled"
)

// Valid state transitions: from -> []to
var ValidRequestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:            {RequestStatusAccepted, RequestStatusPaymentPending, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusAccepted:           {RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusPaymentPending:     {RequestStatusPetTransferPending, RequestStatusCancelled},
	RequestStatusPetTransferPending: {RequestStatusPaymentVerified, RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusPaymentVerified:    {RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusRejected:           {},
	RequestStatusCompleted:          {},
	RequestStatusCancelled:          {},
}

// ActiveRequestStatuses hold a pet: at most one request per pet may be in one of them.
var ActiveRequestStatuses = []RequestStatus{
	RequestStatusAccepted,
	RequestStatusPaymentPending,
	RequestStatusPetTransferPending,
	RequestStatusPaymentVerified,
}

// NonTerminalRequestStatuses are the active statuses plus pending.
var NonTerminalRequestStatuses = append([]RequestStatus{RequestStatusPending}, ActiveRequestStatuses...)

func IsValidRequestTransition(from, to RequestStatus) bool {
	allowed, ok := ValidRequestTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func (s RequestStatus) IsActive() bool {
	for _, a := range ActiveRequestStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	allowed, ok := ValidRequestTransitions[s]
	return ok && len(allowed) == 0
}

func (s RequestStatus) IsValid() bool {
	_, ok := ValidRequestTransitions[s]
	return ok
}

type AdoptionRequest struct {
	ID        uuid.UUID     `json:"id"`
	PetID     uuid.UUID     `json:"pet_id"`
	AdopterID uuid.UUID     `json:"adopter_id"`
	Message   string        `json:"message"`
	Status    RequestStatus `json:"status"`
	Version   int64         `json:"version"`
	DecidedAt *time.Time    `json:"decided_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

func (d Decision) IsValid() bool {
	return d == DecisionAccept || d == DecisionReject
}

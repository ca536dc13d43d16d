package models

import (
	"time"

	"github.com/google/uuid"
)

type PartyRole string

const (
	PartyOwner   PartyRole = "owner"
	PartyAdopter PartyRole = "adopter"
)

func (r PartyRole) IsValid() bool {
	return r == PartyOwner || r == PartyAdopter
}

// TransferConfirmation records each party's acknowledgement of the physical handover.
type TransferConfirmation struct {
	TransactionID      uuid.UUID  `json:"transaction_id"`
	OwnerConfirmedAt   *time.Time `json:"owner_confirmed_at,omitempty"`
	AdopterConfirmedAt *time.Time `json:"adopter_confirmed_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *TransferConfirmation) Confirmed(role PartyRole) bool {
	switch role {
	case PartyOwner:
		return c.OwnerConfirmedAt != nil
	case PartyAdopter:
		return c.AdopterConfirmedAt != nil
	}
	return false
}

func (c *TransferConfirmation) Complete() bool {
	return c.OwnerConfirmedAt != nil && c.AdopterConfirmedAt != nil
}

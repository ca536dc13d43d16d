package models

import (
	"time"

	"github.com/google/uuid"
)

type DisputeRecordStatus string

const (
	DisputeStatusOpen     DisputeRecordStatus = "open"
	DisputeStatusResolved DisputeRecordStatus = "resolved"
)

type DisputeOutcome string

const (
	OutcomeFavorOwner   DisputeOutcome = "favor_owner"
	OutcomeFavorAdopter DisputeOutcome = "favor_adopter"
)

func (o DisputeOutcome) IsValid() bool {
	return o == OutcomeFavorOwner || o == OutcomeFavorAdopter
}

type Dispute struct {
	ID                 uuid.UUID           `json:"id"`
	TransactionID      uuid.UUID           `json:"transaction_id"`
	OpenedBy           uuid.UUID           `json:"opened_by"`
	Reason             string              `json:"reason"`
	Evidence           []string            `json:"evidence,omitempty"`
	Status             DisputeRecordStatus `json:"status"`
	Outcome            *DisputeOutcome     `json:"outcome,omitempty"`
	ArbitrationCaseRef *string             `json:"arbitration_case_ref,omitempty"`
	ResolutionNote     *string             `json:"resolution_note,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	ResolvedAt         *time.Time          `json:"resolved_at,omitempty"`
}

// Package arbitration opens and withdraws cases with the external dispute
// resolution service. Outcomes come back through the internal resolve endpoint.
package arbitration

import (
	"context"

	"github.com/google/uuid"
)

type CaseRequest struct {
	DisputeID     uuid.UUID `json:"dispute_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	OpenedBy      uuid.UUID `json:"opened_by"`
	Reason        string    `json:"reason"`
	Evidence      []string  `json:"evidence,omitempty"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Released      bool      `json:"released"`
}

type Service interface {
	// OpenCase returns the arbitration case reference.
	OpenCase(ctx context.Context, req CaseRequest) (string, error)
	CancelCase(ctx context.Context, caseRef string) error
}

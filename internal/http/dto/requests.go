package dto

type PetRequest struct {
	Name         string  `json:"name"`
	Species      string  `json:"species"`
	Breed        *string `json:"breed,omitempty"`
	AgeMonths    *int    `json:"age_months,omitempty"`
	Description  *string `json:"description,omitempty"`
	City         *string `json:"city,omitempty"`
	AdoptionType string  `json:"adoption_type"`   // free / paid
	Price        *int64  `json:"price,omitempty"` // minor units, paid only
}

type CreateAdoptionRequestRequest struct {
	Message string `json:"message"`
}

type RespondRequest struct {
	Decision string `json:"decision"` // accept / reject
}

type InitiatePaymentRequest struct {
	Amount   int64  `json:"amount"`
	PayerRef string `json:"payer_ref"`
}

type ConfirmTransferRequest struct {
	Role string `json:"role,omitempty"` // owner / adopter; derived when empty
}

type OpenDisputeRequest struct {
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence,omitempty"`
}

type ResolveDisputeRequest struct {
	Outcome string `json:"outcome"` // favor_owner / favor_adopter
	Note    string `json:"note,omitempty"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type VerifyPetRequest struct {
	Verified *bool `json:"verified"`
}

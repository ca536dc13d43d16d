package dto

type ErrorBody struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ListResponse struct {
	Items  any `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ResolveResponse struct {
	Dispute     any    `json:"dispute"`
	Transaction any    `json:"transaction"`
	FollowUp    string `json:"follow_up"` // done / pending
	FollowUpErr string `json:"follow_up_error,omitempty"`
}

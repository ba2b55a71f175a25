package approvals

// CreateRequestDTO is the payload for submitting an approval request.
type CreateRequestDTO struct {
	ActionKey   string            `json:"action_key" validate:"required,max=128"`
	ContextID   *string           `json:"context_id,omitempty" validate:"omitempty,max=128"`
	ContextData map[string]string `json:"context_data,omitempty" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=512"`
}

// ReviewRequestDTO is the payload for deciding a pending request.
type ReviewRequestDTO struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Notes    string `json:"notes,omitempty" validate:"max=1000"`
}

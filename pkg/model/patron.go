package model

type PatronCreate struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=255"`
	Type  string `json:"type" validate:"required,oneof=Regular Researcher"`
}

// PatronUpdate carries partial profile edits. Nil fields are left unchanged.
type PatronUpdate struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Type  *string `json:"type,omitempty" validate:"omitempty,oneof=Regular Researcher"`
}

// FeeRequest adds to or pays down a patron's outstanding fee balance.
// Amounts are integer cents. Currency defaults to USD when omitted.
type FeeRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

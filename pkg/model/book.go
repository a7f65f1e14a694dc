package model

// BookCreate is the request body for registering a new book.
type BookCreate struct {
	Title            string `json:"title" validate:"required,max=200"`
	Author           string `json:"author" validate:"required,max=100"`
	ISBN             string `json:"isbn" validate:"required,isbn"`
	RestrictedAccess bool   `json:"is_restricted_access"`
}

// BookUpdate carries partial catalog edits. Nil fields are left unchanged.
// Circulation state (status, holder, borrower) is never updated this way.
type BookUpdate struct {
	Title            *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Author           *string `json:"author,omitempty" validate:"omitempty,min=1,max=100"`
	RestrictedAccess *bool   `json:"is_restricted_access,omitempty"`
}

// HoldRequest places a hold for a patron. Days selects the hold duration
// and defaults to the standard period when omitted.
type HoldRequest struct {
	PatronID string `json:"patron_id" validate:"required,uuid"`
	Days     int    `json:"days,omitempty" validate:"omitempty,oneof=7 14"`
}

type CheckoutRequest struct {
	PatronID string `json:"patron_id" validate:"required,uuid"`
}

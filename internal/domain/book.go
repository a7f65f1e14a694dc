package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookStatus string

const (
	StatusAvailable  BookStatus = "Available"
	StatusOnHold     BookStatus = "OnHold"
	StatusCheckedOut BookStatus = "CheckedOut"
)

func ParseBookStatus(s string) (BookStatus, error) {
	switch BookStatus(s) {
	case StatusAvailable, StatusOnHold, StatusCheckedOut:
		return BookStatus(s), nil
	}
	return "", fmt.Errorf("unrecognized book status %q", s)
}

const (
	// CheckoutPeriodDays is the standard loan length.
	CheckoutPeriodDays = 14
	// OverdueFeeCentsPerDay accrues for each whole day past the due date.
	OverdueFeeCentsPerDay = 50
)

var (
	ErrBookNotAvailable      = errors.New("book is not available for hold")
	ErrBookAlreadyCheckedOut = errors.New("book is already checked out")
	ErrBookHeldByAnother     = errors.New("book is on hold for another patron")
	ErrBookNotCheckedOut     = errors.New("book is not checked out")
)

// Book cycles Available -> OnHold -> CheckedOut -> Available. At most one of
// the holder/borrower fields is set at a time, matching Status. Mutations
// take an explicit clock and return the emitted domain event; callers publish
// it after their write commits.
type Book struct {
	ID               string     `json:"id" bson:"_id"`
	Title            string     `json:"title" bson:"title"`
	Author           string     `json:"author" bson:"author"`
	ISBN             string     `json:"isbn" bson:"isbn"`
	Status           BookStatus `json:"status" bson:"status"`
	RestrictedAccess bool       `json:"is_restricted_access" bson:"is_restricted_access"`
	HolderID         *string    `json:"current_holder_id,omitempty" bson:"current_holder_id,omitempty"`
	BorrowerID       *string    `json:"current_borrower_id,omitempty" bson:"current_borrower_id,omitempty"`
	HoldExpiresAt    *time.Time `json:"hold_expiry_date,omitempty" bson:"hold_expiry_date,omitempty"`
	CheckedOutAt     *time.Time `json:"checkout_date,omitempty" bson:"checkout_date,omitempty"`
	DueAt            *time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" bson:"updated_at"`
}

func NewBook(title, author, isbn string, restricted bool, now time.Time) *Book {
	return &Book{
		ID:               uuid.New().String(),
		Title:            title,
		Author:           author,
		ISBN:             isbn,
		Status:           StatusAvailable,
		RestrictedAccess: restricted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// PlaceOnHold reserves an available book for the patron until the hold
// duration expires.
func (b *Book) PlaceOnHold(patronID string, duration HoldDuration, now time.Time) (BookPlacedOnHold, error) {
	if b.Status != StatusAvailable {
		return BookPlacedOnHold{}, ErrBookNotAvailable
	}

	expiresAt := duration.ExpiryFrom(now)
	b.Status = StatusOnHold
	b.HolderID = &patronID
	b.HoldExpiresAt = &expiresAt
	b.UpdatedAt = now

	return BookPlacedOnHold{
		BookID:     b.ID,
		PatronID:   patronID,
		ExpiresAt:  expiresAt,
		OccurredAt: now,
	}, nil
}

// CheckOut lends the book to the patron. A hold reserves the book exclusively
// for its holder, so a checkout by anyone else is rejected.
func (b *Book) CheckOut(patronID string, now time.Time) (BookCheckedOut, error) {
	if b.Status == StatusCheckedOut {
		return BookCheckedOut{}, ErrBookAlreadyCheckedOut
	}
	if b.Status == StatusOnHold && (b.HolderID == nil || *b.HolderID != patronID) {
		return BookCheckedOut{}, ErrBookHeldByAnother
	}

	dueAt := now.AddDate(0, 0, CheckoutPeriodDays)
	b.Status = StatusCheckedOut
	b.BorrowerID = &patronID
	b.HolderID = nil
	b.HoldExpiresAt = nil
	b.CheckedOutAt = &now
	b.DueAt = &dueAt
	b.UpdatedAt = now

	return BookCheckedOut{
		BookID:     b.ID,
		PatronID:   patronID,
		DueAt:      dueAt,
		OccurredAt: now,
	}, nil
}

// Return puts a checked-out book back into circulation.
func (b *Book) Return(now time.Time) (BookReturned, error) {
	if b.Status != StatusCheckedOut {
		return BookReturned{}, ErrBookNotCheckedOut
	}

	borrowerID := *b.BorrowerID
	b.Status = StatusAvailable
	b.BorrowerID = nil
	b.CheckedOutAt = nil
	b.DueAt = nil
	b.UpdatedAt = now

	return BookReturned{
		BookID:     b.ID,
		PatronID:   borrowerID,
		OccurredAt: now,
	}, nil
}

func (b *Book) IsOverdue(now time.Time) bool {
	return b.Status == StatusCheckedOut && b.DueAt != nil && b.DueAt.Before(now)
}

// OverdueFee is OverdueFeeCentsPerDay per whole day past the due date.
// Partial days do not count.
func (b *Book) OverdueFee(now time.Time) Money {
	if !b.IsOverdue(now) {
		return ZeroMoney()
	}
	daysOverdue := int64(now.Sub(*b.DueAt).Hours() / 24)
	return NewMoney(daysOverdue*OverdueFeeCentsPerDay, DefaultCurrency)
}

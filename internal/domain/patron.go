package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PatronType string

const (
	PatronRegular    PatronType = "Regular"
	PatronResearcher PatronType = "Researcher"
)

func ParsePatronType(s string) (PatronType, error) {
	switch PatronType(s) {
	case PatronRegular, PatronResearcher:
		return PatronType(s), nil
	}
	return "", fmt.Errorf("unrecognized patron type %q, must be %q or %q", s, PatronRegular, PatronResearcher)
}

var (
	ErrPaymentNotPositive = errors.New("payment amount must be positive")
	ErrPaymentExceedsFees = errors.New("payment exceeds outstanding fees")
)

// Patron carries a fee balance and an activation flag. The balance never
// goes negative: PayFee rejects amounts above it.
type Patron struct {
	ID              string     `json:"id" bson:"_id"`
	Name            string     `json:"name" bson:"name"`
	Email           string     `json:"email" bson:"email"`
	Type            PatronType `json:"type" bson:"type"`
	OutstandingFees Money      `json:"outstanding_fees" bson:"outstanding_fees"`
	Active          bool       `json:"is_active" bson:"is_active"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

func NewPatron(name, email string, patronType PatronType, now time.Time) *Patron {
	return &Patron{
		ID:              uuid.New().String(),
		Name:            name,
		Email:           email,
		Type:            patronType,
		OutstandingFees: ZeroMoney(),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (p *Patron) CanHoldRestrictedBooks() bool {
	return p.Type == PatronResearcher
}

func (p *Patron) HasOutstandingFees() bool {
	return p.OutstandingFees.IsPositive()
}

func (p *Patron) AddFee(fee Money, now time.Time) error {
	total, err := p.OutstandingFees.Add(fee)
	if err != nil {
		return err
	}
	p.OutstandingFees = total
	p.UpdatedAt = now
	return nil
}

func (p *Patron) PayFee(amount Money, now time.Time) error {
	if !amount.IsPositive() {
		return ErrPaymentNotPositive
	}
	if amount.Currency != p.OutstandingFees.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, amount.Currency, p.OutstandingFees.Currency)
	}
	if amount.Cents > p.OutstandingFees.Cents {
		return ErrPaymentExceedsFees
	}
	p.OutstandingFees = NewMoney(p.OutstandingFees.Cents-amount.Cents, p.OutstandingFees.Currency)
	p.UpdatedAt = now
	return nil
}

// Deactivate soft-deletes the patron. There is no reactivation.
func (p *Patron) Deactivate(now time.Time) {
	p.Active = false
	p.UpdatedAt = now
}

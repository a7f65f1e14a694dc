package domain

import (
	"errors"
	"fmt"
)

const DefaultCurrency = "USD"

var ErrCurrencyMismatch = errors.New("cannot add amounts in different currencies")

// Money is an amount in minor units (cents) plus an ISO currency code.
// Integer cents keep fee arithmetic exact.
type Money struct {
	Cents    int64  `json:"cents" bson:"cents"`
	Currency string `json:"currency" bson:"currency"`
}

func NewMoney(cents int64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Cents: cents, Currency: currency}
}

func ZeroMoney() Money {
	return Money{Cents: 0, Currency: DefaultCurrency}
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Cents: m.Cents + other.Cents, Currency: m.Currency}, nil
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// Amount returns the value in major units, for display and DTOs.
func (m Money) Amount() float64 {
	return float64(m.Cents) / 100
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Amount(), m.Currency)
}

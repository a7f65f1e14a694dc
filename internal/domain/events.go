package domain

import "time"

// Event is a domain notification recorded by an entity mutation. Events are
// returned to the caller alongside the mutation result and must only be
// published once the surrounding write has committed.
type Event interface {
	EventType() string
	AggregateID() string
}

const (
	EventTypeBookPlacedOnHold = "book.placed_on_hold"
	EventTypeBookCheckedOut   = "book.checked_out"
	EventTypeBookReturned     = "book.returned"
)

type BookPlacedOnHold struct {
	BookID     string    `json:"book_id"`
	PatronID   string    `json:"patron_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e BookPlacedOnHold) EventType() string   { return EventTypeBookPlacedOnHold }
func (e BookPlacedOnHold) AggregateID() string { return e.BookID }

type BookCheckedOut struct {
	BookID     string    `json:"book_id"`
	PatronID   string    `json:"patron_id"`
	DueAt      time.Time `json:"due_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e BookCheckedOut) EventType() string   { return EventTypeBookCheckedOut }
func (e BookCheckedOut) AggregateID() string { return e.BookID }

type BookReturned struct {
	BookID     string    `json:"book_id"`
	PatronID   string    `json:"patron_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e BookReturned) EventType() string   { return EventTypeBookReturned }
func (e BookReturned) AggregateID() string { return e.BookID }

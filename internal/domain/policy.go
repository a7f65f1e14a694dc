package domain

// HoldPolicy decides whether a patron may place a hold on a book. Both
// methods walk the same rules in the same priority order so the reported
// reason always matches the rule that denied the hold.
type HoldPolicy struct{}

const (
	ReasonHoldAllowed      = "Hold request is valid"
	ReasonPatronInactive   = "Patron account is inactive"
	ReasonOutstandingFees  = "Patron has outstanding fees"
	ReasonRestrictedAccess = "Patron cannot access restricted books"
)

func (HoldPolicy) CanPlaceOnHold(book *Book, patron *Patron) bool {
	if !patron.Active {
		return false
	}
	if patron.HasOutstandingFees() {
		return false
	}
	if book.RestrictedAccess && !patron.CanHoldRestrictedBooks() {
		return false
	}
	return true
}

func (HoldPolicy) RejectionReason(book *Book, patron *Patron) string {
	if !patron.Active {
		return ReasonPatronInactive
	}
	if patron.HasOutstandingFees() {
		return ReasonOutstandingFees
	}
	if book.RestrictedAccess && !patron.CanHoldRestrictedBooks() {
		return ReasonRestrictedAccess
	}
	return ReasonHoldAllowed
}

package domain

import "testing"

func TestHoldPolicy(t *testing.T) {
	tests := []struct {
		name       string
		restricted bool
		prepare    func(p *Patron)
		wantAllow  bool
		wantReason string
	}{
		{
			name:       "active patron with no fees may hold",
			prepare:    func(p *Patron) {},
			wantAllow:  true,
			wantReason: ReasonHoldAllowed,
		},
		{
			name: "inactive patron denied",
			prepare: func(p *Patron) {
				p.Deactivate(testNow)
			},
			wantAllow:  false,
			wantReason: ReasonPatronInactive,
		},
		{
			name: "patron with fees denied",
			prepare: func(p *Patron) {
				if err := p.AddFee(NewMoney(500, DefaultCurrency), testNow); err != nil {
					t.Fatalf("AddFee failed: %v", err)
				}
			},
			wantAllow:  false,
			wantReason: ReasonOutstandingFees,
		},
		{
			name:       "regular patron denied on restricted book",
			restricted: true,
			prepare:    func(p *Patron) {},
			wantAllow:  false,
			wantReason: ReasonRestrictedAccess,
		},
		{
			name: "inactive outranks fees and restriction",
			restricted: true,
			prepare: func(p *Patron) {
				if err := p.AddFee(NewMoney(500, DefaultCurrency), testNow); err != nil {
					t.Fatalf("AddFee failed: %v", err)
				}
				p.Deactivate(testNow)
			},
			wantAllow:  false,
			wantReason: ReasonPatronInactive,
		},
		{
			name: "fees outrank restriction",
			restricted: true,
			prepare: func(p *Patron) {
				if err := p.AddFee(NewMoney(500, DefaultCurrency), testNow); err != nil {
					t.Fatalf("AddFee failed: %v", err)
				}
			},
			wantAllow:  false,
			wantReason: ReasonOutstandingFees,
		},
	}

	var policy HoldPolicy
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := NewBook("Dune", "Frank Herbert", "1234567890", tt.restricted, testNow)
			patron := NewPatron("Ada", "ada@example.com", PatronRegular, testNow)
			tt.prepare(patron)

			if got := policy.CanPlaceOnHold(book, patron); got != tt.wantAllow {
				t.Errorf("CanPlaceOnHold() = %v, want %v", got, tt.wantAllow)
			}
			if got := policy.RejectionReason(book, patron); got != tt.wantReason {
				t.Errorf("RejectionReason() = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestHoldPolicy_ResearcherOnRestricted(t *testing.T) {
	var policy HoldPolicy
	book := NewBook("Sealed Archive", "Unknown", "9876543210", true, testNow)
	researcher := NewPatron("Grace", "grace@example.com", PatronResearcher, testNow)

	if !policy.CanPlaceOnHold(book, researcher) {
		t.Error("researcher should be allowed to hold a restricted book")
	}
	if reason := policy.RejectionReason(book, researcher); reason != ReasonHoldAllowed {
		t.Errorf("RejectionReason() = %q, want %q", reason, ReasonHoldAllowed)
	}
}

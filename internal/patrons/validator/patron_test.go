package validator

import (
	"strings"
	"testing"

	"libris/pkg/model"
)

func TestValidateCreate(t *testing.T) {
	longName := strings.Repeat("n", 101)

	tests := []struct {
		name    string
		req     model.PatronCreate
		wantErr bool
	}{
		{"valid regular", model.PatronCreate{Name: "Ada", Email: "ada@example.com", Type: "Regular"}, false},
		{"valid researcher", model.PatronCreate{Name: "Grace", Email: "grace@example.com", Type: "Researcher"}, false},
		{"missing name", model.PatronCreate{Email: "ada@example.com", Type: "Regular"}, true},
		{"name too long", model.PatronCreate{Name: longName, Email: "ada@example.com", Type: "Regular"}, true},
		{"missing email", model.PatronCreate{Name: "Ada", Type: "Regular"}, true},
		{"invalid email", model.PatronCreate{Name: "Ada", Email: "not-an-email", Type: "Regular"}, true},
		{"invalid type", model.PatronCreate{Name: "Ada", Email: "ada@example.com", Type: "Admin"}, true},
		{"missing type", model.PatronCreate{Name: "Ada", Email: "ada@example.com"}, true},
	}

	v := NewPatronValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCreate(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("got err %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUpdate_PartialFields(t *testing.T) {
	name := "New Name"
	badEmail := "nope"
	goodEmail := "new@example.com"
	badType := "Admin"

	tests := []struct {
		name    string
		req     model.PatronUpdate
		wantErr bool
	}{
		{"empty update", model.PatronUpdate{}, false},
		{"name only", model.PatronUpdate{Name: &name}, false},
		{"valid email", model.PatronUpdate{Email: &goodEmail}, false},
		{"invalid email", model.PatronUpdate{Email: &badEmail}, true},
		{"invalid type", model.PatronUpdate{Type: &badType}, true},
	}

	v := NewPatronValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpdate(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("got err %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFee(t *testing.T) {
	tests := []struct {
		name    string
		req     model.FeeRequest
		wantErr bool
	}{
		{"valid", model.FeeRequest{AmountCents: 100}, false},
		{"valid with currency", model.FeeRequest{AmountCents: 100, Currency: "USD"}, false},
		{"zero amount", model.FeeRequest{AmountCents: 0}, true},
		{"negative amount", model.FeeRequest{AmountCents: -50}, true},
		{"bad currency length", model.FeeRequest{AmountCents: 100, Currency: "US"}, true},
	}

	v := NewPatronValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateFee(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("got err %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

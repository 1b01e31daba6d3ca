package billing

import (
	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/shopspring/decimal"
)

// CheckoutRequest charges one person's fee for one RSVP.
type CheckoutRequest struct {
	AccountID uint
	PersonID  uint
	ProfileID uint
	FeeID     uint
	RsvpID    uint
}

func (r CheckoutRequest) validate() error {
	switch {
	case r.FeeID == 0:
		return invalid("fee", "is required")
	case r.AccountID == 0:
		return invalid("account", "is required")
	case r.PersonID == 0:
		return invalid("person", "is required")
	case r.ProfileID == 0:
		return invalid("profile", "is required")
	case r.RsvpID == 0:
		return invalid("rsvp", "is required")
	}
	return nil
}

// MultiCheckoutRequest charges one fee for several persons attending the
// same event, paid by one profile.
type MultiCheckoutRequest struct {
	AccountID uint
	ProfileID uint
	FeeID     uint
	EventID   uint
	PersonIDs []uint
}

func (r MultiCheckoutRequest) validate() error {
	switch {
	case r.FeeID == 0:
		return invalid("fee", "is required")
	case r.AccountID == 0:
		return invalid("account", "is required")
	case r.ProfileID == 0:
		return invalid("profile", "is required")
	case r.EventID == 0:
		return invalid("event", "is required")
	case len(r.PersonIDs) == 0:
		return invalid("persons", "at least one person is required")
	}
	for _, id := range r.PersonIDs {
		if id == 0 {
			return invalid("persons", "contains an empty id")
		}
	}
	return nil
}

// CheckoutResult carries what the client needs to confirm the payment.
type CheckoutResult struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	PaymentID       uint            `json:"paymentId"`
	Amount          decimal.Decimal `json:"amount"`
	Reused          bool            `json:"reused"`
}

// InvoiceRequest issues an ad hoc invoice to a person.
type InvoiceRequest struct {
	AccountID       uint
	PersonID        uint
	RosterID        *uint
	CustomerID      string
	StripeAccountID string
	AthleteName     string
	TeamName        string
	Amount          decimal.Decimal
	Description     string
	IsCustomInvoice bool
}

func (r InvoiceRequest) validate() error {
	switch {
	case r.AccountID == 0:
		return invalid("accountId", "is required")
	case r.PersonID == 0:
		return invalid("person_id", "is required")
	case !r.Amount.IsPositive():
		return invalid("amount", "must be greater than zero")
	case !r.Amount.Equal(r.Amount.Round(2)):
		return invalid("amount", "must not have more than two decimal places")
	case r.IsCustomInvoice && r.Description == "":
		return invalid("description", "is required for custom invoices")
	}
	return nil
}

// InvoiceResult pairs the gateway invoice with the local ledger row.
type InvoiceResult struct {
	Invoice         *gateway.Invoice `json:"invoice"`
	InternalInvoice *models.Invoice  `json:"internal_invoice"`
}

// WebhookResult reports how a delivery was handled.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
}

package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the subset of the payment gateway the billing flows need. Every
// call takes the tenant's connected account id; "" means the platform account.
type Client interface {
	FindOrCreateCustomer(ctx context.Context, connectedAccount string, in CustomerInput) (*Customer, error)
	CreatePaymentIntent(ctx context.Context, connectedAccount string, in PaymentIntentInput) (*PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, connectedAccount, id string) (*PaymentIntent, error)
	CreateInvoice(ctx context.Context, connectedAccount string, in InvoiceInput) (*Invoice, error)
	AddInvoiceItem(ctx context.Context, connectedAccount string, in InvoiceItemInput) error
	FinalizeInvoice(ctx context.Context, connectedAccount, invoiceID string) (*Invoice, error)
	SendInvoice(ctx context.Context, connectedAccount, invoiceID string) (*Invoice, error)
}

type CustomerInput struct {
	Email string
	Name  string
	Phone string
}

type Customer struct {
	ID    string
	Email string
}

// PaymentIntentInput amounts are in major units; the client converts.
type PaymentIntentInput struct {
	Customer       string
	Amount         decimal.Decimal
	ApplicationFee *decimal.Decimal
	Description    string
	Metadata       Metadata
	IdempotencyKey string
}

type PaymentIntent struct {
	ID             string
	ClientSecret   string
	Status         string
	Amount         decimal.Decimal
	ApplicationFee decimal.Decimal
	Metadata       Metadata
}

type InvoiceInput struct {
	Customer       string
	DaysUntilDue   int64
	ApplicationFee *decimal.Decimal
	Description    string
	Metadata       Metadata
	IdempotencyKey string
}

type InvoiceItemInput struct {
	Customer    string
	Invoice     string
	Amount      decimal.Decimal
	Description string
}

type Invoice struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Status    string `json:"status"`
	HostedURL string `json:"hosted_invoice_url,omitempty"`
}

// Event is a verified webhook notification reduced to what reconciliation
// reads.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Account string
	Object  EventObject
	Payload []byte
}

// EventObject is the gateway object the event describes.
type EventObject struct {
	ID       string   `json:"id"`
	Object   string   `json:"object"`
	Status   string   `json:"status"`
	Number   string   `json:"number"`
	Metadata Metadata `json:"metadata"`
}

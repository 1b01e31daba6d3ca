package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"
)

const (
	defaultCurrency     = "usd"
	DefaultTimeout      = 20 * time.Second
	defaultDaysUntilDue = 30
)

// StripeConfig configures StripeClient.
type StripeConfig struct {
	SecretKey string
	Currency  string
	Timeout   time.Duration
}

// StripeClient implements Client on top of Stripe Connect. Each call is
// bounded by the configured timeout.
type StripeClient struct {
	sc       *stripe.Client
	currency string
	timeout  time.Duration
}

func NewStripeClient(cfg StripeConfig) (*StripeClient, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("stripe secret key is required")
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &StripeClient{
		sc:       stripe.NewClient(key),
		currency: currency,
		timeout:  timeout,
	}, nil
}

func (c *StripeClient) FindOrCreateCustomer(ctx context.Context, connectedAccount string, in CustomerInput) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	email := strings.TrimSpace(in.Email)
	if email != "" {
		listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
		listParams.Limit = stripe.Int64(1)
		if connectedAccount != "" {
			listParams.SetStripeAccount(connectedAccount)
		}
		for cust, err := range c.sc.V1Customers.List(ctx, listParams) {
			if err != nil {
				return nil, wrapStripeError("list customers", err)
			}
			if in.Phone != "" && cust.Phone != in.Phone {
				c.refreshPhone(ctx, connectedAccount, cust.ID, in.Phone)
			}
			return &Customer{ID: cust.ID, Email: cust.Email}, nil
		}
	}

	params := &stripe.CustomerCreateParams{
		Email: optionalString(email),
		Name:  optionalString(in.Name),
		Phone: optionalString(in.Phone),
	}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	cust, err := c.sc.V1Customers.Create(ctx, params)
	if err != nil {
		return nil, wrapStripeError("create customer", err)
	}
	log.Infof("[Stripe] created customer %s on account %q", cust.ID, connectedAccount)
	return &Customer{ID: cust.ID, Email: cust.Email}, nil
}

// refreshPhone is best-effort; a stale phone number must not block checkout.
func (c *StripeClient) refreshPhone(ctx context.Context, connectedAccount, customerID, phone string) {
	params := &stripe.CustomerUpdateParams{Phone: stripe.String(phone)}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	if _, err := c.sc.V1Customers.Update(ctx, customerID, params); err != nil {
		log.Warnf("[Stripe] failed to update phone for customer %s: %v", customerID, err)
	}
}

func (c *StripeClient) CreatePaymentIntent(ctx context.Context, connectedAccount string, in PaymentIntentInput) (*PaymentIntent, error) {
	if err := in.Metadata.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(ToMinorUnits(in.Amount)),
		Currency:    stripe.String(c.currency),
		Customer:    optionalString(in.Customer),
		Description: optionalString(in.Description),
		Metadata:    in.Metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.ApplicationFee != nil {
		params.ApplicationFeeAmount = stripe.Int64(ToMinorUnits(*in.ApplicationFee))
	}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := c.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, wrapStripeError("create payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (c *StripeClient) RetrievePaymentIntent(ctx context.Context, connectedAccount, id string) (*PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PaymentIntentRetrieveParams{}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	pi, err := c.sc.V1PaymentIntents.Retrieve(ctx, id, params)
	if err != nil {
		return nil, wrapStripeError("retrieve payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (c *StripeClient) CreateInvoice(ctx context.Context, connectedAccount string, in InvoiceInput) (*Invoice, error) {
	if err := in.Metadata.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	days := in.DaysUntilDue
	if days <= 0 {
		days = defaultDaysUntilDue
	}
	params := &stripe.InvoiceCreateParams{
		Customer:                    stripe.String(in.Customer),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:                stripe.Int64(days),
		Description:                 optionalString(in.Description),
		Metadata:                    in.Metadata,
		AutoAdvance:                 stripe.Bool(false),
		PendingInvoiceItemsBehavior: stripe.String("exclude"),
	}
	if in.ApplicationFee != nil && connectedAccount != "" {
		params.ApplicationFeeAmount = stripe.Int64(ToMinorUnits(*in.ApplicationFee))
	}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	inv, err := c.sc.V1Invoices.Create(ctx, params)
	if err != nil {
		return nil, wrapStripeError("create invoice", err)
	}
	return toInvoice(inv), nil
}

func (c *StripeClient) AddInvoiceItem(ctx context.Context, connectedAccount string, in InvoiceItemInput) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.InvoiceItemCreateParams{
		Customer:    stripe.String(in.Customer),
		Invoice:     stripe.String(in.Invoice),
		Amount:      stripe.Int64(ToMinorUnits(in.Amount)),
		Currency:    stripe.String(c.currency),
		Description: optionalString(in.Description),
	}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	if _, err := c.sc.V1InvoiceItems.Create(ctx, params); err != nil {
		return wrapStripeError("add invoice item", err)
	}
	return nil
}

func (c *StripeClient) FinalizeInvoice(ctx context.Context, connectedAccount, invoiceID string) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.InvoiceFinalizeInvoiceParams{AutoAdvance: stripe.Bool(false)}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	inv, err := c.sc.V1Invoices.FinalizeInvoice(ctx, invoiceID, params)
	if err != nil {
		return nil, wrapStripeError("finalize invoice", err)
	}
	return toInvoice(inv), nil
}

func (c *StripeClient) SendInvoice(ctx context.Context, connectedAccount, invoiceID string) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.InvoiceSendInvoiceParams{}
	if connectedAccount != "" {
		params.SetStripeAccount(connectedAccount)
	}
	inv, err := c.sc.V1Invoices.SendInvoice(ctx, invoiceID, params)
	if err != nil {
		return nil, wrapStripeError("send invoice", err)
	}
	return toInvoice(inv), nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:             pi.ID,
		ClientSecret:   pi.ClientSecret,
		Status:         string(pi.Status),
		Amount:         FromMinorUnits(pi.Amount),
		ApplicationFee: FromMinorUnits(pi.ApplicationFeeAmount),
		Metadata:       Metadata(pi.Metadata),
	}
}

func toInvoice(inv *stripe.Invoice) *Invoice {
	return &Invoice{
		ID:        inv.ID,
		Number:    inv.Number,
		Status:    string(inv.Status),
		HostedURL: inv.HostedInvoiceURL,
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return stripe.String(v)
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s: %s (%s): %w", op, stripeErr.Msg, stripeErr.Code, err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

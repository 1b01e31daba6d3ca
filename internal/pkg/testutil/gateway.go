package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
)

// Operation names understood by FakeGateway.Fail.
const (
	OpCustomer       = "customer"
	OpCreateIntent   = "create_intent"
	OpRetrieveIntent = "retrieve_intent"
	OpCreateInvoice  = "create_invoice"
	OpAddItem        = "add_item"
	OpFinalize       = "finalize"
	OpSend           = "send"
)

// IntentCall is one recorded CreatePaymentIntent call.
type IntentCall struct {
	Account string
	Input   gateway.PaymentIntentInput
}

// InvoiceCall is one recorded CreateInvoice call.
type InvoiceCall struct {
	Account string
	Input   gateway.InvoiceInput
}

// FakeGateway is an in-memory gateway.Client honouring idempotency keys.
type FakeGateway struct {
	mu sync.Mutex

	fail         map[string]error
	calls        map[string]int
	customers    map[string]*gateway.Customer
	intents      map[string]*gateway.PaymentIntent
	idempotent   map[string]string
	invoices     map[string]*gateway.Invoice
	intentCalls  []IntentCall
	invoiceCalls []InvoiceCall
	items        []gateway.InvoiceItemInput
	seq          int
}

var _ gateway.Client = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		fail:       map[string]error{},
		calls:      map[string]int{},
		customers:  map[string]*gateway.Customer{},
		intents:    map[string]*gateway.PaymentIntent{},
		idempotent: map[string]string{},
		invoices:   map[string]*gateway.Invoice{},
	}
}

// Fail makes op return err until cleared with a nil err.
func (g *FakeGateway) Fail(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.fail, op)
		return
	}
	g.fail[op] = err
}

func (g *FakeGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *FakeGateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

func (g *FakeGateway) IntentCalls() []IntentCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]IntentCall(nil), g.intentCalls...)
}

func (g *FakeGateway) InvoiceCalls() []InvoiceCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]InvoiceCall(nil), g.invoiceCalls...)
}

func (g *FakeGateway) Items() []gateway.InvoiceItemInput {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.InvoiceItemInput(nil), g.items...)
}

func (g *FakeGateway) Intent(id string) *gateway.PaymentIntent {
	g.mu.Lock()
	defer g.mu.Unlock()
	pi, ok := g.intents[id]
	if !ok {
		return nil
	}
	cp := *pi
	return &cp
}

func (g *FakeGateway) SetIntentStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pi, ok := g.intents[id]; ok {
		pi.Status = status
	}
}

func (g *FakeGateway) begin(op string) error {
	g.mu.Lock()
	g.calls[op]++
	return g.fail[op]
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_fake_%d", prefix, g.seq)
}

func (g *FakeGateway) FindOrCreateCustomer(_ context.Context, connectedAccount string, in gateway.CustomerInput) (*gateway.Customer, error) {
	err := g.begin(OpCustomer)
	defer g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	key := connectedAccount + "|" + in.Email
	if in.Email != "" {
		if c, ok := g.customers[key]; ok {
			return c, nil
		}
	}
	c := &gateway.Customer{ID: g.nextID("cus"), Email: in.Email}
	if in.Email != "" {
		g.customers[key] = c
	}
	return c, nil
}

func (g *FakeGateway) CreatePaymentIntent(_ context.Context, connectedAccount string, in gateway.PaymentIntentInput) (*gateway.PaymentIntent, error) {
	err := g.begin(OpCreateIntent)
	defer g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		if id, ok := g.idempotent[in.IdempotencyKey]; ok {
			cp := *g.intents[id]
			return &cp, nil
		}
	}

	g.intentCalls = append(g.intentCalls, IntentCall{Account: connectedAccount, Input: in})
	id := g.nextID("pi")
	pi := &gateway.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       in.Amount,
		Metadata:     in.Metadata,
	}
	if in.ApplicationFee != nil {
		pi.ApplicationFee = *in.ApplicationFee
	}
	g.intents[id] = pi
	if in.IdempotencyKey != "" {
		g.idempotent[in.IdempotencyKey] = id
	}
	cp := *pi
	return &cp, nil
}

func (g *FakeGateway) RetrievePaymentIntent(_ context.Context, _ string, id string) (*gateway.PaymentIntent, error) {
	err := g.begin(OpRetrieveIntent)
	defer g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pi, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent: %s", id)
	}
	cp := *pi
	return &cp, nil
}

func (g *FakeGateway) CreateInvoice(_ context.Context, connectedAccount string, in gateway.InvoiceInput) (*gateway.Invoice, error) {
	err := g.begin(OpCreateInvoice)
	defer g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	g.invoiceCalls = append(g.invoiceCalls, InvoiceCall{Account: connectedAccount, Input: in})
	inv := &gateway.Invoice{ID: g.nextID("in"), Status: "draft"}
	g.invoices[inv.ID] = inv
	cp := *inv
	return &cp, nil
}

func (g *FakeGateway) AddInvoiceItem(_ context.Context, _ string, in gateway.InvoiceItemInput) error {
	err := g.begin(OpAddItem)
	defer g.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := g.invoices[in.Invoice]; !ok {
		return fmt.Errorf("no such invoice: %s", in.Invoice)
	}
	g.items = append(g.items, in)
	return nil
}

func (g *FakeGateway) FinalizeInvoice(_ context.Context, _ string, invoiceID string) (*gateway.Invoice, error) {
	err := g.begin(OpFinalize)
	defer g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("no such invoice: %s", invoiceID)
	}
	inv.Status = "open"
	inv.Number = fmt.Sprintf("INV-%04d", g.seq)
	cp := *inv
	return &cp, nil
}

func (g *FakeGateway) SendInvoice(_ context.Context, _ string, invoiceID string) (*gateway.Invoice, error) {
	err := g.begin(OpSend)
	defer g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("no such invoice: %s", invoiceID)
	}
	inv.HostedURL = "https://invoice.example.test/" + inv.ID
	cp := *inv
	return &cp, nil
}

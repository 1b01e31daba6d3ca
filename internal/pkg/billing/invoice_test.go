package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/alumup/athletesapp-sub001/internal/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) invoiceRequest(amount string) InvoiceRequest {
	return InvoiceRequest{
		AccountID:   h.fx.Account.ID,
		PersonID:    h.fx.Person.ID,
		AthleteName: "Jamie Doe",
		TeamName:    "U12 Blue",
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestCreateInvoiceSendsAndRecordsMetadata(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.CreateInvoice(context.Background(), h.invoiceRequest("33.33"))
	require.NoError(t, err)
	require.NotNil(t, res.Invoice)
	require.NotNil(t, res.InternalInvoice)

	inv := res.InternalInvoice
	assert.Equal(t, models.InvoiceStatusSent, inv.Status)
	assert.Equal(t, res.Invoice.ID, inv.GatewayInvoiceID)
	assert.NotEmpty(t, inv.InvoiceNumber)

	meta := inv.ParsedMetadata()
	assert.Equal(t, res.Invoice.ID, meta.GatewayInvoiceID)
	assert.Equal(t, "1.00", meta.ApplicationFeeAmount)
	assert.Equal(t, "U12 Blue fees for Jamie Doe", meta.Description)
	assert.Empty(t, meta.FailedStep)

	calls := h.gw.InvoiceCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "acct_test123", calls[0].Account)
	assert.Equal(t, int64(30), calls[0].Input.DaysUntilDue)
	require.NotNil(t, calls[0].Input.ApplicationFee)
	assert.Equal(t, int64(100), gateway.ToMinorUnits(*calls[0].Input.ApplicationFee))
	invoiceID, ok := calls[0].Input.Metadata.Uint(gateway.MetaInvoiceID)
	assert.True(t, ok)
	assert.Equal(t, inv.ID, invoiceID)

	items := h.gw.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(3333), gateway.ToMinorUnits(items[0].Amount))
}

func TestCreateInvoiceCustomDescriptionAndCustomer(t *testing.T) {
	h := newHarness(t)

	req := h.invoiceRequest("10")
	req.IsCustomInvoice = true
	req.Description = "Replacement jersey"
	req.CustomerID = "cus_known"
	res, err := h.svc.CreateInvoice(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Replacement jersey", res.InternalInvoice.ParsedMetadata().Description)
	assert.Equal(t, "cus_known", h.gw.InvoiceCalls()[0].Input.Customer)
	assert.Zero(t, h.gw.Calls(testutil.OpCustomer))
}

func TestCreateInvoiceValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		edit  func(r *InvoiceRequest)
		field string
	}{
		{name: "amount", edit: func(r *InvoiceRequest) { r.Amount = decimal.Zero }, field: "amount"},
		{name: "sub-cent amount", edit: func(r *InvoiceRequest) { r.Amount = decimal.RequireFromString("1.005") }, field: "amount"},
		{name: "person", edit: func(r *InvoiceRequest) { r.PersonID = 0 }, field: "person_id"},
		{name: "custom without description", edit: func(r *InvoiceRequest) { r.IsCustomInvoice = true }, field: "description"},
		{name: "mismatched stripe account", edit: func(r *InvoiceRequest) { r.StripeAccountID = "acct_other" }, field: "stripeAccountId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := h.invoiceRequest("25")
			tc.edit(&req)
			_, err := h.svc.CreateInvoice(ctx, req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assert.Zero(t, h.gw.TotalCalls())
	var count int64
	require.NoError(t, h.db.Model(&models.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateInvoiceFailureRecordsStep(t *testing.T) {
	steps := []struct {
		op     string
		step   string
		status string
	}{
		{testutil.OpCreateInvoice, InvoiceStepCreate, models.InvoiceStatusFailed},
		{testutil.OpAddItem, InvoiceStepAddItem, models.InvoiceStatusSendFailed},
		{testutil.OpFinalize, InvoiceStepFinalize, models.InvoiceStatusSendFailed},
		{testutil.OpSend, InvoiceStepSend, models.InvoiceStatusSendFailed},
	}

	for _, tc := range steps {
		t.Run(tc.step, func(t *testing.T) {
			h := newHarness(t)
			h.gw.Fail(tc.op, errors.New("gateway unavailable"))

			_, err := h.svc.CreateInvoice(context.Background(), h.invoiceRequest("40"))
			require.ErrorIs(t, err, ErrInvoiceFailed)

			var invoices []models.Invoice
			require.NoError(t, h.db.Find(&invoices).Error)
			require.Len(t, invoices, 1)
			inv := invoices[0]
			assert.Equal(t, tc.status, inv.Status)

			meta := inv.ParsedMetadata()
			assert.Equal(t, tc.step, meta.FailedStep)
			assert.Contains(t, meta.FailureReason, "gateway unavailable")
			if tc.step == InvoiceStepCreate {
				assert.Empty(t, inv.GatewayInvoiceID)
			} else {
				assert.NotEmpty(t, inv.GatewayInvoiceID)
				assert.Equal(t, inv.GatewayInvoiceID, meta.GatewayInvoiceID)
			}
		})
	}
}

func TestInvoicePaidAfterSendFailureSettles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gw.Fail(testutil.OpSend, errors.New("send timed out"))

	_, err := h.svc.CreateInvoice(ctx, h.invoiceRequest("40"))
	require.ErrorIs(t, err, ErrInvoiceFailed)

	var inv models.Invoice
	require.NoError(t, h.db.First(&inv).Error)
	require.Equal(t, models.InvoiceStatusSendFailed, inv.Status)
	require.NotEmpty(t, inv.GatewayInvoiceID)

	meta := gateway.Metadata{}
	meta.SetUint(gateway.MetaInvoiceID, inv.ID)
	meta.SetUint(gateway.MetaPersonID, h.fx.Person.ID)
	_, err = h.svc.ProcessEvent(ctx, invoiceEvent("evt_paid_late", "invoice.paid", inv.GatewayInvoiceID, time.Now(), meta))
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSucceeded, h.invoice(t, inv.ID).Status)
}

func TestCreateInvoiceFallsBackToRequestedStripeAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Model(&models.Account{ID: h.fx.Account.ID}).Update("gateway_account_id", nil).Error)

	req := h.invoiceRequest("20")
	req.StripeAccountID = "acct_requested"
	_, err := h.svc.CreateInvoice(ctx, req)
	require.NoError(t, err)

	_, err = h.svc.CreateInvoice(ctx, h.invoiceRequest("20"))
	require.NoError(t, err)

	calls := h.gw.InvoiceCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "acct_requested", calls[0].Account)
	require.NotNil(t, calls[0].Input.ApplicationFee)
	assert.Equal(t, int64(60), gateway.ToMinorUnits(*calls[0].Input.ApplicationFee))
	assert.Equal(t, "", calls[1].Account)
	assert.Nil(t, calls[1].Input.ApplicationFee, "no fee on the platform account")
}

func TestInvoiceStatusNeverRegresses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.CreateInvoice(ctx, h.invoiceRequest("75"))
	require.NoError(t, err)
	inv := res.InternalInvoice
	gwID := inv.GatewayInvoiceID

	meta := gateway.Metadata{}
	meta.SetUint(gateway.MetaInvoiceID, inv.ID)
	meta.SetUint(gateway.MetaPersonID, h.fx.Person.ID)
	base := time.Now()

	_, err = h.svc.ProcessEvent(ctx, invoiceEvent("evt_fin", "invoice.finalized", gwID, base, meta))
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSent, h.invoice(t, inv.ID).Status, "invoiced leaves the invoice alone")

	_, err = h.svc.ProcessEvent(ctx, invoiceEvent("evt_paid", "invoice.paid", gwID, base.Add(time.Minute), meta))
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSucceeded, h.invoice(t, inv.ID).Status)

	_, err = h.svc.ProcessEvent(ctx, invoiceEvent("evt_fail", "invoice.payment_failed", gwID, base.Add(2*time.Minute), meta))
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSucceeded, h.invoice(t, inv.ID).Status)
}

func TestInvoiceEventMatchesByGatewayID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.CreateInvoice(ctx, h.invoiceRequest("12.50"))
	require.NoError(t, err)

	_, err = h.svc.ProcessEvent(ctx, invoiceEvent("evt_paid", "invoice.payment_succeeded", res.Invoice.ID, time.Now(), gateway.Metadata{}))
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSucceeded, h.invoice(t, res.InternalInvoice.ID).Status)

	_, err = h.svc.ProcessEvent(ctx, invoiceEvent("evt_other", "invoice.paid", "in_unknown", time.Now(), gateway.Metadata{}))
	assert.NoError(t, err)
}

func TestRosterInvoiceEventsUpdatePayments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	roster := models.Roster{AccountID: h.fx.Account.ID, TeamName: "U14 Gold", PersonID: h.fx.Person.ID, FeeID: &h.fx.Fee.ID}
	require.NoError(t, h.db.Create(&roster).Error)

	checkout, err := h.svc.CreateCharge(ctx, h.checkoutRequest())
	require.NoError(t, err)

	req := h.invoiceRequest("50")
	req.TeamName = ""
	req.RosterID = &roster.ID
	res, err := h.svc.CreateInvoice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "U14 Gold fees for Jamie Doe", res.InternalInvoice.ParsedMetadata().Description)

	meta := h.gw.InvoiceCalls()[0].Input.Metadata
	feeID, ok := meta.Uint(gateway.MetaFeeID)
	require.True(t, ok)
	assert.Equal(t, h.fx.Fee.ID, feeID)

	_, err = h.svc.ProcessEvent(ctx, invoiceEvent("evt_created", "invoice.created", res.Invoice.ID, time.Now(), meta))
	require.NoError(t, err)

	p := h.payments(t)[0]
	assert.Equal(t, checkout.PaymentID, p.ID)
	assert.Equal(t, models.PaymentStatusInvoiced, p.Status)
}

func TestFailStaleDraftInvoices(t *testing.T) {
	now := time.Now()
	h := newHarness(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	stale := models.Invoice{AccountID: h.fx.Account.ID, PersonID: h.fx.Person.ID, Amount: decimal.NewFromInt(5), Status: models.InvoiceStatusDraft}
	fresh := stale
	sent := stale
	sent.Status = models.InvoiceStatusSent
	issued := stale
	issued.GatewayInvoiceID = "in_issued"
	require.NoError(t, h.db.Create(&stale).Error)
	require.NoError(t, h.db.Create(&fresh).Error)
	require.NoError(t, h.db.Create(&sent).Error)
	require.NoError(t, h.db.Create(&issued).Error)
	for _, inv := range []*models.Invoice{&stale, &sent, &issued} {
		require.NoError(t, h.db.Model(inv).UpdateColumn("created_at", now.Add(-3*time.Hour)).Error)
	}

	n, err := h.svc.FailStaleDraftInvoices(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.InvoiceStatusFailed, h.invoice(t, stale.ID).Status)
	assert.Equal(t, models.InvoiceStatusDraft, h.invoice(t, fresh.ID).Status)
	assert.Equal(t, models.InvoiceStatusSent, h.invoice(t, sent.ID).Status)
	assert.Equal(t, models.InvoiceStatusDraft, h.invoice(t, issued.ID).Status, "gateway invoice exists")
}

package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/gofiber/fiber/v2/log"
)

const (
	invoiceDaysUntilDue  = 30
	maxFailureReasonSize = 500
)

// Steps of the invoice pipeline, recorded on a failed draft.
const (
	InvoiceStepCustomer = "customer"
	InvoiceStepCreate   = "create"
	InvoiceStepAddItem  = "add_item"
	InvoiceStepFinalize = "finalize"
	InvoiceStepSend     = "send"
)

// CreateInvoice records a draft, issues it through the gateway and marks it
// sent. A gateway failure records the step that broke. The draft fails
// outright while no gateway invoice exists; afterwards it moves to
// send_failed so payment webhooks can still settle it.
func (s *Service) CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResult, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.StripeAccountID = strings.TrimSpace(req.StripeAccountID)
	req.Description = strings.TrimSpace(req.Description)
	if err := req.validate(); err != nil {
		return nil, err
	}

	account, err := s.repos.Account.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, lookupErr("account", req.AccountID, err)
	}
	person, err := s.repos.Person.GetByID(ctx, req.PersonID)
	if err != nil {
		return nil, lookupErr("person", req.PersonID, err)
	}
	if person.AccountID != account.ID {
		return nil, invalid("person_id", "does not belong to account")
	}

	var roster *models.Roster
	if req.RosterID != nil && *req.RosterID != 0 {
		roster, err = s.repos.Roster.GetByID(ctx, *req.RosterID)
		if err != nil {
			return nil, lookupErr("roster", *req.RosterID, err)
		}
		if roster.AccountID != account.ID || roster.PersonID != person.ID {
			return nil, invalid("rosterId", "does not belong to person")
		}
	}

	// An account without its own connected account may name one per request.
	connected := account.ConnectedAccountID()
	switch {
	case connected == "":
		connected = req.StripeAccountID
	case req.StripeAccountID != "" && req.StripeAccountID != connected:
		return nil, invalid("stripeAccountId", "does not match account")
	}

	appFee := req.Amount.Mul(s.invoiceFeeRate).Round(2)
	meta := models.InvoiceMetadata{
		ApplicationFeeAmount: appFee.StringFixed(2),
		Description:          invoiceDescription(req, roster),
	}
	inv := &models.Invoice{
		AccountID: account.ID,
		PersonID:  person.ID,
		Amount:    req.Amount,
		Status:    models.InvoiceStatusDraft,
		Metadata:  meta.JSON(),
	}
	if roster != nil {
		inv.RosterID = &roster.ID
	}
	if err := s.repos.Invoice.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create draft invoice: %w", err)
	}

	customerID := req.CustomerID
	if customerID == "" {
		customerID, err = s.personCustomer(ctx, connected, person)
		if err != nil {
			return nil, s.failDraft(ctx, inv, meta, InvoiceStepCustomer, err)
		}
	}

	gwMeta := gateway.Metadata{}
	gwMeta.SetUint(gateway.MetaInvoiceID, inv.ID)
	gwMeta.SetUint(gateway.MetaPersonID, person.ID)
	if roster != nil {
		gwMeta.SetUint(gateway.MetaRosterID, roster.ID)
		if roster.FeeID != nil {
			gwMeta.SetUint(gateway.MetaFeeID, *roster.FeeID)
		}
	}

	in := gateway.InvoiceInput{
		Customer:       customerID,
		DaysUntilDue:   invoiceDaysUntilDue,
		Description:    meta.Description,
		Metadata:       gwMeta,
		IdempotencyKey: invoiceIdempotencyKey(inv.ID),
	}
	if connected != "" {
		in.ApplicationFee = &appFee
	}

	created, err := s.gateway.CreateInvoice(ctx, connected, in)
	if err != nil {
		return nil, s.failDraft(ctx, inv, meta, InvoiceStepCreate, err)
	}
	meta.GatewayInvoiceID = created.ID
	if err := s.repos.Invoice.SetGatewayInvoiceID(ctx, inv.ID, created.ID); err != nil {
		log.Warnf("[Invoice] failed to store gateway id %s on invoice %d: %v", created.ID, inv.ID, err)
	}

	if err := s.gateway.AddInvoiceItem(ctx, connected, gateway.InvoiceItemInput{
		Customer:    customerID,
		Invoice:     created.ID,
		Amount:      req.Amount,
		Description: meta.Description,
	}); err != nil {
		return nil, s.failDraft(ctx, inv, meta, InvoiceStepAddItem, err)
	}

	finalized, err := s.gateway.FinalizeInvoice(ctx, connected, created.ID)
	if err != nil {
		return nil, s.failDraft(ctx, inv, meta, InvoiceStepFinalize, err)
	}
	sent, err := s.gateway.SendInvoice(ctx, connected, created.ID)
	if err != nil {
		return nil, s.failDraft(ctx, inv, meta, InvoiceStepSend, err)
	}

	number := sent.Number
	if number == "" {
		number = finalized.Number
	}
	meta.HostedURL = sent.HostedURL
	n, err := s.repos.Invoice.MarkSent(ctx, inv.ID, number, meta)
	if err != nil {
		return nil, fmt.Errorf("mark invoice %d sent: %w", inv.ID, err)
	}
	if n == 0 {
		log.Infof("[Invoice] invoice %d already advanced past sent", inv.ID)
	}

	stored, err := s.repos.Invoice.GetByID(ctx, inv.ID)
	if err != nil {
		return nil, lookupErr("invoice", inv.ID, err)
	}
	log.Infof("[Invoice] sent invoice %d (%s) for person %d, amount %s", inv.ID, created.ID, person.ID, req.Amount.StringFixed(2))
	return &InvoiceResult{Invoice: sent, InternalInvoice: stored}, nil
}

func (s *Service) failDraft(ctx context.Context, inv *models.Invoice, meta models.InvoiceMetadata, step string, cause error) error {
	meta.FailedStep = step
	meta.FailureReason = cause.Error()
	if len(meta.FailureReason) > maxFailureReasonSize {
		meta.FailureReason = meta.FailureReason[:maxFailureReasonSize]
	}

	mark, status := s.repos.Invoice.MarkFailed, models.InvoiceStatusFailed
	if meta.GatewayInvoiceID != "" {
		mark, status = s.repos.Invoice.MarkSendFailed, models.InvoiceStatusSendFailed
	}
	if _, err := mark(context.WithoutCancel(ctx), inv.ID, meta); err != nil {
		log.Errorf("[Invoice] failed to mark invoice %d %s: %v", inv.ID, status, err)
	}
	log.Errorf("[Invoice] invoice %d failed at %s: %v", inv.ID, step, cause)
	return fmt.Errorf("%w: %s: %w", ErrInvoiceFailed, step, cause)
}

func invoiceDescription(req InvoiceRequest, roster *models.Roster) string {
	if req.IsCustomInvoice {
		return req.Description
	}

	team := strings.TrimSpace(req.TeamName)
	if team == "" && roster != nil {
		team = roster.TeamName
	}
	athlete := strings.TrimSpace(req.AthleteName)

	switch {
	case team != "" && athlete != "":
		return fmt.Sprintf("%s fees for %s", team, athlete)
	case team != "":
		return team + " fees"
	case athlete != "":
		return "Fees for " + athlete
	case req.Description != "":
		return req.Description
	default:
		return "Team fees"
	}
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
)

const (
	eventPrefixPaymentIntent = "payment_intent."
	eventPrefixInvoice       = "invoice."
)

// HandleWebhook verifies a raw delivery and reconciles it into the ledger.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature, secret string) (*WebhookResult, error) {
	event, err := gateway.ParseWebhookEvent(payload, signature, secret)
	if err != nil {
		return nil, err
	}
	return s.ProcessEvent(ctx, event)
}

// ProcessEvent records a verified event and applies it once. Redeliveries of
// an event already applied without error are acknowledged as duplicates.
func (s *Service) ProcessEvent(ctx context.Context, event *gateway.Event) (*WebhookResult, error) {
	result := &WebhookResult{EventID: event.ID, EventType: event.Type}

	created, stored, err := s.repos.WebhookEvent.CreateIfNotExists(ctx, &models.GatewayWebhookEvent{
		Gateway:        models.GatewayStripe,
		EventID:        event.ID,
		EventType:      event.Type,
		AccountID:      event.Account,
		Payload:        datatypes.JSON(event.Payload),
		EventCreatedAt: event.Created,
	})
	if err != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", event.ID, err)
	}
	if !created && stored.Handled() {
		log.Infof("[Webhook] duplicate delivery of %s (%s)", event.ID, event.Type)
		result.Duplicate = true
		return result, nil
	}

	procErr := s.ReconcileEvent(ctx, event)
	processingError := ""
	if procErr != nil {
		processingError = procErr.Error()
	}
	if err := s.repos.WebhookEvent.MarkProcessed(context.WithoutCancel(ctx), stored.ID, processingError); err != nil {
		log.Warnf("[Webhook] failed to mark %s processed: %v", event.ID, err)
	}
	return result, procErr
}

// ReconcileEvent dispatches a verified event by type.
func (s *Service) ReconcileEvent(ctx context.Context, event *gateway.Event) error {
	switch {
	case strings.HasPrefix(event.Type, eventPrefixPaymentIntent):
		return s.reconcilePaymentIntent(ctx, event)
	case strings.HasPrefix(event.Type, eventPrefixInvoice):
		status, ok := invoiceEventStatus(event.Type)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnhandledEvent, event.Type)
		}
		return s.reconcileInvoice(ctx, event, status)
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledEvent, event.Type)
	}
}

// paymentIntentStatus maps an intent event into the payment status domain.
func paymentIntentStatus(eventType, objectStatus string) string {
	switch {
	case eventType == "payment_intent.payment_failed":
		return models.PaymentStatusFailed
	case objectStatus == "succeeded", eventType == "payment_intent.succeeded":
		return models.PaymentStatusSucceeded
	case objectStatus == "canceled", eventType == "payment_intent.canceled":
		return models.PaymentStatusCanceled
	default:
		return models.PaymentStatusPending
	}
}

func invoiceEventStatus(eventType string) (string, bool) {
	switch eventType {
	case "invoice.created", "invoice.finalized":
		return models.PaymentStatusInvoiced, true
	case "invoice.paid", "invoice.payment_succeeded":
		return models.PaymentStatusSucceeded, true
	case "invoice.payment_failed":
		return models.PaymentStatusFailed, true
	default:
		return "", false
	}
}

func (s *Service) reconcilePaymentIntent(ctx context.Context, event *gateway.Event) error {
	status := paymentIntentStatus(event.Type, event.Object.Status)
	err := s.applyIntentStatus(ctx, event, status)
	if status != models.PaymentStatusSucceeded {
		return err
	}
	return errors.Join(err, s.markAttendancesPaid(ctx, event))
}

func (s *Service) applyIntentStatus(ctx context.Context, event *gateway.Event, status string) error {
	obj := event.Object
	n, err := s.repos.Payment.ApplyIntentEvent(ctx, obj.ID, status, event.Payload, event.Created)
	if err != nil {
		return fmt.Errorf("apply %s to intent %s: %w", event.Type, obj.ID, err)
	}
	if n > 0 {
		log.Infof("[Webhook] intent %s -> %s", obj.ID, status)
		return nil
	}

	_, err = s.repos.Payment.GetByIntentID(ctx, obj.ID)
	if err == nil {
		// Already at or past this event.
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	paymentID, ok := obj.Metadata.Uint(gateway.MetaPaymentID)
	if !ok {
		if _, ours := obj.Metadata.Uint(gateway.MetaFeeID); ours {
			return fmt.Errorf("%w: intent %s", ErrPaymentPending, obj.ID)
		}
		log.Infof("[Webhook] ignoring %s for unknown intent %s", event.Type, obj.ID)
		return nil
	}

	// The intent was created but its id never reached the reservation.
	if err := s.repos.Payment.SetIntentID(ctx, paymentID, obj.ID); err != nil {
		return fmt.Errorf("link intent %s to payment %d: %w", obj.ID, paymentID, err)
	}
	n, err = s.repos.Payment.ApplyIntentEvent(ctx, obj.ID, status, event.Payload, event.Created)
	if err != nil {
		return fmt.Errorf("apply %s to intent %s: %w", event.Type, obj.ID, err)
	}
	if n == 0 {
		log.Warnf("[Webhook] intent %s names payment %d which is not in the ledger", obj.ID, paymentID)
	}
	return nil
}

// markAttendancesPaid reads the RSVP ids from single (rsvp_id, legacy rsvp)
// or multi (rsvp_ids) metadata.
func (s *Service) markAttendancesPaid(ctx context.Context, event *gateway.Event) error {
	ids, err := rsvpIDsFromMetadata(event.Object.Metadata)
	if err != nil {
		return fmt.Errorf("intent %s: %w", event.Object.ID, err)
	}
	if len(ids) == 0 {
		return nil
	}
	n, err := s.repos.Attendance.MarkPaid(ctx, ids)
	if err != nil {
		return fmt.Errorf("mark attendances paid for intent %s: %w", event.Object.ID, err)
	}
	if n > 0 {
		log.Infof("[Webhook] marked %d attendance(s) paid for intent %s", n, event.Object.ID)
	}
	return nil
}

func rsvpIDsFromMetadata(meta gateway.Metadata) ([]uint, error) {
	if strings.TrimSpace(meta[gateway.MetaRsvpIDs]) != "" {
		return meta.IDs(gateway.MetaRsvpIDs)
	}
	if id, ok := meta.Uint(gateway.MetaRsvpID); ok {
		return []uint{id}, nil
	}
	if id, ok := meta.Uint(gateway.MetaLegacyRsvp); ok {
		return []uint{id}, nil
	}
	return nil, nil
}

func (s *Service) reconcileInvoice(ctx context.Context, event *gateway.Event, status string) error {
	obj := event.Object

	feeID, hasFee := obj.Metadata.Uint(gateway.MetaFeeID)
	personID, hasPerson := obj.Metadata.Uint(gateway.MetaPersonID)
	if hasFee && hasPerson {
		n, err := s.repos.Payment.ApplyObligationEvent(ctx, feeID, personID, status, event.Payload, event.Created)
		if err != nil {
			return fmt.Errorf("apply %s to payments of fee %d person %d: %w", event.Type, feeID, personID, err)
		}
		if n > 0 {
			log.Infof("[Webhook] %s moved %d payment(s) of fee %d person %d to %s", event.Type, n, feeID, personID, status)
		}
	}

	target := invoiceTargetStatus(status)
	if target == "" {
		return nil
	}
	inv, err := s.findInvoice(ctx, obj)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Infof("[Webhook] no local invoice for %s", obj.ID)
			return nil
		}
		return err
	}
	n, err := s.repos.Invoice.ApplyEvent(ctx, inv.ID, target, event.Created)
	if err != nil {
		return fmt.Errorf("apply %s to invoice %d: %w", event.Type, inv.ID, err)
	}
	if n > 0 {
		log.Infof("[Webhook] invoice %d -> %s", inv.ID, target)
	}
	return nil
}

// invoiceTargetStatus returns the invoice status an event status implies.
// "invoiced" leaves the invoice untouched.
func invoiceTargetStatus(status string) string {
	switch status {
	case models.PaymentStatusSucceeded:
		return models.InvoiceStatusSucceeded
	case models.PaymentStatusFailed:
		return models.InvoiceStatusFailed
	default:
		return ""
	}
}

func (s *Service) findInvoice(ctx context.Context, obj gateway.EventObject) (*models.Invoice, error) {
	if id, ok := obj.Metadata.Uint(gateway.MetaInvoiceID); ok {
		inv, err := s.repos.Invoice.GetByID(ctx, id)
		switch {
		case err == nil && (inv.GatewayInvoiceID == "" || inv.GatewayInvoiceID == obj.ID):
			return inv, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}
	return s.repos.Invoice.GetByGatewayInvoiceID(ctx, obj.ID)
}

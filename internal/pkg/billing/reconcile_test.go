package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestPaymentIntentStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		eventType    string
		objectStatus string
		want         string
	}{
		{"payment_intent.succeeded", "succeeded", models.PaymentStatusSucceeded},
		{"payment_intent.canceled", "canceled", models.PaymentStatusCanceled},
		{"payment_intent.payment_failed", "requires_payment_method", models.PaymentStatusFailed},
		{"payment_intent.created", "requires_payment_method", models.PaymentStatusPending},
		{"payment_intent.processing", "processing", models.PaymentStatusPending},
		{"payment_intent.requires_action", "requires_action", models.PaymentStatusPending},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, paymentIntentStatus(tc.eventType, tc.objectStatus), tc.eventType)
	}
}

func TestInvoiceEventStatusMapping(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invoice.created":           models.PaymentStatusInvoiced,
		"invoice.finalized":         models.PaymentStatusInvoiced,
		"invoice.paid":              models.PaymentStatusSucceeded,
		"invoice.payment_succeeded": models.PaymentStatusSucceeded,
		"invoice.payment_failed":    models.PaymentStatusFailed,
	}
	for eventType, want := range cases {
		got, ok := invoiceEventStatus(eventType)
		assert.True(t, ok, eventType)
		assert.Equal(t, want, got, eventType)
	}
	for _, eventType := range []string{"invoice.updated", "invoice.voided", "invoice.sent"} {
		_, ok := invoiceEventStatus(eventType)
		assert.False(t, ok, eventType)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.CreateCharge(ctx, h.checkoutRequest())
	require.NoError(t, err)
	meta := h.gw.Intent(res.PaymentIntentID).Metadata
	evt := intentEvent("evt_replay", "payment_intent.succeeded", res.PaymentIntentID, "succeeded", time.Now(), meta)

	first, err := h.svc.ProcessEvent(ctx, evt)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	afterFirst := h.payments(t)

	second, err := h.svc.ProcessEvent(ctx, evt)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	// Reconciling directly, bypassing the dedup table, is a no-op too.
	require.NoError(t, h.svc.ReconcileEvent(ctx, evt))

	afterReplay := h.payments(t)
	require.Len(t, afterReplay, 1)
	assert.Equal(t, afterFirst[0].Status, afterReplay[0].Status)
	assert.Equal(t, afterFirst[0].LastEventAt.Unix(), afterReplay[0].LastEventAt.Unix())
	assert.Equal(t, models.AttendanceStatusPaid, h.attendance(t, h.fx.Attendance.ID).Status)

	var stored []models.GatewayWebhookEvent
	require.NoError(t, h.db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Handled())
}

func TestWebhookOutOfOrderEventsKeepNewestStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.CreateCharge(ctx, h.checkoutRequest())
	require.NoError(t, err)
	meta := h.gw.Intent(res.PaymentIntentID).Metadata
	t0 := time.Now().Add(-time.Hour)

	failed := intentEvent("evt_failed", "payment_intent.payment_failed", res.PaymentIntentID, "requires_payment_method", t0.Add(2*time.Minute), meta)
	created := intentEvent("evt_created", "payment_intent.created", res.PaymentIntentID, "requires_payment_method", t0, meta)

	_, err = h.svc.ProcessEvent(ctx, failed)
	require.NoError(t, err)
	_, err = h.svc.ProcessEvent(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, h.payments(t)[0].Status)

	// Same second: a lower-ranked status cannot overwrite.
	sameSecond := intentEvent("evt_same", "payment_intent.processing", res.PaymentIntentID, "processing", t0.Add(2*time.Minute), meta)
	_, err = h.svc.ProcessEvent(ctx, sameSecond)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, h.payments(t)[0].Status)

	succeeded := intentEvent("evt_ok", "payment_intent.succeeded", res.PaymentIntentID, "succeeded", t0.Add(5*time.Minute), meta)
	_, err = h.svc.ProcessEvent(ctx, succeeded)
	require.NoError(t, err)

	late := intentEvent("evt_late", "payment_intent.payment_failed", res.PaymentIntentID, "requires_payment_method", t0.Add(10*time.Minute), meta)
	_, err = h.svc.ProcessEvent(ctx, late)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, h.payments(t)[0].Status, "succeeded is terminal")
}

func TestWebhookUnhandledEventTypes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, eventType := range []string{"customer.created", "charge.refunded", "invoice.updated"} {
		evt := &gateway.Event{
			ID:      fmt.Sprintf("evt_unhandled_%d", i),
			Type:    eventType,
			Created: time.Now().UTC(),
			Object:  gateway.EventObject{ID: "obj_1", Metadata: gateway.Metadata{}},
		}
		_, err := h.svc.ProcessEvent(ctx, evt)
		assert.ErrorIs(t, err, ErrUnhandledEvent, eventType)
	}

	var stored []models.GatewayWebhookEvent
	require.NoError(t, h.db.Find(&stored).Error)
	require.Len(t, stored, 3)
	for _, e := range stored {
		assert.NotNil(t, e.ProcessedAt)
		assert.NotEmpty(t, e.ProcessingError)
		assert.False(t, e.Handled())
	}
}

func TestWebhookLegacyRsvpMetadata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.CreateCharge(ctx, h.checkoutRequest())
	require.NoError(t, err)

	meta := gateway.Metadata{}
	meta.SetUint(gateway.MetaLegacyRsvp, h.fx.Attendance.ID)
	evt := intentEvent("evt_legacy", "payment_intent.succeeded", res.PaymentIntentID, "succeeded", time.Now(), meta)
	_, err = h.svc.ProcessEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPaid, h.attendance(t, h.fx.Attendance.ID).Status)
}

func TestWebhookForUnknownIntent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	foreign := intentEvent("evt_foreign", "payment_intent.succeeded", "pi_elsewhere", "succeeded", time.Now(), gateway.Metadata{})
	_, err := h.svc.ProcessEvent(ctx, foreign)
	assert.NoError(t, err, "intents created outside checkout are ignored")

	ours := gateway.Metadata{}
	ours.SetUint(gateway.MetaFeeID, h.fx.Fee.ID)
	pending := intentEvent("evt_early", "payment_intent.created", "pi_not_yet_stored", "requires_payment_method", time.Now(), ours)
	_, err = h.svc.ProcessEvent(ctx, pending)
	assert.ErrorIs(t, err, ErrPaymentPending)
}

func TestWebhookLinksIntentMissingFromReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	key := "single:test"
	personID, rsvpID := h.fx.Person.ID, h.fx.Attendance.ID
	p := models.Payment{
		AccountID:     h.fx.Account.ID,
		PersonID:      &personID,
		ProfileID:     h.fx.Profile.ID,
		FeeID:         h.fx.Fee.ID,
		RsvpID:        &rsvpID,
		Amount:        h.fx.Fee.Amount,
		Status:        models.PaymentStatusPending,
		ObligationKey: &key,
	}
	require.NoError(t, h.db.Create(&p).Error)

	meta := gateway.Metadata{}
	meta.SetUint(gateway.MetaPaymentID, p.ID)
	meta.SetUint(gateway.MetaRsvpID, rsvpID)
	evt := intentEvent("evt_link", "payment_intent.succeeded", "pi_orphan", "succeeded", time.Now(), meta)
	_, err := h.svc.ProcessEvent(ctx, evt)
	require.NoError(t, err)

	stored := h.payments(t)
	require.Len(t, stored, 1)
	assert.Equal(t, "pi_orphan", stored[0].PaymentIntentID)
	assert.Equal(t, models.PaymentStatusSucceeded, stored[0].Status)
}

func TestHandleWebhookVerifiesSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const secret = "whsec_platform"

	res, err := h.svc.CreateCharge(ctx, h.checkoutRequest())
	require.NoError(t, err)

	payload := fmt.Sprintf(`{
  "id": "evt_signed",
  "object": "event",
  "type": "payment_intent.succeeded",
  "created": %d,
  "account": "acct_test123",
  "data": {"object": {"id": %q, "object": "payment_intent", "status": "succeeded",
    "metadata": {"rsvp_id": "%d", "fee_id": "%d"}}}
}`, time.Now().Unix(), res.PaymentIntentID, h.fx.Attendance.ID, h.fx.Fee.ID)

	_, err = h.svc.HandleWebhook(ctx, []byte(payload), "t=1,v1=bogus", secret)
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, models.PaymentStatusPending, h.payments(t)[0].Status)
	var count int64
	require.NoError(t, h.db.Model(&models.GatewayWebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count, "rejected deliveries are not recorded")

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	out, err := h.svc.HandleWebhook(ctx, signed.Payload, signed.Header, secret)
	require.NoError(t, err)
	assert.Equal(t, "evt_signed", out.EventID)
	assert.Equal(t, models.PaymentStatusSucceeded, h.payments(t)[0].Status)
	assert.Equal(t, models.AttendanceStatusPaid, h.attendance(t, h.fx.Attendance.ID).Status)
}

package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// ParseWebhookEvent verifies the Stripe-Signature header against secret and
// decodes the event. Verification failures wrap ErrInvalidSignature.
func ParseWebhookEvent(payload []byte, signature, secret string) (*Event, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidSignature)
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if evt.ID == "" || evt.Type == "" || evt.Data == nil {
		return nil, ErrMalformedEvent
	}

	var obj EventObject
	if err := json.Unmarshal(evt.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if obj.Metadata == nil {
		obj.Metadata = Metadata{}
	}

	return &Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: time.Unix(evt.Created, 0).UTC(),
		Account: evt.Account,
		Object:  obj,
		Payload: payload,
	}, nil
}

package billing

import (
	"errors"
	"fmt"

	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
)

var (
	ErrValidation       = errors.New("invalid request")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyPaid      = errors.New("attendance already paid")
	ErrCheckoutFailed   = errors.New("checkout failed")
	ErrInvoiceFailed    = errors.New("invoice failed")
	ErrInvalidSignature = gateway.ErrInvalidSignature
	ErrUnhandledEvent   = errors.New("unhandled event type")
	ErrLockUnavailable  = errors.New("obligation lock unavailable")

	// ErrPaymentPending marks an event for a payment whose ledger row has not
	// caught up yet; the gateway should redeliver.
	ErrPaymentPending = errors.New("payment not yet recorded")
)

// ValidationError names the offending request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func lookupErr(what string, id uint, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusInvoiced  = "invoiced"
	PaymentStatusFailed    = "failed"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusSucceeded = "succeeded"
)

var paymentStatusRank = map[string]int{
	PaymentStatusPending:   0,
	PaymentStatusInvoiced:  1,
	PaymentStatusFailed:    2,
	PaymentStatusCanceled:  2,
	PaymentStatusSucceeded: 3,
}

// PaymentStatusesUpTo returns the statuses ranked at or below status. Events
// carrying the same timestamp as the last applied one may only move a payment
// within this set.
func PaymentStatusesUpTo(status string) []string {
	limit, ok := paymentStatusRank[status]
	if !ok {
		return []string{status}
	}
	out := make([]string, 0, len(paymentStatusRank))
	for s, rank := range paymentStatusRank {
		if rank <= limit {
			out = append(out, s)
		}
	}
	return out
}

// Payment is the local ledger row for one gateway payment intent. While the
// payment is open, ObligationKey holds the checkout key it was reserved under;
// it is cleared once the payment succeeds or is canceled so the same
// obligation can be billed again later.
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	AccountID       uint            `gorm:"not null;index" json:"account_id"`
	PersonID        *uint           `gorm:"default:null;index:idx_payments_obligation,priority:2" json:"person_id,omitempty"`
	ProfileID       uint            `gorm:"not null;index:idx_payments_obligation,priority:3" json:"profile_id"`
	FeeID           uint            `gorm:"not null;index:idx_payments_obligation,priority:1" json:"fee_id"`
	RsvpID          *uint           `gorm:"default:null;index:idx_payments_obligation,priority:4" json:"rsvp_id,omitempty"`
	PaymentIntentID string          `gorm:"type:varchar(191);not null;default:'';index" json:"payment_intent_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ObligationKey   *string         `gorm:"type:varchar(191);default:null;uniqueIndex" json:"-"`
	Data            datatypes.JSON  `gorm:"type:json" json:"data,omitempty"`
	LastEventAt     *time.Time      `gorm:"default:null" json:"last_event_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentClosedStatuses are terminal: no event moves a payment out of them and
// they release the obligation key.
var PaymentClosedStatuses = []string{PaymentStatusSucceeded, PaymentStatusCanceled}

func IsPaymentClosed(status string) bool {
	return status == PaymentStatusSucceeded || status == PaymentStatusCanceled
}

func (p *Payment) IsOpen() bool {
	return !IsPaymentClosed(p.Status)
}

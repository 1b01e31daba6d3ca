package models

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSent      = "sent"
	InvoiceStatusSucceeded = "succeeded"
	InvoiceStatusFailed    = "failed"
	// InvoiceStatusSendFailed marks an invoice whose pipeline broke after the
	// gateway invoice was created. The gateway copy may still be paid, so
	// webhooks can settle it.
	InvoiceStatusSendFailed = "send_failed"
)

// Invoice is the local record of an invoice issued through the gateway.
// Status only moves forward: draft -> sent -> succeeded|failed. A draft fails
// directly when issuing breaks before the gateway invoice exists, and moves
// to send_failed when it breaks afterwards.
type Invoice struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	AccountID        uint            `gorm:"not null;index" json:"account_id"`
	PersonID         uint            `gorm:"not null;index" json:"person_id"`
	RosterID         *uint           `gorm:"default:null;index" json:"roster_id,omitempty"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status           string          `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	InvoiceNumber    string          `gorm:"type:varchar(100);default:''" json:"invoice_number"`
	GatewayInvoiceID string          `gorm:"type:varchar(191);default:'';index" json:"gateway_invoice_id"`
	Metadata         datatypes.JSON  `gorm:"type:json" json:"metadata"`
	LastEventAt      *time.Time      `gorm:"default:null" json:"last_event_at,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoiceMetadata is the shape of Invoice.Metadata.
type InvoiceMetadata struct {
	GatewayInvoiceID     string `json:"gateway_invoice_id,omitempty"`
	ApplicationFeeAmount string `json:"application_fee_amount,omitempty"`
	Description          string `json:"description,omitempty"`
	HostedURL            string `json:"hosted_url,omitempty"`
	FailedStep           string `json:"failed_step,omitempty"`
	FailureReason        string `json:"failure_reason,omitempty"`
}

func (m InvoiceMetadata) JSON() datatypes.JSON {
	b, err := json.Marshal(m)
	if err != nil {
		log.Warnf("[Invoice] failed to encode metadata: %v", err)
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// ParsedMetadata decodes Metadata. Invalid or empty blobs yield a zero value.
func (i *Invoice) ParsedMetadata() InvoiceMetadata {
	var m InvoiceMetadata
	if len(i.Metadata) == 0 {
		return m
	}
	if err := json.Unmarshal(i.Metadata, &m); err != nil {
		log.Warnf("[Invoice] invoice %d has unreadable metadata: %v", i.ID, err)
	}
	return m
}

// InvoiceSourceStatuses returns the statuses an invoice may be in for a
// transition to target to be allowed.
func InvoiceSourceStatuses(target string) []string {
	switch target {
	case InvoiceStatusSent, InvoiceStatusSendFailed:
		return []string{InvoiceStatusDraft}
	case InvoiceStatusSucceeded, InvoiceStatusFailed:
		return []string{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusSendFailed}
	default:
		return nil
	}
}

// CanTransitionInvoice reports whether from -> to keeps the status monotonic.
func CanTransitionInvoice(from, to string) bool {
	for _, s := range InvoiceSourceStatuses(to) {
		if s == from {
			return true
		}
	}
	return false
}

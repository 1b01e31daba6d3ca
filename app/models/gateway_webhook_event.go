package models

import (
	"time"

	"gorm.io/datatypes"
)

const GatewayStripe = "stripe"

// GatewayWebhookEvent stores every verified gateway notification. The unique
// (gateway, event_id) pair makes delivery retries idempotent.
type GatewayWebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Gateway         string         `gorm:"type:varchar(20);not null;index:ux_gateway_webhook_events_event,unique,priority:1" json:"gateway"`
	EventID         string         `gorm:"type:varchar(191);not null;index:ux_gateway_webhook_events_event,unique,priority:2" json:"event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	AccountID       string         `gorm:"type:varchar(191);default:''" json:"account_id"`
	Payload         datatypes.JSON `gorm:"type:json" json:"payload"`
	EventCreatedAt  time.Time      `gorm:"not null" json:"event_created_at"`
	ProcessedAt     *time.Time     `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// Handled reports whether an earlier delivery was applied without error.
func (e *GatewayWebhookEvent) Handled() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}

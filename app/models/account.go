package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a tenant organization collecting fees through its own connected
// gateway sub-account.
type Account struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	Name               string              `gorm:"type:varchar(191);not null" json:"name"`
	GatewayAccountID   *string             `gorm:"type:varchar(191);default:null;index" json:"gateway_account_id"`
	ApplicationFeeRate decimal.NullDecimal `gorm:"type:decimal(6,4);default:null" json:"application_fee_rate"`
	WebhookSecret      string              `gorm:"type:varchar(191);default:''" json:"-"`
	CreatedAt          time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConnectedAccountID returns the gateway sub-account id, or "" when the tenant
// has not finished onboarding.
func (a *Account) ConnectedAccountID() string {
	if a == nil || a.GatewayAccountID == nil {
		return ""
	}
	return strings.TrimSpace(*a.GatewayAccountID)
}

// ApplicationFeeFor returns the platform cut for amount. The second return is
// false when the account cannot take a fee split: both a connected account and
// a positive rate are required.
func (a *Account) ApplicationFeeFor(amount decimal.Decimal) (decimal.Decimal, bool) {
	if a.ConnectedAccountID() == "" {
		return decimal.Zero, false
	}
	if !a.ApplicationFeeRate.Valid || !a.ApplicationFeeRate.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return amount.Mul(a.ApplicationFeeRate.Decimal), true
}

package models

import (
	"strings"
	"time"
)

// Person is a member who owes or pays a fee.
type Person struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	AccountID         uint      `gorm:"not null;index" json:"account_id"`
	Name              string    `gorm:"type:varchar(191);not null" json:"name"`
	Email             string    `gorm:"type:varchar(200);default:'';index" json:"email"`
	Phone             string    `gorm:"type:varchar(50);default:''" json:"phone"`
	GatewayCustomerID *string   `gorm:"type:varchar(191);default:null" json:"gateway_customer_id,omitempty"`
	CustomerAccount   string    `gorm:"column:gateway_customer_account;type:varchar(191);default:''" json:"gateway_customer_account"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CustomerOn returns the cached gateway customer id when it was created on
// connectedAccount. CustomerAccount is "" for the platform account.
func (p *Person) CustomerOn(connectedAccount string) (string, bool) {
	if p.GatewayCustomerID == nil || strings.TrimSpace(*p.GatewayCustomerID) == "" {
		return "", false
	}
	if p.CustomerAccount != connectedAccount {
		return "", false
	}
	return *p.GatewayCustomerID, true
}

// Profile is the signed-in user paying on behalf of one or more persons.
// Profiles span tenants, so their gateway customer is resolved per connected
// account on every charge instead of being cached here.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	Email     string    `gorm:"type:varchar(200);not null;index" json:"email"`
	Phone     string    `gorm:"type:varchar(50);default:''" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

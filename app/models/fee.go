package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fee is a named obligation in major currency units, e.g. "Season Fee" 150.00.
type Fee struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID uint            `gorm:"not null;index" json:"account_id"`
	Name      string          `gorm:"type:varchar(191);not null" json:"name"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IsActive  bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index" json:"account_id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	FeeID     *uint     `gorm:"default:null;index" json:"fee_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Roster links a person to a team, optionally with the team's fee.
type Roster struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index" json:"account_id"`
	TeamName  string    `gorm:"type:varchar(191);not null" json:"team_name"`
	PersonID  uint      `gorm:"not null;index" json:"person_id"`
	FeeID     *uint     `gorm:"default:null" json:"fee_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

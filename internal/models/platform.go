package models

import (
	"time"
)

// DefaultFeeBps is the platform fee applied at settlement, in basis points.
const DefaultFeeBps = 250

// MaxFeeBps caps what the owner may set the fee to (10%).
const MaxFeeBps = 1000

// PlatformConfig is the single mutable configuration record for the escrow
// ledger: who the owner is, where fees go and at what rate. Exactly one row
// exists; all mutation goes through the owner-only admin operations.
type PlatformConfig struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	OwnerID        uint      `gorm:"not null" json:"owner_id"`
	FeeRecipientID uint      `gorm:"not null" json:"fee_recipient_id"`
	FeeBps         int64     `gorm:"not null;default:250" json:"fee_bps"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (PlatformConfig) TableName() string {
	return "platform_config"
}

package models

import (
	"time"
)

type EscrowStatus string

const (
	EscrowPending   EscrowStatus = "pending"
	EscrowDelivered EscrowStatus = "delivered"
	EscrowRefunded  EscrowStatus = "refunded"
	EscrowDisputed  EscrowStatus = "disputed"
)

// Escrow is one settlement record. Rows are append-only audit records: they
// are never deleted and, apart from status, confirmation flags and the
// terminal timestamps, never updated after creation.
type Escrow struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	BuyerID         uint   `gorm:"not null;index" json:"buyer_id"`
	SellerID        uint   `gorm:"not null;index" json:"seller_id"`
	ListingID       *uint  `gorm:"index" json:"listing_id,omitempty"`
	ItemDescription string `gorm:"type:text;not null" json:"item_description"`

	// Amount is integer cents, equal to the funds held at creation.
	Amount int64 `gorm:"not null" json:"amount"`

	Status EscrowStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	// Confirmation flags are settable only while pending and never reset.
	BuyerConfirmed  bool `gorm:"not null;default:false" json:"buyer_confirmed"`
	SellerConfirmed bool `gorm:"not null;default:false" json:"seller_confirmed"`

	DeliveryDeadline time.Time `gorm:"not null" json:"delivery_deadline"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	DisputedAt  *time.Time `json:"disputed_at,omitempty"`

	// Relations
	Buyer  User `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Seller User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

func (Escrow) TableName() string {
	return "escrows"
}

// Terminal reports whether the escrow can accept no further transitions.
func (e *Escrow) Terminal() bool {
	return e.Status == EscrowDelivered || e.Status == EscrowRefunded
}

// IsParticipant reports whether userID is the buyer or seller of this escrow.
func (e *Escrow) IsParticipant(userID uint) bool {
	return e.BuyerID == userID || e.SellerID == userID
}

type EscrowEventType string

const (
	EventEscrowCreated   EscrowEventType = "created"
	EventEscrowConfirmed EscrowEventType = "confirmed"
	EventEscrowCompleted EscrowEventType = "completed"
	EventEscrowRefunded  EscrowEventType = "refunded"
	EventEscrowDisputed  EscrowEventType = "disputed"
	EventEscrowResolved  EscrowEventType = "resolved"
)

// EscrowEvent is an append-only history row written with every committed
// transition, so observers can reconstruct an escrow's life without diffing
// full state. Never updated or deleted.
type EscrowEvent struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	EscrowID  uint            `gorm:"not null;index" json:"escrow_id"`
	Type      EscrowEventType `gorm:"type:varchar(20);not null" json:"type"`
	ActorID   uint            `gorm:"not null" json:"actor_id"`
	Amount    int64           `gorm:"not null" json:"amount"`
	FeeAmount int64           `gorm:"not null;default:0" json:"fee_amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (EscrowEvent) TableName() string {
	return "escrow_events"
}

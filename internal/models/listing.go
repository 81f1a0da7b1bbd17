package models

import (
	"time"

	"gorm.io/gorm"
)

type ListingKind string
type ListingStatus string

const (
	// ListingSale is an item offered by a collector; ListingWanted is a
	// request for an item the collector is looking for.
	ListingSale   ListingKind = "sale"
	ListingWanted ListingKind = "wanted"
)

const (
	ListingOpen   ListingStatus = "open"
	ListingClosed ListingStatus = "closed"
)

type Listing struct {
	ID          uint        `gorm:"primarykey" json:"id"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	Kind        ListingKind `gorm:"type:varchar(10);not null" json:"kind"`
	Title       string      `gorm:"type:varchar(255);not null" json:"title"`
	Description string      `gorm:"type:text;not null" json:"description"`
	Category    string      `gorm:"type:varchar(50);index" json:"category"`

	// Price is integer cents; zero means "make an offer".
	Price int64 `gorm:"not null;default:0" json:"price"`

	ImageURL      string `gorm:"type:text" json:"image_url,omitempty"`
	ImagePublicID string `gorm:"type:text" json:"image_public_id,omitempty"`

	Status    ListingStatus  `gorm:"type:varchar(10);not null;default:'open'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

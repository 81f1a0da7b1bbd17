package models

import (
	"time"
)

// Conversation is a two-party message thread. UserAID is always the lower of
// the two ids so the pair is unique regardless of who started it.
type Conversation struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserAID       uint      `gorm:"not null;index:idx_conversation_pair,unique" json:"user_a_id"`
	UserBID       uint      `gorm:"not null;index:idx_conversation_pair,unique" json:"user_b_id"`
	ListingID     *uint     `gorm:"index" json:"listing_id,omitempty"`
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	UserA User `gorm:"foreignKey:UserAID" json:"user_a,omitempty"`
	UserB User `gorm:"foreignKey:UserBID" json:"user_b,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID uint) uint {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// HasParticipant reports whether userID belongs to this conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.UserAID == userID || c.UserBID == userID
}

type Message struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	ConversationID uint       `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint       `gorm:"not null;index" json:"sender_id"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	IsRead         bool       `gorm:"default:false;index" json:"is_read"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

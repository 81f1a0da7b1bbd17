package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"seekr/internal/database"
	"seekr/internal/models"
)

type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" validate:"required"`
	ListingID   *uint  `json:"listing_id"`
	Body        string `json:"body" validate:"required,min=1,max=5000"`
}

// findOrCreateConversation returns the thread between the two users, creating
// it if this is their first contact. The pair is stored lower id first.
func findOrCreateConversation(tx *gorm.DB, userID, otherID uint, listingID *uint) (*models.Conversation, error) {
	a, b := userID, otherID
	if a > b {
		a, b = b, a
	}

	var conversation models.Conversation
	err := tx.Where("user_a_id = ? AND user_b_id = ?", a, b).First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conversation = models.Conversation{
		UserAID:       a,
		UserBID:       b,
		ListingID:     listingID,
		LastMessageAt: time.Now(),
	}
	if err := tx.Create(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// SendMessage sends a message, starting the conversation if needed
func SendMessage(c *fiber.Ctx) error {
	req := new(SendMessageRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	if req.RecipientID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot message yourself",
		})
	}

	var recipient models.User
	if err := database.DB.First(&recipient, req.RecipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Recipient not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	var sender models.User
	if err := database.DB.First(&sender, userID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	var message models.Message
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		conversation, err := findOrCreateConversation(tx, userID, req.RecipientID, req.ListingID)
		if err != nil {
			return err
		}

		message = models.Message{
			ConversationID: conversation.ID,
			SenderID:       userID,
			Body:           req.Body,
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}

		return tx.Model(conversation).Update("last_message_at", time.Now()).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send message",
		})
	}

	notificationService.NotifyMessageReceived(req.RecipientID, sender.FullName, message.ConversationID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Message sent successfully",
		"data":    message,
	})
}

// GetConversations lists the caller's threads, most recent activity first
func GetConversations(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var conversations []models.Conversation
	if err := database.DB.
		Preload("UserA").Preload("UserB").
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&conversations).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve conversations",
		})
	}

	// Attach the unread count per thread.
	type conversationSummary struct {
		models.Conversation
		UnreadCount int64 `json:"unread_count"`
	}
	summaries := make([]conversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		var unread int64
		database.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id != ? AND is_read = ?", conv.ID, userID, false).
			Count(&unread)
		summaries = append(summaries, conversationSummary{Conversation: conv, UnreadCount: unread})
	}

	return c.JSON(fiber.Map{
		"conversations": summaries,
		"count":         len(summaries),
	})
}

// GetConversationMessages returns a thread's messages, oldest first
func GetConversationMessages(c *fiber.Ctx) error {
	conversationID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var conversation models.Conversation
	if err := database.DB.First(&conversation, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if !conversation.HasParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not a participant in this conversation",
		})
	}

	var messages []models.Message
	if err := database.DB.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve messages",
		})
	}

	return c.JSON(fiber.Map{
		"conversation": conversation,
		"messages":     messages,
		"count":        len(messages),
	})
}

// MarkConversationRead marks all messages from the other participant as read
func MarkConversationRead(c *fiber.Ctx) error {
	conversationID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var conversation models.Conversation
	if err := database.DB.First(&conversation, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if !conversation.HasParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not a participant in this conversation",
		})
	}

	now := time.Now()
	result := database.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_read = ?", conversationID, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to mark messages read",
		})
	}

	return c.JSON(fiber.Map{
		"message":       "Messages marked as read",
		"updated_count": result.RowsAffected,
	})
}

// GetUnreadMessageCount returns the total unread messages across threads
func GetUnreadMessageCount(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var count int64
	err := database.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("(conversations.user_a_id = ? OR conversations.user_b_id = ?)", userID, userID).
		Where("messages.sender_id != ? AND messages.is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve unread count",
		})
	}

	return c.JSON(fiber.Map{
		"unread_count": count,
	})
}

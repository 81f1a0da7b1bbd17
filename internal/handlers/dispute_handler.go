package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"seekr/internal/database"
	"seekr/internal/models"
	"seekr/internal/services"
)

type RaiseDisputeRequest struct {
	EscrowID    uint   `json:"escrow_id" validate:"required"`
	Reason      string `json:"reason" validate:"required,oneof=item_not_received item_significantly_not_as_described item_arrived_damaged incorrect_item_received other"`
	Description string `json:"description" validate:"required"`

	// Evidence is uploaded separately and referenced here, if present.
	Evidence         string `json:"evidence"`
	EvidencePublicID string `json:"evidence_public_id"`
}

// RaiseDispute freezes a pending escrow the caller participates in and opens
// a dispute case for the owner to rule on.
func RaiseDispute(c *fiber.Ctx) error {
	req := new(RaiseDisputeRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	dispute, err := escrowService.RaiseDispute(req.EscrowID, userID, models.DisputeReason(req.Reason), req.Description, req.Evidence, req.EvidencePublicID)
	if err != nil {
		return escrowError(c, err)
	}

	// Notify the other party.
	var escrow models.Escrow
	var raiser models.User
	if database.DB.First(&escrow, req.EscrowID).Error == nil && database.DB.First(&raiser, userID).Error == nil {
		otherID := escrow.BuyerID
		if userID == escrow.BuyerID {
			otherID = escrow.SellerID
		}
		notificationService.NotifyDisputeRaised(otherID, raiser.FullName, req.Reason, escrow.ID, dispute.ID)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Dispute raised. The escrow is frozen until it is resolved.",
		"dispute": fiber.Map{
			"id":          dispute.ID,
			"escrow_id":   dispute.EscrowID,
			"reason":      dispute.Reason,
			"description": dispute.Description,
			"evidence":    dispute.Evidence,
			"status":      dispute.Status,
			"created_at":  dispute.CreatedAt,
		},
	})
}

// UploadDisputeEvidence stores an evidence file and returns its URL for use
// in a subsequent RaiseDispute call.
func UploadDisputeEvidence(c *fiber.Ctx) error {
	file, err := c.FormFile("evidence")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	if file.Size > 5*1024*1024 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File size exceeds 5MB limit",
		})
	}

	result, err := cloudinaryService.UploadFile(file, services.FolderEvidence)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload evidence",
		})
	}

	return c.JSON(fiber.Map{
		"message":   "File uploaded successfully",
		"file_url":  result.SecureURL,
		"public_id": result.PublicID,
	})
}

// GetMyDisputes retrieves all disputes on escrows the user participates in
func GetMyDisputes(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var disputes []models.Dispute
	if err := database.DB.
		Preload("Escrow.Buyer").
		Preload("Escrow.Seller").
		Preload("User").
		Joins("JOIN escrows ON disputes.escrow_id = escrows.id").
		Where("escrows.buyer_id = ? OR escrows.seller_id = ?", userID, userID).
		Order("disputes.created_at DESC").
		Find(&disputes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve disputes",
		})
	}

	return c.JSON(fiber.Map{
		"disputes": disputes,
		"count":    len(disputes),
	})
}

// GetDisputeByID retrieves a specific dispute
func GetDisputeByID(c *fiber.Ctx) error {
	disputeID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var dispute models.Dispute
	if err := database.DB.
		Preload("Escrow.Buyer").
		Preload("Escrow.Seller").
		Preload("User").
		First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Dispute not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if !dispute.Escrow.IsParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have access to this dispute",
		})
	}

	return c.JSON(fiber.Map{
		"dispute": dispute,
	})
}

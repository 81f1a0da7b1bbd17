package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"seekr/internal/database"
	"seekr/internal/models"
	"seekr/internal/services"
)

type CreateEscrowRequest struct {
	SellerTag       string `json:"seller_tag" validate:"required"`
	ListingID       *uint  `json:"listing_id"`
	ItemDescription string `json:"item_description" validate:"required"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	DeliveryDays    int    `json:"delivery_days" validate:"required,min=1,max=365"`
}

type SearchUserRequest struct {
	UserTag string `json:"user_tag" validate:"required"`
}

// SearchUserByTag searches for a user by their tag
func SearchUserByTag(c *fiber.Ctx) error {
	req := new(SearchUserRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	var user models.User
	if err := database.DB.Where("user_tag = ?", req.UserTag).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if user.ID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "You cannot create an escrow with yourself",
		})
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":     user.ID,
			"name":   user.FullName,
			"tag":    user.UserTag,
			"avatar": user.Avatar,
		},
	})
}

// CreateEscrow opens an escrow as the authenticated buyer. Funds move from
// the buyer's balance into escrow hold atomically with the record.
func CreateEscrow(c *fiber.Ctx) error {
	req := new(CreateEscrowRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	buyerID := c.Locals("user_id").(uint)

	var seller models.User
	if err := database.DB.Where("user_tag = ?", req.SellerTag).First(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Seller not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	escrow, err := escrowService.Create(services.CreateEscrowInput{
		BuyerID:         buyerID,
		SellerID:        seller.ID,
		ListingID:       req.ListingID,
		Amount:          req.Amount,
		ItemDescription: req.ItemDescription,
		DeliveryDays:    req.DeliveryDays,
	})
	if err != nil {
		return escrowError(c, err)
	}

	var buyer models.User
	database.DB.First(&buyer, buyerID)
	notificationService.NotifyEscrowCreated(seller.ID, buyer.FullName, escrow.Amount, escrow.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":           "Escrow created successfully. Funds are held until delivery.",
		"escrow":            escrow,
		"available_balance": buyer.Balance,
		"escrow_balance":    buyer.EscrowBalance,
	})
}

// ConfirmDelivery records the caller's delivery confirmation. A buyer
// confirmation settles the escrow and releases funds to the seller.
func ConfirmDelivery(c *fiber.Ctx) error {
	escrowID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	escrow, err := escrowService.ConfirmDelivery(escrowID, userID)
	if err != nil {
		return escrowError(c, err)
	}

	var caller models.User
	database.DB.First(&caller, userID)

	if escrow.Status == models.EscrowDelivered {
		cfg, cfgErr := escrowService.Config()
		if cfgErr == nil {
			_, sellerAmount := services.FeeSplit(escrow.Amount, cfg.FeeBps)
			notificationService.NotifyEscrowCompleted(escrow.SellerID, caller.FullName, sellerAmount, escrow.ID)
		}
		return c.JSON(fiber.Map{
			"message": "Delivery confirmed. Funds have been released to the seller.",
			"escrow":  escrow,
		})
	}

	// Seller-side confirmation: recorded, escrow still pending.
	notificationService.NotifyEscrowConfirmed(escrow.BuyerID, caller.FullName, escrow.ID)
	return c.JSON(fiber.Map{
		"message": "Confirmation recorded. The escrow completes when the buyer confirms.",
		"escrow":  escrow,
	})
}

// RequestRefund refunds an overdue escrow back to the buyer in full.
func RequestRefund(c *fiber.Ctx) error {
	escrowID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	escrow, err := escrowService.RequestRefund(escrowID, userID)
	if err != nil {
		return escrowError(c, err)
	}

	notificationService.NotifyEscrowRefunded(escrow.SellerID, escrow.Amount, escrow.ID)

	return c.JSON(fiber.Map{
		"message": "Escrow refunded. The full amount has been returned to your balance.",
		"escrow":  escrow,
	})
}

// GetMyEscrows retrieves all escrows for the authenticated user, oldest
// first, optionally filtered by role.
func GetMyEscrows(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	role := c.Query("role")

	escrows, err := escrowService.ListByParticipant(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve escrows",
		})
	}

	if role == "buyer" || role == "seller" {
		filtered := escrows[:0]
		for _, e := range escrows {
			if (role == "buyer" && e.BuyerID == userID) || (role == "seller" && e.SellerID == userID) {
				filtered = append(filtered, e)
			}
		}
		escrows = filtered
	}

	return c.JSON(fiber.Map{
		"escrows": escrows,
		"count":   len(escrows),
	})
}

// GetEscrowByID retrieves a specific escrow
func GetEscrowByID(c *fiber.Ctx) error {
	escrowID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	escrow, err := escrowService.Get(escrowID)
	if err != nil {
		return escrowError(c, err)
	}

	if !escrow.IsParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have access to this escrow",
		})
	}

	return c.JSON(fiber.Map{
		"escrow": escrow,
	})
}

// GetEscrowOverdue reports whether the escrow is pending past its delivery
// deadline.
func GetEscrowOverdue(c *fiber.Ctx) error {
	escrowID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	escrow, err := escrowService.Get(escrowID)
	if err != nil {
		return escrowError(c, err)
	}
	if !escrow.IsParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have access to this escrow",
		})
	}

	overdue, err := escrowService.IsOverdue(escrowID)
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{
		"escrow_id": escrowID,
		"overdue":   overdue,
	})
}

// GetEscrowEvents returns the append-only transition history of an escrow.
func GetEscrowEvents(c *fiber.Ctx) error {
	escrowID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	escrow, err := escrowService.Get(escrowID)
	if err != nil {
		return escrowError(c, err)
	}
	if !escrow.IsParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have access to this escrow",
		})
	}

	events, err := escrowService.Events(escrowID)
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

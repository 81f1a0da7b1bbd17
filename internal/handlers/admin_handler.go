package handlers

import (
	"errors"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"seekr/internal/models"
)

// AdminHandler groups the admin endpoints around a db handle so they can be
// exercised against a test database.
type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateAdminRequest struct {
	FullName string `json:"full_name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type InitializeAdminRequest struct {
	SetupKey string `json:"setup_key" validate:"required"`
	FullName string `json:"full_name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type SuspendUserRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

type ResolveDisputeRequest struct {
	RefundToBuyer *bool  `json:"refund_to_buyer" validate:"required"`
	Resolution    string `json:"resolution" validate:"required,min=10"`
}

type UpdateFeeRequest struct {
	FeeBps *int64 `json:"fee_bps" validate:"required,min=0"`
}

type UpdateFeeRecipientRequest struct {
	RecipientID uint `json:"recipient_id" validate:"required"`
}

// AdminLogin authenticates an admin user
func (h *AdminHandler) AdminLogin(c *fiber.Ctx) error {
	req := new(AdminLoginRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := h.db.Where("email = ? AND role = ?", req.Email, "admin").First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := generateJWT(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"admin": fiber.Map{
			"id":        user.ID,
			"full_name": user.FullName,
			"email":     user.Email,
		},
	})
}

// InitializeFirstAdmin bootstraps the first admin account and the platform
// configuration. Guarded by ADMIN_SETUP_KEY and refused once any admin
// exists.
func (h *AdminHandler) InitializeFirstAdmin(c *fiber.Ctx) error {
	req := new(InitializeAdminRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	setupKey := os.Getenv("ADMIN_SETUP_KEY")
	if setupKey == "" || req.SetupKey != setupKey {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Invalid setup key",
		})
	}

	var adminCount int64
	h.db.Model(&models.User{}).Where("role = ?", "admin").Count(&adminCount)
	if adminCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Admin already exists",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process password",
		})
	}

	admin := models.User{
		FullName:        req.FullName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        string(hashedPassword),
		UserTag:         GenerateUserTag(req.FullName),
		Role:            "admin",
		IsEmailVerified: true,
	}

	if err := h.db.Create(&admin).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create admin",
		})
	}

	// The first admin owns the platform and starts as fee recipient.
	cfg, err := escrowService.InitializePlatform(admin.ID)
	if err != nil {
		return escrowError(c, err)
	}

	token, err := generateJWT(&admin)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Admin created and platform initialized",
		"token":   token,
		"admin": fiber.Map{
			"id":        admin.ID,
			"full_name": admin.FullName,
			"email":     admin.Email,
		},
		"platform_config": cfg,
	})
}

// CreateAdmin creates an additional admin account
func (h *AdminHandler) CreateAdmin(c *fiber.Ctx) error {
	req := new(CreateAdminRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Email already registered",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process password",
		})
	}

	admin := models.User{
		FullName:        req.FullName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        string(hashedPassword),
		UserTag:         GenerateUserTag(req.FullName),
		Role:            "admin",
		IsEmailVerified: true,
	}

	if err := h.db.Create(&admin).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create admin",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Admin created successfully",
		"admin": fiber.Map{
			"id":        admin.ID,
			"full_name": admin.FullName,
			"email":     admin.Email,
		},
	})
}

// GetAdminProfile returns the authenticated admin's profile
func (h *AdminHandler) GetAdminProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var admin models.User
	if err := h.db.First(&admin, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Admin not found",
		})
	}

	return c.JSON(fiber.Map{
		"admin": fiber.Map{
			"id":         admin.ID,
			"full_name":  admin.FullName,
			"email":      admin.Email,
			"phone":      admin.Phone,
			"role":       admin.Role,
			"created_at": admin.CreatedAt,
		},
	})
}

// GetDashboardStats aggregates counts and volumes for the admin dashboard
func (h *AdminHandler) GetDashboardStats(c *fiber.Ctx) error {
	var totalUsers, suspendedUsers int64
	h.db.Model(&models.User{}).Where("role = ?", "user").Count(&totalUsers)
	h.db.Model(&models.User{}).Where("role = ? AND is_suspended = ?", "user", true).Count(&suspendedUsers)

	var pendingEscrows, deliveredEscrows, refundedEscrows, disputedEscrows int64
	h.db.Model(&models.Escrow{}).Where("status = ?", models.EscrowPending).Count(&pendingEscrows)
	h.db.Model(&models.Escrow{}).Where("status = ?", models.EscrowDelivered).Count(&deliveredEscrows)
	h.db.Model(&models.Escrow{}).Where("status = ?", models.EscrowRefunded).Count(&refundedEscrows)
	h.db.Model(&models.Escrow{}).Where("status = ?", models.EscrowDisputed).Count(&disputedEscrows)

	var escrowVolume, feeVolume int64
	h.db.Model(&models.Escrow{}).Select("COALESCE(SUM(amount), 0)").Scan(&escrowVolume)
	h.db.Model(&models.Transaction{}).Where("type = ?", models.TransactionFee).
		Select("COALESCE(SUM(amount), 0)").Scan(&feeVolume)

	var openDisputes int64
	h.db.Model(&models.Dispute{}).Where("status = ?", models.DisputeOpen).Count(&openDisputes)

	var openListings int64
	h.db.Model(&models.Listing{}).Where("status = ?", models.ListingOpen).Count(&openListings)

	return c.JSON(fiber.Map{
		"users": fiber.Map{
			"total":     totalUsers,
			"suspended": suspendedUsers,
		},
		"escrows": fiber.Map{
			"pending":   pendingEscrows,
			"delivered": deliveredEscrows,
			"refunded":  refundedEscrows,
			"disputed":  disputedEscrows,
			"volume":    escrowVolume,
		},
		"fees_collected": feeVolume,
		"open_disputes":  openDisputes,
		"open_listings":  openListings,
	})
}

// GetAllUsers lists accounts, newest first, with optional search
func (h *AdminHandler) GetAllUsers(c *fiber.Ctx) error {
	search := c.Query("search")

	query := h.db.Model(&models.User{}).Where("role = ?", "user")
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ? OR user_tag ILIKE ?", like, like, like)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve users",
		})
	}

	return c.JSON(fiber.Map{
		"users": users,
		"count": len(users),
	})
}

// GetUserByID returns a user with their escrow and ledger activity
func (h *AdminHandler) GetUserByID(c *fiber.Ctx) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	var escrows []models.Escrow
	h.db.Where("buyer_id = ? OR seller_id = ?", user.ID, user.ID).
		Order("id ASC").Find(&escrows)

	var transactions []models.Transaction
	h.db.Where("user_id = ?", user.ID).Order("created_at DESC").Limit(50).Find(&transactions)

	return c.JSON(fiber.Map{
		"user":         user,
		"escrows":      escrows,
		"transactions": transactions,
	})
}

// SuspendUser suspends a user account
func (h *AdminHandler) SuspendUser(c *fiber.Ctx) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	req := new(SuspendUserRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if user.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Cannot suspend an admin account",
		})
	}
	if user.IsSuspended {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "User is already suspended",
		})
	}

	now := time.Now()
	user.IsSuspended = true
	user.SuspendedAt = &now
	user.SuspendReason = req.Reason

	if err := h.db.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to suspend user",
		})
	}

	return c.JSON(fiber.Map{
		"message": "User suspended successfully",
		"user": fiber.Map{
			"id":           user.ID,
			"full_name":    user.FullName,
			"is_suspended": user.IsSuspended,
			"suspended_at": user.SuspendedAt,
		},
	})
}

// UnsuspendUser lifts a suspension
func (h *AdminHandler) UnsuspendUser(c *fiber.Ctx) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if !user.IsSuspended {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "User is not suspended",
		})
	}

	user.IsSuspended = false
	user.SuspendedAt = nil
	user.SuspendReason = ""

	if err := h.db.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unsuspend user",
		})
	}

	return c.JSON(fiber.Map{
		"message": "User unsuspended successfully",
	})
}

// GetAllTransactions lists ledger entries across all users
func (h *AdminHandler) GetAllTransactions(c *fiber.Ctx) error {
	txType := c.Query("type")
	status := c.Query("status")

	query := h.db.Model(&models.Transaction{}).Preload("User")
	if txType != "" {
		query = query.Where("type = ?", txType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var transactions []models.Transaction
	if err := query.Order("created_at DESC").Limit(200).Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve transactions",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetAllDisputes lists disputes for admin review
func (h *AdminHandler) GetAllDisputes(c *fiber.Ctx) error {
	status := c.Query("status")

	query := h.db.Model(&models.Dispute{}).Preload("Escrow").Preload("User")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var disputes []models.Dispute
	if err := query.Order("created_at DESC").Find(&disputes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve disputes",
		})
	}

	return c.JSON(fiber.Map{
		"disputes": disputes,
		"count":    len(disputes),
	})
}

// GetDisputeByID returns one dispute with its escrow
func (h *AdminHandler) GetDisputeByID(c *fiber.Ctx) error {
	disputeID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var dispute models.Dispute
	if err := h.db.Preload("Escrow").Preload("User").First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Dispute not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	return c.JSON(fiber.Map{
		"dispute": dispute,
	})
}

// ResolveDispute rules on a disputed escrow. Refund returns the held amount
// to the buyer in full; release settles to the seller with the fee applied.
func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	disputeID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	req := new(ResolveDisputeRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	callerID := c.Locals("user_id").(uint)

	var dispute models.Dispute
	if err := h.db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Dispute not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	escrow, err := escrowService.ResolveDispute(dispute.EscrowID, callerID, *req.RefundToBuyer, req.Resolution)
	if err != nil {
		return escrowError(c, err)
	}

	notificationService.NotifyDisputeResolved(escrow.BuyerID, *req.RefundToBuyer, req.Resolution, escrow.ID)
	notificationService.NotifyDisputeResolved(escrow.SellerID, *req.RefundToBuyer, req.Resolution, escrow.ID)

	return c.JSON(fiber.Map{
		"message": "Dispute resolved successfully",
		"escrow":  escrow,
	})
}

// GetPlatformConfig returns the platform configuration
func (h *AdminHandler) GetPlatformConfig(c *fiber.Ctx) error {
	cfg, err := escrowService.Config()
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{
		"platform_config": cfg,
	})
}

// UpdatePlatformFee changes the settlement fee rate. Owner only, capped at
// 10%.
func (h *AdminHandler) UpdatePlatformFee(c *fiber.Ctx) error {
	req := new(UpdateFeeRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	callerID := c.Locals("user_id").(uint)

	cfg, err := escrowService.UpdateFee(callerID, *req.FeeBps)
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":         "Platform fee updated",
		"platform_config": cfg,
	})
}

// UpdateFeeRecipient changes where settlement fees are paid. Owner only.
func (h *AdminHandler) UpdateFeeRecipient(c *fiber.Ctx) error {
	req := new(UpdateFeeRecipientRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	callerID := c.Locals("user_id").(uint)

	cfg, err := escrowService.UpdateFeeRecipient(callerID, req.RecipientID)
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":         "Fee recipient updated",
		"platform_config": cfg,
	})
}

// EmergencyWithdraw sweeps escrow balances not backing any open escrow to
// the owner. Owner only.
func (h *AdminHandler) EmergencyWithdraw(c *fiber.Ctx) error {
	callerID := c.Locals("user_id").(uint)

	swept, err := escrowService.EmergencyWithdraw(callerID)
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      "Emergency withdrawal completed",
		"amount_swept": swept,
	})
}

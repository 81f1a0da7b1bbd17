package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"seekr/internal/database"
	"seekr/internal/models"
	"seekr/internal/services"
)

const maxListingImageSize = 10 * 1024 * 1024 // 10MB

type CreateListingRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=sale wanted"`
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"required,min=10"`
	Category    string `json:"category" validate:"required"`
	Price       int64  `json:"price" validate:"min=0"`
}

type UpdateListingRequest struct {
	Title       string `json:"title" validate:"omitempty,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,min=10"`
	Category    string `json:"category"`
	Price       *int64 `json:"price" validate:"omitempty,min=0"`
}

// CreateListing creates a sale or wanted listing
func CreateListing(c *fiber.Ctx) error {
	req := new(CreateListingRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	listing := models.Listing{
		UserID:      userID,
		Kind:        models.ListingKind(req.Kind),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Status:      models.ListingOpen,
	}

	if err := database.DB.Create(&listing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create listing",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Listing created successfully",
		"listing": listing,
	})
}

// UploadListingImage attaches an image to a listing the caller owns
func UploadListingImage(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var listing models.Listing
	if err := database.DB.Where("id = ? AND user_id = ?", listingID, userID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Listing not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image file is required",
		})
	}
	if file.Size > maxListingImageSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image must be less than 10MB",
		})
	}

	upload, err := cloudinaryService.UploadFile(file, services.FolderListings)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload image",
		})
	}

	// Replace any previous image.
	if listing.ImagePublicID != "" {
		cloudinaryService.DeleteFile(listing.ImagePublicID)
	}

	listing.ImageURL = upload.SecureURL
	listing.ImagePublicID = upload.PublicID
	if err := database.DB.Save(&listing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save listing",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Image uploaded successfully",
		"listing": listing,
	})
}

// BrowseListings lists open listings with optional filters
func BrowseListings(c *fiber.Ctx) error {
	kind := c.Query("kind")
	category := c.Query("category")
	search := c.Query("q")

	query := database.DB.Model(&models.Listing{}).
		Preload("User").
		Where("status = ?", models.ListingOpen)

	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)

	var listings []models.Listing
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&listings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve listings",
		})
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetMyListings lists the caller's listings, any status
func GetMyListings(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var listings []models.Listing
	if err := database.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&listings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve listings",
		})
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetListingByID returns one listing with its owner
func GetListingByID(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var listing models.Listing
	if err := database.DB.Preload("User").First(&listing, listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Listing not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	return c.JSON(fiber.Map{
		"listing": listing,
	})
}

// UpdateListing edits a listing the caller owns
func UpdateListing(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	req := new(UpdateListingRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	var listing models.Listing
	if err := database.DB.Where("id = ? AND user_id = ?", listingID, userID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Listing not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if listing.Status == models.ListingClosed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot edit a closed listing",
		})
	}

	if req.Title != "" {
		listing.Title = req.Title
	}
	if req.Description != "" {
		listing.Description = req.Description
	}
	if req.Category != "" {
		listing.Category = req.Category
	}
	if req.Price != nil {
		listing.Price = *req.Price
	}

	if err := database.DB.Save(&listing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update listing",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Listing updated successfully",
		"listing": listing,
	})
}

// CloseListing marks a listing closed without removing it
func CloseListing(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var listing models.Listing
	if err := database.DB.Where("id = ? AND user_id = ?", listingID, userID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Listing not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if listing.Status == models.ListingClosed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Listing is already closed",
		})
	}

	listing.Status = models.ListingClosed
	if err := database.DB.Save(&listing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to close listing",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Listing closed successfully",
		"listing": listing,
	})
}

// DeleteListing removes a listing the caller owns
func DeleteListing(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var listing models.Listing
	if err := database.DB.Where("id = ? AND user_id = ?", listingID, userID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Listing not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if listing.ImagePublicID != "" {
		cloudinaryService.DeleteFile(listing.ImagePublicID)
	}

	if err := database.DB.Delete(&listing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete listing",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Listing deleted successfully",
	})
}

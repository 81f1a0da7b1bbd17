package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupListingRoutes(app *fiber.App) {
	// Browsing and viewing listings is public.
	listings := app.Group("/api/listings")
	listings.Get("/", handlers.BrowseListings)

	protected := listings.Group("", middleware.Protected())
	protected.Get("/my", handlers.GetMyListings)
	protected.Post("/", handlers.CreateListing)
	protected.Put("/:id", handlers.UpdateListing)
	protected.Post("/:id/image", handlers.UploadListingImage)
	protected.Post("/:id/close", handlers.CloseListing)
	protected.Delete("/:id", handlers.DeleteListing)

	listings.Get("/:id", handlers.GetListingByID)
}

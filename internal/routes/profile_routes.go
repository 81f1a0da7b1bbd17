package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupProfileRoutes(app *fiber.App) {
	profile := app.Group("/api/profile", middleware.Protected())

	profile.Get("/", handlers.GetUserProfile)
	profile.Put("/", handlers.UpdateUserProfile)
	profile.Put("/password", handlers.ChangePassword)
	profile.Post("/avatar", handlers.UploadAvatar)
	profile.Delete("/avatar", handlers.DeleteAvatar)
}

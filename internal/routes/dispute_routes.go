package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupDisputeRoutes(app *fiber.App) {
	disputes := app.Group("/api/disputes", middleware.Protected())

	disputes.Get("/my", handlers.GetMyDisputes)

	disputes.Post("/", handlers.RaiseDispute)
	disputes.Post("/evidence", handlers.UploadDisputeEvidence)
	disputes.Get("/:id", handlers.GetDisputeByID)
}

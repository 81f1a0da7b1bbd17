package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupEscrowRoutes(app *fiber.App) {
	escrow := app.Group("/api/escrow", middleware.Protected())

	escrow.Get("/search-user", handlers.SearchUserByTag)
	escrow.Get("/my", handlers.GetMyEscrows)

	escrow.Post("/", handlers.CreateEscrow)
	escrow.Get("/:id", handlers.GetEscrowByID)
	escrow.Post("/:id/confirm", handlers.ConfirmDelivery)
	escrow.Post("/:id/refund", handlers.RequestRefund)
	escrow.Get("/:id/overdue", handlers.GetEscrowOverdue)
	escrow.Get("/:id/events", handlers.GetEscrowEvents)
}

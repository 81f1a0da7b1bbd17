package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/database"
	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupAdminRoutes(app *fiber.App) {
	adminHandler := handlers.NewAdminHandler(database.DB)

	adminAuth := app.Group("/api/admin/auth")
	adminAuth.Post("/login", adminHandler.AdminLogin)
	adminAuth.Post("/initialize", adminHandler.InitializeFirstAdmin)

	// Protected admin routes
	admin := app.Group("/api/admin", middleware.Protected(), middleware.AdminOnly())

	// Admin profile
	admin.Get("/profile", adminHandler.GetAdminProfile)

	// Admin creation
	admin.Post("/create", adminHandler.CreateAdmin)

	// Dashboard
	admin.Get("/dashboard", adminHandler.GetDashboardStats)

	// User management
	admin.Get("/users", adminHandler.GetAllUsers)
	admin.Get("/users/:id", adminHandler.GetUserByID)
	admin.Post("/users/:id/suspend", adminHandler.SuspendUser)
	admin.Post("/users/:id/unsuspend", adminHandler.UnsuspendUser)

	// Transaction management
	admin.Get("/transactions", adminHandler.GetAllTransactions)

	// Dispute management
	admin.Get("/disputes", adminHandler.GetAllDisputes)
	admin.Get("/disputes/:id", adminHandler.GetDisputeByID)
	admin.Post("/disputes/:id/resolve", adminHandler.ResolveDispute)

	// Platform management (owner only beyond this point; the service checks)
	admin.Get("/platform", adminHandler.GetPlatformConfig)
	admin.Put("/platform/fee", adminHandler.UpdatePlatformFee)
	admin.Put("/platform/fee-recipient", adminHandler.UpdateFeeRecipient)
	admin.Post("/platform/emergency-withdraw", adminHandler.EmergencyWithdraw)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupNotificationRoutes(app *fiber.App) {
	notifications := app.Group("/api/notifications", middleware.Protected())

	notifications.Get("/", handlers.GetNotifications)
	notifications.Get("/unread-count", handlers.GetUnreadCount)
	notifications.Put("/read-all", handlers.MarkAllAsRead)
	notifications.Delete("/read", handlers.DeleteAllRead)
	notifications.Put("/:id/read", handlers.MarkAsRead)
	notifications.Delete("/:id", handlers.DeleteNotification)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupMessageRoutes(app *fiber.App) {
	messages := app.Group("/api/messages", middleware.Protected())

	messages.Post("/", handlers.SendMessage)
	messages.Get("/conversations", handlers.GetConversations)
	messages.Get("/conversations/:id", handlers.GetConversationMessages)
	messages.Post("/conversations/:id/read", handlers.MarkConversationRead)
	messages.Get("/unread-count", handlers.GetUnreadMessageCount)
}

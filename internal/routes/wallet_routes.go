package routes

import (
	"github.com/gofiber/fiber/v2"

	"seekr/internal/handlers"
	"seekr/internal/middleware"
)

func SetupWalletRoutes(app *fiber.App) {
	wallet := app.Group("/api/wallet", middleware.Protected())

	wallet.Get("/balance", handlers.GetWalletBalance)

	// Deposits
	wallet.Post("/fund", handlers.FundAccount)
	wallet.Post("/fund/complete/:reference", handlers.CompleteDeposit)

	// Bank accounts
	wallet.Post("/bank-accounts", handlers.AddBankAccount)
	wallet.Get("/bank-accounts", handlers.GetBankAccounts)
	wallet.Put("/bank-accounts/:id/default", handlers.SetDefaultBankAccount)
	wallet.Delete("/bank-accounts/:id", handlers.DeleteBankAccount)

	// Withdrawals
	wallet.Post("/withdraw", handlers.WithdrawFunds)

	// Ledger
	wallet.Get("/transactions", handlers.GetTransactionHistory)
	wallet.Get("/transactions/:id", handlers.GetTransactionByID)
}

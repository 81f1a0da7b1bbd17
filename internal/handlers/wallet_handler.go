package handlers

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"seekr/internal/database"
	"seekr/internal/models"
	"seekr/internal/services"
)

// Minimum deposit and withdrawal, in cents.
const minWalletMove = int64(500)

type FundAccountRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

type WithdrawRequest struct {
	Amount        int64 `json:"amount" validate:"required,gt=0"`
	BankAccountID uint  `json:"bank_account_id" validate:"required"`
}

type AddBankAccountRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	BankCode      string `json:"bank_code"`
}

// GetWalletBalance retrieves user's wallet balances
func GetWalletBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve balance",
		})
	}

	return c.JSON(fiber.Map{
		"balance":        user.Balance,
		"escrow_balance": user.EscrowBalance,
		"user": fiber.Map{
			"id":        user.ID,
			"full_name": user.FullName,
			"email":     user.Email,
			"user_tag":  user.UserTag,
		},
	})
}

// FundAccount initiates a deposit through the payment gateway
func FundAccount(c *fiber.Ctx) error {
	req := new(FundAccountRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	if req.Amount < minWalletMove {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Minimum deposit amount is $%.2f", float64(minWalletMove)/100),
		})
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve user",
		})
	}

	reference := services.NewReference("DEP")

	transaction := models.Transaction{
		UserID:          userID,
		Type:            models.TransactionDeposit,
		Amount:          req.Amount,
		Status:          models.TransactionPending,
		Reference:       reference,
		Description:     fmt.Sprintf("Deposit of $%.2f", float64(req.Amount)/100),
		PaymentMethod:   req.PaymentMethod,
		PaymentProvider: "paystack",
	}

	if err := database.DB.Create(&transaction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create transaction",
		})
	}

	callbackURL := os.Getenv("PAYMENT_CALLBACK_URL")
	payment, err := paystackService.InitializePayment(user.Email, req.Amount, reference, callbackURL)
	if err != nil {
		database.DB.Model(&transaction).Update("status", models.TransactionFailed)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to initialize payment",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Funding initiated. Complete payment to credit your account.",
		"transaction": fiber.Map{
			"id":        transaction.ID,
			"reference": transaction.Reference,
			"amount":    transaction.Amount,
			"status":    transaction.Status,
		},
		"payment_info": fiber.Map{
			"authorization_url": payment.Data.AuthorizationURL,
			"reference":         reference,
		},
	})
}

// CompleteDeposit verifies a deposit with the gateway and credits the
// balance. Called from the payment callback.
func CompleteDeposit(c *fiber.Ctx) error {
	reference := c.Params("reference")

	var transaction models.Transaction
	if err := database.DB.Where("reference = ? AND type = ?", reference, models.TransactionDeposit).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Transaction not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if transaction.Status == models.TransactionCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Transaction already completed",
		})
	}

	verification, err := paystackService.VerifyPayment(reference)
	if err != nil || verification.Data.Status != "success" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Payment not confirmed by gateway",
		})
	}
	if verification.Data.Amount != transaction.Amount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Paid amount does not match transaction",
		})
	}

	var user models.User
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, transaction.UserID).Error; err != nil {
			return err
		}
		user.Balance += transaction.Amount
		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		now := time.Now()
		transaction.Status = models.TransactionCompleted
		transaction.CompletedAt = &now
		return tx.Save(&transaction).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to complete deposit",
		})
	}

	notificationService.NotifyDepositSuccess(user.ID, transaction.Amount, reference)

	return c.JSON(fiber.Map{
		"message": "Deposit completed successfully",
		"transaction": fiber.Map{
			"id":           transaction.ID,
			"reference":    transaction.Reference,
			"amount":       transaction.Amount,
			"status":       transaction.Status,
			"completed_at": transaction.CompletedAt,
		},
		"new_balance": user.Balance,
	})
}

// AddBankAccount adds a bank account for withdrawals
func AddBankAccount(c *fiber.Ctx) error {
	req := new(AddBankAccountRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	var existingAccount models.BankAccount
	if err := database.DB.Where("user_id = ? AND account_number = ?", userID, req.AccountNumber).First(&existingAccount).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Bank account already exists",
		})
	}

	var count int64
	database.DB.Model(&models.BankAccount{}).Where("user_id = ?", userID).Count(&count)

	bankAccount := models.BankAccount{
		UserID:        userID,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankCode:      req.BankCode,
		IsDefault:     count == 0, // first account becomes default
	}

	// Register the account with the gateway so withdrawals can be paid out.
	if req.BankCode != "" {
		if recipient, err := paystackService.CreateTransferRecipient(req.AccountName, req.AccountNumber, req.BankCode); err == nil {
			bankAccount.RecipientCode = recipient.Data.RecipientCode
		}
	}

	if err := database.DB.Create(&bankAccount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add bank account",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Bank account added successfully",
		"bank_account": bankAccount,
	})
}

// GetBankAccounts retrieves all bank accounts for the user
func GetBankAccounts(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var bankAccounts []models.BankAccount
	if err := database.DB.Where("user_id = ?", userID).Order("is_default DESC, created_at DESC").Find(&bankAccounts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve bank accounts",
		})
	}

	return c.JSON(fiber.Map{
		"bank_accounts": bankAccounts,
		"count":         len(bankAccounts),
	})
}

// SetDefaultBankAccount sets a bank account as default
func SetDefaultBankAccount(c *fiber.Ctx) error {
	accountID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var bankAccount models.BankAccount
	if err := database.DB.Where("id = ? AND user_id = ?", accountID, userID).First(&bankAccount).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Bank account not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	database.DB.Model(&models.BankAccount{}).Where("user_id = ?", userID).Update("is_default", false)

	bankAccount.IsDefault = true
	if err := database.DB.Save(&bankAccount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set default account",
		})
	}

	return c.JSON(fiber.Map{
		"message":      "Default bank account updated",
		"bank_account": bankAccount,
	})
}

// DeleteBankAccount removes a bank account
func DeleteBankAccount(c *fiber.Ctx) error {
	accountID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var bankAccount models.BankAccount
	if err := database.DB.Where("id = ? AND user_id = ?", accountID, userID).First(&bankAccount).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Bank account not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if err := database.DB.Delete(&bankAccount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete bank account",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Bank account deleted successfully",
	})
}

// WithdrawFunds debits the balance and queues a payout to the selected bank
// account. The debit and the ledger entry commit together.
func WithdrawFunds(c *fiber.Ctx) error {
	req := new(WithdrawRequest)
	if err := parseBody(c, req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	if req.Amount < minWalletMove {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Minimum withdrawal amount is $%.2f", float64(minWalletMove)/100),
		})
	}

	var bankAccount models.BankAccount
	if err := database.DB.Where("id = ? AND user_id = ?", req.BankAccountID, userID).First(&bankAccount).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Bank account not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	reference := services.NewReference("WTH")
	var user models.User
	var transaction models.Transaction

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		if user.Balance < req.Amount {
			return fmt.Errorf("insufficient balance")
		}

		user.Balance -= req.Amount
		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		transaction = models.Transaction{
			UserID:        userID,
			Type:          models.TransactionWithdrawal,
			Amount:        req.Amount,
			Status:        models.TransactionPending,
			Reference:     reference,
			Description:   fmt.Sprintf("Withdrawal of $%.2f to %s", float64(req.Amount)/100, bankAccount.BankName),
			BankName:      bankAccount.BankName,
			AccountNumber: bankAccount.AccountNumber,
			AccountName:   bankAccount.AccountName,
		}
		return tx.Create(&transaction).Error
	})
	if err != nil {
		if err.Error() == "insufficient balance" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Insufficient balance",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process withdrawal",
		})
	}

	// Payout is asynchronous; admins complete or fail the transfer.
	if bankAccount.RecipientCode != "" {
		paystackService.InitiateTransfer(bankAccount.RecipientCode, req.Amount, "Seekr withdrawal", reference)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Withdrawal request submitted successfully.",
		"transaction": fiber.Map{
			"id":             transaction.ID,
			"reference":      transaction.Reference,
			"amount":         transaction.Amount,
			"status":         transaction.Status,
			"bank_name":      transaction.BankName,
			"account_number": transaction.AccountNumber,
		},
		"new_balance": user.Balance,
	})
}

// GetTransactionHistory retrieves user's ledger history
func GetTransactionHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	txType := c.Query("type")

	query := database.DB.Where("user_id = ?", userID)

	if txType != "" {
		query = query.Where("type = ?", txType)
	}

	var transactions []models.Transaction
	if err := query.Order("created_at DESC").Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve transactions",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetTransactionByID retrieves a specific ledger entry
func GetTransactionByID(c *fiber.Ctx) error {
	txID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	userID := c.Locals("user_id").(uint)

	var transaction models.Transaction
	if err := database.DB.Where("id = ? AND user_id = ?", txID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Transaction not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	return c.JSON(fiber.Map{
		"transaction": transaction,
	})
}

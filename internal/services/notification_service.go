package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"seekr/internal/models"
)

type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// CreateNotification creates a new notification
func (s *NotificationService) CreateNotification(userID uint, notifType models.NotificationType, title, message string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		dataJSON = string(jsonBytes)
	}

	notification := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    dataJSON,
		IsRead:  false,
	}

	if err := s.db.Create(&notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// NotifyEscrowCreated notifies the seller that a buyer opened an escrow
func (s *NotificationService) NotifyEscrowCreated(sellerID uint, buyerName string, amount int64, escrowID uint) error {
	return s.CreateNotification(
		sellerID,
		models.NotificationEscrowCreated,
		"New Escrow Opened",
		fmt.Sprintf("%s opened an escrow with you for %s. Funds are held until delivery.", buyerName, dollars(amount)),
		map[string]interface{}{
			"escrow_id":  escrowID,
			"buyer_name": buyerName,
			"amount":     amount,
		},
	)
}

// NotifyEscrowConfirmed notifies the other party of a delivery confirmation
// that did not settle the escrow (seller-side confirmation)
func (s *NotificationService) NotifyEscrowConfirmed(userID uint, confirmerName string, escrowID uint) error {
	return s.CreateNotification(
		userID,
		models.NotificationEscrowConfirmed,
		"Delivery Confirmed",
		fmt.Sprintf("%s confirmed delivery on your escrow. It completes once the buyer confirms.", confirmerName),
		map[string]interface{}{
			"escrow_id":      escrowID,
			"confirmer_name": confirmerName,
		},
	)
}

// NotifyEscrowCompleted notifies the seller that funds were released
func (s *NotificationService) NotifyEscrowCompleted(sellerID uint, buyerName string, sellerAmount int64, escrowID uint) error {
	return s.CreateNotification(
		sellerID,
		models.NotificationEscrowCompleted,
		"Funds Released",
		fmt.Sprintf("Escrow with %s completed. %s has been credited to your balance.", buyerName, dollars(sellerAmount)),
		map[string]interface{}{
			"escrow_id":  escrowID,
			"buyer_name": buyerName,
			"amount":     sellerAmount,
		},
	)
}

// NotifyEscrowRefunded notifies both parties of a refund
func (s *NotificationService) NotifyEscrowRefunded(userID uint, amount int64, escrowID uint) error {
	return s.CreateNotification(
		userID,
		models.NotificationEscrowRefunded,
		"Escrow Refunded",
		fmt.Sprintf("Escrow #%d was refunded. %s returned to the buyer.", escrowID, dollars(amount)),
		map[string]interface{}{
			"escrow_id": escrowID,
			"amount":    amount,
		},
	)
}

// NotifyDisputeRaised notifies the other party when a dispute is raised
func (s *NotificationService) NotifyDisputeRaised(userID uint, raisedByName, reason string, escrowID, disputeID uint) error {
	return s.CreateNotification(
		userID,
		models.NotificationDisputeRaised,
		"Dispute Raised",
		fmt.Sprintf("%s has raised a dispute: %s", raisedByName, reason),
		map[string]interface{}{
			"escrow_id":      escrowID,
			"dispute_id":     disputeID,
			"raised_by_name": raisedByName,
			"reason":         reason,
		},
	)
}

// NotifyDisputeResolved notifies a party of the owner's ruling
func (s *NotificationService) NotifyDisputeResolved(userID uint, refundToBuyer bool, resolution string, escrowID uint) error {
	outcome := "released to the seller"
	if refundToBuyer {
		outcome = "refunded to the buyer"
	}
	return s.CreateNotification(
		userID,
		models.NotificationDisputeResolved,
		"Dispute Resolved",
		fmt.Sprintf("The dispute on escrow #%d was resolved and funds %s. %s", escrowID, outcome, resolution),
		map[string]interface{}{
			"escrow_id":       escrowID,
			"refund_to_buyer": refundToBuyer,
			"resolution":      resolution,
		},
	)
}

// NotifyDepositSuccess confirms a completed deposit
func (s *NotificationService) NotifyDepositSuccess(userID uint, amount int64, reference string) error {
	return s.CreateNotification(
		userID,
		models.NotificationDepositSuccess,
		"Deposit Successful",
		fmt.Sprintf("%s has been credited to your balance.", dollars(amount)),
		map[string]interface{}{
			"amount":    amount,
			"reference": reference,
		},
	)
}

// NotifyWithdrawal reports the outcome of a withdrawal request
func (s *NotificationService) NotifyWithdrawal(userID uint, amount int64, reference string, succeeded bool) error {
	if succeeded {
		return s.CreateNotification(
			userID,
			models.NotificationWithdrawalSuccess,
			"Withdrawal Processed",
			fmt.Sprintf("Your withdrawal of %s has been processed.", dollars(amount)),
			map[string]interface{}{"amount": amount, "reference": reference},
		)
	}
	return s.CreateNotification(
		userID,
		models.NotificationWithdrawalFailed,
		"Withdrawal Failed",
		fmt.Sprintf("Your withdrawal of %s failed. The amount was returned to your balance.", dollars(amount)),
		map[string]interface{}{"amount": amount, "reference": reference},
	)
}

// NotifyMessageReceived pings a user about a new message
func (s *NotificationService) NotifyMessageReceived(userID uint, senderName string, conversationID uint) error {
	return s.CreateNotification(
		userID,
		models.NotificationMessageReceived,
		"New Message",
		fmt.Sprintf("%s sent you a message.", senderName),
		map[string]interface{}{
			"conversation_id": conversationID,
			"sender_name":     senderName,
		},
	)
}

package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"seekr/internal/models"
)

// Error taxonomy for ledger operations. Every operation either commits in
// full or returns one of these with nothing persisted; handlers map them onto
// HTTP status codes.
var (
	ErrNotFound     = errors.New("escrow not found")
	ErrForbidden    = errors.New("caller lacks the required role")
	ErrInvalidState = errors.New("operation not valid in current status")
	ErrTooEarly     = errors.New("delivery deadline has not passed")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	MinDeliveryDays = 1
	MaxDeliveryDays = 365
)

// EscrowService owns the settlement ledger: escrow records, the state
// machine over them, the fee split and the platform configuration. All fund
// movements happen inside a single database transaction with the state
// change they belong to.
type EscrowService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEscrowService(db *gorm.DB) *EscrowService {
	return &EscrowService{db: db, now: time.Now}
}

type CreateEscrowInput struct {
	BuyerID         uint
	SellerID        uint
	ListingID       *uint
	Amount          int64
	ItemDescription string
	DeliveryDays    int
}

// Create opens a new escrow and holds the amount from the buyer's balance
// atomically with the record insert.
func (s *EscrowService) Create(in CreateEscrowInput) (*models.Escrow, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.SellerID == 0 {
		return nil, fmt.Errorf("%w: seller is required", ErrInvalidInput)
	}
	if in.SellerID == in.BuyerID {
		return nil, fmt.Errorf("%w: buyer and seller must differ", ErrInvalidInput)
	}
	if in.DeliveryDays < MinDeliveryDays || in.DeliveryDays > MaxDeliveryDays {
		return nil, fmt.Errorf("%w: delivery days must be between %d and %d", ErrInvalidInput, MinDeliveryDays, MaxDeliveryDays)
	}

	var created models.Escrow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var seller models.User
		if err := tx.First(&seller, in.SellerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: seller does not exist", ErrInvalidInput)
			}
			return err
		}

		var buyer models.User
		if err := tx.First(&buyer, in.BuyerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: buyer does not exist", ErrInvalidInput)
			}
			return err
		}
		if buyer.Balance < in.Amount {
			return fmt.Errorf("%w: insufficient balance", ErrInvalidInput)
		}

		now := s.now()
		escrow := models.Escrow{
			BuyerID:          in.BuyerID,
			SellerID:         in.SellerID,
			ListingID:        in.ListingID,
			ItemDescription:  in.ItemDescription,
			Amount:           in.Amount,
			Status:           models.EscrowPending,
			DeliveryDeadline: now.Add(time.Duration(in.DeliveryDays) * 24 * time.Hour),
			CreatedAt:        now,
		}
		if err := tx.Create(&escrow).Error; err != nil {
			return err
		}

		// Hold funds: available -> escrow balance.
		buyer.Balance -= in.Amount
		buyer.EscrowBalance += in.Amount
		if err := tx.Save(&buyer).Error; err != nil {
			return err
		}

		if err := s.writeLedger(tx, buyer.ID, &escrow.ID, models.TransactionEscrowHold, in.Amount,
			fmt.Sprintf("Escrow hold for escrow #%d", escrow.ID)); err != nil {
			return err
		}
		if err := s.appendEvent(tx, escrow.ID, models.EventEscrowCreated, in.BuyerID, in.Amount, 0); err != nil {
			return err
		}

		created = escrow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Get returns the escrow record for id.
func (s *EscrowService) Get(id uint) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := s.db.First(&escrow, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &escrow, nil
}

// ListByParticipant returns every escrow where userID is buyer or seller, in
// creation order. Recomputed on each call.
func (s *EscrowService) ListByParticipant(userID uint) ([]models.Escrow, error) {
	var escrows []models.Escrow
	if err := s.db.
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("id ASC").
		Find(&escrows).Error; err != nil {
		return nil, err
	}
	return escrows, nil
}

// ConfirmDelivery records the caller's confirmation. Buyer confirmation
// alone releases funds to the seller; a seller-only confirmation stores the
// flag but never settles.
func (s *EscrowService) ConfirmDelivery(id, callerID uint) (*models.Escrow, error) {
	var out models.Escrow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		escrow, err := s.loadEscrow(tx, id)
		if err != nil {
			return err
		}
		if !escrow.IsParticipant(callerID) {
			return fmt.Errorf("%w: only the buyer or seller may confirm", ErrForbidden)
		}
		if escrow.Status != models.EscrowPending {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, escrow.Status)
		}

		if callerID == escrow.BuyerID {
			escrow.BuyerConfirmed = true
		} else {
			escrow.SellerConfirmed = true
		}
		if err := s.appendEvent(tx, escrow.ID, models.EventEscrowConfirmed, callerID, escrow.Amount, 0); err != nil {
			return err
		}

		if escrow.BuyerConfirmed {
			cfg, err := s.loadConfig(tx)
			if err != nil {
				return err
			}
			if err := s.settle(tx, escrow, cfg, callerID); err != nil {
				return err
			}
		}

		if err := tx.Save(escrow).Error; err != nil {
			return err
		}
		out = *escrow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestRefund returns the full amount to the buyer once the delivery
// deadline has passed without completion.
func (s *EscrowService) RequestRefund(id, callerID uint) (*models.Escrow, error) {
	var out models.Escrow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		escrow, err := s.loadEscrow(tx, id)
		if err != nil {
			return err
		}
		if callerID != escrow.BuyerID {
			return fmt.Errorf("%w: only the buyer may request a refund", ErrForbidden)
		}
		if escrow.Status != models.EscrowPending {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, escrow.Status)
		}
		if !s.now().After(escrow.DeliveryDeadline) {
			return fmt.Errorf("%w: deadline is %s", ErrTooEarly, escrow.DeliveryDeadline.Format(time.RFC3339))
		}

		if err := s.refund(tx, escrow, callerID); err != nil {
			return err
		}
		if err := tx.Save(escrow).Error; err != nil {
			return err
		}
		out = *escrow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RaiseDispute freezes a pending escrow and opens a dispute case. No funds
// move until the owner resolves it.
func (s *EscrowService) RaiseDispute(id, callerID uint, reason models.DisputeReason, description, evidence, evidencePublicID string) (*models.Dispute, error) {
	var out models.Dispute
	err := s.db.Transaction(func(tx *gorm.DB) error {
		escrow, err := s.loadEscrow(tx, id)
		if err != nil {
			return err
		}
		if !escrow.IsParticipant(callerID) {
			return fmt.Errorf("%w: only the buyer or seller may dispute", ErrForbidden)
		}
		if escrow.Status != models.EscrowPending {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, escrow.Status)
		}

		now := s.now()
		escrow.Status = models.EscrowDisputed
		escrow.DisputedAt = &now
		if err := tx.Save(escrow).Error; err != nil {
			return err
		}

		dispute := models.Dispute{
			EscrowID:         escrow.ID,
			RaisedBy:         callerID,
			Reason:           reason,
			Description:      description,
			Evidence:         evidence,
			EvidencePublicID: evidencePublicID,
			Status:           models.DisputeOpen,
		}
		if err := tx.Create(&dispute).Error; err != nil {
			return err
		}

		if err := s.appendEvent(tx, escrow.ID, models.EventEscrowDisputed, callerID, escrow.Amount, 0); err != nil {
			return err
		}
		out = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveDispute is the owner's ruling on a disputed escrow: refund the
// buyer in full, or settle to the seller with the fee split applied.
func (s *EscrowService) ResolveDispute(id, callerID uint, refundToBuyer bool, resolution string) (*models.Escrow, error) {
	var out models.Escrow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.ownerConfig(tx, callerID)
		if err != nil {
			return err
		}
		escrow, err := s.loadEscrow(tx, id)
		if err != nil {
			return err
		}
		if escrow.Status != models.EscrowDisputed {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, escrow.Status)
		}

		if refundToBuyer {
			if err := s.refund(tx, escrow, callerID); err != nil {
				return err
			}
		} else {
			if err := s.settle(tx, escrow, cfg, callerID); err != nil {
				return err
			}
		}
		if err := tx.Save(escrow).Error; err != nil {
			return err
		}

		now := s.now()
		if err := tx.Model(&models.Dispute{}).
			Where("escrow_id = ? AND status = ?", escrow.ID, models.DisputeOpen).
			Updates(map[string]interface{}{
				"status":          models.DisputeResolved,
				"resolution":      resolution,
				"refund_to_buyer": refundToBuyer,
				"resolved_by":     callerID,
				"resolved_at":     now,
			}).Error; err != nil {
			return err
		}

		if err := s.appendEvent(tx, escrow.ID, models.EventEscrowResolved, callerID, escrow.Amount, 0); err != nil {
			return err
		}
		out = *escrow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// IsOverdue reports whether the escrow is still pending past its delivery
// deadline.
func (s *EscrowService) IsOverdue(id uint) (bool, error) {
	escrow, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return escrow.Status == models.EscrowPending && s.now().After(escrow.DeliveryDeadline), nil
}

// Events returns the append-only history of an escrow in write order.
func (s *EscrowService) Events(id uint) ([]models.EscrowEvent, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	var events []models.EscrowEvent
	if err := s.db.Where("escrow_id = ?", id).Order("id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FeeSplit computes the platform cut for amount at feeBps. The fee rounds
// down; the remainder goes to the seller, so the two always sum to amount.
func FeeSplit(amount, feeBps int64) (feeAmount, sellerAmount int64) {
	feeAmount = amount * feeBps / 10000
	sellerAmount = amount - feeAmount
	return feeAmount, sellerAmount
}

// settle pays out a completed escrow: fee to the platform account, the rest
// to the seller. Runs inside the caller's transaction and marks the escrow
// delivered.
func (s *EscrowService) settle(tx *gorm.DB, escrow *models.Escrow, cfg *models.PlatformConfig, actorID uint) error {
	feeAmount, sellerAmount := FeeSplit(escrow.Amount, cfg.FeeBps)

	var buyer models.User
	if err := tx.First(&buyer, escrow.BuyerID).Error; err != nil {
		return err
	}
	buyer.EscrowBalance -= escrow.Amount
	if err := tx.Save(&buyer).Error; err != nil {
		return err
	}

	var seller models.User
	if err := tx.First(&seller, escrow.SellerID).Error; err != nil {
		return err
	}
	seller.Balance += sellerAmount
	if err := tx.Save(&seller).Error; err != nil {
		return err
	}
	if err := s.writeLedger(tx, seller.ID, &escrow.ID, models.TransactionRelease, sellerAmount,
		fmt.Sprintf("Escrow #%d release", escrow.ID)); err != nil {
		return err
	}

	// Recipient is loaded after the seller write so a recipient who is also
	// the seller sees the credited balance.
	if feeAmount > 0 {
		var recipient models.User
		if err := tx.First(&recipient, cfg.FeeRecipientID).Error; err != nil {
			return err
		}
		recipient.Balance += feeAmount
		if err := tx.Save(&recipient).Error; err != nil {
			return err
		}
		if err := s.writeLedger(tx, recipient.ID, &escrow.ID, models.TransactionFee, feeAmount,
			fmt.Sprintf("Platform fee for escrow #%d", escrow.ID)); err != nil {
			return err
		}
	}

	now := s.now()
	escrow.Status = models.EscrowDelivered
	escrow.DeliveredAt = &now
	return s.appendEvent(tx, escrow.ID, models.EventEscrowCompleted, actorID, sellerAmount, feeAmount)
}

// refund returns the full held amount to the buyer, no fee deducted, and
// marks the escrow refunded. Runs inside the caller's transaction.
func (s *EscrowService) refund(tx *gorm.DB, escrow *models.Escrow, actorID uint) error {
	var buyer models.User
	if err := tx.First(&buyer, escrow.BuyerID).Error; err != nil {
		return err
	}
	buyer.EscrowBalance -= escrow.Amount
	buyer.Balance += escrow.Amount
	if err := tx.Save(&buyer).Error; err != nil {
		return err
	}
	if err := s.writeLedger(tx, buyer.ID, &escrow.ID, models.TransactionRefund, escrow.Amount,
		fmt.Sprintf("Escrow #%d refund", escrow.ID)); err != nil {
		return err
	}

	now := s.now()
	escrow.Status = models.EscrowRefunded
	escrow.RefundedAt = &now
	return s.appendEvent(tx, escrow.ID, models.EventEscrowRefunded, actorID, escrow.Amount, 0)
}

func (s *EscrowService) loadEscrow(tx *gorm.DB, id uint) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := tx.First(&escrow, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &escrow, nil
}

func (s *EscrowService) appendEvent(tx *gorm.DB, escrowID uint, typ models.EscrowEventType, actorID uint, amount, feeAmount int64) error {
	return tx.Create(&models.EscrowEvent{
		EscrowID:  escrowID,
		Type:      typ,
		ActorID:   actorID,
		Amount:    amount,
		FeeAmount: feeAmount,
		CreatedAt: s.now(),
	}).Error
}

func (s *EscrowService) writeLedger(tx *gorm.DB, userID uint, escrowID *uint, typ models.TransactionType, amount int64, description string) error {
	now := s.now()
	return tx.Create(&models.Transaction{
		UserID:      userID,
		EscrowID:    escrowID,
		Type:        typ,
		Amount:      amount,
		Status:      models.TransactionCompleted,
		Reference:   NewReference(string(typ)),
		Description: description,
		CompletedAt: &now,
	}).Error
}

package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"seekr/internal/models"
)

// InitializePlatform creates the singleton configuration row with ownerID as
// both owner and fee recipient at the default fee rate. Fails if the
// platform is already initialized.
func (s *EscrowService) InitializePlatform(ownerID uint) (*models.PlatformConfig, error) {
	var cfg models.PlatformConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PlatformConfig{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: platform already initialized", ErrInvalidState)
		}
		var owner models.User
		if err := tx.First(&owner, ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: owner does not exist", ErrInvalidInput)
			}
			return err
		}
		cfg = models.PlatformConfig{
			OwnerID:        ownerID,
			FeeRecipientID: ownerID,
			FeeBps:         models.DefaultFeeBps,
		}
		return tx.Create(&cfg).Error
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Config returns the current platform configuration.
func (s *EscrowService) Config() (*models.PlatformConfig, error) {
	return s.loadConfig(s.db)
}

// UpdateFee sets the platform fee rate. Owner only; newBps may not exceed
// the 10% cap.
func (s *EscrowService) UpdateFee(callerID uint, newBps int64) (*models.PlatformConfig, error) {
	if newBps < 0 || newBps > models.MaxFeeBps {
		return nil, fmt.Errorf("%w: fee must be between 0 and %d bps", ErrInvalidInput, models.MaxFeeBps)
	}
	var out models.PlatformConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.ownerConfig(tx, callerID)
		if err != nil {
			return err
		}
		cfg.FeeBps = newBps
		if err := tx.Save(cfg).Error; err != nil {
			return err
		}
		out = *cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateFeeRecipient changes where settlement fees are paid. Owner only; the
// recipient must be an existing, non-suspended account.
func (s *EscrowService) UpdateFeeRecipient(callerID, newRecipientID uint) (*models.PlatformConfig, error) {
	if newRecipientID == 0 {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	var out models.PlatformConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.ownerConfig(tx, callerID)
		if err != nil {
			return err
		}
		var recipient models.User
		if err := tx.First(&recipient, newRecipientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: recipient does not exist", ErrInvalidInput)
			}
			return err
		}
		if recipient.IsSuspended {
			return fmt.Errorf("%w: recipient account is suspended", ErrInvalidInput)
		}
		cfg.FeeRecipientID = newRecipientID
		if err := tx.Save(cfg).Error; err != nil {
			return err
		}
		out = *cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EmergencyWithdraw sweeps held balances that no open escrow accounts for to
// the owner. Funds committed to pending or disputed escrows are never
// touched. Operational backstop, not part of the normal flow; returns the
// amount swept.
func (s *EscrowService) EmergencyWithdraw(callerID uint) (int64, error) {
	var swept int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.ownerConfig(tx, callerID)
		if err != nil {
			return err
		}

		var holders []models.User
		if err := tx.Where("escrow_balance > 0").Find(&holders).Error; err != nil {
			return err
		}
		for i := range holders {
			holder := &holders[i]
			var committed int64
			if err := tx.Model(&models.Escrow{}).
				Where("buyer_id = ? AND status IN ?", holder.ID,
					[]models.EscrowStatus{models.EscrowPending, models.EscrowDisputed}).
				Select("COALESCE(SUM(amount), 0)").
				Scan(&committed).Error; err != nil {
				return err
			}
			excess := holder.EscrowBalance - committed
			if excess <= 0 {
				continue
			}
			holder.EscrowBalance -= excess
			if err := tx.Save(holder).Error; err != nil {
				return err
			}
			swept += excess
		}

		if swept == 0 {
			return nil
		}

		var owner models.User
		if err := tx.First(&owner, cfg.OwnerID).Error; err != nil {
			return err
		}
		owner.Balance += swept
		if err := tx.Save(&owner).Error; err != nil {
			return err
		}
		return s.writeLedger(tx, owner.ID, nil, models.TransactionSweep, swept,
			"Emergency sweep of uncommitted escrow balances")
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

func (s *EscrowService) loadConfig(tx *gorm.DB) (*models.PlatformConfig, error) {
	var cfg models.PlatformConfig
	if err := tx.First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: platform is not initialized", ErrInvalidState)
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *EscrowService) ownerConfig(tx *gorm.DB, callerID uint) (*models.PlatformConfig, error) {
	cfg, err := s.loadConfig(tx)
	if err != nil {
		return nil, err
	}
	if cfg.OwnerID != callerID {
		return nil, fmt.Errorf("%w: owner only", ErrForbidden)
	}
	return cfg, nil
}

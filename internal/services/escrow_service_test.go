package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seekr/internal/database"
	"seekr/internal/models"
)

var testDBSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:escrowtest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateOn(db))
	return db
}

func newTestService(t *testing.T) (*EscrowService, *gorm.DB) {
	db := newTestDB(t)
	return NewEscrowService(db), db
}

func newTestUser(t *testing.T, db *gorm.DB, name string, balance int64) *models.User {
	t.Helper()
	user := models.User{
		FullName:        name,
		Email:           fmt.Sprintf("%s-%d@example.com", name, atomic.AddInt64(&testDBSeq, 1)),
		Phone:           "5550100",
		Password:        "hashed",
		UserTag:         fmt.Sprintf("@%s%d", name, atomic.AddInt64(&testDBSeq, 1)),
		Balance:         balance,
		IsEmailVerified: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return &user
}

// initPlatform creates the owner account and the platform config.
func initPlatform(t *testing.T, svc *EscrowService, db *gorm.DB) *models.User {
	t.Helper()
	owner := newTestUser(t, db, "owner", 0)
	_, err := svc.InitializePlatform(owner.ID)
	require.NoError(t, err)
	return owner
}

func createEscrow(t *testing.T, svc *EscrowService, buyer, seller *models.User, amount int64, days int) *models.Escrow {
	t.Helper()
	escrow, err := svc.Create(CreateEscrowInput{
		BuyerID:         buyer.ID,
		SellerID:        seller.ID,
		Amount:          amount,
		ItemDescription: "1987 rookie card, near mint",
		DeliveryDays:    days,
	})
	require.NoError(t, err)
	return escrow
}

func TestCreateEscrowHoldsFunds(t *testing.T) {
	svc, db := newTestService(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	buyer := newTestUser(t, db, "buyer", 10000)
	seller := newTestUser(t, db, "seller", 0)

	escrow := createEscrow(t, svc, buyer, seller, 4000, 7)

	assert.Equal(t, models.EscrowPending, escrow.Status)
	assert.False(t, escrow.BuyerConfirmed)
	assert.False(t, escrow.SellerConfirmed)
	assert.Equal(t, start.Add(7*24*time.Hour), escrow.DeliveryDeadline)

	buyer = reloadUser(t, db, buyer.ID)
	assert.Equal(t, int64(6000), buyer.Balance)
	assert.Equal(t, int64(4000), buyer.EscrowBalance)

	var ledger models.Transaction
	require.NoError(t, db.Where("escrow_id = ? AND type = ?", escrow.ID, models.TransactionEscrowHold).First(&ledger).Error)
	assert.Equal(t, int64(4000), ledger.Amount)
	assert.Equal(t, buyer.ID, ledger.UserID)

	events, err := svc.Events(escrow.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventEscrowCreated, events[0].Type)
}

func TestCreateEscrowValidation(t *testing.T) {
	svc, db := newTestService(t)
	buyer := newTestUser(t, db, "buyer", 1000)
	seller := newTestUser(t, db, "seller", 0)

	cases := []struct {
		name string
		in   CreateEscrowInput
	}{
		{"zero amount", CreateEscrowInput{BuyerID: buyer.ID, SellerID: seller.ID, Amount: 0, DeliveryDays: 7}},
		{"negative amount", CreateEscrowInput{BuyerID: buyer.ID, SellerID: seller.ID, Amount: -100, DeliveryDays: 7}},
		{"self dealing", CreateEscrowInput{BuyerID: buyer.ID, SellerID: buyer.ID, Amount: 100, DeliveryDays: 7}},
		{"missing seller", CreateEscrowInput{BuyerID: buyer.ID, Amount: 100, DeliveryDays: 7}},
		{"unknown seller", CreateEscrowInput{BuyerID: buyer.ID, SellerID: 9999, Amount: 100, DeliveryDays: 7}},
		{"days too small", CreateEscrowInput{BuyerID: buyer.ID, SellerID: seller.ID, Amount: 100, DeliveryDays: 0}},
		{"days too large", CreateEscrowInput{BuyerID: buyer.ID, SellerID: seller.ID, Amount: 100, DeliveryDays: 366}},
		{"insufficient balance", CreateEscrowInput{BuyerID: buyer.ID, SellerID: seller.ID, Amount: 2000, DeliveryDays: 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(tc.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	// Nothing persisted by the rejected attempts.
	var count int64
	db.Model(&models.Escrow{}).Count(&count)
	assert.Zero(t, count)
	buyer = reloadUser(t, db, buyer.ID)
	assert.Equal(t, int64(1000), buyer.Balance)
	assert.Zero(t, buyer.EscrowBalance)
}

func TestBuyerConfirmationSettles(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)

	buyer := newTestUser(t, db, "buyer", 10000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 10000, 7)

	// Default fee is 250 bps: 2.5% of $100.00 is $2.50.
	out, err := svc.ConfirmDelivery(escrow.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowDelivered, out.Status)
	assert.True(t, out.BuyerConfirmed)
	require.NotNil(t, out.DeliveredAt)

	buyer = reloadUser(t, db, buyer.ID)
	seller = reloadUser(t, db, seller.ID)
	owner = reloadUser(t, db, owner.ID)
	assert.Zero(t, buyer.EscrowBalance)
	assert.Zero(t, buyer.Balance)
	assert.Equal(t, int64(9750), seller.Balance)
	assert.Equal(t, int64(250), owner.Balance)

	events, err := svc.Events(escrow.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventEscrowCreated, events[0].Type)
	assert.Equal(t, models.EventEscrowConfirmed, events[1].Type)
	assert.Equal(t, models.EventEscrowCompleted, events[2].Type)
	assert.Equal(t, int64(250), events[2].FeeAmount)
}

func TestSellerConfirmationDoesNotSettle(t *testing.T) {
	svc, db := newTestService(t)
	initPlatform(t, svc, db)

	buyer := newTestUser(t, db, "buyer", 5000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 5000, 7)

	out, err := svc.ConfirmDelivery(escrow.ID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowPending, out.Status)
	assert.True(t, out.SellerConfirmed)
	assert.False(t, out.BuyerConfirmed)

	seller = reloadUser(t, db, seller.ID)
	assert.Zero(t, seller.Balance)

	// The buyer's confirmation afterwards releases immediately.
	out, err = svc.ConfirmDelivery(escrow.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowDelivered, out.Status)
}

func TestConfirmDeliveryGuards(t *testing.T) {
	svc, db := newTestService(t)
	initPlatform(t, svc, db)

	buyer := newTestUser(t, db, "buyer", 5000)
	seller := newTestUser(t, db, "seller", 0)
	stranger := newTestUser(t, db, "stranger", 0)
	escrow := createEscrow(t, svc, buyer, seller, 5000, 7)

	_, err := svc.ConfirmDelivery(escrow.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ConfirmDelivery(9999, buyer.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Terminal escrows accept no further confirmations.
	_, err = svc.ConfirmDelivery(escrow.ID, buyer.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmDelivery(escrow.ID, seller.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRequestRefund(t *testing.T) {
	svc, db := newTestService(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := start
	svc.now = func() time.Time { return current }

	buyer := newTestUser(t, db, "buyer", 8000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 8000, 7)

	// Not the buyer.
	_, err := svc.RequestRefund(escrow.ID, seller.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Deadline not yet passed, including the boundary instant.
	_, err = svc.RequestRefund(escrow.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrTooEarly)
	current = escrow.DeliveryDeadline
	_, err = svc.RequestRefund(escrow.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrTooEarly)

	// One second past the deadline the full amount comes back, no fee.
	current = escrow.DeliveryDeadline.Add(time.Second)
	out, err := svc.RequestRefund(escrow.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowRefunded, out.Status)
	require.NotNil(t, out.RefundedAt)

	buyer = reloadUser(t, db, buyer.ID)
	assert.Equal(t, int64(8000), buyer.Balance)
	assert.Zero(t, buyer.EscrowBalance)

	// Refund is terminal.
	_, err = svc.RequestRefund(escrow.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFeeSplit(t *testing.T) {
	cases := []struct {
		amount, bps, fee, seller int64
	}{
		{10000, 250, 250, 9750},
		{10000, 0, 0, 10000},
		{10000, 1000, 1000, 9000},
		{1, 250, 0, 1},     // fee rounds down
		{39, 250, 0, 39},   // below one cent of fee
		{41, 250, 1, 40},   // first amount with a non-zero fee
		{9999, 250, 249, 9750},
	}
	for _, tc := range cases {
		fee, seller := FeeSplit(tc.amount, tc.bps)
		assert.Equal(t, tc.fee, fee, "fee for %d at %d bps", tc.amount, tc.bps)
		assert.Equal(t, tc.seller, seller)
		assert.Equal(t, tc.amount, fee+seller, "split must sum to the amount")
	}
}

func TestZeroFeeSkipsFeeLedger(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)
	_, err := svc.UpdateFee(owner.ID, 0)
	require.NoError(t, err)

	buyer := newTestUser(t, db, "buyer", 3000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 3000, 7)

	_, err = svc.ConfirmDelivery(escrow.ID, buyer.ID)
	require.NoError(t, err)

	seller = reloadUser(t, db, seller.ID)
	assert.Equal(t, int64(3000), seller.Balance)

	var feeRows int64
	db.Model(&models.Transaction{}).Where("type = ?", models.TransactionFee).Count(&feeRows)
	assert.Zero(t, feeRows)
}

func TestSettleWhenRecipientIsSeller(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)

	buyer := newTestUser(t, db, "buyer", 10000)
	seller := newTestUser(t, db, "seller", 0)
	_, err := svc.UpdateFeeRecipient(owner.ID, seller.ID)
	require.NoError(t, err)

	escrow := createEscrow(t, svc, buyer, seller, 10000, 7)
	_, err = svc.ConfirmDelivery(escrow.ID, buyer.ID)
	require.NoError(t, err)

	// Seller receives both the release and the fee.
	seller = reloadUser(t, db, seller.ID)
	assert.Equal(t, int64(10000), seller.Balance)
}

func TestDisputeLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)

	buyer := newTestUser(t, db, "buyer", 6000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 6000, 7)

	stranger := newTestUser(t, db, "stranger", 0)
	_, err := svc.RaiseDispute(escrow.ID, stranger.ID, models.ReasonOther, "not mine", "", "")
	assert.ErrorIs(t, err, ErrForbidden)

	dispute, err := svc.RaiseDispute(escrow.ID, buyer.ID, models.ReasonNotReceived, "never arrived", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.DisputeOpen, dispute.Status)

	reloaded, err := svc.Get(escrow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowDisputed, reloaded.Status)
	require.NotNil(t, reloaded.DisputedAt)

	// A disputed escrow is frozen for everything but resolution.
	_, err = svc.ConfirmDelivery(escrow.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.RaiseDispute(escrow.ID, seller.ID, models.ReasonOther, "again", "", "")
	assert.ErrorIs(t, err, ErrInvalidState)

	// Only the owner rules.
	_, err = svc.ResolveDispute(escrow.ID, buyer.ID, true, "refund them")
	assert.ErrorIs(t, err, ErrForbidden)

	out, err := svc.ResolveDispute(escrow.ID, owner.ID, true, "seller never shipped")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowRefunded, out.Status)

	buyer = reloadUser(t, db, buyer.ID)
	assert.Equal(t, int64(6000), buyer.Balance)
	assert.Zero(t, buyer.EscrowBalance)

	var resolved models.Dispute
	require.NoError(t, db.Where("escrow_id = ?", escrow.ID).First(&resolved).Error)
	assert.Equal(t, models.DisputeResolved, resolved.Status)
	require.NotNil(t, resolved.RefundToBuyer)
	assert.True(t, *resolved.RefundToBuyer)
	assert.Equal(t, "seller never shipped", resolved.Resolution)

	_, err = svc.ResolveDispute(escrow.ID, owner.ID, true, "twice")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestResolveDisputeForSeller(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)

	buyer := newTestUser(t, db, "buyer", 10000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 10000, 7)

	_, err := svc.RaiseDispute(escrow.ID, seller.ID, models.ReasonOther, "buyer ghosted after delivery", "", "")
	require.NoError(t, err)

	out, err := svc.ResolveDispute(escrow.ID, owner.ID, false, "tracking shows delivery")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowDelivered, out.Status)

	// Releasing through a ruling applies the normal fee split.
	seller = reloadUser(t, db, seller.ID)
	owner = reloadUser(t, db, owner.ID)
	assert.Equal(t, int64(9750), seller.Balance)
	assert.Equal(t, int64(250), owner.Balance)
}

func TestResolveDisputeRequiresDisputedState(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)

	buyer := newTestUser(t, db, "buyer", 1000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 1000, 7)

	_, err := svc.ResolveDispute(escrow.ID, owner.ID, true, "still pending")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestIsOverdue(t *testing.T) {
	svc, db := newTestService(t)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }

	buyer := newTestUser(t, db, "buyer", 1000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 1000, 3)

	overdue, err := svc.IsOverdue(escrow.ID)
	require.NoError(t, err)
	assert.False(t, overdue)

	current = escrow.DeliveryDeadline.Add(time.Minute)
	overdue, err = svc.IsOverdue(escrow.ID)
	require.NoError(t, err)
	assert.True(t, overdue)

	_, err = svc.IsOverdue(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByParticipantOrder(t *testing.T) {
	svc, db := newTestService(t)

	buyer := newTestUser(t, db, "buyer", 10000)
	seller := newTestUser(t, db, "seller", 10000)
	other := newTestUser(t, db, "other", 10000)

	first := createEscrow(t, svc, buyer, seller, 1000, 7)
	second := createEscrow(t, svc, seller, buyer, 2000, 7) // roles swapped
	createEscrow(t, svc, other, seller, 3000, 7)           // not the buyer's

	escrows, err := svc.ListByParticipant(buyer.ID)
	require.NoError(t, err)
	require.Len(t, escrows, 2)
	assert.Equal(t, first.ID, escrows[0].ID)
	assert.Equal(t, second.ID, escrows[1].ID)
}

func TestInitializePlatformOnce(t *testing.T) {
	svc, db := newTestService(t)
	owner := newTestUser(t, db, "owner", 0)

	cfg, err := svc.InitializePlatform(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, cfg.OwnerID)
	assert.Equal(t, owner.ID, cfg.FeeRecipientID)
	assert.Equal(t, int64(models.DefaultFeeBps), cfg.FeeBps)

	_, err = svc.InitializePlatform(owner.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = NewEscrowService(newTestDB(t)).InitializePlatform(9999)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateFeeBounds(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)
	other := newTestUser(t, db, "other", 0)

	_, err := svc.UpdateFee(owner.ID, models.MaxFeeBps+1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpdateFee(owner.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpdateFee(other.ID, 100)
	assert.ErrorIs(t, err, ErrForbidden)

	cfg, err := svc.UpdateFee(owner.ID, models.MaxFeeBps)
	require.NoError(t, err)
	assert.Equal(t, int64(models.MaxFeeBps), cfg.FeeBps)
}

func TestUpdateFeeRecipient(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)

	_, err := svc.UpdateFeeRecipient(owner.ID, 9999)
	assert.ErrorIs(t, err, ErrInvalidInput)

	suspended := newTestUser(t, db, "suspended", 0)
	suspended.IsSuspended = true
	require.NoError(t, db.Save(suspended).Error)
	_, err = svc.UpdateFeeRecipient(owner.ID, suspended.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	recipient := newTestUser(t, db, "treasury", 0)
	cfg, err := svc.UpdateFeeRecipient(owner.ID, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, recipient.ID, cfg.FeeRecipientID)
}

func TestEmergencyWithdraw(t *testing.T) {
	svc, db := newTestService(t)
	owner := initPlatform(t, svc, db)

	// buyer holds 5000 against an open escrow plus 1500 of stale held funds.
	buyer := newTestUser(t, db, "buyer", 5000)
	seller := newTestUser(t, db, "seller", 0)
	createEscrow(t, svc, buyer, seller, 5000, 7)

	buyer = reloadUser(t, db, buyer.ID)
	buyer.EscrowBalance += 1500
	require.NoError(t, db.Save(buyer).Error)

	other := newTestUser(t, db, "other", 0)
	_, err := svc.EmergencyWithdraw(other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	swept, err := svc.EmergencyWithdraw(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), swept)

	// The open escrow's hold is untouched.
	buyer = reloadUser(t, db, buyer.ID)
	assert.Equal(t, int64(5000), buyer.EscrowBalance)
	owner = reloadUser(t, db, owner.ID)
	assert.Equal(t, int64(1500), owner.Balance)

	var sweepRow models.Transaction
	require.NoError(t, db.Where("type = ?", models.TransactionSweep).First(&sweepRow).Error)
	assert.Equal(t, int64(1500), sweepRow.Amount)

	// Nothing left to sweep.
	swept, err = svc.EmergencyWithdraw(owner.ID)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestOperationsWithoutPlatformConfig(t *testing.T) {
	svc, db := newTestService(t)

	buyer := newTestUser(t, db, "buyer", 1000)
	seller := newTestUser(t, db, "seller", 0)
	escrow := createEscrow(t, svc, buyer, seller, 1000, 7)

	// Settlement needs the fee config; creation and seller confirmation do not.
	_, err := svc.ConfirmDelivery(escrow.ID, seller.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmDelivery(escrow.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Config()
	assert.ErrorIs(t, err, ErrInvalidState)
}

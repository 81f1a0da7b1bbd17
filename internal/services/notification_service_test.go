package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekr/internal/models"
)

func TestCreateNotification(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db)
	user := newTestUser(t, db, "reader", 0)

	err := svc.NotifyEscrowCreated(user.ID, "Alice", 12345, 42)
	require.NoError(t, err)

	var n models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&n).Error)
	assert.Equal(t, models.NotificationEscrowCreated, n.Type)
	assert.False(t, n.IsRead)
	assert.Contains(t, n.Message, "Alice")
	assert.Contains(t, n.Message, "$123.45")

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(n.Data), &data))
	assert.Equal(t, float64(42), data["escrow_id"])
}

func TestNotifyWithdrawalOutcomes(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db)
	user := newTestUser(t, db, "reader", 0)

	require.NoError(t, svc.NotifyWithdrawal(user.ID, 5000, "WTH-abc", true))
	require.NoError(t, svc.NotifyWithdrawal(user.ID, 5000, "WTH-def", false))

	var types []models.NotificationType
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", user.ID).Order("id ASC").
		Pluck("type", &types).Error)
	assert.Equal(t, []models.NotificationType{
		models.NotificationWithdrawalSuccess,
		models.NotificationWithdrawalFailed,
	}, types)
}

func TestDollarsFormatting(t *testing.T) {
	assert.Equal(t, "$0.00", dollars(0))
	assert.Equal(t, "$0.01", dollars(1))
	assert.Equal(t, "$123.45", dollars(12345))
	assert.Equal(t, "$100.00", dollars(10000))
}

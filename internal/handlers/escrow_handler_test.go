package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"seekr/internal/database"
	"seekr/internal/models"
	"seekr/internal/services"
)

var handlerTestSeq int64

// setupTestApp points the handler package at an in-memory database and mounts
// the escrow routes the way main does.
func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SECRET", "handler-test-secret")

	dsn := fmt.Sprintf("file:handlertest%d?mode=memory&cache=shared", atomic.AddInt64(&handlerTestSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateOn(db))

	database.DB = db
	escrowService = services.NewEscrowService(db)
	notificationService = services.NewNotificationService(db)

	app := fiber.New()
	registerTestEscrowRoutes(app)
	return app, db
}

func registerTestEscrowRoutes(app *fiber.App) {
	escrow := app.Group("/api/escrow", testAuth)
	escrow.Get("/my", GetMyEscrows)
	escrow.Post("/", CreateEscrow)
	escrow.Get("/:id", GetEscrowByID)
	escrow.Post("/:id/confirm", ConfirmDelivery)
	escrow.Post("/:id/refund", RequestRefund)
	escrow.Get("/:id/overdue", GetEscrowOverdue)
	escrow.Get("/:id/events", GetEscrowEvents)
}

// testAuth reads the user id straight from a header; the JWT middleware has
// its own coverage.
func testAuth(c *fiber.Ctx) error {
	var id uint
	fmt.Sscanf(c.Get("X-Test-User"), "%d", &id)
	if id == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
	}
	c.Locals("user_id", id)
	return c.Next()
}

func seedUser(t *testing.T, db *gorm.DB, name string, balance int64) *models.User {
	t.Helper()
	user := models.User{
		FullName:        name,
		Email:           fmt.Sprintf("%s-%d@example.com", name, atomic.AddInt64(&handlerTestSeq, 1)),
		Phone:           "5550100",
		Password:        "hashed",
		UserTag:         fmt.Sprintf("@%s%d", name, atomic.AddInt64(&handlerTestSeq, 1)),
		Balance:         balance,
		IsEmailVerified: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func doJSON(t *testing.T, app *fiber.App, method, path string, asUser uint, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asUser != 0 {
		req.Header.Set("X-Test-User", fmt.Sprint(asUser))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestCreateEscrowEndpoint(t *testing.T) {
	app, db := setupTestApp(t)

	owner := seedUser(t, db, "owner", 0)
	_, err := escrowService.InitializePlatform(owner.ID)
	require.NoError(t, err)

	buyer := seedUser(t, db, "buyer", 10000)
	seller := seedUser(t, db, "seller", 0)

	resp, body := doJSON(t, app, "POST", "/api/escrow/", buyer.ID, fiber.Map{
		"seller_tag":       seller.UserTag,
		"item_description": "signed team photo",
		"amount":           4000,
		"delivery_days":    7,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(6000), body["available_balance"])
	assert.Equal(t, float64(4000), body["escrow_balance"])

	// Seller got an in-app notification.
	var notifications int64
	db.Model(&models.Notification{}).Where("user_id = ?", seller.ID).Count(&notifications)
	assert.Equal(t, int64(1), notifications)

	// Unknown seller tag.
	resp, _ = doJSON(t, app, "POST", "/api/escrow/", buyer.ID, fiber.Map{
		"seller_tag":       "@nobody",
		"item_description": "anything",
		"amount":           100,
		"delivery_days":    7,
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Insufficient balance maps to a 400.
	resp, _ = doJSON(t, app, "POST", "/api/escrow/", buyer.ID, fiber.Map{
		"seller_tag":       seller.UserTag,
		"item_description": "too rich",
		"amount":           999999,
		"delivery_days":    7,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// No identity.
	resp, _ = doJSON(t, app, "POST", "/api/escrow/", 0, fiber.Map{})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestEscrowAccessControl(t *testing.T) {
	app, db := setupTestApp(t)

	owner := seedUser(t, db, "owner", 0)
	_, err := escrowService.InitializePlatform(owner.ID)
	require.NoError(t, err)

	buyer := seedUser(t, db, "buyer", 5000)
	seller := seedUser(t, db, "seller", 0)
	stranger := seedUser(t, db, "stranger", 0)

	escrow, err := escrowService.Create(services.CreateEscrowInput{
		BuyerID: buyer.ID, SellerID: seller.ID, Amount: 5000,
		ItemDescription: "vintage pennant", DeliveryDays: 7,
	})
	require.NoError(t, err)

	path := fmt.Sprintf("/api/escrow/%d", escrow.ID)

	resp, _ := doJSON(t, app, "GET", path, buyer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", path, stranger.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", "/api/escrow/9999", buyer.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", path+"/events", stranger.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestConfirmAndRefundEndpoints(t *testing.T) {
	app, db := setupTestApp(t)

	owner := seedUser(t, db, "owner", 0)
	_, err := escrowService.InitializePlatform(owner.ID)
	require.NoError(t, err)

	buyer := seedUser(t, db, "buyer", 10000)
	seller := seedUser(t, db, "seller", 0)

	escrow, err := escrowService.Create(services.CreateEscrowInput{
		BuyerID: buyer.ID, SellerID: seller.ID, Amount: 10000,
		ItemDescription: "graded comic", DeliveryDays: 7,
	})
	require.NoError(t, err)

	// Refund before the deadline is a 422.
	resp, _ := doJSON(t, app, "POST", fmt.Sprintf("/api/escrow/%d/refund", escrow.ID), buyer.ID, nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	// Seller confirmation leaves the escrow pending.
	resp, body := doJSON(t, app, "POST", fmt.Sprintf("/api/escrow/%d/confirm", escrow.ID), seller.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	escrowBody := body["escrow"].(map[string]interface{})
	assert.Equal(t, string(models.EscrowPending), escrowBody["status"])

	// Buyer confirmation settles.
	resp, body = doJSON(t, app, "POST", fmt.Sprintf("/api/escrow/%d/confirm", escrow.ID), buyer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	escrowBody = body["escrow"].(map[string]interface{})
	assert.Equal(t, string(models.EscrowDelivered), escrowBody["status"])

	// Settled escrow rejects another confirmation with a 409.
	resp, _ = doJSON(t, app, "POST", fmt.Sprintf("/api/escrow/%d/confirm", escrow.ID), seller.ID, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, seller.ID).Error)
	assert.Equal(t, int64(9750), reloaded.Balance)
}

func TestGetMyEscrowsFilter(t *testing.T) {
	app, db := setupTestApp(t)

	alice := seedUser(t, db, "alice", 10000)
	bob := seedUser(t, db, "bob", 10000)

	_, err := escrowService.Create(services.CreateEscrowInput{
		BuyerID: alice.ID, SellerID: bob.ID, Amount: 1000,
		ItemDescription: "one", DeliveryDays: 7,
	})
	require.NoError(t, err)
	_, err = escrowService.Create(services.CreateEscrowInput{
		BuyerID: bob.ID, SellerID: alice.ID, Amount: 2000,
		ItemDescription: "two", DeliveryDays: 7,
	})
	require.NoError(t, err)

	resp, body := doJSON(t, app, "GET", "/api/escrow/my", alice.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])

	resp, body = doJSON(t, app, "GET", "/api/escrow/my?role=buyer", alice.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}

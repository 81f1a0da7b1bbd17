package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"seekr/internal/database"
	"seekr/internal/services"
)

var (
	validate = validator.New()

	escrowService       *services.EscrowService
	notificationService *services.NotificationService
	emailService        *services.EmailService
	cloudinaryService   *services.CloudinaryService
	paystackService     *services.PaystackService
)

// InitServices wires the handler package to its services. Must run after
// database.Connect.
func InitServices() error {
	escrowService = services.NewEscrowService(database.DB)
	notificationService = services.NewNotificationService(database.DB)
	emailService = services.NewEmailService()
	paystackService = services.NewPaystackService()

	var err error
	cloudinaryService, err = services.NewCloudinaryService()
	if err != nil {
		return fmt.Errorf("failed to initialize Cloudinary service: %w", err)
	}
	return nil
}

// parseBody decodes and validates a JSON request body. The handler turns a
// non-nil error into a 400.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return err
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("Invalid id")
	}
	return uint(id), nil
}

// escrowError maps the service error taxonomy onto HTTP statuses.
func escrowError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrInvalidState):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrTooEarly):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidInput):
		status = fiber.StatusBadRequest
	}
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "Database error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/internal/pkg/booking"
)

var sessionCoordinator *booking.Coordinator

// InitializeSessionController injects the booking coordinator.
func InitializeSessionController(coordinator *booking.Coordinator) {
	sessionCoordinator = coordinator
}

type startSessionRequest struct {
	UserID         uint   `json:"user_id"`
	ServiceType    string `json:"service_type"`
	IdempotencyKey string `json:"idempotency_key"`
}

// HandleStartSession starts a guidance session: quote, debit, session record.
// Retries with the same idempotency key replay the original result. The
// session is booked for the authenticated key's account; user_id in the body
// is only honored for admins booking on someone's behalf.
func HandleStartSession(c *fiber.Ctx) error {
	var req startSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	userID, ok := resolveAccount(c, req.UserID)
	if !ok {
		return forbidden(c, "Cannot start a session for another user")
	}
	if strings.TrimSpace(req.ServiceType) == "" {
		return badRequest(c, "service_type is required")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return badRequest(c, "idempotency_key is required")
	}

	result, err := sessionCoordinator.StartSession(c.Context(), userID, req.ServiceType, req.IdempotencyKey)
	if err != nil {
		return writeEngineError(c, err)
	}

	status := fiber.StatusCreated
	if result.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"session_id":            result.Session.UUID,
		"status":                result.Session.Status,
		"final_credits_charged": result.CreditsCharged,
		"remaining_balance":     result.RemainingBalance,
		"replayed":              result.Replayed,
	})
}

// HandleGetSession returns one session by public id. Foreign sessions read as
// not found so the id space leaks nothing.
func HandleGetSession(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	session, err := sessionCoordinator.GetSession(c.Context(), uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Session not found")
		}
		return writeEngineError(c, err)
	}
	if !canAccessSession(c, session.UserID) {
		return notFound(c, "Session not found")
	}
	return c.JSON(session)
}

// HandleCompleteSession moves an active session to completed.
func HandleCompleteSession(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	session, err := sessionCoordinator.GetSession(c.Context(), uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Session not found")
		}
		return writeEngineError(c, err)
	}
	if !canAccessSession(c, session.UserID) {
		return notFound(c, "Session not found")
	}
	if err := sessionCoordinator.CompleteSession(c.Context(), uuid); err != nil {
		if errors.Is(err, booking.ErrIllegalTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "illegal_transition",
				"message": "Session is not active",
			})
		}
		return writeEngineError(c, err)
	}
	return c.JSON(fiber.Map{"session_id": uuid, "status": "completed"})
}

// HandleFailSession marks an active session failed and refunds the debit.
func HandleFailSession(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	session, err := sessionCoordinator.GetSession(c.Context(), uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Session not found")
		}
		return writeEngineError(c, err)
	}
	if !canAccessSession(c, session.UserID) {
		return notFound(c, "Session not found")
	}
	if err := sessionCoordinator.FailSession(c.Context(), uuid); err != nil {
		if errors.Is(err, booking.ErrIllegalTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "illegal_transition",
				"message": "Session is not active",
			})
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Session not found")
		}
		return writeEngineError(c, err)
	}
	return c.JSON(fiber.Map{"session_id": uuid, "status": "refunded"})
}

package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/soulcompass-app/SoulCompass/internal/pkg/booking"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/ledger"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/pricing"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/usercontext"
)

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": message})
}

func forbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": message})
}

// resolveAccount decides which credit account a request acts on. The identity
// comes from the authenticated API key; non-admin callers are bound to their
// own account and only admins may name someone else's.
func resolveAccount(c *fiber.Ctx, requested uint) (uint, bool) {
	authed := usercontext.GetUserID(c)
	if requested == 0 || requested == authed {
		return authed, true
	}
	if usercontext.IsAdmin(c) {
		return requested, true
	}
	return 0, false
}

// canAccessSession reports whether the caller may see or act on the session.
func canAccessSession(c *fiber.Ctx, ownerID uint) bool {
	return ownerID == usercontext.GetUserID(c) || usercontext.IsAdmin(c)
}

// writeEngineError maps engine errors onto the public surface. Users see only
// two recoverable shapes: insufficient credits, or "temporarily unavailable,
// retry"; internal cost-model detail never leaks.
func writeEngineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "insufficient_credits",
			"message": "Not enough credits for this session. Please top up.",
		})
	case errors.Is(err, pricing.ErrUnknownServiceType):
		return badRequest(c, "Unknown service type")
	case errors.Is(err, ledger.ErrAccountNotFound):
		return notFound(c, "No credit account for this user")
	}

	var compErr *booking.CompensationFailureError
	if errors.As(err, &compErr) {
		// Already escalated inside the saga; support has to resolve the
		// account before the client retries with a fresh key.
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "service_unavailable",
			"message": "Temporarily unavailable, please contact support",
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "service_unavailable",
		"message": "Temporarily unavailable, please retry",
	})
}

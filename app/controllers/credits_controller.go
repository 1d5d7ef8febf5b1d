package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/soulcompass-app/SoulCompass/internal/pkg/ledger"
)

var ledgerService *ledger.Service

// InitializeCreditsController injects the credit ledger service.
func InitializeCreditsController(svc *ledger.Service) {
	ledgerService = svc
}

// HandleGetCredits returns the user's balance, recent movements, and the
// reconciliation check used by support tooling. The ledger is private: the
// path id must match the authenticated key unless the caller is an admin.
func HandleGetCredits(c *fiber.Ctx) error {
	requested, err := c.ParamsInt("userID")
	if err != nil || requested <= 0 {
		return badRequest(c, "Invalid user id")
	}
	userID, ok := resolveAccount(c, uint(requested))
	if !ok {
		return forbidden(c, "Cannot read another user's ledger")
	}

	recon, err := ledgerService.Reconcile(c.Context(), userID)
	if err != nil {
		return writeEngineError(c, err)
	}
	txns, err := ledgerService.Transactions(c.Context(), userID, 50)
	if err != nil {
		return writeEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"user_id":      recon.UserID,
		"balance":      recon.Balance,
		"consistent":   recon.Consistent,
		"transactions": txns,
	})
}

type topUpRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// HandleTopUp credits purchased credits to the user's account, idempotently.
// Only admins may top up an account other than their own.
func HandleTopUp(c *fiber.Ctx) error {
	requested, err := c.ParamsInt("userID")
	if err != nil || requested <= 0 {
		return badRequest(c, "Invalid user id")
	}
	userID, ok := resolveAccount(c, uint(requested))
	if !ok {
		return forbidden(c, "Cannot top up another user's account")
	}

	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Amount <= 0 {
		return badRequest(c, "amount must be positive")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return badRequest(c, "idempotency_key is required")
	}

	result, err := ledgerService.TopUp(c.Context(), userID, req.Amount, req.IdempotencyKey)
	if err != nil {
		return writeEngineError(c, err)
	}

	status := fiber.StatusCreated
	if result.AlreadyProcessed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"user_id":  userID,
		"balance":  result.NewBalance,
		"replayed": result.AlreadyProcessed,
	})
}

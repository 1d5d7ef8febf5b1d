package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/soulcompass-app/SoulCompass/app/controllers"
)

// APIServer implements the v1 API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetServices lists the active guidance service catalog.
func (s *APIServer) GetServices(c *fiber.Ctx) error {
	return controllers.HandleListServices(c)
}

// PostSession starts a guidance session (quote + debit + session record).
func (s *APIServer) PostSession(c *fiber.Ctx) error {
	return controllers.HandleStartSession(c)
}

// GetSession returns a session by UUID.
func (s *APIServer) GetSession(c *fiber.Ctx) error {
	return controllers.HandleGetSession(c)
}

// PostSessionComplete completes an active session.
func (s *APIServer) PostSessionComplete(c *fiber.Ctx) error {
	return controllers.HandleCompleteSession(c)
}

// PostSessionFail fails an active session and refunds its debit.
func (s *APIServer) PostSessionFail(c *fiber.Ctx) error {
	return controllers.HandleFailSession(c)
}

// GetCredits returns balance, reconciliation, and recent movements.
func (s *APIServer) GetCredits(c *fiber.Ctx) error {
	return controllers.HandleGetCredits(c)
}

// PostTopUp credits purchased credits, idempotently.
func (s *APIServer) PostTopUp(c *fiber.Ctx) error {
	return controllers.HandleTopUp(c)
}

// PostPricingOverride proposes a pricing override.
func (s *APIServer) PostPricingOverride(c *fiber.Ctx) error {
	return controllers.HandleProposeOverride(c)
}

// PostPricingOverrideApprove approves a pending override.
func (s *APIServer) PostPricingOverrideApprove(c *fiber.Ctx) error {
	return controllers.HandleApproveOverride(c)
}

// PostPricingOverrideReject rejects a pending override.
func (s *APIServer) PostPricingOverrideReject(c *fiber.Ctx) error {
	return controllers.HandleRejectOverride(c)
}

// GetPricingOverridesPending lists overrides awaiting review.
func (s *APIServer) GetPricingOverridesPending(c *fiber.Ctx) error {
	return controllers.HandleListPendingOverrides(c)
}

// GetPricingHistory returns ranged quote history for a service type.
func (s *APIServer) GetPricingHistory(c *fiber.Ctx) error {
	return controllers.HandleGetPricingHistory(c)
}

package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soulcompass-app/SoulCompass/internal/pkg/constants"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/middleware"
)

// Pong is the ping response payload.
type Pong struct {
	Ping string `json:"ping"`
}

// RegisterHandlers attaches the v1 routes to a router group. Session and
// credit routes require a valid API key; the pricing admin group additionally
// requires the admin role.
func RegisterHandlers(r fiber.Router, s *APIServer) {
	r.Get(constants.PingRoute, s.GetPing)

	authed := r.Group("", middleware.APIKeyAuthMiddleware())
	authed.Get(constants.ServicesRoute, s.GetServices)
	authed.Post(constants.SessionsRoute, s.PostSession)
	authed.Get(constants.SessionRoute, s.GetSession)
	authed.Post(constants.SessionCompleteRoute, s.PostSessionComplete)
	authed.Post(constants.SessionFailRoute, s.PostSessionFail)

	authed.Get(constants.CreditsRoute, s.GetCredits)
	authed.Post(constants.CreditsTopUpRoute, s.PostTopUp)

	admin := authed.Group(constants.AdminPricingGroup, middleware.RequireAdmin())
	admin.Post(constants.OverridesRoute, s.PostPricingOverride)
	admin.Get(constants.OverridesPendingRoute, s.GetPricingOverridesPending)
	admin.Post(constants.OverrideApproveRoute, s.PostPricingOverrideApprove)
	admin.Post(constants.OverrideRejectRoute, s.PostPricingOverrideReject)
	admin.Get(constants.PricingHistoryRoute, s.GetPricingHistory)
}

package constants

// API route constants
const (
	PingRoute = "/ping"

	ServicesRoute = "/services"

	SessionsRoute        = "/sessions"
	SessionRoute         = "/sessions/:uuid"
	SessionCompleteRoute = "/sessions/:uuid/complete"
	SessionFailRoute     = "/sessions/:uuid/fail"

	CreditsRoute      = "/credits/:userID"
	CreditsTopUpRoute = "/credits/:userID/topup"

	// Admin routes, relative to the admin pricing group
	AdminPricingGroup     = "/admin/pricing"
	OverridesRoute        = "/overrides"
	OverridesPendingRoute = "/overrides/pending"
	OverrideApproveRoute  = "/overrides/:id/approve"
	OverrideRejectRoute   = "/overrides/:id/reject"
	PricingHistoryRoute   = "/history"
)

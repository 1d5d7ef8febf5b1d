package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/soulcompass-app/SoulCompass/app/models"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/approval"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/pricing"
)

var (
	approvalWorkflow *approval.Workflow
	priceCalculator  *pricing.Calculator
)

// InitializeAdminPricingController injects the approval workflow and the
// calculator used for history reads.
func InitializeAdminPricingController(workflow *approval.Workflow, calculator *pricing.Calculator) {
	approvalWorkflow = workflow
	priceCalculator = calculator
}

type proposeOverrideRequest struct {
	ServiceType string  `json:"service_type"`
	AdminID     uint    `json:"admin_id"`
	Field       string  `json:"field"`
	NewValue    float64 `json:"new_value"`
}

// HandleProposeOverride queues a pricing override for approval.
func HandleProposeOverride(c *fiber.Ctx) error {
	var req proposeOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.ServiceType) == "" || req.AdminID == 0 {
		return badRequest(c, "service_type and admin_id are required")
	}

	override, err := approvalWorkflow.Propose(c.Context(), req.ServiceType, req.AdminID, req.Field, req.NewValue)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownServiceType) {
			return badRequest(c, "Unknown service type")
		}
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"override_id": override.ID,
		"status":      override.Status,
		"old_value":   override.OldValue,
		"new_value":   override.NewValue,
	})
}

type reviewOverrideRequest struct {
	ReviewerID uint `json:"reviewer_id"`
}

// HandleApproveOverride applies a pending override to the live cost model.
// Effective for subsequent quotes only.
func HandleApproveOverride(c *fiber.Ctx) error {
	overrideID, err := c.ParamsInt("id")
	if err != nil || overrideID <= 0 {
		return badRequest(c, "Invalid override id")
	}
	var req reviewOverrideRequest
	if err := c.BodyParser(&req); err != nil || req.ReviewerID == 0 {
		return badRequest(c, "reviewer_id is required")
	}

	override, err := approvalWorkflow.Approve(c.Context(), uint(overrideID), req.ReviewerID)
	if err != nil {
		return writeOverrideError(c, err)
	}
	return c.JSON(override)
}

// HandleRejectOverride marks a pending override inert.
func HandleRejectOverride(c *fiber.Ctx) error {
	overrideID, err := c.ParamsInt("id")
	if err != nil || overrideID <= 0 {
		return badRequest(c, "Invalid override id")
	}
	var req reviewOverrideRequest
	if err := c.BodyParser(&req); err != nil || req.ReviewerID == 0 {
		return badRequest(c, "reviewer_id is required")
	}

	override, err := approvalWorkflow.Reject(c.Context(), uint(overrideID), req.ReviewerID)
	if err != nil {
		return writeOverrideError(c, err)
	}
	return c.JSON(override)
}

// HandleListPendingOverrides lists overrides awaiting review.
func HandleListPendingOverrides(c *fiber.Ctx) error {
	overrides, err := approvalWorkflow.Pending(c.Context())
	if err != nil {
		return writeEngineError(c, err)
	}
	if overrides == nil {
		overrides = []models.PricingOverride{}
	}
	return c.JSON(overrides)
}

// HandleGetPricingHistory returns the append-only quote history for a
// service within a time range. Defaults to the trailing 7 days.
func HandleGetPricingHistory(c *fiber.Ctx) error {
	slug := c.Query("service_type")
	if strings.TrimSpace(slug) == "" {
		return badRequest(c, "service_type is required")
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "from must be RFC3339")
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "to must be RFC3339")
		}
		to = parsed
	}

	quotes, err := priceCalculator.QuotesInRange(slug, from, to)
	if err != nil {
		return writeEngineError(c, err)
	}
	if quotes == nil {
		quotes = []models.PriceQuote{}
	}
	return c.JSON(fiber.Map{
		"service_type": slug,
		"from":         from,
		"to":           to,
		"quotes":       quotes,
	})
}

func writeOverrideError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, approval.ErrOverrideNotFound):
		return notFound(c, "Override not found")
	case errors.Is(err, approval.ErrOverrideNotPending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "not_pending",
			"message": "Override was already reviewed",
		})
	case errors.Is(err, pricing.ErrUnknownServiceType):
		return badRequest(c, "Unknown service type")
	}
	return writeEngineError(c, err)
}

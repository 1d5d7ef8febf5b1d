package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soulcompass-app/SoulCompass/app/repository"
)

// HandleListServices returns the active guidance service catalog.
func HandleListServices(c *fiber.Ctx) error {
	services, err := repository.GetGlobalFactory().GetServiceTypeRepository().GetActive()
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(fiber.Map{"services": services})
}

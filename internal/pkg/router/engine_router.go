package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soulcompass-app/SoulCompass/app/controllers"
	"github.com/soulcompass-app/SoulCompass/app/repository"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/approval"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/booking"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/database"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/ledger"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/pricing"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/telemetry"
)

// EngineRouter builds the pricing/ledger object graph and initializes the
// controllers. It installs no routes itself; the API router depends on the
// initialization happening first.
type EngineRouter struct {
}

func (h EngineRouter) InstallRouter(app *fiber.App) {
	db := database.GetDB()
	repository.InitializeFactory(db)

	pricingRepo := pricing.NewRepository(db)
	registry := pricing.NewRegistry(pricingRepo)
	recorder := telemetry.NewRecorder()
	analyzer := pricing.NewDemandAnalyzer(recorder)
	evaluator := pricing.NewCacheDiscountEvaluator(telemetry.NewChartCacheReader())
	calculator := pricing.NewCalculator(registry, analyzer, evaluator, pricingRepo)

	ledgerSvc := ledger.NewServiceFromDB(db)
	sessions := booking.NewSessionStore(db)
	coordinator := booking.NewCoordinator(calculator, ledgerSvc, sessions).WithObserver(recorder)

	workflow := approval.NewWorkflow(approval.NewRepository(db), registry, pricingRepo)

	controllers.InitializeSessionController(coordinator)
	controllers.InitializeCreditsController(ledgerSvc)
	controllers.InitializeAdminPricingController(workflow, calculator)
}

func NewEngineRouter() *EngineRouter {
	return &EngineRouter{}
}

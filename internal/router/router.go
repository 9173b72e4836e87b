package router

import (
	"database/sql"
	"fmt"
	"time"

	"cryoclean_backend/internal/config"
	"cryoclean_backend/internal/handlers"
	"cryoclean_backend/internal/repositories"
	"cryoclean_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Setup initializes the routing for the application: repositories, services
// and handlers are wired here, then the route groups are registered under
// /api/v1.
func Setup(engine *gin.Engine, db *sql.DB, cfg *config.Config) error {
	// Repositories
	userRepo := repositories.NewUserRepository(db)
	apptRepo := repositories.NewAppointmentRepository(db)
	pointsRepo := repositories.NewPointsRepository(db)
	packRepo := repositories.NewPackRepository(db)
	txManager := repositories.NewTxManager(db)

	// Services
	pricing, err := services.NewPricingEngine(cfg.Pricing)
	if err != nil {
		return fmt.Errorf("pricing engine: %w", err)
	}
	slots, err := services.NewSlotAllocator(cfg.Slots, apptRepo)
	if err != nil {
		return fmt.Errorf("slot allocator: %w", err)
	}
	ledger := services.NewPointsLedger(userRepo, pointsRepo, txManager)
	authService := services.NewAuthService(userRepo, txManager)
	apptService := services.NewAppointmentService(apptRepo, userRepo, pricing, slots, ledger, txManager, cfg.Booking, time.Now)
	packService := services.NewPackService(packRepo, ledger, txManager)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	apptHandler := handlers.NewAppointmentHandler(apptService, ledger)
	packHandler := handlers.NewPackHandler(packService)
	adminHandler := handlers.NewAdminHandler(apptService, authService, ledger)

	apiV1 := engine.Group("/api/v1")

	SetupAuthRoutes(apiV1, authHandler)
	SetupPublicRoutes(apiV1, packHandler)
	SetupAppointmentRoutes(apiV1, apptHandler)
	SetupPurchaseRoutes(apiV1, packHandler)
	SetupAdminRoutes(apiV1, adminHandler, packHandler)

	return nil
}

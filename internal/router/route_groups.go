package router

import (
	"cryoclean_backend/internal/handlers"
	"cryoclean_backend/internal/middleware"
	"cryoclean_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes sets up the authentication routes.
func SetupAuthRoutes(apiGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authRoutes := apiGroup.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh-token", authHandler.RefreshToken)

		authRequiredRoutes := authRoutes.Group("")
		authRequiredRoutes.Use(middleware.AuthMiddleware())
		{
			authRequiredRoutes.GET("/me", authHandler.GetCurrentUser)
		}
	}
}

// SetupPublicRoutes sets up the routes that need no authentication.
func SetupPublicRoutes(apiGroup *gin.RouterGroup, packHandler *handlers.PackHandler) {
	apiGroup.GET("/packs", packHandler.GetPacks)
}

// SetupAppointmentRoutes sets up the booking routes for authenticated users.
func SetupAppointmentRoutes(apiGroup *gin.RouterGroup, apptHandler *handlers.AppointmentHandler) {
	apptRoutes := apiGroup.Group("/appointments")
	apptRoutes.Use(middleware.AuthMiddleware())
	{
		apptRoutes.POST("", apptHandler.CreateAppointment)
		apptRoutes.GET("", apptHandler.GetAppointments)
		apptRoutes.GET("/availability", apptHandler.GetAvailability)
		apptRoutes.DELETE("/:id", apptHandler.CancelAppointment)
	}

	pointsRoutes := apiGroup.Group("/points")
	pointsRoutes.Use(middleware.AuthMiddleware())
	{
		pointsRoutes.GET("/transactions", apptHandler.GetPointsHistory)
	}
}

// SetupPurchaseRoutes sets up the pack purchase routes for authenticated
// users.
func SetupPurchaseRoutes(apiGroup *gin.RouterGroup, packHandler *handlers.PackHandler) {
	purchaseRoutes := apiGroup.Group("/purchases")
	purchaseRoutes.Use(middleware.AuthMiddleware())
	{
		purchaseRoutes.POST("", packHandler.CreatePurchase)
		purchaseRoutes.GET("", packHandler.GetPurchases)
		purchaseRoutes.POST("/:id/confirm", packHandler.ConfirmPurchase)
	}
}

// SetupAdminRoutes sets up the admin console routes.
func SetupAdminRoutes(apiGroup *gin.RouterGroup, adminHandler *handlers.AdminHandler, packHandler *handlers.PackHandler) {
	adminRoutes := apiGroup.Group("/admin")
	adminRoutes.Use(middleware.AuthMiddleware(), middleware.RoleAuthMiddleware(models.RoleAdmin))
	{
		adminRoutes.GET("/appointments", adminHandler.GetAppointments)
		adminRoutes.PUT("/appointments/:id/cancel", adminHandler.CancelAppointment)
		adminRoutes.PUT("/appointments/:id/status", adminHandler.UpdateAppointmentStatus)

		adminRoutes.GET("/users", adminHandler.GetUsers)
		adminRoutes.PUT("/users/:id/points", adminHandler.UpdateUserPoints)
		adminRoutes.PATCH("/users/:id/active", adminHandler.SetUserActive)

		adminRoutes.GET("/packs", packHandler.GetAllPacks)
		adminRoutes.POST("/packs", packHandler.CreatePack)
		adminRoutes.PUT("/packs/:id", packHandler.UpdatePack)
		adminRoutes.DELETE("/packs/:id", packHandler.DeactivatePack)
	}
}

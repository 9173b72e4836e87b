package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"cryoclean_backend/internal/middleware"
	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/services"
	"cryoclean_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// PackHandler serves the public pack catalog, the purchase flow and the
// admin pack management endpoints.
type PackHandler struct {
	packService services.PackService
}

// NewPackHandler creates a new PackHandler.
func NewPackHandler(ps services.PackService) *PackHandler {
	return &PackHandler{packService: ps}
}

// GetPacks handles GET /packs. Public: only active packs are returned.
func (h *PackHandler) GetPacks(c *gin.Context) {
	packs, err := h.packService.GetPacks(true)
	if err != nil {
		utils.LogError(err, "GetPacks: failed to list packs")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch packs.", ""))
		return
	}
	if packs == nil {
		packs = []models.Pack{}
	}
	c.JSON(http.StatusOK, gin.H{"packs": packs})
}

// GetAllPacks handles GET /admin/packs, inactive ones included.
func (h *PackHandler) GetAllPacks(c *gin.Context) {
	packs, err := h.packService.GetPacks(false)
	if err != nil {
		utils.LogError(err, "GetAllPacks: failed to list packs")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch packs.", ""))
		return
	}
	if packs == nil {
		packs = []models.Pack{}
	}
	c.JSON(http.StatusOK, gin.H{"packs": packs})
}

// CreatePack handles POST /admin/packs.
func (h *PackHandler) CreatePack(c *gin.Context) {
	var req services.PackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return
	}

	pack, err := h.packService.CreatePack(req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPackPricing) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
			return
		}
		utils.LogError(err, "CreatePack: failed to create pack")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to create pack.", ""))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pack": pack})
}

// UpdatePack handles PUT /admin/packs/:id.
func (h *PackHandler) UpdatePack(c *gin.Context) {
	packID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid pack ID format.", err.Error()))
		return
	}

	var req services.PackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return
	}

	pack, err := h.packService.UpdatePack(packID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPackNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Pack not found.", ""))
		case errors.Is(err, services.ErrInvalidPackPricing):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
		default:
			utils.LogError(err, "UpdatePack: failed to update pack")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to update pack.", ""))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"pack": pack})
}

// DeactivatePack handles DELETE /admin/packs/:id. Packs are never hard
// deleted because purchases reference them.
func (h *PackHandler) DeactivatePack(c *gin.Context) {
	packID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid pack ID format.", err.Error()))
		return
	}

	if err := h.packService.DeactivatePack(packID); err != nil {
		if errors.Is(err, services.ErrPackNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Pack not found.", ""))
			return
		}
		utils.LogError(err, "DeactivatePack: failed to deactivate pack")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to deactivate pack.", ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pack deactivated"})
}

// CreatePurchase handles POST /purchases. The purchase starts pending; the
// points are credited on confirmation.
func (h *PackHandler) CreatePurchase(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	var body struct {
		PackID int64 `json:"packId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return
	}

	purchase, err := h.packService.CreatePurchase(userID, body.PackID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPackNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Pack not found.", ""))
		case errors.Is(err, services.ErrPackInactive):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Pack is no longer available.", ""))
		default:
			utils.LogError(err, "CreatePurchase: failed to create purchase")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to create purchase.", ""))
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"purchase": purchase})
}

// ConfirmPurchase handles POST /purchases/:id/confirm. Idempotency is a
// conflict: a settled purchase can never be confirmed twice.
func (h *PackHandler) ConfirmPurchase(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	purchaseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid purchase ID format.", err.Error()))
		return
	}

	var req services.ConfirmPurchaseRequest
	_ = c.ShouldBindJSON(&req)

	role, _ := c.Get(middleware.ContextRole)
	asAdmin := role == models.RoleAdmin

	purchase, err := h.packService.ConfirmPurchase(purchaseID, userID, asAdmin, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPurchaseNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Purchase not found.", ""))
		case errors.Is(err, services.ErrNotPurchaseOwner):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "You can only confirm your own purchases.", ""))
		case errors.Is(err, services.ErrPurchaseSettled):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Purchase is already settled.", ""))
		default:
			utils.LogError(err, "ConfirmPurchase: failed to confirm purchase")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to confirm purchase.", ""))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Purchase confirmed",
		"purchase": purchase,
	})
}

// GetPurchases handles GET /purchases for the authenticated user.
func (h *PackHandler) GetPurchases(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	purchases, err := h.packService.GetUserPurchases(userID)
	if err != nil {
		utils.LogError(err, "GetPurchases: failed to list purchases")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch purchases.", ""))
		return
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

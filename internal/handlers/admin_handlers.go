package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cryoclean_backend/internal/middleware"
	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/services"
	"cryoclean_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the admin console operations: appointment dashboard,
// admin cancellation, status progression, user management and manual point
// adjustments.
type AdminHandler struct {
	appointmentService services.AppointmentService
	authService        services.AuthService
	pointsLedger       services.PointsLedger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(as services.AppointmentService, us services.AuthService, pl services.PointsLedger) *AdminHandler {
	return &AdminHandler{appointmentService: as, authService: us, pointsLedger: pl}
}

// GetAppointments handles GET /admin/appointments?week&status&serviceType&date.
func (h *AdminHandler) GetAppointments(c *gin.Context) {
	var filters models.AppointmentFilters
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	if statusStr := c.Query("status"); statusStr != "" {
		if !models.IsValidAppointmentStatus(statusStr) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid status value.", "status: "+statusStr))
			return
		}
		filters.Status = &statusStr
	}
	if serviceTypeStr := c.Query("serviceType"); serviceTypeStr != "" {
		if !models.IsValidServiceType(serviceTypeStr) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid serviceType value.", "serviceType: "+serviceTypeStr))
			return
		}
		filters.ServiceType = &serviceTypeStr
	}
	if dateStr := c.Query("date"); dateStr != "" {
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid date format. Use YYYY-MM-DD.", err.Error()))
			return
		}
		filters.Date = &t
	}
	if weekStr := c.Query("week"); weekStr != "" {
		t, err := time.Parse("2006-01-02", weekStr)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid week format. Use any date (YYYY-MM-DD) inside the wanted week.", err.Error()))
			return
		}
		filters.WeekOf = &t
	}

	appointments, totalCount, err := h.appointmentService.GetAppointments(filters)
	if err != nil {
		utils.LogError(err, "Admin GetAppointments: failed to list appointments")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch appointments.", ""))
		return
	}
	if appointments == nil {
		appointments = []models.Appointment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"appointments": appointments,
		"total":        totalCount,
		"page":         filters.Page,
		"pageSize":     filters.PageSize,
	})
}

// CancelAppointment handles PUT /admin/appointments/:id/cancel for any user's
// appointment. Same compensation contract as the user-facing cancel.
func (h *AdminHandler) CancelAppointment(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	appointmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid appointment ID format.", err.Error()))
		return
	}

	var body struct {
		Reason *string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	reason := body.Reason
	if reason == nil {
		defaultReason := "cancelled by administrator"
		reason = &defaultReason
	}

	result, err := h.appointmentService.CancelAppointment(appointmentID, adminID, true, reason)
	if err != nil {
		respondCancelError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Appointment cancelled",
		"appointment":    result.Appointment,
		"refundedPoints": result.RefundedPoints,
	})
}

// UpdateAppointmentStatus handles PUT /admin/appointments/:id/status.
func (h *AdminHandler) UpdateAppointmentStatus(c *gin.Context) {
	appointmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid appointment ID format.", err.Error()))
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return
	}

	appt, err := h.appointmentService.UpdateStatus(appointmentID, body.Status)
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
				"Input validation failed", "").WithFields(validationErr.Fields))
		case errors.Is(err, services.ErrAppointmentNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Appointment not found.", ""))
		case errors.Is(err, services.ErrInvalidTransition):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), ""))
		default:
			utils.LogError(err, "UpdateAppointmentStatus: failed to update status")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to update appointment status.", ""))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": appt})
}

// GetUsers handles GET /admin/users.
func (h *AdminHandler) GetUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	users, totalCount, err := h.authService.GetUsers(page, pageSize)
	if err != nil {
		utils.LogError(err, "Admin GetUsers: failed to list users")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch users.", ""))
		return
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, gin.H{
		"users":    users,
		"total":    totalCount,
		"page":     page,
		"pageSize": pageSize,
	})
}

// UpdateUserPoints handles PUT /admin/users/:id/points. It surfaces the
// ledger's errors directly.
func (h *AdminHandler) UpdateUserPoints(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid user ID format.", err.Error()))
		return
	}

	var body struct {
		Points    *int    `json:"points" binding:"required"`
		Operation string  `json:"operation" binding:"required"`
		Reason    *string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return
	}

	reason := "manual adjustment by administrator"
	if body.Reason != nil && !utils.IsEmpty(*body.Reason) {
		reason = *body.Reason
	}

	txn, err := h.pointsLedger.Mutate(userID, body.Operation, *body.Points, reason, &adminID)
	if err != nil {
		var insufficientErr *services.InsufficientPointsError
		switch {
		case errors.As(err, &insufficientErr):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeInsufficientPoints,
				err.Error(), "").WithMeta(map[string]interface{}{
				"required":  insufficientErr.Required,
				"available": insufficientErr.Available,
				"shortfall": insufficientErr.Shortfall,
			}))
		case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrInvalidOperation):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
		case errors.Is(err, services.ErrUserNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "User not found.", ""))
		default:
			utils.LogError(err, "UpdateUserPoints: ledger mutation failed")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to update points.", ""))
		}
		return
	}

	user, err := h.authService.GetProfile(userID)
	if err != nil {
		utils.LogError(err, "UpdateUserPoints: failed to reload user")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Points updated but failed to reload user.", ""))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "transaction": txn})
}

// SetUserActive handles PATCH /admin/users/:id/active.
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid user ID format.", err.Error()))
		return
	}

	var body struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return
	}

	user, err := h.authService.SetUserActive(userID, *body.IsActive)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "User not found.", ""))
			return
		}
		utils.LogError(err, "SetUserActive: failed to update user")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to update user.", ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

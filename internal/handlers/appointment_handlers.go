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

// AppointmentHandler holds the appointment and points services.
type AppointmentHandler struct {
	appointmentService services.AppointmentService
	pointsLedger       services.PointsLedger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(as services.AppointmentService, pl services.PointsLedger) *AppointmentHandler {
	return &AppointmentHandler{appointmentService: as, pointsLedger: pl}
}

// respondBookingError translates booking saga errors into API responses.
// By the time any of these reach the client, compensation has already run:
// the user's balance is exactly what it was before the attempt.
func respondBookingError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var insufficientErr *services.InsufficientPointsError
	var limitErr *services.AppointmentLimitError

	switch {
	case errors.As(err, &validationErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Input validation failed", "").WithFields(validationErr.Fields))
	case errors.As(err, &insufficientErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusPaymentRequired, utils.ErrCodeInsufficientPoints,
			err.Error(), "").WithMeta(map[string]interface{}{
			"required":  insufficientErr.Required,
			"available": insufficientErr.Available,
			"shortfall": insufficientErr.Shortfall,
		}))
	case errors.As(err, &limitErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeLimitExceeded,
			err.Error(), "").WithMeta(map[string]interface{}{
			"limit":  limitErr.Limit,
			"active": limitErr.Active,
		}))
	case errors.Is(err, services.ErrSlotTaken):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict,
			err.Error(), "Pick another slot or date."))
	case errors.Is(err, services.ErrNoSlotsAvailable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict,
			err.Error(), "Pick another date."))
	case errors.Is(err, services.ErrInvalidServiceType):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	case errors.Is(err, services.ErrUserInactive):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, err.Error(), ""))
	default:
		utils.LogError(err, "booking failed with internal error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError,
			"Failed to create appointment.", ""))
	}
}

// CreateAppointment handles POST /appointments.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	var req services.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return
	}

	result, err := h.appointmentService.CreateAppointment(userID, req)
	if err != nil {
		respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":             "Appointment booked",
		"appointment":         result.Appointment,
		"userPointsRemaining": result.PointsRemaining,
		"priceBreakdown":      result.PriceBreakdown,
	})
}

// GetAppointments handles GET /appointments (the caller's own, any status).
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	appointments, err := h.appointmentService.GetUserAppointments(userID)
	if err != nil {
		utils.LogError(err, "GetAppointments: failed to list appointments")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch appointments.", ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appointments})
}

// GetAvailability handles GET /appointments/availability?date=YYYY-MM-DD.
func (h *AppointmentHandler) GetAvailability(c *gin.Context) {
	dateStr := c.Query("date")
	if dateStr == "" {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Query parameter 'date' is required.", ""))
		return
	}

	availability, err := h.appointmentService.GetAvailability(dateStr)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
				"Input validation failed", "").WithFields(validationErr.Fields))
			return
		}
		utils.LogError(err, "GetAvailability: failed to compute availability")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch availability.", ""))
		return
	}
	c.JSON(http.StatusOK, availability)
}

// CancelAppointment handles DELETE /appointments/:id with optional {reason}.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
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
	// The body is optional on DELETE.
	_ = c.ShouldBindJSON(&body)

	result, err := h.appointmentService.CancelAppointment(appointmentID, userID, false, body.Reason)
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

func respondCancelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAppointmentNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Appointment not found.", ""))
	case errors.Is(err, services.ErrNotAppointmentOwner):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, err.Error(), ""))
	case errors.Is(err, services.ErrAlreadyCancelled):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), ""))
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), ""))
	default:
		utils.LogError(err, "cancellation failed with internal error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to cancel appointment.", ""))
	}
}

// GetPointsHistory handles GET /points/transactions (the caller's own ledger).
func (h *AppointmentHandler) GetPointsHistory(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	transactions, totalCount, err := h.pointsLedger.History(userID, page, pageSize)
	if err != nil {
		utils.LogError(err, "GetPointsHistory: failed to list transactions")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch points history.", ""))
		return
	}
	if transactions == nil {
		transactions = []models.PointsTransaction{}
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"total":        totalCount,
		"page":         page,
		"pageSize":     pageSize,
	})
}

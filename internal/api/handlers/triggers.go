package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/espcontrol/espcontrol-backend-go/internal/api/middleware"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/pkg/utils"
)

// ListTriggers returns the authenticated user's battery triggers
func (h *Handlers) ListTriggers(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	triggers, err := h.repos.Trigger.GetByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list battery triggers")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list triggers")
		return
	}

	utils.SendSuccess(c, triggers)
}

type triggerRequest struct {
	IntegrationID  int      `json:"integration_id" binding:"required"`
	DeviceID       int      `json:"device_id" binding:"required"`
	InverterSerial string   `json:"inverter_serial" binding:"required"`
	ThresholdPct   *float64 `json:"threshold_pct" binding:"required"`
	Direction      string   `json:"direction" binding:"required"`
	Action         string   `json:"action" binding:"required"`
	Enabled        *bool    `json:"enabled"`
}

func (r *triggerRequest) validate() string {
	if r.Direction != models.DirectionBelow && r.Direction != models.DirectionAbove {
		return "Direction must be below or above"
	}
	if !devices.IsValidState(r.Action) {
		return "Action must be ON or OFF"
	}
	if *r.ThresholdPct < 0 || *r.ThresholdPct > 100 {
		return "Threshold must be between 0 and 100"
	}
	return ""
}

// CreateTrigger stores a new battery trigger. The integration and device
// must both belong to the caller.
func (h *Handlers) CreateTrigger(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Missing required trigger fields")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.SendError(c, http.StatusBadRequest, msg)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repos.Integration.GetByID(ctx, req.IntegrationID, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Integration not found")
		return
	}
	if _, err := h.repos.Device.GetOwned(ctx, req.DeviceID, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Device not found")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	trigger := &models.BatteryTrigger{
		UserID:         userID,
		IntegrationID:  req.IntegrationID,
		DeviceID:       req.DeviceID,
		InverterSerial: req.InverterSerial,
		ThresholdPct:   *req.ThresholdPct,
		Direction:      req.Direction,
		Action:         req.Action,
		Enabled:        enabled,
	}
	if err := h.repos.Trigger.Create(ctx, trigger); err != nil {
		h.log.WithError(err).Error("Failed to create battery trigger")
		utils.SendError(c, http.StatusInternalServerError, "Failed to create trigger")
		return
	}

	utils.SendSuccess(c, trigger)
}

// UpdateTrigger replaces a battery trigger's settings
func (h *Handlers) UpdateTrigger(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid trigger ID")
		return
	}

	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Missing required trigger fields")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.SendError(c, http.StatusBadRequest, msg)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	trigger := &models.BatteryTrigger{
		ID:             id,
		UserID:         userID,
		IntegrationID:  req.IntegrationID,
		DeviceID:       req.DeviceID,
		InverterSerial: req.InverterSerial,
		ThresholdPct:   *req.ThresholdPct,
		Direction:      req.Direction,
		Action:         req.Action,
		Enabled:        enabled,
	}
	if err := h.repos.Trigger.Update(c.Request.Context(), trigger); err != nil {
		utils.SendError(c, http.StatusNotFound, "Trigger not found")
		return
	}

	utils.SendSuccess(c, trigger)
}

// DeleteTrigger removes a battery trigger
func (h *Handlers) DeleteTrigger(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid trigger ID")
		return
	}

	if err := h.repos.Trigger.Delete(c.Request.Context(), id, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Trigger not found")
		return
	}

	utils.SendSuccess(c, gin.H{"message": "Trigger deleted"})
}

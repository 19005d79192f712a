package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/espcontrol/espcontrol-backend-go/internal/api/middleware"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/pkg/utils"
)

type deviceView struct {
	*models.Device
	State string `json:"state"`
}

// ListDevices returns the authenticated user's devices with their current
// states
func (h *Handlers) ListDevices(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	devs, err := h.repos.Device.GetByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list devices")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list devices")
		return
	}

	views := make([]deviceView, 0, len(devs))
	for _, device := range devs {
		views = append(views, deviceView{
			Device: device,
			State:  h.store.Get(strconv.Itoa(device.ID)),
		})
	}

	utils.SendSuccess(c, views)
}

type createDeviceRequest struct {
	Name     string `json:"name" binding:"required"`
	Timezone string `json:"timezone"`
}

// CreateDevice registers a new device for the authenticated user
func (h *Handlers) CreateDevice(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Device name is required")
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if !isValidTimezone(timezone) {
		utils.SendError(c, http.StatusBadRequest, "Unknown timezone")
		return
	}

	device := &models.Device{
		UserID:   userID,
		Name:     req.Name,
		Timezone: timezone,
	}
	if err := h.repos.Device.Create(c.Request.Context(), device); err != nil {
		h.log.WithError(err).Error("Failed to create device")
		utils.SendError(c, http.StatusInternalServerError, "Failed to create device")
		return
	}

	h.store.SetDefault(strconv.Itoa(device.ID))

	utils.SendSuccess(c, deviceView{Device: device, State: h.store.Get(strconv.Itoa(device.ID))})
}

// DeleteDevice removes one of the authenticated user's devices, along with
// its schedule rows via the foreign key cascade
func (h *Handlers) DeleteDevice(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid device ID")
		return
	}

	if err := h.repos.Device.Delete(c.Request.Context(), id, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Device not found")
		return
	}

	if err := h.evaluator.Reload(c.Request.Context(), h.repos.Device, h.repos.Schedule); err != nil {
		h.log.WithError(err).Error("Failed to reload schedules after device delete")
	}

	utils.SendSuccess(c, gin.H{"message": "Device deleted"})
}

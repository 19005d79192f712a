package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/espcontrol/espcontrol-backend-go/internal/api/middleware"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/pkg/utils"
)

// Poll serves the hardware polling endpoint. The firmware carries no
// credentials, so this stays unauthenticated; unknown devices read OFF.
func (h *Handlers) Poll(c *gin.Context) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId parameter required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deviceId": deviceID,
		"state":    h.store.Get(deviceID),
	})
}

// GetDeviceState returns the current state of one of the caller's devices
func (h *Handlers) GetDeviceState(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid device ID")
		return
	}

	if _, err := h.repos.Device.GetOwned(c.Request.Context(), id, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Device not found")
		return
	}

	utils.SendSuccess(c, gin.H{
		"deviceId": id,
		"state":    h.store.Get(strconv.Itoa(id)),
	})
}

type setStateRequest struct {
	State string `json:"state" binding:"required"`
}

// SetDeviceState changes the desired state of one of the caller's devices
func (h *Handlers) SetDeviceState(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid device ID")
		return
	}

	var req setStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "State is required")
		return
	}
	if !devices.IsValidState(req.State) {
		utils.SendError(c, http.StatusBadRequest, "State must be ON or OFF")
		return
	}

	if _, err := h.repos.Device.GetOwned(c.Request.Context(), id, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Device not found")
		return
	}

	h.store.Set(strconv.Itoa(id), req.State, devices.SourceManual)

	utils.SendSuccess(c, gin.H{
		"deviceId": id,
		"state":    req.State,
	})
}

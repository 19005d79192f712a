package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/espcontrol/espcontrol-backend-go/internal/api/middleware"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/scheduler"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/pkg/utils"
)

// GetSchedule returns a device's timezone and schedule events
func (h *Handlers) GetSchedule(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid device ID")
		return
	}

	device, err := h.repos.Device.GetOwned(c.Request.Context(), id, userID)
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "Device not found")
		return
	}

	events, err := h.repos.Schedule.GetByDevice(c.Request.Context(), id)
	if err != nil {
		h.log.WithError(err).Error("Failed to load schedule")
		utils.SendError(c, http.StatusInternalServerError, "Failed to load schedule")
		return
	}

	schedule := models.DeviceSchedule{
		Timezone: device.Timezone,
		Events:   make([]models.ScheduleEntry, 0, len(events)),
	}
	for _, event := range events {
		schedule.Events = append(schedule.Events, models.ScheduleEntry{
			Time:  event.Time,
			State: event.State,
		})
	}

	utils.SendSuccess(c, schedule)
}

// UpdateSchedule replaces a device's schedule. The event list is validated
// up front so a bad entry leaves the stored schedule untouched.
func (h *Handlers) UpdateSchedule(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid device ID")
		return
	}

	var req models.DeviceSchedule
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Schedule must include a timezone and an events array")
		return
	}

	if !isValidTimezone(req.Timezone) {
		utils.SendError(c, http.StatusBadRequest, "Unknown timezone")
		return
	}
	for _, entry := range req.Events {
		if _, err := scheduler.ParseEventTime(entry.Time); err != nil {
			utils.SendError(c, http.StatusBadRequest, "Event times must be HH:MM")
			return
		}
		if !devices.IsValidState(entry.State) {
			utils.SendError(c, http.StatusBadRequest, "Event states must be ON or OFF")
			return
		}
	}

	if _, err := h.repos.Device.GetOwned(c.Request.Context(), id, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Device not found")
		return
	}

	events := make([]*models.ScheduleEvent, 0, len(req.Events))
	for _, entry := range req.Events {
		events = append(events, &models.ScheduleEvent{
			DeviceID: id,
			Time:     entry.Time,
			State:    entry.State,
		})
	}

	ctx := c.Request.Context()
	if err := h.repos.Device.UpdateTimezone(ctx, id, req.Timezone); err != nil {
		h.log.WithError(err).Error("Failed to update device timezone")
		utils.SendError(c, http.StatusInternalServerError, "Failed to save schedule")
		return
	}
	if err := h.repos.Schedule.Replace(ctx, id, events); err != nil {
		h.log.WithError(err).Error("Failed to replace schedule events")
		utils.SendError(c, http.StatusInternalServerError, "Failed to save schedule")
		return
	}

	if err := h.evaluator.Reload(ctx, h.repos.Device, h.repos.Schedule); err != nil {
		h.log.WithError(err).Error("Failed to reload schedules")
		utils.SendError(c, http.StatusInternalServerError, "Schedule saved but not activated")
		return
	}

	utils.SendSuccess(c, req)
}

func isValidTimezone(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/espcontrol/espcontrol-backend-go/internal/adapters/growatt"
	"github.com/espcontrol/espcontrol-backend-go/internal/api/middleware"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/pkg/errors"
	"github.com/espcontrol/espcontrol-backend-go/pkg/utils"
)

const integrationTypeGrowatt = "growatt"

// ListIntegrations returns the authenticated user's integrations
func (h *Handlers) ListIntegrations(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	list, err := h.repos.Integration.GetByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list integrations")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list integrations")
		return
	}

	utils.SendSuccess(c, list)
}

type integrationRequest struct {
	Type     string          `json:"integration_type" binding:"required"`
	Name     string          `json:"name" binding:"required"`
	Settings json.RawMessage `json:"settings" binding:"required"`
	IsActive *bool           `json:"is_active"`
}

func validateIntegrationSettings(raw json.RawMessage) error {
	var settings growatt.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return fmt.Errorf("settings must be a JSON object: %w", err)
	}
	if settings.Username == "" || settings.Password == "" {
		return fmt.Errorf("settings must include username and password")
	}
	return nil
}

// CreateIntegration stores a new integration configuration
func (h *Handlers) CreateIntegration(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req integrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Type, name and settings are required")
		return
	}
	if req.Type != integrationTypeGrowatt {
		utils.SendError(c, http.StatusBadRequest, "Unsupported integration type")
		return
	}
	if err := validateIntegrationSettings(req.Settings); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	integration := &models.Integration{
		UserID:       userID,
		Type:         req.Type,
		Name:         req.Name,
		SettingsJSON: req.Settings,
		IsActive:     active,
	}
	if err := h.repos.Integration.Create(c.Request.Context(), integration); err != nil {
		h.log.WithError(err).Error("Failed to create integration")
		utils.SendError(c, http.StatusInternalServerError, "Failed to create integration")
		return
	}

	utils.SendSuccess(c, integration)
}

// UpdateIntegration replaces an integration's name and settings
func (h *Handlers) UpdateIntegration(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid integration ID")
		return
	}

	var req integrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Type, name and settings are required")
		return
	}
	if err := validateIntegrationSettings(req.Settings); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	integration, err := h.repos.Integration.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "Integration not found")
		return
	}

	integration.Name = req.Name
	integration.SettingsJSON = req.Settings
	if req.IsActive != nil {
		integration.IsActive = *req.IsActive
	}

	if err := h.repos.Integration.Update(c.Request.Context(), integration); err != nil {
		h.log.WithError(err).Error("Failed to update integration")
		utils.SendError(c, http.StatusInternalServerError, "Failed to update integration")
		return
	}

	// Settings may carry new filters or credentials
	h.integrationService.DropInstance(integration.ID)

	utils.SendSuccess(c, integration)
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetIntegrationActive toggles whether an integration participates in
// background refresh
func (h *Handlers) SetIntegrationActive(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid integration ID")
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "is_active is required")
		return
	}

	if err := h.repos.Integration.SetActive(c.Request.Context(), id, userID, *req.IsActive); err != nil {
		utils.SendError(c, http.StatusNotFound, "Integration not found")
		return
	}

	utils.SendSuccess(c, gin.H{"id": id, "is_active": *req.IsActive})
}

// DeleteIntegration removes an integration and its vendor session
func (h *Handlers) DeleteIntegration(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid integration ID")
		return
	}

	if err := h.repos.Integration.Delete(c.Request.Context(), id, userID); err != nil {
		utils.SendError(c, http.StatusNotFound, "Integration not found")
		return
	}

	h.integrationService.DropInstance(id)

	utils.SendSuccess(c, gin.H{"message": "Integration deleted"})
}

// GetIntegrationData returns vendor data for an integration, cached when
// fresh enough
func (h *Handlers) GetIntegrationData(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid integration ID")
		return
	}

	integration, err := h.repos.Integration.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "Integration not found")
		return
	}

	result, err := h.integrationService.GetData(c.Request.Context(), integration)
	if err != nil {
		h.log.WithError(err).WithField("integration_id", id).Error("Vendor data fetch failed")
		// Misconfiguration is the caller's problem; anything else is the vendor's
		status := http.StatusBadGateway
		if errors.IsAppError(err) {
			status = errors.GetStatusCode(err)
		}
		utils.SendErrorWithDetails(c, status, "Failed to fetch integration data", err.Error())
		return
	}

	utils.SendSuccess(c, result)
}

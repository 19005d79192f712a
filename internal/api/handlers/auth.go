package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/espcontrol/espcontrol-backend-go/internal/api/middleware"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/auth"
	"github.com/espcontrol/espcontrol-backend-go/pkg/utils"
)

// Login authenticates a user and issues a JWT token
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		utils.SendError(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	utils.SendSuccess(c, resp)
}

// Logout acknowledges a logout. Tokens are stateless; the client discards
// its copy.
func (h *Handlers) Logout(c *gin.Context) {
	utils.SendSuccess(c, gin.H{"message": "Logged out"})
}

// ValidateSession returns the authenticated user's identity, confirming the
// presented token is still valid
func (h *Handlers) ValidateSession(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	username := c.GetString("username")

	utils.SendSuccess(c, gin.H{
		"id":       userID,
		"username": username,
	})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// UpdatePassword changes the authenticated user's password
func (h *Handlers) UpdatePassword(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Current and new passwords are required")
		return
	}

	if err := h.authService.UpdatePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	utils.SendSuccess(c, gin.H{"message": "Password updated"})
}

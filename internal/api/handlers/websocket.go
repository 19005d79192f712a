package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/espcontrol/espcontrol-backend-go/internal/websocket"
)

// HandleWebSocket upgrades the connection and hands it to the hub
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	websocket.ServeWS(h.wsHub, h.log, c.Writer, c.Request)
}

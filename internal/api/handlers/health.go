package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/espcontrol/espcontrol-backend-go/pkg/utils"
)

// Health returns the health status of the service
func (h *Handlers) Health(c *gin.Context) {
	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "espcontrol-backend-go",
		"version":   "1.0.0",
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		health["status"] = "degraded"
		health["database"] = "unreachable"
	} else {
		health["database"] = "ok"
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		health["memory_used_percent"] = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		health["cpu_percent"] = percents[0]
	}

	health["websocket_clients"] = h.wsHub.ClientCount()
	health["tracked_devices"] = len(h.store.Snapshot())

	utils.SendSuccess(c, health)
}

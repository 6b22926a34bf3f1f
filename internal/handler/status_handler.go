package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wattson/internal/service"
	"wattson/pkg/log"
)

// StatusHandler serves liveness and knowledge-base status endpoints.
type StatusHandler struct {
	retrieval service.RetrievalService
	advice    service.AdviceService
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(retrieval service.RetrievalService, advice service.AdviceService) *StatusHandler {
	return &StatusHandler{retrieval: retrieval, advice: advice}
}

// Alive is the plain liveness probe.
func (h *StatusHandler) Alive(c *gin.Context) {
	c.String(http.StatusOK, "Wattson est en ligne.")
}

// Status reports the size and contents of the segment index.
func (h *StatusHandler) Status(c *gin.Context) {
	stats := h.retrieval.Stats()
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": stats, "message": "success"})
}

// HealthAI runs a tiny completion against the chat model to verify the
// upstream API is reachable and responding.
func (h *StatusHandler) HealthAI(c *gin.Context) {
	start := time.Now()
	reply, err := h.advice.HealthCheck(c.Request.Context())
	latency := time.Since(start)
	if err != nil {
		log.Warnf("[StatusHandler] AI health check failed after %s: %v", latency, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ok":        false,
			"error":     err.Error(),
			"latencyMs": latency.Milliseconds(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"reply":     reply,
		"latencyMs": latency.Milliseconds(),
	})
}

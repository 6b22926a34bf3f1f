package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wattson/internal/rag"
	"wattson/internal/service"
	"wattson/pkg/log"
)

// SearchHandler exposes the retrieval core over HTTP.
type SearchHandler struct {
	retrieval   service.RetrievalService
	defaultTopK int
}

// NewSearchHandler creates a SearchHandler. defaultTopK applies when the
// request does not specify one; non-positive values fall back to the
// service default.
func NewSearchHandler(retrieval service.RetrievalService, defaultTopK int) *SearchHandler {
	if defaultTopK <= 0 {
		defaultTopK = service.DefaultTopK
	}
	return &SearchHandler{retrieval: retrieval, defaultTopK: defaultTopK}
}

// Search runs a top-K similarity query against the segment index.
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	topK := h.defaultTopK
	if raw := c.Query("topK"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "topK must be an integer"})
			return
		}
		topK = parsed
	}

	result, err := h.retrieval.Query(c.Request.Context(), query, topK)
	if err != nil {
		log.Errorf("[SearchHandler] query failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, rag.ErrRetrievalFailed) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": "retrieval failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "data": result, "message": "success"})
}

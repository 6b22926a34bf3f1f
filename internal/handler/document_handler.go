package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"wattson/internal/config"
	"wattson/internal/middleware"
	"wattson/internal/repository"
	"wattson/pkg/kafka"
	"wattson/pkg/log"
	"wattson/pkg/storage"
	"wattson/pkg/tasks"
)

// maxRemoteDocBytes caps how much of a remote document is fetched.
const maxRemoteDocBytes = 64 * 1024 * 1024

// DocumentHandler accepts coach uploads and lists the knowledge base.
type DocumentHandler struct {
	documents repository.DocumentRepository
	minioCfg  config.MinIOConfig
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(documents repository.DocumentRepository, minioCfg config.MinIOConfig) *DocumentHandler {
	return &DocumentHandler{documents: documents, minioCfg: minioCfg}
}

// Upload archives a raw document and queues it for ingestion. The actual
// extraction and indexing happens asynchronously in the Kafka consumer.
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a 'file' form field is required"})
		return
	}

	docName := filepath.Base(fileHeader.Filename)
	if docName == "" || docName == "." || docName == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Errorf("[DocumentHandler] opening upload %q failed: %v", docName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if err := storage.PutDocument(c.Request.Context(), h.minioCfg.BucketName, docName, src, fileHeader.Size, contentType); err != nil {
		log.Errorf("[DocumentHandler] archiving %q failed: %v", docName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to archive document"})
		return
	}

	task := tasks.IngestionTask{
		DocName:  docName,
		Size:     fileHeader.Size,
		UserID:   user.ID,
		Uploaded: time.Now().Format(time.RFC3339),
	}
	if err := kafka.ProduceIngestionTask(task); err != nil {
		log.Errorf("[DocumentHandler] queueing %q failed: %v", docName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue ingestion"})
		return
	}

	log.Infof("[DocumentHandler] queued %q (%d bytes) from user %d", docName, fileHeader.Size, user.ID)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{
		"file":   docName,
		"status": "queued",
	}, "message": "success"})
}

type uploadURLRequest struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name"`
}

// UploadFromURL fetches a remote document, archives it and queues it for
// ingestion. The document name defaults to the last path element of the
// URL.
func (h *DocumentHandler) UploadFromURL(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
		return
	}

	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a 'url' field is required"})
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be http or https"})
		return
	}

	docName := req.Name
	if docName == "" {
		docName = path.Base(parsed.Path)
	}
	if docName == "" || docName == "." || docName == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not derive a document name, pass 'name'"})
		return
	}

	httpReq, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
		return
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		log.Warnf("[DocumentHandler] fetching %s failed: %v", req.URL, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch document"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("remote server returned %s", resp.Status)})
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteDocBytes))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read remote document"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remote document is empty"})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if err := storage.PutDocument(c.Request.Context(), h.minioCfg.BucketName, docName, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		log.Errorf("[DocumentHandler] archiving %q failed: %v", docName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to archive document"})
		return
	}

	task := tasks.IngestionTask{
		DocName:  docName,
		Size:     int64(len(body)),
		UserID:   user.ID,
		Uploaded: time.Now().Format(time.RFC3339),
	}
	if err := kafka.ProduceIngestionTask(task); err != nil {
		log.Errorf("[DocumentHandler] queueing %q failed: %v", docName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue ingestion"})
		return
	}

	log.Infof("[DocumentHandler] queued %q (%d bytes) from url, user %d", docName, len(body), user.ID)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{
		"file":   docName,
		"status": "queued",
	}, "message": "success"})
}

// List returns the registered documents of the knowledge base.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List()
	if err != nil {
		log.Errorf("[DocumentHandler] listing documents failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": docs, "message": "success"})
}

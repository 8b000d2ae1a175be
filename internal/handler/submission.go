package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"moderator/internal/repository"
	"moderator/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxUploadSize bounds multipart uploads (16 MiB).
const maxUploadSize = 16 << 20

type SubmissionHandler interface {
	Upload(c *gin.Context)
	AnalyzeText(c *gin.Context)
	Status(c *gin.Context)
	Recent(c *gin.Context)
}

type submissionHandler struct {
	svc    *service.SubmissionService
	logger *zap.Logger
}

func NewSubmissionHandler(svc *service.SubmissionService, logger *zap.Logger) SubmissionHandler {
	return &submissionHandler{svc: svc, logger: logger}
}

// Upload handles POST /api/upload (multipart form, field "file").
func (h *submissionHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	id, err := h.svc.SubmitFile(fileHeader.Filename, contentType, data)
	if err != nil {
		if errors.Is(err, service.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Analysis queue is full, try again later"})
			return
		}
		h.logger.Error("Failed to submit file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "File uploaded successfully!",
		"submission_id": id,
	})
}

// AnalyzeText handles POST /api/analyze-text.
type AnalyzeTextRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *submissionHandler) AnalyzeText(c *gin.Context) {
	var req AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No text provided"})
		return
	}

	id, err := h.svc.SubmitText(req.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No text provided"})
		case errors.Is(err, service.ErrQueueFull):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Analysis queue is full, try again later"})
		default:
			h.logger.Error("Failed to submit text", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Text received and processing started",
		"submission_id": id,
	})
}

// Status handles GET /api/analysis-status/:id.
func (h *submissionHandler) Status(c *gin.Context) {
	id := c.Param("id")

	status, err := h.svc.Status(id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Submission not found"})
			return
		}
		h.logger.Error("Failed to read submission status", zap.String("submission_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  status.Status,
		"result":  status.Result,
		"error":   status.Error,
	})
}

// Recent handles GET /api/recent-submissions.
func (h *submissionHandler) Recent(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	submissions, err := h.svc.Recent(limit)
	if err != nil {
		h.logger.Error("Failed to list recent submissions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "submissions": submissions})
}

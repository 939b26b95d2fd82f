package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reelforge/src/core/generation"
	jobsvc "reelforge/src/infrastructure/job"
	"reelforge/src/storage/postgres/mediactrl"
)

type GenerationRequest struct {
	InputMediaID   string `json:"inputMediaId" binding:"required"`
	Prompt         string `json:"prompt" binding:"required,max=2000"`
	TargetDuration int    `json:"targetDuration" binding:"required,min=5,max=120"`
	Style          string `json:"style" binding:"required,oneof=cinematic documentary anime realistic abstract"`
}

type GenerationHandler struct {
	jobService   *jobsvc.Service
	queryService *generation.QueryService
	mediaService *mediactrl.MediaService
}

func NewGenerationHandler(
	jobService *jobsvc.Service,
	queryService *generation.QueryService,
	mediaService *mediactrl.MediaService,
) *GenerationHandler {
	return &GenerationHandler{
		jobService:   jobService,
		queryService: queryService,
		mediaService: mediaService,
	}
}

// Submit accepts a generation request, creates the job record and hands it
// off to the pipeline. The response returns immediately; the pipeline runs
// asynchronously.
func (h *GenerationHandler) Submit(c *gin.Context) {
	ownerID, ok := requesterID(c)
	if !ok {
		return
	}

	var req GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := generation.Submission{
		InputMediaID:   req.InputMediaID,
		Prompt:         req.Prompt,
		TargetDuration: req.TargetDuration,
		Style:          req.Style,
	}
	if err := generation.ValidateSubmission(sub); err != nil {
		sendError(c, err)
		return
	}

	if err := h.checkMediaOwnership(c, sub.InputMediaID, ownerID); err != nil {
		sendError(c, err)
		return
	}

	job, err := h.jobService.Submit(c.Request.Context(), ownerID, sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit generation job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// Get returns the job's full current record
func (h *GenerationHandler) Get(c *gin.Context) {
	ownerID, ok := requesterID(c)
	if !ok {
		return
	}

	job, err := h.queryService.GetJob(c.Request.Context(), c.Param("id"), ownerID)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// List returns the caller's jobs, newest first
func (h *GenerationHandler) List(c *gin.Context) {
	ownerID, ok := requesterID(c)
	if !ok {
		return
	}

	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobs, err := h.queryService.ListJobs(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list generation jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": jobs,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *GenerationHandler) checkMediaOwnership(c *gin.Context, inputMediaID, ownerID string) error {
	mediaID, err := strconv.ParseInt(inputMediaID, 10, 64)
	if err != nil {
		return &generation.ValidationError{Field: "inputMediaId", Reason: "is not a valid media identifier"}
	}

	media, err := h.mediaService.GetByID(c.Request.Context(), mediaID)
	if err != nil {
		return fmt.Errorf("failed to check input media: %w", err)
	}
	if media == nil || media.OwnerID != ownerID {
		return &generation.ValidationError{Field: "inputMediaId", Reason: "does not reference an uploaded media of yours"}
	}
	return nil
}

const maxPageSize = 100

func pagination(c *gin.Context) (int, int, error) {
	limit := 10
	offset := 0

	if limitParam := c.Query("limit"); limitParam != "" {
		if _, err := fmt.Sscanf(limitParam, "%d", &limit); err != nil {
			return 0, 0, fmt.Errorf("invalid limit parameter")
		}
	}
	if offsetParam := c.Query("offset"); offsetParam != "" {
		if _, err := fmt.Sscanf(offsetParam, "%d", &offset); err != nil {
			return 0, 0, fmt.Errorf("invalid offset parameter")
		}
	}

	// A non-positive limit would disable the query limit entirely.
	if limit < 1 || limit > maxPageSize {
		return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxPageSize)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset must not be negative")
	}

	return limit, offset, nil
}

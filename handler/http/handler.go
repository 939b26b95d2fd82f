package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reelforge/src/core/generation"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(r *gin.Engine, genHandler *GenerationHandler, mediaHandler *MediaHandler) {
	v1 := r.Group("/api/v1")

	// Generation routes
	v1.POST("/generations", genHandler.Submit)
	v1.GET("/generations", genHandler.List)
	v1.GET("/generations/:id", genHandler.Get)

	// Media routes
	v1.POST("/media", mediaHandler.Upload)
	v1.GET("/media", mediaHandler.List)

	// System routes
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Common error response structure
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func sendError(c *gin.Context, err error) {
	var code string
	var status int

	var validationErr *generation.ValidationError
	switch {
	case errors.Is(err, generation.ErrJobNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.Is(err, generation.ErrForbidden):
		code = "FORBIDDEN"
		status = http.StatusForbidden
	case errors.As(err, &validationErr):
		code = "VALIDATION_ERROR"
		status = http.StatusBadRequest
	default:
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

// requesterID extracts the authenticated caller's identity. The gateway in
// front of this service validates the token and forwards the subject in
// X-User-ID.
func requesterID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "UNAUTHENTICATED",
			Message: "missing X-User-ID header",
		})
		return "", false
	}
	return id, true
}

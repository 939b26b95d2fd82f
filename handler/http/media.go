package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reelforge/src/storage/minioctrl"
	"reelforge/src/storage/postgres/mediactrl"
)

var allowedMediaExtensions = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

type MediaHandler struct {
	minioService *minioctrl.MinioService
	bucketName   string
	mediaService *mediactrl.MediaService
}

func NewMediaHandler(minioService *minioctrl.MinioService, bucketName string, mediaService *mediactrl.MediaService) (*MediaHandler, error) {
	// Ensure bucket exists
	err := minioService.EnsureBucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	return &MediaHandler{
		minioService: minioService,
		bucketName:   bucketName,
		mediaService: mediaService,
	}, nil
}

// Upload stores an input media file and records it for later submissions
func (h *MediaHandler) Upload(c *gin.Context) {
	ownerID, ok := requesterID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, allowed := allowedMediaExtensions[ext]
	if !allowed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported media type"})
		return
	}

	// Generate unique object name
	objectName := fmt.Sprintf("%s%s", uuid.New().String(), ext)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	err = h.minioService.PutObject(
		c.Request.Context(),
		h.bucketName,
		objectName,
		fileBytes,
		contentType,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	media, err := h.mediaService.Create(c.Request.Context(), ownerID, header.Filename, fmt.Sprintf("%s/%s", h.bucketName, objectName))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record media"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       fmt.Sprintf("%d", media.ID),
		"filename": media.Filename,
	})
}

// List returns the caller's uploaded media
func (h *MediaHandler) List(c *gin.Context) {
	ownerID, ok := requesterID(c)
	if !ok {
		return
	}

	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	media, err := h.mediaService.ListByOwner(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list media"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"media": media,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
		},
	})
}

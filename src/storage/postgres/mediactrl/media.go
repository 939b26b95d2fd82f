package mediactrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Media is one uploaded input file referenced by generation submissions
type Media struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OwnerID   string    `gorm:"not null;index;column:owner_id" json:"owner_id"`
	Filename  string    `gorm:"not null" json:"filename"`
	MinioURL  string    `gorm:"not null;column:minio_url" json:"minio_url"` // bucket name + object name
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MediaService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewMediaService(db *gorm.DB) (*MediaService, error) {
	node, err := snowflake.NewNode(2)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &MediaService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *MediaService) Create(ctx context.Context, ownerID, filename, minioURL string) (*Media, error) {
	media := &Media{
		ID:       s.snowflake.Generate().Int64(),
		OwnerID:  ownerID,
		Filename: filename,
		MinioURL: minioURL,
	}

	result := s.db.WithContext(ctx).Create(media)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create media record: %v", result.Error)
	}

	return media, nil
}

func (s *MediaService) GetByID(ctx context.Context, id int64) (*Media, error) {
	var media Media
	result := s.db.WithContext(ctx).First(&media, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get media: %v", result.Error)
	}
	return &media, nil
}

// ListByOwner returns a paginated list of the owner's uploads
func (s *MediaService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Media, error) {
	var media []Media

	result := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&media)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list media: %v", result.Error)
	}

	return media, nil
}

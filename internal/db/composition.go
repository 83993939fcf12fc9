// Package db provides database connection management and repository interfaces.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/duet/internal/models"
)

// CompositionRepository handles database operations for compositions
type CompositionRepository struct {
	db *DB
}

// NewCompositionRepository creates a new composition repository
func NewCompositionRepository(db *DB) *CompositionRepository {
	return &CompositionRepository{db: db}
}

// Create inserts a new composition into the database
func (r *CompositionRepository) Create(ctx context.Context, composition *models.Composition) error {
	result := r.db.WithContext(ctx).Create(composition)
	if result.Error != nil {
		return fmt.Errorf("failed to create composition: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a composition by its UUID
func (r *CompositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Composition, error) {
	var composition models.Composition
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&composition)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &composition, nil
}

// GetByName retrieves a composition by name, ignoring case
func (r *CompositionRepository) GetByName(ctx context.Context, name string) (*models.Composition, error) {
	var composition models.Composition
	result := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&composition)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &composition, nil
}

// List retrieves all compositions ordered by creation date (newest first)
func (r *CompositionRepository) List(ctx context.Context) ([]*models.Composition, error) {
	var compositions []*models.Composition
	result := r.db.WithContext(ctx).Order("created_at DESC").Find(&compositions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list compositions: %w", MapGormError(result.Error))
	}
	return compositions, nil
}

// Update updates an existing composition
func (r *CompositionRepository) Update(ctx context.Context, composition *models.Composition) error {
	composition.UpdatedAt = time.Now().UTC()

	// Select every column so cleared URLs and overrides are written too
	result := r.db.WithContext(ctx).
		Where("id = ?", composition.ID.String()).
		Select("name", "video_url", "audio_url", "presentation_overrides", "icon_overrides",
			"video_menu", "audio_menu", "updated_at").
		Updates(composition)
	if result.Error != nil {
		return fmt.Errorf("failed to update composition: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a composition by its UUID
func (r *CompositionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Composition{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete composition: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

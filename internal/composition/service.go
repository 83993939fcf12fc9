// Package composition manages saved compositions: the host configuration a
// playback session is created from.
package composition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stwalsh4118/duet/internal/db"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/models"
)

const maxNameLength = 255

// Input carries the caller-supplied fields of a composition
type Input struct {
	Name                  string
	VideoURL              string
	AudioURL              string
	PresentationOverrides models.PresentationOverrides
	IconOverrides         models.IconOverrides
	VideoMenu             json.RawMessage
	AudioMenu             json.RawMessage
}

// Service handles business logic for composition operations
type Service struct {
	db    *db.DB
	repos *db.Repositories
}

// NewService creates a new composition service instance
func NewService(database *db.DB, repos *db.Repositories) *Service {
	return &Service{
		db:    database,
		repos: repos,
	}
}

// Create validates and stores a new composition
func (s *Service) Create(ctx context.Context, in Input) (*models.Composition, error) {
	if err := validate(&in); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("name", in.Name).
			Msg("Composition creation failed: invalid input")
		return nil, err
	}

	composition := models.NewComposition(in.Name, in.VideoURL, in.AudioURL)
	apply(composition, in)

	err := s.db.WithTransaction(ctx, func(tx *db.DB) error {
		repo := db.NewCompositionRepository(tx)
		if err := ensureNameFree(ctx, repo, in.Name, uuid.Nil); err != nil {
			return err
		}
		return repo.Create(ctx, composition)
	})
	if err != nil {
		return nil, s.mapError(err, "create", composition.ID)
	}

	logger.Log.Info().
		Str("composition_id", composition.ID.String()).
		Str("name", composition.Name).
		Msg("Composition created successfully")

	return composition, nil
}

// GetByID retrieves a composition by its ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Composition, error) {
	composition, err := s.repos.Compositions.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrCompositionNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("composition_id", id.String()).
			Msg("Failed to get composition by ID")
		return nil, fmt.Errorf("failed to get composition: %w", err)
	}
	return composition, nil
}

// List retrieves all compositions, newest first
func (s *Service) List(ctx context.Context) ([]*models.Composition, error) {
	compositions, err := s.repos.Compositions.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list compositions")
		return nil, fmt.Errorf("failed to list compositions: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(compositions)).
		Msg("Listed compositions")

	return compositions, nil
}

// Update replaces every caller-supplied field of an existing composition
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Composition, error) {
	if err := validate(&in); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("composition_id", id.String()).
			Msg("Composition update failed: invalid input")
		return nil, err
	}

	var composition *models.Composition
	err := s.db.WithTransaction(ctx, func(tx *db.DB) error {
		repo := db.NewCompositionRepository(tx)
		existing, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !strings.EqualFold(existing.Name, in.Name) {
			if err := ensureNameFree(ctx, repo, in.Name, id); err != nil {
				return err
			}
		}
		existing.Name = in.Name
		existing.VideoURL = in.VideoURL
		existing.AudioURL = in.AudioURL
		apply(existing, in)
		composition = existing
		return repo.Update(ctx, existing)
	})
	if err != nil {
		return nil, s.mapError(err, "update", id)
	}

	logger.Log.Info().
		Str("composition_id", id.String()).
		Str("name", composition.Name).
		Msg("Composition updated successfully")

	return composition, nil
}

// Delete removes a composition by its ID
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Compositions.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrCompositionNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("composition_id", id.String()).
			Msg("Failed to delete composition from database")
		return fmt.Errorf("failed to delete composition: %w", err)
	}

	logger.Log.Info().
		Str("composition_id", id.String()).
		Msg("Composition deleted successfully")

	return nil
}

func (s *Service) mapError(err error, op string, id uuid.UUID) error {
	switch {
	case errors.Is(err, ErrDuplicateName), db.IsDuplicate(err):
		logger.Log.Warn().
			Str("composition_id", id.String()).
			Msgf("Composition %s failed: duplicate name", op)
		return ErrDuplicateName
	case db.IsNotFound(err):
		return ErrCompositionNotFound
	default:
		logger.Log.Error().
			Err(err).
			Str("composition_id", id.String()).
			Msgf("Failed to %s composition in database", op)
		return fmt.Errorf("failed to %s composition: %w", op, err)
	}
}

func ensureNameFree(ctx context.Context, repo *db.CompositionRepository, name string, self uuid.UUID) error {
	existing, err := repo.GetByName(ctx, name)
	if err != nil {
		if db.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return ErrDuplicateName
	}
	return nil
}

func apply(c *models.Composition, in Input) {
	c.PresentationOverrides = in.PresentationOverrides
	if c.PresentationOverrides == nil {
		c.PresentationOverrides = models.PresentationOverrides{}
	}
	c.IconOverrides = in.IconOverrides
	if c.IconOverrides == nil {
		c.IconOverrides = models.IconOverrides{}
	}
	c.VideoMenu = in.VideoMenu
	c.AudioMenu = in.AudioMenu
	c.UpdatedAt = time.Now().UTC()
}

// validate normalizes in and checks every field
func validate(in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || utf8.RuneCountInString(in.Name) > maxNameLength {
		return ErrInvalidName
	}

	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.AudioURL = strings.TrimSpace(in.AudioURL)
	for _, source := range []string{in.VideoURL, in.AudioURL} {
		if err := ValidateSource(source); err != nil {
			return err
		}
	}

	for _, menu := range []json.RawMessage{in.VideoMenu, in.AudioMenu} {
		if len(menu) > 0 && !json.Valid(menu) {
			return ErrInvalidMenu
		}
	}
	return nil
}

// ValidateSource accepts an empty source (absent track), a URL with a scheme,
// or a local path
func ValidateSource(source string) error {
	if source == "" {
		return nil
	}
	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, source)
	}
	if u.Scheme == "" && u.Path == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, source)
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidURL, source)
	}
	return nil
}

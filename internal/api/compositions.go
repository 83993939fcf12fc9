// Package api provides HTTP handlers for the REST API endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stwalsh4118/duet/internal/composition"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/models"
)

const requestTimeout = 10 * time.Second

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}

// compositionService defines the composition operations the handlers need
type compositionService interface {
	Create(ctx context.Context, in composition.Input) (*models.Composition, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Composition, error)
	List(ctx context.Context) ([]*models.Composition, error)
	Update(ctx context.Context, id uuid.UUID, in composition.Input) (*models.Composition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CompositionRequest represents a request to create or replace a composition
type CompositionRequest struct {
	Name                  string                       `json:"name" binding:"required"`
	VideoURL              string                       `json:"video_url"`
	AudioURL              string                       `json:"audio_url"`
	PresentationOverrides models.PresentationOverrides `json:"presentation_overrides,omitempty"`
	IconOverrides         models.IconOverrides         `json:"icon_overrides,omitempty"`
	VideoMenu             json.RawMessage              `json:"video_menu,omitempty"`
	AudioMenu             json.RawMessage              `json:"audio_menu,omitempty"`
}

func (r CompositionRequest) input() composition.Input {
	return composition.Input{
		Name:                  r.Name,
		VideoURL:              r.VideoURL,
		AudioURL:              r.AudioURL,
		PresentationOverrides: r.PresentationOverrides,
		IconOverrides:         r.IconOverrides,
		VideoMenu:             r.VideoMenu,
		AudioMenu:             r.AudioMenu,
	}
}

// CompositionListResponse represents a list of compositions
type CompositionListResponse struct {
	Compositions []*models.Composition `json:"compositions"`
}

// CompositionHandler handles composition-related API requests
type CompositionHandler struct {
	service compositionService
}

// NewCompositionHandler creates a new composition handler instance
func NewCompositionHandler(service *composition.Service) *CompositionHandler {
	return &CompositionHandler{service: service}
}

// CreateComposition handles POST /api/compositions
func (h *CompositionHandler) CreateComposition(c *gin.Context) {
	var req CompositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	created, err := h.service.Create(ctx, req.input())
	if err != nil {
		writeCompositionError(c, err, "create_failed", "Failed to create composition")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListCompositions handles GET /api/compositions
func (h *CompositionHandler) ListCompositions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	compositions, err := h.service.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list compositions",
		})
		return
	}

	if compositions == nil {
		compositions = []*models.Composition{}
	}
	c.JSON(http.StatusOK, CompositionListResponse{Compositions: compositions})
}

// GetComposition handles GET /api/compositions/:id
func (h *CompositionHandler) GetComposition(c *gin.Context) {
	id, ok := parseID(c, "composition")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	found, err := h.service.GetByID(ctx, id)
	if err != nil {
		writeCompositionError(c, err, "retrieval_failed", "Failed to retrieve composition")
		return
	}

	c.JSON(http.StatusOK, found)
}

// UpdateComposition handles PUT /api/compositions/:id
func (h *CompositionHandler) UpdateComposition(c *gin.Context) {
	id, ok := parseID(c, "composition")
	if !ok {
		return
	}

	var req CompositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	updated, err := h.service.Update(ctx, id, req.input())
	if err != nil {
		writeCompositionError(c, err, "update_failed", "Failed to update composition")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteComposition handles DELETE /api/compositions/:id. Sessions created
// from the composition keep running with the sources they were given.
func (h *CompositionHandler) DeleteComposition(c *gin.Context) {
	id, ok := parseID(c, "composition")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		writeCompositionError(c, err, "delete_failed", "Failed to delete composition")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Composition deleted successfully",
	})
}

// writeCompositionError maps service errors to HTTP responses
func writeCompositionError(c *gin.Context, err error, code, message string) {
	switch {
	case composition.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Composition not found",
		})
	case composition.IsDuplicateName(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_name",
			Message: "A composition with this name already exists",
		})
	case composition.IsValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	default:
		logger.Log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Msg(message)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   code,
			Message: message,
		})
	}
}

// parseID reads the :id path parameter, writing a 400 when it is not a UUID
func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid " + what + " ID format",
		})
		return uuid.Nil, false
	}
	return id, true
}

// SetupCompositionRoutes registers composition routes
func SetupCompositionRoutes(apiGroup *gin.RouterGroup, service *composition.Service) {
	registerCompositionRoutes(apiGroup, &CompositionHandler{service: service})
}

func registerCompositionRoutes(apiGroup *gin.RouterGroup, handler *CompositionHandler) {
	apiGroup.POST("/compositions", handler.CreateComposition)
	apiGroup.GET("/compositions", handler.ListCompositions)
	apiGroup.GET("/compositions/:id", handler.GetComposition)
	apiGroup.PUT("/compositions/:id", handler.UpdateComposition)
	apiGroup.DELETE("/compositions/:id", handler.DeleteComposition)
}

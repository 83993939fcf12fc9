// Package models defines the persisted entities of the service.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PresentationOverrides maps a named visual region to style overrides
// (e.g. "videoBar" -> {"color": "#a0d911"}). The engine never reads them.
type PresentationOverrides map[string]map[string]string

// IconOverrides maps a named icon slot to a custom renderable reference
type IconOverrides map[string]string

// Composition is a saved pairing of one video source and one audio source,
// with the cosmetic configuration a presentation layer renders it with
type Composition struct {
	ID                    uuid.UUID             `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name                  string                `json:"name" gorm:"type:text;not null;uniqueIndex;column:name"`
	VideoURL              string                `json:"video_url" gorm:"type:text;not null;default:'';column:video_url"`
	AudioURL              string                `json:"audio_url" gorm:"type:text;not null;default:'';column:audio_url"`
	PresentationOverrides PresentationOverrides `json:"presentation_overrides" gorm:"type:text;serializer:json;column:presentation_overrides"`
	IconOverrides         IconOverrides         `json:"icon_overrides" gorm:"type:text;serializer:json;column:icon_overrides"`
	VideoMenu             json.RawMessage       `json:"video_menu,omitempty" gorm:"type:text;serializer:json;column:video_menu"`   // opaque menu content
	AudioMenu             json.RawMessage       `json:"audio_menu,omitempty" gorm:"type:text;serializer:json;column:audio_menu"`   // opaque menu content
	CreatedAt             time.Time             `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt             time.Time             `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// TableName pins the table name used by the migrations
func (Composition) TableName() string {
	return "compositions"
}

// NewComposition creates a Composition with generated UUID and timestamps
func NewComposition(name, videoURL, audioURL string) *Composition {
	now := time.Now().UTC()
	return &Composition{
		ID:                    uuid.New(),
		Name:                  name,
		VideoURL:              videoURL,
		AudioURL:              audioURL,
		PresentationOverrides: PresentationOverrides{},
		IconOverrides:         IconOverrides{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// HasVideo reports whether the composition has a video source. Without one
// the timeline is not shown at all.
func (c *Composition) HasVideo() bool {
	return c.VideoURL != ""
}

// HasAudio reports whether the composition has an audio source
func (c *Composition) HasAudio() bool {
	return c.AudioURL != ""
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestNewComposition tests Composition creation
func TestNewComposition(t *testing.T) {
	c := NewComposition("Trailer", "https://cdn.example.com/trailer.mp4", "")

	if c.ID == uuid.Nil {
		t.Error("Composition ID not set")
	}
	if c.Name != "Trailer" {
		t.Errorf("Name = %s, want Trailer", c.Name)
	}
	if !c.HasVideo() {
		t.Error("HasVideo() = false, want true")
	}
	if c.HasAudio() {
		t.Error("HasAudio() = true, want false")
	}
	if c.PresentationOverrides == nil || c.IconOverrides == nil {
		t.Error("override maps not initialized")
	}
	if time.Since(c.CreatedAt) > time.Second {
		t.Error("CreatedAt not set to recent time")
	}
	if !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt differ on creation")
	}
}

// TestComposition_JSON checks the wire names the presentation layer relies on
func TestComposition_JSON(t *testing.T) {
	c := NewComposition("Demo", "v.mp4", "a.mp3")
	c.PresentationOverrides["videoBar"] = map[string]string{"color": "#a0d911"}
	c.IconOverrides["video"] = "camera"
	c.VideoMenu = json.RawMessage(`[{"label":"Replace"}]`)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{"id", "name", "video_url", "audio_url", "presentation_overrides", "icon_overrides", "video_menu"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if _, ok := fields["audio_menu"]; ok {
		t.Error("audio_menu should be omitted when empty")
	}
	if string(fields["video_menu"]) != `[{"label":"Replace"}]` {
		t.Errorf("video_menu = %s, want raw menu content", fields["video_menu"])
	}
}

package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/duet/internal/timeline"
)

func TestIsHLS(t *testing.T) {
	assert.True(t, IsHLS("https://cdn.example.com/live/master.m3u8?token=abc"))
	assert.True(t, IsHLS("/media/clip/INDEX.M3U8"))
	assert.False(t, IsHLS("https://cdn.example.com/clip.mp4"))
	assert.False(t, IsHLS("voiceover.wav"))
}

func TestRouter_Dispatch(t *testing.T) {
	var hlsCalls, defaultCalls int
	router := NewRouter(
		ProberFunc(func(_ context.Context, _ string) (*Metadata, error) {
			hlsCalls++
			return &Metadata{Duration: 10}, nil
		}),
		ProberFunc(func(_ context.Context, _ string) (*Metadata, error) {
			defaultCalls++
			return &Metadata{Duration: 20}, nil
		}),
	)

	m, err := router.Probe(context.Background(), "https://cdn.example.com/a.m3u8")
	require.NoError(t, err)
	assert.Equal(t, 10.0, m.Duration)

	m, err = router.Probe(context.Background(), "https://cdn.example.com/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, 20.0, m.Duration)

	assert.Equal(t, 1, hlsCalls)
	assert.Equal(t, 1, defaultCalls)

	_, err = router.Probe(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestValidateTrack(t *testing.T) {
	tests := []struct {
		name     string
		kind     timeline.TrackKind
		metadata *Metadata
		suitable bool
	}{
		{"video source for video track", timeline.TrackVideo, &Metadata{Duration: 10, HasVideo: true}, true},
		{"audio source for video track", timeline.TrackVideo, &Metadata{Duration: 10, HasAudio: true}, false},
		{"audio source for audio track", timeline.TrackAudio, &Metadata{Duration: 10, HasAudio: true}, true},
		{"muxed source for audio track", timeline.TrackAudio, &Metadata{Duration: 10, HasVideo: true, HasAudio: true}, true},
		{"zero duration", timeline.TrackAudio, &Metadata{HasAudio: true}, false},
		{"nil metadata", timeline.TrackVideo, nil, false},
		{"unknown kind", timeline.TrackKind("subtitle"), &Metadata{Duration: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateTrack(tt.kind, tt.metadata)
			assert.Equal(t, tt.suitable, result.Suitable)
			if !tt.suitable {
				assert.NotEmpty(t, result.Reasons)
			}
		})
	}
}

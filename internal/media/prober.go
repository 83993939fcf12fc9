// Package media resolves metadata for playable sources: how long a media
// resource runs and which kinds of streams it carries.
package media

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

// Common errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")
	ErrFileNotFound    = errors.New("file not found or not readable")
	ErrInvalidFile     = errors.New("invalid or corrupted media source")
	ErrTimeout         = errors.New("probe timed out")
	ErrEmptySource     = errors.New("source URL is empty")
)

// Metadata describes a probed media source
type Metadata struct {
	Duration   float64 // Duration in seconds
	VideoCodec string  // e.g., "h264", "hevc"
	AudioCodec string  // e.g., "aac", "mp3"
	Resolution string  // e.g., "1920x1080"
	HasVideo   bool
	HasAudio   bool
	Width      int
	Height     int
}

// Prober resolves metadata for a source URL
type Prober interface {
	Probe(ctx context.Context, source string) (*Metadata, error)
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context, source string) (*Metadata, error)

// Probe calls f(ctx, source)
func (f ProberFunc) Probe(ctx context.Context, source string) (*Metadata, error) {
	return f(ctx, source)
}

// Router sends HLS playlists to one prober and every other source to another
type Router struct {
	HLS     Prober
	Default Prober
}

// NewRouter creates a router with the given HLS and fallback probers
func NewRouter(hls, fallback Prober) *Router {
	return &Router{HLS: hls, Default: fallback}
}

// Probe dispatches on the source's path extension
func (r *Router) Probe(ctx context.Context, source string) (*Metadata, error) {
	if source == "" {
		return nil, ErrEmptySource
	}
	if r.HLS != nil && IsHLS(source) {
		return r.HLS.Probe(ctx, source)
	}
	return r.Default.Probe(ctx, source)
}

// IsHLS reports whether the source points at an .m3u8 playlist
func IsHLS(source string) bool {
	p := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".m3u8")
}

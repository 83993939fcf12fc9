package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/stwalsh4118/duet/internal/logger"
)

const defaultHLSTimeout = 10 * time.Second

// RFC 6381 codec prefixes found in EXT-X-STREAM-INF CODECS attributes
var (
	videoCodecTags = []string{"avc1", "avc3", "hvc1", "hev1", "vp09", "av01"}
	audioCodecTags = []string{"mp4a", "ac-3", "ec-3", "opus", "flac"}
)

// HLSProber computes the duration of HLS sources by summing segment durations
// of a media playlist. A master playlist is followed to its first variant.
type HLSProber struct {
	client *http.Client
}

// NewHLSProber creates an HLS prober whose HTTP fetches time out after timeout
func NewHLSProber(timeout time.Duration) *HLSProber {
	if timeout <= 0 {
		timeout = defaultHLSTimeout
	}
	return &HLSProber{client: &http.Client{Timeout: timeout}}
}

// Probe reads the playlist at source (http(s) URL, file URL or local path)
func (p *HLSProber) Probe(ctx context.Context, source string) (*Metadata, error) {
	if source == "" {
		return nil, ErrEmptySource
	}

	playlist, listType, err := p.decode(ctx, source)
	if err != nil {
		return nil, err
	}

	if listType == m3u8.MASTER {
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok || len(master.Variants) == 0 || master.Variants[0] == nil {
			return nil, fmt.Errorf("%w: master playlist has no variants", ErrInvalidFile)
		}
		variant := master.Variants[0]
		variantURL, err := resolveReference(source, variant.URI)
		if err != nil {
			return nil, fmt.Errorf("%w: bad variant URI %q", ErrInvalidFile, variant.URI)
		}

		logger.Log.Debug().
			Str("source_url", source).
			Str("variant_url", variantURL).
			Msg("Following first HLS variant")

		playlist, listType, err = p.decode(ctx, variantURL)
		if err != nil {
			return nil, err
		}
		if listType != m3u8.MEDIA {
			return nil, fmt.Errorf("%w: nested master playlist", ErrInvalidFile)
		}
		metadata, err := mediaPlaylistMetadata(playlist)
		if err != nil {
			return nil, err
		}
		undeclared := variant.Codecs == ""
		metadata.HasVideo = undeclared || variant.Resolution != "" || containsAny(variant.Codecs, videoCodecTags)
		metadata.HasAudio = undeclared || containsAny(variant.Codecs, audioCodecTags)
		metadata.Resolution = variant.Resolution
		return metadata, nil
	}

	metadata, err := mediaPlaylistMetadata(playlist)
	if err != nil {
		return nil, err
	}
	// A bare media playlist does not declare its codecs
	metadata.HasVideo = true
	metadata.HasAudio = true
	return metadata, nil
}

func (p *HLSProber) decode(ctx context.Context, source string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := p.open(ctx, source)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = body.Close() }()

	playlist, listType, err := m3u8.DecodeFrom(body, false)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return playlist, listType, nil
}

func (p *HLSProber) open(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: HTTP %d", ErrFileNotFound, resp.StatusCode)
		}
		return resp.Body, nil
	}

	localPath := source
	if err == nil && u.Scheme == "file" {
		localPath = u.Path
	}
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return f, nil
}

func mediaPlaylistMetadata(playlist m3u8.Playlist) (*Metadata, error) {
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, fmt.Errorf("%w: not a media playlist", ErrInvalidFile)
	}

	var total float64
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		total += seg.Duration
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: playlist has no segments", ErrInvalidFile)
	}

	return &Metadata{Duration: total}, nil
}

// resolveReference resolves a playlist-relative URI against the playlist location
func resolveReference(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if baseURL.Scheme == "" {
		// Local path: resolve relative to the playlist directory
		if refURL.IsAbs() || strings.HasPrefix(ref, "/") {
			return ref, nil
		}
		dir := base[:strings.LastIndex(base, "/")+1]
		return dir + ref, nil
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

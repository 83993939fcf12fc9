package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/stwalsh4118/duet/internal/logger"
)

const defaultFFprobeTimeout = 30 * time.Second

// FFprobeResult represents the top-level JSON output from FFprobe
type FFprobeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream represents a video or audio stream
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // "video" or "audio"
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Format represents the container information
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// FFprobe probes sources by running the ffprobe binary
type FFprobe struct {
	path    string
	timeout time.Duration
}

// NewFFprobe creates an ffprobe runner. An empty path means "ffprobe" from PATH.
func NewFFprobe(path string, timeout time.Duration) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultFFprobeTimeout
	}
	return &FFprobe{path: path, timeout: timeout}
}

// CheckInstalled checks if the configured ffprobe binary is available
func (f *FFprobe) CheckInstalled() error {
	if _, err := exec.LookPath(f.path); err != nil {
		return ErrFFprobeNotFound
	}
	return nil
}

// Probe executes ffprobe against a local path or URL and returns its metadata
func (f *FFprobe) Probe(ctx context.Context, source string) (*Metadata, error) {
	if source == "" {
		return nil, ErrEmptySource
	}
	if err := f.CheckInstalled(); err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Str("source_url", source).
		Msg("Probing source with FFprobe")

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		f.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		source,
	)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFile, string(exitErr.Stderr))
		}

		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	var result FFprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	metadata, err := extractMetadata(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to extract metadata: %w", err)
	}

	logger.Log.Debug().
		Str("source_url", source).
		Float64("duration", metadata.Duration).
		Str("video_codec", metadata.VideoCodec).
		Str("audio_codec", metadata.AudioCodec).
		Msg("Probed source")

	return metadata, nil
}

// extractMetadata converts FFprobeResult to Metadata. Duration comes from the
// first video stream, then the first audio stream, then the container.
func extractMetadata(result *FFprobeResult) (*Metadata, error) {
	metadata := &Metadata{}

	var videoStream, audioStream *Stream
	for i := range result.Streams {
		stream := &result.Streams[i]
		if stream.CodecType == "video" && videoStream == nil {
			videoStream = stream
		}
		if stream.CodecType == "audio" && audioStream == nil {
			audioStream = stream
		}
	}

	if videoStream != nil {
		metadata.HasVideo = true
		metadata.VideoCodec = videoStream.CodecName
		metadata.Width = videoStream.Width
		metadata.Height = videoStream.Height
		if videoStream.Width > 0 && videoStream.Height > 0 {
			metadata.Resolution = fmt.Sprintf("%dx%d", videoStream.Width, videoStream.Height)
		}
	}

	if audioStream != nil {
		metadata.HasAudio = true
		metadata.AudioCodec = audioStream.CodecName
	}

	for _, candidate := range []*Stream{videoStream, audioStream} {
		if candidate == nil || metadata.Duration > 0 {
			continue
		}
		metadata.Duration = parseDuration(candidate.Duration)
	}
	if metadata.Duration == 0 {
		metadata.Duration = parseDuration(result.Format.Duration)
	}

	if metadata.Duration == 0 {
		return nil, fmt.Errorf("%w: could not determine duration", ErrInvalidFile)
	}

	return metadata, nil
}

// parseDuration parses an ffprobe duration string, returning 0 when absent or invalid
func parseDuration(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

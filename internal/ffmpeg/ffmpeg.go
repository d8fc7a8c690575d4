// Package ffmpeg wraps the ffmpeg/ffprobe command line tools for media
// extraction: video duration, audio track extraction, and scene-detect frame
// extraction.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/DonTizi/vistral/config"
	"github.com/DonTizi/vistral/models"
)

// FFProbeOutput holds the subset of ffprobe JSON output we need.
type FFProbeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetVideoDuration uses ffprobe to read a video's duration in seconds.
func GetVideoDuration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v: %s", err, tail(stderr.String()))
	}

	var probe FFProbeOutput
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("error unmarshalling ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("could not retrieve duration from ffprobe output")
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing duration %q: %w", probe.Format.Duration, err)
	}
	return duration, nil
}

// ExtractAudio extracts a 16kHz mono WAV track from the video, written to
// outputDir/audio.wav. Fails with the tool's stderr tail on nonzero exit.
func ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error) {
	outputPath := filepath.Join(outputDir, "audio.wav")

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vn", // no video
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg audio extraction failed: %s", tail(stderr.String()))
	}
	return outputPath, nil
}

var ptsTimeRe = regexp.MustCompile(`pts_time:\s*([\d.]+)`)

// ComputeFrameInterval picks the minimum seconds between frames based on
// video length: 30s under 15 minutes, 60s up to 30 minutes, 90s beyond.
func ComputeFrameInterval(durationSeconds float64) int {
	minutes := durationSeconds / 60.0
	switch {
	case minutes > 30:
		return 90
	case minutes > 15:
		return 60
	default:
		return config.MinFrameInterval
	}
}

// ExtractFrames extracts representative frames using ffmpeg scene detection
// combined with a minimum interval fallback, so frames keep appearing during
// long static scenes. Falls back to the first frame when detection yields
// nothing. Returned frames are ordered by index with non-decreasing timestamps.
func ExtractFrames(ctx context.Context, videoPath, outputDir string) ([]models.FrameInfo, error) {
	framesDir := filepath.Join(outputDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating frames dir: %w", err)
	}

	interval := config.MinFrameInterval
	if duration, err := GetVideoDuration(ctx, videoPath); err == nil {
		interval = ComputeFrameInterval(duration)
	}

	// Scene change OR first frame OR interval elapsed since last selection.
	vf := fmt.Sprintf(
		"select='gt(scene\\,%g)+isnan(prev_selected_t)+gte(t-prev_selected_t\\,%d)',showinfo",
		config.SceneDetectThreshold, interval,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", vf,
		"-vsync", "vfr",
		"-q:v", "2",
		"-y",
		filepath.Join(framesDir, "frame_%04d.jpg"),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// The frame-select run can exit nonzero on some containers while still
	// producing frames, so the exit code alone is not treated as fatal here;
	// an empty frames dir triggers the fallback below.
	runErr := cmd.Run()

	// showinfo logs selected frame timestamps to stderr
	var timestamps []float64
	for _, m := range ptsTimeRe.FindAllStringSubmatch(stderr.String(), -1) {
		if ts, err := strconv.ParseFloat(m[1], 64); err == nil {
			timestamps = append(timestamps, ts)
		}
	}

	matches, err := filepath.Glob(filepath.Join(framesDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("listing frames: %w", err)
	}
	sort.Strings(matches)

	frames := make([]models.FrameInfo, 0, len(matches))
	for i, path := range matches {
		ts := float64(i * interval)
		if i < len(timestamps) {
			ts = timestamps[i]
		}
		frames = append(frames, models.FrameInfo{Index: i, Timestamp: ts, Path: path})
	}

	if len(frames) == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("ffmpeg frame extraction failed: %s", tail(stderr.String()))
		}
		return extractFirstFrame(ctx, videoPath, framesDir)
	}
	return frames, nil
}

// extractFirstFrame grabs a single frame from the start of the video.
func extractFirstFrame(ctx context.Context, videoPath, framesDir string) ([]models.FrameInfo, error) {
	fallbackPath := filepath.Join(framesDir, "frame_0001.jpg")

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		fallbackPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	if _, err := os.Stat(fallbackPath); err != nil {
		return nil, fmt.Errorf("ffmpeg produced no frames: %s", tail(stderr.String()))
	}
	return []models.FrameInfo{{Index: 0, Timestamp: 0, Path: fallbackPath}}, nil
}

// tail returns the last 500 characters of tool output for error messages.
func tail(s string) string {
	if len(s) > 500 {
		return s[len(s)-500:]
	}
	return s
}

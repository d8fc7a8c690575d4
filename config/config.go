package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Pipeline tuning constants. Every value can be overridden through an
// environment variable of the same name; the defaults match the settings the
// pipeline was calibrated with.
var (
	// Mistral API
	MistralAPIKey  = os.Getenv("MISTRAL_API_KEY")
	MistralBaseURL = envString("MISTRAL_BASE_URL", "https://api.mistral.ai/v1")

	ModelASR       = envString("MODEL_ASR", "voxtral-mini-latest")
	ModelVision    = envString("MODEL_VISION", "pixtral-12b-2409")
	ModelReasoning = envString("MODEL_REASONING", "mistral-small-latest")

	// Vision batching. The Pixtral API hard limit is 8 images per request.
	MaxFramesPerBatch    = envInt("MAX_FRAMES_PER_BATCH", 8)
	MaxTotalFrames       = envInt("MAX_TOTAL_FRAMES", 150)
	VisionConcurrency    = envInt("VISION_CONCURRENCY", 4)
	VisionMaxRetries     = envInt("VISION_MAX_RETRIES", 3)
	VisionRetryBaseDelay = envDuration("VISION_RETRY_BASE_DELAY", 2*time.Second)

	// Frame dedup
	DedupWindowSize = envInt("DEDUP_WINDOW_SIZE", 5)
	PhashThreshold  = envInt("PHASH_THRESHOLD", 8)
	FrameMaxWidth   = envInt("FRAME_MAX_WIDTH", 1024)
	HashWorkers     = envInt("HASH_WORKERS", 4)

	// Frame extraction
	SceneDetectThreshold = envFloat("SCENE_DETECT_THRESHOLD", 0.3)
	MinFrameInterval     = envInt("MIN_FRAME_INTERVAL", 30)

	// Timeline
	TimelineSnapshotInterval = envInt("TIMELINE_SNAPSHOT_INTERVAL", 60)

	// Upload limits
	MaxUploadSizeMB = envInt("MAX_UPLOAD_SIZE_MB", 500)
)

// AllowedVideoTypes lists the upload content types the gateway accepts.
var AllowedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"video/x-msvideo": true,
}

// DataDir is the root for job workspaces and uploaded videos.
var DataDir = envString("DATA_DIR", "data")

// JobsDir returns the workspace directory for a job, creating it if needed.
func JobsDir() string {
	return filepath.Join(DataDir, "jobs")
}

// UploadsDir returns the directory uploaded videos are written to.
func UploadsDir() string {
	return filepath.Join(DataDir, "uploads")
}

// EnsureDirs creates the data directories at startup.
func EnsureDirs() error {
	for _, dir := range []string{JobsDir(), UploadsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

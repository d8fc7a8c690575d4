package handlers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/DonTizi/vistral/config"
	"github.com/DonTizi/vistral/internal/ffmpeg"
	"github.com/DonTizi/vistral/internal/pipeline"
	"github.com/DonTizi/vistral/utils"
)

// UploadVideoHandler accepts a video upload, stores it on disk, and launches
// the analysis pipeline in the background. The response carries the job ID and
// the URL of the progress stream.
func (h *ApplicationHandler) UploadVideoHandler(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		h.Logger.Errorf("Error getting file from request: %v", err)
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Error getting file: %v", err))
	}

	contentType := file.Header.Get("Content-Type")
	if !config.AllowedVideoTypes[contentType] {
		h.Logger.Warnf("Rejected upload with content type %q", contentType)
		return utils.RespondWithError(c, fiber.StatusBadRequest,
			fmt.Sprintf("Unsupported file type %q. Accepted: mp4, webm, mov, avi", contentType))
	}

	maxBytes := int64(config.MaxUploadSizeMB) * 1024 * 1024
	if file.Size > maxBytes {
		h.Logger.Warnf("Rejected upload of %d bytes (limit %d MB)", file.Size, config.MaxUploadSizeMB)
		return utils.RespondWithError(c, fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the %d MB upload limit", config.MaxUploadSizeMB))
	}

	jobID := uuid.NewString()[:8]
	savePath := filepath.Join(config.UploadsDir(), jobID+"_"+filepath.Base(file.Filename))

	if err := c.SaveFile(file, savePath); err != nil {
		h.Logger.Errorf("Error saving uploaded file: %v", err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, fmt.Sprintf("Error saving file: %v", err))
	}

	h.Logger.WithFields(map[string]interface{}{
		"job_id":   jobID,
		"filename": file.Filename,
		"size":     file.Size,
	}).Info("Upload accepted, launching pipeline")

	if h.Store != nil {
		if err := h.Store.CreateJob(jobID); err != nil {
			h.Logger.Warnf("Failed to record job %s: %v", jobID, err)
		}
	}

	// The pipeline outlives the request, so it runs under its own context
	// rather than the request's.
	orch := h.buildOrchestrator(jobID, savePath)
	h.Manager.Launch(context.Background(), orch)

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"job_id":     jobID,
		"filename":   file.Filename,
		"stream_url": fmt.Sprintf("/api/jobs/%s/stream", jobID),
	})
}

// buildOrchestrator wires a job's pipeline from the shared dependencies and
// the tuning constants.
func (h *ApplicationHandler) buildOrchestrator(jobID, videoPath string) *pipeline.Orchestrator {
	orch := pipeline.NewOrchestrator(jobID, videoPath, filepath.Join(config.JobsDir(), jobID))
	orch.Media = ffmpeg.Extractor{}
	orch.AI = h.AI
	orch.Logger = h.Logger
	orch.TimelineInterval = config.TimelineSnapshotInterval
	orch.Vision = &pipeline.VisionAnalyzer{
		Caller:      h.AI,
		BatchSize:   config.MaxFramesPerBatch,
		Concurrency: config.VisionConcurrency,
		MaxRetries:  config.VisionMaxRetries,
		BaseDelay:   config.VisionRetryBaseDelay,
		Logger:      h.Logger,
	}
	orch.Dedup = &pipeline.Deduplicator{
		Threshold:  config.PhashThreshold,
		WindowSize: config.DedupWindowSize,
		HardCap:    config.MaxTotalFrames,
		Pool:       h.Pool,
		Logger:     h.Logger,
	}
	if h.Store != nil {
		orch.Store = h.Store
	}
	return orch
}

package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/valyala/fasthttp"

	"github.com/DonTizi/vistral/config"
	"github.com/DonTizi/vistral/internal/store"
	"github.com/DonTizi/vistral/models"
	"github.com/DonTizi/vistral/utils"
)

const streamHeartbeat = 30 * time.Second

// StreamJobHandler streams a job's progress as server-sent events. For jobs
// no longer tracked in memory it emits a single terminal event reconstructed
// from disk, so a client reconnecting after a restart still resolves.
func (h *ApplicationHandler) StreamJobHandler(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	orch := h.Manager.Get(jobID)
	if orch == nil {
		event := models.ProgressEvent{Step: "error", Message: "Job not found"}
		if _, err := os.Stat(resultsPath(jobID)); err == nil {
			event = models.ProgressEvent{Step: "complete", Progress: 100, Message: "Analysis complete!"}
		}
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			_ = writeSSE(w, event)
		}))
		return nil
	}

	events := orch.Events()
	logger := h.Logger

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		var last *models.ProgressEvent
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				last = &event
				if err := writeSSE(w, event); err != nil {
					logger.Debugf("SSE client for job %s went away: %v", jobID, err)
					return
				}
			case <-heartbeat.C:
				// Keep idle proxies from dropping the connection during
				// long pipeline stages.
				if last == nil {
					continue
				}
				if err := writeSSE(w, *last); err != nil {
					logger.Debugf("SSE client for job %s went away: %v", jobID, err)
					return
				}
			}
		}
	}))
	return nil
}

// ListJobsHandler returns the persisted job rows, newest first. Without a
// configured database the listing is empty; result documents still live on
// disk and are served per job.
func (h *ApplicationHandler) ListJobsHandler(c *fiber.Ctx) error {
	if h.DB == nil {
		return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"jobs": []store.JobRecord{}})
	}

	bodyBytes, _, err := h.DB.From("analysis_jobs").
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		h.Logger.Errorf("Error listing jobs: %v", err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, fmt.Sprintf("Could not list jobs: %v", err))
	}

	var jobs []store.JobRecord
	if err := json.Unmarshal(bodyBytes, &jobs); err != nil {
		h.Logger.Errorf("Error parsing job rows: %v", err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not parse job rows")
	}
	if jobs == nil {
		jobs = []store.JobRecord{}
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"jobs": jobs})
}

// GetJobResultsHandler returns the result document of a completed job.
func (h *ApplicationHandler) GetJobResultsHandler(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	data, err := os.ReadFile(resultsPath(jobID))
	if err != nil {
		if orch := h.Manager.Get(jobID); orch != nil && orch.Status() == models.StatusProcessing {
			return utils.RespondWithError(c, fiber.StatusAccepted, "Job is still processing")
		}
		return utils.RespondWithError(c, fiber.StatusNotFound, fmt.Sprintf("Results for job %s not found", jobID))
	}

	c.Set("Content-Type", "application/json")
	return c.Send(data)
}

// GetJobVideoHandler serves the uploaded source video for playback alongside
// the results.
func (h *ApplicationHandler) GetJobVideoHandler(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	matches, err := filepath.Glob(filepath.Join(config.UploadsDir(), jobID+"_*"))
	if err != nil || len(matches) == 0 {
		return utils.RespondWithError(c, fiber.StatusNotFound, fmt.Sprintf("Video for job %s not found", jobID))
	}

	videoPath := matches[0]
	c.Set("Content-Type", videoContentType(videoPath))
	return c.SendFile(videoPath)
}

func resultsPath(jobID string) string {
	return filepath.Join(config.JobsDir(), jobID, "results.json")
}

func videoContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "video/mp4"
	}
}

func writeSSE(w *bufio.Writer, event models.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

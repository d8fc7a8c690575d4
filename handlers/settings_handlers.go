package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/DonTizi/vistral/config"
	"github.com/DonTizi/vistral/utils"
)

// ApiKeyUpdateRequest is the body for replacing the Mistral API key at runtime.
type ApiKeyUpdateRequest struct {
	APIKey string `json:"api_key" validate:"required,min=8"`
}

// GetSettingsHandler reports the current configuration with the API key
// masked, plus counts of stored jobs and uploads.
func (h *ApplicationHandler) GetSettingsHandler(c *fiber.Ctx) error {
	jobs, _ := os.ReadDir(config.JobsDir())
	uploads, _ := os.ReadDir(config.UploadsDir())

	key := h.AI.APIKey()
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"api_key_masked": maskKey(key),
		"has_api_key":    key != "",
		"model_asr":      config.ModelASR,
		"model_vision":   config.ModelVision,
		"model_text":     config.ModelReasoning,
		"jobs_stored":    len(jobs),
		"uploads_stored": len(uploads),
	})
}

// UpdateApiKeyHandler replaces the Mistral API key for subsequent jobs.
func (h *ApplicationHandler) UpdateApiKeyHandler(c *fiber.Ctx) error {
	var req ApiKeyUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		h.Logger.Errorf("Error parsing api key update: %v", err)
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	if err := h.Validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"errors": utils.FormatValidationErrors(err),
		})
	}

	key := strings.TrimSpace(req.APIKey)
	h.AI.SetAPIKey(key)
	h.Logger.Info("Mistral API key updated")

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"api_key_masked": maskKey(key),
	})
}

// PurgeDataHandler deletes all stored job workspaces and uploaded videos.
func (h *ApplicationHandler) PurgeDataHandler(c *fiber.Ctx) error {
	jobsDeleted := purgeDir(config.JobsDir())
	uploadsDeleted := purgeDir(config.UploadsDir())

	h.Logger.Infof("Purged stored data: %d jobs, %d uploads", jobsDeleted, uploadsDeleted)

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"jobs_deleted":    jobsDeleted,
		"uploads_deleted": uploadsDeleted,
	})
}

// purgeDir removes every entry in dir, keeping the dir itself. Returns the
// number of entries removed.
func purgeDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	deleted := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err == nil {
			deleted++
		}
	}
	return deleted
}

// maskKey hides all but the edges of an API key. Short keys are fully masked.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

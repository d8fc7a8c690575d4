package main

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/DonTizi/vistral/config"
	"github.com/DonTizi/vistral/handlers"
	"github.com/DonTizi/vistral/internal/aiclient"
	"github.com/DonTizi/vistral/internal/pipeline"
	"github.com/DonTizi/vistral/internal/store"
	"github.com/DonTizi/vistral/internal/worker"
	"github.com/DonTizi/vistral/middleware"
)

// jobRetention is how long a finished job stays queryable in memory before
// clients must fall back to the on-disk results.
const jobRetention = 5 * time.Minute

func main() {
	config.InitLogger()
	log := config.Log

	if err := config.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	db, err := config.InitSupabase()
	if err != nil {
		log.Fatalf("Failed to initialize Supabase: %v", err)
	}

	jobStore, err := store.NewFromEnv(log)
	if err != nil {
		log.Fatalf("Failed to initialize job store: %v", err)
	}

	ai := aiclient.NewClient(config.MistralBaseURL, config.MistralAPIKey, log)
	ai.ModelASR = config.ModelASR
	ai.ModelVision = config.ModelVision
	ai.ModelReasoning = config.ModelReasoning
	if config.MistralAPIKey == "" {
		log.Warn("MISTRAL_API_KEY is not set; uploads will fail at the transcription stage")
	}

	pool := worker.NewPool(config.HashWorkers, config.MaxTotalFrames, log)
	pool.Run()

	manager := pipeline.NewJobManager(jobRetention, log)
	h := handlers.NewApplicationHandler(log, db, manager, jobStore, ai, pool)

	app := fiber.New(fiber.Config{
		BodyLimit: config.MaxUploadSizeMB * 1024 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestLogger())

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Video analysis service is healthy",
		})
	})

	app.Post("/api/upload", h.UploadVideoHandler)
	app.Get("/api/jobs", h.ListJobsHandler)

	jobs := app.Group("/api/jobs/:jobId")
	jobs.Get("/stream", h.StreamJobHandler)
	jobs.Get("/results", h.GetJobResultsHandler)
	jobs.Get("/video", h.GetJobVideoHandler)

	app.Get("/api/settings", h.GetSettingsHandler)
	app.Put("/api/settings/api-key", h.UpdateApiKeyHandler)
	app.Delete("/api/data", h.PurgeDataHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	log.Infof("Starting video analysis service on port %s...", port)
	log.Fatal(app.Listen(":" + port))
}

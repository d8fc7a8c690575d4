package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"

	"github.com/DonTizi/vistral/internal/aiclient"
	"github.com/DonTizi/vistral/internal/pipeline"
	"github.com/DonTizi/vistral/internal/store"
	"github.com/DonTizi/vistral/internal/worker"
)

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Logger   *logrus.Logger
	DB       *supa.Client // nil when Supabase is not configured
	Manager  *pipeline.JobManager
	Store    *store.JobStore // nil when Supabase is not configured
	AI       *aiclient.Client
	Pool     *worker.Pool
	Validate *validator.Validate
}

// NewApplicationHandler creates a new ApplicationHandler with the given dependencies.
func NewApplicationHandler(logger *logrus.Logger, db *supa.Client, manager *pipeline.JobManager, jobStore *store.JobStore, ai *aiclient.Client, pool *worker.Pool) *ApplicationHandler {
	return &ApplicationHandler{
		Logger:   logger,
		DB:       db,
		Manager:  manager,
		Store:    jobStore,
		AI:       ai,
		Pool:     pool,
		Validate: validator.New(),
	}
}

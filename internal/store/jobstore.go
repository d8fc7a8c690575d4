// Package store persists job status rows through PostgREST. The pipeline
// works without it; results always live on disk in the job workspace.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/sirupsen/logrus"

	"github.com/DonTizi/vistral/models"
)

const jobTable = "analysis_jobs"

// JobRecord maps to the analysis_jobs table.
type JobRecord struct {
	JobID        string          `json:"job_id"`
	Status       string          `json:"status"`
	ResultURL    string          `json:"result_url,omitempty"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`
}

// JobStore writes job lifecycle rows through a PostgREST client.
type JobStore struct {
	client *postgrest.Client
	logger *logrus.Logger
}

// NewFromEnv builds a JobStore from SUPABASE_URL / SUPABASE_SERVICE_KEY.
// Returns nil when the environment is not configured; callers treat a nil
// store as "no persistence".
func NewFromEnv(logger *logrus.Logger) (*JobStore, error) {
	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		return nil, nil
	}

	client := postgrest.NewClient(supabaseURL+"/rest/v1", "", map[string]string{
		"apikey":        supabaseKey,
		"Authorization": fmt.Sprintf("Bearer %s", supabaseKey),
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to initialize PostgREST client: %w", client.ClientError)
	}
	return &JobStore{client: client, logger: logger}, nil
}

// CreateJob inserts a pending row for a new job.
func (s *JobStore) CreateJob(jobID string) error {
	record := JobRecord{
		JobID:  jobID,
		Status: string(models.StatusUploading),
	}
	var results []JobRecord
	if _, err := s.client.From(jobTable).Insert(record, false, "", "representation", "").ExecuteTo(&results); err != nil {
		return fmt.Errorf("failed to insert job record: %w", err)
	}
	return nil
}

// MarkProcessing flips a job to processing.
func (s *JobStore) MarkProcessing(jobID string) error {
	return s.update(jobID, map[string]interface{}{
		"status":     string(models.StatusProcessing),
		"updated_at": time.Now(),
	})
}

// MarkCompleted records completion along with a compact result summary. The
// full result document lives on disk; the row carries just enough for job
// listings.
func (s *JobStore) MarkCompleted(jobID string, result *models.Result) error {
	summary := map[string]interface{}{
		"processing_time": result.ProcessingTime,
		"segments":        len(result.Transcript),
		"vision_events":   len(result.VisionEvents),
	}
	if result.Graph != nil {
		summary["nodes"] = result.Graph.Metadata.TotalNodes
		summary["edges"] = result.Graph.Metadata.TotalEdges
	}
	summaryBytes, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal result summary: %w", err)
	}

	return s.update(jobID, map[string]interface{}{
		"status":     string(models.StatusCompleted),
		"result_url": result.VideoURL,
		"summary":    json.RawMessage(summaryBytes),
		"updated_at": time.Now(),
	})
}

// MarkFailed records a terminal error for the job.
func (s *JobStore) MarkFailed(jobID string, errMsg string) error {
	return s.update(jobID, map[string]interface{}{
		"status":        string(models.StatusError),
		"error_message": errMsg,
		"updated_at":    time.Now(),
	})
}

func (s *JobStore) update(jobID string, data map[string]interface{}) error {
	var results []JobRecord
	if _, err := s.client.From(jobTable).Update(data, "", "").Eq("job_id", jobID).ExecuteTo(&results); err != nil {
		return fmt.Errorf("failed to update job record %s: %w", jobID, err)
	}
	s.logger.Infof("Job record %s updated: %v", jobID, data["status"])
	return nil
}

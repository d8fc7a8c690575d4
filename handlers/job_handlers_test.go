package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	supa "github.com/supabase-community/supabase-go"

	"github.com/DonTizi/vistral/config"
	"github.com/DonTizi/vistral/internal/aiclient"
	"github.com/DonTizi/vistral/internal/pipeline"
	"github.com/DonTizi/vistral/internal/store"
)

func jobListApp(t *testing.T, db *supa.Client) *fiber.App {
	t.Helper()
	config.DataDir = t.TempDir()
	if err := config.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	log := quietLogger()
	h := NewApplicationHandler(log, db, pipeline.NewJobManager(time.Minute, log), nil,
		aiclient.NewClient("http://unreachable.invalid", "", log), nil)

	app := fiber.New()
	app.Get("/api/jobs", h.ListJobsHandler)
	return app
}

type jobListResponse struct {
	Data struct {
		Jobs []store.JobRecord `json:"jobs"`
	} `json:"data"`
}

func TestListJobsWithoutDatabase(t *testing.T) {
	app := jobListApp(t, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/jobs", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var body jobListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Jobs == nil || len(body.Data.Jobs) != 0 {
		t.Fatalf("expected empty job list without a database, got %v", body.Data.Jobs)
	}
}

func TestListJobsReadsPersistedRows(t *testing.T) {
	rows := `[{"job_id":"abc12345","status":"completed"},{"job_id":"def67890","status":"error"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/rest/v1/analysis_jobs") {
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, rows)
	}))
	defer srv.Close()

	db, err := supa.NewClient(srv.URL, "service-key", nil)
	if err != nil {
		t.Fatal(err)
	}
	app := jobListApp(t, db)

	req, _ := http.NewRequest(http.MethodGet, "/api/jobs", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var body jobListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data.Jobs) != 2 {
		t.Fatalf("expected 2 job rows, got %d", len(body.Data.Jobs))
	}
	if body.Data.Jobs[0].JobID != "abc12345" || body.Data.Jobs[0].Status != "completed" {
		t.Fatalf("unexpected first row: %+v", body.Data.Jobs[0])
	}
}

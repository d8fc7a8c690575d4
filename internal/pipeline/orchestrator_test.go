package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/DonTizi/vistral/models"
)

type fakeMedia struct {
	audioErr error
	frames   []models.FrameInfo
}

func (m *fakeMedia) ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error) {
	if m.audioErr != nil {
		return "", m.audioErr
	}
	return filepath.Join(outputDir, "audio.wav"), nil
}

func (m *fakeMedia) ExtractFrames(ctx context.Context, videoPath, outputDir string) ([]models.FrameInfo, error) {
	return m.frames, nil
}

type fakeAI struct {
	transcript []models.TranscriptSegment
	entities   *models.ExtractedEntities
	insights   *models.Insights
}

func (a *fakeAI) Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error) {
	return a.transcript, nil
}

func (a *fakeAI) ExtractEntities(ctx context.Context, transcript []models.TranscriptSegment) (*models.ExtractedEntities, error) {
	return a.entities, nil
}

func (a *fakeAI) ExtractInsights(ctx context.Context, serializedGraph string) (*models.Insights, error) {
	return a.insights, nil
}

type recordingStore struct {
	mu         sync.Mutex
	processing []string
	completed  []string
	failed     []string
}

func (s *recordingStore) MarkProcessing(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = append(s.processing, jobID)
	return nil
}

func (s *recordingStore) MarkCompleted(jobID string, result *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, jobID)
	return nil
}

func (s *recordingStore) MarkFailed(jobID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, jobID)
	return nil
}

func testOrchestrator(t *testing.T, media *fakeMedia) *Orchestrator {
	t.Helper()

	frames := makeFrames(2)
	if media.frames == nil && media.audioErr == nil {
		media.frames = frames
	}
	hashes := map[string]uint64{
		frames[0].Path: 0x00000000000000FF,
		frames[1].Path: 0xFF00000000000000,
	}

	o := NewOrchestrator("testjob", "video.mp4", filepath.Join(t.TempDir(), "testjob"))
	o.Media = media
	o.AI = &fakeAI{
		transcript: sampleTranscript(),
		entities:   sampleEntities(),
		insights:   &models.Insights{Summary: "Quarterly review."},
	}
	o.Vision = &VisionAnalyzer{
		Caller:      &fakeBatchCaller{},
		BatchSize:   8,
		Concurrency: 2,
		MaxRetries:  1,
		BaseDelay:   time.Millisecond,
		Logger:      testLogger(),
	}
	o.Dedup = &Deduplicator{
		Threshold:  8,
		WindowSize: 5,
		HardCap:    150,
		Logger:     testLogger(),
		HashFunc:   fakeHashes(hashes),
	}
	o.Logger = testLogger()
	o.TickInterval = 10 * time.Millisecond
	return o
}

func drainEvents(o *Orchestrator) []models.ProgressEvent {
	var events []models.ProgressEvent
	for ev := range o.Events() {
		events = append(events, ev)
	}
	return events
}

func TestOrchestratorRunCompletes(t *testing.T) {
	o := testOrchestrator(t, &fakeMedia{})
	store := &recordingStore{}
	o.Store = store

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != models.StatusCompleted {
		t.Fatalf("result status %q, want completed", result.Status)
	}
	if o.Status() != models.StatusCompleted {
		t.Fatalf("orchestrator status %q, want completed", o.Status())
	}
	if result.Graph == nil || result.Graph.Metadata.TotalNodes == 0 {
		t.Fatal("result carries no graph")
	}
	if result.Insights == nil || result.Insights.Summary != "Quarterly review." {
		t.Fatalf("result insights wrong: %+v", result.Insights)
	}
	if result.VideoURL != "/api/jobs/testjob/video" {
		t.Fatalf("unexpected video url %q", result.VideoURL)
	}

	events := drainEvents(o)
	if len(events) == 0 {
		t.Fatal("no progress events emitted")
	}
	last := events[len(events)-1]
	if last.Step != "complete" || last.Progress != 100 {
		t.Fatalf("terminal event %+v, want complete at 100", last)
	}
	for i := 1; i < len(events); i++ {
		if !events[i].Ticker && !events[i-1].Ticker && events[i].Progress < events[i-1].Progress {
			t.Fatalf("stage progress went backwards: %+v -> %+v", events[i-1], events[i])
		}
	}

	if len(store.processing) != 1 || len(store.completed) != 1 || len(store.failed) != 0 {
		t.Fatalf("store transitions wrong: %+v", store)
	}
}

func TestOrchestratorPersistsResults(t *testing.T) {
	o := testOrchestrator(t, &fakeMedia{})

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(o.JobDir, "results.json"))
	if err != nil {
		t.Fatalf("results.json not written: %v", err)
	}
	var saved models.Result
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("results.json not valid JSON: %v", err)
	}
	if saved.JobID != "testjob" || saved.Status != models.StatusCompleted {
		t.Fatalf("saved result wrong: job=%q status=%q", saved.JobID, saved.Status)
	}
}

func TestOrchestratorRunFailure(t *testing.T) {
	o := testOrchestrator(t, &fakeMedia{audioErr: errors.New("no audio stream")})
	store := &recordingStore{}
	o.Store = store

	_, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected extraction failure to propagate")
	}
	if o.Status() != models.StatusError {
		t.Fatalf("status %q, want error", o.Status())
	}

	events := drainEvents(o)
	last := events[len(events)-1]
	if last.Step != "error" {
		t.Fatalf("terminal event %+v, want error", last)
	}
	if len(store.failed) != 1 || len(store.completed) != 0 {
		t.Fatalf("store transitions wrong: %+v", store)
	}
}

func TestTerminalEventSurvivesFullBuffer(t *testing.T) {
	o := NewOrchestrator("slowjob", "video.mp4", t.TempDir())
	o.Logger = testLogger()

	// No consumer draining; overflow the buffer with ticker chatter before
	// the terminal event lands.
	for i := 0; i < 300; i++ {
		o.emit("frames", 15, "Extracting frames...", true)
	}
	o.emit("complete", 100, "Analysis complete!", false)
	o.closeEvents()

	events := drainEvents(o)
	if len(events) == 0 {
		t.Fatal("no events delivered")
	}
	last := events[len(events)-1]
	if last.Step != "complete" || last.Progress != 100 {
		t.Fatalf("terminal event %+v, want complete at 100", last)
	}
}

func TestTruncateMsgKeepsRunesIntact(t *testing.T) {
	msg := strings.Repeat("é", 300)
	got := truncateMsg(msg, 200)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated message is not valid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 200 {
		t.Fatalf("truncated to %d runes, want 200", utf8.RuneCountInString(got))
	}
	if short := truncateMsg("short", 200); short != "short" {
		t.Fatalf("short message altered: %q", short)
	}
}

func TestOrchestratorEventChannelCloses(t *testing.T) {
	o := testOrchestrator(t, &fakeMedia{})

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	drainEvents(o)
	select {
	case _, ok := <-o.Events():
		if ok {
			t.Fatal("event received after drain")
		}
	case <-time.After(time.Second):
		t.Fatal("event channel not closed after terminal event")
	}
}

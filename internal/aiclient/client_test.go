package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/DonTizi/vistral/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// chatServer scripts the content string returned for each successive chat
// completion call and records the requests it saw.
type chatServer struct {
	mu       sync.Mutex
	requests []chatRequest
	replies  []string
	status   int
}

func (s *chatServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req chatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.requests = append(s.requests, req)

	if s.status != 0 {
		w.WriteHeader(s.status)
		fmt.Fprint(w, `{"error": "backend unhappy"}`)
		return
	}

	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	content, _ := json.Marshal(reply)
	fmt.Fprintf(w, `{"choices": [{"message": {"content": %s}}]}`, content)
}

func newTestClient(t *testing.T, s *chatServer) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	c := NewClient(srv.URL, "test-key", testLogger())
	c.ModelReasoning = "reasoning-model"
	c.ModelVision = "vision-model"
	c.ModelASR = "asr-model"
	return c, srv.Close
}

func TestChatJSONRetriesTruncatedOutputWithDoubledBudget(t *testing.T) {
	s := &chatServer{replies: []string{
		`{"speakers": [{"id": "speaker_`, // truncated mid-string
		`{"speakers": [{"id": "speaker_1"}]}`,
	}}
	c, done := newTestClient(t, s)
	defer done()

	entities, err := c.ExtractEntities(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExtractEntities failed: %v", err)
	}
	if len(entities.Speakers) != 1 || entities.Speakers[0].ID != "speaker_1" {
		t.Fatalf("unexpected entities: %+v", entities)
	}

	if len(s.requests) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(s.requests))
	}
	if s.requests[1].MaxTokens != s.requests[0].MaxTokens*2 {
		t.Fatalf("retry budget %d, want double of %d", s.requests[1].MaxTokens, s.requests[0].MaxTokens)
	}
	if s.requests[0].ResponseFormat == nil || s.requests[0].ResponseFormat.Type != "json_object" {
		t.Fatalf("reasoning calls must request JSON mode: %+v", s.requests[0].ResponseFormat)
	}
}

func TestChatJSONGivesUpAfterSecondInvalidPayload(t *testing.T) {
	s := &chatServer{replies: []string{`not json at all`}}
	c, done := newTestClient(t, s)
	defer done()

	if _, err := c.ExtractEntities(context.Background(), nil); err == nil {
		t.Fatal("expected error after two invalid payloads")
	}
	if len(s.requests) != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", len(s.requests))
	}
}

func TestExtractInsightsBackfillsMissingFields(t *testing.T) {
	s := &chatServer{replies: []string{`{"topics": [{"name": "Budget"}]}`}}
	c, done := newTestClient(t, s)
	defer done()

	insights, err := c.ExtractInsights(context.Background(), "KNOWLEDGE GRAPH:")
	if err != nil {
		t.Fatalf("ExtractInsights failed: %v", err)
	}
	if insights.Summary != "No summary available." {
		t.Fatalf("summary not backfilled: %q", insights.Summary)
	}
	if insights.ActionItems == nil || insights.Decisions == nil || insights.Contradictions == nil ||
		insights.KPIs == nil || insights.KeyQuotes == nil {
		t.Fatalf("collections not backfilled: %+v", insights)
	}
	if len(insights.Topics) != 1 {
		t.Fatalf("present fields must survive backfill: %+v", insights.Topics)
	}
}

func TestExtractEntitiesAPIErrorPropagates(t *testing.T) {
	s := &chatServer{status: http.StatusBadRequest}
	c, done := newTestClient(t, s)
	defer done()

	if _, err := c.ExtractEntities(context.Background(), nil); err == nil {
		t.Fatal("expected API error to propagate")
	}
	if len(s.requests) != 1 {
		t.Fatalf("HTTP errors must not trigger the JSON retry, got %d attempts", len(s.requests))
	}
}

// A settings update can replace the key while a pipeline request is in
// flight; requests pick up whichever key is current and the last write wins.
func TestClientKeySwapDuringRequests(t *testing.T) {
	s := &chatServer{replies: []string{`{"speakers": []}`}}
	c, done := newTestClient(t, s)
	defer done()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.SetAPIKey(fmt.Sprintf("key-%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := c.ExtractEntities(context.Background(), nil); err != nil {
				t.Errorf("ExtractEntities during key swap: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if got := c.APIKey(); got != "key-49" {
		t.Fatalf("final key %q, want key-49", got)
	}
}

func TestFormatTranscript(t *testing.T) {
	segments := []models.TranscriptSegment{
		{Speaker: "speaker_1", Text: "Hello.", Start: 0, End: 2.5},
		{Speaker: "speaker_2", Text: "Hi there.", Start: 2.5, End: 4},
	}
	got := FormatTranscript(segments)
	want := "[0.0s-2.5s] speaker_1: Hello.\n[2.5s-4.0s] speaker_2: Hi there."
	if got != want {
		t.Fatalf("FormatTranscript:\n got %q\nwant %q", got, want)
	}
}

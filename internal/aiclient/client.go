// Package aiclient wraps the Mistral HTTP APIs consumed by the pipeline:
// Voxtral transcription, Pixtral vision, and the two chat reasoning passes.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DonTizi/vistral/models"
	"github.com/DonTizi/vistral/prompts"
)

// Client is the shared Mistral API client. The API key can be swapped at
// runtime through the settings endpoint while pipelines are in flight, so
// access goes through SetAPIKey and APIKey.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Logger

	ModelASR       string
	ModelVision    string
	ModelReasoning string

	mu     sync.RWMutex
	apiKey string
}

// NewClient creates a Mistral client with the given credentials and models.
func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		apiKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 300 * time.Second},
		Logger:     logger,
	}
}

// SetAPIKey replaces the key used for subsequent requests. In-flight requests
// keep the key they started with.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// APIKey returns the key currently in use.
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatMessage content is either a plain string (reasoning passes) or a list
// of text/image parts (vision batches).
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// postChat performs one chat completion call and returns the raw message
// content along with the HTTP status for retry classification.
func (c *Client) postChat(ctx context.Context, req chatRequest) (string, int, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", 0, fmt.Errorf("marshalling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("mistral API error (%d): %s", resp.StatusCode, truncate(string(body), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("parsing chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, resp.StatusCode, nil
}

// chatJSON runs a JSON-mode chat completion and unmarshals the content into
// out. Invalid JSON is usually truncated output, so the call is retried once
// with a doubled token budget before giving up.
func (c *Client) chatJSON(ctx context.Context, model, prompt string, maxTokens int, out interface{}) error {
	budget := maxTokens
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		content, _, err := c.postChat(ctx, chatRequest{
			Model:          model,
			Messages:       []chatMessage{{Role: "user", Content: prompt}},
			ResponseFormat: &responseFormat{Type: "json_object"},
			MaxTokens:      budget,
			Temperature:    0.1,
		})
		if err != nil {
			return err
		}

		if err := json.Unmarshal([]byte(content), out); err != nil {
			lastErr = fmt.Errorf("invalid JSON payload: %w", err)
			c.Logger.WithField("model", model).Warnf("Chat returned invalid JSON (budget %d), retrying with larger budget", budget)
			budget *= 2
			continue
		}
		return nil
	}
	return lastErr
}

// ExtractEntities runs Pass A: entity extraction over the formatted transcript.
func (c *Client) ExtractEntities(ctx context.Context, transcript []models.TranscriptSegment) (*models.ExtractedEntities, error) {
	prompt := prompts.PassA(FormatTranscript(transcript))

	c.Logger.Infof("Pass A: extracting entities from %d transcript segments", len(transcript))

	var entities models.ExtractedEntities
	if err := c.chatJSON(ctx, c.ModelReasoning, prompt, 4096, &entities); err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	c.Logger.Infof("Pass A complete: %d speakers, %d topics, %d claims, %d KPIs",
		len(entities.Speakers), len(entities.Topics), len(entities.Claims), len(entities.KPIs))
	return &entities, nil
}

// ExtractInsights runs Pass B: insight reasoning over the serialized graph.
// Missing top-level fields are backfilled with empty defaults.
func (c *Client) ExtractInsights(ctx context.Context, serializedGraph string) (*models.Insights, error) {
	prompt := prompts.PassB(serializedGraph)

	c.Logger.Infof("Pass B: extracting insights from serialized graph (%d chars)", len(serializedGraph))

	var insights models.Insights
	if err := c.chatJSON(ctx, c.ModelReasoning, prompt, 6000, &insights); err != nil {
		return nil, fmt.Errorf("insight extraction failed: %w", err)
	}
	insights.Backfill()

	c.Logger.Infof("Pass B complete: %d topics, %d actions, %d decisions, %d contradictions",
		len(insights.Topics), len(insights.ActionItems), len(insights.Decisions), len(insights.Contradictions))
	return &insights, nil
}

// FormatTranscript renders segments as timestamped speaker lines for Pass A.
func FormatTranscript(segments []models.TranscriptSegment) string {
	var buf bytes.Buffer
	for i, seg := range segments {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "[%.1fs-%.1fs] %s: %s", seg.Start, seg.End, seg.Speaker, seg.Text)
	}
	return buf.String()
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

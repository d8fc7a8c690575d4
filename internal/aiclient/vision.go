package aiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"os"

	"github.com/nfnt/resize"

	"github.com/DonTizi/vistral/config"
	"github.com/DonTizi/vistral/models"
	"github.com/DonTizi/vistral/prompts"
)

// Status codes that are safe to retry.
var retryableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

type visionBatchResponse struct {
	Frames []struct {
		FrameNumber      int      `json:"frame_number"`
		OCRText          []string `json:"ocr_text"`
		SceneDescription string   `json:"scene_description"`
		SlideTitle       string   `json:"slide_title"`
		Objects          []string `json:"objects"`
	} `json:"frames"`
}

type imagePart struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnalyzeBatch sends one batch of frames to Pixtral and maps the per-image
// results back onto the input frames by position. Frames the response does
// not cover get a blank event so the batch always yields one event per frame.
// The returned bool reports whether a failure is retryable.
func (c *Client) AnalyzeBatch(ctx context.Context, frames []models.FrameInfo) ([]models.VisionEvent, bool, error) {
	var parts []interface{}
	var frameList bytes.Buffer

	for i, frame := range frames {
		b64, err := encodeFrame(frame.Path)
		if err != nil {
			// A single undecodable frame must not sink the batch
			c.Logger.Warnf("Failed to encode frame %s: %v", frame.Path, err)
			continue
		}
		var part imagePart
		part.Type = "image_url"
		part.ImageURL.URL = "data:image/jpeg;base64," + b64
		parts = append(parts, part)
		fmt.Fprintf(&frameList, "Frame %d (timestamp: %.1fs)\n", i+1, frame.Timestamp)
	}

	if len(parts) == 0 {
		return nil, false, nil
	}

	prompt := prompts.Vision(len(frames), frameList.String())
	content := append([]interface{}{textPart{Type: "text", Text: prompt}}, parts...)

	raw, status, err := c.postChat(ctx, chatRequest{
		Model:          c.ModelVision,
		Messages:       []chatMessage{{Role: "user", Content: content}},
		ResponseFormat: &responseFormat{Type: "json_object"},
		MaxTokens:      4096,
		Temperature:    0.1,
	})
	if err != nil {
		if status == 0 {
			// Transport-level failure (timeout, connection reset)
			return nil, true, err
		}
		return nil, retryableStatusCodes[status], err
	}

	var result visionBatchResponse
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("parsing vision response: %w", err)
	}

	events := make([]models.VisionEvent, 0, len(frames))
	for i, frame := range frames {
		event := models.VisionEvent{
			FrameIndex: frame.Index,
			Timestamp:  frame.Timestamp,
			FramePath:  frame.Path,
			OCRText:    []string{},
			Objects:    []string{},
		}
		if i < len(result.Frames) {
			fr := result.Frames[i]
			if fr.OCRText != nil {
				event.OCRText = fr.OCRText
			}
			event.SceneDescription = fr.SceneDescription
			event.SlideTitle = fr.SlideTitle
			if fr.Objects != nil {
				event.Objects = fr.Objects
			}
		}
		events = append(events, event)
	}
	return events, false, nil
}

// encodeFrame loads a frame JPEG, resizes it to the configured max width, and
// returns it base64-encoded for the vision payload.
func encodeFrame(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}

	maxWidth := config.FrameMaxWidth
	if img.Bounds().Dx() > maxWidth {
		img = resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

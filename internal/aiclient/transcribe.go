package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonTizi/vistral/models"
)

// DefaultSpeaker is the label used when diarization yields no speaker.
const DefaultSpeaker = "Speaker A"

// mergeGapThreshold is the maximum silence between two segments of the same
// speaker for them to be merged into one.
const mergeGapThreshold = 1.0

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Speaker string  `json:"speaker"`
		Text    string  `json:"text"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe sends a WAV file to Voxtral for transcription with speaker
// diarization. When the service returns no segments, the whole text becomes a
// single segment attributed to DefaultSpeaker. Consecutive segments from the
// same speaker separated by less than a second are merged.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error) {
	c.Logger.Infof("Transcribing %s with %s", filepath.Base(audioPath), c.ModelASR)

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	var body strings.Builder
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}
	_ = writer.WriteField("model", c.ModelASR)
	_ = writer.WriteField("response_format", "verbose_json")
	_ = writer.WriteField("timestamp_granularities", `["segment","word"]`)
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/transcriptions", strings.NewReader(body.String()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey())
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription failed (%d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var data transcriptionResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("parsing transcription response: %w", err)
	}

	if len(data.Segments) == 0 {
		text := strings.TrimSpace(data.Text)
		if text == "" {
			return nil, nil
		}
		return []models.TranscriptSegment{{
			Speaker: DefaultSpeaker,
			Text:    text,
			Start:   0,
			End:     data.Duration,
		}}, nil
	}

	segments := make([]models.TranscriptSegment, 0, len(data.Segments))
	for _, seg := range data.Segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = DefaultSpeaker
		}
		segments = append(segments, models.TranscriptSegment{
			Speaker: speaker,
			Text:    strings.TrimSpace(seg.Text),
			Start:   seg.Start,
			End:     seg.End,
		})
	}

	merged := MergeConsecutive(segments, mergeGapThreshold)
	c.Logger.Infof("Transcription complete: %d segments", len(merged))
	return merged, nil
}

// MergeConsecutive merges adjacent segments from the same speaker when the
// gap between them is below gapThreshold. The merged segment keeps the
// earliest start, the latest end, and concatenated text.
func MergeConsecutive(segments []models.TranscriptSegment, gapThreshold float64) []models.TranscriptSegment {
	if len(segments) == 0 {
		return nil
	}

	merged := []models.TranscriptSegment{segments[0]}
	for _, seg := range segments[1:] {
		prev := &merged[len(merged)-1]
		if seg.Speaker == prev.Speaker && seg.Start-prev.End < gapThreshold {
			prev.Text = prev.Text + " " + seg.Text
			prev.End = seg.End
		} else {
			merged = append(merged, seg)
		}
	}
	return merged
}

// Package pipeline implements the multi-stage processing pipeline that turns
// a video into a temporal knowledge graph and business insights.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DonTizi/vistral/models"
)

// MediaExtractor pulls audio and frames out of the video container.
type MediaExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error)
	ExtractFrames(ctx context.Context, videoPath, outputDir string) ([]models.FrameInfo, error)
}

// AIService covers the external transcription and reasoning calls.
type AIService interface {
	Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error)
	ExtractEntities(ctx context.Context, transcript []models.TranscriptSegment) (*models.ExtractedEntities, error)
	ExtractInsights(ctx context.Context, serializedGraph string) (*models.Insights, error)
}

// JobStore persists job status transitions. Implementations must tolerate
// being nil-checked out: the orchestrator works without one.
type JobStore interface {
	MarkProcessing(jobID string) error
	MarkCompleted(jobID string, result *models.Result) error
	MarkFailed(jobID string, errMsg string) error
}

// tickerMessages are the rotating status lines shown while a stage works.
var tickerMessages = map[string][]string{
	"audio": {
		"Extracting audio track from video container",
		"Extracting visual frames with scene detection",
		"Converting audio to optimal format for ASR",
		"Filtering keyframes at scene boundaries",
		"Preparing media for parallel processing",
	},
	"frames": {
		"Computing perceptual hashes for frame dedup",
		"Comparing frame similarity with hamming distance",
		"Filtering near-duplicate frames",
		"Selecting visually distinct keyframes",
	},
	"transcription": {
		"Transcribing speech to text",
		"Identifying speakers with diarization",
		"Aligning word-level timestamps",
		"Segmenting transcript by speaker turns",
		"Detecting language and dialect patterns",
		"Merging consecutive speaker segments",
	},
	"vision": {
		"Analyzing frame content",
		"Running OCR on detected text regions",
		"Classifying slide layouts and diagrams",
		"Extracting visual entities from frames",
		"Detecting charts, tables, and figures",
	},
	"analysis": {
		"Extracting named entities from transcript",
		"Identifying topics and themes",
		"Cross-referencing visual and audio entities",
		"Building entity co-occurrence matrix",
	},
	"graph": {
		"Creating temporal knowledge graph nodes",
		"Linking entities with relationship edges",
		"Computing edge confidence scores",
		"Detecting contradictions between sources",
		"Building timeline snapshots",
		"Validating graph connectivity",
	},
	"insights": {
		"Reasoning over knowledge graph structure",
		"Extracting action items with evidence chains",
		"Identifying key decisions and commitments",
		"Summarizing topic arcs and transitions",
		"Scoring insight confidence levels",
		"Generating executive summary",
	},
}

// Orchestrator runs the full processing pipeline for one video, emitting
// progress events along the way. It owns the knowledge graph for the
// duration of the job and is the only producer on the event channel.
type Orchestrator struct {
	JobID     string
	VideoPath string
	JobDir    string

	Media  MediaExtractor
	AI     AIService
	Vision *VisionAnalyzer
	Dedup  *Deduplicator
	Store  JobStore // optional
	Logger *logrus.Logger

	TimelineInterval int
	TickInterval     time.Duration // progress ticker cadence; defaults to 3s

	events   chan models.ProgressEvent
	eventsMu sync.Mutex
	closed   bool
	status   models.JobStatus
	statusMu sync.RWMutex
}

// NewOrchestrator prepares an orchestrator and its job workspace.
func NewOrchestrator(jobID, videoPath, jobDir string) *Orchestrator {
	return &Orchestrator{
		JobID:            jobID,
		VideoPath:        videoPath,
		JobDir:           jobDir,
		TimelineInterval: 60,
		TickInterval:     3 * time.Second,
		events:           make(chan models.ProgressEvent, 256),
		status:           models.StatusProcessing,
	}
}

// Events exposes the progress stream. The channel is closed after the
// terminal "complete" or "error" event.
func (o *Orchestrator) Events() <-chan models.ProgressEvent {
	return o.events
}

// Status returns the job's current lifecycle state.
func (o *Orchestrator) Status() models.JobStatus {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

func (o *Orchestrator) setStatus(s models.JobStatus) {
	o.statusMu.Lock()
	o.status = s
	o.statusMu.Unlock()
}

// Run executes the full pipeline and returns the assembled result. On any
// stage failure the status flips to error, a terminal error event is emitted,
// and the error propagates to the caller; there is no whole-pipeline retry.
func (o *Orchestrator) Run(ctx context.Context) (result *models.Result, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			o.Logger.WithField("job_id", o.JobID).Errorf("Pipeline failed: %v", err)
			o.setStatus(models.StatusError)
			if o.Store != nil {
				_ = o.Store.MarkFailed(o.JobID, truncateMsg(err.Error(), 200))
			}
			o.emit("error", 0, "Pipeline error: "+truncateMsg(err.Error(), 200), false)
		}
		o.closeEvents()
	}()

	if err := os.MkdirAll(o.JobDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job dir: %w", err)
	}
	if o.Store != nil {
		_ = o.Store.MarkProcessing(o.JobID)
	}

	o.emit("upload", 5, "Video received, starting pipeline", false)

	// Stage 1: audio and frame extraction, in parallel
	o.emit("audio", 10, "Extracting audio and frames", false)
	var audioPath string
	var rawFrames []models.FrameInfo
	err = o.withTicker("audio", 10, 20, func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			audioPath, err = o.Media.ExtractAudio(gctx, o.VideoPath, o.JobDir)
			return err
		})
		g.Go(func() error {
			var err error
			rawFrames, err = o.Media.ExtractFrames(gctx, o.VideoPath, o.JobDir)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	o.emit("audio", 20, fmt.Sprintf("Audio extracted, %d frames found", len(rawFrames)), false)

	// Stage 2: transcription and frame dedup, in parallel. Dedup is
	// CPU-bound and independent of the transcript.
	o.emit("transcription", 25, "Transcribing audio", false)
	var transcript []models.TranscriptSegment
	var uniqueFrames []models.FrameInfo
	err = o.withTicker("transcription", 25, 44, func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			transcript, err = o.AI.Transcribe(gctx, audioPath)
			return err
		})
		g.Go(func() error {
			return o.withTicker("frames", 25, 30, func() error {
				uniqueFrames = o.Dedup.Dedup(rawFrames)
				o.emit("frames", 30, fmt.Sprintf("%d unique frames after dedup", len(uniqueFrames)), false)
				return nil
			})
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	o.emit("transcription", 45, fmt.Sprintf("Transcription complete: %d segments", len(transcript)), false)

	var duration float64
	if len(transcript) > 0 {
		duration = transcript[len(transcript)-1].End
	}

	// Stage 3: entity extraction and vision analysis, in parallel
	o.emit("analysis", 50, "Extracting entities and analyzing frames", false)
	var entities *models.ExtractedEntities
	var visionEvents []models.VisionEvent
	err = o.withTicker("vision", 50, 64, func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			entities, err = o.AI.ExtractEntities(gctx, transcript)
			return err
		})
		g.Go(func() error {
			var err error
			visionEvents, err = o.Vision.Analyze(gctx, uniqueFrames)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	o.emit("vision", 65, fmt.Sprintf("Vision: %d events. Entities extracted.", len(visionEvents)), false)

	// Stage 4: reconcile entity speaker ids onto transcript labels
	speakerMap := BuildSpeakerMap(transcript, entities.Speakers)
	NormalizeEntities(entities, speakerMap)

	// Stage 5: knowledge graph construction and serialization
	o.emit("graph", 70, "Building Temporal Knowledge Graph", false)
	var graph *models.KnowledgeGraph
	var serialized string
	err = o.withTicker("graph", 70, 79, func() error {
		graph = BuildGraph(transcript, visionEvents, entities, duration, o.TimelineInterval)
		serialized = SerializeGraph(graph)
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.emit("graph", 80, fmt.Sprintf("Graph built: %d nodes, %d edges",
		graph.Metadata.TotalNodes, graph.Metadata.TotalEdges), false)

	// Stage 6: insight reasoning over the serialized graph
	o.emit("insights", 85, "Extracting insights from knowledge graph", false)
	var insights *models.Insights
	err = o.withTicker("insights", 85, 94, func() error {
		var err error
		insights, err = o.AI.ExtractInsights(ctx, serialized)
		return err
	})
	if err != nil {
		return nil, err
	}
	NormalizeInsights(insights, speakerMap)
	o.emit("insights", 95, "Insights extracted with evidence chains", false)

	// Stage 7: result assembly and persistence
	result = &models.Result{
		JobID:          o.JobID,
		Status:         models.StatusCompleted,
		VideoURL:       fmt.Sprintf("/api/jobs/%s/video", o.JobID),
		Transcript:     transcript,
		Graph:          graph,
		Insights:       insights,
		VisionEvents:   visionEvents,
		ProcessingTime: round1(time.Since(start).Seconds()),
	}
	if err := o.saveResults(result); err != nil {
		return nil, err
	}
	if o.Store != nil {
		_ = o.Store.MarkCompleted(o.JobID, result)
	}

	o.setStatus(models.StatusCompleted)
	o.emit("complete", 100, "Analysis complete", false)
	return result, nil
}

// withTicker runs fn with a background progress ticker for the stage. The
// ticker is stopped and awaited on every exit path; it is strictly cosmetic
// and cancelling it never affects pipeline correctness.
func (o *Orchestrator) withTicker(step string, startPct, endPct float64, fn func() error) error {
	stop := o.startTicker(step, startPct, endPct)
	defer stop()
	return fn()
}

// startTicker emits interpolated progress events on a fixed cadence. Each
// tick closes 30% of the remaining distance to the stage target, so the
// percentage approaches it monotonically without overshoot, while rotating
// through the stage's status messages.
func (o *Orchestrator) startTicker(step string, startPct, endPct float64) (stop func()) {
	interval := o.TickInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	messages := tickerMessages[step]
	if len(messages) == 0 {
		messages = []string{"Processing " + step + "..."}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		current := startPct
		msgIndex := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				remaining := endPct - current
				increment := remaining * 0.3
				if increment < 0.5 {
					increment = 0.5
				}
				current += increment
				if current > endPct-1 {
					current = endPct - 1
				}
				idx := msgIndex
				if idx >= len(messages) {
					idx = len(messages) - 1
				}
				msgIndex++
				o.emit(step, round1(current), messages[idx], true)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// emit pushes a progress event onto the job's event channel. The channel is
// buffered; if no consumer is draining it and the buffer fills, intermediate
// events are dropped rather than blocking the pipeline. Terminal complete and
// error events evict the oldest buffered event instead, so a slow consumer
// always sees how the job ended.
func (o *Orchestrator) emit(step string, progress float64, message string, ticker bool) {
	event := models.ProgressEvent{Step: step, Progress: progress, Message: message, Ticker: ticker}

	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.events <- event:
	default:
		if step != "complete" && step != "error" {
			o.Logger.WithField("job_id", o.JobID).Debugf("Event buffer full, dropping %s event", step)
			break
		}
		// emit is the only sender and holds eventsMu, so after evicting
		// one event the terminal send cannot fail.
		select {
		case <-o.events:
		default:
		}
		select {
		case o.events <- event:
		default:
		}
	}

	o.Logger.WithField("job_id", o.JobID).Infof("[%s] %s (%.0f%%)", step, message, progress)
}

func (o *Orchestrator) closeEvents() {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

// saveResults persists the result bundle as JSON in the job workspace.
func (o *Orchestrator) saveResults(result *models.Result) error {
	outputPath := filepath.Join(o.JobDir, "results.json")
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	o.Logger.Infof("Results saved to %s", outputPath)
	return nil
}

// truncateMsg bounds an error message by runes so multibyte characters never
// get split at the cutoff.
func truncateMsg(s string, max int) string {
	return clip(s, max)
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}

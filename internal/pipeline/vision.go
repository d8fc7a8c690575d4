package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DonTizi/vistral/models"
)

// BatchCaller sends one batch of frames to the vision service. The bool
// reports whether a failure is retryable (timeout, rate limit, 5xx).
type BatchCaller interface {
	AnalyzeBatch(ctx context.Context, frames []models.FrameInfo) ([]models.VisionEvent, bool, error)
}

// VisionAnalyzer partitions keyframes into request-sized batches, runs them
// concurrently under a parallelism limit, retries transient failures with
// exponential backoff, and reassembles results in chronological order.
type VisionAnalyzer struct {
	Caller      BatchCaller
	BatchSize   int
	Concurrency int
	MaxRetries  int
	BaseDelay   time.Duration
	Logger      *logrus.Logger

	// Sleep is the backoff wait, overridable in tests. Defaults to a
	// context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Analyze runs vision analysis over all frames. A batch that exhausts its
// retries contributes no events; partial failure never fails the whole
// analysis. Events are sorted by timestamp before returning because batch
// completion order depends on scheduling and retry delays, not input order.
func (a *VisionAnalyzer) Analyze(ctx context.Context, frames []models.FrameInfo) ([]models.VisionEvent, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	var batches [][]models.FrameInfo
	for start := 0; start < len(frames); start += a.BatchSize {
		end := start + a.BatchSize
		if end > len(frames) {
			end = len(frames)
		}
		batches = append(batches, frames[start:end])
	}

	a.Logger.Infof("Vision analysis: %d frames in %d batches (concurrency=%d)",
		len(frames), len(batches), a.Concurrency)

	results := make([][]models.VisionEvent, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Concurrency)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			a.Logger.Infof("Batch %d/%d starting (%d frames)", i+1, len(batches), len(batch))
			events, err := a.analyzeWithRetry(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = events
			a.Logger.Infof("Batch %d/%d complete: %d events", i+1, len(batches), len(events))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.VisionEvent
	for _, events := range results {
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })

	a.Logger.Infof("Vision analysis complete: %d events from %d frames", len(all), len(frames))
	return all, nil
}

// analyzeWithRetry wraps one batch call with exponential backoff. Exhausting
// the retries, or a non-retryable failure, degrades the batch to zero events
// rather than returning an error; only context cancellation aborts.
func (a *VisionAnalyzer) analyzeWithRetry(ctx context.Context, batch []models.FrameInfo) ([]models.VisionEvent, error) {
	sleep := a.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 0; attempt <= a.MaxRetries; attempt++ {
		events, retryable, err := a.Caller.AnalyzeBatch(ctx, batch)
		if err == nil {
			return events, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable || attempt == a.MaxRetries {
			a.Logger.Errorf("Batch failed after %d attempts, skipping %d frames: %v",
				attempt+1, len(batch), err)
			return nil, nil
		}

		delay := a.BaseDelay * (1 << attempt)
		a.Logger.Warnf("Retryable error, attempt %d/%d, waiting %s: %v",
			attempt+1, a.MaxRetries, delay, err)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

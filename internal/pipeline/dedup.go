package pipeline

import (
	"fmt"
	"image/jpeg"
	"math/bits"
	"os"

	"github.com/corona10/goimagehash"
	"github.com/sirupsen/logrus"

	"github.com/DonTizi/vistral/internal/worker"
	"github.com/DonTizi/vistral/models"
)

// Deduplicator collapses a raw frame sequence into visually distinct
// keyframes. Each frame's perceptual hash is compared against a sliding
// window of the last kept hashes; the window absorbs brief reversions to an
// earlier scene without re-admitting it as novel.
type Deduplicator struct {
	Threshold  int // minimum hamming distance for a frame to count as new
	WindowSize int // number of recent kept hashes to compare against
	HardCap    int // maximum frames after dedup

	Pool   *worker.Pool // optional; hashes compute in parallel when set
	Logger *logrus.Logger

	// HashFunc computes a frame's 64-bit perceptual hash. Overridable in
	// tests; defaults to a pHash of the decoded JPEG.
	HashFunc func(path string) (uint64, error)
}

type hashJob struct {
	path string
	fn   func(path string) (uint64, error)
	hash uint64
	err  error
}

func (j *hashJob) ID() string { return j.path }

func (j *hashJob) Execute() error {
	j.hash, j.err = j.fn(j.path)
	return j.err
}

// Dedup filters frames to the visually unique ones, preserving input order.
// Frames that fail to hash are logged and skipped. If more than HardCap
// frames survive, the list is uniformly subsampled so temporal spread is
// preserved rather than keeping only the earliest frames.
func (d *Deduplicator) Dedup(frames []models.FrameInfo) []models.FrameInfo {
	if len(frames) == 0 {
		return nil
	}

	hashFn := d.HashFunc
	if hashFn == nil {
		hashFn = phashFile
	}

	jobs := make([]*hashJob, len(frames))
	for i, frame := range frames {
		jobs[i] = &hashJob{path: frame.Path, fn: hashFn}
	}

	if d.Pool != nil {
		batch := make([]worker.Job, len(jobs))
		for i, job := range jobs {
			batch[i] = job
		}
		wait := d.Pool.SubmitBatch(batch)
		wait()
	} else {
		for _, job := range jobs {
			_ = job.Execute()
		}
	}

	// Window admission runs strictly in input order over the precomputed
	// hashes, so results match the sequential algorithm.
	var unique []models.FrameInfo
	window := make([]uint64, 0, d.WindowSize)

	for i, frame := range frames {
		if jobs[i].err != nil {
			d.Logger.Warnf("Failed to hash frame %s: %v", frame.Path, jobs[i].err)
			continue
		}
		h := jobs[i].hash

		duplicate := false
		for _, prev := range window {
			if hamming(h, prev) <= d.Threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		unique = append(unique, frame)
		if len(window) == d.WindowSize {
			window = window[1:]
		}
		window = append(window, h)
	}

	reduction := 0.0
	if len(frames) > 0 {
		reduction = (1 - float64(len(unique))/float64(len(frames))) * 100
	}
	d.Logger.Infof("Frame dedup: %d -> %d unique (%.0f%% reduction)", len(frames), len(unique), reduction)

	if len(unique) > d.HardCap {
		step := float64(len(unique)) / float64(d.HardCap)
		subsampled := make([]models.FrameInfo, 0, d.HardCap)
		for i := 0; i < d.HardCap; i++ {
			subsampled = append(subsampled, unique[int(float64(i)*step)])
		}
		d.Logger.Infof("Hard cap applied: %d -> %d frames (uniform subsample)", len(unique), len(subsampled))
		return subsampled
	}
	return unique
}

func hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// phashFile computes the perceptual hash of a JPEG frame on disk.
func phashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decoding %s: %w", path, err)
	}

	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return h.GetHash(), nil
}

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// JobManager tracks running orchestrators by job id. It replaces process-wide
// mutable state with an owned registry: jobs are inserted when launched and
// removed a grace period after they finish, so late SSE subscribers can still
// attach to a just-completed job.
type JobManager struct {
	mu     sync.RWMutex
	jobs   map[string]*Orchestrator
	grace  time.Duration
	logger *logrus.Logger
}

// NewJobManager creates a manager that keeps finished jobs around for grace
// before dropping them from the registry.
func NewJobManager(grace time.Duration, logger *logrus.Logger) *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Orchestrator),
		grace:  grace,
		logger: logger,
	}
}

// Get returns the orchestrator for a job, or nil when unknown.
func (m *JobManager) Get(jobID string) *Orchestrator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[jobID]
}

// Launch registers the orchestrator and runs its pipeline in the background.
// Pipeline errors are terminal for the job and already logged by the
// orchestrator; the manager only handles registry lifecycle.
func (m *JobManager) Launch(ctx context.Context, o *Orchestrator) {
	m.mu.Lock()
	m.jobs[o.JobID] = o
	m.mu.Unlock()

	go func() {
		if _, err := o.Run(ctx); err != nil {
			m.logger.WithField("job_id", o.JobID).Warnf("Job finished with error: %v", err)
		}
		time.AfterFunc(m.grace, func() {
			m.mu.Lock()
			delete(m.jobs, o.JobID)
			m.mu.Unlock()
		})
	}()
}

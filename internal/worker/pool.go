// Package worker provides a fixed-size pool for CPU-bound jobs so they run on
// real parallel goroutines instead of blocking the stages that drive network
// calls.
package worker

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Job represents a unit of work to be executed. Implementations carry their
// own inputs and record their own results.
type Job interface {
	Execute() error
	ID() string
}

// Pool manages a set of workers pulling jobs from a shared queue. The pool is
// shared across jobs, so completion is tracked per batch: SubmitBatch marks
// the batch WaitGroup done as each job finishes, and each caller waits only
// on its own batch.
type Pool struct {
	maxWorkers int
	jobQueue   chan batchJob
	workers    sync.WaitGroup
	logger     *logrus.Logger
}

type batchJob struct {
	job Job
	wg  *sync.WaitGroup
}

// NewPool creates a Pool with the given number of workers and queue size.
func NewPool(maxWorkers, queueSize int, logger *logrus.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		maxWorkers: maxWorkers,
		jobQueue:   make(chan batchJob, queueSize),
		logger:     logger,
	}
}

// Run starts the workers. Jobs submitted before Run sit in the queue.
func (p *Pool) Run() {
	for i := 1; i <= p.maxWorkers; i++ {
		p.workers.Add(1)
		go p.work(i)
	}
}

func (p *Pool) work(id int) {
	defer p.workers.Done()
	for item := range p.jobQueue {
		if err := item.job.Execute(); err != nil {
			p.logger.Warnf("Worker %d: job %s failed: %v", id, item.job.ID(), err)
		}
		item.wg.Done()
	}
}

// SubmitBatch queues jobs for execution and returns a wait function that
// blocks until every job in this batch has finished. Blocks when the queue is
// full. Concurrent batches from different callers do not interfere.
func (p *Pool) SubmitBatch(jobs []Job) (wait func()) {
	wg := &sync.WaitGroup{}
	wg.Add(len(jobs))
	for _, job := range jobs {
		p.jobQueue <- batchJob{job: job, wg: wg}
	}
	return wg.Wait
}

// Stop closes the queue and waits for the workers to exit. The pool cannot be
// reused afterwards.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.workers.Wait()
}

// Package queue provides an in-memory job queue with a worker pool for
// background maintenance of the location store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Queue errors
var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueFull   = errors.New("queue is full")
	ErrStopped     = errors.New("queue is shut down")
)

// Kind names the work a job performs
type Kind string

// JobStatus represents the state of a job
type JobStatus string

// Job status constants define the lifecycle states
const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job is a unit of background work
type Job struct {
	ID           string
	Kind         Kind
	Params       map[string]string
	Status       JobStatus
	QueuedAt     time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	Result       *JobResult
}

// JobResult contains the output of a completed job
type JobResult struct {
	// Path of the file written by export jobs
	Path string

	// TotalLocations counts the locations exported or deleted
	TotalLocations   int
	TotalDistanceKM  float64
	MaxDistanceKM    float64
	MinDistanceKM    float64
	AvgDistanceKM    float64
	ProcessingTimeMS int64
}

// ProcessFunc is a function that processes a job
type ProcessFunc func(ctx context.Context, job *Job) (*JobResult, error)

// Queue manages jobs with a worker pool
type Queue struct {
	mu           sync.RWMutex
	jobs         map[string]*Job
	pendingQueue chan *Job
	workers      int
	processor    ProcessFunc
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewQueue creates a new job queue with the specified number of workers
// and pending capacity
func NewQueue(workers, capacity int, processor ProcessFunc) *Queue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:         make(map[string]*Job),
		pendingQueue: make(chan *Job, capacity),
		workers:      workers,
		processor:    processor,
		ctx:          ctx,
		cancel:       cancel,
	}

	// Start worker pool
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

// Enqueue adds a new job to the queue and returns its id
func (q *Queue) Enqueue(kind Kind, params map[string]string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx.Err() != nil {
		return "", ErrStopped
	}

	job := &Job{
		ID:       uuid.New().String(),
		Kind:     kind,
		Params:   cloneParams(params),
		Status:   StatusQueued,
		QueuedAt: time.Now().UTC(),
	}
	q.jobs[job.ID] = job

	// Add to pending queue (non-blocking)
	select {
	case q.pendingQueue <- job:
		return job.ID, nil
	default:
		job.Status = StatusFailed
		job.ErrorMessage = ErrQueueFull.Error()
		return "", ErrQueueFull
	}
}

// GetJob retrieves a copy of a job by ID
func (q *Queue) GetJob(jobID string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, exists := q.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job.copy(), nil
}

// ListJobs returns jobs filtered by status and kind, newest first. Empty
// filters match every job.
func (q *Queue) ListJobs(status JobStatus, kind Kind, limit, offset int) ([]*Job, int) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var filtered []*Job
	for _, job := range q.jobs {
		if (status == "" || job.Status == status) && (kind == "" || job.Kind == kind) {
			filtered = append(filtered, job.copy())
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].QueuedAt.Equal(filtered[j].QueuedAt) {
			return filtered[i].QueuedAt.After(filtered[j].QueuedAt)
		}
		return filtered[i].ID < filtered[j].ID
	})

	total := len(filtered)
	if offset < 0 || offset > total {
		return []*Job{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return filtered[offset:end], total
}

// GetStats returns job counts per status
func (q *Queue) GetStats() map[JobStatus]int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := map[JobStatus]int{
		StatusQueued:     0,
		StatusProcessing: 0,
		StatusCompleted:  0,
		StatusFailed:     0,
	}
	for _, job := range q.jobs {
		stats[job.Status]++
	}
	return stats
}

// worker processes jobs until the queue shuts down
func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pendingQueue:
			q.processJob(job)
		}
	}
}

// processJob executes a single job
func (q *Queue) processJob(job *Job) {
	startTime := time.Now()

	q.mu.Lock()
	job.Status = StatusProcessing
	now := time.Now().UTC()
	job.StartedAt = &now
	q.mu.Unlock()

	log.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("Processing job")

	result, err := q.run(job)

	q.mu.Lock()
	defer q.mu.Unlock()

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = StatusFailed
		job.ErrorMessage = err.Error()
		log.Error().Err(err).Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("Job failed")
		return
	}

	job.Status = StatusCompleted
	job.Result = result
	if result != nil {
		result.ProcessingTimeMS = time.Since(startTime).Milliseconds()
	}
}

// run calls the processor, turning a panic into a job failure
func (q *Queue) run(job *Job) (result *JobResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return q.processor(q.ctx, job.copy())
}

// Shutdown stops the workers, waiting up to timeout for running jobs
func (q *Queue) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (j *Job) copy() *Job {
	c := *j
	c.Params = cloneParams(j.Params)
	if j.StartedAt != nil {
		started := *j.StartedAt
		c.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		c.CompletedAt = &completed
	}
	if j.Result != nil {
		result := *j.Result
		c.Result = &result
	}
	return &c
}

func cloneParams(params map[string]string) map[string]string {
	c := make(map[string]string, len(params))
	for k, v := range params {
		c[k] = v
	}
	return c
}

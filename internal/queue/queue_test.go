package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

const kindTest Kind = "test"

// waitFor polls until the job reaches a terminal status
func waitFor(t *testing.T, q *Queue, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.GetJob(jobID)
		if err != nil {
			t.Fatalf("GetJob() failed: %v", err)
		}
		if job.Status == StatusCompleted || job.Status == StatusFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func TestNewQueue(t *testing.T) {
	processor := func(_ context.Context, _ *Job) (*JobResult, error) {
		return &JobResult{Path: "/data/test.csv"}, nil
	}

	q := NewQueue(3, 10, processor)
	defer func() { _ = q.Shutdown(time.Second) }()

	if q.workers != 3 {
		t.Errorf("expected 3 workers, got %d", q.workers)
	}
	if cap(q.pendingQueue) != 10 {
		t.Errorf("expected capacity 10, got %d", cap(q.pendingQueue))
	}
	if len(q.jobs) != 0 {
		t.Errorf("expected empty jobs map, got %d jobs", len(q.jobs))
	}

	defaults := NewQueue(0, 0, processor)
	defer func() { _ = defaults.Shutdown(time.Second) }()
	if defaults.workers != 1 || cap(defaults.pendingQueue) != 100 {
		t.Errorf("unexpected defaults: %d workers, capacity %d", defaults.workers, cap(defaults.pendingQueue))
	}
}

func TestEnqueue(t *testing.T) {
	processor := func(_ context.Context, _ *Job) (*JobResult, error) {
		return &JobResult{}, nil
	}

	q := NewQueue(1, 0, processor)
	defer func() { _ = q.Shutdown(time.Second) }()

	params := map[string]string{"object_type": "post"}
	jobID, err := q.Enqueue(kindTest, params)
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if jobID == "" {
		t.Error("expected non-empty job ID")
	}

	// The queue keeps its own copy of the parameters
	params["object_type"] = "user"

	job, err := q.GetJob(jobID)
	if err != nil {
		t.Fatalf("GetJob() failed: %v", err)
	}
	if job.Kind != kindTest {
		t.Errorf("expected kind %q, got %q", kindTest, job.Kind)
	}
	if job.Params["object_type"] != "post" {
		t.Errorf("expected object_type 'post', got '%s'", job.Params["object_type"])
	}
}

func TestEnqueue_Full(t *testing.T) {
	block := make(chan struct{})
	processor := func(_ context.Context, _ *Job) (*JobResult, error) {
		<-block
		return &JobResult{}, nil
	}

	q := NewQueue(1, 1, processor)
	defer func() { _ = q.Shutdown(time.Second) }()
	defer close(block)

	var full error
	for i := 0; i < 5 && full == nil; i++ {
		_, full = q.Enqueue(kindTest, nil)
	}
	if !errors.Is(full, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", full)
	}
}

func TestEnqueue_AfterShutdown(t *testing.T) {
	q := NewQueue(1, 0, func(_ context.Context, _ *Job) (*JobResult, error) { return nil, nil })
	if err := q.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if _, err := q.Enqueue(kindTest, nil); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	q := NewQueue(1, 0, func(_ context.Context, _ *Job) (*JobResult, error) { return nil, nil })
	defer func() { _ = q.Shutdown(time.Second) }()

	_, err := q.GetJob("non-existent-id")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestListJobs(t *testing.T) {
	processor := func(_ context.Context, _ *Job) (*JobResult, error) {
		return &JobResult{}, nil
	}

	q := NewQueue(1, 0, processor)
	defer func() { _ = q.Shutdown(time.Second) }()

	var ids []string
	for _, kind := range []Kind{"export", "purge", "export"} {
		id, err := q.Enqueue(kind, nil)
		if err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	for _, id := range ids {
		waitFor(t, q, id)
	}

	jobs, total := q.ListJobs("", "", 10, 0)
	if total != 3 || len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d of %d", len(jobs), total)
	}
	if jobs[0].ID != ids[2] {
		t.Error("expected newest job first")
	}

	jobs, total = q.ListJobs("", "export", 10, 0)
	if total != 2 || len(jobs) != 2 {
		t.Errorf("expected 2 export jobs, got %d of %d", len(jobs), total)
	}

	jobs, _ = q.ListJobs(StatusCompleted, "", 1, 0)
	if len(jobs) != 1 {
		t.Errorf("expected 1 job with limit=1, got %d", len(jobs))
	}

	jobs, total = q.ListJobs("", "", 10, 100)
	if len(jobs) != 0 || total != 3 {
		t.Errorf("expected 0 jobs with offset=100, got %d", len(jobs))
	}
}

func TestProcessJob_Success(t *testing.T) {
	var processorCalled atomic.Bool
	processor := func(_ context.Context, job *Job) (*JobResult, error) {
		processorCalled.Store(true)
		return &JobResult{
			Path:            "/data/export/locations_post.csv",
			TotalDistanceKM: 25.5,
			TotalLocations:  100,
		}, nil
	}

	q := NewQueue(1, 0, processor)
	defer func() { _ = q.Shutdown(time.Second) }()

	jobID, _ := q.Enqueue(kindTest, nil)
	job := waitFor(t, q, jobID)

	if !processorCalled.Load() {
		t.Error("expected processor to be called")
	}
	if job.Status != StatusCompleted {
		t.Errorf("expected status 'completed', got '%s'", job.Status)
	}
	if job.Result == nil {
		t.Fatal("expected non-nil result")
	}
	if job.Result.TotalDistanceKM != 25.5 {
		t.Errorf("expected TotalDistanceKM 25.5, got %.2f", job.Result.TotalDistanceKM)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Error("expected start and completion times")
	}
}

func TestProcessJob_Failure(t *testing.T) {
	processor := func(_ context.Context, _ *Job) (*JobResult, error) {
		return nil, errors.New("processing failed")
	}

	q := NewQueue(1, 0, processor)
	defer func() { _ = q.Shutdown(time.Second) }()

	jobID, _ := q.Enqueue(kindTest, nil)
	job := waitFor(t, q, jobID)

	if job.Status != StatusFailed {
		t.Errorf("expected status 'failed', got '%s'", job.Status)
	}
	if job.ErrorMessage != "processing failed" {
		t.Errorf("unexpected error message %q", job.ErrorMessage)
	}
}

func TestProcessJob_Panic(t *testing.T) {
	processor := func(_ context.Context, _ *Job) (*JobResult, error) {
		panic("boom")
	}

	q := NewQueue(1, 0, processor)
	defer func() { _ = q.Shutdown(time.Second) }()

	jobID, _ := q.Enqueue(kindTest, nil)
	job := waitFor(t, q, jobID)

	if job.Status != StatusFailed {
		t.Errorf("expected status 'failed', got '%s'", job.Status)
	}
}

func TestGetStats(t *testing.T) {
	processor := func(_ context.Context, _ *Job) (*JobResult, error) {
		return &JobResult{}, nil
	}

	q := NewQueue(1, 0, processor)
	defer func() { _ = q.Shutdown(time.Second) }()

	a, _ := q.Enqueue(kindTest, nil)
	b, _ := q.Enqueue(kindTest, nil)
	waitFor(t, q, a)
	waitFor(t, q, b)

	stats := q.GetStats()
	if stats[StatusCompleted] != 2 {
		t.Errorf("expected 2 completed, got %d", stats[StatusCompleted])
	}
}

func TestShutdown(t *testing.T) {
	q := NewQueue(3, 0, func(_ context.Context, _ *Job) (*JobResult, error) { return &JobResult{}, nil })

	if err := q.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}

	select {
	case <-q.ctx.Done():
		// Expected
	default:
		t.Error("expected context to be canceled")
	}
}

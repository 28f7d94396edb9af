package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of background work. Run receives the queue's context
// and reports its own failure; the queue never retries.
type Job struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// NewID returns a fresh job identifier.
func NewID() string {
	return uuid.NewString()
}

// Queue executes jobs on a fixed worker pool, keeping training and
// forecasting off the request-handling path. Submit hands the job to a
// worker and returns immediately; outcomes are reported through
// whatever state the job itself writes (the prediction row, usually).
type Queue struct {
	jobs    chan Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// NewQueue starts workers goroutines draining a buffered job channel.
func NewQueue(workers, buffer int) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		jobs:    make(chan Job, buffer),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	return q
}

// Submit enqueues a job. A full queue is an error the caller must
// surface, not a silent drop.
func (q *Queue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is shut down")
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("job queue full, rejecting %s (%s)", job.Name, job.ID)
	}
}

// Shutdown stops accepting jobs and waits for queued and in-flight ones
// to finish.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for job := range q.jobs {
		start := time.Now()
		if err := job.Run(q.ctx); err != nil {
			log.Printf("[worker %d] job %s (%s) failed: %v (%.1fs)",
				id, job.Name, job.ID, err, time.Since(start).Seconds())
			continue
		}
		log.Printf("[worker %d] ✓ job %s (%s) done (%.1fs)",
			id, job.Name, job.ID, time.Since(start).Seconds())
	}
}

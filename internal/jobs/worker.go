package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juridico/conciliacao-api/pkg/logger"
)

// ErrUnknownJob is returned when a job name was never registered
var ErrUnknownJob = errors.New("unknown job")

// Job represents a background task. Jobs must be idempotent: a run may repeat
// after a crash or overlap with a manual trigger.
type Job func(ctx context.Context) error

// JobRun holds the bookkeeping of one registered job
type JobRun struct {
	Name           string     `json:"name"`
	Interval       string     `json:"interval,omitempty"`
	Running        bool       `json:"running"`
	Runs           int64      `json:"runs"`
	Failures       int64      `json:"failures"`
	LastStartedAt  *time.Time `json:"last_started_at"`
	LastFinishedAt *time.Time `json:"last_finished_at"`
	LastDuration   string     `json:"last_duration,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int      `json:"active_jobs"`
	CompletedJobs int64    `json:"completed_jobs"`
	FailedJobs    int64    `json:"failed_jobs"`
	QueueLength   int      `json:"queue_length"`
	Jobs          []JobRun `json:"jobs"`
}

// Worker runs registered jobs from a queue and on schedules
type Worker struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	queue  chan string

	mu    sync.RWMutex
	jobs  map[string]Job
	runs  map[string]*JobRun
	stats WorkerStats
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan string, 32),
		jobs:   make(map[string]Job),
		runs:   make(map[string]*JobRun),
	}

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}
	return w
}

// Register makes a job available for Enqueue and ScheduleEvery
func (w *Worker) Register(name string, job Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobs[name] = job
	if _, ok := w.runs[name]; !ok {
		w.runs[name] = &JobRun{Name: name}
	}
}

// Enqueue queues a registered job for the worker pool
func (w *Worker) Enqueue(name string) error {
	w.mu.RLock()
	_, ok := w.jobs[name]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	select {
	case w.queue <- name:
		return nil
	default:
		logger.Warn("Job queue full, running job synchronously", "job", name)
		w.run(name)
		return nil
	}
}

func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case name, ok := <-w.queue:
			if !ok {
				return
			}
			logger.Debug("Job picked up", "job", name, "worker", workerID)
			w.run(name)
		}
	}
}

// ScheduleEvery runs a registered job at fixed intervals. With immediate the first
// run happens at startup, so restarts do not postpone the job a full interval.
func (w *Worker) ScheduleEvery(name string, interval time.Duration, immediate bool) error {
	w.mu.Lock()
	run, ok := w.runs[name]
	if ok {
		run.Interval = interval.String()
	}
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if immediate {
			w.run(name)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.run(name)
			}
		}
	}()
	return nil
}

// run executes a job, recovering panics and updating its bookkeeping.
// Overlapping runs of the same job are skipped.
func (w *Worker) run(name string) {
	w.mu.Lock()
	job := w.jobs[name]
	rec := w.runs[name]
	if job == nil || rec.Running {
		w.mu.Unlock()
		if job != nil {
			logger.Info("Job already running, skipped", "job", name)
		}
		return
	}
	start := time.Now()
	rec.Running = true
	rec.LastStartedAt = &start
	w.stats.ActiveJobs++
	w.mu.Unlock()

	err := w.safeRun(job)

	finished := time.Now()
	w.mu.Lock()
	rec.Running = false
	rec.Runs++
	rec.LastFinishedAt = &finished
	rec.LastDuration = finished.Sub(start).String()
	rec.LastError = ""
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
	if err != nil {
		rec.Failures++
		rec.LastError = err.Error()
		w.stats.FailedJobs++
	}
	w.mu.Unlock()

	if err != nil {
		logger.Error("Job failed", "job", name, "duration", finished.Sub(start), "error", err)
		return
	}
	logger.Info("Job completed", "job", name, "duration", finished.Sub(start))
}

func (w *Worker) safeRun(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job(w.ctx)
}

// Shutdown gracefully stops all workers
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.Jobs = make([]JobRun, 0, len(w.runs))
	for _, r := range w.runs {
		stats.Jobs = append(stats.Jobs, *r)
	}
	sort.Slice(stats.Jobs, func(i, j int) bool { return stats.Jobs[i].Name < stats.Jobs[j].Name })
	return stats
}

package retry

import (
	"container/heap"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mediadrop/internal/logging"
)

// Job is a scheduled callback.
type Job struct {
	Key string
	At  time.Time
	Run func()
}

type jobHeap []*Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].At.Before(h[j].At) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(*Job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler runs one-shot callbacks after a delay. A single loop goroutine
// owns the timer; each due callback runs in its own goroutine so a slow
// callback never delays the others.
type Scheduler struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	jobs    jobHeap
	wake    chan struct{}
	running sync.WaitGroup
	started bool
	stopped bool
}

// NewScheduler creates an idle Scheduler. Call Run to start it.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		logger: logger,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// Schedule queues run to fire after delay. It returns false between the end
// of one Run and the start of the next.
func (s *Scheduler) Schedule(key string, delay time.Duration, run func()) bool {
	if run == nil {
		return false
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	heap.Push(&s.jobs, &Job{Key: key, At: s.now().Add(delay), Run: run})
	s.mu.Unlock()
	s.signal()
	return true
}

// Pending returns a snapshot of queued jobs ordered by fire time.
func (s *Scheduler) Pending() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, Job{Key: job.Key, At: job.At})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Run drives the scheduler until ctx is cancelled. Jobs still queued at that
// point are dropped; callbacks already started are waited for. Run may be
// called again after it returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stopped = false
	s.mu.Unlock()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		due, next, ok := s.popDue()
		for _, job := range due {
			s.dispatch(job)
		}
		if ok {
			timer.Reset(time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.wake:
		case <-timer.C:
		}
		if ok && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

func (s *Scheduler) popDue() ([]*Job, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var due []*Job
	for s.jobs.Len() > 0 && !s.jobs[0].At.After(now) {
		due = append(due, heap.Pop(&s.jobs).(*Job))
	}
	if s.jobs.Len() == 0 {
		return due, time.Time{}, false
	}
	return due, s.jobs[0].At, true
}

func (s *Scheduler) dispatch(job *Job) {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.ErrorWithContext(s.logger, "scheduled job panicked", "retry_job_panic",
					logging.String("job", job.Key),
					logging.Any("panic", r),
				)
			}
		}()
		job.Run()
	}()
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.stopped = true
	dropped := s.jobs.Len()
	s.jobs = nil
	s.mu.Unlock()
	if dropped > 0 {
		s.logger.Info("scheduler stopped with queued jobs",
			logging.Int("dropped", dropped),
			logging.String(logging.FieldEventType, "retry_jobs_dropped"),
		)
	}
	s.running.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

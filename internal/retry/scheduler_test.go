package retry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"mediadrop/internal/logging"
	"mediadrop/internal/retry"
)

func startScheduler(t *testing.T) (*retry.Scheduler, context.CancelFunc) {
	t.Helper()
	sched := retry.NewScheduler(logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return sched, cancel
}

func TestSchedulerRunsJobsInDeadlineOrder(t *testing.T) {
	sched, _ := startScheduler(t)

	var (
		mu    sync.Mutex
		order []string
	)
	done := make(chan struct{}, 3)
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			done <- struct{}{}
		}
	}
	sched.Schedule("late", 300*time.Millisecond, record("late"))
	sched.Schedule("early", 100*time.Millisecond, record("early"))
	sched.Schedule("middle", 200*time.Millisecond, record("middle"))

	if pending := sched.Pending(); len(pending) != 3 || pending[0].Key != "early" {
		t.Fatalf("unexpected pending snapshot: %+v", pending)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for scheduled jobs")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"early", "middle", "late"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("unexpected order: %v", order)
		}
	}
	if len(sched.Pending()) != 0 {
		t.Fatal("expected no pending jobs")
	}
}

func TestSchedulerSlowJobDoesNotBlockOthers(t *testing.T) {
	sched, _ := startScheduler(t)

	release := make(chan struct{})
	fast := make(chan struct{})
	sched.Schedule("slow", 0, func() { <-release })
	sched.Schedule("fast", 30*time.Millisecond, func() { close(fast) })

	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("fast job blocked behind slow job")
	}
	close(release)
}

func TestSchedulerRecoversPanics(t *testing.T) {
	sched, _ := startScheduler(t)
	ran := make(chan struct{})
	sched.Schedule("boom", 0, func() { panic("boom") })
	sched.Schedule("after", 10*time.Millisecond, func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped after panic")
	}
}

func TestSchedulerDropsJobsAfterStop(t *testing.T) {
	sched, cancel := startScheduler(t)
	fired := make(chan struct{}, 1)
	sched.Schedule("far", time.Hour, func() { fired <- struct{}{} })
	cancel()

	deadline := time.After(2 * time.Second)
	for sched.Schedule("after-stop", 0, func() {}) {
		select {
		case <-deadline:
			t.Fatal("expected Schedule to refuse jobs after stop")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if len(sched.Pending()) != 0 {
		t.Fatal("expected queued jobs dropped on stop")
	}
	select {
	case <-fired:
		t.Fatal("far job should never fire")
	default:
	}
}

func TestSchedulerRunsAgainAfterRestart(t *testing.T) {
	sched := retry.NewScheduler(logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	if sched.Schedule("stopped", 0, func() {}) {
		t.Fatal("expected Schedule to refuse jobs while stopped")
	}

	ctx, cancel = context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ran := make(chan struct{})
	deadline := time.After(2 * time.Second)
	for !sched.Schedule("restarted", 0, func() { close(ran) }) {
		select {
		case <-deadline:
			t.Fatal("expected Schedule to accept jobs after restart")
		case <-time.After(5 * time.Millisecond):
		}
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job scheduled after restart never ran")
	}
}

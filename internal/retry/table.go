package retry

import "sync"

// Decision is the outcome of recording a failed attempt.
type Decision int

const (
	// DecisionRetry means a retry should be scheduled.
	DecisionRetry Decision = iota
	// DecisionGiveUp means the attempt budget is spent and the record was cleared.
	DecisionGiveUp
)

type record struct {
	attempts int
	running  bool
	pending  bool
}

// Table tracks failed attempt counts per artifact path.
type Table struct {
	mu          sync.Mutex
	maxAttempts int
	records     map[string]*record
}

// NewTable returns a Table that gives up after maxAttempts failures.
func NewTable(maxAttempts int) *Table {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Table{maxAttempts: maxAttempts, records: make(map[string]*record)}
}

// Begin marks an attempt for path as running. It returns false when an attempt
// is already running or a retry is pending, in which case the caller drops
// the event. retry must be true when the caller is the scheduled retry itself.
func (t *Table) Begin(path string, retry bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[path]
	if !ok {
		if retry {
			return false
		}
		rec = &record{}
		t.records[path] = rec
	}
	if rec.running {
		return false
	}
	if rec.pending && !retry {
		return false
	}
	if !rec.pending && retry {
		return false
	}
	rec.running = true
	rec.pending = false
	return true
}

// Fail records a failed attempt for path and returns whether to retry along
// with the updated attempt count. Below the maximum the record moves to the
// retry-pending state; at the maximum the record is removed.
func (t *Table) Fail(path string) (Decision, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[path]
	if !ok {
		rec = &record{}
		t.records[path] = rec
	}
	rec.attempts++
	rec.running = false
	if rec.attempts < t.maxAttempts {
		rec.pending = true
		return DecisionRetry, rec.attempts
	}
	delete(t.records, path)
	return DecisionGiveUp, rec.attempts
}

// Clear removes the record for path. Used on success, on idempotent skips,
// and when the artifact has vanished.
func (t *Table) Clear(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, path)
}

// Reset drops every record. Used when the scheduler holding the pending
// retries has stopped.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.records)
}

// Attempts returns the failed attempt count recorded for path.
func (t *Table) Attempts(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[path]; ok {
		return rec.attempts
	}
	return 0
}

// Len returns the number of tracked artifacts.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// MaxAttempts returns the configured attempt budget.
func (t *Table) MaxAttempts() int {
	return t.maxAttempts
}

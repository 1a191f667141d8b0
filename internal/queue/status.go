package queue

import (
	"fmt"
	"strings"
)

// Status is a descriptor's lifecycle state, encoded as its file extension.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusSucceeded,
	StatusFailed,
}

var statusExtensions = map[Status]string{
	StatusPending:    ".txt",
	StatusInProgress: ".downloading",
	StatusSucceeded:  ".ok",
	StatusFailed:     ".fail",
}

type statusTransition struct {
	from Status
	to   Status
}

var allowedTransitions = map[statusTransition]struct{}{
	{from: StatusPending, to: StatusInProgress}:   {},
	{from: StatusInProgress, to: StatusSucceeded}: {},
	{from: StatusInProgress, to: StatusFailed}:    {},
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Extension returns the file extension that encodes s, including the dot.
func (s Status) Extension() string {
	return statusExtensions[s]
}

// IsTerminal reports whether no further transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// StatusFromExtension maps a file extension back to its status.
func StatusFromExtension(ext string) (Status, bool) {
	ext = strings.ToLower(ext)
	for status, candidate := range statusExtensions {
		if candidate == ext {
			return status, true
		}
	}
	return "", false
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	_, ok := allowedTransitions[statusTransition{from: from, to: to}]
	return ok
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

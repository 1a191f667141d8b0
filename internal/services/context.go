package services

import "context"

// scope carries the identifiers that tag log lines and journal entries for one
// unit of pipeline work. It is stored by value; each With* call stores a copy.
type scope struct {
	taskID    string
	stage     string
	requestID string
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, value string, set func(*scope)) context.Context {
	if value == "" {
		return ctx
	}
	s := scopeFrom(ctx)
	set(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithTaskID annotates ctx with the task descriptor identifier.
func WithTaskID(ctx context.Context, id string) context.Context {
	return withScope(ctx, id, func(s *scope) { s.taskID = id })
}

// WithStage annotates ctx with the pipeline stage (download, upload, notify).
func WithStage(ctx context.Context, stage string) context.Context {
	return withScope(ctx, stage, func(s *scope) { s.stage = stage })
}

// WithRequestID annotates ctx with a per-attempt correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withScope(ctx, id, func(s *scope) { s.requestID = id })
}

func TaskIDFromContext(ctx context.Context) (string, bool) {
	id := scopeFrom(ctx).taskID
	return id, id != ""
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := scopeFrom(ctx).stage
	return stage, stage != ""
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id := scopeFrom(ctx).requestID
	return id, id != ""
}

package logging

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	jobKey
)

// JobInfo identifies a single scheduled job execution in log output.
type JobInfo struct {
	Name  string
	RunID string
}

// WithRequestID returns a context whose log entries carry the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID extracts the request id, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithJob returns a context whose log entries carry the job name and run id.
func WithJob(ctx context.Context, name, runID string) context.Context {
	return context.WithValue(ctx, jobKey, JobInfo{Name: name, RunID: runID})
}

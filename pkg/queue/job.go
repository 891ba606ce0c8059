package queue

import "context"

// Job consumes messages of one type from the queue.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job subscribes to.
	Type() string

	// Handle processes one payload. A returned error triggers the
	// retry schedule.
	Handle(ctx context.Context, payload interface{}) error
}

package queue

import "context"

// Job consumes messages of one type. Implementations are registered with the
// queue before Start and must be safe for concurrent Handle calls when the
// worker count is above one.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job consumes.
	Type() string

	// Handle processes one payload. A returned error schedules a retry
	// until the attempt limit, then the message moves to the dead letter
	// list. Cancellation errors drop the message without retry.
	Handle(ctx context.Context, payload interface{}) error
}

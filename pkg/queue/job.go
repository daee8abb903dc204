package queue

import "context"

// Job consumes one message type from the queue. Implementations are
// registered on the consumer and matched by Type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job handles.
	Type() string

	// Handle processes one delivery. Returning an error requeues the
	// message until the retry limit is reached.
	Handle(ctx context.Context, payload interface{}) error
}

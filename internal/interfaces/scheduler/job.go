package scheduler

import "context"

// Job is a unit of work run by the worker pool.
type Job interface {
	Execute(ctx context.Context) error
	// Key identifies what the job touches. Jobs sharing a key run serially.
	Key() string
	Description() string
}

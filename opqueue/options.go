package opqueue

import (
	"github.com/rs/zerolog"

	"github.com/relaycore/opq"
)

// Option configures a Queue. Grounded on
// other_examples/mrz1836-atlas__engine.go's EngineOption pattern
// (functional options over a constructor taking required fields
// positionally and everything else via With* functions); see
// DESIGN.md.
type Option func(*Queue)

// WithMaxConcurrentTasks bounds how many Tasks may have their Body
// actually executing at once. Tasks beyond that count still admit,
// evaluate Conditions, and acquire exclusivity locks normally; they
// simply wait for a worker slot before Start runs their Body. The
// default is 4.
func WithMaxConcurrentTasks(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxConcurrent = n
		}
	}
}

// WithExclusivityRegistry gives every Task admitted through this Queue
// a shared ExclusivityRegistry, overriding opq.DefaultExclusivityRegistry.
func WithExclusivityRegistry(r *opq.ExclusivityRegistry) Option {
	return func(q *Queue) { q.registry = r }
}

// WithLogger gives the Queue a specific zerolog.Logger. AddTask hands
// the Queue's logger to every admitted Task via SetLogger, replacing
// any logger the Task had set for itself.
func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithName labels the Queue in its own log lines.
func WithName(name string) Option {
	return func(q *Queue) { q.name = name }
}

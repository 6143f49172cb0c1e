// Package opq implements a structured-concurrency operation primitive:
// an abstract unit of work (Task) carrying a seven-state lifecycle, a
// per-instance serial event queue, condition evaluation,
// mutual-exclusion coordination, cooperative cancellation, and an
// observer notification fabric.
//
// Task is the building block; it does not schedule itself. A host
// queue (see the opqueue package for a concrete, minimal one) drives a
// Task through willEnqueue, pendingQueueStart, and start once its
// dependencies are satisfied. User code supplies a Body implementation
// (the "execute" hook) and, optionally, dependencies, conditions, and
// observers before submitting the Task to a queue.
package opq

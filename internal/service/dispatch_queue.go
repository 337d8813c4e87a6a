package service

import (
	"quiz-forge/internal/domain"
)

// DispatchQueue is the handoff point between job creation and chunk
// dispatch. The lifecycle manager enqueues a job ID only after the job row
// has been committed, so orchestrator workers never race ahead of a row
// that is not yet visible to readers.
type DispatchQueue struct {
	ch chan string
}

// NewDispatchQueue creates a queue with the given buffer size.
func NewDispatchQueue(size int) *DispatchQueue {
	if size <= 0 {
		size = 64
	}
	return &DispatchQueue{ch: make(chan string, size)}
}

// Enqueue hands a committed job over for dispatch. A full queue is
// reported as an internal error; the job stays PENDING and the reaper
// eventually fails it if no capacity frees up in time.
func (q *DispatchQueue) Enqueue(jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	default:
		return domain.NewInternalError("dispatch queue is full", nil)
	}
}

// Chan exposes the consumer side of the queue.
func (q *DispatchQueue) Chan() <-chan string {
	return q.ch
}

// Close closes the queue. Enqueue must not be called afterwards.
func (q *DispatchQueue) Close() {
	close(q.ch)
}

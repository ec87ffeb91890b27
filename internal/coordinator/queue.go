// Package coordinator carries TaskMessages from background work to the
// presentation goroutine.
package coordinator

import (
	"sync"

	"github.com/spherical/magsplit/internal/domain"
)

// Queue is an unbounded FIFO of TaskMessages. Any number of goroutines may
// Post; one consumer drains. Neither side ever blocks on the other.
type Queue struct {
	mu    sync.Mutex
	items []domain.TaskMessage
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Post appends msg. It never blocks beyond the internal lock.
func (q *Queue) Post(msg domain.TaskMessage) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued message in arrival order. It
// returns nil when the queue is empty.
func (q *Queue) Drain() []domain.TaskMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Ready is signalled after Post. Signals coalesce, so a receiver should
// Drain everything once woken.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Status posts a status message for articleID.
func (q *Queue) Status(articleID int, format string, args ...interface{}) {
	q.Post(domain.StatusMessage(articleID, format, args...))
}

// Complete posts a completion message for articleID.
func (q *Queue) Complete(articleID int) {
	q.Post(domain.CompleteMessage(articleID))
}

// Error posts an error message for articleID.
func (q *Queue) Error(articleID int, text string) {
	q.Post(domain.ErrorMessage(articleID, text))
}

var _ domain.MessageSink = (*Queue)(nil)

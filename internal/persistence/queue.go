package persistence

import (
	"sync"

	"github.com/example/triplehelix/pkg/models"
)

// RetryQueue holds progress updates waiting for a durable write. It is
// an explicit service object constructed once per process and passed by
// reference; nothing global. A newer update for the same key replaces
// the queued one in place, so a stale retry never overtakes fresher
// state.
type RetryQueue struct {
	mu    sync.Mutex
	items []models.ProgressUpdate
}

// NewRetryQueue creates an empty queue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{}
}

// PushBack appends an update, or replaces a queued update with the same
// key in place.
func (q *RetryQueue) PushBack(update models.ProgressUpdate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.replace(update) {
		return
	}
	q.items = append(q.items, update)
}

// PushFront inserts an update at the head, or replaces a queued update
// with the same key in place. Recovery uses this for entries from the
// current session's mirror, which should drain first.
func (q *RetryQueue) PushFront(update models.ProgressUpdate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.replace(update) {
		return
	}
	q.items = append([]models.ProgressUpdate{update}, q.items...)
}

func (q *RetryQueue) replace(update models.ProgressUpdate) bool {
	key := update.Key()
	for i := range q.items {
		if q.items[i].Key() == key {
			q.items[i] = update
			return true
		}
	}
	return false
}

// PopFront removes and returns the head of the queue.
func (q *RetryQueue) PopFront() (models.ProgressUpdate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.ProgressUpdate{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// Len returns the number of queued updates.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

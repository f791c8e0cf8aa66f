package workerpool

import "sync"

// queue is the shared pending list. Every mutation completes under mu, so a
// task is owned either by the queue or by exactly one worker.
type queue[T any] struct {
	mu    sync.Mutex
	order Order
	items []*task[T]
}

func newQueue[T any](order Order) *queue[T] {
	return &queue[T]{order: order}
}

func (q *queue[T]) push(t *task[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
}

// pop removes the next task according to the configured order: the most
// recently pushed one for OrderLIFO, the oldest for OrderFIFO.
func (q *queue[T]) pop() (*task[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	var t *task[T]
	if q.order == OrderFIFO {
		t = q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
	} else {
		last := len(q.items) - 1
		t = q.items[last]
		q.items[last] = nil
		q.items = q.items[:last]
	}
	return t, true
}

// remove drops the task with the given id if it is still pending.
func (q *queue[T]) remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.items {
		if t.id == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// drain empties the queue and returns what was pending.
func (q *queue[T]) drain() []*task[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

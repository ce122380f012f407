package ipc

import (
	"container/list"
	"sync"
)

// Queue is a bounded single-direction queue of payloads.
// Send never blocks; a full queue rejects the payload.
type Queue struct {
	capacity int

	lock   sync.Mutex
	items  list.List
	notify chan struct{}
}

// NewQueue creates a Queue, capacity 0 means unbounded.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{capacity: capacity, notify: make(chan struct{}, 1)}
}

// Cap returns the capacity, 0 for unbounded.
func (q *Queue) Cap() int {
	return q.capacity
}

// Len returns the number of pending payloads.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.items.Len()
}

// Send enqueues a payload and returns false if the queue is full.
func (q *Queue) Send(p Payload) bool {
	q.lock.Lock()
	if q.capacity > 0 && q.items.Len() >= q.capacity {
		q.lock.Unlock()
		return false
	}
	q.items.PushBack(p)
	q.lock.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// ReceiveFIFO pops the oldest pending payload.
func (q *Queue) ReceiveFIFO() (Payload, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	elm := q.items.Front()
	if elm == nil {
		return nil, false
	}
	return q.items.Remove(elm).(Payload), true
}

// ReceiveLatest drains the queue and returns only the newest payload.
func (q *Queue) ReceiveLatest() (Payload, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	elm := q.items.Back()
	if elm == nil {
		return nil, false
	}
	q.items.Init()
	return elm.Value.(Payload), true
}

// Notify returns a channel signaled after Send enqueues.
// The signal is coalesced, a receiver should drain the queue on wake-up.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

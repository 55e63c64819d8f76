package framework

import (
	"sort"
	"sync"
)

// MessageSortingQueue delivers messages on C in the order of their 1-based counters,
// holding back any message that arrives before its predecessors. It is used where numbered
// messages are sent concurrently, such as event callbacks posted over HTTP, and the receiver
// must see them in the order they were numbered.
//
// Accept blocks while C is full, so the consumer must keep reading C.
type MessageSortingQueue struct {
	// C receives each message once all messages with lower counters have been delivered. It
	// is closed by Close.
	C           chan []byte
	lastCounter int
	deferred    []deferredMessage
	closed      bool
	lock        sync.Mutex
	closeOnce   sync.Once
}

type deferredMessage struct {
	counter int
	message []byte
}

// NewMessageSortingQueue creates a queue whose output channel has the given buffer size. The
// first message delivered is the one with counter 1.
func NewMessageSortingQueue(channelSize int) *MessageSortingQueue {
	return &MessageSortingQueue{C: make(chan []byte, channelSize)}
}

// Accept adds a message. Messages whose counter was already delivered are dropped, as is
// anything received after Close.
func (q *MessageSortingQueue) Accept(counter int, message []byte) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed || counter <= q.lastCounter {
		return
	}
	if counter > q.lastCounter+1 {
		q.deferred = append(q.deferred, deferredMessage{counter: counter, message: message})
		sort.Slice(q.deferred, func(i, j int) bool { return q.deferred[i].counter < q.deferred[j].counter })
		return
	}
	q.lastCounter = counter
	q.C <- message
	for len(q.deferred) > 0 {
		next := q.deferred[0]
		if next.counter != q.lastCounter+1 {
			break
		}
		q.deferred = q.deferred[1:]
		q.lastCounter++
		q.C <- next.message
	}
}

// Deferred returns the messages that are waiting for an earlier counter, in counter order.
func (q *MessageSortingQueue) Deferred() [][]byte {
	q.lock.Lock()
	ret := make([][]byte, 0, len(q.deferred))
	for _, d := range q.deferred {
		ret = append(ret, d.message)
	}
	q.lock.Unlock()
	return ret
}

// Close closes C. Deferred messages are never delivered and later calls to Accept do
// nothing. It is safe to call Close more than once.
func (q *MessageSortingQueue) Close() {
	q.closeOnce.Do(func() {
		q.lock.Lock()
		q.closed = true
		close(q.C)
		q.lock.Unlock()
	})
}

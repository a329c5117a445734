package runner

import (
	"sync"

	"github.com/emirpasic/gods/queues/priorityqueue"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

// pendingTest is a test discovered in one replay and waiting for its own.
type pendingTest struct {
	Description types.Description
	Type        types.TestType
}

// handle indexes the queue arena. Handles are issued in enqueue order, so
// they double as the FIFO tie-break between tests of equal depth.
type handle int

// pendingQueue orders pending tests deepest first. The heap only holds
// handles; the records live in the arena.
type pendingQueue struct {
	mu     sync.Mutex
	arena  []pendingTest
	queued map[string]struct{}
	pq     *priorityqueue.Queue
}

func newPendingQueue() *pendingQueue {
	q := &pendingQueue{
		queued: make(map[string]struct{}),
	}
	q.pq = priorityqueue.NewWith(q.compare)
	return q
}

// compare is called by the heap while q.mu is held.
func (q *pendingQueue) compare(a, b interface{}) int {
	ha, hb := a.(handle), b.(handle)
	da, db := q.arena[ha].Description.Depth(), q.arena[hb].Description.Depth()
	if da != db {
		return db - da
	}
	return int(ha) - int(hb)
}

// Push adds a test unless it has been queued before. It reports whether the
// test was added.
func (q *pendingQueue) Push(desc types.Description, typ types.TestType) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := desc.ID()
	if _, seen := q.queued[id]; seen {
		return false
	}
	q.queued[id] = struct{}{}
	h := handle(len(q.arena))
	q.arena = append(q.arena, pendingTest{Description: desc, Type: typ})
	q.pq.Enqueue(h)
	return true
}

// Pop removes the deepest pending test, oldest first among equal depths.
func (q *pendingQueue) Pop() (pendingTest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.pq.Dequeue()
	if !ok {
		return pendingTest{}, false
	}
	return q.arena[v.(handle)], true
}

// Len returns the number of tests still waiting.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Size()
}

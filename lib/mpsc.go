// Lock-free MPSC queue (Multiple Producers Single Consumer) carrying
// mailbox envelopes. Producers append with two atomic operations; the
// single consumer walks the queue and may take any entry in place, which
// is what selective receive needs: a matching envelope is removed out of
// order while the entries ahead of it keep their positions.

package lib

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/loom-services/loom/gen"
)

type QueueMPSC interface {
	// Push enqueues the envelope. Returns false if the queue limit has
	// been reached.
	Push(e *gen.Envelope) bool
	// Item returns the oldest pending item, or nil if the queue is empty.
	// Entries already consumed in place are swept off on the way.
	// Consumer only.
	Item() ItemMPSC
	// Len returns the number of pending envelopes.
	Len() int64
	// Size returns the queue limit. -1 means unlimited.
	Size() int64
}

type ItemMPSC interface {
	// Next returns the following item, or nil at the head of the queue.
	Next() ItemMPSC
	// Value returns the envelope, or nil if it was already taken.
	Value() *gen.Envelope
	// Take claims the envelope, leaving the item in the queue as an empty
	// node. Consumer only.
	Take() (*gen.Envelope, bool)
}

func NewQueueMPSC() QueueMPSC {
	emptyItem := &itemMPSC{}
	q := &queueMPSC{
		limit: math.MaxInt64,
		head:  emptyItem,
		tail:  emptyItem,
	}
	return q
}

// NewQueueLimitMPSC creates a queue refusing new envelopes beyond the
// given limit. Limit < 1 means unlimited.
func NewQueueLimitMPSC(limit int64) QueueMPSC {
	if limit < 1 {
		limit = math.MaxInt64
	}
	emptyItem := &itemMPSC{}
	q := &queueMPSC{
		limit: limit,
		head:  emptyItem,
		tail:  emptyItem,
	}
	return q
}

type queueMPSC struct {
	head   *itemMPSC
	tail   *itemMPSC
	length int64
	limit  int64
}

type itemMPSC struct {
	value  *gen.Envelope
	next   *itemMPSC
	length *int64
}

func (q *queueMPSC) Push(e *gen.Envelope) bool {
	if e == nil {
		return false
	}
	if atomic.LoadInt64(&q.length)+1 > q.limit {
		return false
	}
	i := &itemMPSC{
		value:  e,
		length: &q.length,
	}
	atomic.AddInt64(&q.length, 1)
	oldHead := (*itemMPSC)(atomic.SwapPointer((*unsafe.Pointer)(unsafe.Pointer(&q.head)), unsafe.Pointer(i)))
	atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(&oldHead.next)), unsafe.Pointer(i))
	return true
}

func (q *queueMPSC) Item() ItemMPSC {
	for {
		tail := q.tail // the consumer is the only writer of q.tail
		next := (*itemMPSC)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&tail.next))))
		if next == nil {
			return nil
		}
		if next.value == nil {
			// taken in place earlier. advance the tail so the node
			// can be collected.
			q.tail = next
			continue
		}
		return next
	}
}

func (q *queueMPSC) Len() int64 {
	return atomic.LoadInt64(&q.length)
}

func (q *queueMPSC) Size() int64 {
	if q.limit == math.MaxInt64 {
		return -1
	}
	return q.limit
}

//
// ItemMPSC interface implementation
//

func (i *itemMPSC) Next() ItemMPSC {
	next := (*itemMPSC)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&i.next))))
	if next == nil {
		return nil
	}
	return next
}

func (i *itemMPSC) Value() *gen.Envelope {
	return i.value
}

func (i *itemMPSC) Take() (*gen.Envelope, bool) {
	if i.value == nil {
		return nil, false
	}
	v := i.value
	i.value = nil
	atomic.AddInt64(i.length, -1)
	return v, true
}

package transaction

import (
	"sync"

	"github.com/redbco/redb-driver-go/internal/wire"
)

// outboundQueue accumulates requests, stream-continues, and cancels
// between dispatch ticks, so the sender half can drain them into one
// batch message per tick (spec §4.G "batches outbound requests").
// Enqueue order within each kind is preserved, satisfying the ordering
// guarantee of spec §5 ("outbound requests are sent in enqueue order").
type outboundQueue struct {
	mu        sync.Mutex
	requests  []wire.Request
	continues []wire.StreamContinue
	cancels   []wire.Cancel
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{}
}

func (q *outboundQueue) enqueueRequest(r wire.Request) {
	q.mu.Lock()
	q.requests = append(q.requests, r)
	q.mu.Unlock()
}

func (q *outboundQueue) enqueueContinue(c wire.StreamContinue) {
	q.mu.Lock()
	q.continues = append(q.continues, c)
	q.mu.Unlock()
}

func (q *outboundQueue) enqueueCancel(c wire.Cancel) {
	q.mu.Lock()
	q.cancels = append(q.cancels, c)
	q.mu.Unlock()
}

// drain empties the queue into a Batch, and reports whether there was
// anything to send.
func (q *outboundQueue) drain() (wire.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 && len(q.continues) == 0 && len(q.cancels) == 0 {
		return wire.Batch{}, false
	}

	b := wire.Batch{
		Requests:        q.requests,
		StreamContinues: q.continues,
		Cancels:         q.cancels,
	}
	q.requests = nil
	q.continues = nil
	q.cancels = nil
	return b, true
}

package transaction

import (
	"context"

	"github.com/redbco/redb-driver-go/internal/common"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// StreamIterator is the consumer-facing handle for one server-streamed
// sequence (spec §4.G, §5 "Cancellation semantics"). Closing it before
// reading to completion cancels the stream on the server and removes its
// correlation table entry; an iterator discarded without Close cancels
// nothing.
type StreamIterator struct {
	id     common.RequestID
	sink   *streamSink
	tx     *Transmitter
	closed bool
}

// Next blocks until the next part arrives, the stream completes, or ctx
// is cancelled. ok is false once the stream is exhausted; err is non-nil
// only on a genuine failure, not on ordinary exhaustion.
func (s *StreamIterator) Next(ctx context.Context) (payload any, ok bool, err error) {
	if s.closed {
		return nil, false, nil
	}

	select {
	case part, open := <-s.sink.parts:
		if !open {
			s.closed = true
			return nil, false, nil
		}
		if part.Err != nil {
			s.closed = true
			return nil, false, part.Err
		}
		if part.State == wire.Done {
			s.closed = true
			return part.Payload, part.Payload != nil, nil
		}
		s.tx.continueStream(s.id)
		return part.Payload, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-s.tx.closeSignal:
		return nil, false, driererr.New(driererr.KindTransactionIsClosed, "transaction is closed")
	}
}

// Close cancels the stream if it has not already run to completion,
// releasing the server-side cursor and the local correlation table
// entry (spec §4.G "Cancellation").
func (s *StreamIterator) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.tx.cancelStream(s.id)
	return nil
}

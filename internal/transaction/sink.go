package transaction

import "github.com/redbco/redb-driver-go/internal/wire"

// streamSink is the per-RequestID bounded queue a server-streamed
// sequence is pushed into (spec §4.G "stream_sinks"). Its buffer size is
// the prefetch window: the server may send that many parts ahead of the
// consumer pulling them, after which it waits for StreamContinue.
type streamSink struct {
	parts chan wire.ResponsePart
	done  chan struct{} // closed when the consumer drops the iterator
}

func newStreamSink(prefetch int) *streamSink {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &streamSink{
		parts: make(chan wire.ResponsePart, prefetch),
		done:  make(chan struct{}),
	}
}

// deliver pushes part to the sink. It reports false if the consumer has
// already dropped the iterator, signalling the caller to remove this
// sink from the correlation table (spec §4.G: "if the downstream
// consumer dropped, the send fails and the stream is abandoned").
func (s *streamSink) deliver(part wire.ResponsePart) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.parts <- part:
		return true
	case <-s.done:
		return false
	}
}

// closeWithError delivers a terminal error part and marks the sink done.
func (s *streamSink) closeWithError(err error) {
	select {
	case s.parts <- wire.ResponsePart{Err: err, State: wire.Done}:
	default:
	}
	s.markDone()
}

// markDone signals that no more parts will be accepted, used both when
// the consumer cancels and when the transmitter closes the sink after a
// Done part.
func (s *streamSink) markDone() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

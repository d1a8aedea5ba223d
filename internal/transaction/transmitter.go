// Package transaction implements the transaction transmitter of spec
// §4.G: one bidirectional stream per open transaction, multiplexing many
// concurrent unary request/response pairs and server-streamed sequences
// by RequestID. It is, per the spec's own design notes, the hardest
// subsystem in the driver — grounded on the teacher's message-passing
// mesh node (services/mesh/internal/mesh/node.go: a dedicated
// message-read loop plus a dedicated dispatch loop, coordinated over
// channels under a short-held mutex) generalized from peer-to-peer mesh
// messages to request/response and streamed-part correlation.
package transaction

import (
	"context"
	"sync"
	"time"

	"github.com/redbco/redb-driver-go/internal/common"
	"github.com/redbco/redb-driver-go/internal/config"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/driverlog"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// Transmitter owns one bidirectional stream for one transaction and
// multiplexes all operations over it.
type Transmitter struct {
	stream wire.Stream
	opts   config.Options
	logger *driverlog.Logger

	state *stateBox

	queue *outboundQueue
	wake  chan struct{}

	mu           sync.Mutex
	unaryWaiters map[common.RequestID]chan wire.Response
	streamSinks  map[common.RequestID]*streamSink
	openAckID    common.RequestID

	inFlightWG sync.WaitGroup

	closeSignal chan struct{}
	closeOnce   sync.Once
	closeErr    error

	runWG sync.WaitGroup
}

// Open starts the sender and receiver loops over stream and sends the
// open-transaction request, waiting for its acknowledgement. openReqID
// is the RequestID the caller used for the open request, so the receiver
// loop knows to treat its Response as the open acknowledgement rather
// than an unrecognized id (spec §4.G "On Response: ... if absent and it
// is the open-transaction acknowledgement, ignore").
func Open(ctx context.Context, stream wire.Stream, openReqID common.RequestID, openPayload any, opts config.Options, logger *driverlog.Logger) (*Transmitter, error) {
	if logger == nil {
		logger = driverlog.Noop()
	}
	opts = opts.WithDefaults()

	t := &Transmitter{
		stream:       stream,
		opts:         opts,
		logger:       logger,
		state:        newStateBox(),
		queue:        newOutboundQueue(),
		wake:         make(chan struct{}, 1),
		unaryWaiters: make(map[common.RequestID]chan wire.Response),
		streamSinks:  make(map[common.RequestID]*streamSink),
		openAckID:    openReqID,
		closeSignal:  make(chan struct{}),
	}

	ack := t.registerUnaryWaiter(openReqID)

	t.runWG.Add(2)
	go t.dispatchLoop()
	go t.receiveLoop()

	t.queue.enqueueRequest(wire.Request{ID: openReqID, Payload: openPayload})
	t.wakeDispatcher()

	select {
	case resp := <-ack:
		if resp.Err != nil {
			t.forceCloseOnOpenFailure()
			return nil, driererr.Wrap(driererr.KindUnexpectedResponse, resp.Err, "transaction open rejected")
		}
		t.state.forceTo(stateOpen)
		return t, nil
	case <-ctx.Done():
		t.forceCloseOnOpenFailure()
		return nil, ctx.Err()
	}
}

func (t *Transmitter) forceCloseOnOpenFailure() {
	_ = t.Close(false, driererr.New(driererr.KindConnectionFailed, "transaction failed to open"))
}

func (t *Transmitter) wakeDispatcher() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Transmitter) registerUnaryWaiter(id common.RequestID) chan wire.Response {
	ch := make(chan wire.Response, 1)
	t.mu.Lock()
	t.unaryWaiters[id] = ch
	t.mu.Unlock()
	return ch
}

// SendUnary enqueues req and returns its response (spec §4.G, P1:
// request-response correlation). It fails immediately with
// TransactionIsClosed/TransactionIsClosedWithErrors if the transaction
// is not Open.
func (t *Transmitter) SendUnary(ctx context.Context, payload any) (any, error) {
	if !t.state.isOpen() {
		return nil, t.closedError()
	}

	id := common.NewRequestID()
	waiter := t.registerUnaryWaiter(id)

	t.queue.enqueueRequest(wire.Request{ID: id, Payload: payload})
	t.wakeDispatcher()

	select {
	case resp := <-waiter:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Payload, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.unaryWaiters, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	case <-t.closeSignal:
		return nil, t.closedError()
	}
}

// OpenStream enqueues a streamed operation and returns an iterator over
// its parts (spec §4.G, P2: stream flow control).
func (t *Transmitter) OpenStream(ctx context.Context, payload any) (*StreamIterator, error) {
	if !t.state.isOpen() {
		return nil, t.closedError()
	}

	id := common.NewRequestID()
	sink := newStreamSink(t.opts.PrefetchWindow)

	t.mu.Lock()
	t.streamSinks[id] = sink
	t.mu.Unlock()

	t.queue.enqueueRequest(wire.Request{ID: id, Payload: payload})
	t.wakeDispatcher()

	return &StreamIterator{id: id, sink: sink, tx: t}, nil
}

func (t *Transmitter) closedError() error {
	t.mu.Lock()
	cause := t.closeErr
	t.mu.Unlock()
	if cause != nil {
		return driererr.Wrap(driererr.KindTransactionIsClosedWithErrors, cause, "transaction closed")
	}
	return driererr.New(driererr.KindTransactionIsClosed, "transaction is closed")
}

// dispatchLoop drains the outbound queue into one batch per tick (spec
// §4.G "Sender half"). It wakes on the fixed interval or when a caller
// enqueues new work.
func (t *Transmitter) dispatchLoop() {
	defer t.runWG.Done()

	ticker := time.NewTicker(t.opts.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closeSignal:
			return
		case <-ticker.C:
		case <-t.wake:
		}

		batch, ok := t.queue.drain()
		if !ok {
			continue
		}

		t.inFlightWG.Add(1)
		err := t.stream.Send(context.Background(), batch)
		t.inFlightWG.Done()

		if err != nil {
			t.poison(err)
			return
		}
	}
}

// receiveLoop reads inbound messages and dispatches them to the
// correlation tables (spec §4.G "Receiver half").
func (t *Transmitter) receiveLoop() {
	defer t.runWG.Done()

	for {
		inbound, err := t.stream.Recv(context.Background())
		if err != nil {
			t.poison(err)
			return
		}

		switch {
		case inbound.Response != nil:
			t.handleResponse(*inbound.Response)
		case inbound.ResponsePart != nil:
			t.handleResponsePart(*inbound.ResponsePart)
		}
	}
}

func (t *Transmitter) handleResponse(resp wire.Response) {
	t.mu.Lock()
	waiter, ok := t.unaryWaiters[resp.ID]
	if ok {
		delete(t.unaryWaiters, resp.ID)
	}
	isOpenAck := resp.ID == t.openAckID
	t.mu.Unlock()

	if ok {
		waiter <- resp
		return
	}
	if isOpenAck {
		return
	}
	t.logger.Warnf("unknown request id in response: %s", resp.ID)
}

func (t *Transmitter) handleResponsePart(part wire.ResponsePart) {
	t.mu.Lock()
	sink, ok := t.streamSinks[part.ID]
	if ok && part.State == wire.Done {
		delete(t.streamSinks, part.ID)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Warnf("unknown request id in response part: %s", part.ID)
		return
	}

	if !sink.deliver(part) {
		// consumer already dropped the iterator; make sure the
		// correlation table no longer holds a reference (spec §4.G:
		// "the map entry is removed on next error").
		t.mu.Lock()
		delete(t.streamSinks, part.ID)
		t.mu.Unlock()
		return
	}

	if part.State == wire.Done {
		sink.markDone()
	}
}

// cancelStream removes id's sink and enqueues a Cancel request, used
// when a StreamIterator is closed before observing Done (spec §4.G
// "Cancellation").
func (t *Transmitter) cancelStream(id common.RequestID) {
	t.mu.Lock()
	sink, ok := t.streamSinks[id]
	if ok {
		delete(t.streamSinks, id)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	sink.markDone()

	if t.state.isOpen() {
		t.queue.enqueueCancel(wire.Cancel{ID: id})
		t.wakeDispatcher()
	}
}

// continueStream enqueues a StreamContinue request for id, pulled by the
// consumer after it drains the last delivered part (spec §4.G flow
// control contract).
func (t *Transmitter) continueStream(id common.RequestID) {
	if !t.state.isOpen() {
		return
	}
	t.queue.enqueueContinue(wire.StreamContinue{ID: id})
	t.wakeDispatcher()
}

// poison marks the transaction closed due to a fatal stream error and
// runs the close protocol without flushing (spec §4.G "Close protocol",
// "else skip flushing").
func (t *Transmitter) poison(err error) {
	if !t.state.transition(stateOpen, stateClosing) && !t.state.transition(stateOpening, stateClosing) {
		return // already closing or closed
	}
	t.mu.Lock()
	t.closeErr = err
	t.mu.Unlock()
	t.runCloseProtocol(false)
}

// Close implements the explicit close/commit/rollback path (spec §4.G
// "Close protocol"). normal selects whether the outbound queue is
// flushed before the send half closes.
func (t *Transmitter) Close(normal bool, cause error) error {
	if !t.state.transition(stateOpen, stateClosing) && !t.state.transition(stateOpening, stateClosing) {
		return nil // idempotent: already closing or closed
	}
	if cause != nil {
		t.mu.Lock()
		t.closeErr = cause
		t.mu.Unlock()
	}
	t.runCloseProtocol(normal)
	return nil
}

func (t *Transmitter) runCloseProtocol(flush bool) {
	if flush {
		if batch, ok := t.queue.drain(); ok {
			t.inFlightWG.Add(1)
			_ = t.stream.Send(context.Background(), batch)
			t.inFlightWG.Done()
		}
	}

	// Spin until the dispatch loop's in-flight counter hits zero,
	// bounded by a deadline (spec §4.G step 3).
	drained := make(chan struct{})
	go func() {
		t.inFlightWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(t.opts.CloseDrainDeadline):
		t.logger.Warnf("close drain deadline exceeded")
	}

	_ = t.stream.CloseSend()

	t.mu.Lock()
	cause := t.closeErr
	waiters := t.unaryWaiters
	t.unaryWaiters = make(map[common.RequestID]chan wire.Response)
	sinks := t.streamSinks
	t.streamSinks = make(map[common.RequestID]*streamSink)
	t.mu.Unlock()

	finalErr := driererr.New(driererr.KindTransactionIsClosed, "transaction is closed")
	if cause != nil {
		finalErr = driererr.Wrap(driererr.KindTransactionIsClosedWithErrors, cause, "transaction closed due to a prior stream error")
	}

	for _, waiter := range waiters {
		select {
		case waiter <- wire.Response{Err: finalErr}:
		default:
		}
	}
	for _, sink := range sinks {
		sink.closeWithError(finalErr)
	}

	t.state.forceTo(stateClosed)
	t.closeOnce.Do(func() { close(t.closeSignal) })
}

// Done returns a channel closed exactly once the transmitter has fully
// closed, so callers (e.g. the owning Transaction) can wait for
// teardown without polling.
func (t *Transmitter) Done() <-chan struct{} {
	return t.closeSignal
}

// IsOpen reports whether the transmitter is accepting new operations.
func (t *Transmitter) IsOpen() bool {
	return t.state.isOpen()
}

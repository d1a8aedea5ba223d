package transaction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-driver-go/internal/common"
	"github.com/redbco/redb-driver-go/internal/config"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// fakeStream is an in-memory wire.Stream driven entirely by the test,
// grounded on the teacher's in-memory network.MessageChannel() test seam
// (services/mesh/internal/network).
type fakeStream struct {
	mu        sync.Mutex
	sent      []wire.Batch
	inbound   chan wire.Inbound
	closeSend bool

	// respond, if set, is invoked synchronously for every request in a
	// sent batch and its return value pushed onto inbound.
	respond func(req wire.Request) wire.Inbound
}

func newFakeStream() *fakeStream {
	return &fakeStream{inbound: make(chan wire.Inbound, 64)}
}

func (f *fakeStream) Send(ctx context.Context, b wire.Batch) error {
	f.mu.Lock()
	f.sent = append(f.sent, b)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		for _, req := range b.Requests {
			f.inbound <- respond(req)
		}
	}
	return nil
}

func (f *fakeStream) Recv(ctx context.Context) (wire.Inbound, error) {
	select {
	case in, ok := <-f.inbound:
		if !ok {
			return wire.Inbound{}, context.Canceled
		}
		return in, nil
	case <-ctx.Done():
		return wire.Inbound{}, ctx.Err()
	}
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	f.closeSend = true
	f.mu.Unlock()
	return nil
}

func fastOpts() config.Options {
	o := config.Defaults()
	o.BatchInterval = time.Millisecond
	o.CloseDrainDeadline = 200 * time.Millisecond
	o.PrefetchWindow = 4
	return o
}

func openTestTransmitter(t *testing.T, respond func(req wire.Request) wire.Inbound) (*Transmitter, *fakeStream) {
	t.Helper()
	stream := newFakeStream()
	stream.respond = respond

	openID := common.NewRequestID()
	// echo the open ack immediately, bypassing the dispatch loop so Open
	// doesn't deadlock waiting on its own not-yet-sent request.
	go func() {
		stream.inbound <- wire.Inbound{Response: &wire.Response{ID: openID}}
	}()

	tx, err := Open(context.Background(), stream, openID, wire.TransactionOpenReq{}, fastOpts(), nil)
	require.NoError(t, err)
	return tx, stream
}

func TestSendUnary_CorrelatesResponseByRequestID(t *testing.T) {
	tx, _ := openTestTransmitter(t, func(req wire.Request) wire.Inbound {
		return wire.Inbound{Response: &wire.Response{ID: req.ID, Payload: "pong"}}
	})
	defer tx.Close(true, nil)

	payload, err := tx.SendUnary(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", payload)
}

func TestSendUnary_ConcurrentRequestsEachGetTheirOwnReply(t *testing.T) {
	tx, _ := openTestTransmitter(t, func(req wire.Request) wire.Inbound {
		return wire.Inbound{Response: &wire.Response{ID: req.ID, Payload: req.Payload}}
	})
	defer tx.Close(true, nil)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			payload, err := tx.SendUnary(context.Background(), i)
			assert.NoError(t, err)
			assert.Equal(t, i, payload)
		}()
	}
	wg.Wait()
}

func TestOpenStream_DeliversPartsInOrderThenCompletes(t *testing.T) {
	tx, stream := openTestTransmitter(t, func(req wire.Request) wire.Inbound {
		return wire.Inbound{ResponsePart: &wire.ResponsePart{ID: req.ID, Payload: 1, State: wire.Continue}}
	})
	defer tx.Close(true, nil)

	it, err := tx.OpenStream(context.Background(), "match $x;")
	require.NoError(t, err)

	payload, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, payload)

	stream.inbound <- wire.Inbound{ResponsePart: &wire.ResponsePart{ID: it.id, Payload: 2, State: wire.Continue}}
	stream.inbound <- wire.Inbound{ResponsePart: &wire.ResponsePart{ID: it.id, Payload: 3, State: wire.Done}}

	payload, ok, err = it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, payload)

	payload, ok, err = it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, payload)

	_, ok, err = it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenStream_CancelOnCloseRemovesSink(t *testing.T) {
	tx, _ := openTestTransmitter(t, nil)
	defer tx.Close(true, nil)

	it, err := tx.OpenStream(context.Background(), "match $x;")
	require.NoError(t, err)

	require.NoError(t, it.Close())

	tx.mu.Lock()
	_, stillTracked := tx.streamSinks[it.id]
	tx.mu.Unlock()
	assert.False(t, stillTracked)
}

func TestClose_DeliversTransactionIsClosedToPendingWaiters(t *testing.T) {
	tx, _ := openTestTransmitter(t, nil) // no responder: the unary call never gets a reply

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	go func() {
		defer wg.Done()
		_, gotErr = tx.SendUnary(context.Background(), "ping")
	}()

	time.Sleep(10 * time.Millisecond) // let SendUnary register its waiter
	require.NoError(t, tx.Close(true, nil))
	wg.Wait()

	require.Error(t, gotErr)
	assert.True(t, driererr.Is(gotErr, driererr.KindTransactionIsClosed))
}

func TestSendUnary_FailsFastOnceClosed(t *testing.T) {
	tx, _ := openTestTransmitter(t, func(req wire.Request) wire.Inbound {
		return wire.Inbound{Response: &wire.Response{ID: req.ID}}
	})
	require.NoError(t, tx.Close(true, nil))

	_, err := tx.SendUnary(context.Background(), "ping")
	assert.Error(t, err)
}

func TestClose_IsIdempotent(t *testing.T) {
	tx, _ := openTestTransmitter(t, nil)
	assert.NoError(t, tx.Close(true, nil))
	assert.NoError(t, tx.Close(true, nil))
}

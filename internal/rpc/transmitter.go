package rpc

import (
	"context"
	"sync"

	drivercreds "github.com/redbco/redb-driver-go/credentials"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/executor"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// TokenRenewer issues a dedicated token-request against the channel's
// replica and returns the freshly issued token. It is a function, not a
// method on Channel, so tests can substitute a fake without a real
// server.
type TokenRenewer func(ctx context.Context, conn any) (string, error)

// Transmitter wraps one Channel and implements the unary request/response
// cycle of spec §4.F, including single-flight token renewal on
// Unauthenticated[token-invalid].
type Transmitter struct {
	channel  *Channel
	executor *executor.Executor
	renew    TokenRenewer

	renewMu      sync.Mutex
	renewing     bool
	renewDone    chan struct{}
	renewErr     error
}

// NewTransmitter builds a Transmitter over channel, using executor for
// the blocking facade and renew to mint fresh tokens.
func NewTransmitter(channel *Channel, exec *executor.Executor, renew TokenRenewer) *Transmitter {
	return &Transmitter{channel: channel, executor: exec, renew: renew}
}

// Request performs one unary request/response cycle (spec §4.F):
//  1. fail fast if the executor is closed
//  2. dispatch and await the reply
//  3. on Unauthenticated[token-invalid], renew once and retry
//  4. surface any other error unchanged
func (t *Transmitter) Request(ctx context.Context, req wire.Request) (wire.Response, error) {
	if !t.executor.IsOpen() {
		return wire.Response{}, driererr.New(driererr.KindConnectionIsClosed, "connection is closed")
	}

	resp, err := t.channel.doUnary(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !driererr.Is(err, driererr.KindClusterTokenCredentialInvalid) {
		return wire.Response{}, err
	}

	if renewErr := t.renewToken(ctx); renewErr != nil {
		return wire.Response{}, renewErr
	}
	return t.channel.doUnary(ctx, req)
}

// RequestBlocking wraps Request through the executor's RunBlocking,
// parking the calling goroutine on a bounded channel (spec §4.F).
func (t *Transmitter) RequestBlocking(ctx context.Context, req wire.Request) (wire.Response, error) {
	return executor.RunBlocking(ctx, t.executor, func() (wire.Response, error) {
		return t.Request(ctx, req)
	})
}

// renewToken resets the token, issues a dedicated renewal request, and
// installs the result — but only one renewal is ever in flight at a
// time (spec §4.F "single-flight policy"). Concurrent callers that find
// a renewal already running wait for it to finish and share its result
// rather than triggering a second round-trip.
func (t *Transmitter) renewToken(ctx context.Context) error {
	t.renewMu.Lock()
	if t.renewing {
		done := t.renewDone
		t.renewMu.Unlock()
		select {
		case <-done:
			t.renewMu.Lock()
			err := t.renewErr
			t.renewMu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.renewing = true
	t.renewDone = make(chan struct{})
	t.renewMu.Unlock()

	t.channel.creds.ResetToken()
	token, err := t.doRenew(ctx)

	t.renewMu.Lock()
	if err == nil {
		t.channel.creds.SetToken(token)
	}
	t.renewErr = err
	t.renewing = false
	close(t.renewDone)
	t.renewMu.Unlock()

	return err
}

func (t *Transmitter) doRenew(ctx context.Context) (string, error) {
	if t.renew == nil {
		return "", driererr.New(driererr.KindClusterTokenCredentialInvalid, "no token renewer configured")
	}
	token, err := t.renew(ctx, t.channel.Conn())
	if err != nil {
		return "", driererr.Wrap(driererr.KindClusterTokenCredentialInvalid, err, "token renewal failed")
	}
	return token, nil
}

// CallCredentials exposes the channel's call credentials.
func (t *Transmitter) CallCredentials() *drivercreds.CallCredentials {
	return t.channel.creds
}

// Channel exposes the underlying channel.
func (t *Transmitter) Channel() *Channel {
	return t.channel
}

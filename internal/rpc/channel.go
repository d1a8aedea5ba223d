// Package rpc implements the driver's RPC channel (spec §4.D) and unary
// request transmitter (spec §4.F): one logical wire connection to one
// replica, with call-credential injection, token renewal, and status
// translation into the driver's error taxonomy.
package rpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	drivercreds "github.com/redbco/redb-driver-go/credentials"
	"github.com/redbco/redb-driver-go/internal/config"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/driverlog"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// Invoker performs one unary call over an already-dialed connection. The
// concrete implementation normally wraps a generated gRPC client method;
// tests supply a fake. This mirrors the teacher's pkg/grpc.NewClient,
// which hands back a bare *grpc.ClientConn for callers to build typed
// stubs on top of — here the driver is that caller.
type Invoker func(ctx context.Context, conn *grpc.ClientConn, headers Headers, req wire.Request) (wire.Response, error)

// Headers is the {username, token-or-password} pair attached to every
// outgoing request (spec §6 "Credential headers").
type Headers struct {
	Username string
	Token    string
	Password string
	HasToken bool
}

// Channel is one logical wire connection to one replica address.
type Channel struct {
	addr    string
	conn    *grpc.ClientConn
	creds   *drivercreds.CallCredentials
	invoke  Invoker
	logger  *driverlog.Logger

	latencyMu  chanLatencyState
}

type chanLatencyState struct {
	// emaMillis is the exponentially-averaged round-trip latency,
	// updated on every ConnectionOpen (spec §4.G "Latency tracking").
	emaMillis float64
	set       bool
}

// Dial opens a Channel to addr under the given TLS mode, using opts for
// keepalive and dial timeout (spec §4.D). It does not perform the
// ConnectionOpen handshake or touch the latency estimate; core-mode open
// (internal/cluster.OpenCore) runs the handshake and records its RTT.
func Dial(ctx context.Context, addr string, tlsCfg drivercreds.DriverTlsConfig, creds *drivercreds.CallCredentials, invoke Invoker, opts config.Options, logger *driverlog.Logger) (*Channel, error) {
	if logger == nil {
		logger = driverlog.Noop()
	}
	opts = opts.WithDefaults()

	transportCreds, err := buildTransportCredentials(tlsCfg)
	if err != nil {
		return nil, err
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(transportCreds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepaliveTime,
			Timeout:             opts.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}

	dialCtx := ctx
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		dialOpts = append(dialOpts, grpc.WithBlock())
	}

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		return nil, driererr.Wrap(driererr.KindConnectionFailed, err, "failed to dial %s", addr)
	}

	ch := &Channel{
		addr:   addr,
		conn:   conn,
		creds:  creds,
		invoke: invoke,
		logger: logger,
	}

	logger.Debugf("dialed channel to %s", addr)
	return ch, nil
}

func buildTransportCredentials(tlsCfg drivercreds.DriverTlsConfig) (credentials.TransportCredentials, error) {
	if !tlsCfg.IsEnabled() {
		return insecure.NewCredentials(), nil
	}
	if err := tlsCfg.Validate(); err != nil {
		return nil, err
	}
	if !tlsCfg.HasRootCAPath() {
		return credentials.NewTLS(&tls.Config{}), nil
	}

	pemBytes, err := os.ReadFile(tlsCfg.RootCAPath())
	if err != nil {
		return nil, driererr.Wrap(driererr.KindTlsConfigInvalid, err, "failed to read root CA file %q", tlsCfg.RootCAPath())
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, driererr.New(driererr.KindTlsConfigInvalid, "root CA file %q is not valid PEM", tlsCfg.RootCAPath())
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Addr returns the address this channel is dialed to.
func (c *Channel) Addr() string {
	return c.addr
}

// Conn exposes the underlying gRPC connection for callers (e.g. the
// transaction transmitter) that need to open a stream directly.
func (c *Channel) Conn() *grpc.ClientConn {
	return c.conn
}

// RecordLatency folds a freshly observed round-trip time into the
// channel's exponentially-averaged estimate (spec §4.G). alpha of 0.2
// mirrors common EWMA smoothing choices for RTT tracking in the pack's
// networking code.
func (c *Channel) RecordLatency(observed time.Duration) {
	millis := float64(observed.Milliseconds())
	const alpha = 0.2
	if !c.latencyMu.set {
		c.latencyMu.emaMillis = millis
		c.latencyMu.set = true
		return
	}
	c.latencyMu.emaMillis = alpha*millis + (1-alpha)*c.latencyMu.emaMillis
}

// LatencyMillis returns the current latency estimate, 0 if none yet.
func (c *Channel) LatencyMillis() int64 {
	return int64(c.latencyMu.emaMillis)
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// doUnary attaches credential headers and performs one unary call,
// translating transport status into the driver's error taxonomy (spec
// §4.D): Unauthenticated[token-invalid] is NOT retried here — that is the
// Transmitter's job (spec §4.F) — but Unavailable and replica-not-primary
// are translated unconditionally since every caller needs that mapping.
func (c *Channel) doUnary(ctx context.Context, req wire.Request) (wire.Response, error) {
	username, token, password, hasToken := c.creds.Headers()
	headers := Headers{Username: username, Token: token, Password: password, HasToken: hasToken}

	start := time.Now()
	resp, err := c.invoke(ctx, c.conn, headers, req)
	if err == nil {
		c.RecordLatency(time.Since(start))
		return resp, nil
	}

	return wire.Response{}, c.translateStatus(err)
}

// StatusKind classifies a raw transport error the way spec §4.D requires
// before the rest of the driver sees it.
type StatusKind int

const (
	StatusOther StatusKind = iota
	StatusTokenInvalid
	StatusUnavailable
	StatusReplicaNotPrimary
)

// ClassifyStatus inspects a transport-level error and reports which of
// the three recoverable conditions spec §4.D names it is, if any.
// translateStatus uses it to choose the driver error kind. No other
// package calls it: internal/cluster does not reroute on
// replica-not-primary, so that condition reaches the caller as
// ClusterReplicaNotPrimary.
func ClassifyStatus(err error) StatusKind {
	st, ok := status.FromError(err)
	if !ok {
		return StatusOther
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return StatusTokenInvalid
	case codes.FailedPrecondition:
		return StatusReplicaNotPrimary
	case codes.Unavailable:
		return StatusUnavailable
	default:
		return StatusOther
	}
}

func (c *Channel) translateStatus(err error) error {
	switch ClassifyStatus(err) {
	case StatusUnavailable:
		return driererr.Wrap(driererr.KindConnectionFailed, err, "replica %s unavailable", c.addr)
	case StatusReplicaNotPrimary:
		return driererr.Wrap(driererr.KindClusterReplicaNotPrimary, err, "replica %s is not primary", c.addr)
	case StatusTokenInvalid:
		return driererr.Wrap(driererr.KindClusterTokenCredentialInvalid, err, "token rejected by %s", c.addr)
	default:
		return driererr.Wrap(driererr.KindUnexpectedResponse, err, "unexpected response from %s", c.addr)
	}
}

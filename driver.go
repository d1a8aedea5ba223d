// Package redbdriver is the public facade of spec §4.J: opening a
// connection to a core or cluster deployment, the database and user
// managers, and the entry point for opening transactions. It is the only
// package most callers import directly; everything under internal/
// exists to implement it.
//
// The concrete wire codec and generated RPC stubs are explicitly out of
// scope (spec §1): callers supply them via Option, the same seam
// internal/rpc.Invoker and internal/cluster.HandshakeFn already expose
// for testing.
package redbdriver

import (
	"context"
	"sync"

	"github.com/redbco/redb-driver-go/address"
	"github.com/redbco/redb-driver-go/credentials"
	"github.com/redbco/redb-driver-go/internal/cluster"
	"github.com/redbco/redb-driver-go/internal/common"
	"github.com/redbco/redb-driver-go/internal/config"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/driverlog"
	"github.com/redbco/redb-driver-go/internal/executor"
	"github.com/redbco/redb-driver-go/internal/rpc"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// Driver is an open connection to a core or cluster deployment (spec §3
// "Connection").
type Driver struct {
	conn     *cluster.Connection
	creds    *credentials.CallCredentials
	opts     config.Options
	logger   *driverlog.Logger
	executor *executor.Executor

	invoke       rpc.Invoker
	streamDialer StreamDialer
	tokenRenewer rpc.TokenRenewer

	txMu         sync.Mutex
	transactions map[*Transaction]struct{}

	databases *DatabaseManager
	users     *UserManager
}

// StreamDialer opens the bidirectional stream backing one transaction
// over an already-open channel. Like rpc.Invoker, it is the seam a real
// generated gRPC client plugs into; tests supply an in-memory fake.
type StreamDialer func(ctx context.Context, ch *rpc.Channel) (wire.Stream, error)

type openConfig struct {
	tls          credentials.DriverTlsConfig
	creds        *credentials.Credentials
	options      config.Options
	logger       *driverlog.Logger
	invoke       rpc.Invoker
	handshake    cluster.HandshakeFn
	fetchServers cluster.ServerListFetcher
	streamDialer StreamDialer
	tokenRenewer rpc.TokenRenewer
}

// Option configures Open/OpenCluster/OpenClusterTranslated.
type Option func(*openConfig)

// WithCredentials sets the username/password presented at handshake.
func WithCredentials(creds credentials.Credentials) Option {
	return func(c *openConfig) { c.creds = &creds }
}

// WithTLS sets the transport TLS mode (spec §4.B).
func WithTLS(tls credentials.DriverTlsConfig) Option {
	return func(c *openConfig) { c.tls = tls }
}

// WithOptions overrides dial-time knobs (keepalive, batching, prefetch).
func WithOptions(opts config.Options) Option {
	return func(c *openConfig) { c.options = opts }
}

// WithLogger installs a non-default logger.
func WithLogger(logger *driverlog.Logger) Option {
	return func(c *openConfig) { c.logger = logger }
}

// WithInvoker installs the unary RPC invoker, normally backed by a
// generated gRPC client method.
func WithInvoker(invoke rpc.Invoker) Option {
	return func(c *openConfig) { c.invoke = invoke }
}

// WithHandshake installs the core-mode ConnectionOpen handshake
// implementation.
func WithHandshake(h cluster.HandshakeFn) Option {
	return func(c *openConfig) { c.handshake = h }
}

// WithServerListFetcher installs the ServersAll implementation used both
// at open time and whenever the replica registry is refreshed.
func WithServerListFetcher(f cluster.ServerListFetcher) Option {
	return func(c *openConfig) { c.fetchServers = f }
}

// WithStreamDialer installs the transaction-stream opener.
func WithStreamDialer(d StreamDialer) Option {
	return func(c *openConfig) { c.streamDialer = d }
}

// WithTokenRenewer installs the dedicated token-renewal request.
func WithTokenRenewer(r rpc.TokenRenewer) Option {
	return func(c *openConfig) { c.tokenRenewer = r }
}

func resolveOpenConfig(opts []Option) openConfig {
	c := openConfig{
		tls:     credentials.Disabled(),
		creds:   nil,
		options: config.Defaults(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.creds == nil {
		anon := credentials.New("", "")
		c.creds = &anon
	}
	return c
}

func (c openConfig) callCredentials() *credentials.CallCredentials {
	return credentials.NewCallCredentials(*c.creds)
}

func (c openConfig) dialer(callCreds *credentials.CallCredentials) cluster.Dialer {
	return func(ctx context.Context, addr string) (*rpc.Channel, error) {
		return rpc.Dial(ctx, addr, c.tls, callCreds, c.invoke, c.options, c.logger)
	}
}

// Open opens a core-mode (single-address, untranslated) connection (spec
// §4.H "Open (core mode, single address)").
func Open(ctx context.Context, addr string, opts ...Option) (*Driver, error) {
	c := resolveOpenConfig(opts)
	callCreds := c.callCredentials()

	conn, err := cluster.OpenCore(ctx, addr, c.options, callCreds, c.dialer(callCreds), c.handshake, c.fetchServers, c.logger)
	if err != nil {
		return nil, err
	}
	return newDriver(conn, callCreds, c), nil
}

// OpenCluster opens a cluster-mode connection from a list of public
// addresses with identity translation (spec §4.H "Open (cluster mode,
// translated)").
func OpenCluster(ctx context.Context, addrs []string, opts ...Option) (*Driver, error) {
	parsed, err := address.FromList(addrs)
	if err != nil {
		return nil, err
	}
	return openClusterAddresses(ctx, parsed, opts)
}

// OpenClusterTranslated opens a cluster-mode connection from an explicit
// public-to-private address translation map.
func OpenClusterTranslated(ctx context.Context, translation map[string]string, opts ...Option) (*Driver, error) {
	parsed, err := address.FromTranslation(translation)
	if err != nil {
		return nil, err
	}
	return openClusterAddresses(ctx, parsed, opts)
}

func openClusterAddresses(ctx context.Context, addrs address.Addresses, opts []Option) (*Driver, error) {
	c := resolveOpenConfig(opts)
	callCreds := c.callCredentials()

	conn, err := cluster.OpenCluster(ctx, addrs, c.options, callCreds, c.dialer(callCreds), c.fetchServers, c.logger)
	if err != nil {
		return nil, err
	}
	return newDriver(conn, callCreds, c), nil
}

func newDriver(conn *cluster.Connection, callCreds *credentials.CallCredentials, c openConfig) *Driver {
	d := &Driver{
		conn:         conn,
		creds:        callCreds,
		opts:         c.options,
		logger:       c.logger,
		executor:     executor.New(),
		invoke:       c.invoke,
		streamDialer: c.streamDialer,
		tokenRenewer: c.tokenRenewer,
		transactions: make(map[*Transaction]struct{}),
	}
	d.databases = &DatabaseManager{d: d}
	d.users = &UserManager{d: d}
	return d
}

// IsOpen reports whether the connection has not been force-closed.
func (d *Driver) IsOpen() bool {
	return d.conn.IsOpen()
}

// ForceClose closes every open transaction and every channel (spec §4.H
// "Close": "Force-closing the connection must close every channel and
// every transaction").
func (d *Driver) ForceClose() error {
	d.closeAllTransactions()
	d.executor.ForceClose()
	return d.conn.ForceClose()
}

// trackTransaction registers t so ForceClose can reach it.
func (d *Driver) trackTransaction(t *Transaction) {
	d.txMu.Lock()
	d.transactions[t] = struct{}{}
	d.txMu.Unlock()
}

// untrackTransaction removes t once it has closed itself normally
// (commit, rollback, or explicit Close).
func (d *Driver) untrackTransaction(t *Transaction) {
	d.txMu.Lock()
	delete(d.transactions, t)
	d.txMu.Unlock()
}

// closeAllTransactions force-closes every transaction still open at the
// time the connection itself is force-closed.
func (d *Driver) closeAllTransactions() {
	d.txMu.Lock()
	open := make([]*Transaction, 0, len(d.transactions))
	for t := range d.transactions {
		open = append(open, t)
	}
	d.transactions = make(map[*Transaction]struct{})
	d.txMu.Unlock()

	for _, t := range open {
		_ = t.tx.Close(false, driererr.New(driererr.KindConnectionIsClosed, "connection force-closed"))
	}
}

// ServerVersion returns the distribution/version pair observed at
// core-mode handshake (spec §4.J "server_version").
func (d *Driver) ServerVersion() wire.ConnectionOpenRes {
	return d.conn.ServerVersion()
}

// Replicas returns the current replica registry snapshot (spec §4.J
// "replicas").
func (d *Driver) Replicas() []cluster.Replica {
	return d.conn.Replicas()
}

// PrimaryReplica returns the current primary, if known (spec §4.J
// "primary_replica").
func (d *Driver) PrimaryReplica() (cluster.Replica, bool) {
	return d.conn.Primary()
}

// Databases returns the database manager (spec §4.J "database manager").
func (d *Driver) Databases() *DatabaseManager {
	return d.databases
}

// Users returns the user manager (spec §4.J "user manager").
func (d *Driver) Users() *UserManager {
	return d.users
}

func (d *Driver) unaryTransmitter(ch *rpc.Channel) *rpc.Transmitter {
	return rpc.NewTransmitter(ch, d.executor, d.tokenRenewer)
}

// route picks a channel under the given consistency level and performs
// one unary request/response against it (spec §4.J operations that are
// not transaction-scoped: databases/users/servers).
func (d *Driver) route(ctx context.Context, level cluster.ConsistencyLevel, payload any) (any, error) {
	ch, err := d.conn.Route(ctx, level)
	if err != nil {
		return nil, err
	}

	resp, err := d.unaryTransmitter(ch).Request(ctx, wire.Request{ID: common.NewRequestID(), Payload: payload})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

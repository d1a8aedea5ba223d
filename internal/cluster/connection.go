package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redbco/redb-driver-go/address"
	drivercreds "github.com/redbco/redb-driver-go/credentials"
	"github.com/redbco/redb-driver-go/internal/config"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/driverlog"
	"github.com/redbco/redb-driver-go/internal/rpc"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// ConsistencyLevel selects how an operation is routed across replicas
// (spec §4.H "Routing").
type ConsistencyLevel struct {
	kind    consistencyKind
	replica address.Address
}

type consistencyKind int

const (
	consistencyStrong consistencyKind = iota
	consistencyEventual
	consistencyReplicaDependent
)

// Strong routes to the current primary, discovering it if necessary.
func Strong() ConsistencyLevel { return ConsistencyLevel{kind: consistencyStrong} }

// Eventual round-robins over all known replicas.
func Eventual() ConsistencyLevel { return ConsistencyLevel{kind: consistencyEventual} }

// ReplicaDependent pins routing to one specific replica address.
func ReplicaDependent(addr address.Address) ConsistencyLevel {
	return ConsistencyLevel{kind: consistencyReplicaDependent, replica: addr}
}

// Dialer opens one rpc.Channel to addr. It is a function, not a method,
// so Connection can be built and tested without a real gRPC target.
type Dialer func(ctx context.Context, addr string) (*rpc.Channel, error)

// ServerListFetcher issues the ServersAll request against an
// already-dialed channel, used both at open time and whenever the
// registry is refreshed on demand (spec §4.H).
type ServerListFetcher func(ctx context.Context, ch *rpc.Channel) (wire.ServerListResponse, error)

// HandshakeFn issues the ConnectionOpen handshake against a freshly
// dialed channel and returns the server's reply alongside the measured
// round trip (spec §4.H core-mode open).
type HandshakeFn func(ctx context.Context, ch *rpc.Channel) (wire.ConnectionOpenRes, time.Duration, error)

// Connection is the cluster-wide connection of spec §4.H: one channel
// per replica, a shared replica registry, and round-robin state for
// Eventual routing.
type Connection struct {
	addrs  address.Addresses
	opts   config.Options
	logger *driverlog.Logger
	creds  *drivercreds.CallCredentials

	dial         Dialer
	fetchServers ServerListFetcher

	mu            sync.RWMutex
	channels      map[string]*rpc.Channel // keyed by public address authority
	registry      *Registry
	rrIndex       int
	serverVersion wire.ConnectionOpenRes

	closed bool
}

// OpenCore implements spec §4.H's single-address core-mode open: dial,
// handshake, then ServersAll must name exactly one address, which
// becomes the sole replica.
func OpenCore(ctx context.Context, addr string, opts config.Options, creds *drivercreds.CallCredentials,
	dial Dialer, handshake HandshakeFn, fetchServers ServerListFetcher, logger *driverlog.Logger) (*Connection, error) {

	addrs, err := address.FromSingle(addr)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		addrs: addrs, opts: opts.WithDefaults(), logger: orNoop(logger), creds: creds,
		dial: dial, fetchServers: fetchServers,
		channels: make(map[string]*rpc.Channel),
	}

	ch, err := conn.dialOne(ctx, addrs.IterPublicAddresses()[0].String())
	if err != nil {
		return nil, err
	}

	res, rtt, err := handshake(ctx, ch)
	if err != nil {
		ch.Close()
		return nil, driererr.Wrap(driererr.KindConnectionFailed, err, "connection-open handshake failed")
	}
	ch.RecordLatency(rtt)
	conn.serverVersion = res

	listResp, err := fetchServers(ctx, ch)
	if err != nil {
		ch.Close()
		return nil, driererr.Wrap(driererr.KindUnexpectedResponse, err, "ServersAll failed")
	}
	if len(listResp.Replicas) != 1 {
		ch.Close()
		return nil, driererr.New(driererr.KindUnexpectedResponse,
			"core-mode ServersAll must name exactly one replica, got %d", len(listResp.Replicas))
	}

	reg, err := NewRegistry(listResp, addrs, "grpc")
	if err != nil {
		ch.Close()
		return nil, err
	}

	conn.registry = reg
	conn.channels[addrs.IterPublicAddresses()[0].Authority] = ch
	return conn, nil
}

// OpenCluster implements spec §4.H's translated cluster-mode open: for
// each public address, dial and fetch its membership view; the union of
// advertised private addresses must equal the translation's private set,
// then a channel is opened to every address in parallel, succeeding iff
// at least one validates.
func OpenCluster(ctx context.Context, addrs address.Addresses, opts config.Options, creds *drivercreds.CallCredentials,
	dial Dialer, fetchServers ServerListFetcher, logger *driverlog.Logger) (*Connection, error) {

	opts = opts.WithDefaults()
	conn := &Connection{
		addrs: addrs, opts: opts, logger: orNoop(logger), creds: creds,
		dial: dial, fetchServers: fetchServers,
		channels: make(map[string]*rpc.Channel),
	}

	publics := addrs.IterPublicAddresses()

	type probeResult struct {
		addr address.Address
		ch   *rpc.Channel
		resp wire.ServerListResponse
		err  error
	}
	results := make([]probeResult, len(publics))

	g, gctx := errgroup.WithContext(ctx)
	for i, pub := range publics {
		i, pub := i, pub
		g.Go(func() error {
			ch, err := conn.dialOne(gctx, pub.String())
			if err != nil {
				results[i] = probeResult{addr: pub, err: err}
				return nil // one failed dial does not abort the others
			}
			resp, err := fetchServers(gctx, ch)
			results[i] = probeResult{addr: pub, ch: ch, resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var fetchedPrivate []address.Address
	errs := make(map[string]error)
	validated := make(map[string]*rpc.Channel)

	for _, r := range results {
		if r.err != nil {
			errs[r.addr.String()] = r.err
			continue
		}
		for _, info := range r.resp.Replicas {
			priv, perr := address.Parse(info.PrivateAddress)
			if perr != nil {
				errs[r.addr.String()] = perr
				continue
			}
			fetchedPrivate = append(fetchedPrivate, priv)
		}
		validated[r.addr.Authority] = r.ch
	}

	if len(validated) == 0 {
		return nil, driererr.New(driererr.KindCloudAllNodesFailed, "every replica dial failed: %v", errs)
	}

	if err := addrs.ValidateAgainstServerView(fetchedPrivate); err != nil {
		for _, r := range results {
			if r.ch != nil {
				r.ch.Close()
			}
		}
		return nil, err
	}

	var lastGoodResp wire.ServerListResponse
	for _, r := range results {
		if r.err == nil {
			lastGoodResp = r.resp
		}
	}
	reg, err := NewRegistry(lastGoodResp, addrs, "grpc")
	if err != nil {
		for _, ch := range validated {
			ch.Close()
		}
		return nil, err
	}

	conn.registry = reg
	conn.channels = validated
	return conn, nil
}

func (c *Connection) dialOne(ctx context.Context, addr string) (*rpc.Channel, error) {
	return c.dial(ctx, addr)
}

func orNoop(l *driverlog.Logger) *driverlog.Logger {
	if l == nil {
		return driverlog.Noop()
	}
	return l
}

// Route selects the channel to use for an operation at the given
// consistency level (spec §4.H "Routing").
func (c *Connection) Route(ctx context.Context, level ConsistencyLevel) (*rpc.Channel, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, driererr.New(driererr.KindConnectionIsClosed, "connection is closed")
	}

	switch level.kind {
	case consistencyReplicaDependent:
		return c.routeToReplica(level.replica)
	case consistencyEventual:
		return c.routeRoundRobin()
	default:
		return c.routeStrong(ctx)
	}
}

func (c *Connection) routeToReplica(addr address.Address) (*rpc.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch, ok := c.channels[addr.Authority]
	if !ok {
		return nil, driererr.New(driererr.KindUnknownReplica, "no channel open for replica %s", addr)
	}
	return ch, nil
}

func (c *Connection) routeRoundRobin() (*rpc.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replicas := c.registry.All()
	if len(replicas) == 0 {
		return nil, driererr.New(driererr.KindServerConnectionFailed, "no replicas known")
	}
	r := replicas[c.rrIndex%len(replicas)]
	c.rrIndex++

	ch, ok := c.channels[r.PublicAddress.Authority]
	if !ok {
		return nil, driererr.New(driererr.KindUnknownReplica, "no channel open for replica %s", r.PublicAddress)
	}
	return ch, nil
}

func (c *Connection) routeStrong(ctx context.Context) (*rpc.Channel, error) {
	if primary, ok := c.registry.Primary(); ok {
		c.mu.RLock()
		ch, chOK := c.channels[primary.PublicAddress.Authority]
		c.mu.RUnlock()
		if chOK {
			return ch, nil
		}
	}

	if err := c.RefreshRegistry(ctx); err != nil {
		return nil, driererr.Wrap(driererr.KindServerConnectionFailed, err, "failed to discover primary")
	}

	primary, ok := c.registry.Primary()
	if !ok {
		return nil, driererr.New(driererr.KindServerConnectionFailed, "no primary known after refresh")
	}
	c.mu.RLock()
	ch, chOK := c.channels[primary.PublicAddress.Authority]
	c.mu.RUnlock()
	if !chOK {
		return nil, driererr.New(driererr.KindServerConnectionFailed, "no primary known after refresh")
	}
	return ch, nil
}

// RefreshRegistry re-fetches cluster membership from any one reachable
// channel and swaps it in (spec §4.H "refreshed on demand, not
// eagerly").
func (c *Connection) RefreshRegistry(ctx context.Context) error {
	c.mu.RLock()
	channels := make([]*rpc.Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	addrs := c.addrs
	c.mu.RUnlock()

	var lastErr error
	for _, ch := range channels {
		resp, err := c.fetchServers(ctx, ch)
		if err != nil {
			lastErr = err
			continue
		}
		fresh, err := NewRegistry(resp, addrs, "grpc")
		if err != nil {
			lastErr = err
			continue
		}
		c.mu.Lock()
		c.registry.Replace(fresh)
		c.mu.Unlock()
		return nil
	}
	return fmt.Errorf("no reachable replica answered ServersAll: %w", lastErr)
}

// Replicas returns the current replica registry snapshot.
func (c *Connection) Replicas() []Replica {
	return c.registry.All()
}

// Primary returns the current primary replica, if known.
func (c *Connection) Primary() (Replica, bool) {
	return c.registry.Primary()
}

// ServerVersion returns the handshake reply from core-mode open, or the
// zero value for cluster-mode connections, which perform no
// ConnectionOpen handshake.
func (c *Connection) ServerVersion() wire.ConnectionOpenRes {
	return c.serverVersion
}

// RegisterReplica issues a cluster-admin add-replica request. The actual
// RPC is delegated to admin, keeping this package free of any particular
// wire message shape beyond what ServersAll already requires.
func (c *Connection) RegisterReplica(ctx context.Context, id uint64, addr string, admin func(ctx context.Context, ch *rpc.Channel, id uint64, addr string) error) error {
	ch, err := c.routeStrong(ctx)
	if err != nil {
		return err
	}
	return admin(ctx, ch, id, addr)
}

// DeregisterReplica issues a cluster-admin remove-replica request.
func (c *Connection) DeregisterReplica(ctx context.Context, id uint64, admin func(ctx context.Context, ch *rpc.Channel, id uint64) error) error {
	ch, err := c.routeStrong(ctx)
	if err != nil {
		return err
	}
	return admin(ctx, ch, id)
}

// ForceClose closes every channel immediately (spec §4.H "Close").
func (c *Connection) ForceClose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for _, ch := range c.channels {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsOpen reports whether the connection has not been force-closed.
func (c *Connection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

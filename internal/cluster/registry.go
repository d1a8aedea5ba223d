// Package cluster implements the replica registry and cluster connection
// of spec §4.C and §4.H, grounded on the teacher's Raft-replicated mesh
// node bookkeeping (services/mesh/internal/mesh/consensus.go): a
// lightweight in-memory view of peer roles and terms, refreshed on
// demand rather than eagerly pushed, with an at-most-one-leader-per-term
// invariant. Only the vocabulary and bookkeeping shape are borrowed —
// the driver never imports a Raft library, since it is a client of the
// cluster's consensus, not a participant in it.
package cluster

import (
	"sort"
	"strings"
	"sync"

	"github.com/redbco/redb-driver-go/address"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// Replica is one server-side replica as known to this client.
type Replica struct {
	ID            uint64
	PublicAddress address.Address
	Role          wire.ReplicaRole
	Term          int64
	IsPreferred   bool
}

// IsPrimary reports whether this replica identifies itself as primary.
func (r Replica) IsPrimary() bool {
	return r.Role == wire.RolePrimary
}

// Registry is the client's view of cluster membership (spec §4.C).
type Registry struct {
	mu       sync.RWMutex
	replicas map[uint64]Replica
}

// NewRegistry builds a Registry from a ServerListResponse, translating
// each advertised address against addrs and the connection's default
// scheme (spec §4.C "translate_address").
//
// translate_address: if the advertised private address matches a
// translation entry, its public counterpart is used; otherwise, if the
// advertised URI carries no scheme, the connection's default scheme is
// attached so the result is always a dialable address.
func NewRegistry(resp wire.ServerListResponse, addrs address.Addresses, defaultScheme string) (*Registry, error) {
	replicas := make(map[uint64]Replica, len(resp.Replicas))

	for _, info := range resp.Replicas {
		priv, err := address.Parse(info.PrivateAddress)
		if err != nil {
			return nil, err
		}

		pub, ok := addrs.PublicFor(priv)
		if !ok {
			pub = priv
			if !strings.Contains(info.PrivateAddress, "://") {
				pub = priv.WithScheme(defaultScheme)
			}
		}

		replicas[info.ID] = Replica{
			ID:            info.ID,
			PublicAddress: pub,
			Role:          info.Role,
			Term:          info.Term,
			IsPreferred:   info.IsPreferred,
		}
	}

	if err := validateAtMostOnePrimaryPerTerm(replicas); err != nil {
		return nil, err
	}

	return &Registry{replicas: replicas}, nil
}

func validateAtMostOnePrimaryPerTerm(replicas map[uint64]Replica) error {
	primaryForTerm := make(map[int64]uint64)
	for _, r := range replicas {
		if !r.IsPrimary() {
			continue
		}
		if existing, ok := primaryForTerm[r.Term]; ok && existing != r.ID {
			return driererr.New(driererr.KindUnexpectedResponse,
				"replica registry reports two primaries (%d, %d) for term %d", existing, r.ID, r.Term)
		}
		primaryForTerm[r.Term] = r.ID
	}
	return nil
}

// All returns every known replica in a stable, ID-sorted order.
func (reg *Registry) All() []Replica {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]Replica, 0, len(reg.replicas))
	for _, r := range reg.replicas {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Primary returns the current primary, if the registry has observed one.
func (reg *Registry) Primary() (Replica, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, r := range reg.replicas {
		if r.IsPrimary() {
			return r, true
		}
	}
	return Replica{}, false
}

// ByAddress looks up a replica by its public address (spec §4.H
// ReplicaDependent routing).
func (reg *Registry) ByAddress(addr address.Address) (Replica, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, r := range reg.replicas {
		if r.PublicAddress.Equal(addr) {
			return r, true
		}
	}
	return Replica{}, false
}

// Replace swaps in a freshly fetched registry's replicas, used when the
// cluster connection refreshes membership on demand (spec §4.H "on
// replica-set changes the registry is refreshed on demand, not
// eagerly").
func (reg *Registry) Replace(fresh *Registry) {
	fresh.mu.RLock()
	replicas := make(map[uint64]Replica, len(fresh.replicas))
	for id, r := range fresh.replicas {
		replicas[id] = r
	}
	fresh.mu.RUnlock()

	reg.mu.Lock()
	reg.replicas = replicas
	reg.mu.Unlock()
}

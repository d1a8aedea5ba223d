package address

import (
	"sort"

	"github.com/redbco/redb-driver-go/internal/driererr"
)

// Addresses is either a direct list of public addresses (core/standalone
// deployments, no translation needed) or a translation mapping from
// public address (what the client dials) to private address (what the
// server advertises to its peers). The zero value is not valid; use
// FromList, FromSingle, or FromTranslation.
type Addresses struct {
	translation map[Address]Address // public -> private; identity when direct
	direct      bool
}

// FromSingle builds an Addresses containing exactly one public address,
// e.g. "host:port" for a single-node core deployment.
func FromSingle(raw string) (Addresses, error) {
	return FromList([]string{raw})
}

// FromList builds an Addresses from a list of public address strings with
// no translation: the server is assumed to advertise the same addresses
// it was dialed on.
func FromList(raws []string) (Addresses, error) {
	m := make(map[Address]Address, len(raws))
	for _, raw := range raws {
		a, err := Parse(raw)
		if err != nil {
			return Addresses{}, err
		}
		m[a] = a
	}
	if len(m) == 0 {
		return Addresses{}, driererr.New(driererr.KindInvalidAddress, "no addresses provided")
	}
	return Addresses{translation: m, direct: true}, nil
}

// FromTranslation builds an Addresses from an explicit public->private
// address mapping, used for cluster deployments behind NAT or a load
// balancer where the server's internal view differs from what clients
// dial.
func FromTranslation(raws map[string]string) (Addresses, error) {
	m := make(map[Address]Address, len(raws))
	for pub, priv := range raws {
		pa, err := Parse(pub)
		if err != nil {
			return Addresses{}, err
		}
		qa, err := Parse(priv)
		if err != nil {
			return Addresses{}, err
		}
		m[pa] = qa
	}
	if len(m) == 0 {
		return Addresses{}, driererr.New(driererr.KindInvalidAddress, "no addresses provided")
	}
	return Addresses{translation: m, direct: false}, nil
}

// Len returns the number of public addresses known.
func (a Addresses) Len() int {
	return len(a.translation)
}

// IsDirect reports whether this Addresses was built without an explicit
// translation (public == private for every entry).
func (a Addresses) IsDirect() bool {
	return a.direct
}

// Contains reports whether addr is a known public address.
func (a Addresses) Contains(addr Address) bool {
	_, ok := a.translation[addr]
	return ok
}

// IterPublicAddresses returns the public addresses in a stable
// (lexicographic) order so iteration is deterministic across calls.
// Round-robin routing does not use it; it walks the replica registry in
// ID order.
func (a Addresses) IterPublicAddresses() []Address {
	out := make([]Address, 0, len(a.translation))
	for pub := range a.translation {
		out = append(out, pub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Authority < out[j].Authority })
	return out
}

// Translation returns a copy of the public->private mapping. For a
// direct Addresses this is the identity map, per spec §4.A.
func (a Addresses) Translation() map[Address]Address {
	out := make(map[Address]Address, len(a.translation))
	for k, v := range a.translation {
		out[k] = v
	}
	return out
}

// Private returns the private address translated from a public one.
func (a Addresses) Private(pub Address) (Address, bool) {
	priv, ok := a.translation[pub]
	return priv, ok
}

// PublicFor returns the public address that translates to a given
// private address, used when the server hands back a private address
// (spec §4.C replica translation).
func (a Addresses) PublicFor(priv Address) (Address, bool) {
	for pub, p := range a.translation {
		if p.Equal(priv) {
			return pub, true
		}
	}
	return Address{}, false
}

// Exclude retains only entries whose public address is present in other,
// per spec §4.A.
func (a Addresses) Exclude(other Addresses) Addresses {
	out := Addresses{translation: make(map[Address]Address), direct: a.direct}
	for pub, priv := range a.translation {
		if other.Contains(pub) {
			out.translation[pub] = priv
		}
	}
	return out
}

// ValidateAgainstServerView checks the invariant from spec §4.A: every
// private address the server advertised (fetched) must appear as a value
// in the translation, and every translation value must have been
// fetched — i.e. fetched == provided. It returns AddressTranslationMismatch
// naming the addresses on each side of the discrepancy.
func (a Addresses) ValidateAgainstServerView(fetched []Address) error {
	provided := make(map[Address]struct{}, len(a.translation))
	for _, priv := range a.translation {
		provided[priv] = struct{}{}
	}

	fetchedSet := make(map[Address]struct{}, len(fetched))
	for _, f := range fetched {
		fetchedSet[f] = struct{}{}
	}

	var unknown []Address // fetched but not provided
	for _, f := range fetched {
		if _, ok := provided[f]; !ok {
			unknown = append(unknown, f)
		}
	}
	var unmapped []Address // provided but not fetched
	for priv := range provided {
		if _, ok := fetchedSet[priv]; !ok {
			unmapped = append(unmapped, priv)
		}
	}

	if len(unknown) > 0 || len(unmapped) > 0 {
		return driererr.New(driererr.KindAddressTranslationMismatch,
			"translation map inconsistent with server view: unknown=%v unmapped=%v", unknown, unmapped).
			WithParam("unknown", unknown).
			WithParam("unmapped", unmapped)
	}
	return nil
}

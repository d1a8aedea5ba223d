// Package address implements the driver's address book (spec §4.A): the
// URI-like addresses the client dials and the private addresses a
// replicated server advertises, plus the translation between the two.
package address

import (
	"fmt"
	"strings"

	"github.com/redbco/redb-driver-go/internal/driererr"
)

// defaultScheme is attached to bare "host:port" addresses that carry no
// scheme of their own, mirroring the teacher's grpcconfig fallback of
// assuming a plain "localhost:port" shape when nothing more specific is
// configured.
const defaultScheme = "grpc"

// Address is a URI-like identifier (scheme, authority). Two forms
// co-exist in the driver: a public address the client dials and a
// private address the server advertises internally. Equality is defined
// on authority alone — the scheme is cosmetic.
type Address struct {
	Scheme    string
	Authority string
}

// Parse accepts both "scheme://authority" and bare "host:port", defaulting
// the scheme in the latter case. It fails with InvalidAddress when the
// authority is empty.
func Parse(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}, driererr.New(driererr.KindInvalidAddress, "address is empty")
	}

	scheme := defaultScheme
	authority := raw
	if idx := strings.Index(raw, "://"); idx >= 0 {
		scheme = raw[:idx]
		authority = raw[idx+3:]
	}

	if authority == "" {
		return Address{}, driererr.New(driererr.KindInvalidAddress, "address %q has no authority", raw)
	}
	if strings.Count(authority, ":") == 0 {
		return Address{}, driererr.New(driererr.KindInvalidAddress, "address %q is missing a port", raw)
	}

	return Address{Scheme: scheme, Authority: authority}, nil
}

// MustParse is Parse but panics on error; used for internal constants and
// tests where the address is known to be well formed.
func MustParse(raw string) Address {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// WithScheme returns a copy of a with its scheme replaced, used when a
// private address arrives from the server with no scheme of its own and
// must inherit the connection's scheme (spec §4.C).
func (a Address) WithScheme(scheme string) Address {
	a.Scheme = scheme
	return a
}

// HasScheme reports whether a carries a non-empty scheme. Parse fills in
// defaultScheme for a bare "host:port", so every parsed Address has one;
// only an Address built directly with an empty Scheme reports false.
func (a Address) HasScheme() bool {
	return a.Scheme != ""
}

// String renders the address back into "scheme://authority" form.
func (a Address) String() string {
	if a.Scheme == "" {
		return a.Authority
	}
	return fmt.Sprintf("%s://%s", a.Scheme, a.Authority)
}

// Equal compares two addresses by authority only, per spec §3.
func (a Address) Equal(other Address) bool {
	return a.Authority == other.Authority
}

// Package config holds the in-process, mutable dial-time options for the
// driver: keepalive timing, dial timeout, and the driver's self-reported
// language/version label. It follows the teacher's pkg/config.Config
// shape (an RWMutex-guarded map with typed accessors) scaled down to the
// fixed set of knobs a driver actually exposes, rather than an arbitrary
// string bag — the driver has no config file to parse (spec §1 Non-goal).
package config

import (
	"os"
	"sync"
	"time"
)

// DriverLanguage is sent in every ConnectionOpen request (spec §6).
const DriverLanguage = "go"

// DriverVersion is sent alongside DriverLanguage. It is a var, not a
// const, so it can be overridden by a release build's linker flags.
var DriverVersion = "0.1.0"

// Options are the dial-time knobs a caller may override; zero values are
// replaced by Defaults().
type Options struct {
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	DialTimeout      time.Duration

	// BatchInterval is the transaction transmitter's dispatch tick (spec
	// §4.G, "wakes every fixed interval ≈3ms").
	BatchInterval time.Duration

	// PrefetchWindow bounds how many ResponsePart messages the server
	// sends before waiting for StreamContinue (spec §4.G).
	PrefetchWindow int

	// CloseDrainDeadline bounds how long the close protocol waits for the
	// dispatch loop's in-flight counter to reach zero (spec §4.G step 3).
	CloseDrainDeadline time.Duration
}

// Defaults mirrors the teacher's grpc.DefaultClientOptions.
func Defaults() Options {
	return Options{
		KeepaliveTime:      10 * time.Second,
		KeepaliveTimeout:   3 * time.Second,
		DialTimeout:        10 * time.Second,
		BatchInterval:      3 * time.Millisecond,
		PrefetchWindow:     50,
		CloseDrainDeadline: 5 * time.Second,
	}
}

// WithDefaults fills any zero field of o with the corresponding default.
func (o Options) WithDefaults() Options {
	d := Defaults()
	if o.KeepaliveTime == 0 {
		o.KeepaliveTime = d.KeepaliveTime
	}
	if o.KeepaliveTimeout == 0 {
		o.KeepaliveTimeout = d.KeepaliveTimeout
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.BatchInterval == 0 {
		o.BatchInterval = d.BatchInterval
	}
	if o.PrefetchWindow == 0 {
		o.PrefetchWindow = d.PrefetchWindow
	}
	if o.CloseDrainDeadline == 0 {
		o.CloseDrainDeadline = d.CloseDrainDeadline
	}
	return o
}

// Values is a small, concurrency-safe bag of resolved runtime settings,
// grounded on pkg/config.Config's RWMutex-guarded map, narrowed to the
// single key the driver resolves dynamically: the root CA path, which
// may come from an explicit call or fall back to the environment.
type Values struct {
	mu   sync.RWMutex
	vals map[string]string
}

// New creates an empty Values bag.
func New() *Values {
	return &Values{vals: make(map[string]string)}
}

// Get returns a stored value, or "" if unset.
func (v *Values) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.vals[key]
}

// Set stores a value.
func (v *Values) Set(key, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vals[key] = value
}

// ResolveRootCA returns explicit if non-empty, else the ROOT_CA
// environment variable, else "" (spec §6 "Environment").
func ResolveRootCA(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv("ROOT_CA")
}

// Package credentials implements the driver's username/password
// credentials, TLS configuration, and the token-augmented call
// credentials used to authenticate every outgoing request (spec §4.B).
package credentials

import (
	"os"
	"sync"

	"github.com/redbco/redb-driver-go/internal/driererr"
)

// Credentials holds the username/password pair the driver authenticates
// with. It is orthogonal to TLS configuration.
type Credentials struct {
	Username string
	Password string
}

// New builds a Credentials from a username and password.
func New(username, password string) Credentials {
	return Credentials{Username: username, Password: password}
}

// tlsMode enumerates the three TLS postures a channel can be dialed
// under (spec §4.B).
type tlsMode int

const (
	tlsDisabled tlsMode = iota
	tlsNativeRootCA
	tlsCustomRootCA
)

// DriverTlsConfig is orthogonal to Credentials: disabled, enabled with
// the host's native root CA trust, or enabled with a custom root CA file.
type DriverTlsConfig struct {
	mode        tlsMode
	rootCAPath  string
}

// Disabled returns a plaintext TLS configuration. If the server requires
// TLS, dialing under this configuration fails at dial time (spec §4.B).
func Disabled() DriverTlsConfig {
	return DriverTlsConfig{mode: tlsDisabled}
}

// EnabledWithNativeRootCA returns a TLS configuration trusting the host
// operating system's root certificate store.
func EnabledWithNativeRootCA() DriverTlsConfig {
	return DriverTlsConfig{mode: tlsNativeRootCA}
}

// EnabledWithRootCA returns a TLS configuration trusting only the
// certificate authority at path. If ROOT_CA is set in the environment
// and path is empty, it is used instead (spec §6).
func EnabledWithRootCA(path string) DriverTlsConfig {
	if path == "" {
		path = os.Getenv("ROOT_CA")
	}
	return DriverTlsConfig{mode: tlsCustomRootCA, rootCAPath: path}
}

// IsEnabled reports whether TLS is enabled under any mode.
func (c DriverTlsConfig) IsEnabled() bool {
	return c.mode != tlsDisabled
}

// HasRootCAPath reports whether a custom root CA file was configured.
func (c DriverTlsConfig) HasRootCAPath() bool {
	return c.mode == tlsCustomRootCA && c.rootCAPath != ""
}

// RootCAPath returns the configured custom root CA path, or "" if none.
func (c DriverTlsConfig) RootCAPath() string {
	return c.rootCAPath
}

// Validate fails with TlsConfigInvalid if a custom root CA was requested
// but no path is set, the path cannot be stat'ed (for example, the file
// is absent), or it names a directory. It does not read the file or parse
// the PEM content itself — that happens when the transport credentials are
// actually constructed — but catches the common misconfiguration early.
func (c DriverTlsConfig) Validate() error {
	if c.mode != tlsCustomRootCA {
		return nil
	}
	if c.rootCAPath == "" {
		return driererr.New(driererr.KindTlsConfigInvalid, "custom root CA requested but no path given (set ROOT_CA or pass a path)")
	}
	info, err := os.Stat(c.rootCAPath)
	if err != nil {
		return driererr.Wrap(driererr.KindTlsConfigInvalid, err, "root CA file %q is not accessible", c.rootCAPath)
	}
	if info.IsDir() {
		return driererr.New(driererr.KindTlsConfigInvalid, "root CA path %q is a directory", c.rootCAPath)
	}
	return nil
}

// CallCredentials augments Credentials with an optional bearer token.
// The token starts absent, is set on the first authenticated response,
// and is reset whenever the server rejects it. Concurrent readers (every
// outbound request) and the rare writer (renewal) are served by an
// RWMutex, per spec §5's exclusive-writer/shared-reader discipline.
type CallCredentials struct {
	creds Credentials

	mu    sync.RWMutex
	token string
}

// NewCallCredentials wraps creds with an initially-empty token.
func NewCallCredentials(creds Credentials) *CallCredentials {
	return &CallCredentials{creds: creds}
}

// Username returns the underlying username, stable for the lifetime of
// the CallCredentials.
func (c *CallCredentials) Username() string {
	return c.creds.Username
}

// Password returns the underlying password.
func (c *CallCredentials) Password() string {
	return c.creds.Password
}

// Token returns the current bearer token and whether one is set.
func (c *CallCredentials) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// SetToken installs a newly issued token, replacing any previous value.
func (c *CallCredentials) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ResetToken clears the current token, forcing the next request to use
// the password and trigger renewal on the server's challenge.
func (c *CallCredentials) ResetToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// Headers returns the {username, token-or-password} pair the RPC channel
// must attach to every outgoing request (spec §6 "Credential headers"):
// username is always present, and exactly one of token or password
// follows — token if one is set, else password.
func (c *CallCredentials) Headers() (username string, token string, password string, hasToken bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.creds.Username, c.token, "", true
	}
	return c.creds.Username, "", c.creds.Password, false
}

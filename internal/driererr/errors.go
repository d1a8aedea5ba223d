// Package driererr implements the driver's error taxonomy (spec §7). It
// follows the sentinel-plus-context-struct shape used throughout the
// teacher's adapter packages: a package-level errors.New sentinel per
// failure kind, a richer struct wrapping the sentinel with call-specific
// detail, and Is/Unwrap so callers can errors.Is against the sentinel
// without caring which kind produced it.
package driererr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds the core must distinguish (spec §7).
type Kind string

const (
	KindConnectionFailed               Kind = "ConnectionFailed"
	KindServerConnectionFailed         Kind = "ServerConnectionFailed"
	KindConnectionIsClosed             Kind = "ConnectionIsClosed"
	KindTransactionIsClosed            Kind = "TransactionIsClosed"
	KindTransactionIsClosedWithErrors  Kind = "TransactionIsClosedWithErrors"
	KindUnexpectedResponse             Kind = "UnexpectedResponse"
	KindClusterReplicaNotPrimary       Kind = "ClusterReplicaNotPrimary"
	KindClusterTokenCredentialInvalid  Kind = "ClusterTokenCredentialInvalid"
	KindAddressTranslationMismatch     Kind = "AddressTranslationMismatch"
	KindCloudAllNodesFailed            Kind = "CloudAllNodesFailed"
	KindInvalidConceptCasting          Kind = "InvalidConceptCasting"
	KindMissingResponseField           Kind = "MissingResponseField"
	KindInvalidAddress                 Kind = "InvalidAddress"
	KindTlsConfigInvalid               Kind = "TlsConfigInvalid"
	KindUnknownReplica                 Kind = "UnknownReplica"
)

// Sentinel errors, one per Kind, so callers may use errors.Is without
// reaching for the concrete *DriverError type.
var (
	ErrConnectionFailed              = errors.New("no replica reachable")
	ErrServerConnectionFailed        = errors.New("no replica accepted the request")
	ErrConnectionIsClosed            = errors.New("operation on a closed connection")
	ErrTransactionIsClosed           = errors.New("operation on a closed transaction")
	ErrTransactionIsClosedWithErrors = errors.New("transaction closed due to a prior stream error")
	ErrUnexpectedResponse            = errors.New("wire reply did not match the expected variant")
	ErrClusterReplicaNotPrimary      = errors.New("routed to a secondary under strong consistency")
	ErrClusterTokenCredentialInvalid = errors.New("auth token rejected")
	ErrAddressTranslationMismatch    = errors.New("translation map inconsistent with server view")
	ErrCloudAllNodesFailed           = errors.New("every replica dial failed")
	ErrInvalidConceptCasting         = errors.New("analyzed-model accessor used on wrong variant")
	ErrMissingResponseField          = errors.New("required field absent in decoded reply")
	ErrInvalidAddress                = errors.New("invalid address")
	ErrTlsConfigInvalid              = errors.New("invalid tls configuration")
	ErrUnknownReplica                = errors.New("unknown replica")
)

var sentinels = map[Kind]error{
	KindConnectionFailed:              ErrConnectionFailed,
	KindServerConnectionFailed:        ErrServerConnectionFailed,
	KindConnectionIsClosed:            ErrConnectionIsClosed,
	KindTransactionIsClosed:           ErrTransactionIsClosed,
	KindTransactionIsClosedWithErrors: ErrTransactionIsClosedWithErrors,
	KindUnexpectedResponse:            ErrUnexpectedResponse,
	KindClusterReplicaNotPrimary:      ErrClusterReplicaNotPrimary,
	KindClusterTokenCredentialInvalid: ErrClusterTokenCredentialInvalid,
	KindAddressTranslationMismatch:    ErrAddressTranslationMismatch,
	KindCloudAllNodesFailed:           ErrCloudAllNodesFailed,
	KindInvalidConceptCasting:         ErrInvalidConceptCasting,
	KindMissingResponseField:          ErrMissingResponseField,
	KindInvalidAddress:                ErrInvalidAddress,
	KindTlsConfigInvalid:              ErrTlsConfigInvalid,
	KindUnknownReplica:                ErrUnknownReplica,
}

// codeNumber assigns each kind a stable three-letter-domain error code
// (spec §7: "a short code: three-letter domain + integer").
var codeNumber = map[Kind]int{
	KindConnectionFailed:              1,
	KindServerConnectionFailed:        2,
	KindConnectionIsClosed:            3,
	KindTransactionIsClosed:           4,
	KindTransactionIsClosedWithErrors: 5,
	KindUnexpectedResponse:            6,
	KindClusterReplicaNotPrimary:      7,
	KindClusterTokenCredentialInvalid: 8,
	KindAddressTranslationMismatch:    9,
	KindCloudAllNodesFailed:           10,
	KindInvalidConceptCasting:         11,
	KindMissingResponseField:          12,
	KindInvalidAddress:                13,
	KindTlsConfigInvalid:              14,
	KindUnknownReplica:                15,
}

// domainCode is the three-letter domain prefix for every code this
// package emits.
const domainCode = "TDB"

// DriverError is the concrete error type returned from driver operations.
// It carries enough detail for both humans (Message) and programs
// (Kind, Cause) without forcing every caller to type-switch.
type DriverError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	Params  map[string]any
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *DriverError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for e's Kind, so that
// errors.Is(err, driererr.ErrConnectionIsClosed) works regardless of the
// concrete struct in play.
func (e *DriverError) Is(target error) bool {
	if sentinel, ok := sentinels[e.Kind]; ok && errors.Is(sentinel, target) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// New builds a DriverError of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *DriverError {
	return &DriverError{
		Kind:    kind,
		Code:    fmt.Sprintf("%s%02d", domainCode, codeNumber[kind]),
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap builds a DriverError of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *DriverError {
	e := New(kind, format, args...)
	e.Cause = cause
	return e
}

// WithParam attaches a named parameter used when substituting the
// human message, and returns e for chaining.
func (e *DriverError) WithParam(key string, value any) *DriverError {
	if e.Params == nil {
		e.Params = make(map[string]any)
	}
	e.Params[key] = value
	return e
}

// Is reports whether err (or anything it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	var de *DriverError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

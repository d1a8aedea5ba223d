// Package errors re-exports the driver's internal error taxonomy (spec
// §7) as the public surface callers import and match against with
// errors.Is/errors.As, mirroring the teacher's convention of keeping the
// concrete error type internal while re-exporting sentinels and
// constructors from a small public package (pkg/anchor/adapter exposes
// the same split between its internal errors.go and the adapter's public
// API).
package errors

import "github.com/redbco/redb-driver-go/internal/driererr"

// Kind names a failure category (spec §7).
type Kind = driererr.Kind

// DriverError is the concrete error type every driver operation returns
// on failure.
type DriverError = driererr.DriverError

const (
	ConnectionFailed              = driererr.KindConnectionFailed
	ServerConnectionFailed        = driererr.KindServerConnectionFailed
	ConnectionIsClosed            = driererr.KindConnectionIsClosed
	TransactionIsClosed           = driererr.KindTransactionIsClosed
	TransactionIsClosedWithErrors = driererr.KindTransactionIsClosedWithErrors
	UnexpectedResponse            = driererr.KindUnexpectedResponse
	ClusterReplicaNotPrimary      = driererr.KindClusterReplicaNotPrimary
	ClusterTokenCredentialInvalid = driererr.KindClusterTokenCredentialInvalid
	AddressTranslationMismatch    = driererr.KindAddressTranslationMismatch
	CloudAllNodesFailed           = driererr.KindCloudAllNodesFailed
	InvalidConceptCasting         = driererr.KindInvalidConceptCasting
	MissingResponseField          = driererr.KindMissingResponseField
	InvalidAddress                = driererr.KindInvalidAddress
	TlsConfigInvalid               = driererr.KindTlsConfigInvalid
	UnknownReplica                 = driererr.KindUnknownReplica
)

var (
	ErrConnectionFailed              = driererr.ErrConnectionFailed
	ErrServerConnectionFailed        = driererr.ErrServerConnectionFailed
	ErrConnectionIsClosed            = driererr.ErrConnectionIsClosed
	ErrTransactionIsClosed           = driererr.ErrTransactionIsClosed
	ErrTransactionIsClosedWithErrors = driererr.ErrTransactionIsClosedWithErrors
	ErrUnexpectedResponse            = driererr.ErrUnexpectedResponse
	ErrClusterReplicaNotPrimary      = driererr.ErrClusterReplicaNotPrimary
	ErrClusterTokenCredentialInvalid = driererr.ErrClusterTokenCredentialInvalid
	ErrAddressTranslationMismatch    = driererr.ErrAddressTranslationMismatch
	ErrCloudAllNodesFailed           = driererr.ErrCloudAllNodesFailed
	ErrInvalidConceptCasting         = driererr.ErrInvalidConceptCasting
	ErrMissingResponseField          = driererr.ErrMissingResponseField
	ErrInvalidAddress                = driererr.ErrInvalidAddress
	ErrTlsConfigInvalid              = driererr.ErrTlsConfigInvalid
	ErrUnknownReplica                = driererr.ErrUnknownReplica
)

// Is reports whether err (or anything it wraps) is of the given Kind.
func Is(err error, kind Kind) bool {
	return driererr.Is(err, kind)
}

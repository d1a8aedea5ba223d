// Package wire defines the envelope types exchanged with the server. The
// concrete encoding on the byte level is an opaque codec external to this
// module (spec §1, §6); what lives here is the decoded Go shape every
// other internal package programs against, plus the narrow interfaces a
// codec and a transport must satisfy.
package wire

import (
	"context"

	"github.com/redbco/redb-driver-go/internal/common"
)

// TransactionType mirrors spec §3's Transaction.type.
type TransactionType int

const (
	TransactionRead TransactionType = iota
	TransactionWrite
	TransactionSchema
)

// ReplicaRole mirrors spec §3's Replica.role.
type ReplicaRole int

const (
	RoleSecondary ReplicaRole = iota
	RolePrimary
)

// ConnectionOpenReq is the request of the core-mode ConnectionOpen
// handshake (spec §6); cluster-mode open performs no handshake.
type ConnectionOpenReq struct {
	DriverLang    string
	DriverVersion string
}

// ConnectionOpenRes is the server's handshake reply.
type ConnectionOpenRes struct {
	ConnectionID        string
	ServerDurationMillis uint64
	Distribution        string
	Version             string
}

// ServerListRequest asks a replica for its view of cluster membership.
type ServerListRequest struct{}

// ServerReplicaInfo is one entry in a ServerListResponse.
type ServerReplicaInfo struct {
	ID             uint64
	PrivateAddress string
	Role           ReplicaRole
	Term           int64
	IsPreferred    bool
}

// ServerListResponse is the server's reply naming every replica it knows
// about, consumed by internal/cluster to build the Replica registry
// (spec §4.C).
type ServerListResponse struct {
	Replicas []ServerReplicaInfo
}

// TransactionOpenReq opens a transaction stream (spec §6). NetworkLatencyMillis
// is the client's most recent RTT estimate for the target replica so the
// server can account for wire delay when enforcing timeouts (spec §4.G
// "Latency tracking").
type TransactionOpenReq struct {
	Database             string
	Type                  TransactionType
	NetworkLatencyMillis  int64
}

// TransactionOpenRes acknowledges a transaction open.
type TransactionOpenRes struct{}

// ContinuationState says whether more ResponsePart messages follow for a
// given RequestID (spec §3, §4.G).
type ContinuationState int

const (
	Continue ContinuationState = iota
	Done
)

// Request is a unary outbound message keyed by a client-generated id.
type Request struct {
	ID      common.RequestID
	Payload any
}

// Response is a unary inbound reply keyed by RequestID.
type Response struct {
	ID      common.RequestID
	Payload any
	Err     error
}

// ResponsePart is one element of a server-streamed sequence.
type ResponsePart struct {
	ID         common.RequestID
	Payload    any
	State      ContinuationState
	Err        error
}

// StreamContinue pulls the next batch of a server-driven stream (spec
// §4.G flow control contract).
type StreamContinue struct {
	ID common.RequestID
}

// Cancel aborts a server-driven stream early (spec §4.G cancellation).
type Cancel struct {
	ID common.RequestID
}

// DatabaseInfo describes one database as reported by the server (spec
// §4.J database manager).
type DatabaseInfo struct {
	Name   string
	Schema string
}

// DatabasesAllRequest lists every database visible to the current user.
type DatabasesAllRequest struct{}

// DatabasesAllResponse is the server's reply to DatabasesAllRequest.
type DatabasesAllResponse struct {
	Databases []DatabaseInfo
}

// DatabaseContainsRequest checks whether a named database exists.
type DatabaseContainsRequest struct {
	Name string
}

// DatabaseContainsResponse answers DatabaseContainsRequest.
type DatabaseContainsResponse struct {
	Exists bool
}

// DatabaseCreateRequest creates a new database.
type DatabaseCreateRequest struct {
	Name string
}

// DatabaseDeleteRequest deletes an existing database.
type DatabaseDeleteRequest struct {
	Name string
}

// DatabaseSchemaRequest fetches a database's full schema text (data and
// type definitions combined).
type DatabaseSchemaRequest struct {
	Name string
}

// DatabaseSchemaResponse carries a database's schema text.
type DatabaseSchemaResponse struct {
	Schema string
}

// DatabaseTypeSchemaRequest fetches only the type-definition portion of a
// database's schema.
type DatabaseTypeSchemaRequest struct {
	Name string
}

// DatabaseTypeSchemaResponse carries a database's type schema text.
type DatabaseTypeSchemaResponse struct {
	Schema string
}

// DatabaseRuleSchemaRequest fetches only the rule-definition portion of a
// database's schema.
type DatabaseRuleSchemaRequest struct {
	Name string
}

// DatabaseRuleSchemaResponse carries a database's rule schema text.
type DatabaseRuleSchemaResponse struct {
	Schema string
}

// UserInfo describes one user as reported by the server (spec §4.J user
// manager).
type UserInfo struct {
	Username string
}

// UsersAllRequest lists every user visible to the current user.
type UsersAllRequest struct{}

// UsersAllResponse is the server's reply to UsersAllRequest.
type UsersAllResponse struct {
	Users []UserInfo
}

// UserContainsRequest checks whether a named user exists.
type UserContainsRequest struct {
	Username string
}

// UserContainsResponse answers UserContainsRequest.
type UserContainsResponse struct {
	Exists bool
}

// UserCreateRequest creates a new user.
type UserCreateRequest struct {
	Username string
	Password string
}

// UserDeleteRequest deletes an existing user.
type UserDeleteRequest struct {
	Username string
}

// UserSetPasswordRequest sets another user's password (administrative).
type UserSetPasswordRequest struct {
	Username string
	Password string
}

// UserUpdatePasswordRequest changes the caller's own password, proving
// knowledge of the old one.
type UserUpdatePasswordRequest struct {
	OldPassword string
	NewPassword string
}

// QueryRequest issues a data or schema query against an open transaction
// stream (spec §4.J "Transaction::query").
type QueryRequest struct {
	QueryText string
}

// AnalyzeRequest issues a query for static analysis only, without
// executing it (spec §4.J "Transaction::analyze").
type AnalyzeRequest struct {
	QueryText string
}

// CommitRequest commits the transaction that owns the stream it is sent
// on.
type CommitRequest struct{}

// RollbackRequest rolls back the transaction that owns the stream it is
// sent on.
type RollbackRequest struct{}

// Batch is the single message a transaction stream's sender half writes
// per dispatch tick, carrying every request enqueued since the last
// flush (spec §4.G "batches outbound requests").
type Batch struct {
	Requests        []Request
	StreamContinues []StreamContinue
	Cancels         []Cancel
}

// Inbound is the union of message shapes the receiver half of a
// transaction stream may read off the wire.
type Inbound struct {
	Response     *Response
	ResponsePart *ResponsePart
}

// Stream abstracts one bidirectional transaction stream so the
// multiplexer in internal/transaction can be driven by a real gRPC
// stream or, in tests, by an in-memory fake — grounded on the teacher's
// in-memory network.MessageChannel() test seam
// (services/mesh/internal/network).
type Stream interface {
	Send(ctx context.Context, b Batch) error
	Recv(ctx context.Context) (Inbound, error)
	CloseSend() error
}

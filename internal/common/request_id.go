// Package common holds small types shared across the driver's internal
// packages that don't belong to any single subsystem.
package common

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// RequestID is an opaque 128-bit value that correlates one outbound request
// on a transaction stream with its response, or with the sequence of
// ResponsePart messages that make up a streamed reply. It is generated by
// the client; the server never invents one.
type RequestID [16]byte

// NewRequestID generates a fresh request id (UUIDv4).
func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

// String renders the id as a hex string for logs and error messages.
func (id RequestID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value, used to detect
// uninitialized RequestIDs in tests and defensive checks.
func (id RequestID) IsZero() bool {
	return id == RequestID{}
}

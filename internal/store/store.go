// ABOUTME: Store interface and data types for the dispatch audit log.
// ABOUTME: Defines CallRecord, result constants, and filtering options.

package store

import (
	"context"
	"time"
)

// Result values recorded for each dispatch attempt.
const (
	// ResultSent means the event was written to a live channel.
	ResultSent = "SENT"
	// ResultSendFailed means a channel existed but the write failed.
	ResultSendFailed = "SEND_FAILED"
	// ResultNoExtension means no live channel existed for the agent.
	ResultNoExtension = "NO_EXTENSION"
	// ResultNoAgent means the trigger carried no agent identifier; the
	// attempt is recorded for audit only and never routed.
	ResultNoAgent = "NO_AGENT"
)

// CallRecord is one row of the append-only dispatch audit log.
type CallRecord struct {
	ID                 string // UUID v4
	Timestamp          time.Time
	CustomerID         string
	Phone              string
	Agent              string
	ExtensionConnected bool
	Result             string
}

// CallFilter specifies filtering options for listing call records.
type CallFilter struct {
	Since  *time.Time // records after this time
	Until  *time.Time // records before this time
	Agent  *string    // filter by agent identifier
	Result *string    // filter by result
	Limit  int        // max results (default 100, max 1000)
}

// Store is the persistence interface for the dispatch audit log.
type Store interface {
	// AppendCall appends one record, generating ID and Timestamp if unset.
	AppendCall(ctx context.Context, rec *CallRecord) error
	// ListCalls returns records matching the filter, newest first.
	ListCalls(ctx context.Context, f CallFilter) ([]CallRecord, error)
	Close() error
}

// ABOUTME: Call-log store methods for recording dispatch attempts and outcomes
// ABOUTME: Append-only: records who was targeted, what was sent, and the result

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendCall appends a new record to the call log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendCall(ctx context.Context, rec *CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO calls (call_id, ts, customer_id, phone, agent, extension_connected, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.CustomerID,
		rec.Phone,
		rec.Agent,
		rec.ExtensionConnected,
		rec.Result,
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}

	s.logger.Debug("appended call record",
		"id", rec.ID,
		"agent", rec.Agent,
		"result", rec.Result,
	)
	return nil
}

// normalizeCallLimit applies default (100) and cap (1000) to the list limit.
func normalizeCallLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// scanCallRecord scans a row into a CallRecord.
func scanCallRecord(scanner interface{ Scan(dest ...any) error }) (CallRecord, error) {
	var rec CallRecord
	var tsStr string

	if err := scanner.Scan(
		&rec.ID,
		&tsStr,
		&rec.CustomerID,
		&rec.Phone,
		&rec.Agent,
		&rec.ExtensionConnected,
		&rec.Result,
	); err != nil {
		return rec, fmt.Errorf("scanning call record: %w", err)
	}

	var err error
	rec.Timestamp, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return rec, fmt.Errorf("parsing timestamp: %w", err)
	}
	return rec, nil
}

const listCallsQuery = `
	SELECT call_id, ts, customer_id, phone, agent, extension_connected, result
	FROM calls
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR agent = ?)
	  AND (? IS NULL OR result = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListCalls returns call records matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListCalls(ctx context.Context, f CallFilter) ([]CallRecord, error) {
	limit := normalizeCallLimit(f.Limit)

	var sinceStr, untilStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &v
	}
	if f.Until != nil {
		v := f.Until.UTC().Format(time.RFC3339)
		untilStr = &v
	}

	rows, err := s.db.QueryContext(ctx, listCallsQuery,
		sinceStr, sinceStr,
		untilStr, untilStr,
		f.Agent, f.Agent,
		f.Result, f.Result,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying call log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []CallRecord
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call records: %w", err)
	}

	if records == nil {
		records = []CallRecord{}
	}
	return records, nil
}

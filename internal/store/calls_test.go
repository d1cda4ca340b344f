// ABOUTME: Tests for call-log store operations
// ABOUTME: Covers AppendCall and ListCalls with filtering for the calls table

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCallStore_Append(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &CallRecord{
		CustomerID:         "CUST-42",
		Phone:              "+15550100",
		Agent:              "201",
		ExtensionConnected: true,
		Result:             ResultSent,
	}

	err := store.AppendCall(ctx, rec)
	require.NoError(t, err)

	// Should have generated ID and timestamp
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestCallStore_List_NoFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, result := range []string{ResultNoExtension, ResultSendFailed, ResultSent} {
		rec := &CallRecord{
			CustomerID:         fmt.Sprintf("CUST-%d", i),
			Phone:              "+15550100",
			Agent:              "201",
			ExtensionConnected: result != ResultNoExtension,
			Result:             result,
			Timestamp:          base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.AppendCall(ctx, rec))
	}

	records, err := store.ListCalls(ctx, CallFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// Should be newest first
	assert.Equal(t, ResultSent, records[0].Result)
	assert.Equal(t, ResultNoExtension, records[2].Result)
}

func TestCallStore_List_RoundTripsFields(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	rec := &CallRecord{
		CustomerID:         "CUST-7",
		Phone:              "+15550123",
		Agent:              "305",
		ExtensionConnected: false,
		Result:             ResultNoExtension,
		Timestamp:          ts,
	}
	require.NoError(t, store.AppendCall(ctx, rec))

	records, err := store.ListCalls(ctx, CallFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, "CUST-7", got.CustomerID)
	assert.Equal(t, "+15550123", got.Phone)
	assert.Equal(t, "305", got.Agent)
	assert.False(t, got.ExtensionConnected)
	assert.Equal(t, ResultNoExtension, got.Result)
}

func TestCallStore_List_BySince(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := &CallRecord{
			CustomerID: fmt.Sprintf("CUST-%d", i),
			Agent:      "201",
			Result:     ResultSent,
			Timestamp:  base.Add(time.Duration(i) * 10 * time.Minute),
		}
		require.NoError(t, store.AppendCall(ctx, rec))
	}

	since := base.Add(15 * time.Minute)
	records, err := store.ListCalls(ctx, CallFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, records, 1) // Only entry at 20 minutes
}

func TestCallStore_List_ByAgent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i, agent := range []string{"201", "305", "201"} {
		rec := &CallRecord{
			CustomerID: fmt.Sprintf("CUST-%d", i),
			Agent:      agent,
			Result:     ResultSent,
		}
		require.NoError(t, store.AppendCall(ctx, rec))
	}

	agent := "201"
	records, err := store.ListCalls(ctx, CallFilter{Agent: &agent})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	for _, r := range records {
		assert.Equal(t, "201", r.Agent)
	}
}

func TestCallStore_List_ByResult(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	results := []string{ResultSent, ResultNoExtension, ResultSent, ResultNoAgent}
	for i, result := range results {
		rec := &CallRecord{
			CustomerID: fmt.Sprintf("CUST-%d", i),
			Agent:      "201",
			Result:     result,
		}
		require.NoError(t, store.AppendCall(ctx, rec))
	}

	result := ResultSent
	records, err := store.ListCalls(ctx, CallFilter{Result: &result})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	for _, r := range records {
		assert.Equal(t, ResultSent, r.Result)
	}
}

func TestCallStore_List_Limit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := &CallRecord{
			CustomerID: fmt.Sprintf("CUST-%d", i),
			Agent:      "201",
			Result:     ResultSent,
		}
		require.NoError(t, store.AppendCall(ctx, rec))
	}

	records, err := store.ListCalls(ctx, CallFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCallStore_List_Empty(t *testing.T) {
	store := setupTestStore(t)

	records, err := store.ListCalls(context.Background(), CallFilter{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Len(t, records, 0)
}

func TestNormalizeCallLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeCallLimit(0))
	assert.Equal(t, 100, normalizeCallLimit(-5))
	assert.Equal(t, 50, normalizeCallLimit(50))
	assert.Equal(t, 1000, normalizeCallLimit(5000))
}

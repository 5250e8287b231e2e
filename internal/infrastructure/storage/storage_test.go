package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "sync_test.db")
}

func TestStorage_CheckpointLifecycle(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	// Never run: nil, no error
	cp, err := store.GetCheckpoint("products")
	require.NoError(t, err)
	assert.Nil(t, cp)

	// First save
	pos1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	total := 42
	require.NoError(t, store.SaveCheckpoint("products", pos1, &total))

	cp, err = store.GetCheckpoint("products")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "products", cp.Entity)
	assert.Equal(t, pos1, cp.LastPosition)
	require.NotNil(t, cp.Total)
	assert.Equal(t, 42, *cp.Total)

	// Upsert replaces last_position and total wholesale
	pos2 := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	require.NoError(t, store.SaveCheckpoint("products", pos2, nil))

	cp, err = store.GetCheckpoint("products")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, pos2, cp.LastPosition)
	assert.Nil(t, cp.Total, "total is replaced, not merged")

	// Clear forces a full resync
	require.NoError(t, store.ClearCheckpoint("products"))
	cp, err = store.GetCheckpoint("products")
	require.NoError(t, err)
	assert.Nil(t, cp)

	// Clearing again is not an error
	require.NoError(t, store.ClearCheckpoint("products"))
}

func TestStorage_CheckpointIsPerEntity(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveCheckpoint("products", "2026-01-01T00:00:00Z", nil))
	require.NoError(t, store.SaveCheckpoint("orders", "2026-02-01T00:00:00Z", nil))

	products, err := store.GetCheckpoint("products")
	require.NoError(t, err)
	orders, err := store.GetCheckpoint("orders")
	require.NoError(t, err)

	assert.Equal(t, "2026-01-01T00:00:00Z", products.LastPosition)
	assert.Equal(t, "2026-02-01T00:00:00Z", orders.LastPosition)
}

func TestStorage_MappingUpsertAndLookup(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	// Absent
	m, err := store.GetMappingBySourceID(EntityTypeProduct, "src-1")
	require.NoError(t, err)
	assert.Nil(t, m)

	// Create
	require.NoError(t, store.UpsertMapping(EntityTypeProduct, "src-1", "tgt-1", map[string]string{"sku": "ABC"}))

	m, err = store.GetMappingBySourceID(EntityTypeProduct, "src-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "tgt-1", m.TargetID)
	assert.Equal(t, "ABC", m.Metadata["sku"])

	// Reverse lookup
	m, err = store.GetMappingByTargetID(EntityTypeProduct, "tgt-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "src-1", m.SourceID)

	// Same source id under a different entity type is a separate mapping
	m, err = store.GetMappingBySourceID(EntityTypeOrder, "src-1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestStorage_MappingMetadataShallowMerge(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.UpsertMapping(EntityTypeOrder, "order-9", "inv-1", map[string]string{
		"invoice_number": "",
		"channel":        "shopify",
	}))

	// New keys override, unspecified keys preserved; empty targetID keeps the old one
	require.NoError(t, store.UpsertMapping(EntityTypeOrder, "order-9", "", map[string]string{
		"invoice_number": "INV-2026-001",
	}))

	m, err := store.GetMappingBySourceID(EntityTypeOrder, "order-9")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "inv-1", m.TargetID)
	assert.Equal(t, "INV-2026-001", m.Metadata["invoice_number"])
	assert.Equal(t, "shopify", m.Metadata["channel"])

	// Only one row per (entity_type, source_id): re-mapping updates in place
	require.NoError(t, store.UpsertMapping(EntityTypeOrder, "order-9", "inv-2", nil))
	m, err = store.GetMappingBySourceID(EntityTypeOrder, "order-9")
	require.NoError(t, err)
	assert.Equal(t, "inv-2", m.TargetID)
}

func TestStorage_SyncLogs(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendSyncLog(&SyncLogRecord{
			Entity:    "products",
			Direction: "books->shopify",
			Status:    "success",
			Message:   "created",
			CreatedAt: time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, store.AppendSyncLog(&SyncLogRecord{
		Entity:    "orders",
		Direction: "shopify->books",
		Status:    "failed",
		Message:   "invoice create rejected",
	}))

	records, err := store.ListSyncLogs("products", 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first
	assert.True(t, !records[0].CreatedAt.Before(records[1].CreatedAt))

	all, err := store.ListSyncLogs("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	limited, err := store.ListSyncLogs("products", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStorage_MatchesSQLiteSemantics(t *testing.T) {
	mem := NewMemoryStorage()
	defer mem.Close()

	cp, err := mem.GetCheckpoint("products")
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, mem.SaveCheckpoint("products", "2026-01-01T00:00:00Z", nil))
	cp, err = mem.GetCheckpoint("products")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "2026-01-01T00:00:00Z", cp.LastPosition)

	require.NoError(t, mem.UpsertMapping(EntityTypeProduct, "s1", "t1", map[string]string{"a": "1"}))
	require.NoError(t, mem.UpsertMapping(EntityTypeProduct, "s1", "", map[string]string{"b": "2"}))

	m, err := mem.GetMappingBySourceID(EntityTypeProduct, "s1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "t1", m.TargetID)
	assert.Equal(t, "1", m.Metadata["a"])
	assert.Equal(t, "2", m.Metadata["b"])

	m, err = mem.GetMappingByTargetID(EntityTypeProduct, "t1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "s1", m.SourceID)
}

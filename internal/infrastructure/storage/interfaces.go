package storage

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, an
// in-memory store for tests) and keeps the sync engine free of SQL.
//
// All updates are last-writer-wins: there is no conflict detection if two
// processes race on the same row. A single active poller/orchestrator per
// entity is assumed and enforced by the run registry, not here.
type Repository interface {
	CheckpointRepository
	MappingRepository
	SyncLogRepository
	Close() error
}

// CheckpointRepository handles durable sync cursors, one row per entity
// stream.
type CheckpointRepository interface {
	// GetCheckpoint returns the checkpoint for an entity, or nil if the
	// entity has never completed a run.
	GetCheckpoint(entity string) (*SyncCheckpoint, error)

	// SaveCheckpoint upserts the checkpoint, replacing lastPosition and
	// total wholesale. Callers must only save after the corresponding
	// batch has fully settled.
	SaveCheckpoint(entity, lastPosition string, total *int) error

	// ClearCheckpoint deletes the row, forcing a full resync on the next
	// run. Not an error if no row exists.
	ClearCheckpoint(entity string) error
}

// MappingRepository handles durable cross-system identity mappings.
type MappingRepository interface {
	// GetMappingBySourceID looks up a mapping by (entityType, sourceID).
	// Returns nil when absent.
	GetMappingBySourceID(entityType, sourceID string) (*EntityMapping, error)

	// GetMappingByTargetID is the reverse lookup by (entityType, targetID).
	// Returns nil when absent.
	GetMappingByTargetID(entityType, targetID string) (*EntityMapping, error)

	// UpsertMapping creates the mapping if absent. Otherwise it merges
	// metadata shallowly (new keys override, unspecified keys preserved)
	// and updates targetID when non-empty. Mappings are never auto-deleted.
	UpsertMapping(entityType, sourceID, targetID string, metadata map[string]string) error
}

// SyncLogRepository handles the sync audit log.
type SyncLogRepository interface {
	// AppendSyncLog writes one log record.
	AppendSyncLog(record *SyncLogRecord) error

	// ListSyncLogs returns the most recent records for an entity, newest
	// first. An empty entity returns records for all entities.
	ListSyncLogs(entity string, limit int) ([]SyncLogRecord, error)
}

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite-backed access to checkpoints, identity
// mappings and the sync log. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// GetCheckpoint returns the checkpoint for an entity, or nil if never run.
func (s *Storage) GetCheckpoint(entity string) (*SyncCheckpoint, error) {
	query := `
	SELECT entity, last_position, total, updated_at
	FROM sync_checkpoints WHERE entity = ?
	`

	cp := &SyncCheckpoint{}
	var total sql.NullInt64
	err := s.db.QueryRow(query, entity).Scan(
		&cp.Entity,
		&cp.LastPosition,
		&total,
		&cp.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if total.Valid {
		n := int(total.Int64)
		cp.Total = &n
	}

	return cp, nil
}

// SaveCheckpoint upserts the checkpoint row, replacing last_position and
// total wholesale (last-writer-wins, no merge).
func (s *Storage) SaveCheckpoint(entity, lastPosition string, total *int) error {
	query := `
	INSERT INTO sync_checkpoints (entity, last_position, total, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(entity) DO UPDATE SET
		last_position = excluded.last_position,
		total = excluded.total,
		updated_at = excluded.updated_at
	`

	var totalVal interface{}
	if total != nil {
		totalVal = *total
	}

	_, err := s.db.Exec(query, entity, lastPosition, totalVal, time.Now().UTC())
	return err
}

// ClearCheckpoint deletes the checkpoint row for a forced full resync.
func (s *Storage) ClearCheckpoint(entity string) error {
	_, err := s.db.Exec(`DELETE FROM sync_checkpoints WHERE entity = ?`, entity)
	return err
}

// GetMappingBySourceID looks up a mapping by (entityType, sourceID).
func (s *Storage) GetMappingBySourceID(entityType, sourceID string) (*EntityMapping, error) {
	return s.getMapping(`entity_type = ? AND source_id = ?`, entityType, sourceID)
}

// GetMappingByTargetID looks up a mapping by (entityType, targetID).
func (s *Storage) GetMappingByTargetID(entityType, targetID string) (*EntityMapping, error) {
	return s.getMapping(`entity_type = ? AND target_id = ?`, entityType, targetID)
}

func (s *Storage) getMapping(where string, args ...interface{}) (*EntityMapping, error) {
	query := `
	SELECT id, entity_type, source_id, target_id, metadata_json, created_at, updated_at
	FROM entity_mappings WHERE ` + where

	m := &EntityMapping{}
	var metadataRaw string
	err := s.db.QueryRow(query, args...).Scan(
		&m.ID,
		&m.EntityType,
		&m.SourceID,
		&m.TargetID,
		&metadataRaw,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.Metadata = parseMetadata(metadataRaw)
	return m, nil
}

// UpsertMapping creates the mapping if absent; otherwise merges metadata
// shallowly and updates target_id when non-empty.
func (s *Storage) UpsertMapping(entityType, sourceID, targetID string, metadata map[string]string) error {
	existing, err := s.GetMappingBySourceID(entityType, sourceID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if existing == nil {
		query := `
		INSERT INTO entity_mappings (entity_type, source_id, target_id, metadata_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.Exec(query, entityType, sourceID, targetID, metadataJSON(metadata), now, now)
		return err
	}

	merged := existing.Metadata
	if merged == nil {
		merged = make(map[string]string)
	}
	for k, v := range metadata {
		merged[k] = v
	}

	newTargetID := existing.TargetID
	if targetID != "" {
		newTargetID = targetID
	}

	query := `
	UPDATE entity_mappings
	SET target_id = ?, metadata_json = ?, updated_at = ?
	WHERE entity_type = ? AND source_id = ?
	`
	_, err = s.db.Exec(query, newTargetID, metadataJSON(merged), now, entityType, sourceID)
	return err
}

// AppendSyncLog writes one sync log record.
func (s *Storage) AppendSyncLog(record *SyncLogRecord) error {
	query := `
	INSERT INTO sync_logs (entity, direction, status, message, request_json, response_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(query,
		record.Entity,
		record.Direction,
		record.Status,
		record.Message,
		record.RequestJSON,
		record.ResponseJSON,
		createdAt,
	)
	return err
}

// ListSyncLogs returns the most recent records for an entity, newest first.
func (s *Storage) ListSyncLogs(entity string, limit int) ([]SyncLogRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, entity, direction, status, message, request_json, response_json, created_at
	FROM sync_logs
	`
	args := []interface{}{}
	if entity != "" {
		query += ` WHERE entity = ?`
		args = append(args, entity)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []SyncLogRecord
	for rows.Next() {
		var r SyncLogRecord
		err := rows.Scan(
			&r.ID,
			&r.Entity,
			&r.Direction,
			&r.Status,
			&r.Message,
			&r.RequestJSON,
			&r.ResponseJSON,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

package storage

import (
	"sync"
	"time"
)

// MemoryStorage is an in-memory Repository implementation for tests.
type MemoryStorage struct {
	mu          sync.RWMutex
	checkpoints map[string]*SyncCheckpoint
	mappings    map[string]*EntityMapping // keyed by entityType + "\x00" + sourceID
	logs        []SyncLogRecord
	nextID      int64
}

var _ Repository = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory repository.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		checkpoints: make(map[string]*SyncCheckpoint),
		mappings:    make(map[string]*EntityMapping),
		nextID:      1,
	}
}

// Close is a no-op for the in-memory store.
func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) GetCheckpoint(entity string) (*SyncCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[entity]
	if !ok {
		return nil, nil
	}
	copied := *cp
	return &copied, nil
}

func (m *MemoryStorage) SaveCheckpoint(entity, lastPosition string, total *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := &SyncCheckpoint{
		Entity:       entity,
		LastPosition: lastPosition,
		UpdatedAt:    time.Now().UTC(),
	}
	if total != nil {
		n := *total
		cp.Total = &n
	}
	m.checkpoints[entity] = cp
	return nil
}

func (m *MemoryStorage) ClearCheckpoint(entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, entity)
	return nil
}

func mappingKey(entityType, sourceID string) string {
	return entityType + "\x00" + sourceID
}

func (m *MemoryStorage) GetMappingBySourceID(entityType, sourceID string) (*EntityMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.mappings[mappingKey(entityType, sourceID)]
	if !ok {
		return nil, nil
	}
	return copyMapping(mapping), nil
}

func (m *MemoryStorage) GetMappingByTargetID(entityType, targetID string) (*EntityMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mapping := range m.mappings {
		if mapping.EntityType == entityType && mapping.TargetID == targetID {
			return copyMapping(mapping), nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpsertMapping(entityType, sourceID, targetID string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	key := mappingKey(entityType, sourceID)

	existing, ok := m.mappings[key]
	if !ok {
		mapping := &EntityMapping{
			ID:         m.nextID,
			EntityType: entityType,
			SourceID:   sourceID,
			TargetID:   targetID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		m.nextID++
		if len(metadata) > 0 {
			mapping.Metadata = make(map[string]string, len(metadata))
			for k, v := range metadata {
				mapping.Metadata[k] = v
			}
		}
		m.mappings[key] = mapping
		return nil
	}

	if targetID != "" {
		existing.TargetID = targetID
	}
	if len(metadata) > 0 {
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			existing.Metadata[k] = v
		}
	}
	existing.UpdatedAt = now
	return nil
}

func (m *MemoryStorage) AppendSyncLog(record *SyncLogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := *record
	r.ID = m.nextID
	m.nextID++
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.logs = append(m.logs, r)
	return nil
}

func (m *MemoryStorage) ListSyncLogs(entity string, limit int) ([]SyncLogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var records []SyncLogRecord
	for i := len(m.logs) - 1; i >= 0 && len(records) < limit; i-- {
		if entity != "" && m.logs[i].Entity != entity {
			continue
		}
		records = append(records, m.logs[i])
	}
	return records, nil
}

func copyMapping(m *EntityMapping) *EntityMapping {
	copied := *m
	if m.Metadata != nil {
		copied.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

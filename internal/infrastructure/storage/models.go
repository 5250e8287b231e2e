package storage

import (
	"encoding/json"
	"time"
)

// Entity type constants for identity mappings.
const (
	EntityTypeProduct = "product"
	EntityTypeOrder   = "order"
	EntityTypeContact = "contact"
)

// SyncCheckpoint is the durable cursor for one sync entity stream.
// LastPosition is an opaque position string; for every stream this core
// drives it is an RFC3339Nano update timestamp, which keeps the
// monotonic comparison trivial.
type SyncCheckpoint struct {
	Entity       string    `json:"entity"`
	LastPosition string    `json:"last_position"`
	Total        *int      `json:"total,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EntityMapping is a durable cross-system correspondence between a
// source entity id and a target entity id, plus opaque metadata
// (e.g. an invoice number once it becomes known).
type EntityMapping struct {
	ID         int64             `json:"id"`
	EntityType string            `json:"entity_type"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// metadataJSON serializes mapping metadata for storage.
func metadataJSON(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}

// parseMetadata deserializes mapping metadata from storage.
func parseMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil
	}
	return metadata
}

// SyncLogRecord is one entry in the sync audit log. Writes are
// best-effort; a failed log write never fails the sync itself.
type SyncLogRecord struct {
	ID           int64     `json:"id"`
	Entity       string    `json:"entity"`
	Direction    string    `json:"direction"` // "shopify->books", "books->shopify", ...
	Status       string    `json:"status"`    // "success", "failed", "skipped"
	Message      string    `json:"message,omitempty"`
	RequestJSON  string    `json:"request_json,omitempty"`
	ResponseJSON string    `json:"response_json,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

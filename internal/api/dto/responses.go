package dto

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewHealthResponse returns the canonical healthy response.
func NewHealthResponse() HealthResponse {
	return HealthResponse{Status: "ok", Service: "storefront-sync"}
}

// MessageResponse carries a simple confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// RunProgressResponse is a run's live counters.
type RunProgressResponse struct {
	Total      int    `json:"total"`
	Scanned    int    `json:"scanned"`
	Processed  int    `json:"processed"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	LastUpdate string `json:"lastUpdate"`
}

// RunResponse describes one sync run.
type RunResponse struct {
	RunID       string              `json:"runId"`
	Entity      string              `json:"entity"`
	Status      string              `json:"status"`
	Full        bool                `json:"full"`
	StartedAt   string              `json:"startedAt"`
	CompletedAt *string             `json:"completedAt,omitempty"`
	Progress    RunProgressResponse `json:"progress"`
	Error       *string             `json:"error,omitempty"`
}

// ActiveRunsResponse is the body of GET /api/sync/active.
type ActiveRunsResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// CheckpointResponse is the body of GET /api/checkpoints/{entity}.
type CheckpointResponse struct {
	Entity       string `json:"entity"`
	LastPosition string `json:"lastPosition"`
	Total        *int   `json:"total,omitempty"`
	UpdatedAt    string `json:"updatedAt"`
}

// SyncLogEntry is one audit record in GET /api/logs responses.
type SyncLogEntry struct {
	ID        int64  `json:"id"`
	Entity    string `json:"entity"`
	Direction string `json:"direction"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// SyncLogsResponse is the body of GET /api/logs/{entity}.
type SyncLogsResponse struct {
	Logs  []SyncLogEntry `json:"logs"`
	Count int            `json:"count"`
}

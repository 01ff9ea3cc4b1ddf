// Package store persists marker definitions and analysis runs in SQLite.
package store

import (
	"encoding/json"
	"time"
)

// ListParams holds parameters for listing marker definitions.
type ListParams struct {
	Level    string
	Category string
	Limit    int // 0 means no limit
}

// SearchParams holds parameters for searching marker definitions.
type SearchParams struct {
	Query string
	Level string
	Limit int
}

// RunListParams holds parameters for listing saved runs.
type RunListParams struct {
	SessionID string
	Limit     int
}

// ImportResult reports what an upsert batch did.
type ImportResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
}

// Run is one persisted analysis. Payload is the full export document;
// listings omit it.
type Run struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	CatalogVersion string          `json:"catalog_version"`
	CreatedAt      time.Time       `json:"created_at"`
	Events         int             `json:"events"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

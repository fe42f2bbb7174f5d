package models

import (
	"time"

	"github.com/google/uuid"
)

// Repo is a repository registration in the control namespace
type Repo struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	SchemaName string    `json:"schema_name" db:"schema_name"`
	RootPath   string    `json:"root_path" db:"root_path"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	AutoIndex  bool      `json:"auto_index" db:"auto_index"`
	AutoEmbed  bool      `json:"auto_embed" db:"auto_embed"`
	AutoWatch  bool      `json:"auto_watch" db:"auto_watch"`
	AutoSumm   bool      `json:"auto_summaries" db:"auto_summaries"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Flags returns the per-repo feature flags that drive follow-up fan-out
func (r *Repo) Flags() RepoFlags {
	return RepoFlags{
		AutoEmbed:     r.AutoEmbed,
		AutoSummaries: r.AutoSumm,
	}
}

// RepoFlags is the subset of registration flags consulted by the follow-up
// map. Follow-ups are a pure function of (job_type, payload, flags).
type RepoFlags struct {
	AutoEmbed     bool
	AutoSummaries bool
}

// RepoListing is one row of the schema manager's repo enumeration, joining a
// per-repo namespace with its repo and index-state rows.
type RepoListing struct {
	SchemaName    string     `json:"schema_name" db:"schema_name"`
	RepoName      string     `json:"repo_name" db:"repo_name"`
	RepoID        string     `json:"repo_id" db:"repo_id"`
	RootPath      string     `json:"root_path" db:"root_path"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty" db:"last_indexed_at"`
	FileCount     int        `json:"file_count" db:"file_count"`
	SymbolCount   int        `json:"symbol_count" db:"symbol_count"`
	ChunkCount    int        `json:"chunk_count" db:"chunk_count"`
}

// IndexState mirrors the per-repo repo_index_state row maintained by
// processors and read by the health monitor and status queries.
type IndexState struct {
	RepoID         uuid.UUID  `json:"repo_id" db:"repo_id"`
	LastIndexedAt  *time.Time `json:"last_indexed_at,omitempty" db:"last_indexed_at"`
	LastScanCommit *string    `json:"last_scan_commit,omitempty" db:"last_scan_commit"`
	LastScanHash   *string    `json:"last_scan_hash,omitempty" db:"last_scan_hash"`
	FileCount      int        `json:"file_count" db:"file_count"`
	SymbolCount    int        `json:"symbol_count" db:"symbol_count"`
	ChunkCount     int        `json:"chunk_count" db:"chunk_count"`
	EdgeCount      int        `json:"edge_count" db:"edge_count"`
	LastError      *string    `json:"last_error,omitempty" db:"last_error"`
}

// DaemonStatus represents a daemon instance lifecycle state
type DaemonStatus string

const (
	DaemonStatusRunning DaemonStatus = "RUNNING"
	DaemonStatusStopped DaemonStatus = "STOPPED"
)

// DaemonInstance is one daemon's registration and heartbeat row
type DaemonInstance struct {
	InstanceID    string       `json:"instance_id" db:"instance_id"`
	StartedAt     time.Time    `json:"started_at" db:"started_at"`
	LastHeartbeat time.Time    `json:"last_heartbeat" db:"last_heartbeat"`
	Status        DaemonStatus `json:"status" db:"status"`
	Config        []byte       `json:"config" db:"config"`
}

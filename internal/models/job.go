package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusClaimed JobStatus = "CLAIMED"
	JobStatusDone    JobStatus = "DONE"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobType tags a job with the processor that handles it
type JobType string

const (
	JobTypeFullIndex         JobType = "FULL_INDEX"
	JobTypeReindexFile       JobType = "REINDEX_FILE"
	JobTypeReindexMany       JobType = "REINDEX_MANY"
	JobTypeDocsScan          JobType = "DOCS_SCAN"
	JobTypeTagRulesSync      JobType = "TAG_RULES_SYNC"
	JobTypeEmbedMissing      JobType = "EMBED_MISSING"
	JobTypeEmbedSummaries    JobType = "EMBED_SUMMARIES"
	JobTypeSummarizeFiles    JobType = "SUMMARIZE_FILES"
	JobTypeSummarizeSymbols  JobType = "SUMMARIZE_SYMBOLS"
	JobTypeRegenerateSummary JobType = "REGENERATE_SUMMARY"
)

// Canonical priorities, higher runs earlier. Every enqueuer uses this single
// mapping so queue ordering stays consistent across producers.
var jobPriorities = map[JobType]int{
	JobTypeFullIndex:         10,
	JobTypeReindexFile:       10,
	JobTypeReindexMany:       10,
	JobTypeDocsScan:          9,
	JobTypeTagRulesSync:      7,
	JobTypeEmbedMissing:      5,
	JobTypeSummarizeFiles:    4,
	JobTypeSummarizeSymbols:  4,
	JobTypeEmbedSummaries:    3,
	JobTypeRegenerateSummary: 2,
}

// PriorityWatchEvent is the priority for watcher-originated reindex jobs:
// above scheduled reindex, below interactive re-index.
const PriorityWatchEvent = 6

// PriorityHealthEmbed is the priority the health monitor uses when it
// self-heals a coverage gap.
const PriorityHealthEmbed = 4

// Priority returns the canonical priority for a job type
func Priority(jt JobType) int {
	if p, ok := jobPriorities[jt]; ok {
		return p
	}

	return 5
}

// AllJobTypes returns every supported job type
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeFullIndex,
		JobTypeReindexFile,
		JobTypeReindexMany,
		JobTypeDocsScan,
		JobTypeTagRulesSync,
		JobTypeEmbedMissing,
		JobTypeEmbedSummaries,
		JobTypeSummarizeFiles,
		JobTypeSummarizeSymbols,
		JobTypeRegenerateSummary,
	}
}

// ValidJobType reports whether jt is a supported job type
func ValidJobType(jt JobType) bool {
	_, ok := jobPriorities[jt]
	return ok
}

// Job represents a durable work item in the queue
type Job struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	RepoName    string          `json:"repo_name" db:"repo_name"`
	SchemaName  string          `json:"schema_name" db:"schema_name"`
	JobType     JobType         `json:"job_type" db:"job_type"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Priority    int             `json:"priority" db:"priority"`
	Status      JobStatus       `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	MaxAttempts int             `json:"max_attempts" db:"max_attempts"`
	ClaimedBy   *string         `json:"claimed_by,omitempty" db:"claimed_by"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty" db:"claimed_at"`
	RunAfter    time.Time       `json:"run_after" db:"run_after"`
	DedupKey    *string         `json:"dedup_key,omitempty" db:"dedup_key"`
	Error       *string         `json:"error,omitempty" db:"error"`
	ErrorDetail json.RawMessage `json:"error_detail,omitempty" db:"error_detail"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// Terminal reports whether the job can never run again
func (j *Job) Terminal() bool {
	if j.Status == JobStatusDone {
		return true
	}

	return j.Status == JobStatusFailed && j.Attempts >= j.MaxAttempts
}

// ErrorDetail captures the classified failure recorded on a job row
type ErrorDetail struct {
	Type    string `json:"error_type"`
	Message string `json:"error_message"`
}

// EncodeErrorDetail marshals an ErrorDetail for storage on the job row
func EncodeErrorDetail(d ErrorDetail) json.RawMessage {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}

	return raw
}

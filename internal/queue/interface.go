package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/TheYonk/robomonkey/internal/models"
)

// Queue is the durable multi-writer/multi-reader job queue. All operations
// are atomic with respect to concurrent callers; the store is the only
// synchronization point, so multiple daemon instances can share one queue.
type Queue interface {
	// Enqueue adds a job. When DedupKey is set and a non-terminal row with
	// the same (repo_name, job_type, dedup_key) exists, nothing is inserted
	// and the result reports Deduplicated.
	Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error)

	// Claim atomically selects up to Limit runnable PENDING jobs ordered by
	// (priority DESC, created_at ASC), marks them CLAIMED by workerID, and
	// increments attempts. Concurrent claimers receive disjoint sets.
	Claim(ctx context.Context, workerID string, opts ClaimOptions) ([]*models.Job, error)

	// Complete transitions CLAIMED -> DONE if the row is still owned by
	// workerID. Returns false on ownership loss.
	Complete(ctx context.Context, jobID uuid.UUID, workerID string) (bool, error)

	// Fail records a failure. Retryable failures below max_attempts return
	// to PENDING with a backoff-delayed run_after; exhausted or permanent
	// failures become FAILED. Returns false on ownership loss.
	Fail(ctx context.Context, jobID uuid.UUID, workerID string, cause FailCause) (bool, error)

	// ReleaseStuck rewrites CLAIMED rows older than olderThan back to
	// PENDING without touching attempts, returning what was released.
	ReleaseStuck(ctx context.Context, olderThan time.Duration) ([]StuckJob, error)

	// CleanupOldJobs removes DONE rows older than retention
	CleanupOldJobs(ctx context.Context, retention time.Duration) (int, error)

	// Stats returns counts by status, optionally filtered by repo
	Stats(ctx context.Context, repoName string) (*Stats, error)

	// RecentJobs returns the newest jobs, optionally filtered by repo
	RecentJobs(ctx context.Context, repoName string, limit int) ([]*models.Job, error)

	// ListJobs returns jobs matching the filter, newest first
	ListJobs(ctx context.Context, filter ListFilter) ([]*models.Job, error)

	// PendingRepos returns the distinct repo names with runnable PENDING
	// work, for the per-repo worker coordinator.
	PendingRepos(ctx context.Context) ([]string, error)
}

// EnqueueRequest describes a job to insert
type EnqueueRequest struct {
	RepoName    string
	SchemaName  string
	JobType     models.JobType
	Payload     json.RawMessage
	Priority    int
	DedupKey    string
	MaxAttempts int // 0 uses the queue default
}

// EnqueueResult reports the outcome of an enqueue
type EnqueueResult struct {
	JobID        uuid.UUID
	Deduplicated bool
}

// ClaimOptions filters a claim
type ClaimOptions struct {
	Types    []models.JobType // nil claims any type
	RepoName string           // empty claims any repo
	Limit    int
}

// FailCause carries the classified failure recorded on the job row.
// Permanent failures (validation, unknown repo) burn all remaining attempts.
type FailCause struct {
	Error     string
	Detail    models.ErrorDetail
	Permanent bool
}

// Stats is the queue's count-by-status summary
type Stats struct {
	Pending         int        `json:"pending" db:"pending"`
	Claimed         int        `json:"claimed" db:"claimed"`
	Done            int        `json:"done" db:"done"`
	Failed          int        `json:"failed" db:"failed"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty" db:"last_completed_at"`
}

// StuckJob describes a CLAIMED row released by ReleaseStuck
type StuckJob struct {
	ID        uuid.UUID      `db:"id"`
	RepoName  string         `db:"repo_name"`
	JobType   models.JobType `db:"job_type"`
	ClaimedBy string         `db:"claimed_by"`
	ClaimedAt time.Time      `db:"claimed_at"`
}

// ListFilter narrows a job listing
type ListFilter struct {
	RepoName string
	Status   models.JobStatus
	JobType  models.JobType
	Limit    int
}

// Options tunes queue behavior. Shared by implementations.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultOptions returns the queue defaults used when config is absent
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 5,
		BackoffBase: time.Minute,
		BackoffCap:  time.Hour,
	}
}

// Backoff computes the retry delay after a failed attempt: base doubled per
// prior attempt, capped. attempt is 1-based (the attempt that just failed).
func (o Options) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := o.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.BackoffCap {
			return o.BackoffCap
		}
	}

	if d > o.BackoffCap {
		return o.BackoffCap
	}

	return d
}

// Event is a job lifecycle transition published to the optional event feed
type Event struct {
	Kind     string         `json:"kind"` // enqueued | completed | failed | released
	JobID    uuid.UUID      `json:"job_id"`
	RepoName string         `json:"repo_name"`
	JobType  models.JobType `json:"job_type"`
	At       time.Time      `json:"at"`
	Error    string         `json:"error,omitempty"`
}

// EventSink receives job lifecycle events. Implementations must never block
// queue operations; failures are theirs to swallow.
type EventSink interface {
	JobEvent(ctx context.Context, ev Event)
}

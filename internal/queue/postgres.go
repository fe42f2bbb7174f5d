package queue

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// Postgres is the durable queue backed by the control namespace.
// Claim safety rests on FOR UPDATE SKIP LOCKED; dedup safety rests on the
// partial unique index over active (repo_name, job_type, dedup_key) rows.
type Postgres struct {
	db     *sqlx.DB
	opts   Options
	logger logger.Logger
	events EventSink
}

// NewPostgres creates a Postgres-backed queue
func NewPostgres(db *sqlx.DB, opts Options, log logger.Logger) *Postgres {
	if opts.MaxAttempts <= 0 {
		opts = DefaultOptions()
	}

	return &Postgres{
		db:     db,
		opts:   opts,
		logger: log.Named("queue"),
	}
}

// WithEvents attaches an event sink receiving job lifecycle transitions
func (q *Postgres) WithEvents(sink EventSink) *Postgres {
	q.events = sink
	return q
}

// Enqueue adds a job, deduplicating against active rows when a dedup key is
// provided. The advisory pre-check keeps the common case cheap; the unique
// index absorbs the race between concurrent producers.
func (q *Postgres) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error) {
	if !models.ValidJobType(req.JobType) {
		return EnqueueResult{}, errors.Newf("unknown job type %q", req.JobType).
			WithCode(errors.CodeValidation)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.opts.MaxAttempts
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var dedupKey any
	if req.DedupKey != "" {
		dedupKey = req.DedupKey

		var existing uuid.UUID
		err := q.db.GetContext(ctx, &existing, `
			SELECT id FROM robomonkey_control.job_queue
			WHERE repo_name = $1
			  AND job_type = $2
			  AND dedup_key = $3
			  AND status IN ('PENDING', 'CLAIMED')
			LIMIT 1`,
			req.RepoName, string(req.JobType), req.DedupKey)

		if err == nil {
			q.logger.Debug("job deduplicated",
				"repo", req.RepoName, "job_type", req.JobType, "dedup_key", req.DedupKey)
			return EnqueueResult{JobID: existing, Deduplicated: true}, nil
		}

		if err != sql.ErrNoRows {
			return EnqueueResult{}, errors.Wrap(err, "dedup lookup failed").
				WithCode(errors.CodeDatabase)
		}
	}

	var id uuid.UUID
	err := q.db.GetContext(ctx, &id, `
		INSERT INTO robomonkey_control.job_queue (
			repo_name, schema_name, job_type, payload,
			priority, max_attempts, dedup_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (repo_name, job_type, dedup_key)
			WHERE dedup_key IS NOT NULL AND status IN ('PENDING', 'CLAIMED')
			DO NOTHING
		RETURNING id`,
		req.RepoName, req.SchemaName, string(req.JobType), []byte(payload),
		req.Priority, maxAttempts, dedupKey)

	if err == sql.ErrNoRows {
		// Lost the insert race to another producer with the same key
		return EnqueueResult{Deduplicated: true}, nil
	}

	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return EnqueueResult{Deduplicated: true}, nil
		}

		return EnqueueResult{}, errors.Wrap(err, "failed to enqueue job").
			WithCode(errors.CodeDatabase)
	}

	q.logger.Info("job enqueued",
		"job_id", id, "repo", req.RepoName, "job_type", req.JobType, "priority", req.Priority)

	q.emit(ctx, Event{
		Kind: "enqueued", JobID: id,
		RepoName: req.RepoName, JobType: req.JobType, At: time.Now().UTC(),
	})

	return EnqueueResult{JobID: id}, nil
}

// Claim atomically takes up to opts.Limit runnable jobs. The inner SELECT
// uses FOR UPDATE SKIP LOCKED so concurrent claimers never serialize on each
// other and never receive overlapping sets.
func (q *Postgres) Claim(ctx context.Context, workerID string, opts ClaimOptions) ([]*models.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}

	var typeFilter any
	if len(opts.Types) > 0 {
		names := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			names[i] = string(t)
		}
		typeFilter = pq.Array(names)
	}

	var repoFilter any
	if opts.RepoName != "" {
		repoFilter = opts.RepoName
	}

	var jobs []*models.Job
	err := q.db.SelectContext(ctx, &jobs, `
		UPDATE robomonkey_control.job_queue
		SET status = 'CLAIMED',
		    claimed_by = $1,
		    claimed_at = now(),
		    attempts = attempts + 1,
		    updated_at = now()
		WHERE id IN (
			SELECT id FROM robomonkey_control.job_queue
			WHERE status = 'PENDING'
			  AND run_after <= now()
			  AND ($2::text[] IS NULL OR job_type = ANY($2))
			  AND ($3::text IS NULL OR repo_name = $3)
			ORDER BY priority DESC, created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		workerID, typeFilter, repoFilter, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim jobs").
			WithCode(errors.CodeDatabase)
	}

	// UPDATE ... RETURNING does not guarantee row order
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}

		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	if len(jobs) > 0 {
		q.logger.Info("claimed jobs", "count", len(jobs), "worker", workerID)
	}

	return jobs, nil
}

// Complete transitions CLAIMED -> DONE under an ownership check
func (q *Postgres) Complete(ctx context.Context, jobID uuid.UUID, workerID string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE robomonkey_control.job_queue
		SET status = 'DONE',
		    completed_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND claimed_by = $2
		  AND status = 'CLAIMED'`,
		jobID, workerID)
	if err != nil {
		return false, errors.Wrap(err, "failed to complete job").
			WithCode(errors.CodeDatabase)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		q.logger.Warn("lost job ownership during completion",
			"job_id", jobID, "worker", workerID)
		return false, nil
	}

	q.logger.Info("job completed", "job_id", jobID, "worker", workerID)

	q.emit(ctx, Event{Kind: "completed", JobID: jobID, At: time.Now().UTC()})
	return true, nil
}

// Fail records a failure under an ownership check. Below max_attempts and
// not permanent, the row re-enters PENDING with run_after pushed out by
// base * 2^(attempts-1), capped; otherwise it becomes FAILED.
func (q *Postgres) Fail(ctx context.Context, jobID uuid.UUID, workerID string, cause FailCause) (bool, error) {
	detail := models.EncodeErrorDetail(cause.Detail)

	res, err := q.db.ExecContext(ctx, `
		UPDATE robomonkey_control.job_queue
		SET status = CASE
		        WHEN $3 OR attempts >= max_attempts THEN 'FAILED'
		        ELSE 'PENDING'
		    END,
		    attempts = CASE
		        WHEN $3 THEN GREATEST(attempts, max_attempts)
		        ELSE attempts
		    END,
		    run_after = CASE
		        WHEN $3 OR attempts >= max_attempts THEN run_after
		        ELSE now() + LEAST($4 * POWER(2, GREATEST(attempts - 1, 0)), $5) * interval '1 second'
		    END,
		    claimed_by = NULL,
		    claimed_at = NULL,
		    error = $6,
		    error_detail = $7,
		    updated_at = now()
		WHERE id = $1
		  AND claimed_by = $2
		  AND status = 'CLAIMED'`,
		jobID, workerID, cause.Permanent,
		q.opts.BackoffBase.Seconds(), q.opts.BackoffCap.Seconds(),
		cause.Error, detail)
	if err != nil {
		return false, errors.Wrap(err, "failed to fail job").
			WithCode(errors.CodeDatabase)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		q.logger.Warn("lost job ownership during failure",
			"job_id", jobID, "worker", workerID)
		return false, nil
	}

	q.logger.Error("job failed",
		"job_id", jobID, "worker", workerID, "error", cause.Error, "permanent", cause.Permanent)

	q.emit(ctx, Event{Kind: "failed", JobID: jobID, At: time.Now().UTC(), Error: cause.Error})
	return true, nil
}

// ReleaseStuck rewrites long-CLAIMED rows back to PENDING. Attempts are not
// incremented; they already were at claim time.
func (q *Postgres) ReleaseStuck(ctx context.Context, olderThan time.Duration) ([]StuckJob, error) {
	// RETURNING sees the updated row, so the original owner has to come out
	// of a CTE snapshot taken before the rewrite.
	var released []StuckJob
	err := q.db.SelectContext(ctx, &released, `
		WITH stuck AS (
			SELECT id, repo_name, job_type, claimed_by, claimed_at
			FROM robomonkey_control.job_queue
			WHERE status = 'CLAIMED'
			  AND claimed_at < now() - $1 * interval '1 second'
			FOR UPDATE SKIP LOCKED
		)
		UPDATE robomonkey_control.job_queue j
		SET status = 'PENDING',
		    claimed_by = NULL,
		    claimed_at = NULL,
		    updated_at = now()
		FROM stuck s
		WHERE j.id = s.id
		RETURNING s.id, s.repo_name, s.job_type,
		          COALESCE(s.claimed_by, '') AS claimed_by, s.claimed_at`,
		olderThan.Seconds())
	if err != nil {
		return nil, errors.Wrap(err, "failed to release stuck jobs").
			WithCode(errors.CodeDatabase)
	}

	for _, s := range released {
		q.emit(ctx, Event{
			Kind: "released", JobID: s.ID,
			RepoName: s.RepoName, JobType: s.JobType, At: time.Now().UTC(),
		})
	}

	return released, nil
}

// CleanupOldJobs removes DONE rows older than retention
func (q *Postgres) CleanupOldJobs(ctx context.Context, retention time.Duration) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM robomonkey_control.job_queue
		WHERE status = 'DONE'
		  AND completed_at < now() - $1 * interval '1 second'`,
		retention.Seconds())
	if err != nil {
		return 0, errors.Wrap(err, "failed to clean up old jobs").
			WithCode(errors.CodeDatabase)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		q.logger.Info("cleaned up old jobs", "count", n)
	}

	return int(n), nil
}

// Stats returns counts by status, optionally filtered by repo
func (q *Postgres) Stats(ctx context.Context, repoName string) (*Stats, error) {
	var repoFilter any
	if repoName != "" {
		repoFilter = repoName
	}

	var stats Stats
	err := q.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
			COUNT(*) FILTER (WHERE status = 'CLAIMED') AS claimed,
			COUNT(*) FILTER (WHERE status = 'DONE') AS done,
			COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
			MAX(completed_at) AS last_completed_at
		FROM robomonkey_control.job_queue
		WHERE ($1::text IS NULL OR repo_name = $1)`,
		repoFilter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load queue stats").
			WithCode(errors.CodeDatabase)
	}

	return &stats, nil
}

// RecentJobs returns the newest jobs, optionally filtered by repo
func (q *Postgres) RecentJobs(ctx context.Context, repoName string, limit int) ([]*models.Job, error) {
	return q.ListJobs(ctx, ListFilter{RepoName: repoName, Limit: limit})
}

// ListJobs returns jobs matching the filter, newest first
func (q *Postgres) ListJobs(ctx context.Context, filter ListFilter) ([]*models.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	clauses := []string{"1 = 1"}
	args := []any{}

	if filter.RepoName != "" {
		args = append(args, filter.RepoName)
		clauses = append(clauses, "repo_name = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.JobType != "" {
		args = append(args, string(filter.JobType))
		clauses = append(clauses, "job_type = $"+strconv.Itoa(len(args)))
	}

	args = append(args, limit)
	query := `
		SELECT * FROM robomonkey_control.job_queue
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY created_at DESC
		LIMIT $` + strconv.Itoa(len(args))

	var jobs []*models.Job
	if err := q.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list jobs").
			WithCode(errors.CodeDatabase)
	}

	return jobs, nil
}

// PendingRepos returns distinct repo names with runnable PENDING work
func (q *Postgres) PendingRepos(ctx context.Context) ([]string, error) {
	var repos []string
	err := q.db.SelectContext(ctx, &repos, `
		SELECT DISTINCT repo_name
		FROM robomonkey_control.job_queue
		WHERE status = 'PENDING' AND run_after <= now()
		ORDER BY repo_name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending repos").
			WithCode(errors.CodeDatabase)
	}

	return repos, nil
}

func (q *Postgres) emit(ctx context.Context, ev Event) {
	if q.events != nil {
		q.events.JobEvent(ctx, ev)
	}
}

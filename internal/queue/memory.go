package queue

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheYonk/robomonkey/internal/models"
)

// Memory is an in-process Queue with the same semantics as the Postgres
// implementation: dedup over active rows, claim exclusivity, ownership
// checks, backoff on retry. It backs the worker-pool, health, and watcher
// unit tests, where the queue invariants must hold without a live store.
type Memory struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
	opts Options

	// NowFunc supplies the clock; tests override it to drive run_after
	NowFunc func() time.Time
}

// NewMemory creates an in-memory queue
func NewMemory(opts Options) *Memory {
	if opts.MaxAttempts <= 0 {
		opts = DefaultOptions()
	}

	return &Memory{
		jobs:    make(map[uuid.UUID]*models.Job),
		opts:    opts,
		NowFunc: time.Now,
	}
}

// Enqueue adds a job, deduplicating against active rows
func (m *Memory) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.NowFunc().UTC()

	if req.DedupKey != "" {
		for _, j := range m.jobs {
			if j.RepoName == req.RepoName &&
				j.JobType == req.JobType &&
				j.DedupKey != nil && *j.DedupKey == req.DedupKey &&
				(j.Status == models.JobStatusPending || j.Status == models.JobStatusClaimed) {
				return EnqueueResult{JobID: j.ID, Deduplicated: true}, nil
			}
		}
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = m.opts.MaxAttempts
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	job := &models.Job{
		ID:          uuid.New(),
		RepoName:    req.RepoName,
		SchemaName:  req.SchemaName,
		JobType:     req.JobType,
		Payload:     payload,
		Priority:    req.Priority,
		Status:      models.JobStatusPending,
		MaxAttempts: maxAttempts,
		RunAfter:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.DedupKey != "" {
		key := req.DedupKey
		job.DedupKey = &key
	}

	m.jobs[job.ID] = job
	return EnqueueResult{JobID: job.ID}, nil
}

// Claim atomically takes up to opts.Limit runnable jobs
func (m *Memory) Claim(ctx context.Context, workerID string, opts ClaimOptions) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}

	now := m.NowFunc().UTC()

	var runnable []*models.Job
	for _, j := range m.jobs {
		if j.Status != models.JobStatusPending || j.RunAfter.After(now) {
			continue
		}
		if opts.RepoName != "" && j.RepoName != opts.RepoName {
			continue
		}
		if len(opts.Types) > 0 && !containsType(opts.Types, j.JobType) {
			continue
		}

		runnable = append(runnable, j)
	}

	sort.Slice(runnable, func(i, j int) bool {
		if runnable[i].Priority != runnable[j].Priority {
			return runnable[i].Priority > runnable[j].Priority
		}
		if !runnable[i].CreatedAt.Equal(runnable[j].CreatedAt) {
			return runnable[i].CreatedAt.Before(runnable[j].CreatedAt)
		}

		return runnable[i].ID.String() < runnable[j].ID.String()
	})

	if len(runnable) > limit {
		runnable = runnable[:limit]
	}

	claimed := make([]*models.Job, 0, len(runnable))
	for _, j := range runnable {
		worker := workerID
		at := now
		j.Status = models.JobStatusClaimed
		j.ClaimedBy = &worker
		j.ClaimedAt = &at
		j.Attempts++
		j.UpdatedAt = now

		cp := *j
		claimed = append(claimed, &cp)
	}

	return claimed, nil
}

// Complete transitions CLAIMED -> DONE under an ownership check
func (m *Memory) Complete(ctx context.Context, jobID uuid.UUID, workerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.Status != models.JobStatusClaimed || j.ClaimedBy == nil || *j.ClaimedBy != workerID {
		return false, nil
	}

	now := m.NowFunc().UTC()
	j.Status = models.JobStatusDone
	j.CompletedAt = &now
	j.UpdatedAt = now

	return true, nil
}

// Fail records a failure under an ownership check
func (m *Memory) Fail(ctx context.Context, jobID uuid.UUID, workerID string, cause FailCause) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.Status != models.JobStatusClaimed || j.ClaimedBy == nil || *j.ClaimedBy != workerID {
		return false, nil
	}

	now := m.NowFunc().UTC()
	errMsg := cause.Error
	j.Error = &errMsg
	j.ErrorDetail = models.EncodeErrorDetail(cause.Detail)
	j.ClaimedBy = nil
	j.ClaimedAt = nil
	j.UpdatedAt = now

	if cause.Permanent || j.Attempts >= j.MaxAttempts {
		if cause.Permanent && j.Attempts < j.MaxAttempts {
			j.Attempts = j.MaxAttempts
		}
		j.Status = models.JobStatusFailed
		return true, nil
	}

	j.Status = models.JobStatusPending
	j.RunAfter = now.Add(m.opts.Backoff(j.Attempts))

	return true, nil
}

// ReleaseStuck rewrites long-CLAIMED rows back to PENDING
func (m *Memory) ReleaseStuck(ctx context.Context, olderThan time.Duration) ([]StuckJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.NowFunc().UTC()
	cutoff := now.Add(-olderThan)

	var released []StuckJob
	for _, j := range m.jobs {
		if j.Status != models.JobStatusClaimed || j.ClaimedAt == nil || !j.ClaimedAt.Before(cutoff) {
			continue
		}

		stuck := StuckJob{
			ID:       j.ID,
			RepoName: j.RepoName,
			JobType:  j.JobType,
		}
		if j.ClaimedBy != nil {
			stuck.ClaimedBy = *j.ClaimedBy
		}
		stuck.ClaimedAt = *j.ClaimedAt

		j.Status = models.JobStatusPending
		j.ClaimedBy = nil
		j.ClaimedAt = nil
		j.UpdatedAt = now

		released = append(released, stuck)
	}

	return released, nil
}

// CleanupOldJobs removes DONE rows older than retention
func (m *Memory) CleanupOldJobs(ctx context.Context, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.NowFunc().UTC().Add(-retention)

	removed := 0
	for id, j := range m.jobs {
		if j.Status == models.JobStatusDone && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}

	return removed, nil
}

// Stats returns counts by status, optionally filtered by repo
func (m *Memory) Stats(ctx context.Context, repoName string) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{}
	for _, j := range m.jobs {
		if repoName != "" && j.RepoName != repoName {
			continue
		}

		switch j.Status {
		case models.JobStatusPending:
			stats.Pending++
		case models.JobStatusClaimed:
			stats.Claimed++
		case models.JobStatusDone:
			stats.Done++
			if j.CompletedAt != nil &&
				(stats.LastCompletedAt == nil || j.CompletedAt.After(*stats.LastCompletedAt)) {
				stats.LastCompletedAt = j.CompletedAt
			}
		case models.JobStatusFailed:
			stats.Failed++
		}
	}

	return stats, nil
}

// RecentJobs returns the newest jobs, optionally filtered by repo
func (m *Memory) RecentJobs(ctx context.Context, repoName string, limit int) ([]*models.Job, error) {
	return m.ListJobs(ctx, ListFilter{RepoName: repoName, Limit: limit})
}

// ListJobs returns jobs matching the filter, newest first
func (m *Memory) ListJobs(ctx context.Context, filter ListFilter) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []*models.Job
	for _, j := range m.jobs {
		if filter.RepoName != "" && j.RepoName != filter.RepoName {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && j.JobType != filter.JobType {
			continue
		}

		cp := *j
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// PendingRepos returns distinct repo names with runnable PENDING work
func (m *Memory) PendingRepos(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.NowFunc().UTC()
	seen := map[string]bool{}
	for _, j := range m.jobs {
		if j.Status == models.JobStatusPending && !j.RunAfter.After(now) {
			seen[j.RepoName] = true
		}
	}

	repos := make([]string, 0, len(seen))
	for r := range seen {
		repos = append(repos, r)
	}

	sort.Strings(repos)
	return repos, nil
}

// Get returns a snapshot of one job; test helper
func (m *Memory) Get(jobID uuid.UUID) (*models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}

	cp := *j
	return &cp, true
}

// Snapshot returns copies of every job; test helper
func (m *Memory) Snapshot() []*models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})

	return out
}

func containsType(types []models.JobType, jt models.JobType) bool {
	for _, t := range types {
		if t == jt {
			return true
		}
	}

	return false
}

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

func nopLogger() logger.Logger {
	return logger.NewNop()
}

func testOptions() Options {
	return Options{
		MaxAttempts: 3,
		BackoffBase: 10 * time.Second,
		BackoffCap:  time.Hour,
	}
}

func enqueue(t *testing.T, q *Memory, repo string, jt models.JobType, dedup string) EnqueueResult {
	t.Helper()

	res, err := q.Enqueue(context.Background(), EnqueueRequest{
		RepoName:   repo,
		SchemaName: "robomonkey_" + repo,
		JobType:    jt,
		Priority:   models.Priority(jt),
		DedupKey:   dedup,
	})
	require.NoError(t, err)

	return res
}

func TestEnqueue_UnknownJobTypeRejected(t *testing.T) {
	q := NewPostgres(nil, testOptions(), nopLogger())

	_, err := q.Enqueue(context.Background(), EnqueueRequest{
		RepoName: "r",
		JobType:  models.JobType("MYSTERY"),
	})

	assert.Error(t, err)
}

func TestDedup_SingleActiveRow(t *testing.T) {
	q := NewMemory(testOptions())

	first := enqueue(t, q, "r", models.JobTypeEmbedMissing, "r:embed_missing")
	assert.False(t, first.Deduplicated)

	for i := 0; i < 99; i++ {
		res := enqueue(t, q, "r", models.JobTypeEmbedMissing, "r:embed_missing")
		assert.True(t, res.Deduplicated)
		assert.Equal(t, first.JobID, res.JobID)
	}

	stats, err := q.Stats(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestDedup_ConcurrentProducers(t *testing.T) {
	q := NewMemory(testOptions())

	var wg sync.WaitGroup
	inserted := make(chan uuid.UUID, 100)

	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 12; i++ {
				res, err := q.Enqueue(context.Background(), EnqueueRequest{
					RepoName: "r",
					JobType:  models.JobTypeEmbedMissing,
					Priority: 5,
					DedupKey: "r:embed_missing",
				})
				if err == nil && !res.Deduplicated {
					inserted <- res.JobID
				}
			}
		}()
	}

	wg.Wait()
	close(inserted)

	var ids []uuid.UUID
	for id := range inserted {
		ids = append(ids, id)
	}

	assert.Len(t, ids, 1)
}

func TestDedup_TerminalRowDoesNotBlock(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	first := enqueue(t, q, "r", models.JobTypeEmbedMissing, "r:embed_missing")

	jobs, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	ok, err := q.Complete(ctx, jobs[0].ID, "w1")
	require.NoError(t, err)
	require.True(t, ok)

	second := enqueue(t, q, "r", models.JobTypeEmbedMissing, "r:embed_missing")
	assert.False(t, second.Deduplicated)
	assert.NotEqual(t, first.JobID, second.JobID)
}

func TestClaim_Exclusivity(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	var created []uuid.UUID
	for i := 0; i < 20; i++ {
		res := enqueue(t, q, "r", models.JobTypeFullIndex, "")
		created = append(created, res.JobID)
	}

	var mu sync.Mutex
	claimedBy := map[uuid.UUID][]string{}

	var wg sync.WaitGroup
	for _, w := range []string{"w1", "w2", "w3", "w4"} {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for {
				jobs, err := q.Claim(ctx, worker, ClaimOptions{Limit: 3})
				if err != nil || len(jobs) == 0 {
					return
				}

				mu.Lock()
				for _, j := range jobs {
					claimedBy[j.ID] = append(claimedBy[j.ID], worker)
				}
				mu.Unlock()
			}
		}(w)
	}

	wg.Wait()

	// Union is the full set, intersection is empty
	assert.Len(t, claimedBy, len(created))
	for id, workers := range claimedBy {
		assert.Len(t, workers, 1, "job %s claimed by %v", id, workers)
	}
}

func TestClaim_OrderByPriorityThenAge(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	q.NowFunc = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	enqueue(t, q, "r", models.JobTypeRegenerateSummary, "") // priority 2, oldest
	enqueue(t, q, "r", models.JobTypeFullIndex, "")         // priority 10
	enqueue(t, q, "r", models.JobTypeDocsScan, "")          // priority 9

	jobs, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, models.JobTypeFullIndex, jobs[0].JobType)
	assert.Equal(t, models.JobTypeDocsScan, jobs[1].JobType)
	assert.Equal(t, models.JobTypeRegenerateSummary, jobs[2].JobType)
}

func TestClaim_FiltersByTypeAndRepo(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	enqueue(t, q, "a", models.JobTypeFullIndex, "")
	enqueue(t, q, "b", models.JobTypeEmbedMissing, "")

	jobs, err := q.Claim(ctx, "w1", ClaimOptions{
		Types: []models.JobType{models.JobTypeEmbedMissing},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].RepoName)

	jobs, err = q.Claim(ctx, "w1", ClaimOptions{RepoName: "a", Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].RepoName)
}

func TestRetry_BackoffAndRecovery(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.NowFunc = func() time.Time { return now }

	res := enqueue(t, q, "r", models.JobTypeReindexFile, "")

	// First attempt fails
	jobs, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Attempts)

	ok, err := q.Fail(ctx, res.JobID, "w1", FailCause{Error: "boom"})
	require.NoError(t, err)
	require.True(t, ok)

	j, _ := q.Get(res.JobID)
	assert.Equal(t, models.JobStatusPending, j.Status)
	assert.Equal(t, now.Add(10*time.Second), j.RunAfter)

	// Not claimable before run_after
	jobs, err = q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	// Claimable at run_after; second attempt succeeds
	now = now.Add(10 * time.Second)
	jobs, err = q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempts)

	ok, err = q.Complete(ctx, res.JobID, "w1")
	require.NoError(t, err)
	require.True(t, ok)

	j, _ = q.Get(res.JobID)
	assert.Equal(t, models.JobStatusDone, j.Status)
	assert.Equal(t, 2, j.Attempts)
}

func TestFail_ExhaustedAttemptsTerminal(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.NowFunc = func() time.Time { return now }

	res := enqueue(t, q, "r", models.JobTypeFullIndex, "")

	var attempts []int
	for i := 0; i < 3; i++ {
		jobs, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, jobs, 1, "attempt %d", i+1)
		attempts = append(attempts, jobs[0].Attempts)

		ok, err := q.Fail(ctx, res.JobID, "w1", FailCause{Error: "boom"})
		require.NoError(t, err)
		require.True(t, ok)

		now = now.Add(time.Hour)
	}

	// Monotone attempts
	assert.Equal(t, []int{1, 2, 3}, attempts)

	j, _ := q.Get(res.JobID)
	assert.Equal(t, models.JobStatusFailed, j.Status)
	assert.True(t, j.Terminal())

	// Terminal FAILED rows are never reclaimed
	jobs, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestFail_PermanentBurnsAttempts(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	res := enqueue(t, q, "r", models.JobTypeReindexFile, "")

	_, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)

	ok, err := q.Fail(ctx, res.JobID, "w1", FailCause{
		Error:     "malformed payload",
		Detail:    models.ErrorDetail{Type: "validation", Message: "missing path"},
		Permanent: true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	j, _ := q.Get(res.JobID)
	assert.Equal(t, models.JobStatusFailed, j.Status)
	assert.True(t, j.Terminal())
	assert.Equal(t, j.MaxAttempts, j.Attempts)
}

func TestOwnership_CompleteAfterStuckRelease(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.NowFunc = func() time.Time { return now }

	res := enqueue(t, q, "r", models.JobTypeFullIndex, "")

	jobs, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// Worker w1 goes silent; 30 minutes later health releases the job
	now = now.Add(31 * time.Minute)
	released, err := q.ReleaseStuck(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, "w1", released[0].ClaimedBy)

	// Attempts unchanged by the release
	j, _ := q.Get(res.JobID)
	assert.Equal(t, models.JobStatusPending, j.Status)
	assert.Equal(t, 1, j.Attempts)

	// A second worker claims it and increments attempts
	jobs, err = q.Claim(ctx, "w2", ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempts)

	// The original owner's late complete/fail are rejected
	ok, err := q.Complete(ctx, res.JobID, "w1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Fail(ctx, res.JobID, "w1", FailCause{Error: "late"})
	require.NoError(t, err)
	assert.False(t, ok)

	// The new owner completes normally
	ok, err = q.Complete(ctx, res.JobID, "w2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseStuck_IgnoresFreshClaims(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	enqueue(t, q, "r", models.JobTypeFullIndex, "")
	_, err := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.NoError(t, err)

	released, err := q.ReleaseStuck(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestCleanupOldJobs(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.NowFunc = func() time.Time { return now }

	res := enqueue(t, q, "r", models.JobTypeFullIndex, "")
	jobs, _ := q.Claim(ctx, "w1", ClaimOptions{Limit: 1})
	require.Len(t, jobs, 1)
	_, err := q.Complete(ctx, res.JobID, "w1")
	require.NoError(t, err)

	// Still within retention
	n, err := q.CleanupOldJobs(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(8 * 24 * time.Hour)
	n, err = q.CleanupOldJobs(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStats_CountsByStatus(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	full := enqueue(t, q, "r", models.JobTypeFullIndex, "")
	enqueue(t, q, "r", models.JobTypeDocsScan, "")
	enqueue(t, q, "other", models.JobTypeFullIndex, "")

	jobs, _ := q.Claim(ctx, "w1", ClaimOptions{RepoName: "r", Limit: 1})
	require.Len(t, jobs, 1)
	assert.Equal(t, full.JobID, jobs[0].ID)

	stats, err := q.Stats(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Claimed)

	all, err := q.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, all.Pending)
}

func TestPendingRepos(t *testing.T) {
	q := NewMemory(testOptions())
	ctx := context.Background()

	enqueue(t, q, "beta", models.JobTypeFullIndex, "")
	enqueue(t, q, "alpha", models.JobTypeFullIndex, "")
	enqueue(t, q, "alpha", models.JobTypeDocsScan, "")

	repos, err := q.PendingRepos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, repos)
}

func TestBackoff_Formula(t *testing.T) {
	opts := Options{MaxAttempts: 5, BackoffBase: 10 * time.Second, BackoffCap: time.Minute}

	assert.Equal(t, 10*time.Second, opts.Backoff(1))
	assert.Equal(t, 20*time.Second, opts.Backoff(2))
	assert.Equal(t, 40*time.Second, opts.Backoff(3))
	assert.Equal(t, time.Minute, opts.Backoff(4)) // capped
	assert.Equal(t, time.Minute, opts.Backoff(10))
}

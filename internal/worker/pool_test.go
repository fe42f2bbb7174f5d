package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

type procFunc func(ctx context.Context, job *models.Job) error

func (f procFunc) Process(ctx context.Context, job *models.Job) error {
	return f(ctx, job)
}

type fakeResolver struct {
	procs map[models.JobType]Processor
}

func (r *fakeResolver) Resolve(jt models.JobType) (Processor, error) {
	if p, ok := r.procs[jt]; ok {
		return p, nil
	}

	return nil, errors.Newf("no processor registered for job type %q", jt).
		WithCode(errors.CodeValidation)
}

type fakeRepos struct {
	info storage.FollowUpInfo
	err  error
}

func (f *fakeRepos) FollowUpInfo(ctx context.Context, repoName string) (storage.FollowUpInfo, error) {
	return f.info, f.err
}

func testWorkersConfig() config.WorkersConfig {
	return config.WorkersConfig{
		Mode:                 "pool",
		MaxWorkers:           2,
		MaxConcurrentPerRepo: 1,
		PollIntervalSec:      1,
		JobTimeoutSec:        5,
	}
}

func newTestPool(cfg config.WorkersConfig, q queue.Queue, resolver ProcessorResolver, repos RepoInfoSource) *Pool {
	return New(cfg, 10, q, resolver, repos, "daemon-test", logger.NewNop())
}

func enqueueJob(t *testing.T, q *queue.Memory, repo string, jt models.JobType) *models.Job {
	t.Helper()

	res, err := q.Enqueue(context.Background(), queue.EnqueueRequest{
		RepoName:   repo,
		SchemaName: "robomonkey_" + repo,
		JobType:    jt,
		Priority:   models.Priority(jt),
	})
	require.NoError(t, err)

	jobs, err := q.Claim(context.Background(), "daemon-test:pool-0", queue.ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, res.JobID, jobs[0].ID)

	return jobs[0]
}

func TestExecuteJob_SuccessEnqueuesFollowups(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeFullIndex: procFunc(func(ctx context.Context, job *models.Job) error {
			return nil
		}),
	}}
	repos := &fakeRepos{info: storage.FollowUpInfo{
		Found:   true,
		Enabled: true,
		Flags:   models.RepoFlags{AutoEmbed: true},
	}}

	p := newTestPool(testWorkersConfig(), q, resolver, repos)
	job := enqueueJob(t, q, "wrestling-game", models.JobTypeFullIndex)

	p.executeJob(context.Background(), "daemon-test:pool-0", job)

	done, _ := q.Get(job.ID)
	assert.Equal(t, models.JobStatusDone, done.Status)
	assert.NotNil(t, done.CompletedAt)

	// FULL_INDEX with auto_embed fans out to three follow-ups
	pending, err := q.ListJobs(context.Background(), queue.ListFilter{
		Status: models.JobStatusPending,
	})
	require.NoError(t, err)

	types := map[models.JobType]bool{}
	for _, j := range pending {
		types[j.JobType] = true
	}

	assert.True(t, types[models.JobTypeDocsScan])
	assert.True(t, types[models.JobTypeEmbedMissing])
	assert.True(t, types[models.JobTypeRegenerateSummary])
	assert.Len(t, pending, 3)
}

func TestExecuteJob_DisabledRepoGetsNoFollowups(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeFullIndex: procFunc(func(ctx context.Context, job *models.Job) error {
			return nil
		}),
	}}
	repos := &fakeRepos{info: storage.FollowUpInfo{
		Found:   true,
		Enabled: false,
		Flags:   models.RepoFlags{AutoEmbed: true},
	}}

	p := newTestPool(testWorkersConfig(), q, resolver, repos)
	job := enqueueJob(t, q, "r", models.JobTypeFullIndex)

	p.executeJob(context.Background(), "daemon-test:pool-0", job)

	stats, err := q.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Done)
}

func TestExecuteJob_RetryableFailure(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeEmbedMissing: procFunc(func(ctx context.Context, job *models.Job) error {
			return errors.New("upstream 503").WithCode(errors.CodeProcessor)
		}),
	}}

	p := newTestPool(testWorkersConfig(), q, resolver, &fakeRepos{})
	job := enqueueJob(t, q, "r", models.JobTypeEmbedMissing)

	p.executeJob(context.Background(), "daemon-test:pool-0", job)

	failed, _ := q.Get(job.ID)
	assert.Equal(t, models.JobStatusPending, failed.Status)
	assert.Equal(t, 1, failed.Attempts)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "upstream 503")
}

func TestExecuteJob_ValidationFailureIsPermanent(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeReindexFile: procFunc(func(ctx context.Context, job *models.Job) error {
			return errors.New("missing path").WithCode(errors.CodeValidation)
		}),
	}}

	p := newTestPool(testWorkersConfig(), q, resolver, &fakeRepos{})
	job := enqueueJob(t, q, "r", models.JobTypeReindexFile)

	p.executeJob(context.Background(), "daemon-test:pool-0", job)

	failed, _ := q.Get(job.ID)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.True(t, failed.Terminal())
}

func TestExecuteJob_UnknownJobTypeFailsPermanently(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{}}

	p := newTestPool(testWorkersConfig(), q, resolver, &fakeRepos{})
	job := enqueueJob(t, q, "r", models.JobTypeTagRulesSync)

	p.executeJob(context.Background(), "daemon-test:pool-0", job)

	failed, _ := q.Get(job.ID)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.True(t, failed.Terminal())
}

func TestExecuteJob_PanicIsCaptured(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeDocsScan: procFunc(func(ctx context.Context, job *models.Job) error {
			panic("unexpected nil")
		}),
	}}

	p := newTestPool(testWorkersConfig(), q, resolver, &fakeRepos{})
	job := enqueueJob(t, q, "r", models.JobTypeDocsScan)

	p.executeJob(context.Background(), "daemon-test:pool-0", job)

	failed, _ := q.Get(job.ID)
	assert.Equal(t, models.JobStatusPending, failed.Status) // retryable
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "panic")
}

func TestExecuteJob_Timeout(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeFullIndex: procFunc(func(ctx context.Context, job *models.Job) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Second):
				return nil
			}
		}),
	}}

	cfg := testWorkersConfig()
	cfg.JobTimeoutSec = 1

	p := newTestPool(cfg, q, resolver, &fakeRepos{})
	job := enqueueJob(t, q, "r", models.JobTypeFullIndex)

	start := time.Now()
	p.executeJob(context.Background(), "daemon-test:pool-0", job)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 5*time.Second)

	failed, _ := q.Get(job.ID)
	assert.Equal(t, models.JobStatusPending, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "timed out")
}

func TestExecuteJob_ReindexManyChangeRatio(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeReindexMany: procFunc(func(ctx context.Context, job *models.Job) error {
			return nil
		}),
	}}
	repos := &fakeRepos{info: storage.FollowUpInfo{
		Found:      true,
		Enabled:    true,
		Flags:      models.RepoFlags{AutoEmbed: true},
		TotalFiles: 10,
	}}

	p := newTestPool(testWorkersConfig(), q, resolver, repos)

	payload, err := models.EncodePayload(models.ReindexManyPayload{
		Entries: []models.FileChange{
			{Path: "a.py", Op: models.FileOpUpsert},
			{Path: "b.py", Op: models.FileOpDelete},
		},
		Reason: "watch_batch",
	})
	require.NoError(t, err)

	res, err := q.Enqueue(context.Background(), queue.EnqueueRequest{
		RepoName: "r", SchemaName: "robomonkey_r",
		JobType:  models.JobTypeReindexMany,
		Payload:  payload,
		Priority: models.PriorityWatchEvent,
	})
	require.NoError(t, err)

	jobs, err := q.Claim(context.Background(), "daemon-test:pool-0", queue.ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	p.executeJob(context.Background(), "daemon-test:pool-0", jobs[0])

	_ = res

	// 2 of 10 files is a 20% change: embed plus summary regen
	pending, err := q.ListJobs(context.Background(), queue.ListFilter{
		Status: models.JobStatusPending,
	})
	require.NoError(t, err)

	types := map[models.JobType]bool{}
	for _, j := range pending {
		types[j.JobType] = true
	}

	assert.True(t, types[models.JobTypeEmbedMissing])
	assert.True(t, types[models.JobTypeRegenerateSummary])
}

func TestRun_SingleModeProcessesJob(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	resolver := &fakeResolver{procs: map[models.JobType]Processor{
		models.JobTypeFullIndex: procFunc(func(ctx context.Context, job *models.Job) error {
			return nil
		}),
	}}
	repos := &fakeRepos{info: storage.FollowUpInfo{Found: true, Enabled: true}}

	cfg := testWorkersConfig()
	cfg.Mode = "single"

	_, err := q.Enqueue(context.Background(), queue.EnqueueRequest{
		RepoName: "r", SchemaName: "robomonkey_r",
		JobType:  models.JobTypeFullIndex,
		Priority: 10,
	})
	require.NoError(t, err)

	p := newTestPool(cfg, q, resolver, repos)

	ctx, cancel := context.WithCancel(context.Background())
	doneRunning := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(doneRunning)
	}()

	// Wait for the worker to drain the queue
	deadline := time.After(10 * time.Second)
	for {
		stats, err := q.Stats(context.Background(), "")
		require.NoError(t, err)
		if stats.Done == 1 {
			break
		}

		select {
		case <-deadline:
			t.Fatal("worker never completed the job")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()

	select {
	case <-doneRunning:
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
}

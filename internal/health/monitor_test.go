package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

type fakeStore struct {
	repos    []models.Repo
	coverage map[string]Coverage
	q        *queue.Memory
}

func (f *fakeStore) ListEnabled(ctx context.Context) ([]models.Repo, error) {
	return f.repos, nil
}

func (f *fakeStore) EmbeddingCoverage(ctx context.Context, schemaName string) (Coverage, error) {
	return f.coverage[schemaName], nil
}

func (f *fakeStore) HasActiveJob(ctx context.Context, repoName string, jt models.JobType) (bool, error) {
	jobs, err := f.q.ListJobs(context.Background(), queue.ListFilter{
		RepoName: repoName, JobType: jt, Limit: 100,
	})
	if err != nil {
		return false, err
	}

	for _, j := range jobs {
		if j.Status == models.JobStatusPending || j.Status == models.JobStatusClaimed {
			return true, nil
		}
	}

	return false, nil
}

type fakeSyslog struct {
	entries []string
}

func (f *fakeSyslog) Write(ctx context.Context, level, component, repoName, message string, details map[string]any) {
	f.entries = append(f.entries, level+":"+message)
}

func repoRow(name string) models.Repo {
	return models.Repo{
		Name:       name,
		SchemaName: "robomonkey_" + name,
		Enabled:    true,
		AutoEmbed:  true,
	}
}

func TestMonitor_SelfHealsCoverageGap(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	store := &fakeStore{
		repos: []models.Repo{repoRow("r")},
		coverage: map[string]Coverage{
			"robomonkey_r": {TotalChunks: 100, EmbeddedChunks: 50},
		},
		q: q,
	}
	syslog := &fakeSyslog{}

	m := New(store, q, syslog, logger.NewNop())

	require.NoError(t, m.RunChecks(context.Background()))

	jobs, err := q.ListJobs(context.Background(), queue.ListFilter{
		RepoName: "r",
		Status:   models.JobStatusPending,
		JobType:  models.JobTypeEmbedMissing,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].DedupKey)
	assert.Equal(t, "r:embed_missing:health_check", *jobs[0].DedupKey)
	assert.Equal(t, models.PriorityHealthEmbed, jobs[0].Priority)

	// WARNING entry landed in the system log
	require.NotEmpty(t, syslog.entries)
	assert.Contains(t, syslog.entries[0], "WARNING")
}

func TestMonitor_SecondTickDoesNotDuplicate(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	store := &fakeStore{
		repos: []models.Repo{repoRow("r")},
		coverage: map[string]Coverage{
			"robomonkey_r": {TotalChunks: 100, EmbeddedChunks: 10},
		},
		q: q,
	}

	m := New(store, q, &fakeSyslog{}, logger.NewNop())

	require.NoError(t, m.RunChecks(context.Background()))
	require.NoError(t, m.RunChecks(context.Background()))

	stats, err := q.Stats(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestMonitor_HealthyRepoUntouched(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	store := &fakeStore{
		repos: []models.Repo{repoRow("r")},
		coverage: map[string]Coverage{
			"robomonkey_r": {TotalChunks: 100, EmbeddedChunks: 96, TotalDocs: 10, EmbeddedDocs: 10},
		},
		q: q,
	}

	m := New(store, q, &fakeSyslog{}, logger.NewNop())

	require.NoError(t, m.RunChecks(context.Background()))

	stats, err := q.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
}

func TestMonitor_EmptyRepoIsFullCoverage(t *testing.T) {
	cov := Coverage{}

	assert.Equal(t, 100.0, cov.ChunkCoverage())
	assert.Equal(t, 100.0, cov.DocCoverage())
}

func TestMonitor_DocCoverageGapAloneTriggers(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	store := &fakeStore{
		repos: []models.Repo{repoRow("r")},
		coverage: map[string]Coverage{
			"robomonkey_r": {TotalChunks: 10, EmbeddedChunks: 10, TotalDocs: 10, EmbeddedDocs: 5},
		},
		q: q,
	}

	m := New(store, q, &fakeSyslog{}, logger.NewNop())

	require.NoError(t, m.RunChecks(context.Background()))

	stats, err := q.Stats(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestMonitor_ReleasesStuckJobs(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.NowFunc = func() time.Time { return now }

	res, err := q.Enqueue(context.Background(), queue.EnqueueRequest{
		RepoName: "r", SchemaName: "robomonkey_r",
		JobType: models.JobTypeFullIndex, Priority: 10,
	})
	require.NoError(t, err)

	jobs, err := q.Claim(context.Background(), "dead-worker", queue.ClaimOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	store := &fakeStore{repos: nil, q: q}
	syslog := &fakeSyslog{}
	m := New(store, q, syslog, logger.NewNop())

	// 31 minutes later the owner is presumed dead
	now = now.Add(31 * time.Minute)

	require.NoError(t, m.RunChecks(context.Background()))

	j, ok := q.Get(res.JobID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusPending, j.Status)
	assert.Equal(t, 1, j.Attempts)
	assert.Nil(t, j.ClaimedBy)

	require.NotEmpty(t, syslog.entries)
	assert.Contains(t, syslog.entries[0], "auto-released stuck job")
}

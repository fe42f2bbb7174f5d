package watcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

func event(repo, path string, op models.FileOp, reason string) Event {
	return Event{
		RepoName:   repo,
		SchemaName: "robomonkey_" + repo,
		Path:       path,
		Op:         op,
		Reason:     reason,
	}
}

func TestCoalescer_LastOpWins(t *testing.T) {
	c := newCoalescer()

	c.Add(event("r", "a.py", models.FileOpUpsert, "file_created"))
	c.Add(event("r", "a.py", models.FileOpUpsert, "file_modified"))
	c.Add(event("r", "a.py", models.FileOpDelete, "file_deleted"))
	c.Add(event("r", "b.py", models.FileOpUpsert, "file_modified"))

	require.Equal(t, 2, c.Len())

	requests := c.Flush()
	require.Len(t, requests, 1)
	assert.Equal(t, models.JobTypeReindexMany, requests[0].JobType)
	assert.Equal(t, models.PriorityWatchEvent, requests[0].Priority)

	payload, err := models.DecodeReindexMany(requests[0].Payload)
	require.NoError(t, err)
	require.Len(t, payload.Entries, 2)

	ops := map[string]models.FileOp{}
	for _, e := range payload.Entries {
		ops[e.Path] = e.Op
	}

	assert.Equal(t, models.FileOpDelete, ops["a.py"])
	assert.Equal(t, models.FileOpUpsert, ops["b.py"])
}

func TestCoalescer_SingleEventProducesReindexFile(t *testing.T) {
	c := newCoalescer()
	c.Add(event("r", "src/game.py", models.FileOpUpsert, "file_modified"))

	requests := c.Flush()
	require.Len(t, requests, 1)
	assert.Equal(t, models.JobTypeReindexFile, requests[0].JobType)
	assert.Equal(t, "r:src/game.py:UPSERT", requests[0].DedupKey)

	payload, err := models.DecodeReindexFile(requests[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "src/game.py", payload.Path)
	assert.Equal(t, models.FileOpUpsert, payload.Op)
	assert.Equal(t, "file_modified", payload.Reason)
}

func TestCoalescer_OneJobPerRepo(t *testing.T) {
	c := newCoalescer()

	for i := 0; i < 5; i++ {
		c.Add(event("alpha", "file"+string(rune('a'+i))+".py", models.FileOpUpsert, "file_modified"))
	}
	c.Add(event("beta", "one.py", models.FileOpUpsert, "file_created"))

	requests := c.Flush()
	require.Len(t, requests, 2)

	byRepo := map[string]models.JobType{}
	for _, r := range requests {
		byRepo[r.RepoName] = r.JobType
	}

	assert.Equal(t, models.JobTypeReindexMany, byRepo["alpha"])
	assert.Equal(t, models.JobTypeReindexFile, byRepo["beta"])
}

func TestCoalescer_FlushResetsPending(t *testing.T) {
	c := newCoalescer()
	c.Add(event("r", "a.py", models.FileOpUpsert, "file_modified"))

	require.Len(t, c.Flush(), 1)
	assert.Nil(t, c.Flush())
	assert.Equal(t, 0, c.Len())
}

func TestProject_FiltersAndRelativizes(t *testing.T) {
	w := New(config.WatcherConfig{
		Extensions:     []string{".py"},
		IgnorePatterns: []string{".git", "node_modules"},
	}, nil, nil, logger.NewNop())

	w.roots = []watchedRoot{
		{root: "/work/repo", repoName: "r", schemaName: "robomonkey_r"},
	}

	target, rel, ok := w.project("/work/repo/src/game.py")
	require.True(t, ok)
	assert.Equal(t, "r", target.repoName)
	assert.Equal(t, "src/game.py", rel)

	_, _, ok = w.project("/work/repo/README.md")
	assert.False(t, ok, "unsupported extension")

	_, _, ok = w.project("/work/repo/.git/hook.py")
	assert.False(t, ok, "ignored directory")

	_, _, ok = w.project("/elsewhere/file.py")
	assert.False(t, ok, "outside any watched root")
}

func TestFlush_EnqueuesThroughQueue(t *testing.T) {
	q := queue.NewMemory(queue.DefaultOptions())
	w := New(config.WatcherConfig{DebounceMS: 500}, q, nil, logger.NewNop())

	c := newCoalescer()
	c.Add(event("r", "a.py", models.FileOpDelete, "file_deleted"))
	c.Add(event("r", "b.py", models.FileOpUpsert, "file_modified"))

	w.flush(context.Background(), c)

	stats, err := q.Stats(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)

	jobs, err := q.ListJobs(context.Background(), queue.ListFilter{RepoName: "r"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobTypeReindexMany, jobs[0].JobType)
}

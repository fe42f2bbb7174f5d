package watcher

import (
	"sort"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/queue"
)

// Event is one projected filesystem change
type Event struct {
	RepoName   string
	SchemaName string
	Path       string // repo-relative
	Op         models.FileOp
	Reason     string
}

type pendingKey struct {
	repo string
	path string
}

// coalescer accumulates events across a debounce window. Duplicate
// (repo, path) keys are overwritten: the last observed op per path wins.
type coalescer struct {
	pending map[pendingKey]Event
}

func newCoalescer() *coalescer {
	return &coalescer{pending: make(map[pendingKey]Event)}
}

// Add records an event, replacing any earlier event for the same path
func (c *coalescer) Add(ev Event) {
	c.pending[pendingKey{ev.RepoName, ev.Path}] = ev
}

// Len returns the number of pending events
func (c *coalescer) Len() int {
	return len(c.pending)
}

// Flush drains the pending map into enqueue requests: one REINDEX_FILE per
// repo with a single pending event, one REINDEX_MANY per repo with several.
// Within a flush the latest-wins op per path is preserved; no cross-repo
// ordering is promised.
func (c *coalescer) Flush() []queue.EnqueueRequest {
	if len(c.pending) == 0 {
		return nil
	}

	byRepo := make(map[string][]Event)
	for _, ev := range c.pending {
		byRepo[ev.RepoName] = append(byRepo[ev.RepoName], ev)
	}
	c.pending = make(map[pendingKey]Event)

	repos := make([]string, 0, len(byRepo))
	for repo := range byRepo {
		repos = append(repos, repo)
	}
	sort.Strings(repos)

	var out []queue.EnqueueRequest
	for _, repo := range repos {
		events := byRepo[repo]
		sort.Slice(events, func(i, j int) bool {
			return events[i].Path < events[j].Path
		})

		if len(events) == 1 {
			ev := events[0]
			payload, err := models.EncodePayload(models.ReindexFilePayload{
				Path:   ev.Path,
				Op:     ev.Op,
				Reason: ev.Reason,
			})
			if err != nil {
				continue
			}

			out = append(out, queue.EnqueueRequest{
				RepoName:   ev.RepoName,
				SchemaName: ev.SchemaName,
				JobType:    models.JobTypeReindexFile,
				Payload:    payload,
				Priority:   models.PriorityWatchEvent,
				DedupKey:   ev.RepoName + ":" + ev.Path + ":" + string(ev.Op),
			})
			continue
		}

		entries := make([]models.FileChange, 0, len(events))
		for _, ev := range events {
			entries = append(entries, models.FileChange{Path: ev.Path, Op: ev.Op})
		}

		payload, err := models.EncodePayload(models.ReindexManyPayload{
			Entries: entries,
			Reason:  "watch_batch",
		})
		if err != nil {
			continue
		}

		out = append(out, queue.EnqueueRequest{
			RepoName:   repo,
			SchemaName: events[0].SchemaName,
			JobType:    models.JobTypeReindexMany,
			Payload:    payload,
			Priority:   models.PriorityWatchEvent,
		})
	}

	return out
}

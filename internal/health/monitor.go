package health

import (
	"context"
	"fmt"
	"time"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// Coverage summarizes a repo's embedding completeness
type Coverage struct {
	TotalChunks    int
	EmbeddedChunks int
	TotalDocs      int
	EmbeddedDocs   int
}

// ChunkCoverage is the embedded-chunk percentage; an empty repo is complete
func (c Coverage) ChunkCoverage() float64 {
	if c.TotalChunks == 0 {
		return 100
	}

	return float64(c.EmbeddedChunks) / float64(c.TotalChunks) * 100
}

// DocCoverage is the embedded-document percentage; an empty repo is complete
func (c Coverage) DocCoverage() float64 {
	if c.TotalDocs == 0 {
		return 100
	}

	return float64(c.EmbeddedDocs) / float64(c.TotalDocs) * 100
}

// Store is what the monitor reads from the shared store
type Store interface {
	// ListEnabled returns enabled repo registrations
	ListEnabled(ctx context.Context) ([]models.Repo, error)

	// EmbeddingCoverage computes chunk and document coverage for one repo
	EmbeddingCoverage(ctx context.Context, schemaName string) (Coverage, error)

	// HasActiveJob reports whether a PENDING or CLAIMED job of the given
	// type exists for the repo
	HasActiveJob(ctx context.Context, repoName string, jt models.JobType) (bool, error)
}

// Syslog records monitor actions into the control namespace
type Syslog interface {
	Write(ctx context.Context, level, component, repoName, message string, details map[string]any)
}

// Defaults for the monitor's thresholds
const (
	DefaultCheckInterval  = 15 * time.Minute
	DefaultStuckThreshold = 30 * time.Minute
	coverageFloor         = 95.0
	errorPause            = time.Minute
)

// Monitor periodically detects missing-coverage and stuck-job conditions
// and self-heals by enqueueing repair jobs. The store is the source of
// truth, so every check is a pure read-then-repair cycle.
type Monitor struct {
	store  Store
	queue  queue.Queue
	syslog Syslog
	logger logger.Logger

	// CheckInterval and StuckThreshold default when zero
	CheckInterval  time.Duration
	StuckThreshold time.Duration
}

// New creates a health monitor
func New(store Store, q queue.Queue, syslog Syslog, log logger.Logger) *Monitor {
	return &Monitor{
		store:          store,
		queue:          q,
		syslog:         syslog,
		logger:         log.Named("health"),
		CheckInterval:  DefaultCheckInterval,
		StuckThreshold: DefaultStuckThreshold,
	}
}

// Run ticks until ctx is cancelled. Failures are logged and the loop rests
// briefly before the next attempt.
func (m *Monitor) Run(ctx context.Context) error {
	interval := m.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	m.logger.Info("health monitor started", "interval", interval)

	for {
		if err := m.RunChecks(ctx); err != nil {
			m.logger.Error("health check cycle failed", "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorPause):
			}
			continue
		}

		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

// RunChecks executes one full check cycle
func (m *Monitor) RunChecks(ctx context.Context) error {
	m.logger.Debug("running health checks")

	if err := m.checkEmbeddingCoverage(ctx); err != nil {
		return err
	}

	return m.checkStuckJobs(ctx)
}

// checkEmbeddingCoverage enqueues an EMBED_MISSING repair job for every
// enabled repo below the coverage floor that has no embedding job in flight.
func (m *Monitor) checkEmbeddingCoverage(ctx context.Context) error {
	repos, err := m.store.ListEnabled(ctx)
	if err != nil {
		return err
	}

	for _, repo := range repos {
		cov, err := m.store.EmbeddingCoverage(ctx, repo.SchemaName)
		if err != nil {
			m.logger.Error("coverage check failed", "repo", repo.Name, "error", err)
			continue
		}

		chunkCov := cov.ChunkCoverage()
		docCov := cov.DocCoverage()

		if chunkCov >= coverageFloor && docCov >= coverageFloor {
			continue
		}

		missingChunks := cov.TotalChunks - cov.EmbeddedChunks
		missingDocs := cov.TotalDocs - cov.EmbeddedDocs

		m.logger.Warn("missing embeddings detected",
			"repo", repo.Name,
			"chunk_coverage", fmt.Sprintf("%.1f", chunkCov),
			"doc_coverage", fmt.Sprintf("%.1f", docCov),
			"missing_chunks", missingChunks,
			"missing_docs", missingDocs)

		active, err := m.store.HasActiveJob(ctx, repo.Name, models.JobTypeEmbedMissing)
		if err != nil {
			m.logger.Error("active job check failed", "repo", repo.Name, "error", err)
			continue
		}

		if active {
			m.syslog.Write(ctx, "INFO", "health_monitor", repo.Name,
				"missing embeddings detected but embed job already in flight",
				map[string]any{
					"chunk_coverage": chunkCov,
					"doc_coverage":   docCov,
				})
			continue
		}

		res, err := m.queue.Enqueue(ctx, queue.EnqueueRequest{
			RepoName:   repo.Name,
			SchemaName: repo.SchemaName,
			JobType:    models.JobTypeEmbedMissing,
			Priority:   models.PriorityHealthEmbed,
			DedupKey:   repo.Name + ":embed_missing:health_check",
		})
		if err != nil {
			m.logger.Error("failed to enqueue repair job", "repo", repo.Name, "error", err)
			continue
		}

		m.syslog.Write(ctx, "WARNING", "health_monitor", repo.Name,
			"auto-scheduled EMBED_MISSING job due to coverage gap",
			map[string]any{
				"chunk_coverage": chunkCov,
				"doc_coverage":   docCov,
				"missing_chunks": missingChunks,
				"missing_docs":   missingDocs,
				"job_id":         res.JobID.String(),
			})
	}

	return nil
}

// checkStuckJobs releases CLAIMED rows whose owner went silent. This is the
// only path that releases a claim without a complete or fail from its owner.
func (m *Monitor) checkStuckJobs(ctx context.Context) error {
	threshold := m.StuckThreshold
	if threshold <= 0 {
		threshold = DefaultStuckThreshold
	}

	released, err := m.queue.ReleaseStuck(ctx, threshold)
	if err != nil {
		return err
	}

	for _, s := range released {
		m.logger.Warn("released stuck job",
			"job_id", s.ID, "job_type", s.JobType,
			"repo", s.RepoName, "was_claimed_by", s.ClaimedBy,
			"claimed_at", s.ClaimedAt)

		m.syslog.Write(ctx, "WARNING", "health_monitor", s.RepoName,
			"auto-released stuck job",
			map[string]any{
				"job_id":     s.ID.String(),
				"job_type":   string(s.JobType),
				"claimed_by": s.ClaimedBy,
				"claimed_at": s.ClaimedAt.Format(time.RFC3339),
			})
	}

	return nil
}

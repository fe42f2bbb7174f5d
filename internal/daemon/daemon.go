package daemon

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/health"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/notify"
	"github.com/TheYonk/robomonkey/internal/processor"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/internal/schema"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/internal/watcher"
	"github.com/TheYonk/robomonkey/internal/worker"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// drainCeiling bounds how long shutdown waits for in-flight processors
const drainCeiling = 30 * time.Second

// Daemon owns the process lifecycle: the connection pool, the worker pool,
// the watcher, the health monitor, and the heartbeat. Multiple daemons can
// run against the same control namespace; claim locking is the only
// synchronization between them.
type Daemon struct {
	cfg    *config.Config
	logger logger.Logger

	db        *sqlx.DB
	queue     *queue.Postgres
	registry  *storage.Registry
	instances *storage.Instances
	syslog    *storage.SystemLog
	schemas   *schema.Manager
	notifier  *notify.Publisher
	pool      *worker.Pool
	watch     *watcher.Watcher
	monitor   *health.Monitor
}

// New creates an unstarted daemon
func New(cfg *config.Config, log logger.Logger) *Daemon {
	return &Daemon{
		cfg:    cfg,
		logger: log.Named("daemon"),
	}
}

// Startup establishes the pool, installs the control DDL, wires every
// component, and registers this instance as RUNNING. Store unreachability
// here is fatal.
func (d *Daemon) Startup(ctx context.Context) error {
	d.logger.Info("starting daemon", "daemon_id", d.cfg.DaemonID)
	d.logger.Info("effective configuration", "config", string(d.cfg.Snapshot()))

	db, err := storage.Open(ctx, d.cfg.Database, d.logger)
	if err != nil {
		return err
	}
	d.db = db

	if err := storage.EnsureControlSchema(ctx, db); err != nil {
		return err
	}

	d.notifier = notify.New(d.cfg.Events, d.logger)

	d.queue = queue.NewPostgres(db, queue.Options{
		MaxAttempts: d.cfg.Jobs.MaxRetries,
		BackoffBase: time.Duration(d.cfg.Jobs.RetryBackoffBaseSec) * time.Second,
		BackoffCap:  time.Hour,
	}, d.logger)
	if d.notifier != nil {
		d.queue.WithEvents(d.notifier)
	}

	d.registry = storage.NewRegistry(db, d.logger)
	d.instances = storage.NewInstances(db)
	d.syslog = storage.NewSystemLog(db, d.logger)
	d.schemas = schema.NewManager(db, d.logger, d.cfg.Embeddings.Dimension)

	procs := processor.NewRegistry(processor.Deps{
		Config:   d.cfg,
		DB:       db,
		Schemas:  d.schemas,
		Registry: d.registry,
		Logger:   d.logger,
	})

	d.pool = worker.New(
		d.cfg.Workers, d.cfg.Jobs.ClaimBatchSize,
		d.queue, procs, d.registry, d.cfg.DaemonID, d.logger)

	if d.cfg.Watcher.Enabled {
		d.watch = watcher.New(d.cfg.Watcher, d.queue, d.registry, d.logger)
	}

	d.monitor = health.New(
		health.NewPostgresStore(db, d.registry, d.schemas),
		d.queue, d.syslog, d.logger)

	if err := d.instances.Register(ctx, d.cfg.DaemonID, d.cfg.Snapshot()); err != nil {
		return err
	}

	if d.cfg.Embeddings.Enabled && d.cfg.Embeddings.BackfillOnStartup {
		d.backfillEmbeddings(ctx)
	}

	d.logger.Info("daemon startup complete", "daemon_id", d.cfg.DaemonID)
	return nil
}

// Run launches the background activities and blocks until ctx is cancelled,
// then drains, marks the instance STOPPED, and closes the pool. The store
// holds no ephemeral state beyond this instance's CLAIMED rows, which any
// surviving instance reclaims through its stuck-release check.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.pool.Run(gctx)
	})

	g.Go(func() error {
		return d.monitor.Run(gctx)
	})

	g.Go(func() error {
		d.heartbeatLoop(gctx)
		return nil
	})

	if d.watch != nil {
		g.Go(func() error {
			return d.watch.Run(gctx)
		})
	}

	if d.cfg.EnableSummaries || d.cfg.EnableTagRulesSync {
		g.Go(func() error {
			d.scheduleLoop(gctx)
			return nil
		})
	}

	d.logger.Info("daemon running, waiting for jobs")

	<-gctx.Done()
	d.logger.Info("shutdown signal received, draining")

	if err := g.Wait(); err != nil && err != context.Canceled {
		d.logger.Error("background task failed", "error", err)
	}

	d.pool.Drain(drainCeiling)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.instances.MarkStopped(shutdownCtx, d.cfg.DaemonID); err != nil {
		d.logger.Error("failed to mark instance stopped", "error", err)
	}

	if d.notifier != nil {
		_ = d.notifier.Close()
	}

	if err := d.db.Close(); err != nil {
		d.logger.Error("failed to close pool", "error", err)
	}

	d.logger.Info("daemon shutdown complete", "daemon_id", d.cfg.DaemonID)
	return nil
}

// heartbeatLoop refreshes this instance's liveness row
func (d *Daemon) heartbeatLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Workers.HeartbeatIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.instances.Heartbeat(ctx, d.cfg.DaemonID); err != nil {
				d.logger.Error("heartbeat failed", "error", err)
			}
		}
	}
}

// scheduleLoop is the side-channel scheduler for periodic activities:
// summary generation and tag rule syncing feed the same queue as everything
// else, so dedup keys make bursts harmless.
func (d *Daemon) scheduleLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Summaries.CheckIntervalMin) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("periodic scheduler started",
		"interval", interval,
		"summaries", d.cfg.EnableSummaries,
		"tag_rules", d.cfg.EnableTagRulesSync)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runScheduledEnqueues(ctx)
		}
	}
}

func (d *Daemon) runScheduledEnqueues(ctx context.Context) {
	repos, err := d.registry.ListEnabled(ctx)
	if err != nil {
		d.logger.Error("scheduler failed to list repos", "error", err)
		return
	}

	for _, repo := range repos {
		if d.cfg.EnableSummaries && repo.AutoSumm {
			d.enqueueScheduled(ctx, repo, models.JobTypeSummarizeFiles, "summarize_files")
			d.enqueueScheduled(ctx, repo, models.JobTypeSummarizeSymbols, "summarize_symbols")
		}

		if d.cfg.EnableTagRulesSync {
			d.enqueueScheduled(ctx, repo, models.JobTypeTagRulesSync, "tag_rules_sync")
		}
	}
}

func (d *Daemon) enqueueScheduled(ctx context.Context, repo models.Repo, jt models.JobType, suffix string) {
	_, err := d.queue.Enqueue(ctx, queue.EnqueueRequest{
		RepoName:   repo.Name,
		SchemaName: repo.SchemaName,
		JobType:    jt,
		Priority:   models.Priority(jt),
		DedupKey:   repo.Name + ":" + suffix,
	})
	if err != nil {
		d.logger.Error("scheduled enqueue failed",
			"repo", repo.Name, "job_type", jt, "error", err)
	}
}

// backfillEmbeddings enqueues an EMBED_MISSING pass for every enabled repo
// with auto_embed set
func (d *Daemon) backfillEmbeddings(ctx context.Context) {
	repos, err := d.registry.ListEnabled(ctx)
	if err != nil {
		d.logger.Error("backfill failed to list repos", "error", err)
		return
	}

	for _, repo := range repos {
		if !repo.AutoEmbed {
			continue
		}

		d.enqueueScheduled(ctx, repo, models.JobTypeEmbedMissing, "embed_missing")
	}

	d.logger.Info("embedding backfill enqueued", "repos", len(repos))
}

// Queue exposes the queue RPC surface to management callers
func (d *Daemon) Queue() *queue.Postgres {
	return d.queue
}

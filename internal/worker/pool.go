package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// Processor performs the work for one claimed job. Implementations are
// opaque to the pool: they may suspend freely, must be idempotent with
// respect to replays, and must never mutate job rows directly.
type Processor interface {
	Process(ctx context.Context, job *models.Job) error
}

// ProcessorResolver maps a job type to its processor
type ProcessorResolver interface {
	Resolve(jt models.JobType) (Processor, error)
}

// RepoInfoSource supplies the registration flags and file counts the
// follow-up fan-out consults after a parent completes.
type RepoInfoSource interface {
	FollowUpInfo(ctx context.Context, repoName string) (storage.FollowUpInfo, error)
}

// maxIdlePolls is how many consecutive empty polls a repo-bound worker
// tolerates before releasing its slot.
const maxIdlePolls = 5

// Pool drives the queue under three composed concurrency limits: global,
// per-repo, and (in pool mode) per-job-type.
type Pool struct {
	cfg       config.WorkersConfig
	claimSize int
	queue     queue.Queue
	resolver  ProcessorResolver
	repos     RepoInfoSource
	logger    logger.Logger
	daemonID  string

	globalSem *semaphore.Weighted
	typeSems  map[models.JobType]*semaphore.Weighted

	repoSemMu sync.Mutex
	repoSems  map[string]*semaphore.Weighted

	// per_repo mode state
	activeMu    sync.Mutex
	activeRepos map[string]bool
	lastServed  map[string]time.Time

	// inflight tracks running processors so shutdown can drain them
	inflight sync.WaitGroup
}

// New creates a worker pool
func New(cfg config.WorkersConfig, claimBatchSize int, q queue.Queue, resolver ProcessorResolver, repos RepoInfoSource, daemonID string, log logger.Logger) *Pool {
	p := &Pool{
		cfg:         cfg,
		claimSize:   claimBatchSize,
		queue:       q,
		resolver:    resolver,
		repos:       repos,
		logger:      log.Named("worker-pool"),
		daemonID:    daemonID,
		globalSem:   semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		typeSems:    make(map[models.JobType]*semaphore.Weighted),
		repoSems:    make(map[string]*semaphore.Weighted),
		activeRepos: make(map[string]bool),
		lastServed:  make(map[string]time.Time),
	}

	for name, limit := range cfg.JobTypeLimits {
		if limit > 0 {
			p.typeSems[models.JobType(name)] = semaphore.NewWeighted(int64(limit))
		}
	}

	return p
}

// Run starts the pool in its configured mode and blocks until ctx is
// cancelled and all spawned workers have returned. In-flight processors are
// not interrupted; they run to the per-job timeout, and Drain waits for them.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("starting worker pool",
		"mode", p.cfg.Mode, "max_workers", p.cfg.MaxWorkers,
		"max_concurrent_per_repo", p.cfg.MaxConcurrentPerRepo)

	var wg sync.WaitGroup

	switch p.cfg.Mode {
	case "single":
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, p.workerID("single-0"), 1, "", true)
		}()

	case "per_repo":
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.perRepoCoordinator(ctx, &wg)
		}()

	default: // pool
		for i := 0; i < p.cfg.MaxWorkers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p.workerLoop(ctx, p.workerID(fmt.Sprintf("pool-%d", i)), p.claimSize, "", false)
			}(i)
		}
	}

	wg.Wait()
	p.logger.Info("worker pool stopped")

	return nil
}

// Drain blocks until in-flight processors finish or the ceiling elapses
func (p *Pool) Drain(ceiling time.Duration) {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ceiling):
		p.logger.Warn("drain ceiling reached with processors still in flight")
	}
}

func (p *Pool) workerID(suffix string) string {
	return p.daemonID + ":" + suffix
}

// workerLoop claims and processes jobs until ctx is cancelled. An empty
// forRepo claims across all repos.
func (p *Pool) workerLoop(ctx context.Context, workerID string, claimLimit int, forRepo string, skipGlobal bool) {
	p.logger.Info("worker started", "worker", workerID, "mode", p.cfg.Mode)

	for {
		if ctx.Err() != nil {
			break
		}

		jobs, err := p.queue.Claim(ctx, workerID, queue.ClaimOptions{
			Limit:    claimLimit,
			RepoName: forRepo,
		})
		if err != nil {
			p.logger.Error("claim failed", "worker", workerID, "error", err)
			p.sleep(ctx)
			continue
		}

		if len(jobs) == 0 {
			p.sleep(ctx)
			continue
		}

		for _, job := range jobs {
			p.processJob(ctx, workerID, job, skipGlobal)
		}
	}

	p.logger.Info("worker stopped", "worker", workerID)
}

// repoWorkerLoop processes one repo's jobs and self-terminates after enough
// consecutive empty polls so a quiescent repo releases its slot.
func (p *Pool) repoWorkerLoop(ctx context.Context, repoName string) {
	workerID := p.workerID("repo-" + repoName)
	p.logger.Info("repo worker started", "worker", workerID)

	idle := 0
	for ctx.Err() == nil && idle < maxIdlePolls {
		jobs, err := p.queue.Claim(ctx, workerID, queue.ClaimOptions{
			Limit:    1,
			RepoName: repoName,
		})
		if err != nil {
			p.logger.Error("claim failed", "worker", workerID, "error", err)
			p.sleep(ctx)
			continue
		}

		if len(jobs) == 0 {
			idle++
			p.sleep(ctx)
			continue
		}

		idle = 0
		for _, job := range jobs {
			p.processJob(ctx, workerID, job, true)
		}
	}

	p.logger.Info("repo worker stopped", "worker", workerID, "idle_polls", idle)

	p.activeMu.Lock()
	delete(p.activeRepos, repoName)
	p.activeMu.Unlock()
}

// perRepoCoordinator polls for repos with pending work and spawns
// repo-bound workers, least-recently-served first, up to max_workers.
func (p *Pool) perRepoCoordinator(ctx context.Context, wg *sync.WaitGroup) {
	p.logger.Info("per-repo coordinator started")

	for ctx.Err() == nil {
		repos, err := p.queue.PendingRepos(ctx)
		if err != nil {
			p.logger.Error("failed to list pending repos", "error", err)
			p.sleep(ctx)
			continue
		}

		p.orderByLastServed(repos)

		for _, repoName := range repos {
			p.activeMu.Lock()

			if p.activeRepos[repoName] {
				p.activeMu.Unlock()
				continue
			}

			if len(p.activeRepos) >= p.cfg.MaxWorkers {
				p.activeMu.Unlock()
				break
			}

			p.activeRepos[repoName] = true
			p.lastServed[repoName] = time.Now()
			p.activeMu.Unlock()

			p.logger.Info("spawning repo worker", "repo", repoName)

			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				p.repoWorkerLoop(ctx, name)
			}(repoName)
		}

		p.sleep(ctx)
	}

	p.logger.Info("per-repo coordinator stopped")
}

// orderByLastServed sorts repos so the least recently served runs first.
// Repos never served sort before everything else.
func (p *Pool) orderByLastServed(repos []string) {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()

	served := func(name string) time.Time {
		return p.lastServed[name]
	}

	for i := 1; i < len(repos); i++ {
		for j := i; j > 0 && served(repos[j]).Before(served(repos[j-1])); j-- {
			repos[j], repos[j-1] = repos[j-1], repos[j]
		}
	}
}

// processJob acquires the composed limits in order (global, per-repo,
// per-type) and executes the job.
func (p *Pool) processJob(ctx context.Context, workerID string, job *models.Job, skipGlobal bool) {
	if !skipGlobal {
		if err := p.globalSem.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.globalSem.Release(1)
	}

	repoSem := p.repoSem(job.RepoName)
	if err := repoSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer repoSem.Release(1)

	if p.cfg.Mode == "pool" {
		if typeSem, ok := p.typeSems[job.JobType]; ok {
			if err := typeSem.Acquire(ctx, 1); err != nil {
				return
			}
			defer typeSem.Release(1)
		}
	}

	p.executeJob(ctx, workerID, job)
}

func (p *Pool) repoSem(repoName string) *semaphore.Weighted {
	p.repoSemMu.Lock()
	defer p.repoSemMu.Unlock()

	sem, ok := p.repoSems[repoName]
	if !ok {
		sem = semaphore.NewWeighted(int64(p.cfg.MaxConcurrentPerRepo))
		p.repoSems[repoName] = sem
	}

	return sem
}

// executeJob runs the processor under the per-job timeout, records the
// outcome on the queue, and fans out follow-ups on success.
//
// The processor context is detached from the shutdown gate: in-flight work
// is never interrupted mid-execution, it only expires at the timeout.
func (p *Pool) executeJob(ctx context.Context, workerID string, job *models.Job) {
	p.logger.Info("processing job",
		"job_id", job.ID, "job_type", job.JobType, "repo", job.RepoName,
		"attempt", job.Attempts, "worker", workerID)

	proc, err := p.resolver.Resolve(job.JobType)
	if err != nil {
		p.failJob(ctx, workerID, job, queue.FailCause{
			Error:     err.Error(),
			Detail:    models.ErrorDetail{Type: "validation", Message: err.Error()},
			Permanent: true,
		})
		return
	}

	timeout := time.Duration(p.cfg.JobTimeoutSec) * time.Second
	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan error, 1)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Newf("processor panic: %v", r).
					WithCode(errors.CodeProcessor).
					WithMetadata("panic_type", fmt.Sprintf("%T", r)).
					WithMetadata("stack", string(debug.Stack()))
			}
		}()

		done <- proc.Process(procCtx, job)
	}()

	select {
	case procErr := <-done:
		if procErr != nil {
			p.failJob(ctx, workerID, job, classify(procErr))
			return
		}

	case <-procCtx.Done():
		// Abandon the processor but still fail the job so the queue is not
		// left with a permanently CLAIMED row. The goroutine observes the
		// cancelled context if it is well behaved; the health monitor's
		// stuck-release is the authoritative backstop otherwise.
		p.failJob(ctx, workerID, job, queue.FailCause{
			Error: fmt.Sprintf("job timed out after %s", timeout),
			Detail: models.ErrorDetail{
				Type:    "timeout",
				Message: fmt.Sprintf("exceeded job_timeout_sec=%d", p.cfg.JobTimeoutSec),
			},
		})
		return
	}

	ok, err := p.queue.Complete(ctx, job.ID, workerID)
	if err != nil {
		p.logger.Error("failed to record completion", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		// Ownership lost: another instance released and reclaimed this job,
		// so the eventual owner handles the fan-out.
		return
	}

	p.logger.Info("job completed", "job_id", job.ID, "job_type", job.JobType, "repo", job.RepoName)

	p.enqueueFollowups(ctx, job)
}

func (p *Pool) failJob(ctx context.Context, workerID string, job *models.Job, cause queue.FailCause) {
	ok, err := p.queue.Fail(ctx, job.ID, workerID, cause)
	if err != nil {
		p.logger.Error("failed to record failure", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		p.logger.Warn("lost ownership while failing job", "job_id", job.ID, "worker", workerID)
	}
}

// classify maps a processor error onto the queue's retry taxonomy
func classify(err error) queue.FailCause {
	cause := queue.FailCause{
		Error: err.Error(),
		Detail: models.ErrorDetail{
			Type:    string(errors.GetCode(err)),
			Message: err.Error(),
		},
	}

	if !errors.IsRetryable(err) {
		cause.Permanent = true
	}

	return cause
}

// enqueueFollowups fans out the dependency map for a completed parent using
// the registry's current feature flags. Disabled or unregistered repos get
// no follow-ups.
func (p *Pool) enqueueFollowups(ctx context.Context, job *models.Job) {
	info, err := p.repos.FollowUpInfo(ctx, job.RepoName)
	if err != nil {
		p.logger.Error("failed to load repo flags for follow-ups",
			"repo", job.RepoName, "error", err)
		return
	}

	if !info.Found || !info.Enabled {
		return
	}

	fctx := FollowUpContext{
		Flags:      info.Flags,
		TotalFiles: info.TotalFiles,
	}

	if job.JobType == models.JobTypeReindexMany {
		if payload, err := models.DecodeReindexMany(job.Payload); err == nil {
			fctx.ChangedPaths = len(payload.Entries)
		}
	}

	for _, f := range Followups(job.JobType, fctx) {
		res, err := p.queue.Enqueue(ctx, queue.EnqueueRequest{
			RepoName:   job.RepoName,
			SchemaName: job.SchemaName,
			JobType:    f.JobType,
			Priority:   f.Priority,
			DedupKey:   f.DedupKey(job.RepoName),
		})
		if err != nil {
			p.logger.Error("failed to enqueue follow-up",
				"parent", job.JobType, "follow_up", f.JobType, "error", err)
			continue
		}

		if !res.Deduplicated {
			p.logger.Info("enqueued follow-up",
				"parent", job.JobType, "follow_up", f.JobType,
				"repo", job.RepoName, "job_id", res.JobID)
		}
	}
}

func (p *Pool) sleep(ctx context.Context) {
	interval := time.Duration(p.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}

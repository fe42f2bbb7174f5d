// Package queue provides the durable job queue at the center of the daemon.
//
// The Postgres implementation keeps all state in the control namespace.
// Three store-level mechanisms carry the concurrency guarantees:
//
//   - claims run a single UPDATE whose inner SELECT uses FOR UPDATE SKIP
//     LOCKED, so concurrent claimers (including other daemon instances)
//     receive disjoint job sets without serializing on each other
//   - a partial unique index over active (repo_name, job_type, dedup_key)
//     rows absorbs the race between the advisory dedup pre-check and the
//     insert
//   - complete/fail/stuck-release are conditional UPDATEs whose ownership
//     predicate makes lost claims visible as a false return, never an error
//
// Retryable failures re-enter PENDING with run_after pushed out by
// base * 2^(attempt-1), capped. Permanent failures (validation, unknown
// repo) burn the remaining attempts immediately.
//
// Basic usage:
//
//	q := queue.NewPostgres(db, queue.Options{
//	    MaxAttempts: cfg.Jobs.MaxRetries,
//	    BackoffBase: time.Duration(cfg.Jobs.RetryBackoffBaseSec) * time.Second,
//	    BackoffCap:  time.Hour,
//	}, log)
//
//	res, err := q.Enqueue(ctx, queue.EnqueueRequest{
//	    RepoName:   "wrestling-game",
//	    SchemaName: "robomonkey_wrestling_game",
//	    JobType:    models.JobTypeFullIndex,
//	    Priority:   models.Priority(models.JobTypeFullIndex),
//	    DedupKey:   "wrestling-game:full_index",
//	})
//
// The in-memory implementation mirrors these semantics for unit tests of
// the worker pool, watcher, and health monitor.
package queue

// Package worker drives the job queue: it claims jobs, runs processors
// under a per-job timeout, records outcomes, and fans out follow-up jobs.
//
// Three modes share one processing path:
//
//   - single: one logical worker, every job type, no global semaphore
//   - per_repo: a coordinator spawns repo-bound workers (least recently
//     served first) that self-terminate after consecutive empty polls
//   - pool: a fixed population of generic workers competes for any job
//
// Regardless of mode, three limits compose in acquisition order: global
// (max_workers), per-repo (max_concurrent_per_repo), and per-job-type
// (job_type_limits, pool mode only).
//
// The follow-up dependency map lives in Followups as a pure function of
// (parent job type, repo flags, change ratio), so the fan-out is directly
// testable and independent of wall-clock timing.
package worker

// Package daemon is the supervisor: it owns startup (config, pool, control
// DDL, instance registration), the background activities (worker pool,
// watcher, health monitor, heartbeat, periodic schedulers), and graceful
// shutdown (drain with a ceiling, mark STOPPED, close the pool).
//
// Cancellation of the context passed to Run is the single shutdown gate;
// every background loop observes it at each suspension point. In-flight
// processors are never interrupted mid-execution: they run to the per-job
// timeout, and another instance's stuck-release reclaims anything a crashed
// daemon leaves CLAIMED.
package daemon

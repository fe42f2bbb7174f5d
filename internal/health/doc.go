// Package health implements the daemon's periodic self-healing loop.
//
// Because the store is the single source of truth, invariant violations are
// detectable and repairable with reads and enqueues: repos whose embedding
// coverage drops below 95% get an EMBED_MISSING repair job (with a health
// dedup key so bursts collapse), and CLAIMED jobs whose owner has been
// silent past the stuck threshold are rewritten back to PENDING without
// touching their attempt count. Each action is also recorded in the control
// namespace's system log.
package health

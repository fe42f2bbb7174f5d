// Package logger provides structured logging for the indexing daemon, built
// on uber-go/zap.
//
// Every component receives a named child logger so log lines carry their
// origin ("queue", "worker-pool", "watcher", "health", "daemon"). Output is
// json by default; console encoding and an optional log file are selected by
// the daemon's logging config section.
//
// Basic usage:
//
//	log := logger.New(logger.Config{Level: "info", Format: "json"})
//	qlog := log.Named("queue")
//	qlog.Info("job enqueued", "job_id", id, "job_type", jt)
package logger

// Package storage provides the control-namespace persistence layer: the
// shared connection pool, the idempotent control DDL installer, and
// repositories for repo registrations, daemon instances, and the system log.
//
// Control-namespace statements always use fully-qualified table names; the
// scoped search_path mechanism is reserved for repo-scoped processors (see
// the schema package). That split eliminates stale-scope bugs when pooled
// connections are reused.
//
// Basic usage:
//
//	db, err := storage.Open(ctx, cfg.Database, log)
//	if err != nil {
//	    return err
//	}
//	if err := storage.EnsureControlSchema(ctx, db); err != nil {
//	    return err
//	}
//	registry := storage.NewRegistry(db, log)
package storage

// Package config loads and validates the daemon's YAML configuration.
//
// The config file path comes from the --config flag, the ROBOMONKEY_CONFIG
// environment variable, or config/robomonkey.yaml, in that order. Every
// option has a default; ROBOMONKEY_* environment variables override file
// values (e.g. ROBOMONKEY_DATABASE_CONTROL_DSN).
//
// Invalid configuration is fatal at startup. The effective configuration is
// logged and persisted with credentials redacted via Redacted()/Snapshot().
//
// Basic usage:
//
//	cfg, err := config.Load(flagConfigPath)
//	if err != nil {
//	    log.Fatal("invalid configuration", "error", err)
//	}
package config

// Package models defines the core entities shared across the daemon: jobs
// and their typed payloads, repository registrations with feature flags,
// per-repo index state, and daemon instance rows.
//
// Job payloads travel as opaque JSON on the wire and in the store; the typed
// payload structs and their Decode helpers are the in-process view, and
// decoding doubles as payload validation (a malformed payload is a
// validation error, which the worker pool treats as permanent).
package models

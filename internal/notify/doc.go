// Package notify publishes job lifecycle events (enqueued, completed,
// failed, released) to a redis channel when the events feed is enabled.
//
// The feed exists for live consumers like the admin panel; the queue and
// workers never depend on it, and a dead redis only costs log lines.
package notify

// Package watcher translates filesystem events into queued reindex jobs.
//
// Raw events for enabled auto-watch repos are projected to
// (repo, relative path, op) and deposited into a pending map where the last
// observed op per path wins. Every debounce interval the map is flushed:
// a repo with one pending event yields a REINDEX_FILE job, a repo with
// several yields a single REINDEX_MANY carrying the full path list. Watch
// jobs run at priority 6: above scheduled reindex, below interactive.
//
// The watcher is a producer only; it never claims or processes jobs.
package watcher

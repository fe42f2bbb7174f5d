// Package processor maps job types to the code that performs them.
//
// Each canonical processor is a thin adapter with one shape: decode and
// validate the payload, resolve the repo registration, scope a connection
// to the repo's namespace, and hand off to a collaborator (indexer,
// embedder, doc ingester, summarizer, tag syncer). Processors never mutate
// job rows; the queue owns every status transition.
//
// Collaborators are interfaces so the heavyweight ones (tree-sitter
// parsing, alternative embedding backends) can be swapped in through Deps.
// The built-ins here keep the pipeline functional end to end: a filesystem
// indexer with line-window chunking, HTTP clients for the ollama and
// OpenAI-compatible providers, a markdown doc ingester, and a path-pattern
// tag rule applier.
//
// All processors are idempotent with respect to reruns of the same payload,
// because retries and dedup races cause replays.
package processor

package processor

import (
	"context"

	"github.com/TheYonk/robomonkey/internal/models"
)

// The coordination core treats the actual work as opaque: parsers,
// embedding clients, LLM clients, and tag engines sit behind these
// collaborator contracts. Built-in implementations live in this package;
// richer ones can be swapped in through Deps.

// IndexStats summarizes what an index pass touched
type IndexStats struct {
	Files   int
	Symbols int
	Chunks  int
}

// Indexer scans source trees into the repo namespace
type Indexer interface {
	// FullIndex rebuilds the file and chunk inventory for the whole tree
	FullIndex(ctx context.Context, scope RepoScope) (IndexStats, error)

	// ReindexFile applies one file change
	ReindexFile(ctx context.Context, scope RepoScope, change models.FileChange) error

	// ReindexMany applies a batch of file changes, returning how many applied
	ReindexMany(ctx context.Context, scope RepoScope, changes []models.FileChange) (int, error)
}

// Embedder fills in missing vectors
type Embedder interface {
	// EmbedMissing embeds chunks and documents without an embedding row
	EmbedMissing(ctx context.Context, scope RepoScope) (int, error)

	// EmbedSummaries embeds summaries without an embedding row
	EmbedSummaries(ctx context.Context, scope RepoScope) (int, error)
}

// DocIngester scans documentation files into the document table
type DocIngester interface {
	ScanDocs(ctx context.Context, scope RepoScope) (int, error)
}

// Summarizer generates natural-language summaries
type Summarizer interface {
	SummarizeFiles(ctx context.Context, scope RepoScope) (int, error)
	SummarizeSymbols(ctx context.Context, scope RepoScope) (int, error)
	RegenerateSummary(ctx context.Context, scope RepoScope) error
}

// TagSyncer applies the repo's tag rules to indexed entities
type TagSyncer interface {
	SyncRules(ctx context.Context, scope RepoScope) (int, error)
}

package processor

import (
	"context"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
	"github.com/TheYonk/robomonkey/pkg/retry"
)

// httpEmbedder is the built-in Embedder: it batches rows missing a vector
// through the configured provider and writes pgvector literals back.
type httpEmbedder struct {
	model            string
	batchSize        int
	rebuildIndexes   bool
	rebuildThreshold int
	indexType        string
	client           *providerClient
	logger           logger.Logger
}

func newHTTPEmbedder(cfg *config.Config, log logger.Logger) *httpEmbedder {
	batch := cfg.Embeddings.BatchSize
	if batch <= 0 {
		batch = 32
	}

	return &httpEmbedder{
		model:            cfg.Embeddings.Model,
		batchSize:        batch,
		rebuildIndexes:   cfg.Embeddings.AutoRebuildIndexes,
		rebuildThreshold: cfg.Embeddings.RebuildChangeThreshold,
		indexType:        cfg.Embeddings.RebuildIndexType,
		client:           newProviderClient(cfg.Embeddings.Provider, cfg.Embeddings.Active()),
		logger:           log.Named("embedder"),
	}
}

type embedTarget struct {
	ID      string
	Content string
}

// EmbedMissing embeds chunks and documents without an embedding row.
// Idempotent: each pass only selects rows still missing a vector, so
// replays converge.
func (e *httpEmbedder) EmbedMissing(ctx context.Context, scope RepoScope) (int, error) {
	chunks, err := e.embedTable(ctx, scope,
		`SELECT c.id, c.content
		 FROM chunk c
		 LEFT JOIN chunk_embedding ce ON ce.chunk_id = c.id
		 WHERE ce.chunk_id IS NULL
		 ORDER BY c.id
		 LIMIT $1`,
		`INSERT INTO chunk_embedding (chunk_id, embedding, model)
		 VALUES ($1, $2::vector, $3)
		 ON CONFLICT (chunk_id) DO NOTHING`)
	if err != nil {
		return chunks, err
	}

	docs, err := e.embedTable(ctx, scope,
		`SELECT d.id, d.content
		 FROM document d
		 LEFT JOIN document_embedding de ON de.document_id = d.id
		 WHERE de.document_id IS NULL
		 ORDER BY d.id
		 LIMIT $1`,
		`INSERT INTO document_embedding (document_id, embedding, model)
		 VALUES ($1, $2::vector, $3)
		 ON CONFLICT (document_id) DO NOTHING`)
	if err != nil {
		return chunks + docs, err
	}

	total := chunks + docs
	if e.rebuildIndexes && e.rebuildThreshold > 0 && total >= e.rebuildThreshold {
		if rebuildErr := e.rebuildVectorIndex(ctx, scope); rebuildErr != nil {
			// A stale approximate index degrades recall, not correctness
			e.logger.Warn("vector index rebuild failed",
				"repo", scope.RepoName, "error", rebuildErr)
		}
	}

	return total, nil
}

// rebuildVectorIndex recreates the approximate-NN index after a large batch
// of inserts so its clustering reflects the new distribution.
func (e *httpEmbedder) rebuildVectorIndex(ctx context.Context, scope RepoScope) error {
	method := "hnsw"
	if e.indexType == "ivfflat" {
		method = "ivfflat"
	}

	statements := []string{
		`DROP INDEX IF EXISTS chunk_embedding_ann`,
		`CREATE INDEX chunk_embedding_ann ON chunk_embedding USING ` + method + ` (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := scope.Conn.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to rebuild vector index").
				WithCode(errors.CodeDatabase)
		}
	}

	e.logger.Info("vector index rebuilt",
		"repo", scope.RepoName, "index_type", method)
	return nil
}

// EmbedSummaries embeds summaries without an embedding row
func (e *httpEmbedder) EmbedSummaries(ctx context.Context, scope RepoScope) (int, error) {
	return e.embedTable(ctx, scope,
		`SELECT s.id, s.content
		 FROM summary s
		 LEFT JOIN summary_embedding se ON se.summary_id = s.id
		 WHERE se.summary_id IS NULL
		 ORDER BY s.id
		 LIMIT $1`,
		`INSERT INTO summary_embedding (summary_id, embedding, model)
		 VALUES ($1, $2::vector, $3)
		 ON CONFLICT (summary_id) DO NOTHING`)
}

// embedTable drains one missing-embedding query batch by batch
func (e *httpEmbedder) embedTable(ctx context.Context, scope RepoScope, selectQ, insertQ string) (int, error) {
	total := 0

	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		var targets []embedTarget
		rows, err := scope.Conn.QueryxContext(ctx, selectQ, e.batchSize)
		if err != nil {
			return total, errors.Wrap(err, "failed to select embedding targets").
				WithCode(errors.CodeDatabase)
		}

		for rows.Next() {
			var t embedTarget
			if err := rows.Scan(&t.ID, &t.Content); err != nil {
				rows.Close()
				return total, errors.Wrap(err, "failed to scan embedding target").
					WithCode(errors.CodeDatabase)
			}
			targets = append(targets, t)
		}
		rows.Close()

		if len(targets) == 0 {
			return total, nil
		}

		inputs := make([]string, len(targets))
		for i, t := range targets {
			inputs[i] = t.Content
		}

		var vectors [][]float64
		err = retry.DoWithContext(ctx, func(ctx context.Context) error {
			var embedErr error
			vectors, embedErr = e.client.Embed(ctx, e.model, inputs)
			return embedErr
		}, retry.WithMaxAttempts(3))
		if err != nil {
			return total, err
		}

		for i, t := range targets {
			_, err := scope.Conn.ExecContext(ctx, insertQ,
				t.ID, vectorLiteral(vectors[i]), e.model)
			if err != nil {
				return total, errors.Wrap(err, "failed to insert embedding").
					WithCode(errors.CodeDatabase)
			}
		}

		total += len(targets)
		e.logger.Debug("embedded batch", "repo", scope.RepoName, "count", len(targets))
	}
}

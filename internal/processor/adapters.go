package processor

import (
	"context"

	"github.com/TheYonk/robomonkey/internal/models"
)

// Canonical processors, one per job type. Each is a thin adapter between a
// claimed job and a collaborator; none of them touch job rows.

type fullIndexProcessor struct{ deps Deps }

func (p *fullIndexProcessor) Process(ctx context.Context, job *models.Job) error {
	if _, err := models.DecodeFullIndex(job.Payload); err != nil {
		return err
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		stats, err := p.deps.Indexer.FullIndex(ctx, scope)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("full index complete",
			"repo", scope.RepoName, "files", stats.Files, "chunks", stats.Chunks)
		return nil
	})
}

type reindexFileProcessor struct{ deps Deps }

func (p *reindexFileProcessor) Process(ctx context.Context, job *models.Job) error {
	payload, err := models.DecodeReindexFile(job.Payload)
	if err != nil {
		return err
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		return p.deps.Indexer.ReindexFile(ctx, scope, models.FileChange{
			Path: payload.Path,
			Op:   payload.Op,
		})
	})
}

type reindexManyProcessor struct{ deps Deps }

func (p *reindexManyProcessor) Process(ctx context.Context, job *models.Job) error {
	payload, err := models.DecodeReindexMany(job.Payload)
	if err != nil {
		return err
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		applied, err := p.deps.Indexer.ReindexMany(ctx, scope, payload.Entries)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("batch reindex complete",
			"repo", scope.RepoName, "applied", applied, "requested", len(payload.Entries))
		return nil
	})
}

type docsScanProcessor struct{ deps Deps }

func (p *docsScanProcessor) Process(ctx context.Context, job *models.Job) error {
	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		ingested, err := p.deps.Docs.ScanDocs(ctx, scope)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("docs scan complete", "repo", scope.RepoName, "documents", ingested)
		return nil
	})
}

type tagRulesSyncProcessor struct{ deps Deps }

func (p *tagRulesSyncProcessor) Process(ctx context.Context, job *models.Job) error {
	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		applied, err := p.deps.Tags.SyncRules(ctx, scope)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("tag rules synced", "repo", scope.RepoName, "applied", applied)
		return nil
	})
}

type embedMissingProcessor struct{ deps Deps }

func (p *embedMissingProcessor) Process(ctx context.Context, job *models.Job) error {
	if !p.deps.Config.Embeddings.Enabled {
		p.deps.Logger.Info("embeddings disabled, skipping", "repo", job.RepoName)
		return nil
	}

	if _, err := models.DecodeEmbedMissing(job.Payload); err != nil {
		return err
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		embedded, err := p.deps.Embedder.EmbedMissing(ctx, scope)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("embedding pass complete", "repo", scope.RepoName, "embedded", embedded)
		return nil
	})
}

type embedSummariesProcessor struct{ deps Deps }

func (p *embedSummariesProcessor) Process(ctx context.Context, job *models.Job) error {
	if !p.deps.Config.Embeddings.Enabled {
		p.deps.Logger.Info("embeddings disabled, skipping", "repo", job.RepoName)
		return nil
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		embedded, err := p.deps.Embedder.EmbedSummaries(ctx, scope)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("summary embedding pass complete", "repo", scope.RepoName, "embedded", embedded)
		return nil
	})
}

type summarizeFilesProcessor struct{ deps Deps }

func (p *summarizeFilesProcessor) Process(ctx context.Context, job *models.Job) error {
	if !p.deps.Config.LLM.Enabled {
		p.deps.Logger.Info("llm disabled, skipping file summaries", "repo", job.RepoName)
		return nil
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		generated, err := p.deps.Summarizer.SummarizeFiles(ctx, scope)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("file summaries generated", "repo", scope.RepoName, "count", generated)
		return nil
	})
}

type summarizeSymbolsProcessor struct{ deps Deps }

func (p *summarizeSymbolsProcessor) Process(ctx context.Context, job *models.Job) error {
	if !p.deps.Config.LLM.Enabled {
		p.deps.Logger.Info("llm disabled, skipping symbol summaries", "repo", job.RepoName)
		return nil
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		generated, err := p.deps.Summarizer.SummarizeSymbols(ctx, scope)
		if err != nil {
			return err
		}

		p.deps.Logger.Info("symbol summaries generated", "repo", scope.RepoName, "count", generated)
		return nil
	})
}

type regenerateSummaryProcessor struct{ deps Deps }

func (p *regenerateSummaryProcessor) Process(ctx context.Context, job *models.Job) error {
	if !p.deps.Config.LLM.Enabled {
		p.deps.Logger.Info("llm disabled, skipping summary regeneration", "repo", job.RepoName)
		return nil
	}

	return p.deps.withRepoScope(ctx, job, func(scope RepoScope) error {
		return p.deps.Summarizer.RegenerateSummary(ctx, scope)
	})
}

package processor

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/schema"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/internal/worker"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// RepoScope is the environment a collaborator works in: a connection whose
// search path is scoped to the repo's namespace, plus the registration
// facts it needs.
type RepoScope struct {
	RepoName   string
	SchemaName string
	RootPath   string
	Conn       *sqlx.Conn
}

// Deps carries everything processors share. Collaborator fields left nil
// get the built-in implementations.
type Deps struct {
	Config   *config.Config
	DB       *sqlx.DB
	Schemas  *schema.Manager
	Registry *storage.Registry
	Logger   logger.Logger

	Indexer    Indexer
	Embedder   Embedder
	Docs       DocIngester
	Summarizer Summarizer
	Tags       TagSyncer
}

// Registry maps job types to processors
type Registry struct {
	procs map[models.JobType]worker.Processor
}

// NewRegistry wires the canonical processor for every job type. Each
// processor is a thin adapter: decode and validate the payload, scope a
// connection to the repo namespace, and hand off to the collaborator.
func NewRegistry(deps Deps) *Registry {
	if deps.Indexer == nil {
		deps.Indexer = newFSIndexer(deps.Config, deps.Logger)
	}
	if deps.Embedder == nil {
		deps.Embedder = newHTTPEmbedder(deps.Config, deps.Logger)
	}
	if deps.Docs == nil {
		deps.Docs = newDocIngester(deps.Config, deps.Logger)
	}
	if deps.Summarizer == nil {
		deps.Summarizer = newLLMSummarizer(deps.Config, deps.Logger)
	}
	if deps.Tags == nil {
		deps.Tags = newRuleTagSyncer(deps.Logger)
	}

	return &Registry{procs: map[models.JobType]worker.Processor{
		models.JobTypeFullIndex:         &fullIndexProcessor{deps},
		models.JobTypeReindexFile:       &reindexFileProcessor{deps},
		models.JobTypeReindexMany:       &reindexManyProcessor{deps},
		models.JobTypeDocsScan:          &docsScanProcessor{deps},
		models.JobTypeTagRulesSync:      &tagRulesSyncProcessor{deps},
		models.JobTypeEmbedMissing:      &embedMissingProcessor{deps},
		models.JobTypeEmbedSummaries:    &embedSummariesProcessor{deps},
		models.JobTypeSummarizeFiles:    &summarizeFilesProcessor{deps},
		models.JobTypeSummarizeSymbols:  &summarizeSymbolsProcessor{deps},
		models.JobTypeRegenerateSummary: &regenerateSummaryProcessor{deps},
	}}
}

// Resolve returns the processor for a job type
func (r *Registry) Resolve(jt models.JobType) (worker.Processor, error) {
	p, ok := r.procs[jt]
	if !ok {
		return nil, errors.Newf("no processor registered for job type %q", jt).
			WithCode(errors.CodeValidation)
	}

	return p, nil
}

// withRepoScope resolves the job's registration, scopes a connection to its
// namespace, and runs fn. An unregistered repo is a permanent failure for
// the job.
func (d *Deps) withRepoScope(ctx context.Context, job *models.Job, fn func(scope RepoScope) error) error {
	repo, err := d.Registry.Get(ctx, job.RepoName)
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.Wrapf(err, "repo %q does not resolve", job.RepoName).
				WithCode(errors.CodeNamespaceMissing)
		}

		return err
	}

	return d.Schemas.WithSchema(ctx, repo.SchemaName, func(conn *sqlx.Conn) error {
		return fn(RepoScope{
			RepoName:   repo.Name,
			SchemaName: repo.SchemaName,
			RootPath:   repo.RootPath,
			Conn:       conn,
		})
	})
}

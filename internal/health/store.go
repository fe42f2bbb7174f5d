package health

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/schema"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/pkg/errors"
)

// PostgresStore reads monitor inputs from the shared store
type PostgresStore struct {
	db       *sqlx.DB
	registry *storage.Registry
	schemas  *schema.Manager
}

// NewPostgresStore creates the monitor's store
func NewPostgresStore(db *sqlx.DB, registry *storage.Registry, schemas *schema.Manager) *PostgresStore {
	return &PostgresStore{
		db:       db,
		registry: registry,
		schemas:  schemas,
	}
}

// ListEnabled returns enabled repo registrations
func (s *PostgresStore) ListEnabled(ctx context.Context) ([]models.Repo, error) {
	return s.registry.ListEnabled(ctx)
}

// EmbeddingCoverage counts chunks and documents against their embeddings
// inside the repo's namespace.
func (s *PostgresStore) EmbeddingCoverage(ctx context.Context, schemaName string) (Coverage, error) {
	var cov Coverage

	err := s.schemas.WithSchema(ctx, schemaName, func(conn *sqlx.Conn) error {
		return conn.QueryRowxContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM chunk),
				(SELECT COUNT(*) FROM chunk_embedding),
				(SELECT COUNT(*) FROM document),
				(SELECT COUNT(*) FROM document_embedding)`).
			Scan(&cov.TotalChunks, &cov.EmbeddedChunks, &cov.TotalDocs, &cov.EmbeddedDocs)
	})
	if err != nil {
		return cov, errors.Wrapf(err, "failed to compute coverage for %s", schemaName).
			WithCode(errors.CodeDatabase)
	}

	return cov, nil
}

// HasActiveJob reports whether a PENDING or CLAIMED job of the given type
// exists for the repo.
func (s *PostgresStore) HasActiveJob(ctx context.Context, repoName string, jt models.JobType) (bool, error) {
	var active bool
	err := s.db.GetContext(ctx, &active, `
		SELECT EXISTS(
			SELECT 1 FROM robomonkey_control.job_queue
			WHERE repo_name = $1
			  AND job_type = $2
			  AND status IN ('PENDING', 'CLAIMED')
		)`,
		repoName, string(jt))
	if err != nil {
		return false, errors.Wrap(err, "failed to check for active job").
			WithCode(errors.CodeDatabase)
	}

	return active, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// Registry manages repository registrations in the control namespace
type Registry struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewRegistry creates a new registry repository
func NewRegistry(db *sqlx.DB, log logger.Logger) *Registry {
	return &Registry{
		db:     db,
		logger: log.Named("registry"),
	}
}

// CreateParams describes a new repository registration
type CreateParams struct {
	Name       string
	SchemaName string
	RootPath   string
	AutoIndex  bool
	AutoEmbed  bool
	AutoWatch  bool
	AutoSumm   bool
}

// Create registers a repository. Re-registering an existing name updates its
// root path and flags instead of failing, so `index` stays idempotent.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*models.Repo, error) {
	var repo models.Repo
	err := r.db.GetContext(ctx, &repo, `
		INSERT INTO robomonkey_control.repo_registry (
			name, schema_name, root_path,
			auto_index, auto_embed, auto_watch, auto_summaries
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			schema_name = EXCLUDED.schema_name,
			root_path = EXCLUDED.root_path,
			auto_index = EXCLUDED.auto_index,
			auto_embed = EXCLUDED.auto_embed,
			auto_watch = EXCLUDED.auto_watch,
			auto_summaries = EXCLUDED.auto_summaries,
			updated_at = now()
		RETURNING *`,
		p.Name, p.SchemaName, p.RootPath,
		p.AutoIndex, p.AutoEmbed, p.AutoWatch, p.AutoSumm,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to register repo %s", p.Name).
			WithCode(errors.CodeDatabase)
	}

	r.logger.Info("repo registered", "name", repo.Name, "schema", repo.SchemaName)
	return &repo, nil
}

// Get returns a registration by name
func (r *Registry) Get(ctx context.Context, name string) (*models.Repo, error) {
	var repo models.Repo
	err := r.db.GetContext(ctx, &repo,
		`SELECT * FROM robomonkey_control.repo_registry WHERE name = $1`, name)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf("repository %q is not registered", name).
				WithCode(errors.CodeNotFound).
				WithHint("run 'robomonkey index --repo <path> --name <name>' to register it")
		}

		return nil, errors.Wrap(err, "failed to load repo registration").
			WithCode(errors.CodeDatabase)
	}

	return &repo, nil
}

// List returns all registrations
func (r *Registry) List(ctx context.Context) ([]models.Repo, error) {
	var repos []models.Repo
	err := r.db.SelectContext(ctx, &repos,
		`SELECT * FROM robomonkey_control.repo_registry ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list repos").
			WithCode(errors.CodeDatabase)
	}

	return repos, nil
}

// ListEnabled returns enabled registrations
func (r *Registry) ListEnabled(ctx context.Context) ([]models.Repo, error) {
	var repos []models.Repo
	err := r.db.SelectContext(ctx, &repos, `
		SELECT * FROM robomonkey_control.repo_registry
		WHERE enabled = true
		ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list enabled repos").
			WithCode(errors.CodeDatabase)
	}

	return repos, nil
}

// ListWatched returns registrations the filesystem watcher should cover
func (r *Registry) ListWatched(ctx context.Context) ([]models.Repo, error) {
	var repos []models.Repo
	err := r.db.SelectContext(ctx, &repos, `
		SELECT * FROM robomonkey_control.repo_registry
		WHERE enabled = true AND auto_watch = true
		ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list watched repos").
			WithCode(errors.CodeDatabase)
	}

	return repos, nil
}

// SetEnabled toggles a registration
func (r *Registry) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE robomonkey_control.repo_registry
		SET enabled = $2, updated_at = now()
		WHERE name = $1`,
		name, enabled)
	if err != nil {
		return errors.Wrap(err, "failed to update repo registration").
			WithCode(errors.CodeDatabase)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf("repository %q is not registered", name).
			WithCode(errors.CodeNotFound)
	}

	return nil
}

// Delete removes a registration. The per-repo schema is dropped separately
// by the schema manager.
func (r *Registry) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM robomonkey_control.repo_registry WHERE name = $1`, name)
	if err != nil {
		return errors.Wrap(err, "failed to delete repo registration").
			WithCode(errors.CodeDatabase)
	}

	r.logger.Info("repo registration removed", "name", name)
	return nil
}

// FollowUpInfo is what the worker pool needs to fan out follow-up jobs
type FollowUpInfo struct {
	Found      bool
	Enabled    bool
	Flags      models.RepoFlags
	TotalFiles int
}

// FollowUpInfo loads the registration flags plus the repo's current file
// count. A disabled or unregistered repo produces no follow-ups.
func (r *Registry) FollowUpInfo(ctx context.Context, repoName string) (FollowUpInfo, error) {
	repo, err := r.Get(ctx, repoName)
	if err != nil {
		if errors.IsNotFound(err) {
			return FollowUpInfo{}, nil
		}

		return FollowUpInfo{}, err
	}

	info := FollowUpInfo{
		Found:   true,
		Enabled: repo.Enabled,
		Flags:   repo.Flags(),
	}

	// file_count lives in the per-repo namespace; a missing or empty
	// index-state table just means zero files so far.
	var fileCount sql.NullInt64
	q := fmt.Sprintf(`SELECT file_count FROM %q.repo_index_state LIMIT 1`, repo.SchemaName)
	if err := r.db.GetContext(ctx, &fileCount, q); err == nil && fileCount.Valid {
		info.TotalFiles = int(fileCount.Int64)
	}

	return info, nil
}

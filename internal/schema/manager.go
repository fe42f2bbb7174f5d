package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

//go:embed ddl/repo.sql
var repoDDL string

var sanitizePattern = regexp.MustCompile(`[^a-z0-9]+`)

// SchemaName derives the per-repo namespace name from a registration name:
// lowercased, non-alphanumeric runs collapsed to underscores, prefixed.
func SchemaName(repoName string) string {
	sanitized := sanitizePattern.ReplaceAllString(strings.ToLower(repoName), "_")
	sanitized = strings.Trim(sanitized, "_")

	return storage.RepoSchemaPrefix + sanitized
}

// Manager maintains the bijection between repo names and per-repo
// namespaces and enforces namespace isolation for repo-scoped operations.
type Manager struct {
	db        *sqlx.DB
	logger    logger.Logger
	dimension int
}

// NewManager creates a schema manager. dimension is the embedding dimension
// the per-repo vector columns are created with.
func NewManager(db *sqlx.DB, log logger.Logger, dimension int) *Manager {
	return &Manager{
		db:        db,
		logger:    log.Named("schema"),
		dimension: dimension,
	}
}

// WithSchema acquires a dedicated connection, scopes its search path to the
// given schema (with public as fallback for extension types), runs fn, and
// restores the previous search path on every exit. search_path is
// connection-local state, so the scope must never run on the bare pool.
func (m *Manager) WithSchema(ctx context.Context, schemaName string, fn func(conn *sqlx.Conn) error) error {
	conn, err := m.db.Connx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to acquire connection").
			WithCode(errors.CodeStoreUnreachable)
	}
	defer conn.Close()

	return m.WithSchemaConn(ctx, conn, schemaName, fn)
}

// WithSchemaConn scopes an existing connection's search path. Scopes nest:
// each one restores the immediately enclosing value.
func (m *Manager) WithSchemaConn(ctx context.Context, conn *sqlx.Conn, schemaName string, fn func(conn *sqlx.Conn) error) error {
	var previous string
	if err := conn.QueryRowxContext(ctx, `SHOW search_path`).Scan(&previous); err != nil {
		return errors.Wrap(err, "failed to read search_path").
			WithCode(errors.CodeDatabase)
	}

	if _, err := conn.ExecContext(ctx,
		fmt.Sprintf(`SET search_path TO %q, public`, schemaName)); err != nil {
		return errors.Wrapf(err, "failed to scope search_path to %s", schemaName).
			WithCode(errors.CodeDatabase)
	}

	defer func() {
		// Restore even when fn fails; the restore target is the raw value
		// SHOW returned, which is already valid search_path syntax.
		_, _ = conn.ExecContext(context.WithoutCancel(ctx),
			fmt.Sprintf(`SET search_path TO %s`, previous))
	}()

	return fn(conn)
}

// EnsureInitialized creates and initializes the per-repo namespace for
// repoName if needed, returning its schema name.
//
// An existing, well-formed namespace is reused. A partially-initialized
// namespace is an error unless force is set, in which case the namespace is
// dropped cascadingly and rebuilt.
func (m *Manager) EnsureInitialized(ctx context.Context, repoName, rootPath string, force bool) (string, error) {
	schemaName := SchemaName(repoName)

	conn, err := m.db.Connx(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to acquire connection").
			WithCode(errors.CodeStoreUnreachable)
	}
	defer conn.Close()

	exists, err := m.schemaExists(ctx, conn, schemaName)
	if err != nil {
		return "", err
	}

	if exists {
		wellFormed, err := m.repoRowExists(ctx, conn, schemaName, repoName)
		if err != nil {
			return "", err
		}

		if wellFormed && !force {
			return schemaName, nil
		}

		if !force {
			return "", errors.Newf("schema %q exists but is not properly initialized", schemaName).
				WithCode(errors.CodeSchemaExists).
				WithHint("re-run with --force to drop and reinitialize the schema")
		}

		if _, err := conn.ExecContext(ctx,
			fmt.Sprintf(`DROP SCHEMA %q CASCADE`, schemaName)); err != nil {
			return "", errors.Wrapf(err, "failed to drop schema %s", schemaName).
				WithCode(errors.CodeDatabase)
		}

		m.logger.Warn("dropped existing schema for reinitialization", "schema", schemaName)
	}

	if err := m.initialize(ctx, conn, schemaName, repoName, rootPath); err != nil {
		return "", err
	}

	m.logger.Info("schema initialized", "schema", schemaName, "repo", repoName, "dimension", m.dimension)
	return schemaName, nil
}

func (m *Manager) initialize(ctx context.Context, conn *sqlx.Conn, schemaName, repoName, rootPath string) error {
	// Extensions are database-wide and idempotent
	for _, ext := range []string{"pgcrypto", "vector"} {
		if _, err := conn.ExecContext(ctx,
			fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS %q`, ext)); err != nil {
			return errors.Wrapf(err, "failed to create extension %s", ext).
				WithCode(errors.CodeDatabase)
		}
	}

	if _, err := conn.ExecContext(ctx,
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schemaName)); err != nil {
		return errors.Wrapf(err, "failed to create schema %s", schemaName).
			WithCode(errors.CodeDatabase)
	}

	// The DDL ships with vector(1536); rewrite to the active model's
	// dimension so embedding columns match what the embedder produces.
	ddl := strings.ReplaceAll(repoDDL, "vector(1536)",
		fmt.Sprintf("vector(%d)", m.dimension))

	return m.WithSchemaConn(ctx, conn, schemaName, func(conn *sqlx.Conn) error {
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return errors.Wrapf(err, "failed to apply repo DDL in %s", schemaName).
				WithCode(errors.CodeDatabase)
		}

		var repoID string
		err := conn.QueryRowxContext(ctx, `
			INSERT INTO repo (name, root_path)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET root_path = EXCLUDED.root_path
			RETURNING id`,
			repoName, rootPath).Scan(&repoID)
		if err != nil {
			return errors.Wrap(err, "failed to insert repo row").
				WithCode(errors.CodeDatabase)
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO repo_index_state (repo_id)
			VALUES ($1)
			ON CONFLICT (repo_id) DO NOTHING`,
			repoID); err != nil {
			return errors.Wrap(err, "failed to insert repo index state").
				WithCode(errors.CodeDatabase)
		}

		return nil
	})
}

func (m *Manager) schemaExists(ctx context.Context, conn *sqlx.Conn, schemaName string) (bool, error) {
	var exists bool
	err := conn.QueryRowxContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.schemata
			WHERE schema_name = $1
		)`,
		schemaName).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check schema existence").
			WithCode(errors.CodeDatabase)
	}

	return exists, nil
}

func (m *Manager) repoRowExists(ctx context.Context, conn *sqlx.Conn, schemaName, repoName string) (bool, error) {
	var tableExists bool
	err := conn.QueryRowxContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = 'repo'
		)`,
		schemaName).Scan(&tableExists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check repo table").
			WithCode(errors.CodeDatabase)
	}

	if !tableExists {
		return false, nil
	}

	var found bool
	err = m.WithSchemaConn(ctx, conn, schemaName, func(conn *sqlx.Conn) error {
		return conn.QueryRowxContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM repo WHERE name = $1)`, repoName).Scan(&found)
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to check repo row").
			WithCode(errors.CodeDatabase)
	}

	return found, nil
}

// Drop removes a per-repo namespace and everything in it
func (m *Manager) Drop(ctx context.Context, schemaName string) error {
	if !strings.HasPrefix(schemaName, storage.RepoSchemaPrefix) {
		return errors.Newf("refusing to drop non-repo schema %q", schemaName).
			WithCode(errors.CodeValidation)
	}

	if _, err := m.db.ExecContext(ctx,
		fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, schemaName)); err != nil {
		return errors.Wrapf(err, "failed to drop schema %s", schemaName).
			WithCode(errors.CodeDatabase)
	}

	m.logger.Info("schema dropped", "schema", schemaName)
	return nil
}

// ListRepos enumerates per-repo namespaces and joins each with its repo and
// index-state rows. Namespaces that are not well-formed are skipped.
func (m *Manager) ListRepos(ctx context.Context) ([]models.RepoListing, error) {
	var schemas []string
	err := m.db.SelectContext(ctx, &schemas, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name LIKE $1
		ORDER BY schema_name`,
		storage.RepoSchemaPrefix+"%")
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate schemas").
			WithCode(errors.CodeDatabase)
	}

	var results []models.RepoListing
	for _, schemaName := range schemas {
		if schemaName == storage.ControlSchema {
			continue
		}

		listings, err := m.listOne(ctx, schemaName)
		if err != nil {
			// Schema without a repo table, or otherwise malformed: skip
			m.logger.Debug("skipping malformed schema", "schema", schemaName, "error", err)
			continue
		}

		results = append(results, listings...)
	}

	return results, nil
}

func (m *Manager) listOne(ctx context.Context, schemaName string) ([]models.RepoListing, error) {
	var listings []models.RepoListing

	err := m.WithSchema(ctx, schemaName, func(conn *sqlx.Conn) error {
		rows, err := conn.QueryxContext(ctx, `
			SELECT
				r.id AS repo_id,
				r.name AS repo_name,
				r.root_path,
				ris.last_indexed_at,
				COALESCE(ris.file_count, 0) AS file_count,
				COALESCE(ris.symbol_count, 0) AS symbol_count,
				COALESCE(ris.chunk_count, 0) AS chunk_count
			FROM repo r
			LEFT JOIN repo_index_state ris ON r.id = ris.repo_id
			ORDER BY r.created_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			l := models.RepoListing{SchemaName: schemaName}
			if err := rows.Scan(
				&l.RepoID, &l.RepoName, &l.RootPath,
				&l.LastIndexedAt, &l.FileCount, &l.SymbolCount, &l.ChunkCount,
			); err != nil {
				return err
			}

			listings = append(listings, l)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return listings, nil
}

// Resolve maps a repo name or opaque repo id to (repo_id, schema_name).
// The namespace derived from the name is tried first, then all prefixed
// namespaces are scanned.
func (m *Manager) Resolve(ctx context.Context, repoOrID string) (string, string, error) {
	candidates := []string{SchemaName(repoOrID)}

	var all []string
	err := m.db.SelectContext(ctx, &all, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name LIKE $1`,
		storage.RepoSchemaPrefix+"%")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to enumerate schemas").
			WithCode(errors.CodeDatabase)
	}

	seen := map[string]bool{}
	for _, s := range all {
		if s != candidates[0] {
			candidates = append(candidates, s)
		}
	}

	for _, schemaName := range candidates {
		if seen[schemaName] {
			continue
		}
		seen[schemaName] = true

		var repoID string
		err := m.WithSchema(ctx, schemaName, func(conn *sqlx.Conn) error {
			return conn.QueryRowxContext(ctx, `
				SELECT id FROM repo
				WHERE name = $1 OR id::text = $1
				LIMIT 1`,
				repoOrID).Scan(&repoID)
		})

		if err == nil {
			return repoID, schemaName, nil
		}

		if err == sql.ErrNoRows {
			continue
		}
		// Malformed schema (no repo table): keep scanning
	}

	return "", "", errors.Newf("repository %q not found in any schema", repoOrID).
		WithCode(errors.CodeNamespaceMissing).
		WithHint("use 'robomonkey repo ls' to list registered repositories")
}

// SuggestSimilar ranks registered repo names by similarity to query.
// Results at or above threshold are returned in descending similarity,
// ties broken by name.
func (m *Manager) SuggestSimilar(ctx context.Context, query string, threshold float64, maxSuggestions int) ([]errors.Suggestion, error) {
	listings, err := m.ListRepos(ctx)
	if err != nil {
		return nil, err
	}

	var suggestions []errors.Suggestion
	for _, l := range listings {
		score := lcsRatio(query, l.RepoName)
		if score >= threshold {
			suggestions = append(suggestions, errors.Suggestion{
				Name:       l.RepoName,
				Schema:     l.SchemaName,
				Similarity: score,
			})
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Similarity != suggestions[j].Similarity {
			return suggestions[i].Similarity > suggestions[j].Similarity
		}

		return suggestions[i].Name < suggestions[j].Name
	})

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	return suggestions, nil
}

// ResolveWithSuggestions resolves a repo or returns an actionable error
// envelope carrying fuzzy-match suggestions (or the full repo list when
// nothing is close enough).
func (m *Manager) ResolveWithSuggestions(ctx context.Context, repoOrID string) (string, string, *errors.Envelope) {
	repoID, schemaName, err := m.Resolve(ctx, repoOrID)
	if err == nil {
		return repoID, schemaName, nil
	}

	if !errors.IsValidation(err) && !errors.IsNotFound(err) {
		return "", "", &errors.Envelope{
			Error:        err.Error(),
			Query:        repoOrID,
			Why:          "store query failed",
			RecoveryHint: errors.GetHint(err),
		}
	}

	suggestions, suggErr := m.SuggestSimilar(ctx, repoOrID, 0.6, 3)
	if suggErr == nil && len(suggestions) > 0 {
		return "", "", &errors.Envelope{
			Error:        fmt.Sprintf("repository %q not found", repoOrID),
			Query:        repoOrID,
			Suggestions:  suggestions,
			Why:          "repository not found in any schema",
			RecoveryHint: "did you mean one of the suggested repositories? Use 'repo ls' to see all.",
		}
	}

	var names []string
	if listings, err := m.ListRepos(ctx); err == nil {
		for _, l := range listings {
			names = append(names, l.RepoName)
		}
	}

	return "", "", &errors.Envelope{
		Error:          fmt.Sprintf("repository %q not found", repoOrID),
		Query:          repoOrID,
		AvailableRepos: names,
		Why:            "repository not found in any schema",
		RecoveryHint:   "use 'repo ls' for the full repository list",
	}
}

package processor

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// chunkLines is the window size for the built-in line-based chunker.
// Real parsing (tree-sitter symbols, call edges) belongs to an external
// collaborator; the built-in indexer keeps the file and chunk inventory
// accurate enough for embedding and retrieval to operate on.
const chunkLines = 80

// fsIndexer is the built-in Indexer: a filesystem walk that maintains the
// file and chunk tables plus repo_index_state.
type fsIndexer struct {
	extensions map[string]bool
	ignores    []string
	logger     logger.Logger
}

func newFSIndexer(cfg *config.Config, log logger.Logger) *fsIndexer {
	exts := make(map[string]bool)
	for _, e := range cfg.Watcher.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &fsIndexer{
		extensions: exts,
		ignores:    cfg.Watcher.IgnorePatterns,
		logger:     log.Named("indexer"),
	}
}

func (ix *fsIndexer) supported(relPath string) bool {
	if !ix.extensions[strings.ToLower(filepath.Ext(relPath))] {
		return false
	}

	for _, pattern := range ix.ignores {
		if strings.Contains(relPath, pattern) {
			return false
		}
	}

	return true
}

// FullIndex walks the tree, upserts every supported file, rechunks changed
// files, removes rows for files that vanished, and refreshes index state.
func (ix *fsIndexer) FullIndex(ctx context.Context, scope RepoScope) (IndexStats, error) {
	seen := make(map[string]bool)

	err := filepath.WalkDir(scope.RootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(scope.RootPath, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			for _, pattern := range ix.ignores {
				if strings.Contains(rel, pattern) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !ix.supported(rel) {
			return nil
		}

		seen[rel] = true
		return ix.upsertFile(ctx, scope, rel)
	})
	if err != nil {
		return IndexStats{}, errors.Wrap(err, "tree walk failed").
			WithCode(errors.CodeProcessor)
	}

	// Remove rows for files no longer on disk
	rows, err := scope.Conn.QueryxContext(ctx, `SELECT path FROM file`)
	if err != nil {
		return IndexStats{}, errors.Wrap(err, "failed to list indexed files").
			WithCode(errors.CodeDatabase)
	}

	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return IndexStats{}, errors.Wrap(err, "failed to scan file row").
				WithCode(errors.CodeDatabase)
		}
		if !seen[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()

	for _, p := range stale {
		if _, err := scope.Conn.ExecContext(ctx, `DELETE FROM file WHERE path = $1`, p); err != nil {
			return IndexStats{}, errors.Wrapf(err, "failed to delete stale file %s", p).
				WithCode(errors.CodeDatabase)
		}
	}

	return ix.refreshIndexState(ctx, scope)
}

// ReindexFile applies one change
func (ix *fsIndexer) ReindexFile(ctx context.Context, scope RepoScope, change models.FileChange) error {
	switch change.Op {
	case models.FileOpDelete:
		if _, err := scope.Conn.ExecContext(ctx,
			`DELETE FROM file WHERE path = $1`, change.Path); err != nil {
			return errors.Wrapf(err, "failed to delete file %s", change.Path).
				WithCode(errors.CodeDatabase)
		}

	default:
		if err := ix.upsertFile(ctx, scope, change.Path); err != nil {
			return err
		}
	}

	_, err := ix.refreshIndexState(ctx, scope)
	return err
}

// ReindexMany applies a batch of changes. A file that disappeared between
// the event and the claim is skipped, not an error; replays must converge.
func (ix *fsIndexer) ReindexMany(ctx context.Context, scope RepoScope, changes []models.FileChange) (int, error) {
	applied := 0
	for _, change := range changes {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}

		switch change.Op {
		case models.FileOpDelete:
			if _, err := scope.Conn.ExecContext(ctx,
				`DELETE FROM file WHERE path = $1`, change.Path); err != nil {
				return applied, errors.Wrapf(err, "failed to delete file %s", change.Path).
					WithCode(errors.CodeDatabase)
			}
			applied++

		default:
			err := ix.upsertFile(ctx, scope, change.Path)
			if err != nil {
				if errors.GetCode(err) == errors.CodeNotFound {
					ix.logger.Debug("file vanished before reindex", "path", change.Path)
					continue
				}
				return applied, err
			}
			applied++
		}
	}

	_, err := ix.refreshIndexState(ctx, scope)
	return applied, err
}

// upsertFile records one file and rebuilds its chunks when content changed
func (ix *fsIndexer) upsertFile(ctx context.Context, scope RepoScope, relPath string) error {
	absPath := filepath.Join(scope.RootPath, relPath)

	info, err := os.Stat(absPath)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", relPath).
			WithCode(errors.CodeNotFound)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s", relPath).
			WithCode(errors.CodeProcessor)
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	var existingHash sql.NullString
	_ = scope.Conn.QueryRowxContext(ctx,
		`SELECT content_hash FROM file WHERE path = $1`, relPath).Scan(&existingHash)

	var fileID string
	err = scope.Conn.QueryRowxContext(ctx, `
		INSERT INTO file (repo_id, path, lang, size_bytes, content_hash, mtime, indexed_at)
		SELECT r.id, $1, $2, $3, $4, $5, now() FROM repo r
		ON CONFLICT (path) DO UPDATE SET
			lang = EXCLUDED.lang,
			size_bytes = EXCLUDED.size_bytes,
			content_hash = EXCLUDED.content_hash,
			mtime = EXCLUDED.mtime,
			indexed_at = now()
		RETURNING id`,
		relPath, langForExt(filepath.Ext(relPath)), info.Size(), hash, info.ModTime().UTC(),
	).Scan(&fileID)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert file %s", relPath).
			WithCode(errors.CodeDatabase)
	}

	if existingHash.Valid && existingHash.String == hash {
		return nil
	}

	return ix.rechunk(ctx, scope, fileID, string(content))
}

// rechunk replaces a file's chunks with fixed line windows
func (ix *fsIndexer) rechunk(ctx context.Context, scope RepoScope, fileID, content string) error {
	if _, err := scope.Conn.ExecContext(ctx,
		`DELETE FROM chunk WHERE file_id = $1`, fileID); err != nil {
		return errors.Wrap(err, "failed to clear old chunks").
			WithCode(errors.CodeDatabase)
	}

	lines := strings.Split(content, "\n")
	for start := 0; start < len(lines); start += chunkLines {
		end := start + chunkLines
		if end > len(lines) {
			end = len(lines)
		}

		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}

		_, err := scope.Conn.ExecContext(ctx, `
			INSERT INTO chunk (file_id, start_line, end_line, content, token_count)
			VALUES ($1, $2, $3, $4, $5)`,
			fileID, start+1, end, body, len(strings.Fields(body)))
		if err != nil {
			return errors.Wrap(err, "failed to insert chunk").
				WithCode(errors.CodeDatabase)
		}
	}

	return nil
}

// refreshIndexState recomputes the counters the health monitor and status
// queries read.
func (ix *fsIndexer) refreshIndexState(ctx context.Context, scope RepoScope) (IndexStats, error) {
	var stats IndexStats
	err := scope.Conn.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM file),
			(SELECT COUNT(*) FROM symbol),
			(SELECT COUNT(*) FROM chunk)`).
		Scan(&stats.Files, &stats.Symbols, &stats.Chunks)
	if err != nil {
		return stats, errors.Wrap(err, "failed to count index state").
			WithCode(errors.CodeDatabase)
	}

	_, err = scope.Conn.ExecContext(ctx, `
		UPDATE repo_index_state SET
			last_indexed_at = now(),
			file_count = $1,
			symbol_count = $2,
			chunk_count = $3,
			edge_count = (SELECT COUNT(*) FROM edge),
			last_error = NULL`,
		stats.Files, stats.Symbols, stats.Chunks)
	if err != nil {
		return stats, errors.Wrap(err, "failed to update index state").
			WithCode(errors.CodeDatabase)
	}

	return stats, nil
}

func langForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".go":
		return "go"
	case ".java":
		return "java"
	default:
		return strings.TrimPrefix(strings.ToLower(ext), ".")
	}
}

package processor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// docExtensions are the documentation formats the built-in ingester reads
var docExtensions = map[string]bool{
	".md":  true,
	".rst": true,
	".txt": true,
}

// maxDocBytes caps how much of a single document is ingested
const maxDocBytes = 256 * 1024

// docIngester is the built-in DocIngester: it walks the tree for
// documentation files and upserts them into the document table.
type docIngester struct {
	ignores []string
	logger  logger.Logger
}

func newDocIngester(cfg *config.Config, log logger.Logger) *docIngester {
	return &docIngester{
		ignores: cfg.Watcher.IgnorePatterns,
		logger:  log.Named("doc-ingester"),
	}
}

// ScanDocs ingests documentation files. Re-runs with unchanged trees update
// in place, so replays converge.
func (di *docIngester) ScanDocs(ctx context.Context, scope RepoScope) (int, error) {
	ingested := 0

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
			for _, pattern := range di.ignores {
				if strings.Contains(rel, pattern) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !docExtensions[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			di.logger.Warn("cannot read doc file", "path", rel, "error", readErr)
			return nil
		}

		if len(content) > maxDocBytes {
			content = content[:maxDocBytes]
		}

		if strings.TrimSpace(string(content)) == "" {
			return nil
		}

		_, execErr := scope.Conn.ExecContext(ctx, `
			INSERT INTO document (path, type, title, content)
			VALUES ($1, 'doc', $2, $3)
			ON CONFLICT (path) DO UPDATE SET
				title = EXCLUDED.title,
				content = EXCLUDED.content`,
			rel, docTitle(rel, string(content)), string(content))
		if execErr != nil {
			return errors.Wrapf(execErr, "failed to ingest doc %s", rel).
				WithCode(errors.CodeDatabase)
		}

		ingested++
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*errors.Error); ok {
			return ingested, appErr
		}

		return ingested, errors.Wrap(err, "doc scan failed").
			WithCode(errors.CodeProcessor)
	}

	return ingested, nil
}

// docTitle extracts a display title: the first markdown heading, falling
// back to the file name.
func docTitle(relPath, content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
		if trimmed != "" {
			break
		}
	}

	return filepath.Base(relPath)
}

package processor

import (
	"context"
	"fmt"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
	"github.com/TheYonk/robomonkey/pkg/retry"
)

// summaryBatchSize bounds how many entities one summarize job covers; the
// periodic scheduler re-enqueues until coverage catches up.
const summaryBatchSize = 25

// llmSummarizer is the built-in Summarizer. The small model covers per-file
// and per-symbol summaries; the deep model writes the comprehensive review.
type llmSummarizer struct {
	deepModel  string
	smallModel string
	maxTokens  int
	client     *providerClient
	logger     logger.Logger
}

func newLLMSummarizer(cfg *config.Config, log logger.Logger) *llmSummarizer {
	maxTokens := cfg.LLM.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &llmSummarizer{
		deepModel:  cfg.LLM.DeepModel,
		smallModel: cfg.LLM.SmallModel,
		maxTokens:  maxTokens,
		client:     newProviderClient(cfg.LLM.Provider, cfg.LLM.Active()),
		logger:     log.Named("summarizer"),
	}
}

// SummarizeFiles generates summaries for files that have none yet
func (s *llmSummarizer) SummarizeFiles(ctx context.Context, scope RepoScope) (int, error) {
	type target struct {
		ID      string
		Path    string
		Content string
	}

	rows, err := scope.Conn.QueryxContext(ctx, `
		SELECT f.id, f.path, COALESCE(string_agg(c.content, E'\n' ORDER BY c.start_line), '')
		FROM file f
		LEFT JOIN chunk c ON c.file_id = f.id
		WHERE NOT EXISTS (
			SELECT 1 FROM summary s WHERE s.scope = 'file' AND s.target_id = f.id
		)
		GROUP BY f.id, f.path
		ORDER BY f.path
		LIMIT $1`, summaryBatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "failed to select files to summarize").
			WithCode(errors.CodeDatabase)
	}

	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.ID, &t.Path, &t.Content); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "failed to scan summarize target").
				WithCode(errors.CodeDatabase)
		}
		targets = append(targets, t)
	}
	rows.Close()

	generated := 0
	for _, t := range targets {
		if ctx.Err() != nil {
			return generated, ctx.Err()
		}

		prompt := fmt.Sprintf(
			"Summarize the purpose and key responsibilities of the source file %s in 2-3 sentences:\n\n%s",
			t.Path, truncate(t.Content, 8000))

		text, err := s.generate(ctx, s.smallModel, prompt)
		if err != nil {
			return generated, err
		}

		if err := s.insertSummary(ctx, scope, "file", t.ID, text, s.smallModel); err != nil {
			return generated, err
		}
		generated++
	}

	return generated, nil
}

// SummarizeSymbols generates summaries for symbols that have none yet
func (s *llmSummarizer) SummarizeSymbols(ctx context.Context, scope RepoScope) (int, error) {
	type target struct {
		ID   string
		Name string
		Kind string
		Path string
	}

	rows, err := scope.Conn.QueryxContext(ctx, `
		SELECT sym.id, sym.name, sym.kind, f.path
		FROM symbol sym
		JOIN file f ON f.id = sym.file_id
		WHERE NOT EXISTS (
			SELECT 1 FROM summary s WHERE s.scope = 'symbol' AND s.target_id = sym.id
		)
		ORDER BY f.path, sym.start_line
		LIMIT $1`, summaryBatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "failed to select symbols to summarize").
			WithCode(errors.CodeDatabase)
	}

	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.Path); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "failed to scan symbol target").
				WithCode(errors.CodeDatabase)
		}
		targets = append(targets, t)
	}
	rows.Close()

	generated := 0
	for _, t := range targets {
		if ctx.Err() != nil {
			return generated, ctx.Err()
		}

		prompt := fmt.Sprintf(
			"In one sentence, describe what the %s %q in %s does.",
			t.Kind, t.Name, t.Path)

		text, err := s.generate(ctx, s.smallModel, prompt)
		if err != nil {
			return generated, err
		}

		if err := s.insertSummary(ctx, scope, "symbol", t.ID, text, s.smallModel); err != nil {
			return generated, err
		}
		generated++
	}

	return generated, nil
}

// RegenerateSummary rewrites the comprehensive repo review document
func (s *llmSummarizer) RegenerateSummary(ctx context.Context, scope RepoScope) error {
	var files, chunks int
	var langs string
	err := scope.Conn.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM file),
			(SELECT COUNT(*) FROM chunk),
			(SELECT COALESCE(string_agg(DISTINCT lang, ', '), '') FROM file)`).
		Scan(&files, &chunks, &langs)
	if err != nil {
		return errors.Wrap(err, "failed to collect repo facts").
			WithCode(errors.CodeDatabase)
	}

	prompt := fmt.Sprintf(
		"Write a concise architecture overview for the repository %s. "+
			"It contains %d indexed source files (%s) in %d chunks. "+
			"Describe its likely structure and main components.",
		scope.RepoName, files, langs, chunks)

	text, err := s.generate(ctx, s.deepModel, prompt)
	if err != nil {
		return err
	}

	// One living review document per repo
	_, err = scope.Conn.ExecContext(ctx,
		`DELETE FROM document WHERE type = 'comprehensive_review'`)
	if err != nil {
		return errors.Wrap(err, "failed to clear previous review").
			WithCode(errors.CodeDatabase)
	}

	_, err = scope.Conn.ExecContext(ctx, `
		INSERT INTO document (type, title, content)
		VALUES ('comprehensive_review', $1, $2)`,
		scope.RepoName+" architecture review", text)
	if err != nil {
		return errors.Wrap(err, "failed to store review document").
			WithCode(errors.CodeDatabase)
	}

	s.logger.Info("regenerated comprehensive review", "repo", scope.RepoName)
	return nil
}

func (s *llmSummarizer) generate(ctx context.Context, model, prompt string) (string, error) {
	var text string
	err := retry.DoWithContext(ctx, func(ctx context.Context) error {
		var genErr error
		text, genErr = s.client.Generate(ctx, model, prompt, s.maxTokens)
		return genErr
	}, retry.WithMaxAttempts(3))

	return text, err
}

func (s *llmSummarizer) insertSummary(ctx context.Context, scope RepoScope, summaryScope, targetID, content, model string) error {
	_, err := scope.Conn.ExecContext(ctx, `
		INSERT INTO summary (scope, target_id, content, model)
		VALUES ($1, $2, $3, $4)`,
		summaryScope, targetID, content, model)
	if err != nil {
		return errors.Wrap(err, "failed to insert summary").
			WithCode(errors.CodeDatabase)
	}

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max]
}

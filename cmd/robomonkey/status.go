package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/TheYonk/robomonkey/internal/health"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/errors"
)

var (
	statusRepoID string
	statusName   string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index state and embedding coverage for a repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := statusName
		if target == "" {
			target = statusRepoID
		}
		if target == "" {
			return errors.New("one of --repo-id or --name is required").
				WithCode(errors.CodeValidation)
		}

		app, cleanup, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		repo, err := app.findRepo(cmd.Context(), target)
		if err != nil {
			return err
		}

		var state models.IndexState
		err = app.schemas.WithSchema(cmd.Context(), repo.SchemaName, func(conn *sqlx.Conn) error {
			return conn.QueryRowxContext(cmd.Context(), `
				SELECT repo_id, last_indexed_at, last_scan_commit, last_scan_hash,
				       file_count, symbol_count, chunk_count, edge_count, last_error
				FROM repo_index_state
				LIMIT 1`).
				Scan(&state.RepoID, &state.LastIndexedAt, &state.LastScanCommit,
					&state.LastScanHash, &state.FileCount, &state.SymbolCount,
					&state.ChunkCount, &state.EdgeCount, &state.LastError)
		})
		if err != nil {
			return errors.Wrap(err, "failed to load index state").
				WithCode(errors.CodeDatabase)
		}

		store := health.NewPostgresStore(app.db, app.registry, app.schemas)
		cov, err := store.EmbeddingCoverage(cmd.Context(), repo.SchemaName)
		if err != nil {
			return err
		}

		stats, err := app.queue.Stats(cmd.Context(), repo.Name)
		if err != nil {
			return err
		}

		fmt.Printf("repository:  %s (%s)\n", repo.Name, repo.SchemaName)
		fmt.Printf("root:        %s\n", repo.RootPath)
		fmt.Printf("enabled:     %v (auto_index=%v auto_embed=%v auto_watch=%v auto_summaries=%v)\n",
			repo.Enabled, repo.AutoIndex, repo.AutoEmbed, repo.AutoWatch, repo.AutoSumm)

		if state.LastIndexedAt != nil {
			fmt.Printf("last index:  %s\n", state.LastIndexedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("last index:  never")
		}

		fmt.Printf("files:       %d\n", state.FileCount)
		fmt.Printf("symbols:     %d\n", state.SymbolCount)
		fmt.Printf("chunks:      %d (%.1f%% embedded)\n", state.ChunkCount, cov.ChunkCoverage())
		fmt.Printf("documents:   %d (%.1f%% embedded)\n", cov.TotalDocs, cov.DocCoverage())
		fmt.Printf("jobs:        %d pending, %d claimed, %d done, %d failed\n",
			stats.Pending, stats.Claimed, stats.Done, stats.Failed)

		if state.LastError != nil {
			fmt.Printf("last error:  %s\n", *state.LastError)
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusRepoID, "repo-id", "", "repository id")
	statusCmd.Flags().StringVar(&statusName, "name", "", "repository name")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheYonk/robomonkey/internal/models"
)

var (
	embedRepoID      string
	embedOnlyMissing bool
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for a repository inline",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		repo, err := app.findRepo(cmd.Context(), embedRepoID)
		if err != nil {
			return err
		}

		if err := app.runInline(cmd.Context(), repo, models.JobTypeEmbedMissing, nil); err != nil {
			return err
		}

		fmt.Println("embedding pass complete")
		return nil
	},
}

func init() {
	embedCmd.Flags().StringVar(&embedRepoID, "repo-id", "", "repository name or id")
	// The built-in embedder only targets rows without a vector, so this
	// flag documents the default rather than changing it.
	embedCmd.Flags().BoolVar(&embedOnlyMissing, "only-missing", true, "embed only rows without an embedding")
	_ = embedCmd.MarkFlagRequired("repo-id")
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/storage"
	"github.com/TheYonk/robomonkey/pkg/errors"
)

var (
	indexRepoPath string
	indexRepoName string
	indexForce    bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Register a repository and run a full index",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		absPath, err := filepath.Abs(indexRepoPath)
		if err != nil {
			return errors.Wrap(err, "invalid repo path").WithCode(errors.CodeValidation)
		}

		schemaName, err := app.schemas.EnsureInitialized(cmd.Context(), indexRepoName, absPath, indexForce)
		if err != nil {
			return err
		}

		repo, err := app.registry.Create(cmd.Context(), storage.CreateParams{
			Name:       indexRepoName,
			SchemaName: schemaName,
			RootPath:   absPath,
			AutoIndex:  true,
			AutoEmbed:  true,
			AutoWatch:  true,
		})
		if err != nil {
			return err
		}

		fmt.Printf("registered %s -> %s\n", repo.Name, repo.SchemaName)

		if err := app.runInline(cmd.Context(), repo, models.JobTypeFullIndex, nil); err != nil {
			return err
		}

		fmt.Println("full index complete")
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexRepoPath, "repo", "", "path to the repository root")
	indexCmd.Flags().StringVar(&indexRepoName, "name", "", "registration name")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "drop and reinitialize an existing schema")
	_ = indexCmd.MarkFlagRequired("repo")
	_ = indexCmd.MarkFlagRequired("name")
}

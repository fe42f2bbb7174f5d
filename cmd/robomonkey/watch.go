package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/internal/schema"
	"github.com/TheYonk/robomonkey/internal/watcher"
	"github.com/TheYonk/robomonkey/pkg/errors"
)

var (
	watchRepoPath   string
	watchRepoName   string
	watchDebounceMS int
)

// staticRepoSource serves one repo to a standalone watcher
type staticRepoSource struct {
	repo models.Repo
}

func (s *staticRepoSource) ListWatched(ctx context.Context) ([]models.Repo, error) {
	return []models.Repo{s.repo}, nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch one repository and enqueue reindex jobs on changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		absPath, err := filepath.Abs(watchRepoPath)
		if err != nil {
			return errors.Wrap(err, "invalid repo path").WithCode(errors.CodeValidation)
		}

		cfg := app.cfg.Watcher
		if watchDebounceMS > 0 {
			cfg.DebounceMS = watchDebounceMS
		}

		source := &staticRepoSource{repo: models.Repo{
			Name:       watchRepoName,
			SchemaName: schema.SchemaName(watchRepoName),
			RootPath:   absPath,
			Enabled:    true,
			AutoWatch:  true,
		}}

		w := watcher.New(cfg, app.queue, source, app.log)
		return w.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchRepoPath, "repo", "", "path to the repository root")
	watchCmd.Flags().StringVar(&watchRepoName, "name", "", "registration name")
	watchCmd.Flags().IntVar(&watchDebounceMS, "debounce-ms", 0, "override the debounce window")
	_ = watchCmd.MarkFlagRequired("repo")
	_ = watchCmd.MarkFlagRequired("name")
}

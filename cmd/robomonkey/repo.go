package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Repository management commands",
}

var repoLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List indexed repositories and their counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		listings, err := app.schemas.ListRepos(cmd.Context())
		if err != nil {
			return err
		}

		if len(listings) == 0 {
			fmt.Println("no repositories indexed")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEMA\tFILES\tSYMBOLS\tCHUNKS\tLAST INDEXED")

		for _, l := range listings {
			last := "-"
			if l.LastIndexedAt != nil {
				last = l.LastIndexedAt.Format("2006-01-02 15:04")
			}

			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				l.RepoName, l.SchemaName, l.FileCount, l.SymbolCount, l.ChunkCount, last)
		}

		return w.Flush()
	},
}

var repoRmName string

var repoRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Remove a repository registration and drop its schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		repo, err := app.findRepo(cmd.Context(), repoRmName)
		if err != nil {
			return err
		}

		if err := app.schemas.Drop(cmd.Context(), repo.SchemaName); err != nil {
			return err
		}

		if err := app.registry.Delete(cmd.Context(), repo.Name); err != nil {
			return err
		}

		fmt.Printf("removed %s (%s)\n", repo.Name, repo.SchemaName)
		return nil
	},
}

func newRepoToggleCmd(use string, enabled bool) *cobra.Command {
	var name string

	c := &cobra.Command{
		Use:   use + " --name <name>",
		Short: use + " a repository registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			repo, err := app.findRepo(cmd.Context(), name)
			if err != nil {
				return err
			}

			if err := app.registry.SetEnabled(cmd.Context(), repo.Name, enabled); err != nil {
				return err
			}

			fmt.Printf("%s %sd\n", repo.Name, use)
			return nil
		},
	}

	c.Flags().StringVar(&name, "name", "", "repository name")
	_ = c.MarkFlagRequired("name")

	return c
}

func init() {
	repoCmd.AddCommand(repoLsCmd)
	repoCmd.AddCommand(repoRmCmd)
	repoCmd.AddCommand(newRepoToggleCmd("enable", true))
	repoCmd.AddCommand(newRepoToggleCmd("disable", false))

	repoRmCmd.Flags().StringVar(&repoRmName, "name", "", "repository name")
	_ = repoRmCmd.MarkFlagRequired("name")
}

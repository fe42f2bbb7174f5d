package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/errors"
)

var (
	syncRepoPath  string
	syncBase      string
	syncHead      string
	syncPatchFile string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reindex the files changed by a git diff or patch",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncBase == "" && syncPatchFile == "" {
			return errors.New("one of --base or --patch-file is required").
				WithCode(errors.CodeValidation)
		}

		app, cleanup, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		repo, err := app.findRepoByPath(cmd.Context(), syncRepoPath)
		if err != nil {
			return err
		}

		var changes []models.FileChange
		if syncPatchFile != "" {
			changes, err = changesFromPatch(syncPatchFile)
		} else {
			changes, err = changesFromGitDiff(repo.RootPath, syncBase, syncHead)
		}
		if err != nil {
			return err
		}

		if len(changes) == 0 {
			fmt.Println("no supported file changes to sync")
			return nil
		}

		payload, err := models.EncodePayload(models.ReindexManyPayload{
			Entries: changes,
			Reason:  "git_sync",
		})
		if err != nil {
			return err
		}

		if err := app.runInline(cmd.Context(), repo, models.JobTypeReindexMany, payload); err != nil {
			return err
		}

		fmt.Printf("synced %d changed files\n", len(changes))
		return nil
	},
}

// changesFromGitDiff shells out for the changed-path list. There is no git
// library in the stack; the porcelain name-status format is stable.
func changesFromGitDiff(repoRoot, base, head string) ([]models.FileChange, error) {
	rangeSpec := base
	if head != "" {
		rangeSpec = base + ".." + head
	}

	cmd := exec.Command("git", "-C", repoRoot, "diff", "--name-status", rangeSpec)
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "git diff %s failed", rangeSpec).
			WithCode(errors.CodeProcessor).
			WithHint("check that the refs exist in the repository")
	}

	return parseNameStatus(string(out)), nil
}

// parseNameStatus converts `git diff --name-status` output into file changes
func parseNameStatus(out string) []models.FileChange {
	var changes []models.FileChange

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		status := fields[0]
		switch {
		case status == "D":
			changes = append(changes, models.FileChange{
				Path: fields[1], Op: models.FileOpDelete,
			})

		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			// Rename: old path disappears, new path appears
			changes = append(changes,
				models.FileChange{Path: fields[1], Op: models.FileOpDelete},
				models.FileChange{Path: fields[2], Op: models.FileOpUpsert},
			)

		default: // A, M, C, T
			changes = append(changes, models.FileChange{
				Path: fields[len(fields)-1], Op: models.FileOpUpsert,
			})
		}
	}

	return changes
}

// changesFromPatch extracts changed paths from a unified diff
func changesFromPatch(path string) ([]models.FileChange, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read patch file %s", path).
			WithCode(errors.CodeValidation)
	}
	defer f.Close()

	var changes []models.FileChange
	var lastOld string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "--- a/"):
			lastOld = strings.TrimPrefix(line, "--- a/")

		case strings.HasPrefix(line, "--- /dev/null"):
			lastOld = ""

		case strings.HasPrefix(line, "+++ b/"):
			changes = append(changes, models.FileChange{
				Path: strings.TrimPrefix(line, "+++ b/"),
				Op:   models.FileOpUpsert,
			})

		case strings.HasPrefix(line, "+++ /dev/null") && lastOld != "":
			changes = append(changes, models.FileChange{
				Path: lastOld,
				Op:   models.FileOpDelete,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan patch file").
			WithCode(errors.CodeValidation)
	}

	return changes, nil
}

func init() {
	syncCmd.Flags().StringVar(&syncRepoPath, "repo", "", "path to the repository root")
	syncCmd.Flags().StringVar(&syncBase, "base", "", "base git ref to diff against")
	syncCmd.Flags().StringVar(&syncHead, "head", "", "head git ref (defaults to the working tree)")
	syncCmd.Flags().StringVar(&syncPatchFile, "patch-file", "", "unified diff file instead of git refs")
	_ = syncCmd.MarkFlagRequired("repo")
}

package clicmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var lsAt uint64

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the entries of a directory in a recorded snapshot",
	Args:  maximumArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().Uint64Var(&lsAt, "at", 0, "snapshot ID to list (default: latest)")
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) == 1 {
		path = args[0]
	}

	repo, err := openRepo(backupDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	snap, err := resolveSnapshot(repo, lsAt)
	if err != nil {
		return err
	}
	fs, err := repo.filesystemAt(snap.RootRef)
	if err != nil {
		return err
	}

	names := append([]string{""}, splitPath(path)...)
	dir, err := fs.At(names...).Dir()
	if err != nil {
		return fmt.Errorf("ls %s: %w", path, err)
	}
	if dir == nil {
		return nil
	}
	for _, e := range dir.Entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Type, e.Name)
	}
	return nil
}

// splitPath splits a "/"-separated path into its non-empty components.
func splitPath(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List recorded snapshots, oldest first",
	Args:  noArgs,
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	repo, err := openRepo(backupDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	snaps, err := repo.hist.List()
	if err != nil {
		return fmt.Errorf("read snapshot history: %w", err)
	}
	if len(snaps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no snapshots recorded")
		return ErrNoop
	}

	for _, s := range snaps {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), s.RootRef, s.Message)
	}
	return nil
}

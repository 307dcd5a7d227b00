package clicmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/config"
	"github.com/intellitree/casbak/internal/repostore"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new backup directory",
	Args:  noArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	if _, err := cas.NewFileStore(filepath.Join(backupDir, objectsDirName)); err != nil {
		return fmt.Errorf("create object store: %w", err)
	}

	histPath := filepath.Join(backupDir, "snapshots.db")
	hist, err := repostore.Open(histPath)
	if err != nil {
		return fmt.Errorf("create snapshot history: %w", err)
	}
	if err := hist.Close(); err != nil {
		return fmt.Errorf("close snapshot history: %w", err)
	}

	if _, err := os.Stat(filepath.Join(backupDir, "config")); os.IsNotExist(err) {
		if err := config.SaveRepoConfig(backupDir, config.DefaultConfig()); err != nil {
			return fmt.Errorf("write repo config: %w", err)
		}
	}

	if verbosity() >= 0 {
		log.Printf("initialized backup directory at %s", backupDir)
	}
	return nil
}

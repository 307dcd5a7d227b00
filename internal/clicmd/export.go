package clicmd

import (
	"fmt"
	"log"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/extractor"
	"github.com/intellitree/casbak/internal/repostore"
	"github.com/spf13/cobra"
)

var exportAt uint64

var exportCmd = &cobra.Command{
	Use:   "export <dest-dir>",
	Short: "Extract a recorded snapshot onto the real filesystem",
	Args:  exactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().Uint64Var(&exportAt, "at", 0, "snapshot ID to export (default: latest)")
}

func runExport(cmd *cobra.Command, args []string) error {
	destDir := args[0]

	repo, err := openRepo(backupDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	snap, err := resolveSnapshot(repo, exportAt)
	if err != nil {
		return err
	}

	fs, err := repo.filesystemAt(snap.RootRef)
	if err != nil {
		return err
	}

	x := extractor.New(fs)
	if err := x.Extract(cas.Digest(snap.RootRef), destDir); err != nil {
		return fmt.Errorf("extract snapshot %d: %w", snap.ID, err)
	}

	if verbosity() >= 0 {
		log.Printf("exported snapshot %d to %s", snap.ID, destDir)
	}
	return nil
}

// resolveSnapshot returns the snapshot named by id, or the latest
// recorded snapshot when id is zero.
func resolveSnapshot(repo *openedRepo, id uint64) (repostore.Snapshot, error) {
	if id != 0 {
		snap, found, err := repo.hist.Get(id)
		if err != nil {
			return repostore.Snapshot{}, fmt.Errorf("read snapshot %d: %w", id, err)
		}
		if !found {
			return repostore.Snapshot{}, usageErrorf("no such snapshot: %d", id)
		}
		return snap, nil
	}
	snap, found, err := repo.hist.Latest()
	if err != nil {
		return repostore.Snapshot{}, fmt.Errorf("read snapshot history: %w", err)
	}
	if !found {
		return repostore.Snapshot{}, usageErrorf("no snapshots recorded in %s", backupDir)
	}
	return snap, nil
}

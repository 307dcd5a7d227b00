package clicmd

import (
	"fmt"
	"log"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/extractor"
	"github.com/spf13/cobra"
)

var mountAt uint64

// mountCmd is a FUSE-less stand-in: no repo in this module's dependency
// set vendors an importable FUSE binding (distr1-distri/fuse is its own
// go.mod and would need to be vendored wholesale), so "mount" extracts
// the snapshot read-only into mountpoint and reports the path instead of
// actually binding a filesystem there. TODO: wire a real FUSE binding
// once one is available as a direct dependency.
var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "Materialize a snapshot read-only at mountpoint (extraction stand-in for a real FUSE mount)",
	Args:  exactArgs(1),
	RunE:  runMount,
}

func init() {
	mountCmd.Flags().Uint64Var(&mountAt, "at", 0, "snapshot ID to mount (default: latest)")
}

func runMount(cmd *cobra.Command, args []string) error {
	mountpoint := args[0]

	repo, err := openRepo(backupDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	snap, err := resolveSnapshot(repo, mountAt)
	if err != nil {
		return err
	}
	fs, err := repo.filesystemAt(snap.RootRef)
	if err != nil {
		return err
	}

	if err := extractor.New(fs).Extract(cas.Digest(snap.RootRef), mountpoint); err != nil {
		return fmt.Errorf("mount snapshot %d: %w", snap.ID, err)
	}

	log.Printf("no FUSE binding available; materialized snapshot %d read-only at %s", snap.ID, mountpoint)
	return nil
}

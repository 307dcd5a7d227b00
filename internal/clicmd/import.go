package clicmd

import (
	"fmt"
	"log"
	"time"

	"github.com/intellitree/casbak/internal/dirmodel"
	"github.com/intellitree/casbak/internal/scanner"
	"github.com/spf13/cobra"
)

var importMessage string

var importCmd = &cobra.Command{
	Use:   "import <source-dir>",
	Short: "Scan a directory and record a new snapshot",
	Args:  exactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importMessage, "message", "m", "", "snapshot message")
}

func runImport(cmd *cobra.Command, args []string) error {
	sourceDir := args[0]

	repo, err := openRepo(backupDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	latest, found, err := repo.hist.Latest()
	if err != nil {
		return fmt.Errorf("read snapshot history: %w", err)
	}

	var hint *dirmodel.Directory
	if found {
		hint, err = repo.decodeDir(latest.RootRef)
		if err != nil {
			return fmt.Errorf("decode previous snapshot: %w", err)
		}
	}

	s := scanner.New(repo.store, repo.codec, nil)
	digest, err := s.Scan(sourceDir, hint)
	if err != nil {
		return fmt.Errorf("scan %s: %w", sourceDir, err)
	}

	if found && string(digest) == latest.RootRef {
		if verbosity() >= 0 {
			log.Printf("no changes in %s since snapshot %d", sourceDir, latest.ID)
		}
		return ErrNoop
	}

	snap, err := repo.hist.Append(string(digest), sourceDir, importMessage, time.Now())
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}

	if verbosity() >= 0 {
		log.Printf("recorded snapshot %d (%s)", snap.ID, digest)
	}
	return nil
}

// Package clicmd implements casbak's command-line front end: a cobra
// root command dispatching to init/import/export/log/ls/mount/commands,
// mirroring the teacher CLI's root-command-plus-subcommand-registration
// shape (cli/cli.go) but built around the backup engine's own commands
// and spec.md §6's exact exit codes.
package clicmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ErrNoop signals that a command completed without making any change.
// Execute maps it to exit code 1, or 0 when --allow-noop was given.
var ErrNoop = errors.New("no-op")

// usageError marks an error that should exit 2 rather than 3: bad
// arguments or flags, as opposed to a failure during execution.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// noArgs, exactArgs, and maximumArgs wrap cobra's positional-argument
// validators so a bad argument count reports as a usage error (exit 2)
// rather than an execution error (exit 3).
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageErrorf("%v", err)
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageErrorf("%v", err)
		}
		return nil
	}
}

func maximumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageErrorf("%v", err)
		}
		return nil
	}
}

var (
	backupDir string
	verbose   int
	quiet     int
	allowNoop bool
	showVer   bool
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "casbak",
	Short: "casbak is a deduplicating, content-addressable backup engine",
	Long: `casbak stores filesystem snapshots in a content-addressable store,
deduplicating files and directories across runs by digest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVer {
			fmt.Printf("casbak version %s\n", version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backupDir, "backup-dir", "D", ".", "backup directory")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (repeatable, cancels -q)")
	rootCmd.PersistentFlags().CountVarP(&quiet, "quiet", "q", "decrease verbosity (repeatable, cancels -v)")
	rootCmd.PersistentFlags().BoolVar(&allowNoop, "allow-noop", false, "exit 0 instead of 1 when a command makes no change")
	rootCmd.Flags().BoolVarP(&showVer, "version", "V", false, "print the version and exit")
	rootCmd.PersistentFlags().BoolP("help", "?", false, "show help")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(commandsCmd)
}

// verbosity returns the net -v/-q level: positive values ask for more
// detail, negative values ask for less, zero is the default.
func verbosity() int { return verbose - quiet }

// Execute runs the CLI and returns the process exit code spec.md §6
// documents: 0 success, 1 no-op (0 with --allow-noop), 2 usage error, 3
// execution error.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintln(os.Stderr, "casbak:", uerr.Error())
		return 2
	}
	if errors.Is(err, ErrNoop) {
		if allowNoop {
			return 0
		}
		return 1
	}

	fmt.Fprintln(os.Stderr, "casbak:", err)
	return 3
}

package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List casbak's subcommands",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, c := range rootCmd.Commands() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Name(), c.Short)
		}
		return nil
	},
}

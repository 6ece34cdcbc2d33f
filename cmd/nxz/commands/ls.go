package commands

import (
	"fmt"

	"nexuszip/pkg/exporter"
	"nexuszip/pkg/nexus"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [archive]",
	Short: "List the groups, fields and links of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := nexus.Open(args[0], nexus.ModeRead)
		if err != nil {
			return fmt.Errorf("ls failed: %w", err)
		}
		defer f.Close()

		return exporter.PrintTree(f, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

package commands

import (
	"fmt"

	"nexuszip/pkg/exporter"
	"nexuszip/pkg/nexus"

	"github.com/spf13/cobra"
)

var catRaw bool

var catCmd = &cobra.Command{
	Use:   "cat [archive] [path]",
	Short: "Show the data of a field",
	Long:  `Print the array stored in a field (links are followed). With --raw the stored payload is copied to stdout unchanged, so binary fields can be redirected to a file.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := nexus.Open(args[0], nexus.ModeRead)
		if err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		defer f.Close()

		if catRaw {
			return exporter.NewExporter(f).ExportField(args[1], cmd.OutOrStdout())
		}

		fd, err := f.Field(args[1])
		if err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		v, err := fd.Value()
		if err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		return exporter.PrintValue(v, cmd.OutOrStdout())
	},
}

func init() {
	catCmd.Flags().BoolVar(&catRaw, "raw", false, "copy the stored payload without decoding")
	rootCmd.AddCommand(catCmd)
}

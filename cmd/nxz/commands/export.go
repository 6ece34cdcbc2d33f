package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"nexuszip/pkg/exporter"
	"nexuszip/pkg/nexus"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export [archive] [path]",
	Short: "Export a node as CBOR, or restore field payloads into a directory",
	Long: `Without --dir, encode the node (the root group by default) and everything below it
as deterministic CBOR, written to --output or stdout.
With --dir, write the payload of every field into a directory tree that mirrors the groups.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := "/"
		if len(args) > 1 {
			p = args[1]
		}

		f, err := nexus.Open(args[0], nexus.ModeRead)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		defer f.Close()

		exp := exporter.NewExporter(f)

		if exportDir != "" {
			return restoreTree(cmd, exp)
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			out, err := os.Create(exportOutput)
			if err != nil {
				return err
			}
			defer out.Close()
			w = out
		}
		return exp.ExportCBOR(p, w)
	},
}

func restoreTree(cmd *cobra.Command, exp *exporter.Exporter) error {
	start := time.Now()
	var files int
	var total int64

	err := exp.RestoreTree(cmd.Context(), afero.NewOsFs(), exportDir, func(p string, size int64) {
		files++
		total += size
		fmt.Fprintf(cmd.ErrOrStderr(), "  -> %s (%s)\n", p, humanize.IBytes(uint64(size)))
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Restored %d fields (%s) to %s in %s\n",
		files, humanize.IBytes(uint64(total)), exportDir, time.Since(start).Round(time.Millisecond))
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write CBOR to a file instead of stdout")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "restore field payloads into this directory")
	rootCmd.AddCommand(exportCmd)
}

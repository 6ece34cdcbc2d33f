package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"nexuszip/pkg/catalog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	catalogCreator string
	catalogLimit   int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Record archives in the catalog database and query it",
}

var catalogAddCmd = &cobra.Command{
	Use:   "add [archive...]",
	Short: "Summarize archives and record them in the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if a.Catalog == nil {
			return fmt.Errorf("catalog is disabled (catalog.driver=none)")
		}

		summaries, err := a.RecordArchives(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("catalog add failed: %w", err)
		}
		for _, s := range summaries {
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s (%d fields, %s)\n",
				s.FileName, len(s.Fields), humanize.IBytes(uint64(s.Bytes)))
		}
		return nil
	},
}

var catalogLsCmd = &cobra.Command{
	Use:   "ls [name]",
	Short: "List recorded archives, or the fields of one archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if a.Catalog == nil {
			return fmt.Errorf("catalog is disabled (catalog.driver=none)")
		}

		if len(args) == 1 {
			fields, err := a.Catalog.Fields(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printFieldRecords(cmd, fields)
			return nil
		}

		var recs []catalog.ArchiveRecord
		if catalogCreator != "" {
			recs, err = a.Catalog.FindByCreator(cmd.Context(), catalogCreator, catalogLimit)
		} else {
			recs, err = a.Catalog.List(cmd.Context(), catalogLimit)
		}
		if err != nil {
			return err
		}
		printArchiveRecords(cmd, recs)
		return nil
	},
}

func printArchiveRecords(cmd *cobra.Command, recs []catalog.ArchiveRecord) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NAME\tCREATOR\tTIME\tFIELDS\tSIZE\tLOCATION\n")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Name, r.Creator, r.FileTime.Format(time.RFC3339), r.FieldCount,
			humanize.IBytes(uint64(r.Bytes)), r.Location)
	}
	tw.Flush()
}

func printFieldRecords(cmd *cobra.Command, fields []catalog.FieldRecord) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "PATH\tFORMAT\tSHAPE\tSIZE\tTARGET\n")
	for _, fr := range fields {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			fr.Path, fr.Format, fr.Shape, humanize.IBytes(uint64(fr.Bytes)), fr.Target)
	}
	tw.Flush()
}

func init() {
	catalogLsCmd.Flags().StringVar(&catalogCreator, "creator", "", "only archives written by this creator")
	catalogLsCmd.Flags().IntVar(&catalogLimit, "limit", 50, "maximum number of archives (0 for all)")
	catalogCmd.AddCommand(catalogAddCmd)
	catalogCmd.AddCommand(catalogLsCmd)
	rootCmd.AddCommand(catalogCmd)
}

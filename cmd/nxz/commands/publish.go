package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var publishRecord bool

var publishCmd = &cobra.Command{
	Use:   "publish [archive...]",
	Short: "Upload archives to S3-compatible object storage",
	Long:  `Upload each archive under its base name to the configured bucket. With --record the archives are also summarized and recorded in the catalog.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		pub, err := a.Publisher(ctx)
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}

		for _, p := range args {
			key, uploaded, err := pub.PublishFile(ctx, p)
			if err != nil {
				return fmt.Errorf("publish %s failed: %w", p, err)
			}
			if !uploaded {
				fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged since last publish (%s)\n", p, key)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s as %s\n", p, key)
		}

		if publishRecord && a.Catalog != nil {
			if _, err := a.RecordArchives(ctx, args); err != nil {
				return fmt.Errorf("catalog record failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	publishCmd.Flags().BoolVar(&publishRecord, "record", false, "also record the archives in the catalog")
	rootCmd.AddCommand(publishCmd)
}

package commands

import (
	"fmt"
	"path/filepath"

	"nexuszip/pkg/ignore"
	"nexuszip/pkg/packager"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var packCmd = &cobra.Command{
	Use:   "pack [dir] [archive]",
	Short: "Pack a node directory into an archive, preserving symlinks",
	Long:  `Zip a directory tree laid out as a container (groups as directories, .attrs files, link sentinels) into an archive. Files matching .nxzignore or the default rules are skipped.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		fs := afero.NewOsFs()
		m, err := ignore.NewMatcher(fs, root)
		if err != nil {
			return err
		}

		opts := []packager.Option{packager.WithMatcher(m)}
		if viper.IsSet("archive.compression_level") {
			level := viper.GetInt("archive.compression_level")
			if level == 0 {
				opts = append(opts, packager.WithMethod(zip.Store))
			}
			opts = append(opts, packager.WithLevel(level))
		}

		st, err := packager.PackDir(cmd.Context(), fs, root, args[1], opts...)
		if err != nil {
			return fmt.Errorf("pack failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Packed %d files, %d dirs, %d symlinks (%s) into %s\n",
			st.Files, st.Dirs, st.Symlinks, humanize.IBytes(uint64(st.Bytes)), args[1])
		return nil
	},
}

var unpackCmd = &cobra.Command{
	Use:   "unpack [archive] [dir]",
	Short: "Extract an archive into a directory, restoring symlinks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}

		st, err := packager.UnpackFile(cmd.Context(), afero.NewOsFs(), args[0], root)
		if err != nil {
			return fmt.Errorf("unpack failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d files, %d dirs, %d symlinks (%s) into %s\n",
			st.Files, st.Dirs, st.Symlinks, humanize.IBytes(uint64(st.Bytes)), root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(unpackCmd)
}

package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"nexuszip/pkg/app"
	"nexuszip/pkg/exporter"
	"nexuszip/pkg/nexus"

	"github.com/spf13/cobra"
)

var (
	attrsSet    []string
	attrsDelete []string
)

var attrsCmd = &cobra.Command{
	Use:   "attrs [archive] [path]",
	Short: "Show or edit the attributes of a node",
	Long: `Print the attributes of a node (the root group by default).
With --set key=value or --delete key the archive is opened in append mode and
rewritten on exit. Values are parsed as JSON when possible, otherwise stored as strings.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := "/"
		if len(args) > 1 {
			p = args[1]
		}

		mode := nexus.ModeRead
		if len(attrsSet) > 0 || len(attrsDelete) > 0 {
			mode = nexus.ModeAppend
		}

		f, err := nexus.Open(args[0], mode, app.ArchiveOptions()...)
		if err != nil {
			return fmt.Errorf("attrs failed: %w", err)
		}

		err = editAttrs(f, p, cmd)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	},
}

func editAttrs(f *nexus.File, p string, cmd *cobra.Command) error {
	n, err := f.Get(p)
	if err != nil {
		return err
	}
	m := n.Attrs()

	if len(attrsSet) > 0 {
		kv, err := parseAssignments(attrsSet)
		if err != nil {
			return err
		}
		if err := m.Update(kv); err != nil {
			return err
		}
	}
	for _, key := range attrsDelete {
		if err := m.Delete(key); err != nil {
			return err
		}
	}
	return exporter.PrintAttrs(m, cmd.OutOrStdout())
}

// parseAssignments 解析 key=value，值优先按 JSON 解析
func parseAssignments(items []string) (map[string]any, error) {
	kv := make(map[string]any, len(items))
	for _, item := range items {
		key, raw, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (want key=value)", item)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		kv[key] = v
	}
	return kv, nil
}

func init() {
	attrsCmd.Flags().StringArrayVar(&attrsSet, "set", nil, "set an attribute (key=value, repeatable)")
	attrsCmd.Flags().StringArrayVar(&attrsDelete, "delete", nil, "delete an attribute (repeatable)")
	rootCmd.AddCommand(attrsCmd)
}

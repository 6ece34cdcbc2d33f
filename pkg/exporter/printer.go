package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"

	"nexuszip/pkg/attrs"
	"nexuszip/pkg/codec"
	"nexuszip/pkg/nexus"

	"github.com/dustin/go-humanize"
)

// PrintTree 以类似 ls -l 的表格列出文件中的全部节点
func PrintTree(f *nexus.File, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "KIND\tDTYPE\tSHAPE\tSIZE\tPATH\n")

	err := f.Walk(func(n nexus.Node) error {
		switch x := n.(type) {
		case *nexus.Group:
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", x.Kind(), x.Path())
		case *nexus.Field:
			size, err := x.Size()
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				x.Kind(), x.Format(), fmtShape(x.Shape()), humanize.IBytes(uint64(size)), x.Path())
		case *nexus.Link:
			fd, err := x.Field()
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t-\t%s -> %s\n",
				x.Kind(), fd.Format(), fmtShape(fd.Shape()), x.Path(), x.Target())
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

// PrintAttrs 按键排序打印属性，值以 JSON 表示
func PrintAttrs(m attrs.Map, w io.Writer) error {
	all := m.All()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		v, err := json.Marshal(all[k])
		if err != nil {
			return fmt.Errorf("attribute %s: %w", k, err)
		}
		fmt.Fprintf(tw, "%s\t%s\n", k, v)
	}
	return tw.Flush()
}

// PrintValue 按行打印数组，一维数组每行一个元素
func PrintValue(a *codec.Array, w io.Writer) error {
	if a.Ndim() == 0 {
		_, err := fmt.Fprintf(w, "%v\n", reflect.ValueOf(a.Data()).Index(0))
		return err
	}
	for i := 0; i < a.Shape[0]; i++ {
		row, err := a.Row(i)
		if err != nil {
			return err
		}
		if row.Ndim() == 0 {
			_, err = fmt.Fprintf(w, "%v\n", reflect.ValueOf(row.Data()).Index(0))
		} else {
			_, err = fmt.Fprintf(w, "%v\n", row.Data())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func fmtShape(shape []int) string {
	if shape == nil {
		return "-"
	}
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprint(n)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

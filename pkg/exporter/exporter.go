package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"nexuszip/pkg/nexus"
	"nexuszip/pkg/types"

	"github.com/spf13/afero"
)

// Document 是一个节点的 CBOR 导出形式
// 组带有 Children，字段与链接带有 Data
type Document struct {
	Path     string         `cbor:"path"`
	Kind     string         `cbor:"kind"`
	DType    string         `cbor:"dtype,omitempty"`
	Format   string         `cbor:"format,omitempty"`
	Shape    []int          `cbor:"shape,omitempty"`
	Target   string         `cbor:"target,omitempty"`
	Attrs    map[string]any `cbor:"attrs"`
	Data     any            `cbor:"data,omitempty"`
	Children []*Document    `cbor:"children,omitempty"`
}

type Exporter struct {
	file *nexus.File
}

func NewExporter(f *nexus.File) *Exporter {
	return &Exporter{file: f}
}

// ExportField 把字段 (或链接目标) 的原始负载流式写入 writer
func (e *Exporter) ExportField(p string, writer io.Writer) error {
	fd, err := e.file.Field(p)
	if err != nil {
		return err
	}

	r, err := e.file.Backend().Open(fd.Path())
	if err != nil {
		return fmt.Errorf("failed to open field %s: %w", fd.Path(), err)
	}
	defer r.Close()

	if _, err := io.Copy(writer, r); err != nil {
		return fmt.Errorf("failed to write field %s: %w", fd.Path(), err)
	}
	return nil
}

// Document 构建节点的导出文档，组会递归包含全部子节点
func (e *Exporter) Document(p string) (*Document, error) {
	n, err := e.file.Get(p)
	if err != nil {
		return nil, err
	}
	return buildDocument(n)
}

func buildDocument(n nexus.Node) (*Document, error) {
	doc := &Document{
		Path:  n.Path(),
		Kind:  n.Kind().String(),
		Attrs: n.Attrs().All(),
	}

	switch x := n.(type) {
	case *nexus.Group:
		items, err := x.Items()
		if err != nil {
			return nil, err
		}
		for _, child := range items {
			cd, err := buildDocument(child)
			if err != nil {
				return nil, err
			}
			doc.Children = append(doc.Children, cd)
		}
	case *nexus.Link:
		fd, err := x.Field()
		if err != nil {
			return nil, err
		}
		doc.Target = x.Target()
		if err := fillField(doc, fd); err != nil {
			return nil, err
		}
	case *nexus.Field:
		if err := fillField(doc, x); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func fillField(doc *Document, fd *nexus.Field) error {
	v, err := fd.Value()
	if err != nil {
		return err
	}
	doc.DType = fd.DType().Name()
	doc.Format = fd.Format()
	doc.Shape = v.Shape
	doc.Data = v.Data()
	return nil
}

// ExportCBOR 把节点编码为确定性 CBOR 写入 writer
func (e *Exporter) ExportCBOR(p string, writer io.Writer) error {
	doc, err := e.Document(p)
	if err != nil {
		return err
	}
	data, err := em.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", p, err)
	}
	_, err = writer.Write(data)
	return err
}

type RestoreCallback func(path string, size int64)

// RestoreTree 把整棵树的字段负载按路径写到 targetDir
// 组还原为目录，链接还原为目标负载的副本，属性不写出。
func (e *Exporter) RestoreTree(ctx context.Context, fs afero.Fs, targetDir string, onRestore RestoreCallback) error {
	return e.file.Walk(func(n nexus.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(targetDir, filepath.FromSlash(types.Rel(n.Path())))

		if _, ok := n.(*nexus.Group); ok {
			return fs.MkdirAll(dst, 0755)
		}

		out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", dst, err)
		}
		cw := &countingWriter{w: out}
		err = e.ExportField(n.Path(), cw)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if onRestore != nil {
			onRestore(n.Path(), cw.n)
		}
		return nil
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

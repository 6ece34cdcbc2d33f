package nexus

import (
	"time"

	"nexuszip/pkg/attrs"
)

// FieldSummary 描述一个字段或链接
type FieldSummary struct {
	Path   string
	DType  string
	Format string
	Shape  []int
	Binary bool
	Target string // 链接的目标，字段为空
	Bytes  int64
}

// Summary 是整个文件的概要，用于目录登记与列表输出
type Summary struct {
	FileName string
	FileTime time.Time
	Creator  string
	Version  string
	Attrs    map[string]any
	Groups   int
	Fields   []FieldSummary
	Bytes    int64
}

// Summarize 遍历文件并汇总根属性与每个字段
func Summarize(f *File) (*Summary, error) {
	if err := f.check(); err != nil {
		return nil, err
	}

	root := f.root.Attrs()
	s := &Summary{Attrs: root.All()}
	s.FileName, _ = attrs.String(root, "file_name")
	s.Creator, _ = attrs.String(root, "creator")
	s.Version, _ = attrs.String(root, "NeXus_version")
	if ts, ok := attrs.String(root, "file_time"); ok {
		s.FileTime, _ = time.Parse(time.RFC3339, ts)
	}
	if s.FileName == "" {
		s.FileName = f.filename
	}

	err := f.Walk(func(n Node) error {
		switch x := n.(type) {
		case *Group:
			if x.path != f.root.path {
				s.Groups++
			}
		case *Field:
			fs, err := summarizeField(x)
			if err != nil {
				return err
			}
			s.Bytes += fs.Bytes
			s.Fields = append(s.Fields, fs)
		case *Link:
			fd, err := x.Field()
			if err != nil {
				// 悬空链接只记录目标，不影响整个文件的汇总
				f.log.WithError(err).WithField("path", x.path).Warn("dangling link")
				s.Fields = append(s.Fields, FieldSummary{Path: x.path, Target: x.target})
				return nil
			}
			fs, err := summarizeField(fd)
			if err != nil {
				return err
			}
			fs.Path, fs.Target, fs.Bytes = x.path, fd.path, 0
			s.Fields = append(s.Fields, fs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func summarizeField(fd *Field) (FieldSummary, error) {
	size, err := fd.Size()
	if err != nil {
		return FieldSummary{}, err
	}
	return FieldSummary{
		Path:   fd.path,
		DType:  fd.DType().Name(),
		Format: fd.Format(),
		Shape:  fd.Shape(),
		Binary: fd.Binary(),
		Bytes:  size,
	}, nil
}

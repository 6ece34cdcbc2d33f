package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"nexuszip/pkg/storage"
	"nexuszip/pkg/types"

	"github.com/klauspost/compress/zip"
)

// maxLinkDepth 限制归档内符号链接的解析层数，防止环
const maxLinkDepth = 8

// Entry 是归档清单中的一条记录
// Offset 指向条目数据在归档中的起始位置 (压缩后的字节流)
type Entry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
	Mode           os.FileMode

	file *zip.File
}

// Adapter 实现了 storage.Backend 接口
// 它只索引 ZIP 的中央目录，读取时直接从归档流式解压，从不整体解压
type Adapter struct {
	name    string
	closer  io.Closer
	entries map[string]*Entry // key: 不带前导 "/" 的相对路径
	dirs    map[string]bool
}

// Open 打开一个已打包的归档并建立清单索引
func Open(name string) (*Adapter, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", name, err)
	}
	a, err := newAdapter(&rc.Reader)
	if err != nil {
		rc.Close()
		return nil, err
	}
	a.name = name
	a.closer = rc
	return a, nil
}

// NewFromReader 从任意 io.ReaderAt 建立索引 (测试与内存归档使用)
func NewFromReader(r io.ReaderAt, size int64) (*Adapter, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return newAdapter(zr)
}

func newAdapter(zr *zip.Reader) (*Adapter, error) {
	a := &Adapter{
		entries: make(map[string]*Entry, len(zr.File)),
		dirs:    make(map[string]bool),
	}
	for _, f := range zr.File {
		name := strings.TrimSuffix(types.Rel(f.Name), "/")
		if name == "" {
			continue
		}
		// 所有上级目录都是隐式目录
		for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			a.dirs[dir] = true
		}
		if strings.HasSuffix(f.Name, "/") || f.Mode().IsDir() {
			a.dirs[name] = true
			continue
		}
		offset, err := f.DataOffset()
		if err != nil {
			return nil, fmt.Errorf("corrupted archive entry %s: %w", f.Name, err)
		}
		a.entries[name] = &Entry{
			Name:           name,
			Offset:         offset,
			Size:           int64(f.UncompressedSize64),
			CompressedSize: int64(f.CompressedSize64),
			Mode:           f.Mode(),
			file:           f,
		}
	}
	return a, nil
}

// Name 返回归档文件名
func (a *Adapter) Name() string { return a.name }

// Entries 返回按名称排序的清单副本
func (a *Adapter) Entries() []Entry {
	out := make([]Entry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *Adapter) ReadOnly() bool { return true }

func (a *Adapter) Exists(p string) bool {
	rel := types.Rel(p)
	if rel == "" || a.dirs[rel] {
		return true
	}
	_, ok := a.entries[rel]
	return ok
}

func (a *Adapter) IsDir(p string) bool {
	rel := types.Rel(p)
	return rel == "" || a.dirs[rel]
}

func (a *Adapter) List(p string) ([]string, error) {
	if !a.IsDir(p) {
		return nil, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	parent := types.Rel(p)
	if parent == "" {
		parent = "."
	}

	seen := make(map[string]bool)
	collect := func(name string) {
		if path.Dir(name) == parent {
			seen[path.Base(name)] = true
		}
	}
	for name := range a.entries {
		collect(name)
	}
	for name := range a.dirs {
		collect(name)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// resolve 查找条目，必要时跟随符号链接
func (a *Adapter) resolve(p string) (*Entry, error) {
	rel := types.Rel(p)
	for depth := 0; depth <= maxLinkDepth; depth++ {
		e, ok := a.entries[rel]
		if !ok {
			return nil, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
		}
		if e.Mode&os.ModeSymlink == 0 {
			return e, nil
		}

		target, err := a.readEntry(e)
		if err != nil {
			return nil, err
		}
		// 相对目标相对于链接所在目录解析
		rel = types.Rel(types.Join("/"+path.Dir(rel), string(target)))
	}
	return nil, fmt.Errorf("%s: too many levels of symbolic links", p)
}

func (a *Adapter) readEntry(e *Entry) ([]byte, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry %s: %w", e.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *Adapter) Open(p string) (io.ReadCloser, error) {
	e, err := a.resolve(p)
	if err != nil {
		return nil, err
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry %s: %w", e.Name, err)
	}
	return rc, nil
}

func (a *Adapter) Size(p string) (int64, error) {
	e, err := a.resolve(p)
	if err != nil {
		return 0, err
	}
	return e.Size, nil
}

func (a *Adapter) Mkdir(p string) error {
	return fmt.Errorf("mkdir %s: %w", p, storage.ErrReadOnly)
}

func (a *Adapter) Create(p string) (io.WriteCloser, error) {
	return nil, fmt.Errorf("create %s: %w", p, storage.ErrReadOnly)
}

func (a *Adapter) Append(p string) (io.WriteCloser, error) {
	return nil, fmt.Errorf("append %s: %w", p, storage.ErrReadOnly)
}

func (a *Adapter) Truncate(p string, size int64) error {
	return fmt.Errorf("truncate %s: %w", p, storage.ErrReadOnly)
}

func (a *Adapter) Rename(oldpath, newpath string) error {
	return fmt.Errorf("rename %s: %w", oldpath, storage.ErrReadOnly)
}

func (a *Adapter) Remove(p string) error {
	return fmt.Errorf("remove %s: %w", p, storage.ErrReadOnly)
}

func (a *Adapter) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

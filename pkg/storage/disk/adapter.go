package disk

import (
	"fmt"
	"io"
	"os"

	"nexuszip/pkg/storage"
	"nexuszip/pkg/types"

	"github.com/spf13/afero"
)

// Adapter 实现了 storage.Backend 接口
// 它是读写会话使用的后端：一个已解压的工作目录
type Adapter struct {
	fs   afero.Fs
	root string // 比如: /tmp/nexuszip-1234 (内存文件系统时为空)
}

// NewAdapter 在物理目录 root 上创建一个工作目录后端
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working dir: %w", err)
	}
	return &Adapter{
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
		root: root,
	}, nil
}

// NewWithFs 允许注入任意 afero.Fs (测试时使用 MemMapFs)
func NewWithFs(fs afero.Fs) *Adapter {
	return &Adapter{fs: fs}
}

// Fs 暴露底层文件系统，供打包器遍历
func (s *Adapter) Fs() afero.Fs { return s.fs }

// Root 返回物理工作目录
func (s *Adapter) Root() string { return s.root }

// layout 返回节点路径在 fs 中的位置
// 所有 fs 都以工作目录为根，所以只需要规范化
func (s *Adapter) layout(p string) string {
	return types.Clean(p)
}

func (s *Adapter) ReadOnly() bool { return false }

func (s *Adapter) Exists(p string) bool {
	ok, err := afero.Exists(s.fs, s.layout(p))
	return err == nil && ok
}

func (s *Adapter) IsDir(p string) bool {
	ok, err := afero.IsDir(s.fs, s.layout(p))
	return err == nil && ok
}

func (s *Adapter) List(p string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.layout(p))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (s *Adapter) Open(p string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.layout(p))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Size(p string) (int64, error) {
	info, err := s.fs.Stat(s.layout(p))
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *Adapter) Mkdir(p string) error {
	err := s.fs.Mkdir(s.layout(p), 0755)
	switch {
	case os.IsExist(err):
		return fmt.Errorf("%s: %w", p, storage.ErrExists)
	case os.IsNotExist(err):
		return fmt.Errorf("%s: parent %w", p, storage.ErrNotFound)
	}
	return err
}

func (s *Adapter) Create(p string) (io.WriteCloser, error) {
	return s.fs.OpenFile(s.layout(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

func (s *Adapter) Append(p string) (io.WriteCloser, error) {
	return s.fs.OpenFile(s.layout(p), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

func (s *Adapter) Truncate(p string, size int64) error {
	f, err := s.fs.OpenFile(s.layout(p), os.O_WRONLY, 0644)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Rename 依赖底层 fs 的 rename 语义：目标存在时被原子替换
func (s *Adapter) Rename(oldpath, newpath string) error {
	return s.fs.Rename(s.layout(oldpath), s.layout(newpath))
}

func (s *Adapter) Remove(p string) error {
	if !s.Exists(p) {
		return fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	return s.fs.RemoveAll(s.layout(p))
}

// Close 不删除工作目录，目录的生命周期由持有它的 File 管理
func (s *Adapter) Close() error { return nil }

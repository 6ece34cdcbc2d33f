package nexus

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// workDir 是读写会话独占的解压目录
// 由 File 创建，Close 时无论打包成功与否都会被删除
type workDir struct {
	fs   afero.Fs
	path string
}

func newWorkDir(parent string) (*workDir, error) {
	fs := afero.NewOsFs()
	if parent != "" {
		if err := fs.MkdirAll(parent, 0755); err != nil {
			return nil, fmt.Errorf("failed to create working dir parent %s: %w", parent, err)
		}
	}
	dir, err := afero.TempDir(fs, parent, "nexuszip-")
	if err != nil {
		return nil, fmt.Errorf("failed to create working dir: %w", err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &workDir{fs: fs, path: dir}, nil
}

// Release 删除工作目录，可以重复调用
func (w *workDir) Release() error {
	if w == nil || w.path == "" {
		return nil
	}
	err := w.fs.RemoveAll(w.path)
	w.path = ""
	return err
}

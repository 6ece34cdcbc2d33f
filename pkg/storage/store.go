package storage

import (
	"errors"
	"io"
)

var (
	// ErrNotFound 路径既不是目录，也不是链接哨兵或数据文件
	ErrNotFound = errors.New("path not found")
	// ErrReadOnly 在只读后端上发起了修改操作
	ErrReadOnly = errors.New("read only: can't modify")
	// ErrExists 目标路径已被其他节点占用
	ErrExists = errors.New("path already exists")
)

// Backend defines the storage primitives the node tree is built on.
// Implementations are a writable working directory and a read-only archive index.
//
// 所有路径都是容器内的节点路径 (例如 "/entry/data.attrs")，由实现负责映射到
// 具体的文件系统或归档条目。除后端外，没有任何组件直接访问文件系统或归档。
type Backend interface {
	// Exists 检查路径 (文件或目录) 是否存在
	Exists(p string) bool
	// IsDir 检查路径是否为目录；根路径永远是目录
	IsDir(p string) bool
	// List 返回目录下的直接子项名称 (已排序)
	List(p string) ([]string, error)
	// Open 以流的方式读取文件内容
	Open(p string) (io.ReadCloser, error)
	// Size 返回文件字节数
	Size(p string) (int64, error)
	// ReadOnly 报告后端是否拒绝一切修改
	ReadOnly() bool

	// Mkdir 创建目录 (父目录必须存在)
	Mkdir(p string) error
	// Create 以截断方式打开文件用于写入
	Create(p string) (io.WriteCloser, error)
	// Append 以追加方式打开文件；不存在时创建
	Append(p string) (io.WriteCloser, error)
	// Truncate 把文件截断到 size 字节，用于回滚失败的追加
	Truncate(p string, size int64) error
	// Rename 原子地替换目标路径
	Rename(oldpath, newpath string) error
	// Remove 删除文件或递归删除目录
	Remove(p string) error

	Close() error
}

// ReadAll 读取路径的完整内容
func ReadAll(b Backend, p string) ([]byte, error) {
	rc, err := b.Open(p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

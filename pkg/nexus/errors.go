package nexus

import (
	"errors"

	"nexuszip/pkg/codec"
	"nexuszip/pkg/storage"
)

var (
	// ErrPathNotFound 路径不对应任何节点
	ErrPathNotFound = storage.ErrNotFound
	// ErrMissingDtype 创建新字段时没有给 dtype
	ErrMissingDtype = codec.ErrMissingDtype
	// ErrExtract 追加模式下解压已有归档失败
	ErrExtract = errors.New("failed to extract archive")
	// ErrPackaging 关闭时打包工作目录失败
	ErrPackaging = errors.New("failed to package archive")
	// ErrClosed 文件已经关闭
	ErrClosed = errors.New("file already closed")
	// ErrNotField 路径存在但不是字段
	ErrNotField = errors.New("node is not a field")
	// ErrNotGroup 路径存在但不是组
	ErrNotGroup = errors.New("node is not a group")
	// ErrInvalidMode 未知的打开模式
	ErrInvalidMode = errors.New("invalid file mode")
)

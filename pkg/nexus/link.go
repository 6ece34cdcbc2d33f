package nexus

import (
	"fmt"

	"nexuszip/pkg/attrs"
	"nexuszip/pkg/codec"
)

// maxLinkDepth 限制链接链的长度
const maxLinkDepth = 8

// Link 是指向字段的软链接
// 它自己不持有数据：<path> 只是哨兵文件，<path>.link 保存 target 等静态属性。
type Link struct {
	node
	own    *attrs.Store
	target string
}

var _ Node = (*Link)(nil)

func (f *File) bindLink(p string) (*Link, error) {
	own, err := attrs.Open(f.backend, p+linkSuffix)
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", p, err)
	}
	target, ok := attrs.String(own, "target")
	if !ok {
		return nil, fmt.Errorf("link %s has no target: %w", p, ErrPathNotFound)
	}
	return &Link{node: node{file: f, path: p}, own: own, target: target}, nil
}

func (l *Link) Kind() Kind { return KindLink }

// Target 返回目标路径
func (l *Link) Target() string { return l.target }

// Field 解析目标字段，沿途的链接会被跟随
func (l *Link) Field() (*Field, error) {
	p := l.target
	for depth := 0; depth < maxLinkDepth; depth++ {
		n, err := l.file.Get(p)
		if err != nil {
			return nil, fmt.Errorf("link %s -> %s: %w", l.path, p, err)
		}
		switch x := n.(type) {
		case *Field:
			return x, nil
		case *Link:
			p = x.target
		default:
			return nil, fmt.Errorf("link %s -> %s: %w", l.path, p, ErrNotField)
		}
	}
	return nil, fmt.Errorf("link %s: too many levels of links", l.path)
}

// Attrs 返回静态视图：链接自身的属性不可改写，读取时回落到目标字段的属性
func (l *Link) Attrs() attrs.Map {
	var fallback attrs.Map
	if fd, err := l.Field(); err == nil {
		fallback = fd.attrs
	}
	return attrs.NewStatic(l.own, fallback)
}

// Value 读取目标字段的数据
func (l *Link) Value() (*codec.Array, error) {
	fd, err := l.Field()
	if err != nil {
		return nil, err
	}
	return fd.Value()
}

// Shape 返回目标字段的形状
func (l *Link) Shape() ([]int, error) {
	fd, err := l.Field()
	if err != nil {
		return nil, err
	}
	return fd.Shape(), nil
}

// DType 返回目标字段的 dtype
func (l *Link) DType() (codec.DType, error) {
	fd, err := l.Field()
	if err != nil {
		return codec.DType{}, err
	}
	return fd.DType(), nil
}

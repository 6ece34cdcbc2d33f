package nexus

import (
	"errors"
	"fmt"

	"nexuszip/pkg/attrs"
	"nexuszip/pkg/codec"
	"nexuszip/pkg/storage"
	"nexuszip/pkg/types"
)

// DefaultGroupClass 是未指定时组的 NX_class
const DefaultGroupClass = "NXCollection"

// Group 是一个目录节点，属性保存在目录内的 .attrs
type Group struct {
	node
	attrs *attrs.Store
}

var _ Node = (*Group)(nil)

func (f *File) bindGroup(p string) (*Group, error) {
	st, err := attrs.Open(f.backend, types.Join(p, groupAttrsName))
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", p, err)
	}
	return &Group{node: node{file: f, path: p}, attrs: st}, nil
}

func (g *Group) Kind() Kind { return KindGroup }

func (g *Group) Attrs() attrs.Map { return g.attrs }

// Class 返回 NX_class
func (g *Group) Class() string {
	c, _ := attrs.String(g.attrs, "NX_class")
	return c
}

// Get 查找节点，相对路径相对于本组解析
func (g *Group) Get(p string) (Node, error) {
	return g.file.Get(types.Join(g.path, p))
}

// Group 查找子组
func (g *Group) Group(p string) (*Group, error) {
	return g.file.group(types.Join(g.path, p))
}

// Field 查找字段，链接解析到目标字段
func (g *Group) Field(p string) (*Field, error) {
	return g.file.Field(types.Join(g.path, p))
}

// CreateGroup 创建子组
// 新组写入 NX_class (class 为空时使用 NXCollection)；
// 已存在的组保持原样，只应用显式传入的 kv。
func (g *Group) CreateGroup(name, class string, kv map[string]any) (*Group, error) {
	p := types.Join(g.path, name)
	if err := g.file.writable(p); err != nil {
		return nil, err
	}
	if reserved(nameOf(p)) {
		return nil, fmt.Errorf("group name %q is reserved", name)
	}

	b := g.file.backend
	preexisting := b.IsDir(p)
	if !preexisting {
		if b.Exists(p) {
			return nil, fmt.Errorf("group %s: %w", p, storage.ErrExists)
		}
		if err := b.Mkdir(p); err != nil {
			return nil, fmt.Errorf("failed to create group %s: %w", p, err)
		}
	}

	sub, err := g.file.bindGroup(p)
	if err != nil {
		return nil, err
	}

	update := make(map[string]any, len(kv)+1)
	if !preexisting {
		if class == "" {
			class = DefaultGroupClass
		}
		update["NX_class"] = class
	}
	for k, v := range kv {
		update[k] = v
	}
	if len(update) > 0 {
		if err := sub.attrs.Update(update); err != nil {
			return nil, err
		}
	}

	g.file.log.WithField("path", p).Debug("created group")
	return sub, nil
}

// FieldOptions 描述新字段
type FieldOptions struct {
	DType       string
	Units       string
	Label       string
	Description string
	Binary      bool
	ByteOrder   string // "little" / "big"，默认本机字节序
	Attrs       map[string]any
	Data        *codec.Array
}

// CreateField 创建字段
// 新字段必须给出 dtype，默认属性先于任何数据写入；Data 非空时立即写入。
// 已存在的字段直接绑定，数据保持不变。
func (g *Group) CreateField(name string, opts FieldOptions) (*Field, error) {
	p := types.Join(g.path, name)
	if err := g.file.writable(p); err != nil {
		return nil, err
	}
	if reserved(nameOf(p)) {
		return nil, fmt.Errorf("field name %q is reserved", name)
	}

	b := g.file.backend
	switch {
	case b.IsDir(p):
		return nil, fmt.Errorf("field %s: %w", p, storage.ErrExists)
	case b.Exists(p + linkSuffix):
		return nil, fmt.Errorf("field %s: %w", p, storage.ErrExists)
	case b.Exists(p):
		return g.file.bindField(p)
	}

	if opts.DType == "" {
		return nil, fmt.Errorf("dtype missing when creating %s: %w", p, ErrMissingDtype)
	}
	dt, err := codec.ParseDType(opts.DType)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", p, err)
	}
	order, err := codec.ParseOrder(opts.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", p, err)
	}

	// 1. 默认属性
	kv := map[string]any{
		"dtype":       opts.DType,
		"description": nullable(opts.Description),
		"units":       nullable(opts.Units),
		"label":       nullable(opts.Label),
		"binary":      opts.Binary,
		"byteorder":   codec.OrderName(order),
	}
	for k, v := range opts.Attrs {
		kv[k] = v
	}
	st, err := attrs.Open(b, p+attrsSuffix)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", p, err)
	}
	if err := st.Update(kv); err != nil {
		return nil, err
	}

	// 2. 数据文件，空文件表示尚未写入
	w, err := b.Create(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create field %s: %w", p, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	fd := newField(g.file, p, st, codec.NewCodec(dt, modeOf(opts.Binary), order))
	if opts.Data != nil {
		if err := fd.Write(opts.Data); err != nil {
			// 初始数据被拒绝时不留下半成品字段
			b.Remove(p)
			b.Remove(p + attrsSuffix)
			return nil, err
		}
	}

	g.file.log.WithField("path", p).WithField("dtype", dt.Name()).Debug("created field")
	return fd, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateLink 在本组下创建指向字段 target 的软链接
// 已经持久化的 target 优先于调用方给出的 target。
func (g *Group) CreateLink(name, target string) (*Link, error) {
	p := types.Join(g.path, name)
	l, err := g.createLink(p, target)
	if err != nil {
		return nil, fmt.Errorf("link %s -> %s: %w", p, target, err)
	}
	return l, nil
}

func (g *Group) createLink(p, target string) (*Link, error) {
	if err := g.file.writable(p); err != nil {
		return nil, err
	}
	if reserved(nameOf(p)) {
		return nil, fmt.Errorf("link name %q is reserved", nameOf(p))
	}

	b := g.file.backend
	if b.IsDir(p) || (b.Exists(p) && !b.Exists(p+linkSuffix)) {
		return nil, storage.ErrExists
	}

	own, err := attrs.Open(b, p+linkSuffix)
	if err != nil {
		return nil, err
	}
	if persisted, ok := attrs.String(own, "target"); ok {
		target = persisted
	} else {
		target = types.Join(g.path, target)
	}

	// 目标必须能解析为字段 (链接会被跟随)
	fd, err := g.file.Field(target)
	if err != nil {
		if !b.Exists(p) {
			b.Remove(p + linkSuffix)
		}
		return nil, err
	}

	if _, ok := own.Get("target"); !ok {
		if err := own.Set("target", fd.Path()); err != nil {
			return nil, err
		}
	}
	if !b.Exists(p) {
		if err := writeSentinel(b, p); err != nil {
			return nil, err
		}
	}

	g.file.log.WithField("path", p).WithField("target", fd.Path()).Debug("created link")
	return g.file.bindLink(p)
}

func writeSentinel(b storage.Backend, p string) error {
	w, err := b.Create(p)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(linkSentinel)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Delete 删除子节点
func (g *Group) Delete(name string) error {
	return g.file.Delete(types.Join(g.path, name))
}

// Keys 返回子节点名，不含内部文件，按名称排序
func (g *Group) Keys() ([]string, error) {
	if err := g.file.check(); err != nil {
		return nil, err
	}
	names, err := g.file.backend.List(g.path)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		if !reserved(name) {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

// Contains 报告 name 是否是本组的子节点
func (g *Group) Contains(name string) bool {
	if reserved(name) {
		return false
	}
	_, err := g.Get(name)
	return err == nil
}

// Items 返回全部子节点
func (g *Group) Items() ([]Node, error) {
	keys, err := g.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(keys))
	for _, k := range keys {
		n, err := g.file.resolve(types.Join(g.path, k))
		if errors.Is(err, ErrPathNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Groups 返回子组
func (g *Group) Groups() ([]*Group, error) {
	items, err := g.Items()
	if err != nil {
		return nil, err
	}
	var out []*Group
	for _, n := range items {
		if sub, ok := n.(*Group); ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

package nexus

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"time"

	"nexuszip/pkg/ignore"
	"nexuszip/pkg/packager"
	"nexuszip/pkg/storage"
	"nexuszip/pkg/storage/archive"
	"nexuszip/pkg/storage/disk"
	"nexuszip/pkg/types"

	log "github.com/sirupsen/logrus"
)

// File 是一个打开的归档会话
//
// 读写模式 ("w", "a") 在独占的工作目录中操作，Close 时打包回归档；
// 只读模式 ("r") 只索引归档的中央目录，不做任何解压。
// 一个 File 只能被一个 goroutine 使用。
type File struct {
	filename string
	mode     Mode
	opts     options

	backend storage.Backend
	work    *workDir
	root    *Group
	closed  bool
	log     *log.Entry
}

// Create 以写模式创建归档，已存在的同名归档会在 Close 时被替换
func Create(filename string, opts ...Option) (*File, error) {
	return Open(filename, ModeWrite, opts...)
}

// Open 打开归档
// 追加模式下已有的归档被完整解压到新的工作目录，不存在时等同于写模式。
func Open(filename string, mode Mode, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	f := &File{
		filename: filename,
		mode:     mode,
		opts:     o,
		log: o.logger.WithFields(log.Fields{
			"file": filename,
			"mode": string(mode),
		}),
	}

	var err error
	switch mode {
	case ModeRead:
		err = f.openIndex()
	case ModeWrite, ModeAppend:
		err = f.openWorkDir()
	default:
		return nil, fmt.Errorf("%q: %w", mode, ErrInvalidMode)
	}
	if err != nil {
		return nil, err
	}

	// 1. 绑定根组
	root, err := f.bindGroup(types.Root)
	if err != nil {
		f.release()
		return nil, err
	}
	f.root = root

	// 2. 写入根属性
	if !f.ReadOnly() {
		if err := f.stampRoot(); err != nil {
			f.release()
			return nil, err
		}
	}

	f.log.Debug("opened file")
	return f, nil
}

func (f *File) openIndex() error {
	a, err := archive.Open(f.filename)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("%s: %w", f.filename, ErrPathNotFound)
		}
		return err
	}
	f.backend = a
	return nil
}

func (f *File) openWorkDir() error {
	w, err := newWorkDir(f.opts.workDir)
	if err != nil {
		return err
	}

	if f.mode == ModeAppend {
		_, err := os.Stat(f.filename)
		switch {
		case err == nil:
			st, err := packager.UnpackFile(context.Background(), w.fs, f.filename, w.path)
			if err != nil {
				w.Release()
				return fmt.Errorf("%w %s: %w", ErrExtract, f.filename, err)
			}
			f.log.WithFields(log.Fields{
				"workdir": w.path,
				"files":   st.Files,
			}).Debug("extracted archive")
		case !errors.Is(err, iofs.ErrNotExist):
			// 无法确认归档不存在时不能当作新文件，否则 Close 会覆盖它
			w.Release()
			return fmt.Errorf("%w %s: %w", ErrExtract, f.filename, err)
		}
	}

	b, err := disk.NewAdapter(w.path)
	if err != nil {
		w.Release()
		return err
	}
	f.work = w
	f.backend = b
	return nil
}

// stampRoot 写入 NXroot 标记与文件元数据
// 写模式总是重写；追加模式只补齐缺失的键，保留原来的 file_name / file_time
func (f *File) stampRoot() error {
	ts := f.opts.timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	defaults := map[string]any{
		"NX_class":      "NXroot",
		"file_name":     f.filename,
		"file_time":     ts.Format(time.RFC3339),
		"NeXus_version": NeXusVersion,
	}
	kv := make(map[string]any)
	for k, v := range defaults {
		if _, ok := f.root.attrs.Get(k); f.mode == ModeWrite || !ok {
			kv[k] = v
		}
	}
	if f.opts.creator != "" {
		kv["creator"] = f.opts.creator
	}
	for k, v := range f.opts.attrs {
		kv[k] = v
	}
	if len(kv) == 0 {
		return nil
	}
	return f.root.attrs.Update(kv)
}

// Filename 返回归档文件名
func (f *File) Filename() string { return f.filename }

// Mode 返回打开模式
func (f *File) Mode() Mode { return f.mode }

// ReadOnly 报告会话是否只读
func (f *File) ReadOnly() bool { return f.backend.ReadOnly() }

// Closed 报告会话是否已经关闭
func (f *File) Closed() bool { return f.closed }

// WorkDir 返回工作目录，只读会话为空
func (f *File) WorkDir() string {
	if f.work == nil {
		return ""
	}
	return f.work.path
}

// Backend 暴露当前会话的存储后端
func (f *File) Backend() storage.Backend { return f.backend }

// Root 返回根组
func (f *File) Root() *Group { return f.root }

func (f *File) check() error {
	if f.closed {
		return fmt.Errorf("%s: %w", f.filename, ErrClosed)
	}
	return nil
}

func (f *File) writable(p string) error {
	if err := f.check(); err != nil {
		return err
	}
	if f.ReadOnly() {
		return fmt.Errorf("%s: %w", p, storage.ErrReadOnly)
	}
	return nil
}

// Get 按绝对路径查找节点
func (f *File) Get(p string) (Node, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return f.resolve(types.Clean(p))
}

// resolve 依次判断: 目录 -> 组，存在 .link -> 链接，数据文件 -> 字段
func (f *File) resolve(p string) (Node, error) {
	b := f.backend
	if p != types.Root && reserved(nameOf(p)) {
		return nil, fmt.Errorf("%s: %w", p, ErrPathNotFound)
	}
	switch {
	case b.IsDir(p):
		return f.bindGroup(p)
	case b.Exists(p + linkSuffix):
		return f.bindLink(p)
	case b.Exists(p):
		return f.bindField(p)
	}
	return nil, fmt.Errorf("%s: %w", p, ErrPathNotFound)
}

func nameOf(p string) string {
	_, name := types.Split(p)
	return name
}

// group 查找并断言为组
func (f *File) group(p string) (*Group, error) {
	n, err := f.Get(p)
	if err != nil {
		return nil, err
	}
	g, ok := n.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotGroup)
	}
	return g, nil
}

// Field 查找字段，路径是链接时返回链接的目标字段
func (f *File) Field(p string) (*Field, error) {
	n, err := f.Get(p)
	if err != nil {
		return nil, err
	}
	switch x := n.(type) {
	case *Field:
		return x, nil
	case *Link:
		return x.Field()
	}
	return nil, fmt.Errorf("%s: %w", p, ErrNotField)
}

// Delete 删除节点：组递归删除，字段删除数据与属性，链接删除哨兵与 .link
func (f *File) Delete(p string) error {
	p = types.Clean(p)
	if err := f.writable(p); err != nil {
		return err
	}
	if p == types.Root {
		return fmt.Errorf("cannot delete root group")
	}

	n, err := f.resolve(p)
	if err != nil {
		return err
	}

	var extra string
	switch n.(type) {
	case *Field:
		extra = p + attrsSuffix
	case *Link:
		extra = p + linkSuffix
	}
	if err := f.backend.Remove(p); err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	if extra != "" && f.backend.Exists(extra) {
		if err := f.backend.Remove(extra); err != nil {
			return fmt.Errorf("failed to delete %s: %w", extra, err)
		}
	}
	f.log.WithField("path", p).Debug("deleted node")
	return nil
}

// Walk 深度优先遍历整棵树，包含根组
// fn 对组返回 fs.SkipDir 时跳过该组的子节点
func (f *File) Walk(fn func(n Node) error) error {
	if err := f.check(); err != nil {
		return err
	}
	return walk(f.root, fn)
}

func walk(n Node, fn func(n Node) error) error {
	err := fn(n)
	g, isGroup := n.(*Group)
	if errors.Is(err, iofs.SkipDir) && isGroup {
		return nil
	}
	if err != nil || !isGroup {
		return err
	}

	items, err := g.Items()
	if err != nil {
		return err
	}
	for _, child := range items {
		if err := walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Flush 保留的钩子，打包只在 Close 时发生
func (f *File) Flush() error {
	return f.check()
}

// Close 结束会话
// 读写模式把工作目录打包成 <filename>.next 再 rename 到 filename，
// 并且总是删除工作目录。重复调用返回 nil。
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.ReadOnly() {
		f.log.Debug("closed file")
		return f.backend.Close()
	}

	err := f.pack()
	f.release()
	return err
}

func (f *File) pack() error {
	m, err := ignore.NewMatcher(f.work.fs, f.work.path, f.opts.ignore...)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrPackaging, f.filename, err)
	}

	st, err := packager.PackDir(context.Background(), f.work.fs, f.work.path, f.filename,
		packager.WithMethod(f.opts.method),
		packager.WithLevel(f.opts.level),
		packager.WithMatcher(m),
	)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrPackaging, f.filename, err)
	}

	f.log.WithFields(log.Fields{
		"files":    st.Files,
		"dirs":     st.Dirs,
		"symlinks": st.Symlinks,
		"bytes":    st.Bytes,
	}).Info("packed archive")
	return nil
}

// release 释放后端与工作目录，清理失败只记录日志
func (f *File) release() {
	if f.backend != nil {
		f.backend.Close()
	}
	if err := f.work.Release(); err != nil {
		f.log.WithError(err).Warn("failed to remove working directory")
	}
}

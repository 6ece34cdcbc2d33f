package nexus

import (
	"errors"
	"fmt"

	"nexuszip/pkg/attrs"
	"nexuszip/pkg/codec"
	"nexuszip/pkg/storage"
)

// Field 是一个带类型的数组节点
// 数据保存在 <path>，属性保存在 <path>.attrs。
// dtype 与字节序在创建时固定，编解码模板在绑定时解析一次。
type Field struct {
	node
	attrs  *attrs.Store
	codec  *codec.Codec
	coerce bool
}

var _ Node = (*Field)(nil)

func newField(f *File, p string, st *attrs.Store, c *codec.Codec) *Field {
	return &Field{node: node{file: f, path: p}, attrs: st, codec: c, coerce: true}
}

func (f *File) bindField(p string) (*Field, error) {
	st, err := attrs.Open(f.backend, p+attrsSuffix)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", p, err)
	}
	c, err := codecFromAttrs(st)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", p, err)
	}
	return newField(f, p, st, c), nil
}

// codecFromAttrs 从持久化的属性恢复编解码器
// format 优先于 dtype；文本模式的字符串不限制宽度
func codecFromAttrs(m attrs.Map) (*codec.Codec, error) {
	byteorder, _ := attrs.String(m, "byteorder")
	order, err := codec.ParseOrder(byteorder)
	if err != nil {
		return nil, err
	}

	var dt codec.DType
	if format, ok := attrs.String(m, "format"); ok {
		dt, _, err = codec.ParseFormat(format)
	} else if name, ok := attrs.String(m, "dtype"); ok {
		dt, err = codec.ParseDType(name)
	} else {
		err = ErrMissingDtype
	}
	if err != nil {
		return nil, err
	}

	binary := attrs.Bool(m, "binary")
	if dt.Kind == codec.KindString && !binary {
		dt.Size = 0
	}
	return codec.NewCodec(dt, modeOf(binary), order), nil
}

func modeOf(binary bool) codec.Mode {
	if binary {
		return codec.Binary
	}
	return codec.Text
}

func (fd *Field) Kind() Kind { return KindField }

func (fd *Field) Attrs() attrs.Map { return fd.attrs }

// DType 返回字段的 dtype
func (fd *Field) DType() codec.DType { return fd.codec.DType }

// Shape 返回持久化的形状，从未写入时为 nil
func (fd *Field) Shape() []int {
	shape, ok := attrs.Ints(fd.attrs, "shape")
	if !ok {
		return nil
	}
	return shape
}

// Format 返回格式串，例如 "<f4"
func (fd *Field) Format() string {
	if s, ok := attrs.String(fd.attrs, "format"); ok {
		return s
	}
	return fd.codec.Format()
}

// ByteOrder 返回 "little" 或 "big"
func (fd *Field) ByteOrder() string { return codec.OrderName(fd.codec.Order) }

// Binary 报告负载是否为二进制
func (fd *Field) Binary() bool { return fd.codec.Mode == codec.Binary }

func (fd *Field) Units() string {
	s, _ := attrs.String(fd.attrs, "units")
	return s
}

func (fd *Field) Label() string {
	s, _ := attrs.String(fd.attrs, "label")
	return s
}

func (fd *Field) Description() string {
	s, _ := attrs.String(fd.attrs, "description")
	return s
}

// Coerce 设置追加时 dtype 不一致是否自动转换，默认开启
func (fd *Field) Coerce(on bool) *Field {
	fd.coerce = on
	return fd
}

// Size 返回负载的字节数
func (fd *Field) Size() (int64, error) {
	if err := fd.file.check(); err != nil {
		return 0, err
	}
	return fd.file.backend.Size(fd.path)
}

// Value 读取整个数组并按持久化的形状重建
func (fd *Field) Value() (*codec.Array, error) {
	if err := fd.file.check(); err != nil {
		return nil, err
	}
	r, err := fd.file.backend.Open(fd.path)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.path, err)
	}
	defer r.Close()

	a, err := fd.codec.Decode(r, fd.Shape())
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.path, err)
	}
	return a, nil
}

// Write 替换字段的全部数据
// 数据先转换为字段的 dtype；标量按长度为 1 的一维数组保存。
// 新数据写入 <path>.next，shape / format 提交之后才 rename 到位，
// 任何一步失败字段都保持原来的数据与形状。
func (fd *Field) Write(a *codec.Array) error {
	if err := fd.file.writable(fd.path); err != nil {
		return err
	}

	a, err := fd.conform(a)
	if err != nil {
		return err
	}
	if a.Ndim() == 0 {
		if a, err = a.Reshape(1); err != nil {
			return err
		}
	}

	// 定长字符串的宽度由本次写入决定
	c := fd.codec
	if a.DType.Kind == codec.KindString && fd.Binary() {
		c = c.WithWidth(a.DType.Size)
	}

	b := fd.file.backend
	tmp := fd.path + attrs.TempSuffix

	// 1. 数据写入临时文件
	if err := encodeTo(b, tmp, c, a, false); err != nil {
		b.Remove(tmp)
		return fmt.Errorf("field %s: %w", fd.path, err)
	}

	// 2. 提交 shape / format
	prev := fd.layout()
	if err := fd.attrs.Update(map[string]any{
		"shape":  a.Shape,
		"format": fd.formatFor(c, a, false),
	}); err != nil {
		b.Remove(tmp)
		return err
	}

	// 3. 替换数据文件，失败时恢复属性
	if err := b.Rename(tmp, fd.path); err != nil {
		b.Remove(tmp)
		err = fmt.Errorf("failed to commit field %s: %w", fd.path, err)
		if rerr := fd.attrs.Update(prev); rerr != nil {
			return errors.Join(err, fmt.Errorf("failed to restore attributes of %s: %w", fd.path, rerr))
		}
		return err
	}

	fd.codec = c
	return nil
}

// layout 返回当前的 shape / format，用于回滚
// 缺失的键记为 null，读取时与不存在等价
func (fd *Field) layout() map[string]any {
	prev := map[string]any{"shape": nil, "format": nil}
	for k := range prev {
		if v, ok := fd.attrs.Get(k); ok {
			prev[k] = v
		}
	}
	return prev
}

// encodeTo 把数组编码到后端文件，appendMode 时追加到末尾
func encodeTo(b storage.Backend, p string, c *codec.Codec, a *codec.Array, appendMode bool) error {
	open := b.Create
	if appendMode {
		open = b.Append
	}
	w, err := open(p)
	if err != nil {
		return err
	}
	if err := c.Encode(w, a); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Row 读取沿第一维的第 i 行
func (fd *Field) Row(i int) (*codec.Array, error) {
	v, err := fd.Value()
	if err != nil {
		return nil, err
	}
	row, err := v.Row(i)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.path, err)
	}
	return row, nil
}

// SetRow 替换第 i 行：读出整个数组，修改后整体写回
// 一维字段的行是标量，长度为 1 的一维块也被接受
func (fd *Field) SetRow(i int, row *codec.Array) error {
	if err := fd.file.writable(fd.path); err != nil {
		return err
	}
	v, err := fd.Value()
	if err != nil {
		return err
	}

	row, err = fd.conform(row)
	if err != nil {
		return err
	}
	if v.Ndim() == 1 && row.Ndim() == 1 && row.Len() == 1 {
		if row, err = row.Reshape(); err != nil {
			return err
		}
	}
	if err := v.SetRow(i, row); err != nil {
		return fmt.Errorf("field %s: %w", fd.path, err)
	}
	return fd.Write(v)
}

// conform 把整块写入的数据转换为字段的 dtype
func (fd *Field) conform(a *codec.Array) (*codec.Array, error) {
	dt := fd.codec.DType
	if a.DType.Kind == dt.Kind && (dt.Kind == codec.KindString || a.DType.Size == dt.Size) {
		return a, nil
	}
	target := dt
	if dt.Kind == codec.KindString {
		target.Size = 0
	}
	out, err := a.AsType(target)
	if err != nil {
		return nil, fmt.Errorf("field %s: cannot convert %v to %v: %w", fd.path, a.DType, dt, err)
	}
	return out, nil
}

// formatFor 计算写入 a 之后的格式串
// 文本字符串记录目前为止的最大宽度
func (fd *Field) formatFor(c *codec.Codec, a *codec.Array, grow bool) string {
	dt := c.DType
	if dt.Kind == codec.KindString && !fd.Binary() {
		dt.Size = a.DType.Size
		if grow {
			if prev, _, err := codec.ParseFormat(fd.Format()); err == nil && prev.Size > dt.Size {
				dt.Size = prev.Size
			}
		}
	}
	return dt.Format(c.Order)
}

type appendOptions struct {
	coerce *bool
}

// AppendOption 配置单次 Append / Extend
type AppendOption func(*appendOptions)

// WithCoerce 覆盖字段的 coerce 设置
func WithCoerce(on bool) AppendOption {
	return func(o *appendOptions) { o.coerce = &on }
}

// Append 沿第一维追加一行，块形状必须等于 shape[1:]
// 例如 (3,4) 的字段追加 (4,) 之后变为 (4,4)
func (fd *Field) Append(chunk *codec.Array, opts ...AppendOption) error {
	return fd.grow(chunk, false, opts)
}

// Extend 沿第一维追加多行，块形状[1:] 必须等于 shape[1:]
func (fd *Field) Extend(chunk *codec.Array, opts ...AppendOption) error {
	return fd.grow(chunk, true, opts)
}

func (fd *Field) grow(chunk *codec.Array, extend bool, opts []AppendOption) error {
	if err := fd.file.writable(fd.path); err != nil {
		return err
	}

	o := appendOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	coerce := fd.coerce
	if o.coerce != nil {
		coerce = *o.coerce
	}

	stored, ok := attrs.Ints(fd.attrs, "shape")
	if !ok {
		stored = nil
	}

	out, next, err := codec.PrepareAppend(stored, fd.codec.DType, chunk, extend, coerce)
	if err != nil {
		return fmt.Errorf("field %s: %w", fd.path, err)
	}

	// 第一次写入的二进制字符串决定宽度
	c := fd.codec
	if fd.Binary() && out.DType.Kind == codec.KindString && c.DType.Size == 0 {
		c = c.WithWidth(out.DType.Size)
	}

	// 1. 记录原长度，之后的任何失败都截断回去
	b := fd.file.backend
	size, err := b.Size(fd.path)
	if errors.Is(err, storage.ErrNotFound) {
		size = 0
	} else if err != nil {
		return fmt.Errorf("field %s: %w", fd.path, err)
	}

	// 2. 先追加数据
	if err := encodeTo(b, fd.path, c, out, true); err != nil {
		return fd.truncate(size, fmt.Errorf("field %s: %w", fd.path, err))
	}

	// 3. 再提交 shape / format
	if err := fd.attrs.Update(map[string]any{
		"shape":  next,
		"format": fd.formatFor(c, out, stored != nil),
	}); err != nil {
		return fd.truncate(size, err)
	}

	fd.codec = c
	return nil
}

// truncate 把数据文件恢复到追加前的长度，并返回原始错误
func (fd *Field) truncate(size int64, cause error) error {
	if err := fd.file.backend.Truncate(fd.path, size); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to roll back %s: %w", fd.path, err))
	}
	return cause
}

package codec

import (
	"fmt"
	"reflect"
	"strconv"
)

// Elem 是可以直接构造数组的 Go 元素类型
type Elem interface {
	float32 | float64 | int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 | bool | string
}

// Array 是一个带 dtype 与形状的 N 维数组
// 数据按行优先平铺存储，规范表示为
// []float64 / []int64 / []uint64 / []bool / []string 之一。
type Array struct {
	DType DType
	Shape []int
	data  any
}

// Size 返回形状对应的元素个数，标量 (空形状) 为 1
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// New 创建零值数组
func New(dt DType, shape []int) (*Array, error) {
	if !dt.valid() {
		return nil, fmt.Errorf("%v: %w", dt, ErrUnknownDtype)
	}
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension in shape %v", shape)
		}
	}
	n := Size(shape)
	a := &Array{DType: dt, Shape: append([]int{}, shape...)}
	switch dt.Kind {
	case KindFloat:
		a.data = make([]float64, n)
	case KindInt:
		a.data = make([]int64, n)
	case KindUint:
		a.data = make([]uint64, n)
	case KindBool:
		a.data = make([]bool, n)
	case KindString:
		a.data = make([]string, n)
	}
	return a, nil
}

// FromSlice 用 Go 切片构造数组，不给形状时为一维
func FromSlice[T Elem](vals []T, shape ...int) (*Array, error) {
	if len(shape) == 0 {
		shape = []int{len(vals)}
	}
	if Size(shape) != len(vals) {
		return nil, fmt.Errorf("cannot reshape %d values into %v", len(vals), shape)
	}

	a := &Array{Shape: append([]int{}, shape...)}
	switch v := any(vals).(type) {
	case []float32:
		a.DType, a.data = Float32, widen(v, func(x float32) float64 { return float64(x) })
	case []float64:
		a.DType, a.data = Float64, append([]float64{}, v...)
	case []int:
		a.DType, a.data = Int64, widen(v, func(x int) int64 { return int64(x) })
	case []int8:
		a.DType, a.data = Int8, widen(v, func(x int8) int64 { return int64(x) })
	case []int16:
		a.DType, a.data = Int16, widen(v, func(x int16) int64 { return int64(x) })
	case []int32:
		a.DType, a.data = Int32, widen(v, func(x int32) int64 { return int64(x) })
	case []int64:
		a.DType, a.data = Int64, append([]int64{}, v...)
	case []uint:
		a.DType, a.data = Uint64, widen(v, func(x uint) uint64 { return uint64(x) })
	case []uint8:
		a.DType, a.data = Uint8, widen(v, func(x uint8) uint64 { return uint64(x) })
	case []uint16:
		a.DType, a.data = Uint16, widen(v, func(x uint16) uint64 { return uint64(x) })
	case []uint32:
		a.DType, a.data = Uint32, widen(v, func(x uint32) uint64 { return uint64(x) })
	case []uint64:
		a.DType, a.data = Uint64, append([]uint64{}, v...)
	case []bool:
		a.DType, a.data = Bool, append([]bool{}, v...)
	case []string:
		a.DType, a.data = DType{KindString, maxWidth(v)}, append([]string{}, v...)
	}
	return a, nil
}

// Scalar 构造零维数组
func Scalar[T Elem](v T) *Array {
	a, _ := FromSlice([]T{v}, 1)
	a.Shape = []int{}
	return a
}

func widen[S, D any](src []S, fn func(S) D) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = fn(v)
	}
	return out
}

func maxWidth(vals []string) int {
	w := 1
	for _, s := range vals {
		if len(s) > w {
			w = len(s)
		}
	}
	return w
}

// Len 返回元素个数
func (a *Array) Len() int { return Size(a.Shape) }

// Ndim 返回维数
func (a *Array) Ndim() int { return len(a.Shape) }

// Data 返回底层规范切片 (不复制)
func (a *Array) Data() any { return a.data }

// Floats 以 float64 返回全部元素
func (a *Array) Floats() ([]float64, error) {
	switch d := a.data.(type) {
	case []float64:
		return append([]float64{}, d...), nil
	case []int64:
		return widen(d, func(x int64) float64 { return float64(x) }), nil
	case []uint64:
		return widen(d, func(x uint64) float64 { return float64(x) }), nil
	case []bool:
		return widen(d, func(x bool) float64 { return float64(boolInt(x)) }), nil
	case []string:
		out := make([]float64, len(d))
		for i, s := range d {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to float: %w", s, err)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("empty array")
}

// Ints 以 int64 返回全部元素，浮点数向零截断
func (a *Array) Ints() ([]int64, error) {
	switch d := a.data.(type) {
	case []float64:
		return widen(d, func(x float64) int64 { return int64(x) }), nil
	case []int64:
		return append([]int64{}, d...), nil
	case []uint64:
		return widen(d, func(x uint64) int64 { return int64(x) }), nil
	case []bool:
		return widen(d, boolInt), nil
	case []string:
		out := make([]int64, len(d))
		for i, s := range d {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to int: %w", s, err)
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("empty array")
}

// Uints 以 uint64 返回全部元素，负数按补码回绕
func (a *Array) Uints() ([]uint64, error) {
	if u, ok := a.data.([]uint64); ok {
		return append([]uint64{}, u...), nil
	}
	if s, ok := a.data.([]string); ok {
		return parseUints(s)
	}
	n, err := a.Ints()
	if err != nil {
		return nil, err
	}
	return widen(n, func(x int64) uint64 { return uint64(x) }), nil
}

// Bools 以布尔值返回全部元素，非零即真
func (a *Array) Bools() ([]bool, error) {
	out, err := a.AsType(Bool)
	if err != nil {
		return nil, err
	}
	return out.data.([]bool), nil
}

// Strings 以文本形式返回全部元素，格式与文本编码一致
func (a *Array) Strings() []string {
	out := make([]string, a.Len())
	t := templates[TemplateFor(a.DType.Kind)]
	for i := range out {
		out[i] = string(t.format(nil, a, i))
	}
	return out
}

// Reshape 返回共享数据的新形状视图
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if Size(shape) != a.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrInvalidShape, a.Shape, shape)
	}
	return &Array{DType: a.DType, Shape: append([]int{}, shape...), data: a.data}, nil
}

// Row 返回沿第一维的第 i 个子数组
func (a *Array) Row(i int) (*Array, error) {
	if len(a.Shape) == 0 || i < 0 || i >= a.Shape[0] {
		return nil, fmt.Errorf("row %d out of range for shape %v", i, a.Shape)
	}
	stride := Size(a.Shape[1:])
	lo, hi := i*stride, (i+1)*stride
	out := &Array{DType: a.DType, Shape: append([]int{}, a.Shape[1:]...)}
	out.data = reflect.ValueOf(a.data).Slice(lo, hi).Interface()
	return out, nil
}

// SetRow 用 row 覆盖沿第一维的第 i 个子数组
// row 的形状必须等于 shape[1:]，dtype 必须同种类
func (a *Array) SetRow(i int, row *Array) error {
	if len(a.Shape) == 0 || i < 0 || i >= a.Shape[0] {
		return fmt.Errorf("row %d out of range for shape %v", i, a.Shape)
	}
	if !equalInts(row.Shape, a.Shape[1:]) {
		return fmt.Errorf("%w: row %v does not fit %v", ErrInvalidShape, row.Shape, a.Shape)
	}
	if row.DType.Kind != a.DType.Kind {
		return fmt.Errorf("%w: %v and %v", ErrDtypeMismatch, a.DType, row.DType)
	}
	stride := Size(a.Shape[1:])
	reflect.Copy(reflect.ValueOf(a.data).Slice(i*stride, (i+1)*stride), reflect.ValueOf(row.data))
	if row.DType.Size > a.DType.Size {
		a.DType.Size = row.DType.Size
	}
	return nil
}

// Concat 沿第一维拼接两个尾部形状相同的数组
func Concat(a, b *Array) (*Array, error) {
	if len(a.Shape) == 0 || len(b.Shape) == 0 || !equalInts(a.Shape[1:], b.Shape[1:]) {
		return nil, fmt.Errorf("%w: cannot concatenate %v and %v", ErrInvalidShape, a.Shape, b.Shape)
	}
	if a.DType.Kind != b.DType.Kind {
		return nil, fmt.Errorf("%w: %v and %v", ErrDtypeMismatch, a.DType, b.DType)
	}
	shape := append([]int{a.Shape[0] + b.Shape[0]}, a.Shape[1:]...)
	dt := a.DType
	if b.DType.Size > dt.Size {
		dt.Size = b.DType.Size
	}
	data := reflect.AppendSlice(reflect.ValueOf(a.data), reflect.ValueOf(b.data)).Interface()
	return &Array{DType: dt, Shape: shape, data: data}, nil
}

// AsType 转换为另一个 dtype
// 整数按目标宽度回绕，浮点按目标精度舍入，定长字符串截断到目标宽度。
func (a *Array) AsType(dt DType) (*Array, error) {
	if !dt.valid() {
		return nil, fmt.Errorf("%v: %w", dt, ErrUnknownDtype)
	}
	out := &Array{DType: dt, Shape: append([]int{}, a.Shape...)}

	switch dt.Kind {
	case KindFloat:
		f, err := a.Floats()
		if err != nil {
			return nil, err
		}
		if dt.Size == 4 {
			for i, v := range f {
				f[i] = float64(float32(v))
			}
		}
		out.data = f
	case KindInt:
		n, err := a.Ints()
		if err != nil {
			return nil, err
		}
		for i, v := range n {
			n[i] = wrapInt(v, dt.Size)
		}
		out.data = n
	case KindUint:
		n, err := a.Ints()
		if err != nil {
			if s, ok := a.data.([]string); ok {
				u, perr := parseUints(s)
				if perr != nil {
					return nil, perr
				}
				out.data = widen(u, func(x uint64) uint64 { return wrapUint(x, dt.Size) })
				break
			}
			return nil, err
		}
		if u, ok := a.data.([]uint64); ok {
			out.data = widen(u, func(x uint64) uint64 { return wrapUint(x, dt.Size) })
			break
		}
		out.data = widen(n, func(x int64) uint64 { return wrapUint(uint64(x), dt.Size) })
	case KindBool:
		if s, ok := a.data.([]string); ok {
			b := make([]bool, len(s))
			for i, v := range s {
				pb, err := strconv.ParseBool(v)
				if err != nil {
					return nil, fmt.Errorf("cannot convert %q to bool: %w", v, err)
				}
				b[i] = pb
			}
			out.data = b
			break
		}
		f, err := a.Floats()
		if err != nil {
			return nil, err
		}
		out.data = widen(f, func(x float64) bool { return x != 0 })
	case KindString:
		s := a.Strings()
		if dt.Size > 0 {
			for i, v := range s {
				if len(v) > dt.Size {
					s[i] = v[:dt.Size]
				}
			}
		} else {
			out.DType.Size = maxWidth(s)
		}
		out.data = s
	}
	return out, nil
}

// Equal 比较 dtype 种类、形状与数据
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.DType.Kind != b.DType.Kind || !equalInts(a.Shape, b.Shape) {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	return reflect.DeepEqual(a.data, b.data)
}

func (a *Array) String() string {
	return fmt.Sprintf("array(%v, dtype=%s, shape=%v)", a.Strings(), a.DType, a.Shape)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func parseUints(s []string) ([]uint64, error) {
	out := make([]uint64, len(s))
	for i, v := range s {
		u, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to uint: %w", v, err)
		}
		out[i] = u
	}
	return out, nil
}

func wrapInt(v int64, size int) int64 {
	switch size {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return v
}

func wrapUint(v uint64, size int) uint64 {
	if size >= 8 {
		return v
	}
	return v & (1<<(uint(size)*8) - 1)
}

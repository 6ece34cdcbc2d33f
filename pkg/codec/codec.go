package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// Mode 是字段负载的编码方式
type Mode int

const (
	Text Mode = iota
	Binary
)

func (m Mode) String() string {
	if m == Binary {
		return "binary"
	}
	return "text"
}

// Codec 在数组与字段负载之间转换
//
// 文本负载：每行对应第一维的一个切片，同一行内元素用制表符分隔；
// 只有一个字节 "\n" 的负载表示单个空字符串。
// 二进制负载：按 Order 平铺的定宽元素，不带任何头部。
type Codec struct {
	DType DType
	Mode  Mode
	Order binary.ByteOrder
	tmpl  Template
}

// NewCodec 创建编解码器，order 为 nil 时使用本机字节序
func NewCodec(dt DType, mode Mode, order binary.ByteOrder) *Codec {
	if order == nil {
		order = NativeOrder()
	}
	return &Codec{DType: dt, Mode: mode, Order: order, tmpl: TemplateFor(dt.Kind)}
}

// Template 返回字段创建时解析出的文本模板
func (c *Codec) Template() Template { return c.tmpl }

// Format 返回当前 dtype 与字节序的格式串
func (c *Codec) Format() string { return c.DType.Format(c.Order) }

// Encode 把数组写为负载，数组必须已经是 c.DType 的种类
func (c *Codec) Encode(w io.Writer, a *Array) error {
	if a.DType.Kind != c.DType.Kind {
		return fmt.Errorf("%w: encoding %v as %v", ErrDtypeMismatch, a.DType, c.DType)
	}
	if c.Mode == Binary {
		return c.encodeBinary(w, a)
	}
	if err := checkText(a); err != nil {
		return err
	}
	return c.encodeText(w, a)
}

// WithWidth 返回宽度为 n 的副本，用于定长字符串在写入成功前试探新宽度
func (c *Codec) WithWidth(n int) *Codec {
	out := *c
	out.DType.Size = n
	return &out
}

// checkText 拒绝含有分隔符的字符串，否则重新读取时会被切成多个元素
func checkText(a *Array) error {
	vals, ok := a.data.([]string)
	if !ok {
		return nil
	}
	for i, v := range vals {
		if strings.ContainsAny(v, "\t\n\r") {
			return fmt.Errorf("%w: element %d is %q", ErrTextValue, i, v)
		}
	}
	return nil
}

func (c *Codec) encodeText(w io.Writer, a *Array) error {
	n := a.Len()
	if n == 0 {
		return nil
	}
	rows := 1
	if len(a.Shape) > 0 {
		rows = a.Shape[0]
	}
	cols := n / rows

	bw := bufio.NewWriter(w)
	t := templates[c.tmpl]
	var buf []byte
	for r := 0; r < rows; r++ {
		buf = buf[:0]
		for j := 0; j < cols; j++ {
			if j > 0 {
				buf = append(buf, '\t')
			}
			buf = t.format(buf, a, r*cols+j)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (c *Codec) encodeBinary(w io.Writer, a *Array) error {
	width := c.DType.Size
	if c.DType.Kind == KindString && width == 0 {
		width = a.DType.Size
	}
	bw := bufio.NewWriter(w)
	elem := make([]byte, width)

	for i := 0; i < a.Len(); i++ {
		switch d := a.data.(type) {
		case []float64:
			if width == 4 {
				c.Order.PutUint32(elem, math.Float32bits(float32(d[i])))
			} else {
				c.Order.PutUint64(elem, math.Float64bits(d[i]))
			}
		case []int64:
			putUint(c.Order, elem, uint64(d[i]))
		case []uint64:
			putUint(c.Order, elem, d[i])
		case []bool:
			elem[0] = byte(boolInt(d[i]))
		case []string:
			clear(elem)
			copy(elem, d[i])
		}
		if _, err := bw.Write(elem); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func putUint(order binary.ByteOrder, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
}

func getUint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

// Decode 读取整个负载并按 shape 重建数组
// shape 为 nil 时视为一维，长度由负载决定。
func (c *Codec) Decode(r io.Reader, shape []int) (*Array, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if c.Mode == Binary {
		return c.decodeBinary(raw, shape)
	}
	return c.decodeText(raw, shape)
}

func (c *Codec) decodeText(raw []byte, shape []int) (*Array, error) {
	var tokens []string
	if c.DType.Kind == KindString && string(raw) == "\n" {
		tokens = []string{""}
	} else {
		tokens = tokenize(string(raw), c.DType.Kind)
	}

	shape, err := resolveShape(shape, len(tokens))
	if err != nil {
		return nil, err
	}
	a, err := New(c.DType, shape)
	if err != nil {
		return nil, err
	}
	t := templates[c.tmpl]
	for i, tok := range tokens {
		if err := t.parse(tok, a, i); err != nil {
			return nil, err
		}
	}
	if a.DType.Kind == KindString && a.DType.Size == 0 {
		a.DType.Size = maxWidth(a.data.([]string))
	}
	return a, nil
}

func (c *Codec) decodeBinary(raw []byte, shape []int) (*Array, error) {
	width := c.DType.Size
	if width == 0 && len(raw) == 0 {
		// 从未写入的定长字符串还没有宽度
		shape, err := resolveShape(shape, 0)
		if err != nil {
			return nil, err
		}
		return New(c.DType, shape)
	}
	if width == 0 {
		return nil, fmt.Errorf("%w: binary payload needs a fixed width", ErrUnknownDtype)
	}
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("corrupted payload: %d bytes is not a multiple of %d", len(raw), width)
	}
	n := len(raw) / width

	shape, err := resolveShape(shape, n)
	if err != nil {
		return nil, err
	}
	a, err := New(c.DType, shape)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		elem := raw[i*width : (i+1)*width]
		switch d := a.data.(type) {
		case []float64:
			if width == 4 {
				d[i] = float64(math.Float32frombits(c.Order.Uint32(elem)))
			} else {
				d[i] = math.Float64frombits(c.Order.Uint64(elem))
			}
		case []int64:
			d[i] = signExtend(getUint(c.Order, elem), width)
		case []uint64:
			d[i] = getUint(c.Order, elem)
		case []bool:
			d[i] = elem[0] != 0
		case []string:
			d[i] = trimNul(elem)
		}
	}
	return a, nil
}

func resolveShape(shape []int, n int) ([]int, error) {
	if shape == nil {
		return []int{n}, nil
	}
	if Size(shape) != n {
		return nil, fmt.Errorf("corrupted payload: shape %v expects %d values, found %d", shape, Size(shape), n)
	}
	return shape, nil
}

func signExtend(v uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return int64(v)
}

func trimNul(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

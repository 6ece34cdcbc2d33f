package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMissingDtype 创建字段时没有提供 dtype
	ErrMissingDtype = errors.New("dtype missing")
	// ErrInvalidShape 追加块的尾部维度与已存储的形状不一致
	ErrInvalidShape = errors.New("invalid shape to append")
	// ErrDtypeMismatch 追加块的 dtype 与已存储的 dtype 不一致且禁止强制转换
	ErrDtypeMismatch = errors.New("dtypes do not match, and coerce is set to false")
	// ErrUnknownDtype 无法识别的 dtype 或格式串
	ErrUnknownDtype = errors.New("unknown dtype")
	// ErrTextValue 字符串包含文本负载的分隔符 (制表符、换行、回车)
	ErrTextValue = errors.New("string can't be stored as text")
)

// Kind 是数组元素的种类，与格式串中的类型码一致
type Kind byte

const (
	KindString Kind = 'S'
	KindFloat  Kind = 'f'
	KindInt    Kind = 'i'
	KindUint   Kind = 'u'
	KindBool   Kind = 'b'
)

func (k Kind) String() string { return string(rune(k)) }

// DType 描述元素种类与字节宽度
// 字符串的 Size 为定长宽度，0 表示宽度尚未确定 (首次写入时决定)
type DType struct {
	Kind Kind
	Size int
}

var (
	Float32 = DType{KindFloat, 4}
	Float64 = DType{KindFloat, 8}
	Int8    = DType{KindInt, 1}
	Int16   = DType{KindInt, 2}
	Int32   = DType{KindInt, 4}
	Int64   = DType{KindInt, 8}
	Uint8   = DType{KindUint, 1}
	Uint16  = DType{KindUint, 2}
	Uint32  = DType{KindUint, 4}
	Uint64  = DType{KindUint, 8}
	Bool    = DType{KindBool, 1}
	String  = DType{KindString, 0}
)

var dtypeNames = map[string]DType{
	"float32": Float32,
	"float64": Float64,
	"float":   Float64,
	"double":  Float64,
	"int8":    Int8,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"int":     Int64,
	"uint8":   Uint8,
	"uint16":  Uint16,
	"uint32":  Uint32,
	"uint64":  Uint64,
	"uint":    Uint64,
	"bool":    Bool,
	"str":     String,
	"string":  String,
	"bytes":   String,
}

// Name 返回 dtype 的规范名称 (numpy 风格)
func (d DType) Name() string {
	switch d.Kind {
	case KindFloat:
		return fmt.Sprintf("float%d", d.Size*8)
	case KindInt:
		return fmt.Sprintf("int%d", d.Size*8)
	case KindUint:
		return fmt.Sprintf("uint%d", d.Size*8)
	case KindBool:
		return "bool"
	case KindString:
		if d.Size == 0 {
			return "str"
		}
		return fmt.Sprintf("S%d", d.Size)
	}
	return fmt.Sprintf("unknown(%c%d)", d.Kind, d.Size)
}

func (d DType) String() string { return d.Name() }

// Format 返回 "<endianness><type-code><byte-width>" 格式串，例如 "<f4"
func (d DType) Format(order binary.ByteOrder) string {
	return fmt.Sprintf("%c%c%d", orderChar(order), d.Kind, d.Size)
}

// Compatible 判断 d 的数据能否不经转换写入 stored
// 定长字符串只接受不超过存储宽度的数据
func (d DType) Compatible(stored DType) bool {
	if d.Kind != stored.Kind {
		return false
	}
	if d.Kind == KindString {
		return stored.Size == 0 || d.Size <= stored.Size
	}
	return d.Size == stored.Size
}

func (d DType) valid() bool {
	switch d.Kind {
	case KindFloat:
		return d.Size == 4 || d.Size == 8
	case KindInt, KindUint:
		return d.Size == 1 || d.Size == 2 || d.Size == 4 || d.Size == 8
	case KindBool:
		return d.Size == 1
	case KindString:
		return d.Size >= 0
	}
	return false
}

// ParseDType 解析 numpy 风格的 dtype 名称或格式串
// 支持: "float32", "int", "str", "S12", "<f4", "|b1"
func ParseDType(s string) (DType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DType{}, ErrMissingDtype
	}
	if d, ok := dtypeNames[name]; ok {
		return d, nil
	}
	if d, _, err := ParseFormat(s); err == nil {
		return d, nil
	}
	return DType{}, fmt.Errorf("%q: %w", s, ErrUnknownDtype)
}

// ParseFormat 解析格式串，返回 dtype 与字节序
// 没有字节序前缀 (或 "|", "=") 时使用本机字节序
func ParseFormat(s string) (DType, binary.ByteOrder, error) {
	s = strings.TrimSpace(s)
	order := NativeOrder()
	if s != "" {
		switch s[0] {
		case '<':
			order, s = binary.LittleEndian, s[1:]
		case '>':
			order, s = binary.BigEndian, s[1:]
		case '|', '=':
			s = s[1:]
		}
	}
	if len(s) < 2 {
		return DType{}, nil, fmt.Errorf("format %q: %w", s, ErrUnknownDtype)
	}

	kind := Kind(s[0])
	if kind == '?' {
		kind = KindBool
	}
	size, err := strconv.Atoi(s[1:])
	if err != nil {
		return DType{}, nil, fmt.Errorf("format %q: %w", s, ErrUnknownDtype)
	}
	d := DType{Kind: kind, Size: size}
	if !d.valid() {
		return DType{}, nil, fmt.Errorf("format %q: %w", s, ErrUnknownDtype)
	}
	return d, order, nil
}

// NativeOrder 返回本机字节序
func NativeOrder() binary.ByteOrder {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	if buf[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// OrderName 返回字节序属性值 ("little" / "big")
func OrderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}

// ParseOrder 解析字节序属性值，空字符串表示本机字节序
func ParseOrder(name string) (binary.ByteOrder, error) {
	switch name {
	case "little", "<":
		return binary.LittleEndian, nil
	case "big", ">":
		return binary.BigEndian, nil
	case "", "native", "=":
		return NativeOrder(), nil
	}
	return nil, fmt.Errorf("unknown byte order %q", name)
}

func orderChar(order binary.ByteOrder) byte {
	if order == binary.BigEndian {
		return '>'
	}
	return '<'
}

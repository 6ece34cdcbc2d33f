package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Template 是文本格式的元素模板
// 四种模板在字段创建时按 dtype 种类解析一次，之后的读写都直接查表。
type Template int

const (
	TemplateString Template = iota
	TemplateFloat
	TemplateSigned
	TemplateUnsigned
)

type template struct {
	verb   string
	format func(buf []byte, a *Array, i int) []byte
	parse  func(tok string, a *Array, i int) error
}

var templates = [...]template{
	TemplateString:   {"%s", formatString, parseString},
	TemplateFloat:    {"%g", formatFloat, parseFloat},
	TemplateSigned:   {"%d", formatSigned, parseSigned},
	TemplateUnsigned: {"%d", formatUnsigned, parseUnsigned},
}

// TemplateFor 返回 dtype 种类对应的模板，bool 使用有符号整数模板
func TemplateFor(k Kind) Template {
	switch k {
	case KindString:
		return TemplateString
	case KindFloat:
		return TemplateFloat
	case KindUint:
		return TemplateUnsigned
	}
	return TemplateSigned
}

// Verb 返回模板的 printf 风格动词
func (t Template) Verb() string { return templates[t].verb }

func formatString(buf []byte, a *Array, i int) []byte {
	return append(buf, a.data.([]string)[i]...)
}

func parseString(tok string, a *Array, i int) error {
	a.data.([]string)[i] = tok
	return nil
}

// 浮点数使用最短可往返表示，重新读取后与写入值相等
func formatFloat(buf []byte, a *Array, i int) []byte {
	bits := 64
	if a.DType.Size == 4 {
		bits = 32
	}
	return strconv.AppendFloat(buf, a.data.([]float64)[i], 'g', -1, bits)
}

func parseFloat(tok string, a *Array, i int) error {
	bits := 64
	if a.DType.Size == 4 {
		bits = 32
	}
	f, err := strconv.ParseFloat(tok, bits)
	if err != nil {
		return fmt.Errorf("invalid float %q: %w", tok, err)
	}
	a.data.([]float64)[i] = f
	return nil
}

func formatSigned(buf []byte, a *Array, i int) []byte {
	switch d := a.data.(type) {
	case []bool:
		return strconv.AppendInt(buf, boolInt(d[i]), 10)
	case []int64:
		return strconv.AppendInt(buf, d[i], 10)
	}
	return buf
}

func parseSigned(tok string, a *Array, i int) error {
	switch d := a.data.(type) {
	case []bool:
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			d[i] = n != 0
			return nil
		}
		b, err := strconv.ParseBool(tok)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", tok, err)
		}
		d[i] = b
	case []int64:
		n, err := strconv.ParseInt(tok, 10, a.DType.Size*8)
		if err != nil {
			return fmt.Errorf("invalid int %q: %w", tok, err)
		}
		d[i] = n
	}
	return nil
}

func formatUnsigned(buf []byte, a *Array, i int) []byte {
	return strconv.AppendUint(buf, a.data.([]uint64)[i], 10)
}

func parseUnsigned(tok string, a *Array, i int) error {
	n, err := strconv.ParseUint(tok, 10, a.DType.Size*8)
	if err != nil {
		return fmt.Errorf("invalid uint %q: %w", tok, err)
	}
	a.data.([]uint64)[i] = n
	return nil
}

// tokenize 把文本负载切成元素
// 字符串按制表符切分以保留空串与空格，数值按任意空白切分
func tokenize(content string, kind Kind) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	var tokens []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if kind == KindString {
			tokens = append(tokens, strings.Split(line, "\t")...)
			continue
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	return tokens
}

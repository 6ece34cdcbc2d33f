package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDType(t *testing.T) {
	tests := []struct {
		in      string
		want    DType
		wantErr bool
	}{
		{"float32", Float32, false},
		{"float", Float64, false},
		{"int", Int64, false},
		{"uint16", Uint16, false},
		{"bool", Bool, false},
		{"str", String, false},
		{"<f4", Float32, false},
		{">i2", Int16, false},
		{"|S12", DType{KindString, 12}, false},
		{"S3", DType{KindString, 3}, false},
		{"complex128", DType{}, true},
		{"<f3", DType{}, true},
		{"", DType{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "<f4", Float32.Format(binary.LittleEndian))
	assert.Equal(t, ">i8", Int64.Format(binary.BigEndian))
	assert.Equal(t, "<S5", DType{KindString, 5}.Format(binary.LittleEndian))

	dt, order, err := ParseFormat(">u4")
	require.NoError(t, err)
	assert.Equal(t, Uint32, dt)
	assert.Equal(t, "big", OrderName(order))

	// 格式串可以往返
	s := Int16.Format(binary.BigEndian)
	dt, order, err = ParseFormat(s)
	require.NoError(t, err)
	assert.Equal(t, s, dt.Format(order))
}

func roundTrip(t *testing.T, c *Codec, a *Array) *Array {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, a))
	out, err := c.Decode(&buf, a.Shape)
	require.NoError(t, err)
	return out
}

func TestCodec_TextRoundTrip(t *testing.T) {
	floats, err := FromSlice([]float64{0.1, 1e-12, -3.5, 1234567.891, 2, 0}, 2, 3)
	require.NoError(t, err)
	ints, err := FromSlice([]int32{-7, 0, 42, 2147483647})
	require.NoError(t, err)
	uints, err := FromSlice([]uint64{0, 18446744073709551615})
	require.NoError(t, err)
	bools, err := FromSlice([]bool{true, false, true})
	require.NoError(t, err)
	strs, err := FromSlice([]string{"alpha", "", "with space"})
	require.NoError(t, err)
	f32, err := FromSlice([]float32{0.1, 3.25})
	require.NoError(t, err)

	for name, a := range map[string]*Array{
		"float64": floats, "int32": ints, "uint64": uints,
		"bool": bools, "string": strs, "float32": f32,
	} {
		t.Run(name, func(t *testing.T) {
			c := NewCodec(a.DType, Text, nil)
			got := roundTrip(t, c, a)
			assert.True(t, a.Equal(got), "want %v, got %v", a, got)
		})
	}
}

func TestCodec_TextLayout(t *testing.T) {
	a, err := FromSlice([]int64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewCodec(Int64, Text, nil).Encode(&buf, a))
	assert.Equal(t, "1\t2\t3\n4\t5\t6\n", buf.String())

	// 布尔值使用整数模板
	b, err := FromSlice([]bool{true, false})
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, NewCodec(Bool, Text, nil).Encode(&buf, b))
	assert.Equal(t, "1\n0\n", buf.String())
}

func TestCodec_SingleEmptyString(t *testing.T) {
	c := NewCodec(String, Text, nil)

	// 单字节换行符是单个空字符串
	a, err := c.Decode(bytes.NewReader([]byte("\n")), []int{1})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, a.Data())

	// 空负载是零个元素
	a, err = c.Decode(bytes.NewReader(nil), []int{0})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Len())

	var buf bytes.Buffer
	empty, err := FromSlice([]string{""})
	require.NoError(t, err)
	require.NoError(t, c.Encode(&buf, empty))
	assert.Equal(t, "\n", buf.String())
}

func TestCodec_TextRejectsSeparators(t *testing.T) {
	c := NewCodec(String, Text, nil)

	for name, vals := range map[string][]string{
		"tab":      {"a\tb", "c"},
		"newline":  {"line1\nline2"},
		"carriage": {"ends\r"},
	} {
		t.Run(name, func(t *testing.T) {
			a, err := FromSlice(vals)
			require.NoError(t, err)

			var buf bytes.Buffer
			err = c.Encode(&buf, a)
			assert.ErrorIs(t, err, ErrTextValue)
			assert.Zero(t, buf.Len(), "拒绝时不写入任何字节")
		})
	}

	// 二进制负载没有分隔符，原样往返
	a, err := FromSlice([]string{"a\tb", "x\ny"})
	require.NoError(t, err)
	got := roundTrip(t, NewCodec(a.DType, Binary, nil), a)
	assert.Equal(t, []string{"a\tb", "x\ny"}, got.Data())

	// 首尾空格与空串依然保留
	spaced, err := FromSlice([]string{" lead", "", "trail "})
	require.NoError(t, err)
	got = roundTrip(t, c, spaced)
	assert.Equal(t, []string{" lead", "", "trail "}, got.Data())
}

func TestCodec_EmptyBinaryString(t *testing.T) {
	// 从未写入的定长字符串没有宽度，空负载仍是零个元素
	c := NewCodec(String, Binary, nil)
	a, err := c.Decode(bytes.NewReader(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, a.Shape)
	assert.Equal(t, 0, a.Len())

	_, err = c.Decode(bytes.NewReader([]byte("abc")), nil)
	assert.ErrorIs(t, err, ErrUnknownDtype)
}

func TestCodec_BinaryRoundTrip(t *testing.T) {
	a, err := FromSlice([]int16{-2, 1, 300, -32768}, 2, 2)
	require.NoError(t, err)

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(OrderName(order), func(t *testing.T) {
			c := NewCodec(Int16, Binary, order)
			got := roundTrip(t, c, a)
			assert.True(t, a.Equal(got))
		})
	}

	// 大端字节序的实际布局
	var buf bytes.Buffer
	one, err := FromSlice([]int16{1})
	require.NoError(t, err)
	require.NoError(t, NewCodec(Int16, Binary, binary.BigEndian).Encode(&buf, one))
	assert.Equal(t, []byte{0x00, 0x01}, buf.Bytes())
}

func TestCodec_BinaryStrings(t *testing.T) {
	a, err := FromSlice([]string{"ab", "abcd"})
	require.NoError(t, err)
	require.Equal(t, 4, a.DType.Size)

	c := NewCodec(a.DType, Binary, nil)
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, a))
	assert.Equal(t, 8, buf.Len())

	got, err := c.Decode(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "abcd"}, got.Data())
}

func TestCodec_CorruptedPayload(t *testing.T) {
	c := NewCodec(Float64, Text, nil)
	_, err := c.Decode(bytes.NewReader([]byte("1\t2\n")), []int{3})
	assert.Error(t, err)

	bc := NewCodec(Int32, Binary, nil)
	_, err = bc.Decode(bytes.NewReader([]byte{1, 2, 3}), nil)
	assert.Error(t, err)
}

func TestAsType(t *testing.T) {
	a, err := FromSlice([]float64{1.9, -1.9, 300})
	require.NoError(t, err)

	i8, err := a.AsType(Int8)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, -1, 44}, i8.Data(), "整数按目标宽度回绕")

	s, err := a.AsType(DType{KindString, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.", "-1", "30"}, s.Data())

	back, err := s.AsType(Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1, 30}, back.Data())

	_, err = FromSlice([]int{1, 2, 3}, 2, 2)
	assert.Error(t, err)
}

func TestRowAndConcat(t *testing.T) {
	a, err := FromSlice([]int64{1, 2, 3, 4, 5, 6}, 3, 2)
	require.NoError(t, err)

	row, err := a.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, row.Shape)
	assert.Equal(t, []int64{3, 4}, row.Data())

	b, err := FromSlice([]int64{7, 8}, 1, 2)
	require.NoError(t, err)
	c, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, c.Shape)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, c.Data())

	_, err = a.Row(3)
	assert.Error(t, err)
}

func TestSetRow(t *testing.T) {
	a, err := FromSlice([]int64{1, 2, 3, 4, 5, 6}, 3, 2)
	require.NoError(t, err)

	row, err := FromSlice([]int64{9, 9})
	require.NoError(t, err)
	require.NoError(t, a.SetRow(1, row))
	assert.Equal(t, []int64{1, 2, 9, 9, 5, 6}, a.Data())

	short, err := FromSlice([]int64{7})
	require.NoError(t, err)
	assert.ErrorIs(t, a.SetRow(0, short), ErrInvalidShape)
	assert.Error(t, a.SetRow(3, row))

	f, err := FromSlice([]float64{1, 2})
	require.NoError(t, err)
	assert.ErrorIs(t, a.SetRow(0, f), ErrDtypeMismatch)

	// 一维数组的行是标量，字符串宽度随之增长
	s, err := FromSlice([]string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, s.SetRow(0, Scalar("wide")))
	assert.Equal(t, []string{"wide", "b"}, s.Data())
	assert.Equal(t, 4, s.DType.Size)
}

func TestPrepareAppend(t *testing.T) {
	stored := []int{3, 4}

	t.Run("append row", func(t *testing.T) {
		chunk, err := FromSlice([]float64{1, 2, 3, 4})
		require.NoError(t, err)
		out, next, err := PrepareAppend(stored, Float64, chunk, false, true)
		require.NoError(t, err)
		assert.Equal(t, []int{4, 4}, next)
		assert.Equal(t, []int{1, 4}, out.Shape)
	})

	t.Run("wrong trailing shape", func(t *testing.T) {
		chunk, err := FromSlice([]float64{1, 2, 3, 4, 5})
		require.NoError(t, err)
		_, _, err = PrepareAppend(stored, Float64, chunk, false, true)
		assert.ErrorIs(t, err, ErrInvalidShape)
	})

	t.Run("extend", func(t *testing.T) {
		chunk, err := FromSlice(make([]float64, 8), 2, 4)
		require.NoError(t, err)
		_, next, err := PrepareAppend(stored, Float64, chunk, true, true)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 4}, next)
	})

	t.Run("extend with scalar", func(t *testing.T) {
		_, _, err := PrepareAppend([]int{3}, Float64, Scalar(1.0), true, true)
		assert.ErrorIs(t, err, ErrInvalidShape)
	})

	t.Run("dtype mismatch without coerce", func(t *testing.T) {
		chunk, err := FromSlice([]int32{1, 2, 3, 4})
		require.NoError(t, err)
		_, _, err = PrepareAppend(stored, Float64, chunk, false, false)
		assert.ErrorIs(t, err, ErrDtypeMismatch)
	})

	t.Run("dtype mismatch with coerce", func(t *testing.T) {
		chunk, err := FromSlice([]int32{1, 2, 3, 4})
		require.NoError(t, err)
		out, _, err := PrepareAppend(stored, Float64, chunk, false, true)
		require.NoError(t, err)
		assert.Equal(t, Float64, out.DType)
		assert.Equal(t, []float64{1, 2, 3, 4}, out.Data())
	})

	t.Run("first append decides layout", func(t *testing.T) {
		chunk, err := FromSlice([]int64{1, 2})
		require.NoError(t, err)
		_, next, err := PrepareAppend(nil, Int64, chunk, false, false)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, next)
	})

	t.Run("scalar onto vector", func(t *testing.T) {
		_, next, err := PrepareAppend([]int{3}, Int64, Scalar(int64(9)), false, false)
		require.NoError(t, err)
		assert.Equal(t, []int{4}, next)
	})
}

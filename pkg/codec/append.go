package codec

import "fmt"

// PrepareAppend 校验一个追加块并计算追加后的形状
//
// extend 为 false 时块是单个新行：块形状必须等于 stored[1:]，第一维加 1。
// extend 为 true 时块是多行：块形状[1:] 必须等于 stored[1:]，第一维加块形状[0]。
// stored 为 nil 表示字段从未写入，第一次追加决定布局。
//
// 返回的块已经重塑为 [行数, 尾部维度...]，可以直接交给 Codec.Encode。
func PrepareAppend(stored []int, dt DType, chunk *Array, extend, coerce bool) (*Array, []int, error) {
	var rows int
	var trailing []int
	if extend {
		if len(chunk.Shape) == 0 {
			return nil, nil, fmt.Errorf("%w: cannot extend with a scalar", ErrInvalidShape)
		}
		rows, trailing = chunk.Shape[0], chunk.Shape[1:]
	} else {
		rows, trailing = 1, chunk.Shape
	}

	var next []int
	if stored == nil {
		next = append([]int{rows}, trailing...)
	} else {
		if len(stored) == 0 || !equalInts(stored[1:], trailing) {
			return nil, nil, fmt.Errorf("%w: chunk shape %v does not fit stored shape %v", ErrInvalidShape, chunk.Shape, stored)
		}
		next = append([]int{stored[0] + rows}, stored[1:]...)
	}

	if !chunk.DType.Compatible(dt) {
		if !coerce {
			return nil, nil, fmt.Errorf("%w: stored %v, got %v", ErrDtypeMismatch, dt, chunk.DType)
		}
		converted, err := chunk.AsType(dt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to coerce %v to %v: %w", chunk.DType, dt, err)
		}
		chunk = converted
	}

	shaped, err := chunk.Reshape(append([]int{rows}, trailing...)...)
	if err != nil {
		return nil, nil, err
	}
	return shaped, next, nil
}

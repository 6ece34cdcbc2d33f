package attrs

// JSON 解码后的值只有 float64 / string / bool / []any / map[string]any，
// 下面的辅助函数把它们还原成调用方需要的 Go 类型。

// String 读取字符串属性
func String(m Map, key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool 读取布尔属性，缺失时为 false
func Bool(m Map, key string) bool {
	v, ok := m.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Ints 读取整数列表属性 (例如 shape)
func Ints(m Map, key string) ([]int, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	return ToInts(v)
}

// ToInts 将 JSON 列表转换为 []int
func ToInts(v any) ([]int, bool) {
	switch x := v.(type) {
	case []int:
		return append([]int(nil), x...), true
	case []any:
		out := make([]int, len(x))
		for i, e := range x {
			f, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out[i] = int(f)
		}
		return out, true
	default:
		return nil, false
	}
}

package exporter

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// 导出文档使用确定性编码，同一棵树总是得到相同的字节
var encOptions = cbor.EncOptions{
	// 1. Map Key 排序 (Canonical)
	Sort: cbor.SortCanonical,

	// 2. 浮点数保持 64 位
	ShortestFloat: cbor.ShortestFloatNone,

	// 3. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 4. 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 限制容器大小与嵌套深度
	MaxArrayElements: 1 << 24,
	MaxMapPairs:      10000,
	MaxNestedLevels:  256,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,

	// 属性里的嵌套映射解码为 map[string]any，与 JSON 属性保持一致
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
}

var dm, _ = decOptions.DecMode()

// DecodeDocument 解码 ExportCBOR 的输出
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := dm.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

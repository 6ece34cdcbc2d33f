package attrs

import (
	"fmt"
	"sort"

	"nexuszip/pkg/storage"
)

// Static 是链接节点使用的"写一次"属性视图
// own 中已经存在的键是静态的，无法覆盖或删除；新键写入 own 后同样变为静态。
// 读取时先查 own，再查 fallback (通常是目标字段的属性)。
type Static struct {
	own      *Store
	fallback Map
}

var _ Map = (*Static)(nil)

// NewStatic 创建静态视图，fallback 可以为 nil
func NewStatic(own *Store, fallback Map) *Static {
	return &Static{own: own, fallback: fallback}
}

// Own 返回链接自身的属性存储
func (s *Static) Own() *Store { return s.own }

func (s *Static) Get(key string) (any, bool) {
	if v, ok := s.own.Get(key); ok {
		return v, true
	}
	if s.fallback != nil {
		return s.fallback.Get(key)
	}
	return nil, false
}

func (s *Static) Set(key string, value any) error {
	return s.Update(map[string]any{key: value})
}

func (s *Static) Update(kv map[string]any) error {
	for k := range kv {
		if _, ok := s.own.Get(k); ok {
			return fmt.Errorf("attribute %q: %w", k, ErrStaticKey)
		}
	}
	return s.own.Update(kv)
}

func (s *Static) Delete(key string) error {
	if _, ok := s.own.Get(key); ok {
		return fmt.Errorf("attribute %q: %w", key, ErrStaticKey)
	}
	return fmt.Errorf("attribute %q: %w", key, storage.ErrNotFound)
}

func (s *Static) Keys() []string {
	seen := make(map[string]bool)
	for _, k := range s.own.Keys() {
		seen[k] = true
	}
	if s.fallback != nil {
		for _, k := range s.fallback.Keys() {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Static) All() map[string]any {
	out := make(map[string]any)
	if s.fallback != nil {
		for k, v := range s.fallback.All() {
			out[k] = v
		}
	}
	for k, v := range s.own.All() {
		out[k] = v
	}
	return out
}

func (s *Static) Len() int { return len(s.Keys()) }

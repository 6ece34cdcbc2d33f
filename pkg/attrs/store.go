package attrs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"nexuszip/pkg/storage"
)

var (
	// ErrStaticKey 试图改写链接哨兵中已经固定的属性
	ErrStaticKey = errors.New("static key: can't write")
	// ErrNotMapping 子视图所在的键不是一个 JSON 对象
	ErrNotMapping = errors.New("attribute value is not a mapping")
)

// TempSuffix 是原子提交时使用的临时文件后缀
// 崩溃后残留的 "*.next" 文件不会被打包进归档
const TempSuffix = ".next"

// Map 是节点属性的通用接口
// Store 与 Static 都实现了它
type Map interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Update(kv map[string]any) error
	Delete(key string) error
	Keys() []string
	All() map[string]any
	Len() int
}

// Store 是一个以单个 JSON 文件为后盾的属性映射
// 每次修改都会完整序列化到相邻的临时文件，然后 rename 到目标位置，
// 所以读者永远不会看到写了一半的属性文件。
type Store struct {
	backend storage.Backend
	path    string

	// 子视图共享根的缓存与后备文件
	root    *Store
	keyPath []string

	data     map[string]any // 仅根持有
	readOnly bool
}

var _ Map = (*Store)(nil)

// Open 绑定到 path 处的属性文件
// 文件存在时完整读入内存；不存在时立即写入一个空映射 (只读后端除外)
func Open(b storage.Backend, path string) (*Store, error) {
	s := &Store{
		backend:  b,
		path:     path,
		data:     make(map[string]any),
		readOnly: b.ReadOnly(),
	}
	s.root = s

	if b.Exists(path) {
		raw, err := storage.ReadAll(b, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attributes %s: %w", path, err)
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &s.data); err != nil {
				return nil, fmt.Errorf("corrupted attribute file %s: %w", path, err)
			}
		}
		return s, nil
	}

	if s.readOnly {
		return s, nil
	}
	if err := s.write(s.data); err != nil {
		return nil, err
	}
	return s, nil
}

// Path 返回后备文件路径
func (s *Store) Path() string { return s.root.path }

// ReadOnly 报告该映射是否拒绝修改
func (s *Store) ReadOnly() bool { return s.root.readOnly }

// write 执行原子提交：临时文件 -> rename
func (s *Store) write(data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	tmp := s.path + TempSuffix
	w, err := s.backend.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	// 必须先关闭才能 Rename
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := s.backend.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", s.path, err)
	}
	return nil
}

// mutate 在根缓存的副本上执行修改，提交成功后才替换缓存
// 提交失败时内存与磁盘都保持上一次提交的状态
func (s *Store) mutate(fn func(m map[string]any) error) error {
	root := s.root
	if root.readOnly {
		return fmt.Errorf("attributes %s: %w", root.path, storage.ErrReadOnly)
	}

	next := cloneMap(root.data)
	m, err := locate(next, s.keyPath)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	if err := root.write(next); err != nil {
		return err
	}
	root.data = next
	return nil
}

// view 返回当前视图对应的映射，不存在时为 nil
func (s *Store) view() map[string]any {
	m, err := locate(s.root.data, s.keyPath)
	if err != nil {
		return nil
	}
	return m
}

func (s *Store) Get(key string) (any, bool) {
	v, ok := s.view()[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

func (s *Store) Set(key string, value any) error {
	return s.Update(map[string]any{key: value})
}

// Update 一次提交写入多个键
func (s *Store) Update(kv map[string]any) error {
	normalized := make(map[string]any, len(kv))
	for k, v := range kv {
		nv, err := normalize(v)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
		normalized[k] = nv
	}
	return s.mutate(func(m map[string]any) error {
		for k, v := range normalized {
			m[k] = v
		}
		return nil
	})
}

func (s *Store) Delete(key string) error {
	if _, ok := s.view()[key]; !ok && !s.root.readOnly {
		return fmt.Errorf("attribute %q: %w", key, storage.ErrNotFound)
	}
	return s.mutate(func(m map[string]any) error {
		delete(m, key)
		return nil
	})
}

func (s *Store) Keys() []string {
	m := s.view()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) All() map[string]any {
	return cloneMap(s.view())
}

func (s *Store) Len() int { return len(s.view()) }

// Child 返回嵌套映射值的子视图
// 子视图的写入委托给根的后备文件，每个节点仍只有一个持久化单元。
// 键不存在时会创建一个空映射。
func (s *Store) Child(key string) (*Store, error) {
	v, ok := s.view()[key]
	switch {
	case !ok:
		if err := s.Set(key, map[string]any{}); err != nil {
			return nil, err
		}
	case !isMapping(v):
		return nil, fmt.Errorf("attribute %q: %w", key, ErrNotMapping)
	}

	keyPath := make([]string, len(s.keyPath), len(s.keyPath)+1)
	copy(keyPath, s.keyPath)
	return &Store{
		backend:  s.backend,
		path:     s.root.path,
		root:     s.root,
		keyPath:  append(keyPath, key),
		readOnly: s.root.readOnly,
	}, nil
}

func isMapping(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// locate 沿 keyPath 找到嵌套映射
func locate(m map[string]any, keyPath []string) (map[string]any, error) {
	for _, k := range keyPath {
		next, ok := m[k].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("attribute %q: %w", k, ErrNotMapping)
		}
		m = next
	}
	return m, nil
}

// normalize 让新写入的值与重新加载后的值保持同一种 Go 表示
// (数字 -> float64，切片 -> []any，结构体 -> map[string]any)
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

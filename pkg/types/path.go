// pkg/types/path.go
package types

import (
	"path"
	"strings"
)

// Root 是容器的根路径
const Root = "/"

// Clean 将节点路径规范化为以 "/" 开头的绝对路径
// Example: "entry//data/" -> "/entry/data"
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

// Join 解析相对于 base 的路径；p 为绝对路径时直接返回
func Join(base, p string) string {
	if strings.HasPrefix(p, "/") {
		return Clean(p)
	}
	return Clean(path.Join(base, p))
}

// Split 拆分出父路径与叶子名
// Example: "/entry/DAS_logs/counts" -> ("/entry/DAS_logs", "counts")
func Split(p string) (dir, name string) {
	p = Clean(p)
	if p == Root {
		return Root, ""
	}
	dir, name = path.Split(p)
	return Clean(dir), name
}

// Rel 返回不带前导 "/" 的路径，用于映射到工作目录或归档条目名
func Rel(p string) string {
	return strings.TrimPrefix(Clean(p), "/")
}

// IsRoot 判断是否为根路径
func IsRoot(p string) bool { return Clean(p) == Root }

package ignore

import (
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// IgnoreFile 是工作目录根下的用户忽略规则文件名
const IgnoreFile = ".nxzignore"

// Matcher 判断工作目录中的哪些文件不进入归档
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// JunkNames 是操作系统留下的垃圾文件名，它们不能用作节点名
var JunkNames = []string{
	".DS_Store", // macOS
	"Thumbs.db", // Windows
}

// DefaultRules 是强制生效的忽略规则
var DefaultRules = append([]string{
	// 原子提交崩溃后残留的临时文件
	"*.next",
}, JunkNames...)

// NewMatcher 初始化忽略匹配器
// root 下存在 .nxzignore 时与默认规则合并编译，extra 追加在最后
func NewMatcher(fs afero.Fs, root string, extra ...string) (*Matcher, error) {
	rules := append([]string{}, DefaultRules...)

	raw, err := afero.ReadFile(fs, path.Join(root, IgnoreFile))
	switch {
	case err == nil:
		rules = append(rules, strings.Split(string(raw), "\n")...)
	case !isNotExist(fs, root):
		return nil, err
	}
	rules = append(rules, extra...)

	return &Matcher{ignorer: gitignore.CompileIgnoreLines(rules...)}, nil
}

// isNotExist 报告忽略文件是否只是不存在
func isNotExist(fs afero.Fs, root string) bool {
	ok, _ := afero.Exists(fs, path.Join(root, IgnoreFile))
	return !ok
}

// Matches 检查相对于工作目录根的路径是否应该被忽略
func (m *Matcher) Matches(p string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(strings.TrimPrefix(p, "/"))
}

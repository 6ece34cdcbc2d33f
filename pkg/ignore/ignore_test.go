package ignore

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	// 1. 没有 .nxzignore 的工作目录
	tmpDir := t.TempDir()

	matcher, err := NewMatcher(afero.NewOsFs(), tmpDir)
	require.NoError(t, err)

	// 2. 验证默认规则
	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".attrs.next", true},
		{"entry/data.attrs.next", true}, // 子目录中的临时文件
		{".DS_Store", true},
		{"entry/Thumbs.db", true},
		{".attrs", false},
		{"entry/data", false},
		{"entry/data.attrs", false},
		{"entry/alias.link", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_WithUserFile(t *testing.T) {
	// 1. 在内存文件系统中写入 .nxzignore
	fs := afero.NewMemMapFs()
	ignoreContent := `
# 注释
*.log
scratch
!keep.log
`
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/work", IgnoreFile), []byte(ignoreContent), 0644))

	matcher, err := NewMatcher(fs, "/work", "*.tmp")
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		// 默认规则依然生效
		{"entry.attrs.next", true},

		// 用户规则
		{"run.log", true},
		{"entry/debug.log", true},
		{"scratch", true},
		{"scratch/notes", true},

		// 额外规则
		{"buffer.tmp", true},

		// 负向规则
		{"keep.log", false},

		{"/entry/data", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Matches("anything"))
}

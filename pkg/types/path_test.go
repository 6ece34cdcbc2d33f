package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Root", "/", "/"},
		{"Empty", "", "/"},
		{"Relative", "entry/data", "/entry/data"},
		{"Trailing slash", "/entry/", "/entry"},
		{"Double slash", "/entry//data", "/entry/data"},
		{"Dot segments", "/entry/./a/../data", "/entry/data"},
		{"Backslash", "entry\\data", "/entry/data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/entry/DAS_logs/counts", Join("/entry/DAS_logs", "counts"))
	assert.Equal(t, "/other", Join("/entry/DAS_logs", "/other"))
	assert.Equal(t, "/entry", Join("/entry/DAS_logs", ".."))
}

func TestSplit(t *testing.T) {
	dir, name := Split("/entry/DAS_logs/counts")
	assert.Equal(t, "/entry/DAS_logs", dir)
	assert.Equal(t, "counts", name)

	dir, name = Split("/entry")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "entry", name)

	dir, name = Split("/")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "", name)
}

func TestRel(t *testing.T) {
	assert.Equal(t, "", Rel("/"))
	assert.Equal(t, "entry/data", Rel("/entry/data"))
	assert.True(t, IsRoot(""))
	assert.False(t, IsRoot("/entry"))
}

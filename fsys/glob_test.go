package fsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitGlobBase(t *testing.T) {
	tests := []struct {
		pattern, base, rest string
	}{
		{"src/**/*.go", "src", "**/*.go"},
		{"*.txt", "", "*.txt"},
		{"a/b/c.txt", "a/b/c.txt", ""},
		{"a/*/b", "a", "*/b"},
	}
	for _, tt := range tests {
		base, rest := splitGlobBase(tt.pattern)
		assert.Equal(t, tt.base, base, tt.pattern)
		assert.Equal(t, tt.rest, rest, tt.pattern)
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "sub/main.go", false},
		{"**/*.go", "main.go", true},
		{"**/*.go", "a/b/c.go", true},
		{"a/**/z.txt", "a/z.txt", true},
		{"a/**/z.txt", "a/b/c/z.txt", true},
		{"a/**/z.txt", "b/z.txt", false},
		{"a/?.go", "a/x.go", true},
		{"a/?.go", "a/xy.go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchGlob(tt.pattern, tt.name), "%s vs %s", tt.pattern, tt.name)
	}
}

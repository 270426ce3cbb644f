package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{"single chunk", "a\nb", 5, []string{"a\nb"}},
		{"exact groups", "a\nb\nc\nd", 2, []string{"a\nb", "c\nd"}},
		{"remainder", "a\nb\nc", 2, []string{"a\nb", "c"}},
		{"trailing newline dropped", "a\nb\n", 2, []string{"a\nb"}},
		{"blank lines kept inside chunk", "a\n\nb", 3, []string{"a\n\nb"}},
		{"non-positive size", "a\nb", 0, []string{"a", "b"}},
		{"empty", "", 3, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines(tt.text, tt.n))
		})
	}
}

func TestSplitLinesPreservesContent(t *testing.T) {
	text := "# T\n|a|b|\n\npara\n## S\nlast"
	assert.Equal(t, text, strings.Join(SplitLines(text, 2), "\n"))
}

package utils

import "strings"

// SplitLines groups the lines of text into chunks of at most linesPerChunk
// lines, joined back with "\n". Chunks that are entirely empty are dropped.
func SplitLines(text string, linesPerChunk int) []string {
	if linesPerChunk <= 0 {
		linesPerChunk = 1
	}

	lines := strings.Split(text, "\n")
	chunks := make([]string, 0, len(lines)/linesPerChunk+1)
	for start := 0; start < len(lines); start += linesPerChunk {
		end := start + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}
		if chunk := strings.Join(lines[start:end], "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

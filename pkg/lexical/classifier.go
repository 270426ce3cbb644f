package lexical

import (
	"strings"

	"doc-assembler-be/internal/entity"
)

// Classify maps one raw line of lightweight markup to a block. The boolean
// is false when the line carries no content and must be skipped.
//
// Rules are checked in order: blank, "###", "##", "#", "|" table row,
// paragraph. Marker checks run against the raw line, so indented markers
// are plain paragraphs.
func Classify(line string) (entity.Block, bool) {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return nil, false
	}

	switch {
	case strings.HasPrefix(line, "###"):
		return entity.Heading{Level: 3, Text: headingText(line, "###")}, true
	case strings.HasPrefix(line, "##"):
		return entity.Heading{Level: 2, Text: headingText(line, "##")}, true
	case strings.HasPrefix(line, "#"):
		return entity.Heading{Level: 1, Text: headingText(line, "#")}, true
	case strings.HasPrefix(line, "|"):
		cells := tableCells(line)
		if len(cells) == 0 {
			return nil, false
		}
		return entity.TableRow{Cells: cells}, true
	}

	return entity.Paragraph{Text: stripped}, true
}

// ClassifyContent splits a chunk on newlines and classifies every line,
// dropping skipped lines. Reading order is preserved.
func ClassifyContent(content string) []entity.Block {
	lines := strings.Split(content, "\n")
	blocks := make([]entity.Block, 0, len(lines))
	for _, line := range lines {
		if b, ok := Classify(line); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func headingText(line, marker string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, marker))
}

// tableCells splits on "|" and keeps the non-empty trimmed segments.
// Separator rows such as "|---|---|" are kept as dash cells.
func tableCells(line string) []string {
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if cell := strings.TrimSpace(p); cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

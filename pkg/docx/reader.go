package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"doc-assembler-be/internal/entity"
)

// ReadFile extracts the structural blocks of a .docx file on disk.
func ReadFile(path string) ([]entity.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Read(data)
}

// Read extracts headings, table rows and paragraphs from word/document.xml
// in reading order. Every table row becomes its own TableRow block.
func Read(data []byte) ([]entity.Block, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}

	part, err := readPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}
	return parseBody(part)
}

// ReadPart returns the raw bytes of a named part inside a .docx package.
func ReadPart(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	return readPart(zr, name)
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("part %s not found", name)
}

func parseBody(part []byte) ([]entity.Block, error) {
	dec := xml.NewDecoder(bytes.NewReader(part))

	var (
		blocks  []entity.Block
		style   string
		text    strings.Builder
		inText  bool
		inTable int
		row     []string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return blocks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				style = ""
				text.Reset()
			case "pStyle":
				style = attr(t, "val")
			case "t":
				inText = true
			case "tbl":
				inTable++
			case "tr":
				row = nil
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inTable > 0 {
					row = append(row, text.String())
					continue
				}
				blocks = append(blocks, paragraphBlock(style, text.String()))
			case "tr":
				blocks = append(blocks, entity.TableRow{Cells: row})
			case "tbl":
				inTable--
			}
		}
	}
}

func paragraphBlock(style, text string) entity.Block {
	if rest, ok := strings.CutPrefix(style, "Heading"); ok {
		if level, err := strconv.Atoi(rest); err == nil && level >= 1 && level <= 3 {
			return entity.Heading{Level: level, Text: text}
		}
	}
	return entity.Paragraph{Text: text}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

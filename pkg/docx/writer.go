// Package docx renders a document model into a WordprocessingML (.docx)
// package and reads the structural blocks back out of one.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"doc-assembler-be/internal/entity"
)

const MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	defaultFontName = "宋体"
	defaultFontSize = 10.5
	tableStyleID    = "TableGrid"
)

type Options struct {
	FontName   string  // applied to ascii, hAnsi and eastAsia runs
	FontSizePt float64 // document default, in points
}

// Writer serializes documents. It is stateless and safe for concurrent use.
type Writer struct {
	opts Options
}

func NewWriter(opts Options) *Writer {
	if opts.FontName == "" {
		opts.FontName = defaultFontName
	}
	if opts.FontSizePt <= 0 {
		opts.FontSizePt = defaultFontSize
	}
	return &Writer{opts: opts}
}

// Serialize renders the full document into .docx bytes.
func (w *Writer) Serialize(doc *entity.Document) ([]byte, error) {
	body, err := renderBody(doc.Blocks)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", w.stylesXML()},
		{"word/document.xml", body},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", p.name, err)
		}
		if _, err := f.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("write part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close package: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile serializes doc into dir/doc.Filename, creating dir when absent.
// The file is replaced atomically so a reader never sees a torn package.
func (w *Writer) WriteFile(dir string, doc *entity.Document) (string, error) {
	data, err := w.Serialize(doc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, doc.Filename)
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replace %s: %w", path, err)
	}
	return path, nil
}

func renderBody(blocks []entity.Block) (string, error) {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:document xmlns:w="` + nsW + `"><w:body>`)

	for _, b := range blocks {
		switch v := b.(type) {
		case entity.Heading:
			sb.WriteString(`<w:p><w:pPr><w:pStyle w:val="Heading`)
			fmt.Fprintf(&sb, "%d", v.Level)
			sb.WriteString(`"/></w:pPr>`)
			writeRun(&sb, v.Text)
			sb.WriteString(`</w:p>`)
		case entity.Paragraph:
			sb.WriteString(`<w:p>`)
			writeRun(&sb, v.Text)
			sb.WriteString(`</w:p>`)
		case entity.TableRow:
			writeTable(&sb, v.Cells)
		default:
			return "", fmt.Errorf("unsupported block type %T", b)
		}
	}

	sb.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>`)
	sb.WriteString(`<w:pgMar w:top="1440" w:right="1800" w:bottom="1440" w:left="1800" w:header="851" w:footer="992" w:gutter="0"/>`)
	sb.WriteString(`</w:sectPr></w:body></w:document>`)
	return sb.String(), nil
}

// writeTable emits a new single-row table, one grid column per cell.
func writeTable(sb *strings.Builder, cells []string) {
	sb.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="` + tableStyleID + `"/><w:tblW w:w="0" w:type="auto"/></w:tblPr><w:tblGrid>`)
	for range cells {
		sb.WriteString(`<w:gridCol/>`)
	}
	sb.WriteString(`</w:tblGrid><w:tr>`)
	for _, cell := range cells {
		sb.WriteString(`<w:tc><w:tcPr><w:tcW w:w="0" w:type="auto"/></w:tcPr><w:p>`)
		writeRun(sb, cell)
		sb.WriteString(`</w:p></w:tc>`)
	}
	sb.WriteString(`</w:tr></w:tbl>`)
}

func writeRun(sb *strings.Builder, text string) {
	sb.WriteString(`<w:r><w:t xml:space="preserve">`)
	// EscapeText only fails on write errors; strings.Builder never returns one.
	_ = xml.EscapeText(sb, []byte(text))
	sb.WriteString(`</w:t></w:r>`)
}

func (w *Writer) stylesXML() string {
	var font bytes.Buffer
	_ = xml.EscapeText(&font, []byte(w.opts.FontName))
	halfPoints := int(math.Round(w.opts.FontSizePt * 2))

	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:styles xmlns:w="` + nsW + `">`)
	fmt.Fprintf(&sb, `<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="%[1]s" w:hAnsi="%[1]s" w:eastAsia="%[1]s" w:cs="%[1]s"/><w:sz w:val="%[2]d"/><w:szCs w:val="%[2]d"/></w:rPr></w:rPrDefault><w:pPrDefault/></w:docDefaults>`,
		font.String(), halfPoints)
	sb.WriteString(`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>`)

	for level, size := range []int{32, 28, 24} {
		fmt.Fprintf(&sb, `<w:style w:type="paragraph" w:styleId="Heading%[1]d"><w:name w:val="heading %[1]d"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/><w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="%[2]d"/></w:pPr><w:rPr><w:b/><w:sz w:val="%[3]d"/><w:szCs w:val="%[3]d"/></w:rPr></w:style>`,
			level+1, level, size)
	}

	sb.WriteString(`<w:style w:type="table" w:default="1" w:styleId="TableNormal"><w:name w:val="Normal Table"/><w:tblPr><w:tblInd w:w="0" w:type="dxa"/><w:tblCellMar><w:top w:w="0" w:type="dxa"/><w:left w:w="108" w:type="dxa"/><w:bottom w:w="0" w:type="dxa"/><w:right w:w="108" w:type="dxa"/></w:tblCellMar></w:tblPr></w:style>`)
	sb.WriteString(`<w:style w:type="table" w:styleId="` + tableStyleID + `"><w:name w:val="Table Grid"/><w:basedOn w:val="TableNormal"/><w:tblPr><w:tblBorders>`)
	for _, edge := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		sb.WriteString(`<w:` + edge + ` w:val="single" w:sz="4" w:space="0" w:color="auto"/>`)
	}
	sb.WriteString(`</w:tblBorders></w:tblPr></w:style></w:styles>`)
	return sb.String()
}

const nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

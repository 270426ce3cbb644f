package entity

import "time"

// Block is one classified structural unit of a document. The set of
// implementations is closed: Heading, TableRow and Paragraph.
type Block interface {
	block()
}

type Heading struct {
	Level int // 1..3
	Text  string
}

type TableRow struct {
	Cells []string
}

type Paragraph struct {
	Text string
}

func (Heading) block()   {}
func (TableRow) block()  {}
func (Paragraph) block() {}

// Document is the in-progress model of one session. Filename is fixed at
// creation and Blocks only ever grow until the document is finalized.
type Document struct {
	Filename  string
	Blocks    []Block
	CreatedAt time.Time
}

// Snapshot returns a copy of the document whose block slice is not shared
// with the receiver, so it can be serialized outside the session lock.
func (d *Document) Snapshot() *Document {
	blocks := make([]Block, len(d.Blocks))
	copy(blocks, d.Blocks)
	return &Document{
		Filename:  d.Filename,
		Blocks:    blocks,
		CreatedAt: d.CreatedAt,
	}
}

type SessionState string

const (
	SessionStateEmpty    SessionState = "EMPTY"
	SessionStateBuilding SessionState = "BUILDING"
)

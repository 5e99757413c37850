// Package engine implements the spatial document reconstruction core:
// it extracts positioned content items from spreadsheet, slide, flow and
// fixed-page documents, deduplicates embedded assets, attaches hyperlinks
// geometrically, establishes a single reading order per container, and
// serializes everything into one Markdown document with inline images.
//
// Asset deduplication uses xxhash64, a fast non-cryptographic hash. A hash
// collision between two distinct images would wrongly drop the second one;
// that risk is accepted for visual duplicate detection within one document.
package engine

// Kind identifies what a content item carries.
type Kind int

const (
	KindText Kind = iota
	KindTable
	KindImage
	KindChart
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTable:
		return "table"
	case KindImage:
		return "image"
	case KindChart:
		return "chart"
	default:
		return "unknown"
	}
}

type anchorKind int

const (
	anchorNone anchorKind = iota // reserved: sorts after every positioned anchor
	anchorRowCol
	anchorOffset
	anchorSequence
)

// Anchor is the normalized position of a content item inside its container.
// The zero value is the reserved "unpositioned" anchor, which orders after
// every positioned anchor. Extractors commit to one positioned kind per
// document family, so Less never has to compare mixed kinds in practice.
type Anchor struct {
	kind anchorKind
	row  int // 1-based
	col  int // 1-based, 0 when the item spans the whole row
	y    float64
	seq  int
}

// RowColAnchor returns a spreadsheet-style anchor. Row is 1-based; col 0
// marks a whole-row item and orders before any cell-anchored item in the
// same row.
func RowColAnchor(row, col int) Anchor {
	return Anchor{kind: anchorRowCol, row: row, col: col}
}

// OffsetAnchor returns a top-to-bottom page/slide coordinate anchor;
// smaller y means earlier in reading order.
func OffsetAnchor(y float64) Anchor {
	return Anchor{kind: anchorOffset, y: y}
}

// SeqAnchor returns an element-order anchor for flow documents.
func SeqAnchor(index int) Anchor {
	return Anchor{kind: anchorSequence, seq: index}
}

// Positioned reports whether the anchor carries a native position.
func (a Anchor) Positioned() bool { return a.kind != anchorNone }

// Less orders anchors within one container. Unpositioned anchors are never
// less than anything, so a stable sort leaves them trailing in extraction
// order. Mixed positioned kinds fall back to kind order to keep the relation
// total.
func (a Anchor) Less(b Anchor) bool {
	if a.kind == anchorNone {
		return false
	}
	if b.kind == anchorNone {
		return true
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	switch a.kind {
	case anchorRowCol:
		if a.row != b.row {
			return a.row < b.row
		}
		return a.col < b.col
	case anchorOffset:
		return a.y < b.y
	default:
		return a.seq < b.seq
	}
}

// Rect is an axis-aligned rectangle in the coordinate space of one page or
// slide. X0,Y0 is one corner and X1,Y1 the opposite one; constructors keep
// them normalized so X0 <= X1 and Y0 <= Y1.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// NewRect builds a normalized rectangle from any two opposite corners.
func NewRect(x0, y0, x1, y1 float64) Rect {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Intersects reports whether the rectangles overlap. Boundaries are
// inclusive: touching edges count as an intersection.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 <= o.X1 && o.X0 <= r.X1 && r.Y0 <= o.Y1 && o.Y0 <= r.Y1
}

// LinkRegion is a free-floating hyperlink area produced per page or slide
// and consumed once by the hyperlink resolver.
type LinkRegion struct {
	Rect   Rect
	Target string
}

// ContentItem is the unit the engine operates on. Exactly one payload field
// group is meaningful for a given Kind: Text for KindText, Cells for
// KindTable (one item per table row), Data+Format for KindImage/KindChart.
type ContentItem struct {
	Kind   Kind
	Text   string
	Cells  []string
	Data   []byte
	Format string // png, jpeg, gif, bmp
	Anchor Anchor
	Link   string
	Label  string
	Bounds *Rect // geometry for link resolution; nil when the source has none
}

// Section is one container (sheet, slide, or page): the unit within which
// reading order is computed. A section with an empty Name renders without a
// heading, which is how flow documents surface their single implicit
// container.
type Section struct {
	Name  string
	Items []ContentItem
}

// Document is the reconstructed content of one source file, ready for
// serialization.
type Document struct {
	Title    string
	Sections []Section
}

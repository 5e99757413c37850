package engine

import (
	"bytes"
	"fmt"
	"log"
	"sort"
	"strings"

	gopdf "github.com/VantageDataChat/GoPDF2"
	"github.com/ledongthuc/pdf"
)

// convertPDF reconstructs a fixed-page document: one section per page with
// text blocks anchored by vertical offset, link annotations resolved
// geometrically against the blocks they cover, and embedded rasters
// recovered by signature scan in a trailing container. Pages whose content
// stream cannot be interpreted degrade to plain per-page text extraction.
func (e *Engine) convertPDF(data []byte, title string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	doc = &Document{Title: title}
	dd := newDeduper()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// The positional reader rejects some otherwise-parsable files;
		// fall back to plain text before declaring the document dead.
		return fallbackPDF(data, title, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		items, regions, pageErr := extractPDFPage(p)
		if pageErr != nil {
			log.Printf("Warning: page %d positional extraction failed: %v", i, pageErr)
			if text, err := gopdf.ExtractPageText(data, i-1); err == nil {
				if text = strings.TrimSpace(text); text != "" {
					items = []ContentItem{{Kind: KindText, Text: text, Anchor: SeqAnchor(0)}}
				}
			}
		}
		resolveLinks(items, regions)
		doc.Sections = append(doc.Sections, Section{
			Name:  fmt.Sprintf("Page %d", i),
			Items: orderItems(items),
		})
	}

	if rasters := dd.filter(scanEmbeddedRasters(data)); len(rasters) > 0 {
		doc.Sections = append(doc.Sections, Section{Name: "Embedded Images", Items: rasters})
	}

	return doc, nil
}

// fallbackPDF converts with the plain text extractor only. Reached when the
// positional reader cannot open the file at all; if this fails too the
// document is unreadable and the error propagates.
func fallbackPDF(data []byte, title string, cause error) (*Document, error) {
	pageCount, err := gopdf.GetSourcePDFPageCountFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("pdf parse: %w", cause)
	}
	log.Printf("Warning: %s: positional pdf reader failed (%v), using plain text extraction", title, cause)

	doc := &Document{Title: title}
	for i := 0; i < pageCount; i++ {
		var items []ContentItem
		if text, err := gopdf.ExtractPageText(data, i); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				items = append(items, ContentItem{Kind: KindText, Text: text, Anchor: SeqAnchor(0)})
			}
		}
		doc.Sections = append(doc.Sections, Section{Name: fmt.Sprintf("Page %d", i+1), Items: items})
	}
	if rasters := newDeduper().filter(scanEmbeddedRasters(data)); len(rasters) > 0 {
		doc.Sections = append(doc.Sections, Section{Name: "Embedded Images", Items: rasters})
	}
	return doc, nil
}

// extractPDFPage interprets one page's content stream into positioned text
// blocks plus the page's link regions. The underlying reader panics on
// malformed streams, so the whole page is one recoverable unit.
func extractPDFPage(p pdf.Page) (items []ContentItem, regions []LinkRegion, err error) {
	defer func() {
		if r := recover(); r != nil {
			items, regions = nil, nil
			err = fmt.Errorf("content stream: %v", r)
		}
	}()

	height := pageHeight(p)
	blocks := groupBlocks(groupPDFLines(p.Content().Text))
	for _, b := range blocks {
		bounds := b.bounds
		items = append(items, ContentItem{
			Kind:   KindText,
			Text:   b.text,
			Anchor: OffsetAnchor(height - b.top),
			Bounds: &bounds,
		})
	}
	regions = pageLinkRegions(p)
	return items, regions, nil
}

// pageHeight reads the page's MediaBox height, defaulting to US Letter when
// the box is absent or inherited somewhere the reader does not surface.
func pageHeight(p pdf.Page) (h float64) {
	h = 792
	defer func() { recover() }()
	mb := p.V.Key("MediaBox")
	if mb.Len() == 4 {
		if v := mb.Index(3).Float64() - mb.Index(1).Float64(); v > 0 {
			h = v
		}
	}
	return h
}

// pageLinkRegions collects the page's Link annotations as regions in the
// page's native (bottom-left origin) coordinates, in source order.
func pageLinkRegions(p pdf.Page) (regions []LinkRegion) {
	defer func() { recover() }()
	annots := p.V.Key("Annots")
	for i := 0; i < annots.Len(); i++ {
		a := annots.Index(i)
		if a.Key("Subtype").Name() != "Link" {
			continue
		}
		target := a.Key("A").Key("URI").RawString()
		if target == "" {
			continue
		}
		rect := a.Key("Rect")
		if rect.Len() != 4 {
			continue
		}
		regions = append(regions, LinkRegion{
			Rect: NewRect(
				rect.Index(0).Float64(), rect.Index(1).Float64(),
				rect.Index(2).Float64(), rect.Index(3).Float64(),
			),
			Target: target,
		})
	}
	return regions
}

// pdfLine is one baseline's worth of text fragments.
type pdfLine struct {
	y     float64
	texts []pdf.Text
}

// lineYTolerance groups fragments whose baselines differ by no more than
// this many points onto one line.
const lineYTolerance = 2.0

// groupPDFLines buckets raw text fragments into lines by baseline, top of
// page first, fragments left to right within a line.
func groupPDFLines(texts []pdf.Text) []pdfLine {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y // PDF y grows upward
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []pdfLine
	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		if n := len(lines); n > 0 && lines[n-1].y-t.Y <= lineYTolerance {
			lines[n-1].texts = append(lines[n-1].texts, t)
			continue
		}
		lines = append(lines, pdfLine{y: t.Y, texts: []pdf.Text{t}})
	}
	for i := range lines {
		sort.SliceStable(lines[i].texts, func(a, b int) bool {
			return lines[i].texts[a].X < lines[i].texts[b].X
		})
	}
	return lines
}

// pdfBlock is a contiguous group of lines forming one text item.
type pdfBlock struct {
	text   string
	top    float64 // highest baseline, native coordinates
	bounds Rect
}

// groupBlocks merges consecutive lines into blocks, starting a new block
// when the vertical gap exceeds what a paragraph's leading would produce.
func groupBlocks(lines []pdfLine) []pdfBlock {
	var blocks []pdfBlock
	var cur []pdfLine

	flush := func() {
		if len(cur) == 0 {
			return
		}
		var sb strings.Builder
		x0, y0 := cur[0].texts[0].X, cur[len(cur)-1].y
		x1, y1 := x0, cur[0].y
		for li, line := range cur {
			if li > 0 {
				sb.WriteByte('\n')
			}
			prevEnd := 0.0
			for ti, t := range line.texts {
				if ti > 0 && t.X-prevEnd > 1.0 && !strings.HasPrefix(t.S, " ") {
					sb.WriteByte(' ')
				}
				sb.WriteString(t.S)
				prevEnd = t.X + t.W
				if t.X < x0 {
					x0 = t.X
				}
				if end := t.X + t.W; end > x1 {
					x1 = end
				}
				if top := t.Y + t.FontSize; top > y1 {
					y1 = top
				}
			}
		}
		text := strings.TrimSpace(sb.String())
		if text != "" {
			blocks = append(blocks, pdfBlock{
				text:   text,
				top:    cur[0].y,
				bounds: NewRect(x0, y0, x1, y1),
			})
		}
		cur = nil
	}

	for _, line := range lines {
		if len(cur) > 0 {
			gap := cur[len(cur)-1].y - line.y
			leading := maxFontSize(cur[len(cur)-1].texts) * 1.8
			if leading < 6 {
				leading = 6
			}
			if gap > leading {
				flush()
			}
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}

func maxFontSize(texts []pdf.Text) float64 {
	m := 0.0
	for _, t := range texts {
		if t.FontSize > m {
			m = t.FontSize
		}
	}
	return m
}

package engine

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"log"
	"strings"

	goword "github.com/VantageDataChat/GoWord"
)

// convertDocx reconstructs a flow document. Flow sources have no geometry:
// body elements get sequence anchors in document order, run-level hyperlinks
// are inlined at extraction time, and tables emit one row item per table
// row. The whole document forms one unnamed container.
func (e *Engine) convertDocx(data []byte, title string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("docx parse panic: %v", r)
		}
	}()

	zr, err := openArchive(data)
	if err != nil {
		return e.fallbackDocx(data, title)
	}
	body, err := readArchiveFile(zr, "word/document.xml")
	if err != nil {
		return e.fallbackDocx(data, title)
	}

	rels := loadRels(zr, "word/document.xml")
	items := parseDocxBody(zr, body, rels)
	items = newDeduper().filter(items)

	return &Document{
		Title:    title,
		Sections: []Section{{Items: orderItems(items)}},
	}, nil
}

// parseDocxBody walks word/document.xml as a token stream so that the
// interleaving of paragraphs, tables, and inline images survives into the
// sequence anchors. Tables nest paragraphs, so cell text accumulates
// separately while tableDepth > 0.
func parseDocxBody(zr *zip.Reader, body []byte, rels map[string]relTarget) []ContentItem {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var items []ContentItem
	seq := 0
	emit := func(it ContentItem) {
		it.Anchor = SeqAnchor(seq)
		seq++
		items = append(items, it)
	}

	var para strings.Builder
	var cell strings.Builder
	var row []string
	tableDepth := 0
	inCell := false

	// Hyperlink runs accumulate separately and flush as one inline link
	// when the wrapping element closes.
	hlinkTarget := ""
	var hlinkText strings.Builder

	write := func(s string) {
		switch {
		case hlinkTarget != "":
			hlinkText.WriteString(s)
		case inCell:
			cell.WriteString(s)
		default:
			para.WriteString(s)
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if tableDepth > 0 {
					if inCell && cell.Len() > 0 {
						cell.WriteString(" ")
					}
				} else {
					para.Reset()
				}
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					inCell = true
					cell.Reset()
				}
			case "hyperlink":
				for _, a := range t.Attr {
					if a.Name.Local == "id" {
						if rel, ok := rels[a.Value]; ok && rel.External {
							hlinkTarget = rel.Target
							hlinkText.Reset()
						}
					}
				}
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err == nil {
					write(s)
				}
			case "br", "cr":
				write("\n")
			case "tab":
				write("\t")
			case "blip":
				for _, a := range t.Attr {
					if a.Name.Local != "embed" {
						continue
					}
					rel, ok := rels[a.Value]
					if !ok {
						continue
					}
					blob, err := readArchiveFile(zr, resolvePartPath("word/document.xml", rel.Target))
					if err != nil || len(blob) < minImageSize {
						continue
					}
					format := formatFromName(rel.Target)
					if format == "" {
						format = sniffImageFormat(blob)
					}
					if format == "" {
						continue
					}
					payload, format := normalizeImage(blob, format)
					emit(ContentItem{Kind: KindImage, Data: payload, Format: format})
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if tableDepth == 0 {
					if text := strings.TrimSpace(para.String()); text != "" {
						emit(ContentItem{Kind: KindText, Text: text})
					}
					para.Reset()
				}
			case "tbl":
				tableDepth--
			case "tr":
				if tableDepth == 1 {
					empty := true
					for _, c := range row {
						if c != "" {
							empty = false
							break
						}
					}
					if !empty {
						emit(ContentItem{Kind: KindTable, Cells: row})
					}
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
					inCell = false
				}
			case "hyperlink":
				if hlinkTarget != "" {
					text := strings.TrimSpace(hlinkText.String())
					if text != "" {
						target := hlinkTarget
						hlinkTarget = ""
						write("[" + text + "](" + target + ")")
					}
					hlinkTarget = ""
					hlinkText.Reset()
				}
			}
		}
	}
	return items
}

// fallbackDocx extracts plain text with the word reader when the archive
// cannot be walked, one text item per non-empty line.
func (e *Engine) fallbackDocx(data []byte, title string) (*Document, error) {
	wdoc, err := goword.OpenFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("docx parse: %w", err)
	}
	log.Printf("Warning: %s: archive walk failed, using plain text extraction", title)

	var items []ContentItem
	seq := 0
	for _, line := range strings.Split(wdoc.ExtractText(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, ContentItem{Kind: KindText, Text: line, Anchor: SeqAnchor(seq)})
			seq++
		}
	}
	return &Document{Title: title, Sections: []Section{{Items: items}}}, nil
}

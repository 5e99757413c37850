package engine

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// renderDocument serializes a reconstructed document into one Markdown
// string: a single `#` title heading, a `##` heading per named container,
// and each container's items in reading order.
func renderDocument(doc *Document) string {
	lines := []string{"# " + doc.Title, ""}
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		if len(sec.Items) == 0 {
			continue
		}
		if sec.Name != "" {
			lines = append(lines, "## "+sec.Name, "")
		}
		lines = appendSection(lines, sec)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

// appendSection renders one container's ordered items. It runs a two-state
// machine (in table / out of table): a table item outside a table opens a
// fresh header and separator sized to the max column count of the contiguous
// table run; a table item inside appends a body row; any non-table item
// closes the table with a blank line first. A later table item therefore
// opens a new header rather than extending the closed table.
func appendSection(lines []string, sec *Section) []string {
	container := sec.Name
	if container == "" {
		container = "Document"
	}

	inTable := false
	tableWidth := 0
	imageCount := 0

	items := sec.Items
	for i := 0; i < len(items); i++ {
		it := items[i]

		if it.Kind == KindTable {
			if !inTable {
				tableWidth = len(it.Cells)
				for j := i + 1; j < len(items) && items[j].Kind == KindTable; j++ {
					if len(items[j].Cells) > tableWidth {
						tableWidth = len(items[j].Cells)
					}
				}
				lines = append(lines, tableRow(it.Cells, tableWidth), tableSeparator(tableWidth))
				inTable = true
			} else {
				lines = append(lines, tableRow(it.Cells, tableWidth))
			}
			continue
		}

		if inTable {
			lines = append(lines, "")
			inTable = false
		}

		switch it.Kind {
		case KindText:
			text := it.Text
			if it.Link != "" {
				text = "[" + text + "](" + it.Link + ")"
			}
			lines = append(lines, text, "")
		case KindImage, KindChart:
			imageCount++
			alt := it.Label
			if alt == "" {
				alt = fmt.Sprintf("%s Image %d", container, imageCount)
			}
			lines = append(lines, imageLine(it, alt), "")
		}
	}

	if inTable {
		lines = append(lines, "")
	}
	return lines
}

// tableRow renders one pipe-table row, right-padding short rows with empty
// cells up to width. Pipes inside cell text are escaped; that is the only
// character the pipe-table grammar needs escaped for correctness.
func tableRow(cells []string, width int) string {
	escaped := make([]string, width)
	for i := 0; i < width; i++ {
		if i < len(cells) {
			cell := strings.ReplaceAll(cells[i], "|", "\\|")
			escaped[i] = strings.ReplaceAll(cell, "\n", " ")
		}
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

func tableSeparator(width int) string {
	cols := make([]string, width)
	for i := range cols {
		cols[i] = "---"
	}
	return "| " + strings.Join(cols, " | ") + " |"
}

// imageLine renders an image or chart as inline Markdown with the binary
// payload embedded as a base64 data URI. When the item carries a link, the
// image syntax itself is wrapped in a link.
func imageLine(it ContentItem, alt string) string {
	uri := "data:" + mimeType(it.Format) + ";base64," + base64.StdEncoding.EncodeToString(it.Data)
	s := "![" + alt + "](" + uri + ")"
	if it.Link != "" {
		s = "[" + s + "](" + it.Link + ")"
	}
	return s
}

// mimeType maps a declared image format tag to its MIME type.
func mimeType(format string) string {
	format = strings.ToLower(format)
	if format == "jpg" {
		return "image/jpeg"
	}
	if format == "" {
		return "image/png"
	}
	return "image/" + format
}

package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log"

	goexcel "github.com/VantageDataChat/GoExcel"
)

// convertExcel reconstructs an xlsx workbook: one section per sheet, one
// table item per non-empty row, plus images and chart renders anchored by
// their drawing cell anchors. Cell hyperlinks are rendered inline at
// extraction time because cell-level association is unambiguous in the
// source model.
func (e *Engine) convertExcel(ctx context.Context, data []byte, title, srcPath string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("excel parse panic: %v", r)
		}
	}()

	reader := goexcel.NewXLSXReader()
	wb, err := reader.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("excel parse: %w", err)
	}

	extras, hasCharts := loadWorkbookExtras(data)
	var renders map[int][]byte
	if hasCharts {
		renders = e.renderPages(ctx, srcPath)
	}

	doc = &Document{Title: title}
	dd := newDeduper()

	for si, name := range wb.GetSheetNames() {
		ex := extras[name]
		var items []ContentItem

		sheet, err := wb.GetSheetByName(name)
		if err != nil {
			log.Printf("Warning: sheet %q unreadable, skipping: %v", name, err)
		} else if rows, err := sheet.RowIterator(); err != nil {
			log.Printf("Warning: sheet %q rows unreadable, skipping: %v", name, err)
		} else {
			for rowIdx, row := range rows {
				var cells []string
				empty := true
				for _, cell := range row {
					if cell == nil || cell.IsEmpty() {
						continue
					}
					val := cell.GetFormattedValue()
					if val == "" {
						continue
					}
					col := cell.Col()
					for len(cells) <= col {
						cells = append(cells, "")
					}
					if url, ok := ex.links[cellRef(rowIdx+1, col+1)]; ok {
						val = "[" + val + "](" + url + ")"
					}
					cells[col] = val
					empty = false
				}
				if empty {
					continue
				}
				items = append(items, ContentItem{
					Kind:   KindTable,
					Cells:  cells,
					Anchor: RowColAnchor(rowIdx+1, 0),
				})
			}
		}

		for _, img := range ex.images {
			if len(img.data) < minImageSize {
				continue
			}
			payload, format := normalizeImage(img.data, img.format)
			items = append(items, ContentItem{
				Kind:   KindImage,
				Data:   payload,
				Format: format,
				Anchor: RowColAnchor(img.row, img.col),
			})
		}

		// One sheet render stands in for the sheet's charts; the bridge
		// rasterizes whole containers, not individual chart objects.
		if len(ex.charts) > 0 {
			if pngData, ok := renders[si]; ok {
				c := ex.charts[0]
				label := c.title
				if label == "" {
					label = "Chart"
				}
				items = append(items, ContentItem{
					Kind:   KindChart,
					Data:   pngData,
					Format: "png",
					Anchor: RowColAnchor(c.row, c.col),
					Label:  "Chart: " + label,
				})
			}
		}

		doc.Sections = append(doc.Sections, Section{
			Name:  "Sheet: " + name,
			Items: orderItems(dd.filter(items)),
		})
	}

	return doc, nil
}

// sheetExtras is the positional information the cell-grid reader does not
// expose: cell hyperlinks and drawing anchors, read from the archive XML the
// same way the drawing parts wire them together.
type sheetExtras struct {
	links  map[string]string // cell ref ("B2") -> external URL
	images []anchoredImage
	charts []anchoredChart
}

type anchoredImage struct {
	row, col int // 1-based
	data     []byte
	format   string
}

type anchoredChart struct {
	row, col int // 1-based
	title    string
}

// loadWorkbookExtras walks xl/workbook.xml and each worksheet's relationship
// chain to collect hyperlinks, anchored images, and chart anchors per sheet
// name. Everything here is best-effort: a workbook whose drawing parts are
// malformed still converts, just without those items.
func loadWorkbookExtras(data []byte) (map[string]sheetExtras, bool) {
	extras := make(map[string]sheetExtras)
	hasCharts := false

	zr, err := openArchive(data)
	if err != nil {
		return extras, false
	}
	wbData, err := readArchiveFile(zr, "xl/workbook.xml")
	if err != nil {
		return extras, false
	}

	var wbXML struct {
		Sheets []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"id,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := xml.Unmarshal(wbData, &wbXML); err != nil {
		log.Printf("Warning: workbook.xml parse failed: %v", err)
		return extras, false
	}
	wbRels := loadRels(zr, "xl/workbook.xml")

	for _, sh := range wbXML.Sheets {
		rel, ok := wbRels[sh.RID]
		if !ok {
			continue
		}
		part := resolvePartPath("xl/workbook.xml", rel.Target)
		ex := loadSheetExtras(zr, part)
		if len(ex.charts) > 0 {
			hasCharts = true
		}
		extras[sh.Name] = ex
	}
	return extras, hasCharts
}

func loadSheetExtras(zr *zip.Reader, part string) sheetExtras {
	ex := sheetExtras{links: make(map[string]string)}

	sheetData, err := readArchiveFile(zr, part)
	if err != nil {
		return ex
	}
	var sheetXML struct {
		Hyperlinks []struct {
			Ref string `xml:"ref,attr"`
			RID string `xml:"id,attr"`
		} `xml:"hyperlinks>hyperlink"`
		Drawing *struct {
			RID string `xml:"id,attr"`
		} `xml:"drawing"`
	}
	if err := xml.Unmarshal(sheetData, &sheetXML); err != nil {
		log.Printf("Warning: %s parse failed: %v", part, err)
		return ex
	}

	rels := loadRels(zr, part)
	for _, h := range sheetXML.Hyperlinks {
		if rel, ok := rels[h.RID]; ok && rel.External {
			ex.links[h.Ref] = rel.Target
		}
	}

	if sheetXML.Drawing != nil {
		if rel, ok := rels[sheetXML.Drawing.RID]; ok {
			drawingPart := resolvePartPath(part, rel.Target)
			ex.images, ex.charts = parseDrawing(zr, drawingPart)
		}
	}
	return ex
}

// drawingAnchorXML matches both twoCellAnchor and oneCellAnchor elements of
// a spreadsheet drawing part. Row and col in <xdr:from> are zero-based.
type drawingAnchorXML struct {
	From struct {
		Col int `xml:"col"`
		Row int `xml:"row"`
	} `xml:"from"`
	Pic *struct {
		BlipFill struct {
			Blip struct {
				Embed string `xml:"embed,attr"`
			} `xml:"blip"`
		} `xml:"blipFill"`
	} `xml:"pic"`
	GraphicFrame *struct {
		Graphic struct {
			GraphicData struct {
				Chart *struct {
					RID string `xml:"id,attr"`
				} `xml:"chart"`
			} `xml:"graphicData"`
		} `xml:"graphic"`
	} `xml:"graphicFrame"`
}

// parseDrawing reads one drawing part and returns its anchored pictures and
// chart references. Individual anchors that cannot be resolved are skipped.
func parseDrawing(zr *zip.Reader, part string) ([]anchoredImage, []anchoredChart) {
	data, err := readArchiveFile(zr, part)
	if err != nil {
		return nil, nil
	}
	var drawing struct {
		TwoCell []drawingAnchorXML `xml:"twoCellAnchor"`
		OneCell []drawingAnchorXML `xml:"oneCellAnchor"`
	}
	if err := xml.Unmarshal(data, &drawing); err != nil {
		log.Printf("Warning: %s parse failed: %v", part, err)
		return nil, nil
	}
	rels := loadRels(zr, part)

	var images []anchoredImage
	var charts []anchoredChart
	for _, anchor := range append(drawing.TwoCell, drawing.OneCell...) {
		row, col := anchor.From.Row+1, anchor.From.Col+1

		if anchor.Pic != nil {
			rel, ok := rels[anchor.Pic.BlipFill.Blip.Embed]
			if !ok {
				continue
			}
			mediaPart := resolvePartPath(part, rel.Target)
			blob, err := readArchiveFile(zr, mediaPart)
			if err != nil {
				continue
			}
			format := formatFromName(mediaPart)
			if format == "" {
				format = sniffImageFormat(blob)
			}
			if format == "" {
				continue // emf/wmf and friends go through the renderer instead
			}
			images = append(images, anchoredImage{row: row, col: col, data: blob, format: format})
		}

		if anchor.GraphicFrame != nil && anchor.GraphicFrame.Graphic.GraphicData.Chart != nil {
			title := ""
			if rel, ok := rels[anchor.GraphicFrame.Graphic.GraphicData.Chart.RID]; ok {
				chartPart := resolvePartPath(part, rel.Target)
				if chartData, err := readArchiveFile(zr, chartPart); err == nil {
					title = chartTitle(chartData)
				}
			}
			charts = append(charts, anchoredChart{row: row, col: col, title: title})
		}
	}
	return images, charts
}

// chartTitle extracts the concatenated text runs of a chart part's title
// element, or "" when the chart has no title.
func chartTitle(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	titleDepth := 0
	inText := false
	var title bytes.Buffer
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "title" {
				titleDepth++
			} else if titleDepth > 0 && t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "title" {
				titleDepth--
			} else if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if titleDepth > 0 && inText {
				title.Write(t)
			}
		}
	}
	return title.String()
}

// cellRef renders a 1-based row/column pair as an A1-style reference.
func cellRef(row, col int) string {
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return fmt.Sprintf("%s%d", letters, row)
}

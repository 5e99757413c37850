package engine

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/shakinm/xlsReader/xls"
)

// convertXLS reconstructs a legacy BIFF workbook: one section per sheet,
// one table item per non-empty row. The BIFF reader exposes no drawing
// layer, so legacy workbooks carry no images or charts.
func (e *Engine) convertXLS(data []byte, title string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("xls parse panic: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xls parse: %w", err)
	}

	doc = &Document{Title: title}
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil {
			log.Printf("Warning: xls sheet %d unreadable, skipping: %v", i, err)
			continue
		}

		var items []ContentItem
		for rowIdx := 0; rowIdx < sheet.GetNumberRows(); rowIdx++ {
			row, err := sheet.GetRow(rowIdx)
			if err != nil || row == nil {
				continue
			}
			var cells []string
			empty := true
			for _, cell := range row.GetCols() {
				val := strings.TrimSpace(cell.GetString())
				cells = append(cells, val)
				if val != "" {
					empty = false
				}
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

		doc.Sections = append(doc.Sections, Section{
			Name:  "Sheet: " + sheet.GetName(),
			Items: orderItems(items),
		})
	}
	return doc, nil
}

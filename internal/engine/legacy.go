package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// Legacy .doc and .ppt files are OLE2 compound files. The streams inside
// hold binary records, not XML, so these extractors work at the byte level:
// the Word piece table for .doc text, the PowerPoint record stream for .ppt
// text, and signature scans for the raster media both formats embed.

// convertDoc reconstructs a legacy Word document as a flow container: text
// paragraphs with sequence anchors, tab-delimited lines as table rows, and
// rasters recovered from the Data stream as unpositioned trailing images.
func (e *Engine) convertDoc(data []byte, title string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("doc parse panic: %v", r)
		}
	}()

	cf, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("doc parse: %w", err)
	}

	var wordDoc, table0, table1, dataStream []byte
	for {
		entry, nextErr := cf.Next()
		if nextErr != nil {
			break
		}
		switch entry.Name {
		case "WordDocument":
			wordDoc, _ = io.ReadAll(entry)
		case "0Table":
			table0, _ = io.ReadAll(entry)
		case "1Table":
			table1, _ = io.ReadAll(entry)
		case "Data":
			dataStream, _ = io.ReadAll(entry)
		}
	}
	if len(wordDoc) == 0 {
		return nil, fmt.Errorf("doc parse: WordDocument stream not found")
	}

	items := flowItems(docText(wordDoc, table0, table1))
	items = append(items, scanEmbeddedRasters(dataStream)...)
	items = newDeduper().filter(items)

	return &Document{
		Title:    title,
		Sections: []Section{{Items: orderItems(items)}},
	}, nil
}

// convertPPT reconstructs a legacy PowerPoint deck. Slide boundaries are not
// recoverable from the record stream alone, so text forms one unnamed
// container; rasters from the Pictures stream follow in a trailing one.
func (e *Engine) convertPPT(data []byte, title string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("ppt parse panic: %v", r)
		}
	}()

	cf, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ppt parse: %w", err)
	}

	var pptData, pictures []byte
	for {
		entry, nextErr := cf.Next()
		if nextErr != nil {
			break
		}
		switch entry.Name {
		case "PowerPoint Document":
			pptData, _ = io.ReadAll(entry)
		case "Pictures":
			pictures, _ = io.ReadAll(entry)
		}
	}
	if len(pptData) == 0 {
		return nil, fmt.Errorf("ppt parse: PowerPoint Document stream not found")
	}

	var items []ContentItem
	for seq, atom := range pptTextAtoms(pptData) {
		items = append(items, ContentItem{Kind: KindText, Text: atom, Anchor: SeqAnchor(seq)})
	}
	dd := newDeduper()
	items = dd.filter(items)

	doc = &Document{Title: title, Sections: []Section{{Items: items}}}
	if rasters := dd.filter(scanEmbeddedRasters(pictures)); len(rasters) > 0 {
		doc.Sections = append(doc.Sections, Section{Name: "Additional Media", Items: rasters})
	}
	return doc, nil
}

// flowItems turns extracted legacy text into sequence-anchored items: one
// text item per paragraph, and a table row item for each tab-delimited line
// (the 0x07 cell marker maps to a tab during extraction).
func flowItems(text string) []ContentItem {
	var items []ContentItem
	seq := 0
	emit := func(it ContentItem) {
		it.Anchor = SeqAnchor(seq)
		seq++
		items = append(items, it)
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "\t") {
			var cells []string
			empty := true
			for _, c := range strings.Split(line, "\t") {
				c = strings.TrimSpace(c)
				cells = append(cells, c)
				if c != "" {
					empty = false
				}
			}
			if !empty {
				emit(ContentItem{Kind: KindTable, Cells: cells})
			}
			continue
		}
		emit(ContentItem{Kind: KindText, Text: line})
	}
	return items
}

// docText extracts the document text from the WordDocument stream, preferring
// the piece table in whichever Table stream the FIB points at and falling
// back to a printable scan when the piece table is unusable.
func docText(wordDoc, table0, table1 []byte) string {
	if len(wordDoc) < 12 {
		return ""
	}
	// FIB offset 0x0A, bit 9: which Table stream holds the CLX.
	table := table0
	if (binary.LittleEndian.Uint16(wordDoc[0x0A:0x0C])>>9)&1 == 1 {
		table = table1
	}
	if len(table) == 0 {
		if table = table1; len(table) == 0 {
			table = table0
		}
	}

	text := ""
	if len(table) > 0 {
		text = docPieceText(wordDoc, table)
	}
	if text == "" {
		text = docScanText(wordDoc)
	}
	return cleanLegacyText(dropFieldCodes(text))
}

// docPieceText reads the CLX piece table from the Table stream and decodes
// each text piece out of the WordDocument stream. Pieces are UTF-16LE unless
// the compressed-fc bit marks them as 8-bit.
func docPieceText(wordDoc, table []byte) string {
	if len(wordDoc) < 0x01A2+8 {
		return ""
	}
	fcClx := binary.LittleEndian.Uint32(wordDoc[0x01A2:0x01A6])
	lcbClx := binary.LittleEndian.Uint32(wordDoc[0x01A6:0x01AA])
	if fcClx == 0 || lcbClx == 0 || int(fcClx)+int(lcbClx) > len(table) {
		return ""
	}
	clx := table[fcClx : fcClx+lcbClx]

	// Skip Prc property blocks (0x01) to reach the Pcdt marker (0x02).
	pos := 0
	for pos < len(clx) && clx[pos] == 0x01 {
		if pos+3 > len(clx) {
			return ""
		}
		pos += 3 + int(binary.LittleEndian.Uint16(clx[pos+1:pos+3]))
	}
	if pos+5 > len(clx) || clx[pos] != 0x02 {
		return ""
	}
	pos++
	lcb := int(binary.LittleEndian.Uint32(clx[pos : pos+4]))
	pos += 4
	if lcb < 12 || pos+lcb > len(clx) {
		return ""
	}
	plcPcd := clx[pos : pos+lcb]

	// PlcPcd: n+1 character positions, then n 8-byte piece descriptors.
	n := (lcb - 4) / 12
	if n <= 0 || (n+1)*4+n*8 > lcb {
		return ""
	}
	cpBase := (n + 1) * 4

	var sb strings.Builder
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plcPcd[i*4 : i*4+4])
		cpEnd := binary.LittleEndian.Uint32(plcPcd[(i+1)*4 : (i+1)*4+4])
		chars := cpEnd - cpStart
		if chars == 0 || chars > 1_000_000 {
			continue
		}

		fcRaw := binary.LittleEndian.Uint32(plcPcd[cpBase+i*8+2 : cpBase+i*8+6])
		fc := fcRaw & 0x3FFFFFFF

		if fcRaw&0x40000000 == 0 { // UTF-16LE
			end := int(fc) + int(chars)*2
			if end > len(wordDoc) {
				continue
			}
			u16s := make([]uint16, chars)
			for j := range u16s {
				u16s[j] = binary.LittleEndian.Uint16(wordDoc[int(fc)+j*2 : int(fc)+j*2+2])
			}
			for _, r := range utf16.Decode(u16s) {
				writeDocRune(&sb, r)
			}
		} else { // 8-bit, fc counts half-bytes
			off := int(fc / 2)
			if off+int(chars) > len(wordDoc) {
				continue
			}
			for _, b := range wordDoc[off : off+int(chars)] {
				writeDocRune(&sb, rune(b))
			}
		}
	}
	return sb.String()
}

// writeDocRune maps Word control characters onto their text equivalents:
// paragraph and line breaks to newline, the cell marker to tab.
func writeDocRune(sb *strings.Builder, r rune) {
	switch {
	case r == 0x0D || r == 0x0B:
		sb.WriteByte('\n')
	case r == 0x07:
		sb.WriteByte('\t')
	case r >= 0x20 || r == 0x09:
		sb.WriteRune(r)
	}
}

// docScanText scans the WordDocument stream for printable runs. Inaccurate,
// but better than nothing when the piece table cannot be decoded.
func docScanText(wordDoc []byte) string {
	var sb strings.Builder
	inRun := false
	for _, b := range wordDoc {
		switch {
		case b == 0x0D || b == 0x0A:
			sb.WriteByte('\n')
			inRun = true
		case (b >= 0x20 && b < 0x7F) || b == 0x09:
			sb.WriteByte(b)
			inRun = true
		default:
			if inRun {
				sb.WriteByte('\n')
				inRun = false
			}
		}
	}
	return sb.String()
}

// docFieldCodeMarkers flags internal Word field instructions (HYPERLINK,
// TOC, PAGEREF) that leak through piece table extraction as text.
var docFieldCodeMarkers = []string{
	"HYPERLINK",
	"PAGEREF",
	"MERGEFORMAT",
	"TOC \\o",
	"TOC \\h",
	"\\l \"",
	" \\h",
}

func dropFieldCodes(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		code := false
		for _, marker := range docFieldCodeMarkers {
			if strings.Contains(trimmed, marker) {
				code = true
				break
			}
		}
		if !code {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

var (
	legacyControlRE = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	legacySpaceRE   = regexp.MustCompile(` {2,}`)
	legacyBlankRE   = regexp.MustCompile(`\n{3,}`)
)

// cleanLegacyText strips stray control bytes, collapses runs of spaces, and
// caps blank runs at one empty line. Tabs survive: they are cell markers.
func cleanLegacyText(text string) string {
	text = legacyControlRE.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(legacySpaceRE.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(legacyBlankRE.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// pptMasterNoise matches master-slide template placeholders that the record
// walk picks up alongside real slide text.
var pptMasterNoise = []string{
	"Click to edit Master title style",
	"Click to edit Master text styles",
	"Click to edit Master subtitle style",
}

var pptMasterNoiseExact = map[string]bool{
	"*":            true,
	"Second level": true,
	"Third level":  true,
	"Fourth level": true,
	"Fifth level":  true,
}

func isPPTNoise(text string) bool {
	if pptMasterNoiseExact[text] {
		return true
	}
	for _, pat := range pptMasterNoise {
		if strings.Contains(text, pat) {
			return true
		}
	}
	return false
}

// pptTextAtoms walks the PowerPoint Document record stream and returns the
// cleaned text of each TextCharsAtom (0x0FA0, UTF-16LE) and TextBytesAtom
// (0x0FA8, ANSI), in stream order. Container records (recVer 0xF) hold
// sub-records inline, so the walk descends by simply not skipping them.
func pptTextAtoms(data []byte) []string {
	var atoms []string
	pos := 0
	for pos+8 <= len(data) {
		recVer := binary.LittleEndian.Uint16(data[pos:pos+2]) & 0x0F
		recType := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		recLen := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		pos += 8
		if recLen > uint32(len(data)-pos) {
			break
		}

		switch recType {
		case 0x0FA0: // TextCharsAtom
			if recLen >= 2 {
				u16s := make([]uint16, recLen/2)
				for i := range u16s {
					u16s[i] = binary.LittleEndian.Uint16(data[pos+i*2 : pos+i*2+2])
				}
				if text := cleanLegacyText(string(utf16.Decode(u16s))); text != "" && !isPPTNoise(text) {
					atoms = append(atoms, text)
				}
			}
			pos += int(recLen)
		case 0x0FA8: // TextBytesAtom
			if text := cleanLegacyText(string(data[pos : pos+int(recLen)])); text != "" && !isPPTNoise(text) {
				atoms = append(atoms, text)
			}
			pos += int(recLen)
		default:
			if recVer != 0x0F {
				pos += int(recLen)
			}
		}
	}
	return atoms
}

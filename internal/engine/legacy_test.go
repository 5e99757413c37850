package engine

import (
	"encoding/binary"
	"strings"
	"testing"
	"unicode/utf16"
)

func TestFlowItems(t *testing.T) {
	items := flowItems("First paragraph\n\nName\tQty\nwidget\t3\nClosing note\n")
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4", len(items))
	}
	if items[0].Kind != KindText || items[0].Text != "First paragraph" {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].Kind != KindTable || items[1].Cells[0] != "Name" || items[1].Cells[1] != "Qty" {
		t.Errorf("item 1 = %+v", items[1])
	}
	if items[2].Kind != KindTable || items[2].Cells[1] != "3" {
		t.Errorf("item 2 = %+v", items[2])
	}
	if items[3].Kind != KindText || items[3].Text != "Closing note" {
		t.Errorf("item 3 = %+v", items[3])
	}
	for i, it := range items {
		if !it.Anchor.Positioned() {
			t.Errorf("item %d missing sequence anchor", i)
		}
	}
}

func TestFlowItems_AllEmptyCellsSkipped(t *testing.T) {
	items := flowItems("\t\t\nreal text")
	if len(items) != 1 || items[0].Text != "real text" {
		t.Errorf("items = %+v, empty tab rows must be dropped", items)
	}
}

func TestCleanLegacyText(t *testing.T) {
	in := "hello\x00\x01 world   with    spaces\n\n\n\n\nnext"
	want := "hello world with spaces\n\nnext"
	if got := cleanLegacyText(in); got != want {
		t.Errorf("cleanLegacyText = %q, want %q", got, want)
	}
}

func TestCleanLegacyText_TabsSurvive(t *testing.T) {
	if got := cleanLegacyText("a\tb"); got != "a\tb" {
		t.Errorf("tabs are cell markers and must survive, got %q", got)
	}
}

func TestDropFieldCodes(t *testing.T) {
	in := "Real heading\nHYPERLINK \"https://example.com\"\nBody text\nPAGEREF _Toc123 \\h\nEnd"
	want := "Real heading\nBody text\nEnd"
	if got := dropFieldCodes(in); got != want {
		t.Errorf("dropFieldCodes = %q, want %q", got, want)
	}
}

func TestIsPPTNoise(t *testing.T) {
	cases := map[string]bool{
		"Click to edit Master title style": true,
		"Second level":                     true,
		"*":                                true,
		"Quarterly results":                false,
		"Second level of detail matters":   false,
	}
	for text, want := range cases {
		if got := isPPTNoise(text); got != want {
			t.Errorf("isPPTNoise(%q) = %v, want %v", text, got, want)
		}
	}
}

// pptRecord encodes one record with the given version nibble, type, and body.
func pptRecord(recVer uint16, recType uint16, body []byte) []byte {
	rec := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint16(rec[0:2], recVer&0x0F)
	binary.LittleEndian.PutUint16(rec[2:4], recType)
	binary.LittleEndian.PutUint32(rec[4:8], uint32(len(body)))
	copy(rec[8:], body)
	return rec
}

func utf16Bytes(s string) []byte {
	u16s := utf16.Encode([]rune(s))
	out := make([]byte, len(u16s)*2)
	for i, u := range u16s {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out
}

func TestPPTTextAtoms(t *testing.T) {
	var stream []byte
	// A container holding a TextCharsAtom; the walk must descend into it.
	inner := pptRecord(0, 0x0FA0, utf16Bytes("Slide title"))
	stream = append(stream, pptRecord(0x0F, 0x03E8, nil)...)
	stream = append(stream, inner...)
	// An unrelated atom whose body must be skipped, not scanned.
	stream = append(stream, pptRecord(0, 0x0BAD, []byte{1, 2, 3, 4})...)
	// An ANSI bytes atom.
	stream = append(stream, pptRecord(0, 0x0FA8, []byte("Body bullet"))...)
	// Master template noise must be filtered out.
	stream = append(stream, pptRecord(0, 0x0FA8, []byte("Click to edit Master title style"))...)

	atoms := pptTextAtoms(stream)
	if len(atoms) != 2 {
		t.Fatalf("got %d atoms %v, want 2", len(atoms), atoms)
	}
	if atoms[0] != "Slide title" || atoms[1] != "Body bullet" {
		t.Errorf("atoms = %v", atoms)
	}
}

func TestPPTTextAtoms_TruncatedRecord(t *testing.T) {
	// Header claims more body than the stream holds.
	rec := pptRecord(0, 0x0FA8, []byte("abc"))
	binary.LittleEndian.PutUint32(rec[4:8], 4096)

	if atoms := pptTextAtoms(rec); len(atoms) != 0 {
		t.Errorf("got %v from truncated stream", atoms)
	}
}

// buildDocStreams assembles a minimal WordDocument plus Table stream pair
// whose piece table points at the given text, stored as UTF-16LE.
func buildDocStreams(text string) (wordDoc, table []byte) {
	payload := utf16Bytes(text)
	textStart := 0x0400
	wordDoc = make([]byte, textStart+len(payload))
	copy(wordDoc[textStart:], payload)

	chars := len([]rune(text))
	// One piece: CP range [0, chars), descriptor pointing at textStart.
	plcPcd := make([]byte, 8+8)
	binary.LittleEndian.PutUint32(plcPcd[0:4], 0)
	binary.LittleEndian.PutUint32(plcPcd[4:8], uint32(chars))
	binary.LittleEndian.PutUint32(plcPcd[8+2:8+6], uint32(textStart)) // fc, UTF-16 flag clear

	clx := append([]byte{0x02}, make([]byte, 4)...)
	binary.LittleEndian.PutUint32(clx[1:5], uint32(len(plcPcd)))
	clx = append(clx, plcPcd...)

	fcClx := 0x0010
	table = make([]byte, fcClx+len(clx))
	copy(table[fcClx:], clx)

	binary.LittleEndian.PutUint32(wordDoc[0x01A2:0x01A6], uint32(fcClx))
	binary.LittleEndian.PutUint32(wordDoc[0x01A6:0x01AA], uint32(len(clx)))
	return wordDoc, table
}

func TestDocText_PieceTable(t *testing.T) {
	wordDoc, table := buildDocStreams("Hello piece table\rSecond paragraph\r")

	got := docText(wordDoc, table, nil)
	want := "Hello piece table\nSecond paragraph"
	if got != want {
		t.Errorf("docText = %q, want %q", got, want)
	}
}

func TestDocText_CellMarkersBecomeTabs(t *testing.T) {
	wordDoc, table := buildDocStreams("A\x07B\x07\rnext\r")

	got := docText(wordDoc, table, nil)
	if got != "A\tB\nnext" {
		t.Errorf("docText = %q", got)
	}
}

func TestDocText_TableStreamSelection(t *testing.T) {
	wordDoc, table := buildDocStreams("from one table\r")
	// Set FIB bit 9: the CLX lives in the 1Table stream.
	binary.LittleEndian.PutUint16(wordDoc[0x0A:0x0C], 1<<9)

	if got := docText(wordDoc, nil, table); got != "from one table" {
		t.Errorf("docText with 1Table = %q", got)
	}
}

func TestDocText_ScanFallback(t *testing.T) {
	// No usable piece table: printable runs still come out.
	wordDoc := make([]byte, 0x0200)
	copy(wordDoc[0x0100:], "visible fallback text")

	got := docText(wordDoc, nil, nil)
	if !strings.Contains(got, "visible fallback text") {
		t.Errorf("scan fallback lost the text: %q", got)
	}
}

func TestConvertDoc_GarbageInput(t *testing.T) {
	if _, err := New(nil).convertDoc([]byte("not an ole2 compound file"), "g"); err == nil {
		t.Error("expected error for non-compound input")
	}
}

func TestConvertPPT_GarbageInput(t *testing.T) {
	if _, err := New(nil).convertPPT([]byte("not an ole2 compound file"), "g"); err == nil {
		t.Error("expected error for non-compound input")
	}
}

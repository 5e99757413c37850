package engine

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestRenderDocument_TitleAndSectionHeadings(t *testing.T) {
	doc := &Document{
		Title: "report",
		Sections: []Section{
			{Name: "Sheet: Data", Items: []ContentItem{textItem("hello", SeqAnchor(0))}},
			{Name: "Sheet: Empty"},
		},
	}

	md := renderDocument(doc)
	lines := strings.Split(md, "\n")
	if lines[0] != "# report" {
		t.Errorf("first line = %q, want title heading", lines[0])
	}
	if !strings.Contains(md, "## Sheet: Data") {
		t.Error("missing section heading")
	}
	if strings.Contains(md, "Sheet: Empty") {
		t.Error("empty section should render no heading")
	}
	if !strings.HasSuffix(md, "\n") || strings.HasSuffix(md, "\n\n") {
		t.Error("output should end with exactly one newline")
	}
}

func TestRenderDocument_UnnamedSectionHasNoHeading(t *testing.T) {
	doc := &Document{
		Title:    "letter",
		Sections: []Section{{Items: []ContentItem{textItem("body", SeqAnchor(0))}}},
	}
	md := renderDocument(doc)
	if strings.Contains(md, "##") {
		t.Errorf("flow document grew a section heading:\n%s", md)
	}
	if !strings.Contains(md, "body") {
		t.Error("missing body text")
	}
}

func TestRenderDocument_TableRun(t *testing.T) {
	doc := &Document{
		Title: "t",
		Sections: []Section{{
			Name: "Sheet: S",
			Items: []ContentItem{
				{Kind: KindTable, Cells: []string{"Name", "Qty"}},
				{Kind: KindTable, Cells: []string{"widget", "3"}},
				{Kind: KindTable, Cells: []string{"gadget", "7"}},
			},
		}},
	}

	md := renderDocument(doc)
	want := "| Name | Qty |\n| --- | --- |\n| widget | 3 |\n| gadget | 7 |"
	if !strings.Contains(md, want) {
		t.Errorf("table run mismatch.\ngot:\n%s\nwant fragment:\n%s", md, want)
	}
	// Exactly one separator row: first item is the header, the rest are body.
	if strings.Count(md, "| --- |") != 1 {
		t.Errorf("separator count = %d, want 1:\n%s", strings.Count(md, "| --- |"), md)
	}
}

func TestRenderDocument_InterveningItemSplitsTables(t *testing.T) {
	doc := &Document{
		Title: "t",
		Sections: []Section{{
			Name: "Sheet: S",
			Items: []ContentItem{
				{Kind: KindTable, Cells: []string{"a"}},
				textItem("between", Anchor{}),
				{Kind: KindTable, Cells: []string{"b"}},
			},
		}},
	}

	md := renderDocument(doc)
	// Each single-row run opens its own header and separator.
	if got := strings.Count(md, "| --- |"); got != 2 {
		t.Errorf("separator count = %d, want 2 (text splits the run):\n%s", got, md)
	}
	aIdx := strings.Index(md, "| a |")
	betweenIdx := strings.Index(md, "between")
	bIdx := strings.Index(md, "| b |")
	if !(aIdx < betweenIdx && betweenIdx < bIdx) {
		t.Errorf("item order lost:\n%s", md)
	}
}

func TestRenderDocument_RaggedRowsPaddedToRunWidth(t *testing.T) {
	doc := &Document{
		Title: "t",
		Sections: []Section{{
			Name: "Sheet: S",
			Items: []ContentItem{
				{Kind: KindTable, Cells: []string{"a"}},
				{Kind: KindTable, Cells: []string{"b", "c", "d"}},
			},
		}},
	}

	md := renderDocument(doc)
	if !strings.Contains(md, "| a |  |  |") {
		t.Errorf("short row not padded to run width:\n%s", md)
	}
	if !strings.Contains(md, "| --- | --- | --- |") {
		t.Errorf("separator not sized to run width:\n%s", md)
	}
}

func TestTableRow_EscapesPipesOnly(t *testing.T) {
	row := tableRow([]string{"a|b", "c*d_e", "line\nbreak"}, 3)
	if !strings.Contains(row, `a\|b`) {
		t.Errorf("pipe not escaped: %q", row)
	}
	if !strings.Contains(row, "c*d_e") {
		t.Errorf("non-pipe markdown characters must pass through: %q", row)
	}
	if strings.Contains(row, "\n") {
		t.Errorf("newline survived into table row: %q", row)
	}
}

func TestRenderDocument_ImageDataURI(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4E, 0x47}
	doc := &Document{
		Title: "t",
		Sections: []Section{{
			Name:  "Slide 1",
			Items: []ContentItem{{Kind: KindImage, Data: payload, Format: "png"}},
		}},
	}

	md := renderDocument(doc)
	wantURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	if !strings.Contains(md, "![Slide 1 Image 1]("+wantURI+")") {
		t.Errorf("image line mismatch:\n%s", md)
	}
}

func TestRenderDocument_ImageAltNumbersPerSection(t *testing.T) {
	doc := &Document{
		Title: "t",
		Sections: []Section{
			{Name: "Slide 1", Items: []ContentItem{
				{Kind: KindImage, Data: []byte("a"), Format: "png"},
				{Kind: KindImage, Data: []byte("b"), Format: "png"},
			}},
			{Name: "Slide 2", Items: []ContentItem{
				{Kind: KindImage, Data: []byte("c"), Format: "png"},
			}},
		},
	}

	md := renderDocument(doc)
	for _, want := range []string{"![Slide 1 Image 1]", "![Slide 1 Image 2]", "![Slide 2 Image 1]"} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
}

func TestRenderDocument_ChartLabelAsAlt(t *testing.T) {
	doc := &Document{
		Title: "t",
		Sections: []Section{{
			Name:  "Sheet: S",
			Items: []ContentItem{{Kind: KindChart, Data: []byte("png"), Format: "png", Label: "Chart: Sales"}},
		}},
	}
	if md := renderDocument(doc); !strings.Contains(md, "![Chart: Sales](") {
		t.Errorf("chart label not used as alt text:\n%s", md)
	}
}

func TestRenderDocument_LinkedItems(t *testing.T) {
	doc := &Document{
		Title: "t",
		Sections: []Section{{
			Name: "Slide 1",
			Items: []ContentItem{
				{Kind: KindText, Text: "visit", Link: "https://example.com"},
				{Kind: KindImage, Data: []byte("i"), Format: "png", Link: "https://img.example"},
			},
		}},
	}

	md := renderDocument(doc)
	if !strings.Contains(md, "[visit](https://example.com)") {
		t.Errorf("linked text not rendered:\n%s", md)
	}
	if !strings.Contains(md, "[![Slide 1 Image 1](data:") || !strings.Contains(md, ")](https://img.example)") {
		t.Errorf("linked image not wrapped:\n%s", md)
	}
}

func TestMimeType(t *testing.T) {
	cases := map[string]string{
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"":     "image/png",
	}
	for format, want := range cases {
		if got := mimeType(format); got != want {
			t.Errorf("mimeType(%q) = %q, want %q", format, got, want)
		}
	}
}

// End-to-end over the composition pipeline: order, dedup, links, serialize.
func TestRenderDocument_FullSectionPipeline(t *testing.T) {
	bounds := NewRect(0, 100, 50, 110)
	raw := []ContentItem{
		{Kind: KindTable, Cells: []string{"h1", "h2"}, Anchor: RowColAnchor(1, 0)},
		{Kind: KindImage, Data: []byte("dup"), Format: "png", Anchor: RowColAnchor(5, 1)},
		{Kind: KindTable, Cells: []string{"v1", "v2"}, Anchor: RowColAnchor(2, 0)},
		{Kind: KindImage, Data: []byte("dup"), Format: "png", Anchor: RowColAnchor(9, 1)},
		{Kind: KindText, Text: "note", Anchor: RowColAnchor(3, 0), Bounds: &bounds},
	}
	regions := []LinkRegion{{Rect: NewRect(0, 0, 200, 200), Target: "https://example.com"}}

	items := newDeduper().filter(raw)
	resolveLinks(items, regions)
	doc := &Document{Title: "t", Sections: []Section{{Name: "Sheet: S", Items: orderItems(items)}}}
	md := renderDocument(doc)

	// One table (rows 1-2), then the linked note, then one image.
	hIdx := strings.Index(md, "| h1 | h2 |")
	vIdx := strings.Index(md, "| v1 | v2 |")
	nIdx := strings.Index(md, "[note](https://example.com)")
	iIdx := strings.Index(md, "![Sheet: S Image 1]")
	if hIdx < 0 || vIdx < 0 || nIdx < 0 || iIdx < 0 {
		t.Fatalf("missing expected fragments:\n%s", md)
	}
	if !(hIdx < vIdx && vIdx < nIdx && nIdx < iIdx) {
		t.Errorf("reading order wrong:\n%s", md)
	}
	if strings.Count(md, "![") != 1 {
		t.Errorf("duplicate image not collapsed:\n%s", md)
	}
}

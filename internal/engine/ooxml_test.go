package engine

import (
	"archive/zip"
	"bytes"
	"testing"
)

// buildArchive assembles an in-memory ZIP from part name -> content.
func buildArchive(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestOpenArchive_RejectsGarbage(t *testing.T) {
	if _, err := openArchive([]byte("not a zip file")); err == nil {
		t.Error("expected error for non-zip data")
	}
}

func TestReadArchiveFile(t *testing.T) {
	data := buildArchive(t, map[string]string{"a/b.xml": "<x/>"})
	zr, err := openArchive(data)
	if err != nil {
		t.Fatalf("openArchive: %v", err)
	}

	content, err := readArchiveFile(zr, "a/b.xml")
	if err != nil {
		t.Fatalf("readArchiveFile: %v", err)
	}
	if string(content) != "<x/>" {
		t.Errorf("content = %q", content)
	}

	if _, err := readArchiveFile(zr, "missing.xml"); err == nil {
		t.Error("expected error for missing part")
	}
}

func TestParseRels(t *testing.T) {
	rels, err := parseRels([]byte(`<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="t" Target="../media/image1.png"/>
  <Relationship Id="rId2" Type="t" Target="https://example.com" TargetMode="External"/>
</Relationships>`))
	if err != nil {
		t.Fatalf("parseRels: %v", err)
	}

	if rel := rels["rId1"]; rel.Target != "../media/image1.png" || rel.External {
		t.Errorf("rId1 = %+v", rel)
	}
	if rel := rels["rId2"]; rel.Target != "https://example.com" || !rel.External {
		t.Errorf("rId2 = %+v", rel)
	}
}

func TestLoadRels_MissingPartYieldsEmptyTable(t *testing.T) {
	data := buildArchive(t, map[string]string{"xl/workbook.xml": "<x/>"})
	zr, _ := openArchive(data)

	rels := loadRels(zr, "xl/workbook.xml")
	if rels == nil || len(rels) != 0 {
		t.Errorf("rels = %v, want empty non-nil map", rels)
	}
}

func TestResolvePartPath(t *testing.T) {
	cases := []struct {
		part, target, want string
	}{
		{"xl/drawings/drawing1.xml", "../media/image1.png", "xl/media/image1.png"},
		{"xl/workbook.xml", "worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"word/document.xml", "media/pic.png", "word/media/pic.png"},
	}
	for _, tc := range cases {
		if got := resolvePartPath(tc.part, tc.target); got != tc.want {
			t.Errorf("resolvePartPath(%q, %q) = %q, want %q", tc.part, tc.target, got, tc.want)
		}
	}
}

func TestEMUToPoints(t *testing.T) {
	if got := emuToPoints(914400); got != 72 {
		t.Errorf("one inch = %v points, want 72", got)
	}
	if got := emuToPoints(12700); got != 1 {
		t.Errorf("12700 EMU = %v points, want 1", got)
	}
}

func TestCellRef(t *testing.T) {
	cases := map[string]struct{ row, col int }{
		"A1":   {1, 1},
		"B2":   {2, 2},
		"Z10":  {10, 26},
		"AA3":  {3, 27},
		"AB12": {12, 28},
	}
	for want, rc := range cases {
		if got := cellRef(rc.row, rc.col); got != want {
			t.Errorf("cellRef(%d, %d) = %q, want %q", rc.row, rc.col, got, want)
		}
	}
}

func TestChartTitle(t *testing.T) {
	chartXML := `<?xml version="1.0"?>
<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <c:chart>
    <c:title><c:tx><c:rich><a:p><a:r><a:t>Quarterly </a:t></a:r><a:r><a:t>Sales</a:t></a:r></a:p></c:rich></c:tx></c:title>
    <c:plotArea><c:valAx><c:txPr><a:p><a:r><a:t>axis label</a:t></a:r></a:p></c:txPr></c:valAx></c:plotArea>
  </c:chart>
</c:chartSpace>`
	if got := chartTitle([]byte(chartXML)); got != "Quarterly Sales" {
		t.Errorf("chartTitle = %q, want %q", got, "Quarterly Sales")
	}

	if got := chartTitle([]byte(`<c:chartSpace xmlns:c="x"><c:chart/></c:chartSpace>`)); got != "" {
		t.Errorf("untitled chart returned %q", got)
	}
}

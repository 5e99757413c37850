package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConvert_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(src, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(nil).Convert(context.Background(), src, dir)
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !strings.Contains(err.Error(), "txt") || !strings.Contains(err.Error(), "docx") {
		t.Errorf("error should name the extension and the supported list: %v", err)
	}
}

func TestConvert_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(nil).Convert(context.Background(), filepath.Join(dir, "absent.docx"), dir); err == nil {
		t.Error("expected error for missing source file")
	}
}

func TestConvert_DocxEndToEnd(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"word/document.xml": docxBody(`
<w:p><w:r><w:t>Opening line</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>k</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>v</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`),
		"word/_rels/document.xml.rels": docxRelsXML,
	})
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	if err := os.WriteFile(src, archive, 0o644); err != nil {
		t.Fatal(err)
	}

	outPath, err := New(nil).Convert(context.Background(), src, dir)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if outPath != filepath.Join(dir, "report.md") {
		t.Errorf("outPath = %q", outPath)
	}

	md, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(md)
	if !strings.HasPrefix(text, "# report\n") {
		t.Errorf("output missing title heading:\n%s", text)
	}
	if !strings.Contains(text, "Opening line") {
		t.Errorf("output missing paragraph:\n%s", text)
	}
	if !strings.Contains(text, "| k | v |") {
		t.Errorf("output missing table row:\n%s", text)
	}
}

func TestConvert_Deterministic(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"word/document.xml": docxBody(`
<w:p><w:r><w:t>alpha</w:t></w:r></w:p>
<w:p><w:r><w:t>beta</w:t></w:r></w:p>`),
		"word/_rels/document.xml.rels": docxRelsXML,
	})
	dir := t.TempDir()
	src := filepath.Join(dir, "stable.docx")
	if err := os.WriteFile(src, archive, 0o644); err != nil {
		t.Fatal(err)
	}

	e := New(nil)
	first, err := e.Convert(context.Background(), src, dir)
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	firstMD, _ := os.ReadFile(first)

	second, err := e.Convert(context.Background(), src, dir)
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}
	secondMD, _ := os.ReadFile(second)

	if !bytes.Equal(firstMD, secondMD) {
		t.Error("repeat conversion of the same input produced different output")
	}
}

func TestExtensions(t *testing.T) {
	exts := New(nil).Extensions()
	for _, want := range []string{"xlsx", "xls", "pdf", "pptx", "ppt", "docx", "doc"} {
		found := false
		for _, e := range exts {
			if e == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Extensions missing %q", want)
		}
	}
}

func TestName(t *testing.T) {
	if got := New(nil).Name(); got != "engine" {
		t.Errorf("Name = %q", got)
	}
}

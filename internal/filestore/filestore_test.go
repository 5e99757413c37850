package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testID = "0123456789abcdef0123456789abcdef"

func TestSaveAndPath(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, n, err := s.Save(testID, "report.xlsx", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != int64(len("content")) {
		t.Errorf("wrote %d bytes, want %d", n, len("content"))
	}
	if filepath.Base(path) != testID+".xlsx" {
		t.Errorf("stored as %q, want id-keyed name with extension", filepath.Base(path))
	}

	got, err := s.Path(testID, "report.xlsx")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content = %q", data)
	}
}

func TestPath_MissingFile(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Path(testID, "report.xlsx"); err == nil {
		t.Error("expected error for missing upload")
	}
}

func TestDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := s.Save(testID, "a.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete(testID, "a.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Path(testID, "a.pdf"); err == nil {
		t.Error("file still present after Delete")
	}

	// Deleting again is not an error
	if err := s.Delete(testID, "a.pdf"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSave_RejectsUnsafeID(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, id := range []string{"", "../escape", "ABC123", "id with spaces"} {
		if _, _, err := s.Save(id, "a.pdf", strings.NewReader("x")); err == nil {
			t.Errorf("Save accepted unsafe id %q", id)
		}
	}
}

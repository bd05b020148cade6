package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dossier.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestExtract_PlainTextFile(t *testing.T) {
	e := New()
	path := writeFile(t, "cctp.txt", "Lot 01 - Gros Œuvre\r\nfondations")

	ext, err := e.Extract(context.Background(), path, "cctp.txt")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !ext.Success {
		t.Fatalf("expected success, errors: %v", ext.Errors)
	}
	if ext.UnitsProcessed != 1 {
		t.Errorf("expected 1 unit processed, got %d", ext.UnitsProcessed)
	}
	if !strings.Contains(ext.Text, "fondations") {
		t.Errorf("text missing content: %q", ext.Text)
	}
	if strings.Contains(ext.Text, "\r\n") {
		t.Error("line endings should be normalized")
	}
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := New()
	path := writeFile(t, "plans.dwg", "binary")

	ext, err := e.Extract(context.Background(), path, "plans.dwg")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ext.Success {
		t.Error("unsupported type must not succeed")
	}
	if len(ext.Errors) == 0 {
		t.Error("expected an error entry naming the unsupported type")
	}
}

func TestExtract_EmptyFile(t *testing.T) {
	e := New()
	path := writeFile(t, "vide.txt", "   \n  ")

	ext, err := e.Extract(context.Background(), path, "vide.txt")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ext.Success {
		t.Error("blank file must not succeed")
	}
}

func TestExtract_ArchiveMixedEntries(t *testing.T) {
	e := New()
	path := writeZip(t, map[string]string{
		"docs/rc.txt":      "règlement de consultation",
		"docs/cctp.md":     "Lot 06 plomberie",
		"plans/niveau.dwg": "binary blob",
		".DS_Store":        "junk",
	})

	ext, err := e.Extract(context.Background(), path, "dossier.zip")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !ext.Success {
		t.Fatalf("expected success, errors: %v", ext.Errors)
	}
	if ext.UnitsProcessed != 2 {
		t.Errorf("expected 2 readable documents, got %d", ext.UnitsProcessed)
	}
	if !strings.Contains(ext.Text, "règlement de consultation") || !strings.Contains(ext.Text, "plomberie") {
		t.Errorf("text missing document contents: %q", ext.Text)
	}
	// Unsupported entries are reported, not fatal.
	found := false
	for _, e := range ext.Errors {
		if strings.Contains(e, "niveau.dwg") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unsupported entry to be reported: %v", ext.Errors)
	}
	// Section order follows entry names for deterministic output.
	if strings.Index(ext.Text, "plomberie") > strings.Index(ext.Text, "règlement") {
		t.Error("expected name-sorted section order")
	}
}

func TestExtract_ArchiveWithNoReadableEntries(t *testing.T) {
	e := New()
	path := writeZip(t, map[string]string{"photo.jpg": "jpeg"})

	ext, err := e.Extract(context.Background(), path, "dossier.zip")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ext.Success {
		t.Error("archive without readable documents must not succeed")
	}
}

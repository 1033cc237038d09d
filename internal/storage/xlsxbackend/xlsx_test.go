package xlsxbackend

import (
	"path/filepath"
	"testing"

	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/xuri/excelize/v2"
)

func TestExporter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inurl_admin_results.xlsx")

	in := []storage.Result{
		{Title: "Admin login", Link: "https://example.com/admin"},
		{Title: "Dashboard & more", Link: "https://example.com/dash?x=1,2"},
		{Title: "Missing href", Link: ""},
	}

	if err := (Exporter{}).Export(path, in); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("Failed to read back: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %d rows, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, in[i], out[i])
		}
	}
}

func TestExporter_SheetLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty_results.xlsx")

	if err := (Exporter{}).Export(path, nil); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != SheetName {
		t.Fatalf("expected single sheet %q, got %v", SheetName, sheets)
	}

	a1, _ := f.GetCellValue(SheetName, "A1")
	b1, _ := f.GetCellValue(SheetName, "B1")
	if a1 != "Title" || b1 != "Link" {
		t.Errorf("expected header Title/Link, got %q/%q", a1, b1)
	}

	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 {
		t.Errorf("expected header row only, got %d rows", len(rows))
	}
}

func TestExporter_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dork_results.xlsx")
	e := Exporter{}

	_ = e.Export(path, []storage.Result{{Title: "a", Link: "1"}, {Title: "b", Link: "2"}})
	if err := e.Export(path, []storage.Result{{Title: "c", Link: "3"}}); err != nil {
		t.Fatalf("Failed to re-export: %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 || out[0].Title != "c" {
		t.Errorf("expected prior content replaced, got %+v", out)
	}
}

func TestExporter_UncreatablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir.xlsx")
	if err := (Exporter{}).Export(path, nil); err == nil {
		t.Fatal("expected error for uncreatable path")
	}
}

package xlsxbackend

import (
	"fmt"

	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet every workbook carries.
const SheetName = "Results"

// ensure Exporter implements storage.Exporter
var _ storage.Exporter = Exporter{}

// Exporter writes results as an Excel workbook.
type Exporter struct{}

// Extension implements storage.Exporter.
func (Exporter) Extension() string { return "xlsx" }

// Export builds a one-sheet workbook with the header row and one row per
// result, then saves it over path.
func (Exporter) Export(path string, results []storage.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	if err := sw.SetRow("A1", []any{storage.Header[0], storage.Header[1]}); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell for row %d: %w", i+2, err)
		}
		if err := sw.SetRow(cell, []any{r.Title, r.Link}); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush xlsx: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// Read loads the Results sheet of a workbook written by Export, dropping the
// header row.
func Read(path string) ([]storage.Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read xlsx: missing header")
	}

	results := make([]storage.Result, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var r storage.Result
		// GetRows trims trailing empty cells.
		if len(row) > 0 {
			r.Title = row[0]
		}
		if len(row) > 1 {
			r.Link = row[1]
		}
		results = append(results, r)
	}
	return results, nil
}

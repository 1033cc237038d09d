package csvbackend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/FranksOps/dorkr/internal/storage"
)

// ensure Exporter implements storage.Exporter
var _ storage.Exporter = Exporter{}

// Exporter writes results as comma-separated text.
type Exporter struct{}

// Extension implements storage.Exporter.
func (Exporter) Extension() string { return "csv" }

// Export truncates path and writes the header plus one row per result.
func (Exporter) Export(path string, results []storage.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}

	if err := write(f, results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	return nil
}

func write(w io.Writer, results []storage.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(storage.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write([]string{r.Title, r.Link}); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Write streams results to w in the export format.
func Write(w io.Writer, results []storage.Result) error {
	return write(w, results)
}

// RecordHeader is the column row of WriteRecords.
var RecordHeader = []string{"RunID", "Dork", "Position", "Title", "Link", "ScrapedAt"}

// WriteRecords streams archived records to w, one row each, with times in
// RFC 3339.
func WriteRecords(w io.Writer, records []storage.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.RunID,
			r.Dork,
			strconv.Itoa(r.Position),
			r.Title,
			r.Link,
			r.ScrapedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Read loads an export written by Export. The header row is checked and
// dropped.
func Read(path string) ([]storage.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(storage.Header)

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv: missing header")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if header[0] != storage.Header[0] || header[1] != storage.Header[1] {
		return nil, fmt.Errorf("read csv: unexpected header %v", header)
	}

	results := []storage.Result{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		results = append(results, storage.Result{Title: record[0], Link: record[1]})
	}
	return results, nil
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/dorkr/internal/config"
	"github.com/FranksOps/dorkr/internal/scraper"
	"github.com/FranksOps/dorkr/internal/serp"
	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/FranksOps/dorkr/internal/storage/csvbackend"
	"github.com/FranksOps/dorkr/internal/storage/jsonbackend"
	"github.com/FranksOps/dorkr/internal/storage/xlsxbackend"
	"github.com/FranksOps/dorkr/pkg/ratelimit"
)

// stubFetcher serves one matching element per request, except for dorks in
// failFor which always fail at the transport.
type stubFetcher struct {
	failFor map[string]bool
	calls   map[string]int
}

func (s *stubFetcher) Fetch(_ context.Context, targetURL, _ string) (*scraper.Page, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}
	dork := u.Query().Get("q")
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[dork]++
	if s.failFor[dork] {
		return nil, scraper.ErrConnection{Err: errors.New("connection refused")}
	}
	body := `<html><h3><a href="https://` + dork + `.example/">Result for ` + dork + `</a></h3></html>`
	return &scraper.Page{StatusCode: 200, Body: []byte(body)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, f scraper.PageFetcher, outDir string, archive storage.Archive) *Pipeline {
	t.Helper()
	loop, err := scraper.NewLoop(scraper.LoopConfig{
		Fetcher:  f,
		Endpoint: serp.Google{BaseURL: "https://search.example/search"},
		Sleep:    func(context.Context, time.Duration) error { return nil },
		Logger:   discardLogger(),
		Options: scraper.Options{
			RequestCount:  1,
			Delay:         ratelimit.Range{Min: time.Second, Max: 2 * time.Second},
			MaxRetries:    1,
			TrailingDelay: true,
		},
	})
	if err != nil {
		t.Fatalf("failed to create loop: %v", err)
	}

	p, err := New(Config{
		Scraper:   loop,
		Exporters: []storage.Exporter{csvbackend.Exporter{}, xlsxbackend.Exporter{}},
		OutputDir: outDir,
		Archive:   archive,
		RunID:     "run-test",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return p
}

func writeDorkFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dorks.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("failed to write dork file: %v", err)
	}
	return path
}

func TestPipeline_TwoDorksFromFile(t *testing.T) {
	dorks, err := LoadDorks("", writeDorkFile(t, "a", "b"))
	if err != nil {
		t.Fatalf("failed to load dorks: %v", err)
	}

	outDir := t.TempDir()
	f := &stubFetcher{}
	p := newTestPipeline(t, f, outDir, nil)

	summary, err := p.Run(context.Background(), dorks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalDorks != 2 || summary.FailedDorks != 0 {
		t.Fatalf("expected 2 successful dorks, got %+v", summary)
	}

	for _, dork := range []string{"a", "b"} {
		csvPath := filepath.Join(outDir, dork+"_results.csv")
		results, err := csvbackend.Read(csvPath)
		if err != nil {
			t.Fatalf("failed to read %s: %v", csvPath, err)
		}
		if len(results) != 1 {
			t.Fatalf("expected exactly one result for %s, got %d", dork, len(results))
		}
		if results[0].Link != "https://"+dork+".example/" {
			t.Errorf("unexpected link for %s: %s", dork, results[0].Link)
		}

		xlsxResults, err := xlsxbackend.Read(filepath.Join(outDir, dork+"_results.xlsx"))
		if err != nil {
			t.Fatalf("failed to read xlsx for %s: %v", dork, err)
		}
		if len(xlsxResults) != 1 || xlsxResults[0] != results[0] {
			t.Errorf("expected xlsx to match csv for %s, got %+v", dork, xlsxResults)
		}
	}
}

func TestPipeline_FailureIsolation(t *testing.T) {
	outDir := t.TempDir()
	f := &stubFetcher{failFor: map[string]bool{"a": true}}
	p := newTestPipeline(t, f, outDir, nil)

	summary, err := p.Run(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("expected run to complete, got %v", err)
	}
	if f.calls["b"] != 1 {
		t.Errorf("expected dork b to be scraped after a failed, got %d calls", f.calls["b"])
	}

	// An exhausted dork still gets header-only files.
	aResults, err := csvbackend.Read(filepath.Join(outDir, "a_results.csv"))
	if err != nil {
		t.Fatalf("expected header-only file for a: %v", err)
	}
	if len(aResults) != 0 {
		t.Errorf("expected zero rows for a, got %d", len(aResults))
	}
	raw, err := os.ReadFile(filepath.Join(outDir, "a_results.csv"))
	if err != nil {
		t.Fatalf("failed to read raw csv: %v", err)
	}
	if string(raw) != "Title,Link\n" {
		t.Errorf("expected header only, got %q", raw)
	}

	bResults, err := csvbackend.Read(filepath.Join(outDir, "b_results.csv"))
	if err != nil {
		t.Fatalf("failed to read b: %v", err)
	}
	if len(bResults) != 1 {
		t.Errorf("expected one result for b, got %d", len(bResults))
	}

	if summary.Dorks[0].ExhaustedSlots != 1 || summary.Dorks[1].Results != 1 {
		t.Errorf("unexpected per-dork summary %+v", summary.Dorks)
	}
}

func TestPipeline_ExportFailureContinues(t *testing.T) {
	// A file where the output directory should be makes every export fail.
	blocker := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("failed to create blocker: %v", err)
	}

	f := &stubFetcher{}
	p := newTestPipeline(t, f, blocker, nil)

	summary, err := p.Run(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("expected run to complete, got %v", err)
	}
	if summary.FailedDorks != 2 {
		t.Errorf("expected both dorks to fail export, got %d", summary.FailedDorks)
	}
	if f.calls["a"] != 1 || f.calls["b"] != 1 {
		t.Errorf("expected both dorks scraped, got %v", f.calls)
	}
}

func TestPipeline_ScrapeErrorSkipsExport(t *testing.T) {
	outDir := t.TempDir()
	p := newTestPipeline(t, &stubFetcher{}, outDir, nil)

	summary, err := p.Run(context.Background(), []string{"  ", "b"})
	if err != nil {
		t.Fatalf("expected run to complete, got %v", err)
	}
	if summary.Dorks[0].Error == "" {
		t.Error("expected blank dork to be recorded as failed")
	}
	if _, err := os.Stat(filepath.Join(outDir, "dork_results.csv")); !os.IsNotExist(err) {
		t.Errorf("expected no file for a failed scrape, stat err %v", err)
	}
	if summary.Dorks[1].Results != 1 {
		t.Errorf("expected b to succeed, got %+v", summary.Dorks[1])
	}
}

func TestPipeline_Archive(t *testing.T) {
	archive, err := jsonbackend.New(filepath.Join(t.TempDir(), "archive.jsonl"))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer archive.Close()

	p := newTestPipeline(t, &stubFetcher{}, t.TempDir(), archive)
	if _, err := p.Run(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := archive.Query(context.Background(), storage.Filter{RunID: "run-test"})
	if err != nil {
		t.Fatalf("failed to query archive: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 archived records, got %d", len(records))
	}
	for _, r := range records {
		if r.Position != 1 || r.RunID != "run-test" {
			t.Errorf("unexpected record %+v", r)
		}
	}
}

func TestPipeline_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &stubFetcher{}
	p := newTestPipeline(t, f, t.TempDir(), nil)
	_, err := p.Run(ctx, []string{"a", "b"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("expected no fetches after cancellation, got %v", f.calls)
	}
}

func TestPipeline_DuplicateNames(t *testing.T) {
	outDir := t.TempDir()
	p := newTestPipeline(t, &stubFetcher{}, outDir, nil)

	// "a b 2" sanitizes to the stem already handed to "a-b".
	summary, err := p.Run(context.Background(), []string{"a b", "a-b", "a b 2", "a_b_2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a_b", "a_b_2", "a_b_2_2", "a_b_2_3"}
	for i, name := range want {
		if summary.Dorks[i].Name != name {
			t.Errorf("dork %q: expected name %s, got %s", summary.Dorks[i].Dork, name, summary.Dorks[i].Name)
		}
	}
	for i, name := range want {
		results, err := csvbackend.Read(filepath.Join(outDir, name+"_results.csv"))
		if err != nil {
			t.Fatalf("expected file for %s: %v", name, err)
		}
		wantLink := "https://" + summary.Dorks[i].Dork + ".example/"
		if len(results) != 1 || results[0].Link != wantLink {
			t.Errorf("%s was overwritten: got %+v, want link %s", name, results, wantLink)
		}
	}
}

func TestNameSet_Claim(t *testing.T) {
	s := newNameSet()
	for _, tt := range []struct{ in, want string }{
		{"x", "x"},
		{"x_2", "x_2"},
		{"x", "x_3"},
		{"x", "x_4"},
		{"x_2", "x_2_2"},
	} {
		if got := s.claim(tt.in); got != tt.want {
			t.Errorf("claim(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// csvNamed is a distinct exporter type that still writes .csv files.
type csvNamed struct{ csvbackend.Exporter }

func TestNew_RejectsSharedExtension(t *testing.T) {
	loop, _ := scraper.NewLoop(scraper.LoopConfig{Fetcher: &stubFetcher{}})
	tests := [][]storage.Exporter{
		{csvbackend.Exporter{}, csvbackend.Exporter{}},
		{csvbackend.Exporter{}, xlsxbackend.Exporter{}, csvNamed{}},
	}
	for _, exporters := range tests {
		_, err := New(Config{Scraper: loop, Exporters: exporters})
		if err == nil || !strings.Contains(err.Error(), ".csv") {
			t.Errorf("expected shared .csv extension to be rejected, got %v", err)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Exporters: []storage.Exporter{csvbackend.Exporter{}}}); err == nil {
		t.Error("expected error for nil scraper")
	}
	loop, _ := scraper.NewLoop(scraper.LoopConfig{Fetcher: &stubFetcher{}})
	if _, err := New(Config{Scraper: loop}); err == nil {
		t.Error("expected error for no exporters")
	}
	p, err := New(Config{Scraper: loop, Exporters: []storage.Exporter{csvbackend.Exporter{}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.RunID() == "" {
		t.Error("expected a generated run id")
	}
}

func TestLoadDorks(t *testing.T) {
	if _, err := LoadDorks("", ""); !errors.Is(err, config.ErrNoDorkSource) {
		t.Errorf("expected ErrNoDorkSource, got %v", err)
	}
	if _, err := LoadDorks("a", "dorks.txt"); !errors.Is(err, config.ErrConflictingDorkSource) {
		t.Errorf("expected ErrConflictingDorkSource, got %v", err)
	}

	dorks, err := LoadDorks("  inurl:login  ", "")
	if err != nil || len(dorks) != 1 || dorks[0] != "inurl:login" {
		t.Errorf("expected single trimmed dork, got %v (err %v)", dorks, err)
	}

	path := writeDorkFile(t, "# admin panels", "inurl:admin", "", "   ", "intitle:\"index of\"  ")
	dorks, err = LoadDorks("", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(dorks, "|") != `inurl:admin|intitle:"index of"` {
		t.Errorf("unexpected dorks %q", dorks)
	}

	if _, err := LoadDorks("", filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing dork file")
	}
	if _, err := LoadDorks("", writeDorkFile(t, "", "# only comments")); err == nil {
		t.Error("expected error for empty dork file")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a", "a"},
		{"inurl:admin", "inurl_admin"},
		{`intitle:"index of" /etc`, "intitle_index_of_etc"},
		{"site:example.com filetype:pdf", "site_example_com_filetype_pdf"},
		{"  --leading and trailing--  ", "leading_and_trailing"},
		{"::::", "dork"},
		{"", "dork"},
		{"café", "caf"},
		{strings.Repeat("ab ", 100), strings.TrimRight(strings.Repeat("ab_", 40), "_")},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got := SanitizeName(tt.in); len(got) > maxNameLen {
			t.Errorf("SanitizeName(%q) exceeds %d bytes", tt.in, maxNameLen)
		}
	}
}

package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/dorkr/internal/config"
	"github.com/FranksOps/dorkr/internal/metrics"
	"github.com/FranksOps/dorkr/internal/report"
	"github.com/FranksOps/dorkr/internal/scraper"
	"github.com/FranksOps/dorkr/internal/storage"
)

// maxNameLen caps sanitized file name stems.
const maxNameLen = 120

// Scraper runs the request slots of one dork. *scraper.Loop satisfies it.
type Scraper interface {
	Scrape(ctx context.Context, dork string) ([]storage.Result, scraper.Stats, error)
}

// Config wires a Pipeline. Scraper and at least one Exporter are required.
type Config struct {
	Scraper   Scraper
	Exporters []storage.Exporter
	OutputDir string
	// Archive, when set, receives every result after its files are written.
	Archive storage.Archive
	// RunID stamps archived records; empty generates a UUID.
	RunID  string
	Logger *slog.Logger
}

// Pipeline is the batch driver: it scrapes each dork in turn and exports its
// results, isolating per-dork failures from the rest of the batch.
type Pipeline struct {
	scraper   Scraper
	exporters []storage.Exporter
	outputDir string
	archive   storage.Archive
	runID     string
	logger    *slog.Logger
	now       func() time.Time
}

// New validates cfg and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Scraper == nil {
		return nil, errors.New("pipeline: scraper is nil")
	}
	if len(cfg.Exporters) == 0 {
		return nil, errors.New("pipeline: no exporters configured")
	}
	extensions := make(map[string]bool, len(cfg.Exporters))
	for _, exp := range cfg.Exporters {
		ext := exp.Extension()
		if extensions[ext] {
			return nil, fmt.Errorf("pipeline: more than one exporter writes .%s files", ext)
		}
		extensions[ext] = true
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		scraper:   cfg.Scraper,
		exporters: cfg.Exporters,
		outputDir: cfg.OutputDir,
		archive:   cfg.Archive,
		runID:     cfg.RunID,
		logger:    cfg.Logger,
		now:       time.Now,
	}, nil
}

// RunID identifies this pipeline's run in the archive.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run processes dorks strictly in order. A failing dork is logged and recorded
// in the summary; only ctx cancellation stops the pass early.
func (p *Pipeline) Run(ctx context.Context, dorks []string) (report.Summary, error) {
	start := p.now()
	rows := make([]report.Dork, 0, len(dorks))
	names := newNameSet()

	p.logger.Info("starting run", "run_id", p.runID, "dorks", len(dorks))

	for _, dork := range dorks {
		if err := ctx.Err(); err != nil {
			return report.GenerateSummary(p.runID, start, p.now(), rows), err
		}

		row, err := p.processDork(ctx, dork, names.claim(SanitizeName(dork)))
		rows = append(rows, row)
		if err != nil {
			metrics.DorksTotal.WithLabelValues("canceled").Inc()
			return report.GenerateSummary(p.runID, start, p.now(), rows), err
		}
	}

	summary := report.GenerateSummary(p.runID, start, p.now(), rows)
	p.logger.Info("run complete",
		"run_id", p.runID,
		"dorks", summary.TotalDorks,
		"failed", summary.FailedDorks,
		"results", summary.TotalResults,
		"duration", summary.Duration,
	)
	return summary, nil
}

// processDork returns an error only when ctx ends the run.
func (p *Pipeline) processDork(ctx context.Context, dork, name string) (report.Dork, error) {
	row := report.Dork{Dork: dork, Name: name}
	p.logger.Info("processing dork", "dork", dork)

	results, stats, err := p.scraper.Scrape(ctx, dork)
	row.Results = len(results)
	row.Attempts = stats.Attempts
	row.Retries = stats.Retries
	row.ExhaustedSlots = stats.ExhaustedSlots
	if err != nil {
		if ctx.Err() != nil {
			row.Error = err.Error()
			return row, err
		}
		p.logger.Error("failed to scrape dork", "dork", dork, "err", err)
		row.Error = err.Error()
		metrics.DorksTotal.WithLabelValues("failed").Inc()
		return row, nil
	}

	job := storage.ExportJob{Dork: dork, Name: name, Results: results}
	files, err := p.Export(ctx, job)
	row.Files = files
	if err != nil {
		p.logger.Error("failed to export dork", "dork", dork, "err", err)
		row.Error = err.Error()
		metrics.DorksTotal.WithLabelValues("failed").Inc()
		return row, nil
	}

	if p.archive != nil {
		if err := p.archive.Save(ctx, storage.Records(p.runID, job, p.now())...); err != nil {
			p.logger.Error("failed to archive dork", "dork", dork, "err", err)
			row.Error = fmt.Sprintf("archive: %v", err)
			metrics.DorksTotal.WithLabelValues("failed").Inc()
			return row, nil
		}
	}

	metrics.DorksTotal.WithLabelValues("ok").Inc()
	return row, nil
}

// Export writes job to <outputDir>/<name>_results.<ext> for every exporter.
// The formats target distinct paths, so they are written concurrently. The
// returned paths are in exporter order and only include files written.
func (p *Pipeline) Export(ctx context.Context, job storage.ExportJob) ([]string, error) {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, len(p.exporters))
	written := make([]bool, len(p.exporters))

	g, _ := errgroup.WithContext(ctx)
	for i, exp := range p.exporters {
		path := filepath.Join(p.outputDir, job.Name+"_results."+exp.Extension())
		paths[i] = path
		g.Go(func() error {
			if err := exp.Export(path, job.Results); err != nil {
				return fmt.Errorf("write %s: %w", exp.Extension(), err)
			}
			written[i] = true
			p.logger.Info("saved results", "dork", job.Dork, "path", path, "results", len(job.Results))
			return nil
		})
	}
	err := g.Wait()

	files := make([]string, 0, len(paths))
	for i, path := range paths {
		if written[i] {
			files = append(files, path)
		}
	}
	return files, err
}

// LoadDorks resolves the dork source. Exactly one of single and path must be
// set. File lines are trimmed; blank lines and lines starting with '#' are
// skipped.
func LoadDorks(single, path string) ([]string, error) {
	single = strings.TrimSpace(single)
	switch {
	case single == "" && path == "":
		return nil, config.ErrNoDorkSource
	case single != "" && path != "":
		return nil, config.ErrConflictingDorkSource
	case single != "":
		return []string{single}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dork file: %w", err)
	}
	defer f.Close()

	var dorks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dorks = append(dorks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dork file: %w", err)
	}
	if len(dorks) == 0 {
		return nil, fmt.Errorf("dork file %s contains no dorks", path)
	}
	return dorks, nil
}

// SanitizeName turns a dork into a file name stem: every run of characters
// other than ASCII letters and digits becomes a single underscore, leading and
// trailing underscores are dropped, and the result is capped at 120 bytes.
// A dork with no usable characters maps to "dork".
func SanitizeName(dork string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range dork {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	name := b.String()
	if len(name) > maxNameLen {
		name = strings.TrimRight(name[:maxNameLen], "_")
	}
	if name == "" {
		return "dork"
	}
	return name
}

// nameSet hands out unique stems so two dorks that sanitize alike do not
// overwrite each other's files within a run.
type nameSet map[string]bool

func newNameSet() nameSet {
	return nameSet{}
}

// claim returns name, or the first of name_2, name_3... not yet handed out.
func (s nameSet) claim(name string) string {
	candidate := name
	for n := 2; s[candidate]; n++ {
		candidate = name + "_" + strconv.Itoa(n)
	}
	s[candidate] = true
	return candidate
}

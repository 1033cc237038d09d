package storage

import (
	"context"
	"time"
)

// Header is the column row every export starts with.
var Header = []string{"Title", "Link"}

// Result is one search hit: the anchor text and its href.
type Result struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ExportJob is the ordered result set of one dork, bound to the file name
// stem it is written under.
type ExportJob struct {
	Dork    string
	Name    string
	Results []Result
}

// Exporter writes a result sequence to a single tabular file, replacing any
// previous content at path.
type Exporter interface {
	// Extension is the file suffix without the dot, e.g. "csv".
	Extension() string
	Export(path string, results []Result) error
}

// Record is an archived Result with its provenance.
type Record struct {
	RunID     string    `json:"run_id"`
	Dork      string    `json:"dork"`
	Position  int       `json:"position"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Filter narrows an archive query. Zero fields match everything.
type Filter struct {
	Dork   string
	RunID  string
	Since  *time.Time
	Limit  int
	Offset int
}

// Archive keeps every scraped result across runs.
type Archive interface {
	Save(ctx context.Context, records ...Record) error
	// Query returns matching records newest first, in scrape order within a run.
	Query(ctx context.Context, filter Filter) ([]Record, error)
	Close() error
}

// Records stamps job's results with runID and ts, numbering them from 1.
func Records(runID string, job ExportJob, ts time.Time) []Record {
	out := make([]Record, 0, len(job.Results))
	for i, r := range job.Results {
		out = append(out, Record{
			RunID:     runID,
			Dork:      job.Dork,
			Position:  i + 1,
			Title:     r.Title,
			Link:      r.Link,
			ScrapedAt: ts,
		})
	}
	return out
}

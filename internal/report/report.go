package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"
)

// Dork is the outcome of one dork in a run.
type Dork struct {
	Dork           string   `json:"dork"`
	Name           string   `json:"name"`
	Results        int      `json:"results"`
	Attempts       int      `json:"attempts"`
	Retries        int      `json:"retries"`
	ExhaustedSlots int      `json:"exhausted_slots"`
	Files          []string `json:"files,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Summary aggregates a run over every dork it processed.
type Summary struct {
	RunID          string        `json:"run_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	Dorks          []Dork        `json:"dorks"`
	TotalDorks     int           `json:"total_dorks"`
	FailedDorks    int           `json:"failed_dorks"`
	TotalResults   int           `json:"total_results"`
	TotalAttempts  int           `json:"total_attempts"`
	TotalRetries   int           `json:"total_retries"`
	TotalExhausted int           `json:"total_exhausted_slots"`
}

// GenerateSummary totals dorks in the order given.
func GenerateSummary(runID string, start, end time.Time, dorks []Dork) Summary {
	s := Summary{
		RunID:     runID,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Dorks:     dorks,
	}
	if s.Dorks == nil {
		s.Dorks = []Dork{}
	}

	for _, d := range dorks {
		s.TotalDorks++
		if d.Error != "" {
			s.FailedDorks++
		}
		s.TotalResults += d.Results
		s.TotalAttempts += d.Attempts
		s.TotalRetries += d.Retries
		s.TotalExhausted += d.ExhaustedSlots
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Dorkr Run Summary
-----------------
Run:           {{.RunID}}
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Dorks:         {{.TotalDorks}} ({{.FailedDorks}} failed)
Results:       {{.TotalResults}}
Requests:      {{.TotalAttempts}} attempts, {{.TotalRetries}} retries, {{.TotalExhausted}} exhausted slots

Per Dork:
{{- range .Dorks}}
  {{printf "%q" .Dork}}: {{.Results}} results, {{.Attempts}} attempts
  {{- if .Error}} [error: {{.Error}}]{{end}}
  {{- range .Files}}
    {{.}}
  {{- end}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return nil
}

// Write renders summary in format, which is "text", "json" or "none".
func Write(w io.Writer, format string, summary Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "none":
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

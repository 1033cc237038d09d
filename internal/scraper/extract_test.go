package scraper

import (
	"fmt"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		wantTitles []string
		wantLinks  []string
	}{
		{
			name: "document order",
			html: `<html><body>
				<div><h3><a href="https://a.example/">First</a></h3></div>
				<div><h3><a href="https://b.example/">Second</a></h3></div>
			</body></html>`,
			wantTitles: []string{"First", "Second"},
			wantLinks:  []string{"https://a.example/", "https://b.example/"},
		},
		{
			name:       "entities decoded and markup stripped",
			html:       `<h3><a href="/x">Tom &amp; <b>Jerry</b>  index</a></h3>`,
			wantTitles: []string{"Tom & Jerry index"},
			wantLinks:  []string{"/x"},
		},
		{
			name:       "missing href",
			html:       `<h3><a>No link</a></h3>`,
			wantTitles: []string{"No link"},
			wantLinks:  []string{""},
		},
		{
			name: "anchors outside h3 ignored",
			html: `<h2><a href="/h2">h2</a></h2><a href="/bare">bare</a>
				<h3><span><a href="/nested">nested</a></span></h3>`,
		},
		{
			name: "no matches",
			html: `<html><body><p>nothing here</p></body></html>`,
		},
		{
			name:       "malformed html",
			html:       `<h3><a href="/ok">ok</a></h3><div><<<<h3><a href=`,
			wantTitles: []string{"ok"},
			wantLinks:  []string{"/ok"},
		},
		{
			name: "empty input",
			html: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Extract([]byte(tt.html))
			if results == nil {
				t.Fatal("expected non-nil slice")
			}
			if len(results) != len(tt.wantTitles) {
				t.Fatalf("expected %d results, got %d: %+v", len(tt.wantTitles), len(results), results)
			}
			for i, r := range results {
				if r.Title != tt.wantTitles[i] {
					t.Errorf("result %d: expected title %q, got %q", i, tt.wantTitles[i], r.Title)
				}
				if r.Link != tt.wantLinks[i] {
					t.Errorf("result %d: expected link %q, got %q", i, tt.wantLinks[i], r.Link)
				}
			}
		})
	}
}

func TestExtract_CountMatchesElements(t *testing.T) {
	for _, k := range []int{0, 1, 7, 50} {
		var b strings.Builder
		for i := 0; i < k; i++ {
			fmt.Fprintf(&b, `<div class="g"><h3><a href="/r%d">r%d</a></h3></div>`, i, i)
		}
		results := Extract([]byte(b.String()))
		if len(results) != k {
			t.Fatalf("k=%d: expected %d results, got %d", k, k, len(results))
		}
		for i, r := range results {
			if r.Link != fmt.Sprintf("/r%d", i) {
				t.Errorf("k=%d: result %d out of order: %s", k, i, r.Link)
			}
		}
	}
}

package scraper

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/FranksOps/dorkr/internal/storage"
)

// ResultSelector matches the anchor inside each organic result heading.
const ResultSelector = "h3 > a"

// resultMatcher panics at init if ResultSelector does not compile.
var resultMatcher = cascadia.MustCompile(ResultSelector)

// Extract returns one Result per ResultSelector match in document order.
// Unparsable or empty input yields an empty slice.
func Extract(body []byte) []storage.Result {
	results := []storage.Result{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return results
	}

	doc.FindMatcher(resultMatcher).Each(func(_ int, s *goquery.Selection) {
		link, _ := s.Attr("href")
		results = append(results, storage.Result{
			Title: strings.Join(strings.Fields(s.Text()), " "),
			Link:  link,
		})
	})
	return results
}

package serp

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultGoogleURL is the results page the scraper queries unless overridden.
const DefaultGoogleURL = "https://www.google.com/search"

// Google builds Google web-search URLs. BaseURL may be replaced, e.g. with a
// mirror or a test server.
type Google struct {
	BaseURL string
}

// SearchURL returns BaseURL with the dork URL-encoded into the q parameter.
// Operators such as site: and intitle: survive encoding; reserved characters
// like & and # no longer truncate the query.
func (g Google) SearchURL(dork string) (string, error) {
	if strings.TrimSpace(dork) == "" {
		return "", ErrEmptyDork
	}

	base := g.BaseURL
	if base == "" {
		base = DefaultGoogleURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse search endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("search endpoint %q must be absolute", base)
	}

	q := u.Query()
	q.Set("q", dork)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

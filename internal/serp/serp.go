package serp

import "errors"

// ErrEmptyDork is returned when a search is requested for a blank dork.
var ErrEmptyDork = errors.New("dork cannot be empty")

// Endpoint turns a dork into the URL of a results page. Implementations decide
// the host and query parameter; callers fetch the page themselves.
type Endpoint interface {
	SearchURL(dork string) (string, error)
}

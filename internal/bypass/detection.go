package bypass

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
)

// Page is the slice of a fetched response the detectors look at.
type Page struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a page is a block or challenge rather than a
// results page, and names the mechanism.
type Detector func(p *Page) (detected bool, source string)

// DefaultDetectors returns the detectors run on every search response.
func DefaultDetectors() []Detector {
	return []Detector{
		detectRateLimit,
		detectGoogleSorry,
		detectRecaptcha,
		detectCloudflare,
	}
}

// Analyze runs p through detectors and returns the first hit.
func Analyze(p *Page, detectors []Detector) (bool, string) {
	if p == nil {
		return false, ""
	}
	for _, d := range detectors {
		if detected, source := d(p); detected {
			return true, source
		}
	}
	return false, ""
}

func detectRateLimit(p *Page) (bool, string) {
	if p.StatusCode == http.StatusTooManyRequests {
		return true, "RateLimit"
	}
	return false, ""
}

// detectGoogleSorry catches the /sorry/index interstitial Google serves to
// traffic it considers automated.
func detectGoogleSorry(p *Page) (bool, string) {
	if u, err := url.Parse(p.URL); err == nil && strings.HasPrefix(u.Path, "/sorry/") {
		return true, "GoogleSorry"
	}
	if bytes.Contains(p.Body, []byte("Our systems have detected unusual traffic")) {
		return true, "GoogleSorry"
	}
	return false, ""
}

func detectRecaptcha(p *Page) (bool, string) {
	if bytes.Contains(p.Body, []byte(`id="captcha-form"`)) ||
		bytes.Contains(p.Body, []byte("g-recaptcha")) {
		return true, "reCAPTCHA"
	}
	return false, ""
}

func detectCloudflare(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(p.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(p.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(p.Body, []byte("cf-turnstile")) ||
		bytes.Contains(p.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

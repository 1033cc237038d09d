package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/FranksOps/dorkr/internal/fingerprint"
	"github.com/FranksOps/dorkr/pkg/proxy"
)

const searchURL = "https://www.google.com/search?q=inurl%3Aadmin"

func newMockFetcher(t *testing.T) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	fetcher, err := NewFetcher(FetchConfig{
		Timeout:   5 * time.Second,
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return fetcher, transport
}

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestBrowser/1.0" {
			t.Errorf("expected User-Agent TestBrowser/1.0, got %q", got)
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Errorf("expected Accept-Language header, got none")
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<h3><a href="/a">A</a></h3>`))
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	page, err := fetcher.Fetch(context.Background(), ts.URL, "TestBrowser/1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", page.StatusCode)
	}
	if string(page.Body) != `<h3><a href="/a">A</a></h3>` {
		t.Errorf("unexpected body %q", page.Body)
	}
	if page.Header.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %q", page.Header.Get("X-Test"))
	}
	if page.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), ts.URL, "ua")
	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %T: %v", err, err)
	}
	if Outcome(err) != "timeout" {
		t.Errorf("expected outcome timeout, got %s", Outcome(err))
	}
}

func TestFetcher_ConnectionError(t *testing.T) {
	fetcher, transport := newMockFetcher(t)
	transport.RegisterResponder(http.MethodGet, searchURL,
		httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	_, err := fetcher.Fetch(context.Background(), searchURL, "ua")
	var conn ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("expected ErrConnection, got %T: %v", err, err)
	}
}

func TestFetcher_Blocked(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSrc string
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", "RateLimit"},
		{"captcha", http.StatusOK, `<div class="g-recaptcha"></div>`, "reCAPTCHA"},
		{"unusual traffic", http.StatusOK, "Our systems have detected unusual traffic", "GoogleSorry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher, transport := newMockFetcher(t)
			transport.RegisterResponder(http.MethodGet, searchURL,
				httpmock.NewStringResponder(tt.status, tt.body))

			page, err := fetcher.Fetch(context.Background(), searchURL, "ua")
			var blocked ErrBlocked
			if !errors.As(err, &blocked) {
				t.Fatalf("expected ErrBlocked, got %T: %v", err, err)
			}
			if blocked.Source != tt.wantSrc {
				t.Errorf("expected source %s, got %s", tt.wantSrc, blocked.Source)
			}
			if page == nil || page.StatusCode != tt.status {
				t.Errorf("expected page with status %d alongside the error", tt.status)
			}
		})
	}
}

func TestFetcher_ServerError(t *testing.T) {
	fetcher, transport := newMockFetcher(t)
	transport.RegisterResponder(http.MethodGet, searchURL,
		httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	_, err := fetcher.Fetch(context.Background(), searchURL, "ua")
	var status ErrStatus
	if !errors.As(err, &status) {
		t.Fatalf("expected ErrStatus, got %T: %v", err, err)
	}
	if status.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", status.StatusCode)
	}
}

func TestFetcher_ClientErrorIsParsed(t *testing.T) {
	fetcher, transport := newMockFetcher(t)
	transport.RegisterResponder(http.MethodGet, searchURL,
		httpmock.NewStringResponder(http.StatusNotFound, "<html></html>"))

	page, err := fetcher.Fetch(context.Background(), searchURL, "ua")
	if err != nil {
		t.Fatalf("expected 404 to be handed to the parser, got %v", err)
	}
	if page.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", page.StatusCode)
	}
	if transport.GetTotalCallCount() != 1 {
		t.Errorf("expected exactly one request, got %d", transport.GetTotalCallCount())
	}
}

func TestFetcher_Proxy(t *testing.T) {
	// The proxy answers every request itself, so a 418 proves routing.
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer proxyServer.Close()

	pool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Second})
	if err := pool.Add(proxyServer.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		ProxyPool:   pool,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	page, err := fetcher.Fetch(context.Background(), "http://search.invalid/search?q=x", "ua")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418 from proxy, got %d", page.StatusCode)
	}
}

func TestNewFetcher_UnknownProfile(t *testing.T) {
	if _, err := NewFetcher(FetchConfig{Fingerprint: "netscape"}); err == nil {
		t.Fatal("expected error for unknown fingerprint profile")
	}
}

package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/dorkr/internal/bypass"
	"github.com/FranksOps/dorkr/internal/fingerprint"
	"github.com/FranksOps/dorkr/internal/metrics"
	"github.com/FranksOps/dorkr/pkg/httpclient"
	"github.com/FranksOps/dorkr/pkg/proxy"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// maxBodyBytes caps how much of a results page is read.
const maxBodyBytes = 8 << 20

// FetchConfig configures the search fetch client.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	Fingerprint  fingerprint.Profile
	// Detectors flag block pages; nil means bypass.DefaultDetectors().
	Detectors []bypass.Detector
	// Transport replaces the fingerprinted transport entirely. Proxies are
	// ignored when it is set.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Page is a fetched results page.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher performs one GET per call against the search endpoint.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher builds a Fetcher. The client is shared across calls so
// connections and cookies (when enabled) are reused.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := cfg.Transport
	if transport == nil {
		// The proxy is chosen per attempt and handed to the transport through
		// the request context.
		proxyFunc := func(req *http.Request) (*url.URL, error) {
			if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
				return u, nil
			}
			return http.ProxyFromEnvironment(req)
		}

		var err error
		transport, err = fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{Proxy: proxyFunc})
		if err != nil {
			return nil, fmt.Errorf("setup transport: %w", err)
		}
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"en-US,en;q=0.5"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
		logger: cfg.Logger,
	}, nil
}

// Fetch GETs targetURL with userAgent. Any error it returns is one of the
// typed errors in this package and is worth retrying.
func (f *Fetcher) Fetch(ctx context.Context, targetURL, userAgent string) (*Page, error) {
	start := time.Now()
	page, err := f.fetch(ctx, targetURL, userAgent)

	elapsed := time.Since(start)
	if page != nil {
		page.Duration = elapsed
	}
	metrics.RecordAttempt(Outcome(err), elapsed)
	return page, err
}

func (f *Fetcher) fetch(ctx context.Context, targetURL, userAgent string) (*Page, error) {
	var activeProxy *url.URL
	if f.config.ProxyPool != nil && f.config.Transport == nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			ctx = context.WithValue(ctx, proxyKey, activeProxy)
			f.logger.Debug("using proxy", "proxy", activeProxy.Redacted())
		}
	}

	resp, err := f.client.Get(ctx, targetURL, userAgent)
	if err != nil {
		f.markProxy(activeProxy, false)
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.markProxy(activeProxy, false)
		return nil, ErrBody{Err: err}
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page := &Page{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}

	if detected, source := bypass.Analyze(&bypass.Page{
		URL:        page.URL,
		StatusCode: page.StatusCode,
		Header:     page.Header,
		Body:       page.Body,
	}, f.config.Detectors); detected {
		f.markProxy(activeProxy, false)
		return page, ErrBlocked{Source: source, StatusCode: page.StatusCode}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		f.markProxy(activeProxy, false)
		return page, ErrStatus{StatusCode: resp.StatusCode}
	}

	f.markProxy(activeProxy, true)
	return page, nil
}

func (f *Fetcher) markProxy(u *url.URL, ok bool) {
	if u == nil {
		return
	}
	var err error
	if ok {
		err = f.config.ProxyPool.MarkSuccess(u)
	} else {
		err = f.config.ProxyPool.MarkFailure(u)
	}
	if err != nil {
		f.logger.Warn("proxy health update failed", "proxy", u.Redacted(), "err", err)
	}
}

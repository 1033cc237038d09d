package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// ErrNilContext is returned when a request is issued without a context.
var ErrNilContext = errors.New("httpclient: context cannot be nil")

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Transport overrides the round tripper, e.g. for proxies or uTLS fingerprinting.
	Transport http.RoundTripper
	// Header is sent with every request unless the request already sets the key.
	Header http.Header
}

// Client wraps http.Client with redirect limits, an optional cookie jar and
// default headers.
type Client struct {
	*http.Client
	header http.Header
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	maxRedirects := cfg.MaxRedirects
	if maxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, header: cfg.Header.Clone()}, nil
}

// Do executes req under ctx, filling in the client's default headers.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	reqWithCtx := req.Clone(ctx)
	for key, values := range c.header {
		if reqWithCtx.Header.Get(key) != "" {
			continue
		}
		for _, v := range values {
			reqWithCtx.Header.Add(key, v)
		}
	}

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// Get issues a GET for rawURL with the given User-Agent.
func (c *Client) Get(ctx context.Context, rawURL, userAgent string) (*http.Response, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return c.Do(ctx, req)
}

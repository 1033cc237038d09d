package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when health is reported for a proxy the pool
// does not hold.
var ErrUnknownProxy = errors.New("proxy not in pool")

type entry struct {
	url       *url.URL
	failures  int
	successes int
	benchedAt time.Time
	benched   bool
}

// Config defines settings for the proxy Pool.
type Config struct {
	// MaxFailures consecutive-ish failures bench a proxy.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out.
	Cooldown time.Duration
}

// Pool rotates through proxies round robin, benching the ones that keep failing.
type Pool struct {
	mu      sync.Mutex
	entries []*entry
	next    int
	cfg     Config
	now     func() time.Time
}

// NewPool creates an empty pool. Zero config values get defaults of 3 failures
// and a five minute cooldown.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{cfg: cfg, now: time.Now}
}

// Add parses and appends proxy URLs. A missing scheme defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		if u.Host == "" {
			return fmt.Errorf("parse proxy %q: missing host", raw)
		}
		p.entries = append(p.entries, &entry{url: u})
	}
	return nil
}

// LoadFile adds every proxy listed in path, one per line. Blank lines and
// '#' comments are ignored.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	var raws []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proxy file: %w", err)
	}
	return p.Add(raws...)
}

// Len reports the number of proxies in the pool, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next usable proxy, or nil when the pool is empty or every
// proxy is benched.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	now := p.now()
	for i := 0; i < n; i++ {
		e := p.entries[p.next]
		p.next = (p.next + 1) % n

		if e.benched && now.Sub(e.benchedAt) >= p.cfg.Cooldown {
			e.benched = false
			e.failures = 0
		}
		if !e.benched {
			return e.url
		}
	}
	return nil
}

// MarkSuccess records a successful request through u.
func (p *Pool) MarkSuccess(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.successes++
		if e.failures > 0 {
			e.failures--
		}
	})
}

// MarkFailure records a failed request through u and benches the proxy once it
// reaches the failure limit.
func (p *Pool) MarkFailure(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.failures++
		if e.failures >= p.cfg.MaxFailures {
			e.benched = true
			e.benchedAt = p.now()
		}
	})
}

func (p *Pool) update(u *url.URL, fn func(*entry)) error {
	if u == nil {
		return fmt.Errorf("%w: nil url", ErrUnknownProxy)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target := u.String()
	for _, e := range p.entries {
		if e.url.String() == target {
			fn(e)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownProxy, target)
}

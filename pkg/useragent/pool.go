package useragent

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync/atomic"
)

// DefaultPool mixes common desktop browsers with the crawler signatures search
// engines tend to whitelist.
var DefaultPool = []string{
	// Crawlers
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"Mozilla/5.0 (compatible; Bingbot/2.0; +http://www.bing.com/bingbot.htm)",
	// Chrome
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	// Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	// Safari
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	// Edge
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// Source is the subset of *rand.Rand used for random selection.
type Source interface {
	IntN(n int) int
}

// Policy picks an index into a pool of n entries.
type Policy interface {
	Pick(n int) int
}

type randomPolicy struct {
	src Source
}

func (r randomPolicy) Pick(n int) int {
	return r.src.IntN(n)
}

// Random returns a uniform selection policy. A nil src uses the process-wide
// generator from math/rand/v2.
func Random(src Source) Policy {
	if src == nil {
		src = globalSource{}
	}
	return randomPolicy{src: src}
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Sequential returns a round-robin policy. It is safe for concurrent use.
func Sequential() Policy {
	return &sequentialPolicy{}
}

type sequentialPolicy struct {
	counter atomic.Uint64
}

func (s *sequentialPolicy) Pick(n int) int {
	idx := s.counter.Add(1) - 1
	return int(idx % uint64(n))
}

// Pool is an ordered set of User-Agents with a pluggable selection policy.
type Pool struct {
	uas    []string
	policy Policy
}

// NewPool creates a pool over uas using policy. An empty uas falls back to
// DefaultPool and a nil policy to Random(nil).
func NewPool(uas []string, policy Policy) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	if policy == nil {
		policy = Random(nil)
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{
		uas:    copied,
		policy: policy,
	}
}

// Next returns the User-Agent chosen by the pool's policy.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	return p.uas[p.policy.Pick(len(p.uas))]
}

// All returns a copy of the pool contents in order.
func (p *Pool) All() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}

// Len reports how many User-Agents the pool holds.
func (p *Pool) Len() int {
	return len(p.uas)
}

// LoadFile reads User-Agents from path, one per line. Blank lines and lines
// starting with '#' are skipped.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open user-agent file: %w", err)
	}
	defer f.Close()

	var uas []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uas = append(uas, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read user-agent file: %w", err)
	}
	return uas, nil
}

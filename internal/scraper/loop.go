package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/dorkr/internal/metrics"
	"github.com/FranksOps/dorkr/internal/serp"
	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/FranksOps/dorkr/pkg/ratelimit"
	"github.com/FranksOps/dorkr/pkg/useragent"
)

// PageFetcher issues a single GET. *Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL, userAgent string) (*Page, error)
}

// State is a request slot's position in the retry state machine.
type State int

const (
	StateAttempting State = iota
	StateBackoff
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options are the per-dork loop parameters.
type Options struct {
	// RequestCount is the number of sequential request slots per dork.
	RequestCount int
	// Delay bounds every backoff and pacing pause.
	Delay ratelimit.Range
	// MaxRetries bounds the attempts of one slot. Zero exhausts every slot
	// without touching the network.
	MaxRetries int
	// TrailingDelay keeps the pacing pause after the last slot of a dork.
	TrailingDelay bool
}

// DefaultOptions mirrors the CLI defaults.
func DefaultOptions() Options {
	return Options{
		RequestCount:  5,
		Delay:         ratelimit.Range{Min: time.Second, Max: 5 * time.Second},
		MaxRetries:    3,
		TrailingDelay: true,
	}
}

// LoopConfig wires a Loop's collaborators. Only Fetcher is required.
type LoopConfig struct {
	Fetcher  PageFetcher
	Endpoint serp.Endpoint
	Agents   *useragent.Pool
	// Rand draws pause lengths; nil uses math/rand/v2.
	Rand ratelimit.Source
	// Sleep pauses between attempts and slots; nil uses ratelimit.Sleep.
	Sleep  ratelimit.SleepFunc
	Logger *slog.Logger
	Options
}

// Stats summarizes one Scrape call.
type Stats struct {
	Slots          int `json:"slots"`
	Attempts       int `json:"attempts"`
	Retries        int `json:"retries"`
	ExhaustedSlots int `json:"exhausted_slots"`
	Results        int `json:"results"`
}

// SlotOutcome is the terminal state of one request slot.
type SlotOutcome struct {
	State    State
	Attempts int
	Retries  int
	Results  []storage.Result
}

// Loop runs the per-dork scrape: sequential request slots, each retried with
// randomized backoff, followed by a randomized pacing pause.
type Loop struct {
	fetcher  PageFetcher
	endpoint serp.Endpoint
	agents   *useragent.Pool
	rand     ratelimit.Source
	sleep    ratelimit.SleepFunc
	logger   *slog.Logger
	opts     Options
}

// NewLoop validates cfg and returns a Loop. An invalid delay range is rejected
// here so no request or pause happens with a bad configuration.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("scraper: nil fetcher")
	}
	if err := cfg.Delay.Validate(); err != nil {
		return nil, err
	}
	if cfg.RequestCount < 0 {
		return nil, fmt.Errorf("scraper: request count must not be negative, got %d", cfg.RequestCount)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("scraper: max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.Endpoint == nil {
		cfg.Endpoint = serp.Google{}
	}
	if cfg.Agents == nil {
		cfg.Agents = useragent.NewPool(nil, nil)
	}
	if cfg.Sleep == nil {
		cfg.Sleep = ratelimit.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Loop{
		fetcher:  cfg.Fetcher,
		endpoint: cfg.Endpoint,
		agents:   cfg.Agents,
		rand:     cfg.Rand,
		sleep:    cfg.Sleep,
		logger:   cfg.Logger,
		opts:     cfg.Options,
	}, nil
}

// Options returns the loop parameters in effect.
func (l *Loop) Options() Options {
	return l.opts
}

// Scrape runs every request slot for dork and returns the accumulated results
// in scrape order. Failed slots only log; the returned error is non-nil when
// the dork cannot be turned into a search URL or ctx is done, in which case
// the results gathered so far are still returned.
func (l *Loop) Scrape(ctx context.Context, dork string) ([]storage.Result, Stats, error) {
	results := []storage.Result{}
	var stats Stats

	if l.opts.RequestCount == 0 {
		return results, stats, nil
	}

	target, err := l.endpoint.SearchURL(dork)
	if err != nil {
		return results, stats, fmt.Errorf("build search url: %w", err)
	}

	for slot := 0; slot < l.opts.RequestCount; slot++ {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}

		out, err := l.runSlot(ctx, dork, target, slot)
		stats.Slots++
		stats.Attempts += out.Attempts
		stats.Retries += out.Retries
		results = append(results, out.Results...)
		stats.Results += len(out.Results)
		if out.State == StateExhausted {
			stats.ExhaustedSlots++
			metrics.SlotsExhaustedTotal.Inc()
		}
		metrics.ResultsTotal.Add(float64(len(out.Results)))
		if err != nil {
			return results, stats, err
		}

		if slot == l.opts.RequestCount-1 && !l.opts.TrailingDelay {
			break
		}
		if err := l.pause(ctx, "pacing", "dork", dork, "slot", slot); err != nil {
			return results, stats, err
		}
	}

	return results, stats, nil
}

// runSlot drives one request slot to StateSucceeded or StateExhausted. The
// only error it returns is ctx's.
func (l *Loop) runSlot(ctx context.Context, dork, target string, slot int) (SlotOutcome, error) {
	out := SlotOutcome{State: StateAttempting}
	if l.opts.MaxRetries == 0 {
		out.State = StateExhausted
	}

	ua := l.agents.Next()
	l.logger.Info("selected user agent", "dork", dork, "slot", slot, "user_agent", ua)

	for out.State != StateSucceeded && out.State != StateExhausted {
		switch out.State {
		case StateAttempting:
			if err := ctx.Err(); err != nil {
				return out, err
			}
			out.Attempts++
			page, err := l.fetcher.Fetch(ctx, target, ua)
			if err == nil {
				out.Results = Extract(page.Body)
				for _, r := range out.Results {
					l.logger.Info("scraped link", "dork", dork, "title", r.Title, "link", r.Link)
				}
				out.State = StateSucceeded
				continue
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.Retries++
			l.logger.Warn("fetch attempt failed",
				"dork", dork,
				"slot", slot,
				"retry", out.Retries,
				"max_retries", l.opts.MaxRetries,
				"outcome", Outcome(err),
				"err", err,
			)
			if out.Retries >= l.opts.MaxRetries {
				out.State = StateExhausted
			} else {
				out.State = StateBackoff
			}

		case StateBackoff:
			if err := l.pause(ctx, "backoff", "dork", dork, "slot", slot, "retry", out.Retries); err != nil {
				return out, err
			}
			out.State = StateAttempting
		}
	}

	if out.State == StateExhausted {
		l.logger.Error("retries exhausted", "dork", dork, "slot", slot, "max_retries", l.opts.MaxRetries)
	}
	return out, nil
}

func (l *Loop) pause(ctx context.Context, reason string, attrs ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := l.opts.Delay.Draw(l.rand)
	l.logger.Info("sleeping", append(attrs, "reason", reason, "delay", d)...)
	if err := l.sleep(ctx, d); err != nil {
		return err
	}
	metrics.RecordSleep(reason, d)
	return nil
}

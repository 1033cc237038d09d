package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dorkr_fetch_attempts_total",
			Help: "Search requests issued, by outcome (success or error class)",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dorkr_fetch_duration_seconds",
			Help:    "Duration of search requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dorkr_results_total",
			Help: "Results extracted across all dorks",
		},
	)

	SlotsExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dorkr_slots_exhausted_total",
			Help: "Request slots that ran out of retries",
		},
	)

	SleepSecondsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dorkr_sleep_seconds_total",
			Help: "Time spent in randomized pauses, by reason (backoff or pacing)",
		},
		[]string{"reason"},
	)

	DorksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dorkr_dorks_total",
			Help: "Dorks processed, by final status",
		},
		[]string{"status"},
	)
)

// RecordAttempt counts one fetch attempt and observes its duration.
func RecordAttempt(outcome string, d time.Duration) {
	FetchAttemptsTotal.WithLabelValues(outcome).Inc()
	FetchDuration.Observe(d.Seconds())
}

// RecordSleep adds a pause to the sleep counter.
func RecordSleep(reason string, d time.Duration) {
	SleepSecondsTotal.WithLabelValues(reason).Add(d.Seconds())
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv  *http.Server
	addr string
}

// Start listens on addr (e.g. ":9090") and serves /metrics in the background.
func Start(addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv, addr: ln.Addr().String()}, nil
}

// Addr is the address the server is bound to.
func (s *Server) Addr() string {
	return s.addr
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/dorkr/internal/config"
	"github.com/FranksOps/dorkr/internal/fingerprint"
	"github.com/FranksOps/dorkr/internal/metrics"
	"github.com/FranksOps/dorkr/internal/pipeline"
	"github.com/FranksOps/dorkr/internal/report"
	"github.com/FranksOps/dorkr/internal/scraper"
	"github.com/FranksOps/dorkr/internal/serp"
	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/FranksOps/dorkr/internal/storage/archive"
	"github.com/FranksOps/dorkr/internal/storage/csvbackend"
	"github.com/FranksOps/dorkr/internal/storage/xlsxbackend"
	"github.com/FranksOps/dorkr/pkg/proxy"
	"github.com/FranksOps/dorkr/pkg/useragent"
)

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape one dork or every dork in a file",
		Example: `  dorkr run --dork 'inurl:admin intitle:login' --requests 3
  dorkr run --dorks-file dorks.txt --min-delay 2s --max-delay 8s --output-dir out`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runScrape(cmd.Context(), cfg, stderr)
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.String(config.KeyConfig, "", "Config file (yaml, toml or json)")
	f.String(config.KeyDork, "", "A single dork to run")
	f.String(config.KeyDorksFile, "", "File with one dork per line (blank lines and # comments skipped)")
	f.Int(config.KeyRequests, d.Requests, "Request slots per dork")
	minDelay, maxDelay := config.DelayValue(d.MinDelay), config.DelayValue(d.MaxDelay)
	f.Var(&minDelay, config.KeyMinDelay, "Minimum randomized pause between attempts and requests, in seconds or as a duration (1, 1500ms)")
	f.Var(&maxDelay, config.KeyMaxDelay, "Maximum randomized pause between attempts and requests, in seconds or as a duration (5, 5s)")
	f.Int(config.KeyMaxRetries, d.MaxRetries, "Attempts per request slot before it is abandoned")
	f.Bool(config.KeyTrailingDelay, d.TrailingDelay, "Pause after the last request of each dork as well")
	f.String(config.KeyOutputDir, d.OutputDir, "Directory the result files are written to")
	f.StringSlice(config.KeyFormats, d.Formats, "Export formats (csv, xlsx)")
	f.String(config.KeyEndpoint, d.Endpoint, "Search endpoint the dork is sent to as the q parameter")
	f.Duration(config.KeyTimeout, d.Timeout, "Per-request timeout")
	f.String(config.KeyFingerprint, d.Fingerprint, "TLS fingerprint profile (chrome, firefox, safari, random, go)")
	f.String(config.KeyProxiesFile, "", "File with one proxy URL per line, rotated per request")
	f.String(config.KeyUserAgentsFile, "", "File with one User-Agent per line, replacing the built-in pool")
	f.String(config.KeyArchive, "", "Also archive results (sqlite:<path>, jsonl:<path> or postgres://...)")
	f.String(config.KeyMetricsAddr, "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.String(config.KeyReport, d.Report, "Run summary printed to stderr (text, json, none)")
	f.BoolP(config.KeyVerbose, "v", false, "Enable debug logging")

	bindFlags(cmd, v)
	return cmd
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	// Flags are registered with literal keys, so binding cannot fail.
	_ = v.BindPFlags(cmd.Flags())
}

func runScrape(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	logger := newLogger(stderr, cfg.Verbose)
	slog.SetDefault(logger)

	dorks, err := pipeline.LoadDorks(cfg.Dork, cfg.DorksFile)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Start(cfg.MetricsAddr, logger)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer srv.Stop(context.Background())
		logger.Info("serving metrics", "addr", srv.Addr())
	}

	loop, err := buildLoop(cfg, logger)
	if err != nil {
		return err
	}

	exporters := make([]storage.Exporter, 0, len(cfg.Formats))
	for _, format := range cfg.Formats {
		switch format {
		case "csv":
			exporters = append(exporters, csvbackend.Exporter{})
		case "xlsx":
			exporters = append(exporters, xlsxbackend.Exporter{})
		}
	}

	var arch storage.Archive
	if cfg.Archive != "" {
		arch, err = archive.Open(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer arch.Close()
	}

	p, err := pipeline.New(pipeline.Config{
		Scraper:   loop,
		Exporters: exporters,
		OutputDir: cfg.OutputDir,
		Archive:   arch,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting scrape",
		"run_id", p.RunID(),
		"dorks", len(dorks),
		"requests", cfg.Requests,
		"delay", loop.Options().Delay.String(),
		"max_retries", cfg.MaxRetries,
	)

	summary, runErr := p.Run(ctx, dorks)
	if err := report.Write(stderr, cfg.Report, summary); err != nil {
		logger.Error("failed to write report", "err", err)
	}
	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	return nil
}

func buildLoop(cfg *config.Config, logger *slog.Logger) (*scraper.Loop, error) {
	delay, err := cfg.Delay()
	if err != nil {
		return nil, err
	}

	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.ProxiesFile != "" {
		proxies = proxy.NewPool(proxy.Config{MaxFailures: 3, Cooldown: 5 * time.Minute})
		if err := proxies.LoadFile(cfg.ProxiesFile); err != nil {
			return nil, err
		}
		logger.Info("loaded proxies", "count", proxies.Len())
	}

	var uas []string
	if cfg.UserAgentsFile != "" {
		if uas, err = useragent.LoadFile(cfg.UserAgentsFile); err != nil {
			return nil, err
		}
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
		UseCookieJar: true,
		ProxyPool:    proxies,
		Fingerprint:  profile,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return scraper.NewLoop(scraper.LoopConfig{
		Fetcher:  fetcher,
		Endpoint: serp.Google{BaseURL: cfg.Endpoint},
		Agents:   useragent.NewPool(uas, useragent.Random(nil)),
		Logger:   logger,
		Options: scraper.Options{
			RequestCount:  cfg.Requests,
			Delay:         delay,
			MaxRetries:    cfg.MaxRetries,
			TrailingDelay: cfg.TrailingDelay,
		},
	})
}

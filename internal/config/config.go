package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/dorkr/pkg/ratelimit"
)

var (
	// ErrNoDorkSource is returned when neither a dork nor a dork file is set.
	ErrNoDorkSource = errors.New("one of --dork or --dorks-file is required")
	// ErrConflictingDorkSource is returned when both a dork and a dork file are set.
	ErrConflictingDorkSource = errors.New("--dork and --dorks-file are mutually exclusive")
	// ErrInvalidDelayRange is returned when the pause bounds cannot form a range.
	ErrInvalidDelayRange = errors.New("invalid delay range")
)

// Keys shared by flags, environment variables (DORKR_ prefix, dashes become
// underscores) and config files.
const (
	KeyConfig         = "config"
	KeyRequests       = "requests"
	KeyMinDelay       = "min-delay"
	KeyMaxDelay       = "max-delay"
	KeyDork           = "dork"
	KeyDorksFile      = "dorks-file"
	KeyMaxRetries     = "max-retries"
	KeyOutputDir      = "output-dir"
	KeyFormats        = "formats"
	KeyTrailingDelay  = "trailing-delay"
	KeyEndpoint       = "endpoint"
	KeyTimeout        = "timeout"
	KeyFingerprint    = "fingerprint"
	KeyProxiesFile    = "proxies-file"
	KeyUserAgentsFile = "user-agents-file"
	KeyArchive        = "archive"
	KeyMetricsAddr    = "metrics-addr"
	KeyReport         = "report"
	KeyVerbose        = "verbose"
)

// Formats the export step understands.
var supportedFormats = []string{"csv", "xlsx"}

var reportFormats = []string{"text", "json", "none"}

// Config holds the settings of one dorkr run.
type Config struct {
	Requests       int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	Dork           string
	DorksFile      string
	MaxRetries     int
	OutputDir      string
	Formats        []string
	TrailingDelay  bool
	Endpoint       string
	Timeout        time.Duration
	Fingerprint    string
	ProxiesFile    string
	UserAgentsFile string
	Archive        string
	MetricsAddr    string
	Report         string
	Verbose        bool
}

// Default returns the settings used when nothing is overridden.
func Default() *Config {
	return &Config{
		Requests:      5,
		MinDelay:      1 * time.Second,
		MaxDelay:      5 * time.Second,
		MaxRetries:    3,
		OutputDir:     ".",
		Formats:       []string{"csv", "xlsx"},
		TrailingDelay: true,
		Endpoint:      "https://www.google.com/search",
		Timeout:       30 * time.Second,
		Fingerprint:   "chrome",
		Report:        "text",
	}
}

// Validate ensures all configuration values are coherent. It runs before any
// network activity.
func (c *Config) Validate() error {
	switch {
	case c.Dork == "" && c.DorksFile == "":
		return ErrNoDorkSource
	case c.Dork != "" && c.DorksFile != "":
		return ErrConflictingDorkSource
	}

	if _, err := c.Delay(); err != nil {
		return err
	}
	if c.Requests < 0 {
		return fmt.Errorf("requests cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if len(c.Formats) == 0 {
		return fmt.Errorf("at least one output format is required")
	}
	// Each format owns one file per dork, so a repeat would mean two writers
	// on the same path.
	for i, f := range c.Formats {
		if !slices.Contains(supportedFormats, f) {
			return fmt.Errorf("output format %q must be one of %s", f, strings.Join(supportedFormats, ", "))
		}
		if slices.Contains(c.Formats[:i], f) {
			return fmt.Errorf("output format %q listed more than once", f)
		}
	}
	if !slices.Contains(reportFormats, c.Report) {
		return fmt.Errorf("report format %q must be one of %s", c.Report, strings.Join(reportFormats, ", "))
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute URL")
	}

	return nil
}

// Delay returns the validated pause range.
func (c *Config) Delay() (ratelimit.Range, error) {
	r, err := ratelimit.NewRange(c.MinDelay, c.MaxDelay)
	if err != nil {
		return ratelimit.Range{}, fmt.Errorf("%w: %w", ErrInvalidDelayRange, err)
	}
	return r, nil
}

// NewViper returns a viper instance seeded with Default and bound to DORKR_*
// environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DORKR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault(KeyRequests, d.Requests)
	v.SetDefault(KeyMinDelay, d.MinDelay)
	v.SetDefault(KeyMaxDelay, d.MaxDelay)
	v.SetDefault(KeyMaxRetries, d.MaxRetries)
	v.SetDefault(KeyOutputDir, d.OutputDir)
	v.SetDefault(KeyFormats, d.Formats)
	v.SetDefault(KeyTrailingDelay, d.TrailingDelay)
	v.SetDefault(KeyEndpoint, d.Endpoint)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyFingerprint, d.Fingerprint)
	v.SetDefault(KeyReport, d.Report)
	return v
}

// Load reads the optional config file named by the config key, then resolves
// every key with viper's precedence (flag, env, file, default). Delay bounds
// given as bare numbers are seconds.
func Load(v *viper.Viper) (*Config, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	minDelay, err := delayFromValue(KeyMinDelay, v.Get(KeyMinDelay))
	if err != nil {
		return nil, err
	}
	maxDelay, err := delayFromValue(KeyMaxDelay, v.Get(KeyMaxDelay))
	if err != nil {
		return nil, err
	}

	return &Config{
		Requests:       v.GetInt(KeyRequests),
		MinDelay:       minDelay,
		MaxDelay:       maxDelay,
		Dork:           strings.TrimSpace(v.GetString(KeyDork)),
		DorksFile:      v.GetString(KeyDorksFile),
		MaxRetries:     v.GetInt(KeyMaxRetries),
		OutputDir:      v.GetString(KeyOutputDir),
		Formats:        v.GetStringSlice(KeyFormats),
		TrailingDelay:  v.GetBool(KeyTrailingDelay),
		Endpoint:       v.GetString(KeyEndpoint),
		Timeout:        v.GetDuration(KeyTimeout),
		Fingerprint:    v.GetString(KeyFingerprint),
		ProxiesFile:    v.GetString(KeyProxiesFile),
		UserAgentsFile: v.GetString(KeyUserAgentsFile),
		Archive:        v.GetString(KeyArchive),
		MetricsAddr:    v.GetString(KeyMetricsAddr),
		Report:         v.GetString(KeyReport),
		Verbose:        v.GetBool(KeyVerbose),
	}, nil
}

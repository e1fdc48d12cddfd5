package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Options holds all configuration for a hostwatch run, merged from
// flags and an optional config file.
type Options struct {
	// Target
	Host     string
	Port     int // 0 = derive from TLS flag
	TLS      bool
	Path     string
	Insecure bool // skip TLS certificate verification

	// Probe
	Match     string // expected body substring, literal and case-sensitive
	Timeout   time.Duration
	UserAgent string

	// Watchdog
	Wait       time.Duration // between probes
	Threshold  int           // consecutive failures before recovery
	Once       bool          // single probe, exit with its result
	RecoverCmd string

	// Output
	ShowResponse bool
	Quiet        bool
	NoColor      bool
	Verbose      bool
}

// Defaults returns the option values used when neither a flag nor a
// config file sets them.
func Defaults() Options {
	return Options{
		Path:      "/",
		Timeout:   10 * time.Second,
		Wait:      60 * time.Second,
		Threshold: 3,
	}
}

// fileConfig is the YAML shape of a config file. Durations are strings
// so both "90s" and bare seconds ("90") work.
type fileConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	TLS          bool   `yaml:"tls"`
	Path         string `yaml:"path"`
	Insecure     bool   `yaml:"insecure"`
	Match        string `yaml:"match"`
	Timeout      string `yaml:"timeout"`
	UserAgent    string `yaml:"user_agent"`
	Wait         string `yaml:"wait"`
	Threshold    int    `yaml:"threshold"`
	RecoverCmd   string `yaml:"recover_cmd"`
	ShowResponse bool   `yaml:"show_response"`
	Quiet        bool   `yaml:"quiet"`
	NoColor      bool   `yaml:"no_color"`
	Verbose      bool   `yaml:"verbose"`
}

// LoadFile reads a YAML config file. Zero values in the result mean the
// file did not set the field; the caller merges the rest with flags.
func LoadFile(path string) (Options, error) {
	var opts Options
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return opts, fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return opts, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	opts = Options{
		Host:         fc.Host,
		Port:         fc.Port,
		TLS:          fc.TLS,
		Path:         fc.Path,
		Insecure:     fc.Insecure,
		Match:        fc.Match,
		UserAgent:    fc.UserAgent,
		Threshold:    fc.Threshold,
		RecoverCmd:   fc.RecoverCmd,
		ShowResponse: fc.ShowResponse,
		Quiet:        fc.Quiet,
		NoColor:      fc.NoColor,
		Verbose:      fc.Verbose,
	}
	if opts.Timeout, err = parseDuration(fc.Timeout); err != nil {
		return opts, fmt.Errorf("config file timeout: %w", err)
	}
	if opts.Wait, err = parseDuration(fc.Wait); err != nil {
		return opts, fmt.Errorf("config file wait: %w", err)
	}
	return opts, nil
}

// parseDuration accepts Go duration syntax or a bare integer number of
// seconds. Empty means unset.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Validate runs the single validation pass over the merged options and
// returns every problem found, not just the first.
func (o *Options) Validate() error {
	var err error

	if strings.TrimSpace(o.Host) == "" {
		err = multierr.Append(err, fmt.Errorf("target host required (--host or config file)"))
	} else if strings.ContainsAny(o.Host, " /") {
		err = multierr.Append(err, fmt.Errorf("invalid host %q: must be a bare hostname or address", o.Host))
	}
	if o.Port < 0 || o.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid port %d", o.Port))
	}
	if o.Match == "" {
		err = multierr.Append(err, fmt.Errorf("expected body substring required (--match)"))
	}
	if o.Timeout < time.Second {
		err = multierr.Append(err, fmt.Errorf("--timeout must be at least 1s, got %s", o.Timeout))
	}
	if o.Wait < 0 {
		err = multierr.Append(err, fmt.Errorf("--wait must not be negative, got %s", o.Wait))
	}
	if o.Threshold < 1 {
		err = multierr.Append(err, fmt.Errorf("--threshold must be at least 1, got %d", o.Threshold))
	}
	if o.Path != "" && !strings.HasPrefix(o.Path, "/") {
		err = multierr.Append(err, fmt.Errorf("--path must start with /, got %q", o.Path))
	}
	if o.Quiet && o.Verbose {
		err = multierr.Append(err, fmt.Errorf("--quiet and --verbose are mutually exclusive"))
	}
	return err
}

// EffectivePort resolves the port to dial: an explicit port wins,
// otherwise 443 for TLS targets and 80 for plain ones.
func (o *Options) EffectivePort() int {
	if o.Port != 0 {
		return o.Port
	}
	if o.TLS {
		return 443
	}
	return 80
}

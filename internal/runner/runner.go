package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/maxvaer/hostwatch/internal/config"
	"github.com/maxvaer/hostwatch/internal/output"
	"github.com/maxvaer/hostwatch/internal/probe"
	"github.com/maxvaer/hostwatch/internal/recovery"
	"github.com/maxvaer/hostwatch/internal/transport"
	"github.com/maxvaer/hostwatch/pkg/version"
)

// Run wires the prober, recovery trigger, and watchdog together from
// the validated options and runs until cancelled or recovered.
func Run(ctx context.Context, opts *config.Options) error {
	log := newLogger(opts)
	defer log.Sync()
	sugar := log.Sugar()

	ua := opts.UserAgent
	if ua == "" {
		ua = "hostwatch/" + version.Version
	}

	dialer := &transport.NetDialer{
		Host:     opts.Host,
		Port:     opts.EffectivePort(),
		TLS:      opts.TLS,
		Insecure: opts.Insecure,
		Timeout:  opts.Timeout,
	}

	var raw probe.RawDisplay
	if opts.ShowResponse {
		noColor := opts.NoColor || !output.IsTerminal(os.Stdout)
		raw = output.NewRawWriter(os.Stdout, noColor)
	}

	clk := clock.New()
	prober := probe.New(dialer, probe.Params{
		Host:      opts.Host,
		Path:      opts.Path,
		Match:     opts.Match,
		UserAgent: ua,
		Timeout:   opts.Timeout,
	}, clk, sugar, raw)

	if !opts.Quiet {
		printBanner(opts)
	}

	if opts.Once {
		res := prober.Probe(ctx)
		if !res.Success {
			return fmt.Errorf("probe failed: %w", res.Err)
		}
		sugar.Infow("probe ok", "duration", res.Duration)
		return nil
	}

	var trigger recovery.Trigger
	if opts.RecoverCmd != "" {
		trigger = recovery.NewCmdTrigger(opts.RecoverCmd, opts.Host, opts.EffectivePort(), sugar)
	} else {
		trigger = recovery.NewLogTrigger(sugar)
	}

	w := &Watchdog{
		Probe:     prober.Probe,
		Trigger:   trigger,
		Wait:      opts.Wait,
		Threshold: opts.Threshold,
		Clock:     clk,
		Log:       sugar,
	}
	return w.Run(ctx)
}

// newLogger builds the console logger. --verbose lowers the level to
// debug, --quiet raises it to warn.
func newLogger(opts *config.Options) *zap.Logger {
	level := zapcore.InfoLevel
	switch {
	case opts.Verbose:
		level = zapcore.DebugLevel
	case opts.Quiet:
		level = zapcore.WarnLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	if !opts.NoColor && output.IsTerminal(os.Stderr) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

func printBanner(opts *config.Options) {
	const (
		cyan  = "\033[36m"
		white = "\033[97m"
		dim   = "\033[2m"
		reset = "\033[0m"
	)

	c, w, d, rs := cyan, white, dim, reset
	if opts.NoColor || !output.IsTerminal(os.Stderr) {
		c, w, d, rs = "", "", "", ""
	}

	scheme := "http"
	if opts.TLS {
		scheme = "https"
	}

	fmt.Fprintf(os.Stderr, `
%s    __               __               __       __
%s   / /_  ____  _____/ /__      ______/ /______/ /_
%s  / __ \/ __ \/ ___/ __/ | /| / / __  / ___/ __  /
%s / / / / /_/ (__  ) /_ | |/ |/ / /_/ / /__/ / / /
%s/_/ /_/\____/____/\__/ |__/|__/\__,_/\___/_/ /_/ %s %sv%s%s
`,
		c, c, c, c, c, rs, d, version.Version, rs)

	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n", d, rs)
	fmt.Fprintf(os.Stderr, "  %sTarget:%s     %s%s://%s:%d%s%s\n", d, rs, w, scheme, opts.Host, opts.EffectivePort(), opts.Path, rs)
	fmt.Fprintf(os.Stderr, "  %sMatch:%s      %s%q%s\n", d, rs, w, opts.Match, rs)
	fmt.Fprintf(os.Stderr, "  %sTimeout:%s    %s%s%s\n", d, rs, w, opts.Timeout, rs)
	if !opts.Once {
		fmt.Fprintf(os.Stderr, "  %sInterval:%s   %s%s%s\n", d, rs, w, opts.Wait, rs)
		fmt.Fprintf(os.Stderr, "  %sThreshold:%s  %s%d failures%s\n", d, rs, w, opts.Threshold, rs)
		if opts.RecoverCmd != "" {
			fmt.Fprintf(os.Stderr, "  %sRecovery:%s   %s%s%s\n", d, rs, w, opts.RecoverCmd, rs)
		}
	}
	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n\n", d, rs)
}

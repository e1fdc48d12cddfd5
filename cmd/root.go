package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/hostwatch/internal/config"
	"github.com/maxvaer/hostwatch/internal/runner"
	"github.com/maxvaer/hostwatch/pkg/version"
)

var (
	opts       = config.Defaults()
	configFile string
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"host", "port", "tls", "path", "insecure"}},
	{"PROBE", []string{"match", "timeout", "user-agent"}},
	{"WATCHDOG", []string{"wait", "threshold", "once", "recover-cmd"}},
	{"OUTPUT", []string{"show-response", "quiet", "no-color", "verbose"}},
	{"CONFIGURATION", []string{"config"}},
}

var rootCmd = &cobra.Command{
	Use:     "hostwatch -H <host> -m <string> [flags]",
	Short:   "Connectivity watchdog with automatic recovery",
	Version: version.Version,
	Long: `hostwatch periodically verifies that a remote host is reachable and
serving expected content. After a configurable number of consecutive
failed probes it runs an external recovery command (e.g. a reboot).`,
	Example: `  hostwatch -H example.com -m "Welcome"
  hostwatch -H 10.0.0.1 -p 8080 -m "ok" --wait 30s --threshold 5
  hostwatch -H router.local -m "status" --recover-cmd "reboot"
  hostwatch -H example.com --tls -m "Welcome" --show-response
  hostwatch -H example.com -m "Welcome" --once
  hostwatch -c /etc/hostwatch.yaml`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			fileOpts, err := config.LoadFile(configFile)
			if err != nil {
				return err
			}
			applyFile(cmd, &fileOpts)
		}
		if err := opts.Validate(); err != nil {
			if strings.TrimSpace(opts.Host) == "" {
				_ = cmd.Help()
				fmt.Fprintln(os.Stderr)
			}
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.Host, "host", "H", "", "Target host name or address")
	f.IntVarP(&opts.Port, "port", "p", 0, "Target port (default 80, or 443 with --tls)")
	f.BoolVar(&opts.TLS, "tls", false, "Connect over TLS")
	f.StringVar(&opts.Path, "path", opts.Path, "Request path")
	f.BoolVarP(&opts.Insecure, "insecure", "k", false, "Skip TLS certificate verification")

	// Probe
	f.StringVarP(&opts.Match, "match", "m", "", "Substring the response body must contain")
	f.DurationVarP(&opts.Timeout, "timeout", "t", opts.Timeout, "Per-operation send/receive timeout")
	f.StringVar(&opts.UserAgent, "user-agent", "", "Custom User-Agent string")

	// Watchdog
	f.DurationVarP(&opts.Wait, "wait", "w", opts.Wait, "Wait time between probes")
	f.IntVarP(&opts.Threshold, "threshold", "n", opts.Threshold, "Consecutive failures before recovery")
	f.BoolVar(&opts.Once, "once", false, "Run a single probe and exit with its result")
	f.StringVarP(&opts.RecoverCmd, "recover-cmd", "r", "", "Shell command to run on threshold ({host}, {port}, {failures})")

	// Output
	f.BoolVar(&opts.ShowResponse, "show-response", false, "Print raw response headers and body per probe")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Warnings and errors only")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Debug logging")

	// Configuration
	f.StringVarP(&configFile, "config", "c", "", "YAML config file (flags take precedence)")

	// Custom help: categorized flags like httpx.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// applyFile merges config file values into opts. A flag the user set
// explicitly always wins over the file.
func applyFile(cmd *cobra.Command, file *config.Options) {
	changed := cmd.Flags().Changed

	if !changed("host") && file.Host != "" {
		opts.Host = file.Host
	}
	if !changed("port") && file.Port != 0 {
		opts.Port = file.Port
	}
	if !changed("tls") && file.TLS {
		opts.TLS = true
	}
	if !changed("path") && file.Path != "" {
		opts.Path = file.Path
	}
	if !changed("insecure") && file.Insecure {
		opts.Insecure = true
	}
	if !changed("match") && file.Match != "" {
		opts.Match = file.Match
	}
	if !changed("timeout") && file.Timeout != 0 {
		opts.Timeout = file.Timeout
	}
	if !changed("user-agent") && file.UserAgent != "" {
		opts.UserAgent = file.UserAgent
	}
	if !changed("wait") && file.Wait != 0 {
		opts.Wait = file.Wait
	}
	if !changed("threshold") && file.Threshold != 0 {
		opts.Threshold = file.Threshold
	}
	if !changed("recover-cmd") && file.RecoverCmd != "" {
		opts.RecoverCmd = file.RecoverCmd
	}
	if !changed("show-response") && file.ShowResponse {
		opts.ShowResponse = true
	}
	if !changed("quiet") && file.Quiet {
		opts.Quiet = true
	}
	if !changed("no-color") && file.NoColor {
		opts.NoColor = true
	}
	if !changed("verbose") && file.Verbose {
		opts.Verbose = true
	}
}

// Execute runs the root command. When the recovery command fails, the
// process exits with the recovery command's own exit status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
    __               __               __       __
   / /_  ____  _____/ /__      ______/ /______/ /_
  / __ \/ __ \/ ___/ __/ | /| / / __  / ___/ __  /
 / / / / /_/ (__  ) /_ | |/ |/ / /_/ / /__/ / / /
/_/ /_/\____/____/\__/ |__/|__/\__,_/\___/_/ /_/   %s

`, ver)
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cli/browser"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/smeltjs/smelt/internal/config"
	"github.com/smeltjs/smelt/internal/logging"
	"github.com/smeltjs/smelt/internal/preview"
	"github.com/smeltjs/smelt/internal/version"
)

// cliOptions collects the parsed CLI flags so run can be driven from tests.
type cliOptions struct {
	configPath   string
	explicitPath bool
	distDir      string
	host         string
	port         int
	open         string
	checkOnly    bool
	showVersion  bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr

	// Swappable in tests; opening real browsers from a test run is hostile.
	isTerminal  = term.IsTerminal
	openBrowser = browser.OpenURL

	shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run executes the preview flow for the parsed options and returns the exit
// code, keeping os.Exit out of the testable path.
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stdErr, "load config: %v\n", err)
		return 1
	}
	applyOverrides(cfg, opts)

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "init logging: %v\n", err)
		return 1
	}

	srv, err := preview.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "create preview server: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		resolved := srv.Options()
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["dist_dir"] = resolved.DistDir
		fields["host"] = resolved.Host
		fields["port"] = resolved.Port
		fields["https"] = resolved.TLS != nil
		fields["result"] = "ok"
		logger.WithFields(fields).Info("configuration valid")
		return 0
	}

	if err := srv.Listen(); err != nil {
		fmt.Fprintf(stdErr, "start preview server: %v\n", err)
		return 1
	}

	printBanner(srv.URLs())
	maybeOpenBrowser(srv, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("preview running")

	waitForShutdown()

	if err := srv.Close(); err != nil {
		fmt.Fprintf(stdErr, "shutdown: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags parses the CLI arguments and resolves the config path from
// the flag, the SMELT_CONFIG environment variable, or the default file name,
// in that order.
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("smelt-preview", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		distFlag   string
		hostFlag   string
		portFlag   int
		openFlag   string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "configuration file path (default ./smelt.toml, SMELT_CONFIG overrides)")
	fs.StringVar(&distFlag, "dist", "", "directory to serve, overriding the configured output path")
	fs.StringVar(&hostFlag, "host", "", "host to bind")
	fs.IntVar(&portFlag, "port", 0, "port to bind")
	fs.StringVar(&openFlag, "open", "", "open the browser once listening; a path opens below the served root")
	fs.BoolVar(&checkOnly, "check-config", false, "validate the configuration and exit")
	fs.BoolVar(&showVer, "version", false, "print version information")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("parse arguments: %w", err)
	}

	path := os.Getenv("SMELT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	explicit := path != ""
	if path == "" {
		path = config.DefaultFileName
	}

	return cliOptions{
		configPath:   path,
		explicitPath: explicit,
		distDir:      distFlag,
		host:         hostFlag,
		port:         portFlag,
		open:         openFlag,
		checkOnly:    checkOnly,
		showVersion:  showVer,
	}, nil
}

// loadConfig reads the resolved config file. A missing file is only an error
// when the user named one explicitly; otherwise the built-in defaults apply.
func loadConfig(opts cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err == nil {
		return cfg, nil
	}
	if !opts.explicitPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return nil, err
}

// applyOverrides folds CLI flags into the parsed configuration. Flags win
// over file values the same way preview values win over server ones.
func applyOverrides(cfg *config.Config, opts cliOptions) {
	if opts.distDir != "" {
		cfg.Preview.DistDir = opts.distDir
	}
	if opts.host != "" {
		cfg.Preview.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Preview.Port = opts.port
	}
	if opts.open != "" {
		cfg.Preview.Open = parseOpenFlag(opts.open)
	}
}

// parseOpenFlag mirrors the config file's bool-or-path semantics for the
// -open flag.
func parseOpenFlag(value string) config.OpenValue {
	switch strings.ToLower(value) {
	case "true":
		return config.OpenValue{Enabled: true}
	case "false":
		return config.OpenValue{Enabled: false}
	}
	target := value
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return config.OpenValue{Enabled: true, Target: target}
}

// printBanner writes the resolved endpoints, with ANSI styling only when
// stdout is a terminal.
func printBanner(urls preview.URLs) {
	styled := false
	if f, ok := stdOut.(*os.File); ok {
		styled = isTerminal(int(f.Fd()))
	}

	fmt.Fprintf(stdOut, "\n  %s  ready\n\n", style(styled, "1;36", "smelt preview"))
	for _, u := range urls.Local {
		fmt.Fprintf(stdOut, "  %s  %s   %s\n", style(styled, "36", "➜"), style(styled, "1", "Local:"), u)
	}
	for _, u := range urls.Network {
		fmt.Fprintf(stdOut, "  %s  %s %s\n", style(styled, "36", "➜"), style(styled, "2", "Network:"), u)
	}
	fmt.Fprintln(stdOut)
}

func style(enabled bool, code, s string) string {
	if !enabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// maybeOpenBrowser launches the default browser at the first resolved URL
// when the Open option asks for it. Failures are logged, never fatal; the
// server is already serving.
func maybeOpenBrowser(srv *preview.Server, logger *logrus.Logger) {
	opts := srv.Options()
	if !opts.Open.Enabled {
		return
	}

	urls := srv.URLs()
	var base string
	switch {
	case len(urls.Local) > 0:
		base = urls.Local[0]
	case len(urls.Network) > 0:
		base = urls.Network[0]
	default:
		return
	}

	target := base
	if opts.Open.Target != "" {
		target = strings.TrimSuffix(base, "/") + opts.Open.Target
	}
	if err := openBrowser(target); err != nil {
		logger.WithFields(logrus.Fields{
			"action": "open_browser",
			"url":    target,
		}).Warn(err.Error())
	}
}

// waitForShutdown blocks until an interrupt or termination signal arrives.
func waitForShutdown() os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)
	defer signal.Stop(ch)
	return <-ch
}

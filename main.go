package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/FrancoLiuDev/get-printer-count/collector"
	"github.com/FrancoLiuDev/get-printer-count/common/config"
	"github.com/FrancoLiuDev/get-printer-count/common/logger"
	"github.com/FrancoLiuDev/get-printer-count/common/util"
	"github.com/FrancoLiuDev/get-printer-count/report"
	"github.com/FrancoLiuDev/get-printer-count/scanner"
	"github.com/FrancoLiuDev/get-printer-count/sheet"
	"github.com/FrancoLiuDev/get-printer-count/storage"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	exitOK     = 0
	exitError  = 1
	exitCancel = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliFlags struct {
	configPath     string
	input          string
	out            string
	format         string
	metrics        string
	db             string
	history        string
	runs           int
	concurrency    int
	snmp           bool
	debug          bool
	quiet          bool
	generateConfig bool
	showVersion    bool
	set            map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: map[string]bool{}}
	fs := flag.NewFlagSet("get-printer-count", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "Configuration file path (default: search standard locations)")
	fs.StringVar(&f.input, "excel", "", "Printer list (.xlsx or .csv)")
	fs.StringVar(&f.input, "input", "", "Alias for -excel")
	fs.StringVar(&f.out, "out", "", "Output file path")
	fs.StringVar(&f.format, "format", "", "Output format: csv or json")
	fs.StringVar(&f.metrics, "metrics", "", "Write a Prometheus textfile to this path")
	fs.StringVar(&f.db, "db", "", "SQLite run history database")
	fs.StringVar(&f.history, "history", "", "Print the latest stored result for HOST and exit (needs -db)")
	fs.IntVar(&f.runs, "runs", 0, "List the N most recent stored runs and exit (needs -db)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Devices queried in parallel")
	fs.BoolVar(&f.snmp, "snmp", false, "Detect unknown models over SNMP")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.quiet, "quiet", false, "Suppress console logging")
	fs.BoolVar(&f.quiet, "q", false, "Shorthand for -quiet")
	fs.BoolVar(&f.generateConfig, "generate-config", false, "Generate default config file and exit")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// loadConfig resolves the config file: env/flag path first, then the search
// path. With no file anywhere the defaults plus environment are used.
func loadConfig(flagPath string) (*AppConfig, string, error) {
	if path := config.ResolveConfigPath(envPrefix, flagPath); path != "" {
		cfg, err := LoadAppConfig(path)
		return cfg, path, err
	}
	if path, _, err := config.FindConfigFile("config.toml", ""); err == nil {
		cfg, err := LoadAppConfig(path)
		return cfg, path, err
	}
	cfg := DefaultAppConfig()
	applyEnvOverrides(cfg)
	return cfg, "", nil
}

func (f *cliFlags) apply(cfg *AppConfig) {
	if f.set["excel"] || f.set["input"] {
		cfg.Input.Path = f.input
	}
	if f.set["out"] {
		cfg.Output.Path = f.out
	}
	if f.set["format"] {
		cfg.Output.Format = f.format
	}
	if f.set["metrics"] {
		cfg.Output.MetricsPath = f.metrics
	}
	if f.set["db"] {
		cfg.Database.Path = f.db
	}
	if f.set["concurrency"] {
		cfg.Concurrency = f.concurrency
	}
	if f.set["snmp"] {
		cfg.SNMP.Enabled = f.snmp
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	if flags.showVersion {
		fmt.Fprintf(stdout, "get-printer-count %s\n", Version)
		fmt.Fprintf(stdout, "Build Time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "Git Commit: %s\n", GitCommit)
		fmt.Fprintf(stdout, "Go Version: %s\n", runtime.Version())
		return exitOK
	}

	if flags.generateConfig {
		path := flags.configPath
		if path == "" {
			path = "config.toml"
		}
		if err := WriteDefaultAppConfig(path); err != nil {
			fmt.Fprintf(stderr, "Failed to generate config: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stdout, "Generated default configuration at %s\n", path)
		return exitOK
	}

	cfg, cfgPath, err := loadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitError
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitError
	}

	appLogger := logger.New(logger.LevelFromString(cfg.Logging.Level), cfg.Logging.Dir, 1000)
	appLogger.SetConsoleWriter(stderr)
	appLogger.SetRotationPolicy(logger.RotationPolicy{
		Enabled:    cfg.Logging.MaxSizeMB > 0,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: 14,
		MaxFiles:   cfg.Logging.MaxFiles,
	})
	if flags.quiet {
		appLogger.SetConsoleOutput(false)
	}
	defer appLogger.Close()
	logger.Global = appLogger
	storage.SetLogger(appLogger)

	if cfgPath != "" {
		appLogger.Debug("Loaded configuration", "path", cfgPath)
	}

	if flags.history != "" {
		return printHistory(ctx, cfg, flags.history, stdout, stderr)
	}
	if flags.set["runs"] {
		return printRuns(ctx, cfg, flags.runs, stdout, stderr)
	}

	if cfg.Input.Path == "" {
		fmt.Fprintln(stderr, "No printer list given: use -excel <file> or [input] path")
		return exitError
	}
	records, err := sheet.Load(cfg.Input.Path)
	if err != nil {
		var cfgErr *sheet.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "Configuration error: %v\n", cfgErr)
		} else {
			fmt.Fprintf(stderr, "Failed to read printer list: %v\n", err)
		}
		return exitError
	}
	appLogger.Info("Loaded printer list", "path", cfg.Input.Path, "devices", len(records))

	opts := collector.Options{Concurrency: cfg.Concurrency, Logger: appLogger}
	if cfg.SNMP.Enabled {
		opts.Detector = scanner.NewModelDetector(cfg.SNMPClientConfig(), appLogger)
	}
	prober := scanner.NewProber(cfg.ClientConfig(), appLogger)
	policy := prober.Config()
	appLogger.Debug("HTTP policy", "timeout", policy.Timeout, "max_redirects", policy.MaxRedirects,
		"schemes", policy.Schemes, "paths", policy.CandidatePaths)
	c := collector.New(prober, opts)

	started := time.Now()
	results, err := c.Run(ctx, records)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			appLogger.Warn("Run cancelled, no output written")
			return exitCancel
		}
		appLogger.Error("Run failed", "error", err)
		return exitError
	}
	finished := time.Now()

	if err := report.WriteFile(cfg.Output.Path, cfg.Output.Format, results); err != nil {
		appLogger.Error("Failed to write results", "path", cfg.Output.Path, "error", err)
		return exitError
	}
	appLogger.Info("Wrote results", "path", cfg.Output.Path, "rows", len(results), "format", cfg.Output.Format)

	term := util.NewTerminal(stdout)
	term.SetQuiet(flags.quiet)
	printSummary(term, results, cfg.Output.Path, finished.Sub(started))

	code := exitOK
	if cfg.Output.MetricsPath != "" {
		m := report.NewMetrics()
		m.Observe(results)
		if err := m.WriteTextfile(cfg.Output.MetricsPath); err != nil {
			appLogger.Error("Failed to write metrics", "path", cfg.Output.MetricsPath, "error", err)
			code = exitError
		}
	}

	if cfg.Database.Path != "" {
		if err := saveRun(ctx, cfg, started, finished, results); err != nil {
			appLogger.Error("Failed to store run history", "path", cfg.Database.Path, "error", err)
			code = exitError
		}
	}
	return code
}

func printSummary(term *util.Terminal, results []collector.Result, outPath string, elapsed time.Duration) {
	sum := collector.Summarize(results)
	counts := make([]util.Count, 0, len(collector.Statuses))
	for _, s := range collector.Statuses {
		counts = append(counts, util.Count{Label: string(s), N: sum[s], Good: s == collector.StatusOK})
	}
	term.ShowSummary(fmt.Sprintf("Queried %d devices in %s", len(results), elapsed.Round(time.Millisecond)), counts)
	if failed := len(results) - sum[collector.StatusOK]; failed > 0 {
		term.ShowWarning(fmt.Sprintf("%d devices returned no usable counters", failed))
	}
	term.ShowSuccess("Results written to " + outPath)
}

func saveRun(ctx context.Context, cfg *AppConfig, started, finished time.Time, results []collector.Result) error {
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	r := &storage.Run{StartedAt: started, FinishedAt: finished, Input: cfg.Input.Path}
	if err := store.SaveRun(ctx, r, results); err != nil {
		return err
	}
	if logger.Global != nil {
		logger.Global.Debug("Stored run", "run_id", r.ID, "devices", r.Devices)
	}
	return nil
}

func printRuns(ctx context.Context, cfg *AppConfig, limit int, stdout, stderr io.Writer) int {
	if cfg.Database.Path == "" {
		fmt.Fprintln(stderr, "-runs needs a database: use -db <file> or [database] path")
		return exitError
	}
	if limit <= 0 {
		fmt.Fprintln(stderr, "-runs must be a positive count")
		return exitError
	}
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open history: %v\n", err)
		return exitError
	}
	defer store.Close()

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read runs: %v\n", err)
		return exitError
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "%d\t%s\t%s\t%d\t%s\n", r.ID,
			r.StartedAt.Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Devices, r.Input)
	}
	return exitOK
}

func printHistory(ctx context.Context, cfg *AppConfig, host string, stdout, stderr io.Writer) int {
	if cfg.Database.Path == "" {
		fmt.Fprintln(stderr, "-history needs a database: use -db <file> or [database] path")
		return exitError
	}
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open history: %v\n", err)
		return exitError
	}
	defer store.Close()

	latest, err := store.LatestByHost(ctx, host)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(stderr, "No stored result for %s\n", host)
		return exitError
	}
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read history: %v\n", err)
		return exitError
	}
	if err := report.Write(stdout, cfg.Output.Format, []collector.Result{latest.Result}); err != nil {
		fmt.Fprintf(stderr, "Failed to print history: %v\n", err)
		return exitError
	}
	return exitOK
}

// Package cli implements the inspect-data command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/graphnet-team/datainspect/internal/app"
	"github.com/graphnet-team/datainspect/internal/config"
	"github.com/graphnet-team/datainspect/internal/observability"
	"github.com/graphnet-team/datainspect/internal/profile"
	"github.com/graphnet-team/datainspect/internal/report"
	"github.com/graphnet-team/datainspect/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type options struct {
	configFile string
	envFile    string
	dataDir    string
	cacheDir   string
	all        bool
	failFast   bool
	noColor    bool
	verbose    bool
	parallel   int
	lookup     int64
	profiles   []string

	// selected holds one flag per built-in profile key
	selected map[string]*bool
}

func newRootCmd() *cobra.Command {
	opts := &options{selected: map[string]*bool{}}

	rootCmd := &cobra.Command{
		Use:   "inspect-data",
		Short: "Inspect the provided event-store datasets",
		Long: "Inspect SQLite event stores: list tables, indexes and columns, count\n" +
			"events and explain the index lookup plan for each selected dataset.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&opts.all, "all", false, "Inspect all datasets.")
	for _, p := range profile.Builtin().All() {
		opts.selected[p.Key] = flags.Bool(p.Key, false, fmt.Sprintf("Inspect the %s dataset.", p.Name))
	}
	flags.StringSliceVar(&opts.profiles, "profile", nil, "Inspect configured datasets by key (repeatable)")

	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Base directory for relative store locations")
	flags.StringVar(&opts.cacheDir, "cache-dir", "", "Directory for staged remote and compressed stores")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "Stop at the first failing dataset")
	flags.IntVar(&opts.parallel, "parallel", 1, "Number of datasets inspected concurrently")
	flags.Int64Var(&opts.lookup, "lookup", 1, "Index value used for the query plan lookup")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable ANSI formatting")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress and operation statistics to stderr")

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func run(cmd *cobra.Command, opts *options) error {
	restore := setupLogging(cmd.ErrOrStderr(), opts.verbose)
	defer restore()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("invalid profile configuration: %w", err)
	}

	selected := make(map[string]bool, len(opts.selected)+len(opts.profiles))
	for key, on := range opts.selected {
		selected[key] = *on
	}
	for _, key := range opts.profiles {
		if _, ok := reg.Get(key); !ok {
			return fmt.Errorf("unknown profile %q", key)
		}
		selected[key] = true
	}

	profiles := reg.Select(opts.all, selected)
	if len(profiles) == 0 {
		return nil
	}

	stats := observability.NewOpStats()
	runner := &app.Runner{
		Stager:   storage.NewStager(cfg.DataDir, cfg.CacheDir, storage.S3Factory(cfg.Storage.S3)),
		Renderer: &report.TextRenderer{Color: cfg.Color},
		Stats:    stats,
		FailFast: cfg.FailFast,
		Parallel: cfg.Parallel,
		Lookup:   cfg.LookupValue,
	}

	summary, err := runner.Run(cmd.Context(), profiles, cmd.OutOrStdout())
	logStats(summary.RunID, stats)
	return err
}

// loadConfig builds the configuration with precedence flag > env > file > defaults.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	configFile := opts.configFile
	if configFile == "" {
		configFile = os.Getenv(config.EnvPrefix + "CONFIG")
	}

	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = opts.dataDir
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = opts.cacheDir
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = opts.failFast
	}
	if flags.Changed("parallel") {
		cfg.Parallel = opts.parallel
	}
	if flags.Changed("lookup") {
		cfg.LookupValue = opts.lookup
	}
	if opts.noColor {
		cfg.Color = false
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging routes the standard logger to w in verbose mode and
// silences it otherwise. The returned func restores the previous output.
func setupLogging(w io.Writer, verbose bool) func() {
	prev := log.Writer()
	if verbose {
		log.SetOutput(w)
	} else {
		log.SetOutput(io.Discard)
	}
	return func() { log.SetOutput(prev) }
}

func logStats(runID string, stats *observability.OpStats) {
	for _, s := range stats.Snapshot() {
		if s.LastError != "" {
			log.Printf("stats: run %s: %s calls=%d failures=%d mean=%s max=%s last_error=%q",
				runID, s.Operation, s.Calls, s.Failures, s.Mean(), s.Max, s.LastError)
			continue
		}
		log.Printf("stats: run %s: %s calls=%d failures=%d mean=%s max=%s",
			runID, s.Operation, s.Calls, s.Failures, s.Mean(), s.Max)
	}
}

package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/warp/vendor-analytics/config"
	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/logging"
	"github.com/warp/vendor-analytics/metrics"
	"github.com/warp/vendor-analytics/store/postgres"
	"github.com/warp/vendor-analytics/store/sqlite"
)

// NewRootCommand builds the vendorctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "vendorctl",
		Short: "Vendor inventory analytics pipeline",
		Long: `vendorctl loads vendor inventory files into a database and builds the
vendor_sales_summary table from them.

  vendorctl load        load every CSV, XLSX and Parquet file of the input dir
  vendorctl summarize   compute vendor_sales_summary from the loaded tables
  vendorctl export      write vendor_sales_summary to an .xlsx or .csv file
  vendorctl serve       serve the summary and run history over HTTP
  vendorctl runs        list recent load and summarize runs

Settings come from the environment (VENDOR_DATABASE_URL or DATABASE_URL,
INPUT_DIR, LOG_DIR, ...), an optional .env file, an optional --config YAML
file and the flags below, in increasing precedence.

Exit Codes:
  0  - Success
  1  - Failure`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("db", "", "database URL (sqlite path, sqlite://path or postgres://...)")
	pf.String("log-dir", "", "directory for log files")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.Duration("timeout", 0, "abort the run after this long (0 = no limit)")
	pf.String("metrics-file", "", "write Prometheus metrics to this file after the run")

	root.AddCommand(
		newLoadCommand(),
		newSummarizeCommand(),
		newExportCommand(),
		newServeCommand(),
		newRunsCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig reads the configuration and applies any flag the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("db", &cfg.DatabaseURL)
	override("log-dir", &cfg.LogDir)
	override("log-level", &cfg.LogLevel)
	override("metrics-file", &cfg.MetricsFile)
	override("input-dir", &cfg.InputDir)
	override("addr", &cfg.Server.Addr)
	if flags.Changed("timeout") {
		cfg.RunTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("workers") {
		cfg.LoadWorkers, _ = flags.GetInt("workers")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is what every command sets up before doing work.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	store   inventory.Store

	closeLog func() error
}

// open loads config, opens the command's log file and the store. The
// caller must call close on every path.
func open(cmd *cobra.Command, logFile string) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.New(logging.Options{
		Dir:    cfg.LogDir,
		File:   logFile,
		Level:  cfg.LogLevel,
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, log: log, metrics: metrics.New(), closeLog: closeLog}
	s.store, err = openStore(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", slog.String("error", err.Error()))
		_ = closeLog()
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.log.Warn("failed to close database", slog.String("error", err.Error()))
	}
	_ = s.closeLog()
}

// runContext bounds ctx by RunTimeout when one is configured.
func (s *session) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RunTimeout)
	}
	return context.WithCancel(ctx)
}

// writeMetrics dumps the registry when METRICS_FILE is set.
func (s *session) writeMetrics() {
	if s.cfg.MetricsFile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
		s.log.Warn("failed to write metrics file",
			slog.String("path", s.cfg.MetricsFile),
			slog.String("error", err.Error()))
	}
}

// openStore connects to the database named by url.
func openStore(ctx context.Context, url string) (inventory.Store, error) {
	driver, dsn, err := config.ParseDatabaseURL(url)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch driver {
	case config.DriverPostgres:
		st, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st, err := sqlite.New(dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

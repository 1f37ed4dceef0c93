// Command market-sim runs the commodity market simulator and its HTTP API.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantarc/commodity-sim/internal/api"
	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/sim"
	"github.com/quantarc/commodity-sim/pkg/logger"
)

type options struct {
	configPath    string
	host          string
	port          int
	logLevel      string
	seed          int64
	autoStart     bool
	populateDays  int
	populateTicks int
	exportFormat  string
	dataDir       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "market-sim",
		Short:         "Agent-based commodity market simulator",
		Long:          "market-sim runs a deterministic, tick-driven commodity market populated by heterogeneous trading agents and serves it over an HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a JSON config file (defaults apply when empty)")
	flags.StringVar(&opts.host, "host", "0.0.0.0", "bind address for the HTTP API")
	flags.IntVarP(&opts.port, "port", "p", 8080, "port for the HTTP API")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.Int64Var(&opts.seed, "seed", 0, "RNG seed (0 derives one from the wall clock)")
	flags.BoolVar(&opts.autoStart, "auto-start", false, "start the tick loop immediately")
	flags.IntVar(&opts.populateDays, "populate", 0, "fast-forward this many simulated days before serving")
	flags.IntVar(&opts.populateTicks, "populate-ticks", 0, "fast-forward exactly this many ticks before serving")
	flags.StringVar(&opts.exportFormat, "export-on-start", "", "export populated data before serving (csv or json)")
	flags.StringVar(&opts.dataDir, "data-dir", "data", "directory for exports")
	rootCmd.MarkFlagsMutuallyExclusive("populate", "populate-ticks")

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("market-sim v1.0.0")
		},
	}
}

func run(opts *options) error {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		opts.logLevel = lvl
	}

	zapLogger, err := logger.NewLogger(opts.logLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer zapLogger.Sync()

	cfg := config.Default()
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		zapLogger.Info("configuration loaded", zap.String("path", opts.configPath))
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	zapLogger.Info("initializing simulation",
		zap.Int64("seed", seed),
		zap.Int("agents", cfg.AgentCounts.Total()))

	ctrl, err := sim.New(cfg, seed, zapLogger)
	if err != nil {
		return fmt.Errorf("initialize simulation: %w", err)
	}

	if opts.populateTicks > 0 {
		if err := ctrl.PopulateTicks(opts.populateTicks); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	} else if opts.populateDays > 0 {
		if err := ctrl.Populate(opts.populateDays); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	}

	if opts.exportFormat != "" {
		if err := ctrl.Export(opts.exportFormat, opts.dataDir, 0); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		zapLogger.Info("startup export complete",
			zap.String("format", opts.exportFormat),
			zap.String("dataDir", opts.dataDir))
	}

	if opts.autoStart {
		if err := ctrl.Start(); err != nil {
			return fmt.Errorf("auto start: %w", err)
		}
	}

	server := api.NewServer(ctrl, zapLogger)
	addr := fmt.Sprintf("%s:%d", opts.host, opts.port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		ctrl.Stop()
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		zapLogger.Info("shutting down", zap.String("signal", sig.String()))
		ctrl.Stop()
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namcsi/apperception-clingo/internal/config"
	"github.com/namcsi/apperception-clingo/internal/encoding"
	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/logging"
	"github.com/namcsi/apperception-clingo/internal/metrics"
	"github.com/namcsi/apperception-clingo/internal/orchestrator"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/solver"
	"github.com/namcsi/apperception-clingo/internal/solver/clingo"
	"github.com/namcsi/apperception-clingo/internal/solver/remote"
	"github.com/namcsi/apperception-clingo/internal/state"
)

// #region flags
var (
	configPath    string
	metaInterp    string
	initConsts    []string
	logFile       string
	dbPath        string
	maxIterations int
	solverAddr    string
	clingoBinary  string
	aspDir        string
	metricsAddr   string
	stepMode      string
	timeLimit     time.Duration
	logLevel      string
	logJSON       bool
)

var rootCmd = &cobra.Command{
	Use:   "controller [flags] FILE...",
	Short: "Search for a unified interpretation of the given observation files",
	Long: `Runs an iterative-deepening search over frames of growing size. Each frame
is grounded and solved by clingo, improving interpretations are reported as
they are found, and the anytime log is rewritten after every event.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSearch,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	f.StringVarP(&metaInterp, "meta-interpreter", "m", encoding.Default,
		fmt.Sprintf("meta-interpreter used during search, one of %v", encoding.Names()))
	f.StringArrayVarP(&initConsts, "init", "i", nil, "initial frame value as <const>=<int>; repeatable")
	f.StringVarP(&logFile, "log-file", "j", "", "write the anytime log as JSON to this file")
	f.StringVar(&dbPath, "db", "", "also store the run in this SQLite database")
	f.IntVar(&maxIterations, "max-iterations", 20, "iteration ceiling of the frame schedule")
	f.StringVar(&solverAddr, "solver", "", "address of a solverd instance; empty runs clingo locally")
	f.StringVar(&clingoBinary, "clingo", "clingo", "clingo executable")
	f.StringVar(&aspDir, "asp-dir", "", "directory holding search/core.lp and meta-int/")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	f.StringVar(&stepMode, "step-mode", string(frame.StepPerKey), "solve after each key update (key) or each full delta (delta)")
	f.DurationVar(&timeLimit, "time-limit", 0, "search time limit per frame; 0 for none")
	f.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	f.BoolVar(&logJSON, "log-json", false, "emit process logs as JSON")
}
// #endregion flags

// #region main
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
// #endregion main

// #region run-search
func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sources, err := encoding.Sources(cfg.ASPDir, cfg.MetaInterpreter, args)
	if err != nil {
		return err
	}

	backend, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	var sinks []progress.Sink
	if cfg.LogFile != "" {
		sinks = append(sinks, progress.JSONFile{Path: cfg.LogFile})
	}

	var store *state.Store
	var runID string
	if cfg.DBPath != "" {
		store, err = state.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()
		runID, err = store.CreateRun(state.RunMeta{
			DomainFiles:     args,
			MetaInterpreter: cfg.MetaInterpreter,
			Seed:            cfg.Seed,
			Delta:           cfg.Delta,
			MaxIterations:   cfg.MaxIterations,
			SwitchEvery:     cfg.SwitchEvery,
			StepMode:        string(cfg.StepMode),
			Solver:          cfg.Solver.Addr,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, store.Sink(runID))
		logger.Info("run created", zap.String("run_id", runID), zap.String("db", cfg.DBPath))
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	opts := orchestrator.Options{
		Scheduler: cfg.SchedulerOptions(),
		Sources:   sources,
		Solver:    backend,
		TimeLimit: cfg.Solver.TimeLimit,
		Recorder:  progress.NewRecorder(sinks...),
		Report:    os.Stdout,
		Logger:    logger,
		Metrics:   m,
		RunID:     runID,
	}
	if store != nil {
		opts.Journal = store.DB()
	}
	driver, err := orchestrator.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("search starting",
		zap.Strings("sources", sources),
		zap.Stringer("seed", cfg.Seed),
		zap.Int("max_iterations", cfg.MaxIterations),
		zap.String("step_mode", string(cfg.StepMode)))
	res, err := driver.Search(ctx)

	status := state.RunCompleted
	switch {
	case errors.Is(err, context.Canceled):
		status = state.RunInterrupted
		err = nil
	case err != nil:
		status = state.RunFailed
	}
	if store != nil {
		if ferr := store.FinishRun(runID, status); ferr != nil {
			logger.Warn("finish run", zap.Error(ferr))
		}
	}
	if err != nil {
		return err
	}

	if res.Best != nil {
		logger.Info("search finished",
			zap.String("status", string(status)),
			zap.Int("frames", res.Frames),
			zap.Int("candidates", res.Candidates),
			zap.Int("best_cost", res.Best.Cost))
	} else {
		logger.Info("search finished without an interpretation",
			zap.String("status", string(status)),
			zap.Int("frames", res.Frames))
	}
	return nil
}
// #endregion run-search

// #region helpers
// loadConfig layers defaults, the config file, the environment and the
// flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("meta-interpreter") {
		cfg.MetaInterpreter = metaInterp
	}
	if f.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if f.Changed("db") {
		cfg.DBPath = dbPath
	}
	if f.Changed("max-iterations") {
		cfg.MaxIterations = maxIterations
	}
	if f.Changed("solver") {
		cfg.Solver.Addr = solverAddr
	}
	if f.Changed("clingo") {
		cfg.Solver.Binary = clingoBinary
	}
	if f.Changed("asp-dir") {
		cfg.ASPDir = aspDir
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if f.Changed("step-mode") {
		cfg.StepMode = frame.StepMode(stepMode)
	}
	if f.Changed("time-limit") {
		cfg.Solver.TimeLimit = timeLimit
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if f.Changed("log-json") {
		cfg.Logging.JSON = logJSON
	}
	if err := cfg.ApplyOverrides(initConsts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openBackend returns the remote client when a solver address is set and
// the local clingo backend otherwise.
func openBackend(cfg *config.Config, logger *zap.Logger) (solver.Solver, func(), error) {
	if cfg.Solver.Addr != "" {
		client, err := remote.Dial(cfg.Solver.Addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to solver at %s: %w", cfg.Solver.Addr, err)
		}
		return client, func() { client.Close() }, nil
	}
	return clingo.New(clingo.Options{
		Binary:    cfg.Solver.Binary,
		ExtraArgs: cfg.Solver.ExtraArgs,
		TempDir:   cfg.Solver.TempDir,
		Logger:    logger.Named("clingo"),
	}), func() {}, nil
}
// #endregion helpers

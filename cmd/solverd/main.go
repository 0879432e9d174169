package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/namcsi/apperception-clingo/internal/logging"
	"github.com/namcsi/apperception-clingo/internal/solver/clingo"
	"github.com/namcsi/apperception-clingo/internal/solver/remote"
)

// #region flags
var (
	listenAddr   string
	clingoBinary string
	timeLimit    time.Duration
	tempDir      string
	extraArgs    []string
	logLevel     string
	logJSON      bool
)

var rootCmd = &cobra.Command{
	Use:           "solverd",
	Short:         "Serve clingo solver sessions over gRPC",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&listenAddr, "listen", envOr("SOLVERD_ADDR", "localhost:50061"), "address to listen on")
	f.StringVar(&clingoBinary, "clingo", envOr("APPERCEPTION_CLINGO", "clingo"), "clingo executable")
	f.DurationVar(&timeLimit, "time-limit", 0, "default search time limit per session; 0 for none")
	f.StringVar(&tempDir, "temp-dir", "", "parent directory for session files")
	f.StringArrayVar(&extraArgs, "clingo-arg", nil, "extra argument for the search phase; repeatable")
	f.StringVar(&logLevel, "log-level", envOr("APPERCEPTION_LOG_LEVEL", "info"), "debug, info, warn or error")
	f.BoolVar(&logJSON, "log-json", true, "emit logs as JSON")
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

// #region serve
func serve(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(logLevel, logJSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	backend := clingo.New(clingo.Options{
		Binary:    clingoBinary,
		TimeLimit: timeLimit,
		ExtraArgs: extraArgs,
		TempDir:   tempDir,
		Logger:    logger.Named("clingo"),
	})

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	gs := grpc.NewServer()
	remote.NewServer(backend, tempDir, logger.Named("server")).Register(gs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		gs.GracefulStop()
	}()

	logger.Info("solverd ready", zap.String("addr", lis.Addr().String()), zap.String("clingo", clingoBinary))
	return gs.Serve(lis)
}
// #endregion serve

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/namcsi/apperception-clingo/internal/logging"
	"github.com/namcsi/apperception-clingo/internal/replay"
)

// #region main

func main() {
	os.Exit(newRootCmd(os.Stdout).execute())
}

type rootCmd struct {
	*cobra.Command
	exitCode int
}

func newRootCmd(out io.Writer) *rootCmd {
	var (
		fixturePath string
		showReport  bool
		logLevel    string
	)
	rc := &rootCmd{}
	rc.Command = &cobra.Command{
		Use:           "replay",
		Short:         "Re-run a recorded search from a fixture and compare the rules",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixturePath == "" {
				return fmt.Errorf("--fixture is required")
			}
			f, err := replay.LoadFixture(fixturePath)
			if err != nil {
				return err
			}
			logger, err := logging.New(logLevel, false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			report := io.Discard
			if showReport {
				report = out
			}
			summary, err := replay.Run(context.Background(), f, report, logger)
			if err != nil {
				return err
			}
			if !printSummary(out, summary) {
				rc.exitCode = 1
			}
			return nil
		},
	}
	rc.Flags().StringVarP(&fixturePath, "fixture", "f", "", "path to fixture JSON")
	rc.Flags().BoolVar(&showReport, "report", false, "print the operator report while replaying")
	rc.Flags().StringVar(&logLevel, "log-level", "warn", "log level")
	return rc
}

func (rc *rootCmd) execute() int {
	if err := rc.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return rc.exitCode
}

// #endregion main

// #region output

// printSummary writes the replay outcome and reports whether it matched.
func printSummary(w io.Writer, s replay.ReplaySummary) bool {
	best := "-"
	if s.BestCost != nil {
		best = fmt.Sprint(*s.BestCost)
	}
	fmt.Fprintf(w, "Summary: %d sessions, %d candidates, best cost %s\n", s.Sessions, s.Candidates, best)
	for _, m := range s.Mismatches {
		fmt.Fprintf(w, "DIFF %s\n", m)
	}
	if s.Passed() {
		fmt.Fprintln(w, "OK")
		return true
	}
	fmt.Fprintf(w, "%d mismatches\n", len(s.Mismatches))
	return false
}

// #endregion output

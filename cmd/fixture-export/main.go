package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/namcsi/apperception-clingo/internal/replay"
	"github.com/namcsi/apperception-clingo/internal/state"
)

// #region main

func main() {
	var dbPath, runID, outPath string
	cmd := &cobra.Command{
		Use:           "fixture-export",
		Short:         "Export a stored run as a replay fixture",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" || outPath == "" {
				return errors.New("--db and --out are required")
			}
			return run(dbPath, runID, outPath)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", os.Getenv("APPERCEPTION_DB"), "path to the run store")
	cmd.Flags().StringVar(&runID, "run", "", "run to export (default: most recent)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output fixture JSON path")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, runID, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if runID == "" {
		recent, err := store.ListRuns(1)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			return errors.New("no runs in store")
		}
		runID = recent[0].RunID
	}

	rec, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	runs, err := store.LoadRun(runID)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("run %s has no frames", runID)
	}

	f, err := replay.FromRun(rec.Meta, runs)
	if err != nil {
		return err
	}
	if err := f.Save(outPath); err != nil {
		return err
	}

	models := 0
	for _, s := range f.Sessions {
		models += len(s.Models)
	}
	fmt.Fprintf(os.Stderr, "exported run %s: %d sessions, %d models -> %s\n", runID, len(f.Sessions), models, outPath)
	return nil
}

// #endregion export

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/namcsi/apperception-clingo/internal/interp"
	"github.com/namcsi/apperception-clingo/internal/logging"
	"github.com/namcsi/apperception-clingo/internal/progress"
	"github.com/namcsi/apperception-clingo/internal/state"
)

// #region commands
var (
	dbPath   string
	jsonOut  bool
	last     int
	showBest bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Read back search runs from a JSON anytime log or the run store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", os.Getenv("APPERCEPTION_DB"), "path to the run store")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List the most recent runs in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return runListMode(cmd.OutOrStdout(), store, last)
		},
	}
	runsCmd.Flags().IntVar(&last, "last", 20, "show N most recent runs")

	showCmd := &cobra.Command{
		Use:   "show <run-id|log.json>",
		Short: "Show the frames and interpretations of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := loadRuns(args[0])
			if err != nil {
				return err
			}
			return runDetailMode(cmd.OutOrStdout(), runs, showBest)
		},
	}
	showCmd.Flags().BoolVar(&showBest, "best", false, "also print the cheapest interpretation in full")

	eventsCmd := &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the search event journal of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return runEventsMode(cmd.OutOrStdout(), store, args[0])
		},
	}

	root.AddCommand(runsCmd, showCmd, eventsCmd)
	return root
}
// #endregion commands

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
// #endregion main

// #region list-mode
type listRow struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Meta       string `json:"meta_interpreter"`
	Frames     int    `json:"frames"`
	BestCost   *int   `json:"best_cost,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func runListMode(w io.Writer, store *state.Store, last int) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[i] = listRow{
			RunID:     r.RunID,
			Status:    string(r.Status),
			Meta:      r.Meta.MetaInterpreter,
			Frames:    r.Frames,
			BestCost:  r.BestCost,
			StartedAt: r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
		if r.FinishedAt != nil {
			rows[i].FinishedAt = r.FinishedAt.Format("2006-01-02T15:04:05Z")
		}
	}
	if jsonOut {
		return printJSON(w, rows)
	}

	fmt.Fprintf(w, "%-12s  %-11s  %-14s  %6s  %6s  %s\n", "Run", "Status", "Meta", "Frames", "Best", "Started")
	fmt.Fprintf(w, "%-12s+-%-11s+-%-14s+-%6s+-%6s+-%s\n",
		"------------", "-----------", "--------------", "------", "------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s  %-11s  %-14s  %6d  %6s  %s\n",
			shortID(r.RunID), r.Status, r.Meta, r.Frames, optInt(r.BestCost), r.StartedAt)
	}
	return nil
}
// #endregion list-mode

// #region detail-mode
func loadRuns(ref string) ([]progress.FrameRun, error) {
	if _, err := os.Stat(ref); err == nil {
		return progress.ReadJSONFile(ref)
	}
	if dbPath == "" {
		return nil, fmt.Errorf("%s is not a file and no --db was given", ref)
	}
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.LoadRun(ref)
}

func runDetailMode(w io.Writer, runs []progress.FrameRun, best bool) error {
	if jsonOut {
		return printJSON(w, runs)
	}
	fmt.Fprintf(w, "%5s  %-s\n", "Frame", "Parameters")
	var cheapest *interp.Record
	for i, fr := range runs {
		fmt.Fprintf(w, "%5d  %s\n", i, fr.Frame)
		fmt.Fprintf(w, "       ground %s  solve %s  interpretations %d\n",
			optSeconds(fr.GroundEnd), optSeconds(fr.SolveEnd), len(fr.Interpretations))
		for j := range fr.Interpretations {
			rec := &fr.Interpretations[j]
			fmt.Fprintf(w, "       cost %-4d incorrect %-3d at %.4fs  rules %d\n",
				rec.Cost, rec.Incorrect, rec.Time, len(rec.Rules))
			if cheapest == nil || rec.Cost < cheapest.Cost {
				cheapest = rec
			}
		}
	}
	if best {
		if cheapest == nil {
			fmt.Fprintln(w, "\nno interpretation found")
			return nil
		}
		fmt.Fprintln(w)
		return interp.WriteReport(w, *cheapest)
	}
	return nil
}
// #endregion detail-mode

// #region events-mode
type eventRow struct {
	Kind      string `json:"kind"`
	Frame     *int   `json:"frame,omitempty"`
	Cost      *int   `json:"cost,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runEventsMode(w io.Writer, store *state.Store, runID string) error {
	if _, err := store.GetRun(runID); err != nil {
		return err
	}
	events, err := logging.ListEvents(store.DB(), runID)
	if err != nil {
		return err
	}
	rows := make([]eventRow, len(events))
	for i, ev := range events {
		rows[i] = eventRow{
			Kind:      string(ev.Kind),
			Frame:     ev.FrameIdx,
			Cost:      ev.Cost,
			Detail:    ev.Detail,
			CreatedAt: ev.CreatedAt.Format("2006-01-02T15:04:05.000Z"),
		}
	}
	if jsonOut {
		return printJSON(w, rows)
	}
	fmt.Fprintf(w, "%-24s  %-11s  %5s  %6s  %s\n", "Time", "Kind", "Frame", "Cost", "Detail")
	for _, r := range rows {
		fmt.Fprintf(w, "%-24s  %-11s  %5s  %6s  %s\n", r.CreatedAt, r.Kind, optInt(r.Frame), optInt(r.Cost), r.Detail)
	}
	return nil
}
// #endregion events-mode

// #region output
func openStore() (*state.Store, error) {
	if dbPath == "" {
		return nil, errors.New("usage: inspect --db path/to/runs.db ...")
	}
	return state.NewStore(dbPath)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func optSeconds(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4fs", *v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
// #endregion output

package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/namcsi/apperception-clingo/internal/interp"
	"github.com/namcsi/apperception-clingo/internal/progress"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	meta_json     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS frame_runs (
	run_id        TEXT NOT NULL,
	frame_idx     INTEGER NOT NULL,
	frame_json    TEXT NOT NULL,
	ground_end    REAL,
	solve_end     REAL,
	PRIMARY KEY (run_id, frame_idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS interpretations (
	run_id        TEXT NOT NULL,
	frame_idx     INTEGER NOT NULL,
	seq           INTEGER NOT NULL,
	cost          INTEGER NOT NULL,
	num_incorrect INTEGER NOT NULL,
	found_at      REAL NOT NULL,
	record_json   TEXT NOT NULL,
	PRIMARY KEY (run_id, frame_idx, seq),
	FOREIGN KEY (run_id, frame_idx) REFERENCES frame_runs(run_id, frame_idx)
);

CREATE TABLE IF NOT EXISTS search_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	kind          TEXT NOT NULL,
	frame_idx     INTEGER,
	frame_json    TEXT,
	cost          INTEGER,
	detail        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`
// #endregion schema

// #region store-struct
// Store keeps search runs and their anytime logs in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region create-run
// CreateRun inserts a new running run and returns its id.
func (s *Store) CreateRun(meta RunMeta) (string, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	id := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, status, started_at, meta_json) VALUES (?, ?, ?, ?)`,
		id, string(RunRunning), time.Now().UTC().Format(timeLayout), string(metaJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}
// #endregion create-run

// #region save-snapshot
// SaveSnapshot brings the stored log of runID up to date with runs in a
// single transaction. Frame runs are upserted; interpretations are
// append-only, so rows already stored are kept.
func (s *Store) SaveSnapshot(runID string, runs []progress.FrameRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, fr := range runs {
		frameJSON, err := json.Marshal(fr.Frame)
		if err != nil {
			return fmt.Errorf("marshal frame: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO frame_runs (run_id, frame_idx, frame_json, ground_end, solve_end)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, frame_idx) DO UPDATE SET
			   frame_json = excluded.frame_json,
			   ground_end = excluded.ground_end,
			   solve_end  = excluded.solve_end`,
			runID, i, string(frameJSON), nullFloat(fr.GroundEnd), nullFloat(fr.SolveEnd),
		)
		if err != nil {
			return fmt.Errorf("upsert frame %d: %w", i, err)
		}
		for j, rec := range fr.Interpretations {
			recJSON, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal interpretation: %w", err)
			}
			_, err = tx.Exec(
				`INSERT OR IGNORE INTO interpretations
				 (run_id, frame_idx, seq, cost, num_incorrect, found_at, record_json)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, i, j, rec.Cost, rec.Incorrect, rec.Time, string(recJSON),
			)
			if err != nil {
				return fmt.Errorf("insert interpretation %d/%d: %w", i, j, err)
			}
		}
	}

	return tx.Commit()
}

// Sink returns a progress.Sink that saves snapshots under runID.
func (s *Store) Sink(runID string) progress.Sink {
	return runSink{store: s, runID: runID}
}

type runSink struct {
	store *Store
	runID string
}

func (r runSink) Flush(runs []progress.FrameRun) error {
	return r.store.SaveSnapshot(r.runID, runs)
}
// #endregion save-snapshot

// #region finish-run
// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(runID string, status RunStatus) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		string(status), time.Now().UTC().Format(timeLayout), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
// #endregion finish-run

// #region load-run
// LoadRun reads back the stored log of runID in frame and discovery order.
func (s *Store) LoadRun(runID string) ([]progress.FrameRun, error) {
	if _, err := s.GetRun(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT frame_idx, frame_json, ground_end, solve_end
		 FROM frame_runs WHERE run_id = ? ORDER BY frame_idx`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	var runs []progress.FrameRun
	for rows.Next() {
		var idx int
		var frameJSON string
		var groundEnd, solveEnd sql.NullFloat64
		if err := rows.Scan(&idx, &frameJSON, &groundEnd, &solveEnd); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		fr := progress.FrameRun{Interpretations: []interp.Record{}}
		if err := json.Unmarshal([]byte(frameJSON), &fr.Frame); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshal frame: %w", err)
		}
		if groundEnd.Valid {
			fr.GroundEnd = &groundEnd.Float64
		}
		if solveEnd.Valid {
			fr.SolveEnd = &solveEnd.Float64
		}
		runs = append(runs, fr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	irows, err := s.db.Query(
		`SELECT frame_idx, record_json FROM interpretations
		 WHERE run_id = ? ORDER BY frame_idx, seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load interpretations: %w", err)
	}
	defer irows.Close()
	for irows.Next() {
		var idx int
		var recJSON string
		if err := irows.Scan(&idx, &recJSON); err != nil {
			return nil, fmt.Errorf("scan interpretation: %w", err)
		}
		if idx < 0 || idx >= len(runs) {
			return nil, fmt.Errorf("interpretation for unknown frame %d", idx)
		}
		var rec interp.Record
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal interpretation: %w", err)
		}
		runs[idx].Interpretations = append(runs[idx].Interpretations, rec)
	}
	return runs, irows.Err()
}
// #endregion load-run

// #region get-run
// GetRun reads one run with its summary columns.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(runSelect+` WHERE r.run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	return rec, err
}
// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(runSelect+` ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-runs

// #region helpers
const runSelect = `SELECT r.run_id, r.status, r.started_at, r.finished_at, r.meta_json,
	(SELECT COUNT(*) FROM frame_runs f WHERE f.run_id = r.run_id),
	(SELECT MIN(i.cost) FROM interpretations i WHERE i.run_id = r.run_id)
	FROM runs r`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var status, startedStr, metaJSON string
	var finishedStr sql.NullString
	var bestCost sql.NullInt64
	if err := row.Scan(&rec.RunID, &status, &startedStr, &finishedStr, &metaJSON, &rec.Frames, &bestCost); err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	rec.Status = RunStatus(status)
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finishedStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finishedStr.String)
		rec.FinishedAt = &t
	}
	if bestCost.Valid {
		c := int(bestCost.Int64)
		rec.BestCost = &c
	}
	if err := json.Unmarshal([]byte(metaJSON), &rec.Meta); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal meta: %w", err)
	}
	return rec, nil
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
// #endregion helpers

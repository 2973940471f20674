package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/monabf/learn-observe-KKL/train"
	_ "modernc.org/sqlite"
)

// RunStore records training runs and their per-epoch metrics in a local
// SQLite database, so separate experiments on the same system can be
// compared after the fact.
type RunStore struct {
	db *sql.DB
}

// Run is one row of the runs table.
type Run struct {
	ID          string
	System      string
	Method      string
	StartedAt   time.Time
	FinishedAt  time.Time
	BestEpoch   int
	BestValLoss float64
	Finished    bool
}

// OpenRunStore opens (creating if needed) the database at path and
// ensures the schema exists.
func OpenRunStore(ctx context.Context, path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping run store: %w", err)
	}
	s := &RunStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	system        TEXT NOT NULL,
	method        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER,
	best_epoch    INTEGER,
	best_val_loss REAL
);
CREATE TABLE IF NOT EXISTS epochs (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	epoch      INTEGER NOT NULL,
	lr         REAL NOT NULL,
	train_loss REAL NOT NULL,
	val_loss   REAL,
	PRIMARY KEY (run_id, epoch)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create run store schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new run row and returns its generated id.
func (s *RunStore) CreateRun(ctx context.Context, system, method string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, system, method, started_at) VALUES (?, ?, ?, ?)`,
		id, system, method, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// RecordEpoch appends one epoch of a run. The validation loss is stored
// as NULL for epochs where no validation pass happened.
func (s *RunStore) RecordEpoch(ctx context.Context, runID string, st train.EpochStats) error {
	val := sql.NullFloat64{Float64: st.ValLoss, Valid: st.Validated}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO epochs (run_id, epoch, lr, train_loss, val_loss) VALUES (?, ?, ?, ?, ?)`,
		runID, st.Epoch, st.LR, st.TrainLoss, val)
	if err != nil {
		return fmt.Errorf("record epoch %d: %w", st.Epoch, err)
	}
	return nil
}

// FinishRun marks the run complete with its final report.
func (s *RunStore) FinishRun(ctx context.Context, runID string, report *train.Report) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, best_epoch = ?, best_val_loss = ? WHERE id = ?`,
		time.Now().Unix(), report.BestEpoch, report.BestValLoss, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Runs lists all recorded runs, newest first.
func (s *RunStore) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, system, method, started_at, finished_at, best_epoch, best_val_loss
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		var bestEpoch sql.NullInt64
		var bestLoss sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.System, &r.Method, &started, &finished, &bestEpoch, &bestLoss); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			r.Finished = true
			r.FinishedAt = time.Unix(finished.Int64, 0)
		}
		r.BestEpoch = int(bestEpoch.Int64)
		r.BestValLoss = bestLoss.Float64
		out = append(out, r)
	}
	return out, rows.Err()
}

// Epochs returns the recorded history of one run in epoch order.
func (s *RunStore) Epochs(ctx context.Context, runID string) ([]train.EpochStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epoch, lr, train_loss, val_loss FROM epochs WHERE run_id = ? ORDER BY epoch`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("epochs for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []train.EpochStats
	for rows.Next() {
		var st train.EpochStats
		var val sql.NullFloat64
		if err := rows.Scan(&st.Epoch, &st.LR, &st.TrainLoss, &val); err != nil {
			return nil, err
		}
		st.ValLoss = val.Float64
		st.Validated = val.Valid
		out = append(out, st)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *RunStore) Close() error { return s.db.Close() }

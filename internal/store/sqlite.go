package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS training_runs (
	id            TEXT PRIMARY KEY,
	dataset       TEXT NOT NULL,
	target_column TEXT NOT NULL,
	artifact_path TEXT NOT NULL DEFAULT '',
	row_count     INTEGER NOT NULL,
	train_rows    INTEGER NOT NULL,
	test_rows     INTEGER NOT NULL,
	seed          INTEGER NOT NULL,
	n_estimators  INTEGER NOT NULL,
	r2            REAL NOT NULL,
	mae           REAL NOT NULL,
	rmse          REAL NOT NULL,
	importances   TEXT NOT NULL DEFAULT '[]',
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_training_runs_dataset ON training_runs(dataset);
CREATE INDEX IF NOT EXISTS idx_training_runs_created_at ON training_runs(created_at);
`

const runColumns = `id, dataset, target_column, artifact_path, row_count, train_rows, test_rows, seed, n_estimators, r2, mae, rmse, importances, duration_ms, created_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTrainingRun(ctx context.Context, run *TrainingRun) error {
	importances, err := json.Marshal(nonNil(run.Importances))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal importances")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO training_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.Dataset, run.TargetColumn, run.ArtifactPath,
		run.Rows, run.TrainRows, run.TestRows, run.Seed, run.NEstimators,
		run.R2, run.MAE, run.RMSE, string(importances), run.Duration.Milliseconds(), now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert training run")
	}

	run.ID = id
	run.CreatedAt = now
	return nil
}

func (s *SQLiteStore) GetTrainingRun(ctx context.Context, id string) (*TrainingRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM training_runs WHERE id = ?`,
		id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get training run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get training run %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListTrainingRuns(ctx context.Context, filter RunFilter) ([]TrainingRun, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs WHERE 1=1`
	var args []any

	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list training runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []TrainingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan training run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list training runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*TrainingRun, error) {
	var (
		r           TrainingRun
		importances string
		durationMS  int64
	)
	err := row.Scan(&r.ID, &r.Dataset, &r.TargetColumn, &r.ArtifactPath,
		&r.Rows, &r.TrainRows, &r.TestRows, &r.Seed, &r.NEstimators,
		&r.R2, &r.MAE, &r.RMSE, &importances, &durationMS, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(importances), &r.Importances); err != nil {
		return nil, eris.Wrap(err, "unmarshal importances")
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}

func nonNil(imp []Importance) []Importance {
	if imp == nil {
		return []Importance{}
	}
	return imp
}

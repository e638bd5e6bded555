package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock pools satisfy
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

const (
	insertRunSQL = `INSERT INTO training_runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	getRunSQL    = `SELECT ` + runColumns + ` FROM training_runs WHERE id = $1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_training_run": insertRunSQL,
	"get_training_run":    getRunSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS training_runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset       TEXT NOT NULL,
	target_column TEXT NOT NULL,
	artifact_path TEXT NOT NULL DEFAULT '',
	row_count     INTEGER NOT NULL,
	train_rows    INTEGER NOT NULL,
	test_rows     INTEGER NOT NULL,
	seed          BIGINT NOT NULL,
	n_estimators  INTEGER NOT NULL,
	r2            DOUBLE PRECISION NOT NULL,
	mae           DOUBLE PRECISION NOT NULL,
	rmse          DOUBLE PRECISION NOT NULL,
	importances   JSONB NOT NULL DEFAULT '[]',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_training_runs_dataset ON training_runs(dataset);
CREATE INDEX IF NOT EXISTS idx_training_runs_created_at ON training_runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateTrainingRun(ctx context.Context, run *TrainingRun) error {
	importances, err := json.Marshal(nonNil(run.Importances))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal importances")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx, insertRunSQL,
		id, run.Dataset, run.TargetColumn, run.ArtifactPath,
		run.Rows, run.TrainRows, run.TestRows, run.Seed, run.NEstimators,
		run.R2, run.MAE, run.RMSE, string(importances), run.Duration.Milliseconds(), now,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert training run")
	}

	run.ID = id
	run.CreatedAt = now
	return nil
}

func (s *PostgresStore) GetTrainingRun(ctx context.Context, id string) (*TrainingRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, getRunSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: get training run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get training run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListTrainingRuns(ctx context.Context, filter RunFilter) ([]TrainingRun, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Dataset != "" {
		query += fmt.Sprintf(` AND dataset = $%d`, argIdx)
		args = append(args, filter.Dataset)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list training runs")
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan training run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list training runs iterate")
}

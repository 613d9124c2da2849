package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shelfscan/shelfd/internal/model"
)

// ErrJobNotFound is returned by Repository.Get when no row matches the id.
var ErrJobNotFound = errors.New("jobs: not found")

// Repository is the durable half of the per-job singleton: the in-memory
// handle holds everything latency-sensitive (the ready signal, the bound
// stream), while Repository holds what must survive a restart.
type Repository interface {
	Insert(ctx context.Context, j model.Job) error
	Get(ctx context.Context, id string) (model.Job, error)
	UpdateProgress(ctx context.Context, id string, processed int) error
	SetState(ctx context.Context, id string, state model.JobState) error
	Close() error
}

// PGRepository persists jobs in Postgres via pgx, adapted from the
// teacher's internal/persist.go Persister (same pgxpool.Pool plumbing,
// repurposed from "in-flight author refresh" rows to job rows).
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository opens a pool against dsn and ensures the jobs table
// exists.
func NewPGRepository(ctx context.Context, dsn string) (*PGRepository, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ctx, schemaPG); err != nil {
		db.Close()
		return nil, err
	}
	return &PGRepository{db: db}, nil
}

const schemaPG = `
CREATE TABLE IF NOT EXISTS jobs (
	id text PRIMARY KEY,
	pipeline text NOT NULL,
	state text NOT NULL,
	total integer NOT NULL DEFAULT 0,
	processed integer NOT NULL DEFAULT 0,
	token text NOT NULL DEFAULT '',
	token_expires_at timestamptz,
	created_at timestamptz NOT NULL
)`

func (r *PGRepository) Insert(ctx context.Context, j model.Job) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO jobs (id, pipeline, state, total, processed, token, token_expires_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO NOTHING`,
		j.ID, string(j.Pipeline), string(j.State), j.Total, j.Processed, j.Token, j.TokenExpiresAt, j.CreatedAt)
	return err
}

func (r *PGRepository) Get(ctx context.Context, id string) (model.Job, error) {
	var j model.Job
	var pipeline, state string
	err := r.db.QueryRow(ctx,
		`SELECT id, pipeline, state, total, processed, token, token_expires_at, created_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &pipeline, &state, &j.Total, &j.Processed, &j.Token, &j.TokenExpiresAt, &j.CreatedAt)
	if err != nil {
		return model.Job{}, ErrJobNotFound
	}
	j.Pipeline = model.Pipeline(pipeline)
	j.State = model.JobState(state)
	return j, nil
}

func (r *PGRepository) UpdateProgress(ctx context.Context, id string, processed int) error {
	_, err := r.db.Exec(ctx, `UPDATE jobs SET processed = $2 WHERE id = $1`, id, processed)
	return err
}

func (r *PGRepository) SetState(ctx context.Context, id string, state model.JobState) error {
	_, err := r.db.Exec(ctx, `UPDATE jobs SET state = $2 WHERE id = $1`, id, string(state))
	return err
}

func (r *PGRepository) Close() error {
	r.db.Close()
	return nil
}

// SQLiteRepository is the zero-dependency local-dev and test backend for
// the same Repository interface, mirroring the teacher's habit of carrying
// both a Postgres and a SQLite driver in go.mod.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) a sqlite database at path, which
// may be ":memory:" for tests.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS jobs (
	id text PRIMARY KEY,
	pipeline text NOT NULL,
	state text NOT NULL,
	total integer NOT NULL DEFAULT 0,
	processed integer NOT NULL DEFAULT 0,
	token text NOT NULL DEFAULT '',
	token_expires_at datetime,
	created_at datetime NOT NULL
)`

func (r *SQLiteRepository) Insert(_ context.Context, j model.Job) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO jobs (id, pipeline, state, total, processed, token, token_expires_at, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		j.ID, string(j.Pipeline), string(j.State), j.Total, j.Processed, j.Token, j.TokenExpiresAt, j.CreatedAt)
	return err
}

func (r *SQLiteRepository) Get(_ context.Context, id string) (model.Job, error) {
	var j model.Job
	var pipeline, state string
	err := r.db.QueryRow(
		`SELECT id, pipeline, state, total, processed, token, token_expires_at, created_at
		 FROM jobs WHERE id = ?`, id,
	).Scan(&j.ID, &pipeline, &state, &j.Total, &j.Processed, &j.Token, &j.TokenExpiresAt, &j.CreatedAt)
	if err != nil {
		return model.Job{}, ErrJobNotFound
	}
	j.Pipeline = model.Pipeline(pipeline)
	j.State = model.JobState(state)
	return j, nil
}

func (r *SQLiteRepository) UpdateProgress(_ context.Context, id string, processed int) error {
	_, err := r.db.Exec(`UPDATE jobs SET processed = ? WHERE id = ?`, processed, id)
	return err
}

func (r *SQLiteRepository) SetState(_ context.Context, id string, state model.JobState) error {
	_, err := r.db.Exec(`UPDATE jobs SET state = ? WHERE id = ?`, string(state), id)
	return err
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

var _ Repository = (*PGRepository)(nil)
var _ Repository = (*SQLiteRepository)(nil)

// staleAfter matches spec.md's 24h reap window for abandoned jobs.
const staleAfter = 24 * time.Hour

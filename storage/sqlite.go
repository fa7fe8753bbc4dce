// Package storage keeps a history of collection runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/FrancoLiuDev/get-printer-count/collector"
	"github.com/FrancoLiuDev/get-printer-count/ledm"
)

// ErrNotFound is returned when no stored result exists for a host
var ErrNotFound = errors.New("no stored result for host")

// Logger interface for storage operations
type Logger interface {
	Error(msg string, context ...interface{})
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

var storageLogger Logger

// SetLogger sets the logger for the storage package
func SetLogger(logger Logger) {
	storageLogger = logger
}

// Run describes one invocation of the collector.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Input      string
	Devices    int
}

// StoredResult is a result as read back from the database.
type StoredResult struct {
	collector.Result
	RunID       int64
	CollectedAt time.Time
}

// Store persists runs and their results.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath. An empty path or
// ":memory:" gives a private in-memory database.
func Open(dbPath string) (*Store, error) {
	return open(dbPath, true)
}

func open(dbPath string, allowRotate bool) (*Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every :memory: connection is its own database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()

		if allowRotate && dbPath != ":memory:" {
			if storageLogger != nil {
				storageLogger.Error("Database migration failed, attempting to rotate database",
					"error", err, "path", dbPath)
			}
			backupPath, rotateErr := RotateDatabase(dbPath)
			if rotateErr != nil {
				return nil, fmt.Errorf("failed to migrate schema and unable to rotate database: %w (rotation error: %v)", err, rotateErr)
			}
			if storageLogger != nil {
				storageLogger.Warn("Database rotated due to migration failure - starting with fresh database",
					"backupPath", backupPath, "originalError", err.Error())
			}
			return open(dbPath, false)
		}
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores run and its results in one transaction and sets run.ID.
func (s *Store) SaveRun(ctx context.Context, run *Run, results []collector.Result) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	run.Devices = len(results)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, input_path, devices) VALUES (?, ?, ?, ?)`,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Input, run.Devices)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_results (
			run_id, position, host, model, parser_used, status,
			printer_total, copy_total, fax_total, mono, color, pcl6_total,
			detected_model, source_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		c := r.Counters
		if _, err := stmt.ExecContext(ctx,
			runID, i, r.Host, r.Model, r.Family, string(r.Status),
			nullInt(c.PrinterTotal), nullInt(c.CopyTotal), nullInt(c.FaxTotal),
			nullInt(c.Mono), nullInt(c.Color), nullInt(c.PCL6Total),
			r.DetectedModel, r.SourceURL,
		); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", r.Host, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = runID
	return nil
}

const resultColumns = `
	r.run_id, runs.finished_at, r.host, r.model, r.parser_used, r.status,
	r.printer_total, r.copy_total, r.fax_total, r.mono, r.color, r.pcl6_total,
	r.detected_model, r.source_url`

// LatestByHost returns the newest stored result for host, or ErrNotFound.
func (s *Store) LatestByHost(ctx context.Context, host string) (*StoredResult, error) {
	results, err := s.History(ctx, host, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return &results[0], nil
}

// History returns up to limit stored results for host, newest first. A limit
// of zero or less returns all of them.
func (s *Store) History(ctx context.Context, host string, limit int) ([]StoredResult, error) {
	query := `SELECT ` + resultColumns + `
		FROM usage_results r JOIN runs ON runs.id = r.run_id
		WHERE r.host = ?
		ORDER BY r.run_id DESC, r.position DESC`
	args := []interface{}{host}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		sr, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return out, nil
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_path, devices FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Input, &r.Devices); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (StoredResult, error) {
	var (
		sr       StoredResult
		finished int64
		status   string
		counts   [6]sql.NullInt64
	)
	err := row.Scan(
		&sr.RunID, &finished, &sr.Host, &sr.Model, &sr.Family, &status,
		&counts[0], &counts[1], &counts[2], &counts[3], &counts[4], &counts[5],
		&sr.DetectedModel, &sr.SourceURL,
	)
	if err != nil {
		return sr, fmt.Errorf("failed to scan result: %w", err)
	}
	sr.Status = collector.Status(status)
	sr.CollectedAt = time.UnixMilli(finished)
	sr.Counters = ledm.Counters{
		PrinterTotal: fromNull(counts[0]),
		CopyTotal:    fromNull(counts[1]),
		FaxTotal:     fromNull(counts[2]),
		Mono:         fromNull(counts[3]),
		Color:        fromNull(counts[4]),
		PCL6Total:    fromNull(counts[5]),
	}
	return sr, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

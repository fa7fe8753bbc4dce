package storage

import (
	"fmt"
	"time"
)

const targetSchemaVersion = 2

// migration upgrades the schema from version-1 to version.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "runs and usage results",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				started_at INTEGER NOT NULL,
				finished_at INTEGER NOT NULL,
				input_path TEXT NOT NULL DEFAULT '',
				devices INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at)`,
			`CREATE TABLE IF NOT EXISTS usage_results (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id INTEGER NOT NULL,
				position INTEGER NOT NULL,
				host TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				parser_used TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				printer_total INTEGER,
				copy_total INTEGER,
				fax_total INTEGER,
				mono INTEGER,
				color INTEGER,
				pcl6_total INTEGER,
				FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_results_host ON usage_results(host, run_id)`,
		},
	},
	{
		version: 2,
		name:    "detected model and source url",
		statements: []string{
			`ALTER TABLE usage_results ADD COLUMN detected_model TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE usage_results ADD COLUMN source_url TEXT NOT NULL DEFAULT ''`,
		},
	},
}

// migrate brings the schema to targetSchemaVersion, one transaction per step.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if current > targetSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, targetSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, ?)`,
			m.version, time.Now().UnixMilli()); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if storageLogger != nil {
			storageLogger.Info("Applied schema migration", "version", m.version, "name", m.name)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

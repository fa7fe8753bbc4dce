package storage

import (
	"fmt"
	"os"
	"time"
)

// RotateDatabase renames the database file with a timestamp suffix so a
// fresh one can be created after a failed migration. The WAL and SHM side
// files move with it. Returns the backup path.
//
// Example: history.db -> history.db.backup.2025-11-06T14-59-31
func RotateDatabase(dbPath string) (string, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return "", fmt.Errorf("cannot rotate in-memory database")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", fmt.Errorf("database file does not exist: %s", dbPath)
	}

	timestamp := time.Now().Format("2006-01-02T15-04-05")
	backupPath := fmt.Sprintf("%s.backup.%s", dbPath, timestamp)
	if _, err := os.Stat(backupPath); err == nil {
		backupPath = fmt.Sprintf("%s.%d", backupPath, time.Now().UnixNano())
	}

	if err := os.Rename(dbPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to rename database: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		side := dbPath + suffix
		if _, err := os.Stat(side); err == nil {
			_ = os.Rename(side, backupPath+suffix)
		}
	}
	return backupPath, nil
}

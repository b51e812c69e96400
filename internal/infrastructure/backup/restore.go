package backup

import (
	"fmt"
	"path/filepath"
)

// LatestBackup returns the newest backup of the given database file, or ""
// when none exists.
func LatestBackup(dir, dbPath string) (string, error) {
	backups, err := listBackups(dir, filepath.Base(dbPath))
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", nil
	}
	return backups[len(backups)-1], nil
}

// Restore replaces the database file with the newest backup. The daemon must
// not have the database open while restoring.
func Restore(dir, dbPath string) error {
	latest, err := LatestBackup(dir, dbPath)
	if err != nil {
		return err
	}
	if latest == "" {
		return fmt.Errorf("no backups found in %s", dir)
	}
	return copyFile(latest, dbPath)
}

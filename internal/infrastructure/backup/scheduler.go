package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config controls the settings-database backup schedule.
type Config struct {
	Dir       string
	Interval  time.Duration
	Retention int // number of backup files to keep
}

// Scheduler periodically copies the settings database into the backup
// directory and prunes old copies. The copy is a plain file copy; the
// database is opened with a single connection so a point-in-time copy is
// consistent between requests.
type Scheduler struct {
	dbPath   string
	cfg      Config
	logger   *zap.Logger
	stopChan chan struct{}
}

func NewScheduler(dbPath string, cfg Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		dbPath:   dbPath,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs the schedule until Stop is called or ctx is cancelled. An
// initial backup runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runBackup()

	for {
		select {
		case <-ticker.C:
			s.runBackup()
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runBackup() {
	name, err := s.createBackup()
	if err != nil {
		s.logger.Error("settings backup failed", zap.Error(err))
		return
	}
	s.logger.Info("settings backup created", zap.String("backup", name))

	if err := s.prune(); err != nil {
		s.logger.Warn("backup pruning failed", zap.Error(err))
	}
}

func (s *Scheduler) createBackup() (string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s.bak", filepath.Base(s.dbPath), time.Now().UTC().Format("20060102T150405"))
	dst := filepath.Join(s.cfg.Dir, name)

	if err := copyFile(s.dbPath, dst); err != nil {
		return "", err
	}
	return name, nil
}

// prune removes the oldest backups beyond the retention count.
func (s *Scheduler) prune() error {
	backups, err := listBackups(s.cfg.Dir, filepath.Base(s.dbPath))
	if err != nil {
		return err
	}
	if len(backups) <= s.cfg.Retention {
		return nil
	}
	for _, stale := range backups[:len(backups)-s.cfg.Retention] {
		if err := os.Remove(stale); err != nil {
			return fmt.Errorf("remove stale backup %s: %w", stale, err)
		}
		s.logger.Debug("removed stale backup", zap.String("backup", stale))
	}
	return nil
}

// listBackups returns backup paths for the given database, oldest first.
// Timestamps sort lexically, so a name sort is a time sort.
func listBackups(dir, dbName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var backups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), dbName+".") && strings.HasSuffix(e.Name(), ".bak") {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(backups)
	return backups, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy to %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

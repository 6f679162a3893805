package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/export"
	applog "financeiro/internal/log"
)

// backupPrefix matches export.Filename.
const backupPrefix = "controle_financeiro_"

// BackupJob writes a dated JSON export and keeps the newest Retain files.
// Running twice on the same day overwrites that day's backup. A run that
// cannot read the store writes and prunes nothing.
type BackupJob struct {
	Source Source
	Dir    string
	Retain int
	Now    func() time.Time
	Logger *slog.Logger
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(applog.FieldComponent, applog.ComponentBackup)

	j.Source.Refresh()
	snap, err := j.Source.Snapshot(ctx)
	if err != nil {
		// keep the existing backups untouched
		return fmt.Errorf("read store: %w", err)
	}

	path := filepath.Join(j.Dir, export.Filename(export.FormatJSON, core.DateOf(now())))
	n, err := writeExport(path, export.FormatJSON, snap)
	if err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	logger.InfoContext(ctx, "Backup written", applog.FieldFile, path, applog.FieldBytes, n)

	removed, err := j.prune()
	if err != nil {
		return fmt.Errorf("prune backups: %w", err)
	}
	if len(removed) > 0 {
		logger.InfoContext(ctx, "Old backups removed", "count", len(removed), "retain", j.Retain)
	}
	return nil
}

// Backups lists backup files in dir, oldest first.
func Backups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && isBackupName(name) {
			names = append(names, name)
		}
	}
	// dates are zero padded, so lexical order is chronological
	slices.Sort(names)
	return names, nil
}

func isBackupName(name string) bool {
	day, ok := strings.CutPrefix(name, backupPrefix)
	if !ok {
		return false
	}
	day, ok = strings.CutSuffix(day, ".json")
	if !ok {
		return false
	}
	_, err := core.ParseDate(day)
	return err == nil && len(day) == len(core.DateLayout)
}

func (j *BackupJob) prune() ([]string, error) {
	names, err := Backups(j.Dir)
	if err != nil {
		return nil, err
	}
	if j.Retain < 1 || len(names) <= j.Retain {
		return nil, nil
	}
	stale := names[:len(names)-j.Retain]
	for _, name := range stale {
		if err := os.Remove(filepath.Join(j.Dir, name)); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

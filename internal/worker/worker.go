// Package worker keeps derived files in step with the record store: the
// latest CSV and JSON exports after every change, and dated backups on a
// schedule.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/export"
	applog "financeiro/internal/log"
)

// LatestName is the base name of the continuously refreshed exports.
const LatestName = "financeiro_latest"

// Source is the record store as seen by the worker.
type Source interface {
	// Refresh drops cached collections so the next read hits the database.
	Refresh()
	// Snapshot fails when the backend cannot be read, so an outage never
	// overwrites exports or backups with empty data.
	Snapshot(ctx context.Context) (core.Snapshot, error)
}

// ExportObserver counts generated exports.
type ExportObserver interface {
	ObserveExport(format string)
}

// ExportWorker rewrites the latest exports from the shared store.
type ExportWorker struct {
	source   Source
	dir      string
	logger   *slog.Logger
	observer ExportObserver
}

func NewExportWorker(source Source, dir string, logger *slog.Logger, observer ExportObserver) *ExportWorker {
	return &ExportWorker{
		source:   source,
		dir:      dir,
		logger:   logger.With(applog.FieldComponent, applog.ComponentWorker),
		observer: observer,
	}
}

// HandleChange processes one change notification.
func (w *ExportWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing change message",
		applog.FieldKind, msg.Kind,
		"op", msg.Op,
		applog.FieldRecordID, msg.ID)
	return w.Refresh(ctx)
}

// StartupSync writes the exports once so they exist even before the first
// notification, and catches up on changes missed while the worker was down.
func (w *ExportWorker) StartupSync(ctx context.Context) error {
	if err := w.Refresh(ctx); err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	return nil
}

// Name and Run let the scheduler refresh the exports periodically.
func (w *ExportWorker) Name() string { return "export-refresh" }

func (w *ExportWorker) Run(ctx context.Context) error { return w.Refresh(ctx) }

// Refresh rereads the store and rewrites every latest export.
func (w *ExportWorker) Refresh(ctx context.Context) error {
	w.source.Refresh()
	snap, err := w.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	for _, f := range []export.Format{export.FormatCSV, export.FormatJSON} {
		path := filepath.Join(w.dir, LatestName+"."+string(f))
		n, err := writeExport(path, f, snap)
		if err != nil {
			return err
		}
		if w.observer != nil {
			w.observer.ObserveExport(string(f))
		}
		w.logger.DebugContext(ctx, "Export refreshed", applog.FieldFile, path, applog.FieldBytes, n)
	}

	w.logger.InfoContext(ctx, "Latest exports refreshed",
		"payables", len(snap.Payables),
		"inflows", len(snap.Inflows),
		"dir", w.dir)
	return nil
}

// writeExport encodes snap into path through a temporary file, so readers
// never see a partial export.
func writeExport(path string, f export.Format, snap core.Snapshot) (int, error) {
	var buf bytes.Buffer
	if err := export.Write(&buf, f, snap); err != nil {
		return 0, fmt.Errorf("encode %s: %w", f, err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

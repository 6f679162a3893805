package worker

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/export"
	"financeiro/internal/kv"
	"financeiro/internal/kv/memory"
	"financeiro/internal/scheduler"
	"financeiro/internal/services"
)

var fixedNow = time.Date(2024, 3, 15, 2, 30, 0, 0, time.UTC)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type exportCounter map[string]int

func (c exportCounter) ObserveExport(format string) { c[format]++ }

// newStores returns two record stores over one backend, standing in for the
// CLI and the worker sharing a database.
func newStores(t *testing.T) (writer, reader *services.RecordStore) {
	t.Helper()
	backend := memory.New()
	clock := services.WithClock(func() time.Time { return fixedNow })
	return services.NewRecordStore(backend, clock), services.NewRecordStore(backend, clock)
}

func TestExportWorkerRefreshesAfterChange(t *testing.T) {
	ctx := context.Background()
	writer, reader := newStores(t)
	dir := filepath.Join(t.TempDir(), "exports")
	counter := exportCounter{}
	w := NewExportWorker(reader, dir, discard(), counter)

	require.NoError(t, w.StartupSync(ctx))
	rows := readCSV(t, filepath.Join(dir, LatestName+".csv"))
	assert.Equal(t, [][]string{export.Header}, rows)

	p, err := writer.AddPayable(ctx, core.PayableDraft{
		Company: "Acme, Ltda",
		Amount:  core.Cents(12345),
		DueDate: core.NewDate(2024, 3, 20),
	})
	require.NoError(t, err)

	msg := amqp.NewChangeMessage(services.Change{Kind: services.KindPayable, Op: services.OpCreate, ID: p.ID, At: fixedNow})
	require.NoError(t, w.HandleChange(ctx, msg))

	rows = readCSV(t, filepath.Join(dir, LatestName+".csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Payable", "2024-03-20", "123.45", "Acme, Ltda", "due"}, rows[1])

	data, err := os.ReadFile(filepath.Join(dir, LatestName+".json"))
	require.NoError(t, err)
	set, err := export.ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, set.Payables, 1)
	assert.Equal(t, p.ID, set.Payables[0].ID)

	assert.Equal(t, 2, counter["csv"])
	assert.Equal(t, 2, counter["json"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files are cleaned up")
}

func TestExportWorkerFailsOnUnwritableDir(t *testing.T) {
	_, reader := newStores(t)
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	w := NewExportWorker(reader, filepath.Join(file, "exports"), discard(), nil)
	assert.Error(t, w.Refresh(context.Background()))
}

func TestBackupJobWritesAndPrunes(t *testing.T) {
	ctx := context.Background()
	writer, reader := newStores(t)
	dir := t.TempDir()

	_, err := writer.AddInflow(ctx, core.InflowDraft{Date: core.NewDate(2024, 3, 14), Amount: core.Cents(5000), Category: core.CategoryPix})
	require.NoError(t, err)

	for _, day := range []string{"2024-03-10", "2024-03-11", "2024-03-12", "2024-03-13"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, backupPrefix+day+".json"), []byte("{}"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, backupPrefix+"latest.json"), []byte("keep"), 0o644))

	job := &BackupJob{Source: reader, Dir: dir, Retain: 3, Now: func() time.Time { return fixedNow }, Logger: discard()}
	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run(ctx))

	names, err := Backups(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"controle_financeiro_2024-03-12.json",
		"controle_financeiro_2024-03-13.json",
		"controle_financeiro_2024-03-15.json",
	}, names)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.FileExists(t, filepath.Join(dir, backupPrefix+"latest.json"))

	data, err := os.ReadFile(filepath.Join(dir, "controle_financeiro_2024-03-15.json"))
	require.NoError(t, err)
	set, err := export.ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, set.Inflows, 1)
	assert.Equal(t, core.Cents(5000), set.Inflows[0].Amount)
}

func TestBackupJobSameDayOverwrites(t *testing.T) {
	ctx := context.Background()
	_, reader := newStores(t)
	dir := t.TempDir()
	job := &BackupJob{Source: reader, Dir: dir, Retain: 5, Now: func() time.Time { return fixedNow }, Logger: discard()}

	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	names, err := Backups(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"controle_financeiro_2024-03-15.json"}, names)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

type jobCounts map[string]int

func (c jobCounts) ObserveJob(job string, err error) {
	if err == nil {
		c[job]++
	}
}

func TestExportWorkerRunsAsScheduledJob(t *testing.T) {
	ctx := context.Background()
	writer, reader := newStores(t)
	dir := t.TempDir()
	w := NewExportWorker(reader, dir, discard(), nil)
	jobs := jobCounts{}
	s := scheduler.New(discard(), jobs)

	_, err := writer.AddInflow(ctx, core.InflowDraft{
		Date:     core.NewDate(2024, 3, 10),
		Amount:   core.Cents(25000),
		Category: core.CategoryPix,
	})
	require.NoError(t, err)

	require.NoError(t, s.RunNow(ctx, w))
	assert.Equal(t, 1, jobs["export-refresh"])

	data, err := os.ReadFile(filepath.Join(dir, LatestName+".json"))
	require.NoError(t, err)
	set, err := export.ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, set.Inflows, 1)
	assert.Equal(t, int64(25000), set.Inflows[0].Amount.Cents)
}

// flakyStore fails every read while down is set.
type flakyStore struct {
	*memory.Store
	down atomic.Bool
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.down.Load() {
		return "", false, errors.New("connection refused")
	}
	return f.Store.Get(ctx, key)
}

var _ kv.Store = (*flakyStore)(nil)

func TestBackupJobKeepsBackupsWhenStoreUnreadable(t *testing.T) {
	ctx := context.Background()
	backend := &flakyStore{Store: memory.New()}
	store := services.NewRecordStore(backend, services.WithClock(func() time.Time { return fixedNow }))
	_, err := store.AddInflow(ctx, core.InflowDraft{Date: core.NewDate(2024, 3, 14), Amount: core.Cents(5000), Category: core.CategoryPix})
	require.NoError(t, err)

	dir := t.TempDir()
	days := []string{"2024-03-12", "2024-03-13", "2024-03-15"}
	for _, day := range days {
		require.NoError(t, os.WriteFile(filepath.Join(dir, backupPrefix+day+".json"), []byte(`{"day":"`+day+`"}`), 0o644))
	}

	backend.down.Store(true)
	job := &BackupJob{Source: store, Dir: dir, Retain: 2, Now: func() time.Time { return fixedNow }, Logger: discard()}
	err = job.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageRead)

	names, err := Backups(dir)
	require.NoError(t, err)
	assert.Len(t, names, len(days), "nothing pruned")
	for _, day := range days {
		data, err := os.ReadFile(filepath.Join(dir, backupPrefix+day+".json"))
		require.NoError(t, err)
		assert.Equal(t, `{"day":"`+day+`"}`, string(data), "today's backup not overwritten")
	}

	backend.down.Store(false)
	require.NoError(t, job.Run(ctx))
	names, err = Backups(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"controle_financeiro_2024-03-13.json", "controle_financeiro_2024-03-15.json"}, names)
	data, err := os.ReadFile(filepath.Join(dir, "controle_financeiro_2024-03-15.json"))
	require.NoError(t, err)
	set, err := export.ParseJSON(data)
	require.NoError(t, err)
	assert.Len(t, set.Inflows, 1)
}

func TestExportWorkerKeepsExportsWhenStoreUnreadable(t *testing.T) {
	ctx := context.Background()
	backend := &flakyStore{Store: memory.New()}
	store := services.NewRecordStore(backend, services.WithClock(func() time.Time { return fixedNow }))
	_, err := store.AddInflow(ctx, core.InflowDraft{Date: core.NewDate(2024, 3, 10), Amount: core.Cents(25000), Category: core.CategoryPix})
	require.NoError(t, err)

	dir := t.TempDir()
	counter := exportCounter{}
	w := NewExportWorker(store, dir, discard(), counter)
	require.NoError(t, w.Refresh(ctx))
	before, err := os.ReadFile(filepath.Join(dir, LatestName+".json"))
	require.NoError(t, err)

	backend.down.Store(true)
	assert.ErrorIs(t, w.Refresh(ctx), core.ErrStorageRead)

	after, err := os.ReadFile(filepath.Join(dir, LatestName+".json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, counter["json"])
}

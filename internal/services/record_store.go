package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"financeiro/internal/core"
	"financeiro/internal/export"
	"financeiro/internal/kv"
	applog "financeiro/internal/log"
)

var (
	errCorrupt   = errors.New("corrupt data")
	errUnchanged = errors.New("unchanged")
)

type collection[T any] struct {
	key    string
	kind   ChangeKind
	items  []T
	loaded bool
}

// RecordStore owns the payables and inflows collections. Every mutation
// rewrites the whole collection; memory is only updated after the write
// succeeds.
type RecordStore struct {
	kv        kv.Store
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	publisher ChangePublisher
	observer  Observer

	mu       sync.Mutex
	payables collection[core.Payable]
	inflows  collection[core.Inflow]
	version  atomic.Uint64
}

type Option func(*RecordStore)

// WithClock sets the source of createdAt and export timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *RecordStore) { s.newID = gen }
}

// WithPublisher announces successful mutations. Publishing failures are
// logged and never fail the mutation.
func WithPublisher(p ChangePublisher) Option {
	return func(s *RecordStore) { s.publisher = p }
}

func WithObserver(o Observer) Option {
	return func(s *RecordStore) { s.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *RecordStore) { s.logger = l }
}

func NewRecordStore(store kv.Store, opts ...Option) *RecordStore {
	s := &RecordStore{
		kv:       store,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    newID,
		payables: collection[core.Payable]{key: kv.KeyPayables, kind: KindPayable},
		inflows:  collection[core.Inflow]{key: kv.KeyInflows, kind: KindInflow},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(applog.FieldComponent, applog.ComponentStore)
	return s
}

// newID returns a UUIDv7: a millisecond timestamp followed by random bits.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Version increases after every successful write.
func (s *RecordStore) Version() uint64 {
	return s.version.Load()
}

// Refresh drops the in-memory collections so the next access reads the
// backend again. Used by processes sharing a database.
func (s *RecordStore) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payables.loaded, s.payables.items = false, nil
	s.inflows.loaded, s.inflows.items = false, nil
}

// LoadPayables returns a copy of all payables. Unreadable data is logged
// and yields an empty sequence.
func (s *RecordStore) LoadPayables(ctx context.Context) []core.Payable {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, _ := load(ctx, s, &s.payables)
	return append(make([]core.Payable, 0, len(items)), items...)
}

func (s *RecordStore) LoadInflows(ctx context.Context) []core.Inflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, _ := load(ctx, s, &s.inflows)
	return append(make([]core.Inflow, 0, len(items)), items...)
}

// ExportAll snapshots both collections with the current time. A collection
// the backend could not return is empty.
func (s *RecordStore) ExportAll(ctx context.Context) core.Snapshot {
	snap, _ := s.snapshot(ctx)
	return snap
}

// Snapshot is ExportAll for callers that must not mistake a backend outage
// for an empty store. Corrupt data still reads as empty.
func (s *RecordStore) Snapshot(ctx context.Context) (core.Snapshot, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

func (s *RecordStore) snapshot(ctx context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, perr := load(ctx, s, &s.payables)
	is, ierr := load(ctx, s, &s.inflows)
	return core.Snapshot{
		Payables:   append(make([]core.Payable, 0, len(ps)), ps...),
		Inflows:    append(make([]core.Inflow, 0, len(is)), is...),
		ExportedAt: s.timestamp(),
	}, errors.Join(perr, ierr)
}

func (s *RecordStore) AddPayable(ctx context.Context, draft core.PayableDraft) (core.Payable, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		s.observe(KindPayable, OpCreate, err)
		return core.Payable{}, err
	}

	var created core.Payable
	err := mutate(ctx, s, &s.payables, OpCreate, func(cur []core.Payable) ([]core.Payable, string, error) {
		created = core.Payable{
			ID:        s.uniqueID(payableIDs(cur)),
			Company:   draft.Company,
			Amount:    draft.Amount,
			DueDate:   draft.DueDate,
			Note:      draft.Note,
			Status:    draft.Status,
			CreatedAt: s.timestamp(),
		}
		return append(slices.Clip(cur), created), created.ID, nil
	})
	if err != nil {
		return core.Payable{}, err
	}

	s.logger.InfoContext(ctx, "Payable created",
		applog.FieldRecordID, created.ID,
		applog.FieldAmountCents, created.Amount.Cents,
		applog.FieldDueDate, created.DueDate.String())
	return created, nil
}

func (s *RecordStore) AddInflow(ctx context.Context, draft core.InflowDraft) (core.Inflow, error) {
	if err := draft.Validate(); err != nil {
		s.observe(KindInflow, OpCreate, err)
		return core.Inflow{}, err
	}

	var created core.Inflow
	err := mutate(ctx, s, &s.inflows, OpCreate, func(cur []core.Inflow) ([]core.Inflow, string, error) {
		created = core.Inflow{
			ID:        s.uniqueID(inflowIDs(cur)),
			Date:      draft.Date,
			Amount:    draft.Amount,
			Category:  draft.Category,
			CreatedAt: s.timestamp(),
		}
		return append(slices.Clip(cur), created), created.ID, nil
	})
	if err != nil {
		return core.Inflow{}, err
	}

	s.logger.InfoContext(ctx, "Inflow created",
		applog.FieldRecordID, created.ID,
		applog.FieldAmountCents, created.Amount.Cents,
		applog.FieldCategory, string(created.Category))
	return created, nil
}

// UpdatePayable merges patch into the payable with id. It returns an error
// matching core.ErrNotFound when no such payable exists.
func (s *RecordStore) UpdatePayable(ctx context.Context, id string, patch core.PayablePatch) (core.Payable, error) {
	var updated core.Payable
	err := mutate(ctx, s, &s.payables, OpUpdate, func(cur []core.Payable) ([]core.Payable, string, error) {
		k := slices.IndexFunc(cur, func(p core.Payable) bool { return p.ID == id })
		if k < 0 {
			return nil, id, fmt.Errorf("payable %s: %w", id, core.ErrNotFound)
		}
		merged, err := patch.Apply(cur[k])
		if err != nil {
			return nil, id, err
		}
		updated = merged
		if merged == cur[k] {
			return nil, id, errUnchanged
		}
		next := slices.Clone(cur)
		next[k] = merged
		return next, id, nil
	})
	if err != nil {
		return core.Payable{}, err
	}
	return updated, nil
}

func (s *RecordStore) UpdateInflow(ctx context.Context, id string, patch core.InflowPatch) (core.Inflow, error) {
	var updated core.Inflow
	err := mutate(ctx, s, &s.inflows, OpUpdate, func(cur []core.Inflow) ([]core.Inflow, string, error) {
		k := slices.IndexFunc(cur, func(i core.Inflow) bool { return i.ID == id })
		if k < 0 {
			return nil, id, fmt.Errorf("inflow %s: %w", id, core.ErrNotFound)
		}
		merged, err := patch.Apply(cur[k])
		if err != nil {
			return nil, id, err
		}
		updated = merged
		if merged == cur[k] {
			return nil, id, errUnchanged
		}
		next := slices.Clone(cur)
		next[k] = merged
		return next, id, nil
	})
	if err != nil {
		return core.Inflow{}, err
	}
	return updated, nil
}

// TogglePayableStatus flips a payable between due and paid.
func (s *RecordStore) TogglePayableStatus(ctx context.Context, id string) (core.Payable, error) {
	var toggled core.Payable
	err := mutate(ctx, s, &s.payables, OpUpdate, func(cur []core.Payable) ([]core.Payable, string, error) {
		k := slices.IndexFunc(cur, func(p core.Payable) bool { return p.ID == id })
		if k < 0 {
			return nil, id, fmt.Errorf("payable %s: %w", id, core.ErrNotFound)
		}
		toggled = cur[k]
		toggled.Status = toggled.Status.Toggle()
		next := slices.Clone(cur)
		next[k] = toggled
		return next, id, nil
	})
	if err != nil {
		return core.Payable{}, err
	}
	return toggled, nil
}

// RemovePayable deletes the payable with id and reports whether one was
// removed. Nothing is written when the id is unknown.
func (s *RecordStore) RemovePayable(ctx context.Context, id string) (bool, error) {
	removed := false
	err := mutate(ctx, s, &s.payables, OpDelete, func(cur []core.Payable) ([]core.Payable, string, error) {
		k := slices.IndexFunc(cur, func(p core.Payable) bool { return p.ID == id })
		if k < 0 {
			return nil, id, errUnchanged
		}
		removed = true
		return slices.Delete(slices.Clone(cur), k, k+1), id, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *RecordStore) RemoveInflow(ctx context.Context, id string) (bool, error) {
	removed := false
	err := mutate(ctx, s, &s.inflows, OpDelete, func(cur []core.Inflow) ([]core.Inflow, string, error) {
		k := slices.IndexFunc(cur, func(i core.Inflow) bool { return i.ID == id })
		if k < 0 {
			return nil, id, errUnchanged
		}
		removed = true
		return slices.Delete(slices.Clone(cur), k, k+1), id, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Import replaces the collections present in set. Every record is checked
// first; one invalid or duplicated record rejects the whole import. Records
// without createdAt get the import time.
func (s *RecordStore) Import(ctx context.Context, set export.ImportSet) error {
	if err := set.Validate(); err != nil {
		s.observe(KindAll, OpImport, err)
		return err
	}
	now := s.timestamp()
	payables := stampCreated(set.Payables, now, func(p *core.Payable) *time.Time { return &p.CreatedAt })
	inflows := stampCreated(set.Inflows, now, func(i *core.Inflow) *time.Time { return &i.CreatedAt })

	s.mu.Lock()
	err := s.replace(ctx, payables, inflows)
	if err == nil {
		s.version.Add(1)
	}
	s.mu.Unlock()
	s.observe(KindAll, OpImport, err)
	if err != nil {
		return err
	}

	s.notify(ctx, Change{Kind: KindAll, Op: OpImport, At: s.timestamp()})
	s.logger.InfoContext(ctx, "Data imported",
		"payables", len(payables), "inflows", len(inflows),
		"payables_replaced", payables != nil, "inflows_replaced", inflows != nil)
	return nil
}

// replace writes the imported collections with s.mu held. A failed inflows
// write puts the previous payables back so an import applies whole or not
// at all.
func (s *RecordStore) replace(ctx context.Context, payables []core.Payable, inflows []core.Inflow) error {
	var previous []core.Payable
	if payables != nil {
		cur, err := load(ctx, s, &s.payables)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, s.payables.key, payables); err != nil {
			return err
		}
		previous = cur
		s.payables.items, s.payables.loaded = payables, true
	}
	if inflows == nil {
		return nil
	}
	if err := s.persist(ctx, s.inflows.key, inflows); err != nil {
		if payables == nil {
			return err
		}
		if rerr := s.persist(ctx, s.payables.key, previous); rerr != nil {
			s.logger.ErrorContext(ctx, "Import rollback failed, payables keep the imported data",
				applog.FieldError, rerr)
			return errors.Join(err, rerr)
		}
		s.payables.items = previous
		return err
	}
	s.inflows.items, s.inflows.loaded = inflows, true
	return nil
}

// stampCreated copies items, giving the ones without a creation time now.
// A nil input stays nil so absent collections are left alone.
func stampCreated[T any](items []T, now time.Time, created func(*T) *time.Time) []T {
	if items == nil {
		return nil
	}
	out := slices.Clone(items)
	for k := range out {
		if at := created(&out[k]); at.IsZero() {
			*at = now
		}
	}
	return out
}

// Clear removes every key the application owns.
func (s *RecordStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	for _, key := range kv.Keys {
		if err := s.kv.Remove(ctx, key); err != nil {
			// part of the data may be gone; reread on next access
			s.payables.loaded, s.inflows.loaded = false, false
			s.mu.Unlock()
			err = fmt.Errorf("%w: remove %s: %w", core.ErrStorageWrite, key, err)
			s.storageError(ctx, "remove", key, err)
			s.observe(KindAll, OpClear, err)
			return err
		}
	}
	s.payables.items, s.payables.loaded = []core.Payable{}, true
	s.inflows.items, s.inflows.loaded = []core.Inflow{}, true
	s.version.Add(1)
	s.mu.Unlock()

	s.observe(KindAll, OpClear, nil)
	s.notify(ctx, Change{Kind: KindAll, Op: OpClear, At: s.timestamp()})
	s.logger.InfoContext(ctx, "All data cleared")
	return nil
}

// LoadConfig returns the stored configuration blob, nil when absent or
// unreadable.
func (s *RecordStore) LoadConfig(ctx context.Context) json.RawMessage {
	value, ok, err := s.kv.Get(ctx, kv.KeyConfig)
	if err != nil {
		s.readError(ctx, kv.KeyConfig, fmt.Errorf("%w: %s: %w", core.ErrStorageRead, kv.KeyConfig, err))
		return nil
	}
	if !ok {
		return nil
	}
	if !json.Valid([]byte(value)) {
		s.readError(ctx, kv.KeyConfig, fmt.Errorf("%w: %s is %w", core.ErrStorageRead, kv.KeyConfig, errCorrupt))
		return nil
	}
	return json.RawMessage(value)
}

// SaveConfig stores raw verbatim; it must be valid JSON.
func (s *RecordStore) SaveConfig(ctx context.Context, raw json.RawMessage) error {
	if !json.Valid(raw) {
		return core.Invalid("config", errors.New("not valid JSON"))
	}
	if err := s.kv.Set(ctx, kv.KeyConfig, string(raw)); err != nil {
		err = fmt.Errorf("%w: %s: %w", core.ErrStorageWrite, kv.KeyConfig, err)
		s.storageError(ctx, "write", kv.KeyConfig, err)
		return err
	}
	return nil
}

// load returns the cached collection, reading it on first use. Corrupt data
// is treated as empty and cached; a failing backend is not cached so a later
// call can retry.
func load[T any](ctx context.Context, s *RecordStore, c *collection[T]) ([]T, error) {
	if c.loaded {
		return c.items, nil
	}
	items, err := readCollection[T](ctx, s.kv, c.key)
	if err != nil {
		s.readError(ctx, c.key, err)
		if !errors.Is(err, errCorrupt) {
			return []T{}, err
		}
	}
	c.items, c.loaded = items, true
	return items, nil
}

func readCollection[T any](ctx context.Context, store kv.Reader, key string) ([]T, error) {
	value, ok, err := store.Get(ctx, key)
	if err != nil {
		return []T{}, fmt.Errorf("%w: %s: %w", core.ErrStorageRead, key, err)
	}
	if !ok || value == "" {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return []T{}, fmt.Errorf("%w: %s is %w: %v", core.ErrStorageRead, key, errCorrupt, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// mutate runs fn on the current collection and persists its result. fn
// returns errUnchanged to skip the write.
func mutate[T any](ctx context.Context, s *RecordStore, c *collection[T], op ChangeOp, fn func(cur []T) ([]T, string, error)) error {
	s.mu.Lock()
	cur, err := load(ctx, s, c)
	if err != nil {
		s.mu.Unlock()
		s.observe(c.kind, op, err)
		return err
	}
	next, id, err := fn(cur)
	if errors.Is(err, errUnchanged) {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		s.observe(c.kind, op, err)
		return err
	}
	if err := s.persist(ctx, c.key, next); err != nil {
		s.mu.Unlock()
		s.observe(c.kind, op, err)
		return err
	}
	c.items = next
	s.version.Add(1)
	s.mu.Unlock()

	s.observe(c.kind, op, nil)
	s.notify(ctx, Change{Kind: c.kind, Op: op, ID: id, At: s.timestamp()})
	return nil
}

func (s *RecordStore) persist(ctx context.Context, key string, items any) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", core.ErrStorageWrite, key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		err = fmt.Errorf("%w: %s: %w", core.ErrStorageWrite, key, err)
		s.storageError(ctx, "write", key, err)
		return err
	}
	return nil
}

func (s *RecordStore) readError(ctx context.Context, key string, err error) {
	s.logger.WarnContext(ctx, "Stored collection unreadable, treating it as empty",
		applog.FieldKey, key,
		applog.FieldError, err,
		applog.FieldErrorType, applog.ErrorTypeStorage)
	if s.observer != nil {
		s.observer.ObserveStorageError("read")
	}
}

func (s *RecordStore) storageError(ctx context.Context, op, key string, err error) {
	s.logger.ErrorContext(ctx, "Storage write failed",
		applog.FieldKey, key,
		applog.FieldOperation, op,
		applog.FieldError, err,
		applog.FieldErrorType, applog.ErrorTypeStorage)
	if s.observer != nil {
		s.observer.ObserveStorageError(op)
	}
}

func (s *RecordStore) observe(kind ChangeKind, op ChangeOp, err error) {
	if s.observer != nil {
		s.observer.ObserveMutation(string(kind), string(op), Outcome(err))
	}
}

func (s *RecordStore) notify(ctx context.Context, c Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, c); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change",
			applog.FieldRecordID, c.ID,
			applog.FieldOperation, string(c.Op),
			applog.FieldError, err)
	}
}

func (s *RecordStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// uniqueID draws ids until one is not taken.
func (s *RecordStore) uniqueID(taken map[string]struct{}) string {
	for attempt := 0; ; attempt++ {
		id := s.newID()
		if attempt >= 8 {
			id = fmt.Sprintf("%s-%d", id, attempt)
		}
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}

func payableIDs(ps []core.Payable) map[string]struct{} {
	ids := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		ids[p.ID] = struct{}{}
	}
	return ids
}

func inflowIDs(is []core.Inflow) map[string]struct{} {
	ids := make(map[string]struct{}, len(is))
	for _, i := range is {
		ids[i.ID] = struct{}{}
	}
	return ids
}

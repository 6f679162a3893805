package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type lookups struct{ hits, misses int }

func (l *lookups) ObserveCacheLookup(hit bool) {
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiresEntries(t *testing.T) {
	clk := &clock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clk.now)
	c.Set("a", "x")
	c.Set("b", "y")

	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", "z")
	clk.t = clk.t.Add(45 * time.Second)

	assert.Equal(t, 1, c.CleanExpired())
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "z", v)
}

func TestLRUZeroSizeDisablesCaching(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	assert.Equal(t, 0, c.Size())
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Size())
	c.Purge()
	assert.Equal(t, 0, c.Size())
}

func TestKey(t *testing.T) {
	params := url.Values{"period": {"2024-03"}, "asOf": {"2024-03-15"}}
	a := Key("/api/reports/dashboard", params, []byte(`{"contas":[]}`))
	b := Key("/api/reports/dashboard", url.Values{"asOf": {"2024-03-15"}, "period": {"2024-03"}}, []byte(`{"contas":[]}`))
	assert.Equal(t, a, b, "parameter order must not matter")

	assert.NotEqual(t, a, Key("/api/reports/dashboard", params, []byte(`{"contas":[1]}`)))
	assert.NotEqual(t, a, Key("/api/reports/monthly", params, []byte(`{"contas":[]}`)))
}

func TestMemo(t *testing.T) {
	obs := &lookups{}
	m := NewMemo[string](NewLRUCache[string](8, time.Minute), obs)
	calls := 0
	compute := func() (string, error) {
		calls++
		return "report", nil
	}

	v, hit, err := m.Get("k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "report", v)

	v, hit, err = m.Get("k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "report", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)

	boom := errors.New("boom")
	_, _, err = m.Get("bad", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	_, _, err = m.Get("bad", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "errors are not cached")
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	clk := &clock{t: time.Now()}
	a := NewLRUCache[int](4, time.Second).WithClock(clk.now)
	b := NewLRUCache[int](4, time.Second).WithClock(clk.now)
	a.Set("x", 1)
	b.Set("y", 2)
	b.Set("z", 3)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	clk.t = clk.t.Add(2 * time.Second)
	assert.Equal(t, 3, m.CleanAll())
}

func TestManagerStop(t *testing.T) {
	m := NewManager(nil)
	m.Stop() // not started

	m = NewManager(nil)
	m.StartCleanup(context.Background(), 10*time.Millisecond)
	m.Stop()
	m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	m = NewManager(nil)
	m.StartCleanup(ctx, time.Hour)
	cancel()
	m.Stop()
}

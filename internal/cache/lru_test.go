package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "1")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	c.Set("a", "2")
	v, _ = c.Get("a")
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, c.Size())

	c.Delete("a")
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_TTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clk.Now)

	c.Set("a", 1)
	clk.Advance(30 * time.Second)
	c.Set("b", 2)
	clk.Advance(45 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	clk.Advance(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestManager(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c1 := NewLRUCache[int](10, time.Second).WithClock(clk.Now)
	c2 := NewLRUCache[int](10, time.Hour).WithClock(clk.Now)
	c1.Set("x", 1)
	c2.Set("y", 2)

	m := NewManager()
	m.Register(c1)
	m.Register(c2)
	m.Register(nil)

	clk.Advance(time.Minute)
	assert.Equal(t, 1, m.CleanNow())
	assert.Equal(t, 0, c1.Size())
	assert.Equal(t, 1, c2.Size())

	m.StartCleanup(10 * time.Millisecond)
	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestLRUCache_Add(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clk.Now)

	assert.True(t, c.Add("k", "first"))
	assert.False(t, c.Add("k", "second"))
	v, _ := c.Get("k")
	assert.Equal(t, "first", v)

	clk.Advance(2 * time.Minute)
	assert.True(t, c.Add("k", "third"), "an expired entry does not block Add")
	v, _ = c.Get("k")
	assert.Equal(t, "third", v)
}

func TestLRUCache_Stats(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](2, time.Minute).WithClock(clk.Now)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("zzz")
	c.Set("c", 3) // evicts b

	clk.Advance(2 * time.Minute)
	c.Get("a") // expired

	assert.Equal(t, Stats{Hits: 1, Misses: 2, Evictions: 2, Size: 1}, c.Stats())

	c.Delete("c")
	assert.Equal(t, uint64(2), c.Stats().Evictions, "Delete is not an eviction")
	assert.Equal(t, 0, c.Stats().Size)
}

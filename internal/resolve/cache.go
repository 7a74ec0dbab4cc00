package resolve

import (
	"sync"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

type tableKey struct {
	source  constants.Source
	keyType constants.KeyType
}

type resultKey struct {
	source  constants.Source
	keyType constants.KeyType
	raw     string
}

// table is the active mapping snapshot of one (source, key type), indexed three ways.
type table struct {
	exact     map[string]entity.MappingEntry
	collapsed map[string]entity.MappingEntry
	stripped  map[string]entity.MappingEntry
}

func newTable(entries []entity.MappingEntry) *table {
	t := &table{
		exact:     make(map[string]entity.MappingEntry, len(entries)),
		collapsed: make(map[string]entity.MappingEntry, len(entries)),
		stripped:  make(map[string]entity.MappingEntry),
	}
	put := func(m map[string]entity.MappingEntry, k string, e entity.MappingEntry) {
		if k == "" {
			return
		}
		if cur, ok := m[k]; !ok || e.Preferred(cur) {
			m[k] = e
		}
	}
	for _, e := range entries {
		if !e.Active {
			continue
		}
		put(t.exact, e.RawValue, e)
		c := collapse(e.RawValue)
		put(t.collapsed, c, e)
		if s := stripZeros(c); s != "" {
			put(t.stripped, s, e)
		} else if isNumeric(c) {
			put(t.stripped, c, e)
		}
	}
	return t
}

// match applies the normalization steps in order: exact, collapsed, then leading zeros for numeric codes.
func (t *table) match(raw string) (entity.MappingEntry, Normalization, bool) {
	if e, ok := t.exact[raw]; ok {
		return e, NormExact, true
	}
	c := collapse(raw)
	if c == "" {
		return entity.MappingEntry{}, "", false
	}
	if e, ok := t.collapsed[c]; ok {
		return e, NormCollapsed, true
	}
	if !isNumeric(c) {
		return entity.MappingEntry{}, "", false
	}
	key := stripZeros(c)
	if key == "" {
		key = c
	}
	if e, ok := t.stripped[key]; ok {
		return e, NormLeadingZero, true
	}
	return entity.MappingEntry{}, "", false
}

// Stats are the cache counters of the current batch.
type Stats struct {
	Hits       int
	Misses     int
	Loads      int
	Resolved   int
	Unresolved map[constants.KeyType]int
}

// Cache holds mapping snapshots and resolution results for one batch. It is
// safe for concurrent use; populating the same key twice stores the same value.
type Cache struct {
	mu      sync.RWMutex
	tables  map[tableKey]*table
	results map[resultKey]Result
	stats   Stats
}

func NewCache() *Cache {
	c := &Cache{}
	c.Begin()
	return c
}

// Begin drops everything cached, starting a new batch.
func (c *Cache) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[tableKey]*table)
	c.results = make(map[resultKey]Result)
	c.stats = Stats{Unresolved: make(map[constants.KeyType]int)}
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Unresolved = make(map[constants.KeyType]int, len(c.stats.Unresolved))
	for k, v := range c.stats.Unresolved {
		s.Unresolved[k] = v
	}
	return s
}

func (c *Cache) result(k resultKey) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[k]
	return r, ok
}

func (c *Cache) storeResult(k resultKey, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[k] = r
}

func (c *Cache) table(k tableKey) (*table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[k]
	return t, ok
}

func (c *Cache) storeTable(k tableKey, t *table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[k]; !ok {
		c.tables[k] = t
		c.stats.Loads++
	}
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
}

func (c *Cache) outcome(r Result, primary constants.KeyType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Unresolved {
		c.stats.Unresolved[primary]++
		return
	}
	c.stats.Resolved++
}

// Package state holds the last fetched MinderGas data for each configured
// installation. Each Installation owns its listener list; there is no
// process-wide event bus.
package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jgoulah/mindergas/internal/mindergas"
)

// Snapshot is a point-in-time copy of an installation's cached data
type Snapshot struct {
	ID        uuid.UUID
	Usage     *mindergas.UsageRecord
	Forecast  *mindergas.ForecastRecord
	DegreeDay *mindergas.DegreeDayRecord
	UpdatedAt time.Time
}

// Installation is the cached state of one configured installation.
// Fields are replaced individually; a missing result never clears a
// previously stored one.
type Installation struct {
	id uuid.UUID

	mu         sync.RWMutex
	credential string
	usage      *mindergas.UsageRecord
	forecast   *mindergas.ForecastRecord
	degreeDay  *mindergas.DegreeDayRecord
	updatedAt  time.Time

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

// New creates empty state for an installation
func New(id uuid.UUID, credential string) *Installation {
	return &Installation{
		id:         id,
		credential: credential,
		listeners:  make(map[int]func()),
	}
}

// ID returns the installation identity
func (i *Installation) ID() uuid.UUID {
	return i.id
}

// Credential returns the current API key
func (i *Installation) Credential() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.credential
}

// SetCredential replaces the API key without touching cached data
func (i *Installation) SetCredential(credential string) {
	i.mu.Lock()
	i.credential = credential
	i.mu.Unlock()
}

// SetUsage stores rec. A nil rec is ignored.
func (i *Installation) SetUsage(rec *mindergas.UsageRecord) {
	if rec == nil {
		return
	}
	c := copyUsage(*rec)
	i.mu.Lock()
	i.usage = &c
	i.updatedAt = time.Now()
	i.mu.Unlock()
}

// SetForecast stores rec. A nil rec is ignored.
func (i *Installation) SetForecast(rec *mindergas.ForecastRecord) {
	if rec == nil {
		return
	}
	c := mindergas.ForecastRecord(copyUsage(mindergas.UsageRecord(*rec)))
	i.mu.Lock()
	i.forecast = &c
	i.updatedAt = time.Now()
	i.mu.Unlock()
}

// SetDegreeDay stores rec. A nil rec is ignored.
func (i *Installation) SetDegreeDay(rec *mindergas.DegreeDayRecord) {
	if rec == nil {
		return
	}
	c := mindergas.DegreeDayRecord{AvgLast365Days: copyQuantity(rec.AvgLast365Days)}
	i.mu.Lock()
	i.degreeDay = &c
	i.updatedAt = time.Now()
	i.mu.Unlock()
}

// Snapshot returns a copy of the cached data
func (i *Installation) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()

	snap := Snapshot{ID: i.id, UpdatedAt: i.updatedAt}
	if i.usage != nil {
		u := copyUsage(*i.usage)
		snap.Usage = &u
	}
	if i.forecast != nil {
		f := mindergas.ForecastRecord(copyUsage(mindergas.UsageRecord(*i.forecast)))
		snap.Forecast = &f
	}
	if i.degreeDay != nil {
		snap.DegreeDay = &mindergas.DegreeDayRecord{AvgLast365Days: copyQuantity(i.degreeDay.AvgLast365Days)}
	}
	return snap
}

// Subscribe registers fn to be called on every Notify. The returned
// function removes the registration.
func (i *Installation) Subscribe(fn func()) (unsubscribe func()) {
	i.listenersMu.Lock()
	id := i.nextID
	i.nextID++
	i.listeners[id] = fn
	i.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.listenersMu.Lock()
			delete(i.listeners, id)
			i.listenersMu.Unlock()
		})
	}
}

// Notify calls every registered listener in registration order
func (i *Installation) Notify() {
	i.listenersMu.Lock()
	ids := make([]int, 0, len(i.listeners))
	for id := range i.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, i.listeners[id])
	}
	i.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func copyUsage(u mindergas.UsageRecord) mindergas.UsageRecord {
	u.Heating = copyQuantity(u.Heating)
	u.Total = copyQuantity(u.Total)
	return u
}

func copyQuantity(q *mindergas.Quantity) *mindergas.Quantity {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}

// Cache is the registry of installation state, keyed by installation ID
type Cache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Installation
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[uuid.UUID]*Installation)}
}

// Add registers inst. Each installation ID may only be added once.
func (c *Cache) Add(inst *Installation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[inst.id]; ok {
		return fmt.Errorf("installation %s already registered", inst.id)
	}
	c.entries[inst.id] = inst
	return nil
}

// Get returns the state for id
func (c *Cache) Get(id uuid.UUID) (*Installation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.entries[id]
	return inst, ok
}

// Remove drops the state for id
func (c *Cache) Remove(id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// List returns all registered installations ordered by ID
func (c *Cache) List() []*Installation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Installation, 0, len(c.entries))
	for _, inst := range c.entries {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].id.String() < out[b].id.String()
	})
	return out
}

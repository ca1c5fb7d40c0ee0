package view

import "sync"

// Collection holds the currently loaded page of a paginated resource list.
// Patches and removals apply only to the loaded page; an id that is not on
// the page (deleted elsewhere, or the page moved on) is a no-op.
type Collection[T any] struct {
	mu         sync.Mutex
	idOf       func(T) string
	items      []T
	page       int
	totalPages int
}

func NewCollection[T any](idOf func(T) string) *Collection[T] {
	return &Collection[T]{idOf: idOf}
}

// SetPage replaces the loaded page wholesale.
func (c *Collection[T]) SetPage(items []T, page, totalPages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T(nil), items...)
	c.page = page
	c.totalPages = totalPages
}

// Items returns a copy of the loaded page.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Page returns the loaded page number and the total page count.
func (c *Collection[T]) Page() (page, totalPages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page, c.totalPages
}

// Append adds an item to the end of the loaded page.
func (c *Collection[T]) Append(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
}

// Get returns the item with the given id from the loaded page.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if c.idOf(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Replace swaps the item with the given id for updated. Returns false if the
// id is not on the loaded page.
func (c *Collection[T]) Replace(id string, updated T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if c.idOf(it) == id {
			c.items[i] = updated
			return true
		}
	}
	return false
}

// Patch applies fn to the item with the given id in place.
func (c *Collection[T]) Patch(id string, fn func(*T)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			fn(&c.items[i])
			return true
		}
	}
	return false
}

// Remove drops the item with the given id and reports how many items remain
// on the page.
func (c *Collection[T]) Remove(id string) (remaining int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if c.idOf(it) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return len(c.items), true
		}
	}
	return len(c.items), false
}

// AuxState is one card's independent async slot. Exactly one of Loading,
// Err or a resolved Value is meaningful at a time.
type AuxState[V any] struct {
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
	Value   V      `json:"value,omitempty"`
	settled bool
}

// AuxCache tracks one async fetch per item id, so N cards on a page can load
// their secondary data independently. A slow or failed card never blocks or
// poisons another card's slot. Failed slots stay failed; there is no
// automatic retry.
type AuxCache[V any] struct {
	mu    sync.Mutex
	slots map[string]*AuxState[V]
}

func NewAuxCache[V any]() *AuxCache[V] {
	return &AuxCache[V]{slots: make(map[string]*AuxState[V])}
}

// Begin marks the slot for id as loading and reports whether the caller owns
// the fetch. It returns false when a fetch is already in flight or the slot
// has settled, which is what makes card fetches fire at most once.
func (c *AuxCache[V]) Begin(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[id]
	if ok && (s.Loading || s.settled) {
		return false
	}
	c.slots[id] = &AuxState[V]{Loading: true}
	return true
}

// Resolve stores the fetched value for id.
func (c *AuxCache[V]) Resolve(id string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[id] = &AuxState[V]{Value: v, settled: true}
}

// Fail records a fetch failure for id.
func (c *AuxCache[V]) Fail(id string, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[id] = &AuxState[V]{Err: msg, settled: true}
}

// Get returns the slot state for id.
func (c *AuxCache[V]) Get(id string) (AuxState[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[id]
	if !ok {
		return AuxState[V]{}, false
	}
	return *s, true
}

// Forget drops the slot for id, typically after the item itself was removed.
func (c *AuxCache[V]) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, id)
}

// Snapshot returns a copy of all slots keyed by item id.
func (c *AuxCache[V]) Snapshot() map[string]AuxState[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]AuxState[V], len(c.slots))
	for id, s := range c.slots {
		out[id] = *s
	}
	return out
}

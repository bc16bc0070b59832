package value

// Table is an open-addressed hash map from interned string keys to Values,
// using linear probing and tombstones for deletion. It backs both the VM's
// globals and the Heap's string-interning set.
//
// A slot is one of:
//   - empty:     key == nil, value == Nil
//   - tombstone: key == nil, value == Bool(true)
//   - live:      key != nil
//
// len counts live entries plus tombstones, because both count against the
// load factor: a table full of tombstones must still grow, or FindString's
// linear probe would never terminate.
type Table struct {
	entries []tableEntry
	len     int
}

type tableEntry struct {
	key   *ObjString
	value Value
}

const tableMaxLoad = 0.75

// Get returns the value associated with key, or (Nil, false) if key is not
// present.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if t.len == 0 {
		return Nil, false
	}
	e := t.find(key)
	if e.key == nil {
		return Nil, false
	}
	return e.value, true
}

// Set associates key with val, growing the table first if this insertion
// would push the load factor past 0.75. It reports whether key was not
// already present.
func (t *Table) Set(key *ObjString, val Value) bool {
	if float64(t.len+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	e := t.find(key)
	isNew := e.key == nil
	if isNew && e.value == Nil {
		// only a brand new (non-tombstone) slot grows len; reusing a
		// tombstone does not, since the tombstone was already counted.
		t.len++
	}
	e.key = key
	e.value = val
	return isNew
}

// Delete removes key, leaving a tombstone in its place so later probes that
// skipped over it during insertion still find their target. It reports
// whether key was present.
func (t *Table) Delete(key *ObjString) bool {
	if t.len == 0 {
		return false
	}
	e := t.find(key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = Bool(true)
	return true
}

// FindString looks up an interned string by its raw content, independently
// of any *ObjString identity, which is exactly what the allocator needs
// before deciding whether to allocate a new ObjString or reuse one.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if t.len == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	idx := hash % capacity
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if e.value == Nil {
				return nil // empty slot: string is not interned
			}
			// tombstone: keep probing
		} else if e.key.Hash == hash && len(e.key.Chars) == len(chars) && e.key.Chars == chars {
			return e.key
		}
		idx = (idx + 1) % capacity
	}
}

// AddAll copies every live entry of t into dst, with t's values overriding
// any already present in dst for the same key.
func (t *Table) AddAll(dst *Table) {
	for _, e := range t.entries {
		if e.key != nil {
			dst.Set(e.key, e.value)
		}
	}
}

// Len reports the number of live entries plus tombstones (see the type
// doc); it is exposed mainly for tests asserting on the load factor.
func (t *Table) Len() int { return t.len }

// Cap reports the current bucket capacity.
func (t *Table) Cap() int { return len(t.entries) }

// Each calls fn for every live entry, in bucket order. fn must not mutate
// the table.
func (t *Table) Each(fn func(key *ObjString, val Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

// RemoveUnmarked deletes every live entry whose key is not marked. Used by
// the GC to weakly purge the intern table of strings that would otherwise
// dangle after sweep (see vm.Collect).
func (t *Table) RemoveUnmarked() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.Marked {
			e.key = nil
			e.value = Bool(true)
		}
	}
}

func (t *Table) find(key *ObjString) *tableEntry {
	capacity := uint32(len(t.entries))
	idx := key.Hash % capacity
	var tombstone *tableEntry
	for {
		e := &t.entries[idx]
		switch {
		case e.key == nil:
			if e.value == Nil {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		idx = (idx + 1) % capacity
	}
}

func (t *Table) grow(capacity int) {
	newEntries := make([]tableEntry, capacity)
	for i := range newEntries {
		newEntries[i] = tableEntry{value: Nil}
	}

	old := t.entries
	t.entries = newEntries
	t.len = 0
	for _, e := range old {
		if e.key == nil {
			continue
		}
		dest := t.find(e.key)
		dest.key = e.key
		dest.value = e.value
		t.len++
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

// Package types provides core data structures for the forensic pipeline.
package types

import (
	"encoding/json"
	"sync"
)

// FieldsCOW implements a thread-safe copy-on-write field map.
// LogEvent.Fields is a plain map and is not wrapped in a FieldsCOW
// anywhere in the engine.
//
// When marked readonly, any modification attempt first copies the
// top-level map (the values themselves are shared, not deep-copied), so
// a write through one copy never changes what another copy reads.
type FieldsCOW struct {
	mu       sync.RWMutex
	data     map[string]any
	readonly bool
}

// NewFieldsCOW creates an empty FieldsCOW.
func NewFieldsCOW() *FieldsCOW {
	return &FieldsCOW{data: make(map[string]any)}
}

// NewFieldsCOWFromMap creates a FieldsCOW from an existing map, copying it
// so the FieldsCOW is independent of the source.
func NewFieldsCOWFromMap(m map[string]any) *FieldsCOW {
	data := make(map[string]any, len(m))
	for k, v := range m {
		data[k] = v
	}
	return &FieldsCOW{data: data}
}

// MarshalJSON implements json.Marshaler for FieldsCOW.
func (f *FieldsCOW) MarshalJSON() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return json.Marshal(f.data)
}

// UnmarshalJSON implements json.Unmarshaler for FieldsCOW.
func (f *FieldsCOW) UnmarshalJSON(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string]any)
	}
	return json.Unmarshal(data, &f.data)
}

// Get retrieves a value by key.
func (f *FieldsCOW) Get(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

// Set sets a key-value pair, copy-on-write if this FieldsCOW is readonly.
func (f *FieldsCOW) Set(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyOnWriteIfNeeded()
	f.data[key] = value
}

// Range iterates over all key-value pairs, holding the read lock. Stops
// early if fn returns false.
func (f *FieldsCOW) Range(fn func(key string, value any) bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for k, v := range f.data {
		if !fn(k, v) {
			break
		}
	}
}

// Len returns the number of fields.
func (f *FieldsCOW) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data)
}

// ToMap returns a copy of the internal map.
func (f *FieldsCOW) ToMap() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make(map[string]any, len(f.data))
	for k, v := range f.data {
		result[k] = v
	}
	return result
}

// ShallowCopy creates a copy sharing the same underlying map; both the
// original and the copy are marked readonly so either side's first write
// triggers a copy-on-write instead of racing the other.
func (f *FieldsCOW) ShallowCopy() *FieldsCOW {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readonly = true
	return &FieldsCOW{data: f.data, readonly: true}
}

func (f *FieldsCOW) copyOnWriteIfNeeded() {
	if !f.readonly {
		return
	}
	newData := make(map[string]any, len(f.data))
	for k, v := range f.data {
		newData[k] = v
	}
	f.data = newData
	f.readonly = false
}

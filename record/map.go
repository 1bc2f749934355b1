package record

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Map is a record backed by a map. The map stays owned by the caller: Map
// writes to it directly, it does not copy it.
type Map struct {
	data map[string]interface{}
	lock sync.RWMutex
}

// NewMap returns a new record for the given map. A nil map is replaced by an
// empty one.
func NewMap(data map[string]interface{}) *Map {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Map{
		data: data,
	}
}

// Get returns the value of the field and whether it exists.
func (m *Map) Get(key string) (interface{}, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	value, ok := m.data[key]
	return value, ok
}

// Keys returns the sorted names of all fields.
func (m *Map) Keys() []string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of fields.
func (m *Map) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.data)
}

// Set sets the value of a field.
func (m *Map) Set(key string, value interface{}) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = value
	return nil
}

// Delete removes a field.
func (m *Map) Delete(key string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.data, key)
}

// Merge sets all changes and removes all deletes in a single step.
func (m *Map) Merge(changes map[string]interface{}, deletes []string) error {
	for key := range changes {
		if key == "" {
			return ErrEmptyKey
		}
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	for key, value := range changes {
		m.data[key] = value
	}
	for _, key := range deletes {
		delete(m.data, key)
	}
	return nil
}

// Data returns a shallow copy of the underlying map.
func (m *Map) Data() map[string]interface{} {
	m.lock.RLock()
	defer m.lock.RUnlock()

	copied := make(map[string]interface{}, len(m.data))
	for key, value := range m.data {
		copied[key] = value
	}
	return copied
}

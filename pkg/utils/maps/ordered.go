package maps

import "github.com/superb-ai/spb-curate-go/pkg/utils/tuple"

// OrderedMap is a map which remembers the order its keys were first set.
//
// The zero value is not usable. Use NewOrderedMap.
type OrderedMap[K comparable, V any] struct {
	keys []K
	m    map[K]V
}

// NewOrderedMap creates a new ordered map with the given initial key-value pairs.
//
// The keys will be ordered in the order they were added.
func NewOrderedMap[K comparable, V any](initial ...tuple.Pair[K, V]) *OrderedMap[K, V] {
	m := &OrderedMap[K, V]{
		keys: []K{},
		m:    map[K]V{},
	}

	for _, pair := range initial {
		m.Set(pair.First, pair.Second)
	}

	return m
}

// Set updates the value of k.
//
// A new key goes to the tail. Overwriting an existing key keeps its position.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if _, ok := m.m[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.m[k] = v
}

func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.m[k]
	return v, ok
}

func (m *OrderedMap[K, V]) Has(k K) bool {
	_, ok := m.m[k]
	return ok
}

// Keys returns a copy of the keys, in order.
func (m *OrderedMap[K, V]) Keys() []K {
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	return keys
}

func (m *OrderedMap[K, V]) Values() []V {
	values := make([]V, len(m.keys))
	for i, k := range m.keys {
		values[i] = m.m[k]
	}
	return values
}

func (m *OrderedMap[K, V]) Delete(k K) {
	if _, ok := m.m[k]; !ok {
		return
	}
	delete(m.m, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Clear removes all keys.
func (m *OrderedMap[K, V]) Clear() {
	m.keys = []K{}
	m.m = map[K]V{}
}

func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

func (m *OrderedMap[K, V]) Iter() func(yield func(k K, v V) bool) {
	return func(yield func(k K, v V) bool) {
		for _, k := range m.keys {
			v := m.m[k]
			if !yield(k, v) {
				break
			}
		}
	}
}

// ToMap returns a copy as a builtin map. The order is lost.
func (m *OrderedMap[K, V]) ToMap() map[K]V {
	ret := make(map[K]V, len(m.m))
	for k, v := range m.m {
		ret[k] = v
	}
	return ret
}

// Clone returns a shallow copy.
func (m *OrderedMap[K, V]) Clone() *OrderedMap[K, V] {
	c := &OrderedMap[K, V]{
		keys: m.Keys(),
		m:    m.ToMap(),
	}
	return c
}

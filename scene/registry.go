package scene

import "strconv"

// Registry maps names to values and remembers insertion order, so that
// iteration is deterministic.
type Registry[T any] struct {
	names []string
	items map[string]T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Put inserts or replaces the value stored under name.
func (r *Registry[T]) Put(name string, v T) {
	if r.items == nil {
		r.items = make(map[string]T)
	}
	if _, ok := r.items[name]; !ok {
		r.names = append(r.names, name)
	}
	r.items[name] = v
}

func (r *Registry[T]) Get(name string) (T, bool) {
	v, ok := r.items[name]
	return v, ok
}

func (r *Registry[T]) Has(name string) bool {
	_, ok := r.items[name]
	return ok
}

// Delete removes name; it reports whether it was present.
func (r *Registry[T]) Delete(name string) bool {
	if _, ok := r.items[name]; !ok {
		return false
	}
	delete(r.items, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry[T]) Len() int { return len(r.names) }

// Names returns a copy of the names in insertion order.
func (r *Registry[T]) Names() []string {
	return append([]string(nil), r.names...)
}

// Values returns the values in insertion order.
func (r *Registry[T]) Values() []T {
	out := make([]T, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.items[n])
	}
	return out
}

// FreeName returns base if it is unused, else base with the first free
// numeric suffix.
func (r *Registry[T]) FreeName(base string) string {
	if !r.Has(base) {
		return base
	}
	for i := 1; ; i++ {
		name := base + "_" + strconv.Itoa(i)
		if !r.Has(name) {
			return name
		}
	}
}

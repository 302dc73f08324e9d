package state

import "sync"

// Derived is a read-only view computed from its sources on every Get. It holds no value.
type Derived[T any] struct {
	fn   func() T
	deps []Source
}

// NewDerived builds a view over deps. fn must only read the sources it lists.
func NewDerived[T any](fn func() T, deps ...Source) *Derived[T] {
	return &Derived[T]{fn: fn, deps: deps}
}

// Get evaluates the view.
func (d *Derived[T]) Get() T { return d.fn() }

// Subscribe calls fn with a fresh evaluation whenever any source changes.
func (d *Derived[T]) Subscribe(fn func(T)) func() {
	return d.Watch(func() { fn(d.fn()) })
}

// Watch implements Source so views can be stacked.
func (d *Derived[T]) Watch(fn func()) func() {
	unsubs := make([]func(), 0, len(d.deps))
	for _, dep := range d.deps {
		unsubs = append(unsubs, dep.Watch(fn))
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
		})
	}
}

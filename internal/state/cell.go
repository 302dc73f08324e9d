// Package state provides observable value containers and derived views.
//
// A Cell holds one value behind a mutex. Writers go through Set or Update;
// subscribers run synchronously after the lock is released, in subscription order.
// Notifications never go backwards: a write whose value was already superseded by a
// delivered newer write is not delivered. A subscriber must not write to its own cell.
package state

import (
	"sort"
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Source is anything a Derived view can depend on.
type Source interface {
	// Watch registers fn to run after every change and returns an unsubscribe func.
	Watch(fn func()) func()
}

// Option configures a Cell.
type Option func(*options)

type options struct {
	bus evbus.Bus
}

// WithBus publishes "<name>.changed" with the new value on bus after each write.
func WithBus(bus evbus.Bus) Option { return func(o *options) { o.bus = bus } }

// Cell is a mutex-guarded observable value.
type Cell[T any] struct {
	name string
	bus  evbus.Bus
	save func(T) error

	mu  sync.RWMutex
	v   T
	ver uint64

	notifyMu  sync.Mutex
	delivered uint64

	subMu sync.Mutex
	subs  map[int]func(T)
	seq   int
}

// NewCell constructs a cell holding initial.
func NewCell[T any](name string, initial T, opts ...Option) *Cell[T] {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return &Cell[T]{name: name, bus: o.bus, v: initial, subs: map[int]func(T){}}
}

// Name is the cell's topic prefix.
func (c *Cell[T]) Name() string { return c.name }

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Set replaces the value. For persisted cells the returned error is the save error;
// the in-memory value changes regardless.
func (c *Cell[T]) Set(v T) error {
	_, err := c.Update(func(T) T { return v })
	return err
}

// Update applies fn to the current value atomically and stores the result.
func (c *Cell[T]) Update(fn func(T) T) (T, error) {
	c.mu.Lock()
	next := fn(c.v)
	c.v = next
	c.ver++
	ver := c.ver
	var err error
	if c.save != nil {
		err = c.save(next)
	}
	c.mu.Unlock()

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if ver > c.delivered {
		c.delivered = ver
		c.notify(next)
	}
	return next, err
}

// Subscribe registers fn to receive every new value. The returned func removes it.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.subMu.Lock()
	id := c.seq
	c.seq++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// Watch implements Source.
func (c *Cell[T]) Watch(fn func()) func() {
	return c.Subscribe(func(T) { fn() })
}

func (c *Cell[T]) notify(v T) {
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	if c.bus != nil {
		c.bus.Publish(c.name+".changed", v)
	}
}

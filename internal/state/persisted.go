package state

import (
	"github.com/and161185/agrimarket/internal/kv"
)

// NewPersisted returns a cell whose initial value comes from store[key] (def when
// missing or corrupt) and whose every write is saved before subscribers run.
func NewPersisted[T any](store *kv.Store, key string, def T, opts ...Option) *Cell[T] {
	c := NewCell(key, kv.Get(store, key, def), opts...)
	c.save = func(v T) error { return kv.Set(store, key, v) }
	return c
}

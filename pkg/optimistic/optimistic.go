// Package optimistic applies local state changes before the remote call
// completes and undoes them exactly when it fails.
//
// A Mutation is a pair of pure functions over a snapshot of the collection.
// Apply runs before the remote call; Rollback runs only if the remote call
// returns an error. Neither may mutate its argument in place.
package optimistic

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrPending is returned when a mutation for the same key is still in flight.
var ErrPending = errors.New("optimistic: mutation already pending")

// Mutation describes a forward transform and its inverse.
type Mutation[T any] struct {
	Name     string
	Apply    func([]T) []T
	Rollback func([]T) []T
}

// Collection holds the local copy of a remote list.
type Collection[T any] struct {
	mu      sync.Mutex
	items   []T
	pending map[string]struct{}
}

func NewCollection[T any](items []T) *Collection[T] {
	return &Collection[T]{
		items:   slices.Clone(items),
		pending: make(map[string]struct{}),
	}
}

// Items returns a copy of the current state.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Reload replaces the state wholesale, typically with a fresh remote read.
func (c *Collection[T]) Reload(items []T) {
	c.mu.Lock()
	c.items = slices.Clone(items)
	c.mu.Unlock()
}

// Update applies a transform without a remote call, e.g. to merge the
// server's copy of an item once a mutation has succeeded.
func (c *Collection[T]) Update(fn func([]T) []T) {
	c.mu.Lock()
	c.items = fn(slices.Clone(c.items))
	c.mu.Unlock()
}

// Pending reports whether a mutation for key is in flight.
func (c *Collection[T]) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Do applies m.Apply, then calls remote outside the lock. If remote fails,
// m.Rollback is applied to the then-current state and the error is returned.
// Only one mutation per key may be in flight; others get ErrPending.
func (c *Collection[T]) Do(ctx context.Context, key string, m Mutation[T], remote func(context.Context) error) error {
	c.mu.Lock()
	if _, busy := c.pending[key]; busy {
		c.mu.Unlock()
		return ErrPending
	}
	c.pending[key] = struct{}{}
	if m.Apply != nil {
		c.items = m.Apply(slices.Clone(c.items))
	}
	c.mu.Unlock()

	err := remote(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, key)
	if err != nil && m.Rollback != nil {
		c.items = m.Rollback(slices.Clone(c.items))
	}
	return err
}

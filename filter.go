package mihari

import (
	"reflect"
	"unsafe"
)

// Filter provides a fast, cache-friendly iterator over all entities that have
// a specific component. It iterates directly over the component columns of
// matching archetypes. The filter caches its archetype list and refreshes it
// on Reset when new archetypes have appeared since the last scan.
//
// Structural mutation (spawn, despawn, component add/remove) invalidates an
// in-progress iteration; Reset before iterating again.
type Filter[T any] struct {
	world            *World
	matchingArches   []*archetype
	curBase          unsafe.Pointer
	curEntityIDs     []Entity
	curEnt           Entity
	mask             bitmask256
	compSize         uintptr
	archetypeVersion uint32
	curMatchIdx      int
	curIdx           int
	curArchSize      int
	compID           ComponentID
}

// NewFilter creates a new `Filter` that iterates over all entities possessing
// at least the component of type `T`.
//
// Parameters:
//   - w: The World to query.
//
// Returns:
//   - A pointer to the newly created `Filter[T]`.
func NewFilter[T any](w *World) *Filter[T] {
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	var m bitmask256
	m.set(uint8(id))
	f := &Filter[T]{
		world:    w,
		mask:     m,
		compID:   id,
		compSize: w.components.compIDToSize[id],
	}
	f.Reset()
	return f
}

// updateMatching rescans the world's archetype list for masks containing the
// filter's components.
func (f *Filter[T]) updateMatching() {
	f.matchingArches = f.matchingArches[:0]
	for _, a := range f.world.archetypes.archetypes {
		if a.mask.contains(f.mask) {
			f.matchingArches = append(f.matchingArches, a)
		}
	}
	f.archetypeVersion = f.world.archetypes.archetypeVersion
}

// Reset rewinds the filter's iterator to the beginning. It should be called
// before re-iterating and after any structural mutation. New archetypes
// created since the last scan are picked up automatically.
func (f *Filter[T]) Reset() {
	if f.archetypeVersion != f.world.archetypes.archetypeVersion {
		f.updateMatching()
	}
	f.curMatchIdx = 0
	f.curIdx = -1
	f.curArchSize = 0
	for i, a := range f.matchingArches {
		if a.size > 0 {
			f.curMatchIdx = i
			f.curBase = a.compPointers[f.compID]
			f.curEntityIDs = a.entityIDs
			f.curArchSize = a.size
			return
		}
	}
	f.curMatchIdx = len(f.matchingArches)
}

// Next advances the filter to the next matching entity. It returns true if an
// entity was found, and false if the iteration is complete. This method must
// be called before accessing the entity or its component.
//
// Example:
//
//	query := mihari.NewFilter[Position](world)
//	for query.Next() {
//	    // ... process entity
//	}
//
// Returns:
//   - true if another matching entity was found, false otherwise.
func (f *Filter[T]) Next() bool {
	f.curIdx++
	if f.curIdx < f.curArchSize {
		f.curEnt = f.curEntityIDs[f.curIdx]
		return true
	}
	for {
		f.curMatchIdx++
		if f.curMatchIdx >= len(f.matchingArches) {
			return false
		}
		a := f.matchingArches[f.curMatchIdx]
		if a.size == 0 {
			continue
		}
		f.curBase = a.compPointers[f.compID]
		f.curEntityIDs = a.entityIDs
		f.curArchSize = a.size
		f.curIdx = 0
		f.curEnt = f.curEntityIDs[0]
		return true
	}
}

// Entity returns the current `Entity` in the iteration. This should only be
// called after `Next()` has returned true.
func (f *Filter[T]) Entity() Entity {
	return f.curEnt
}

// Get returns a pointer to the component of type `T` for the current entity
// in the iteration. This should only be called after `Next()` has returned true.
func (f *Filter[T]) Get() *T {
	return (*T)(unsafe.Add(f.curBase, uintptr(f.curIdx)*f.compSize))
}

// Entities returns all entities that currently match the filter. The returned
// slice is freshly allocated and safe to keep.
func (f *Filter[T]) Entities() []Entity {
	f.Reset()
	out := make([]Entity, 0, 16)
	for f.Next() {
		out = append(out, f.curEnt)
	}
	f.Reset()
	return out
}

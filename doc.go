// Package mihari implements an archetype-based Entity Component System with a
// built-in observer index: entities can stand as observers of other entities,
// reacting to typed events targeted at their subjects.
//
// Features:
// - Archetype-based storage with max 256 component types.
// - Bitmask for fast archetype lookup.
// - Unsafe column pointers for zero-GC overhead on access.
// - Generic Builder and Filter APIs for 1 or 2 components.
// - Entity observers with automatic lifecycle: an observer whose last watched
//   entity is removed despawns itself, and cloning a watched entity can
//   opt in to replicating its observer registrations.
// - A deferred command queue so reactive code never mutates the world while
//   another structural operation is in progress.
//
// The world is single-writer: all structural mutation must go through one
// goroutine.
package mihari

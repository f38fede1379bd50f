package mihari

import (
	"reflect"
	"unsafe"
)

// Builder provides fast entity creation for a fixed, single-component
// archetype. It resolves the archetype once and reuses it for every spawn,
// avoiding the per-call mask lookups of SetComponent.
type Builder[T any] struct {
	world  *World
	arch   *archetype
	compID ComponentID
}

// NewBuilder creates a builder for entities carrying exactly one component of
// type `T`.
func NewBuilder[T any](w *World) *Builder[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	id := w.getCompTypeID(t)
	var mask bitmask256
	mask.set(uint8(id))
	sp := compSpec{id: id, typ: t, size: w.components.compIDToSize[id]}
	arch := w.getOrCreateArchetype(mask, []compSpec{sp})
	return &Builder[T]{world: w, arch: arch, compID: id}
}

// NewEntity spawns one entity with a zero-value component.
func (b *Builder[T]) NewEntity() Entity {
	return b.world.createEntity(b.arch)
}

// NewEntityWith spawns one entity and initializes its component to comp.
func (b *Builder[T]) NewEntityWith(comp T) Entity {
	e := b.world.createEntity(b.arch)
	meta := b.world.entities.metas[e.ID]
	ptr := unsafe.Add(b.arch.compPointers[b.compID], uintptr(meta.index)*b.arch.compSizes[b.compID])
	*(*T)(ptr) = comp
	return e
}

// NewEntities spawns count entities with zero-value components.
func (b *Builder[T]) NewEntities(count int) {
	for i := 0; i < count; i++ {
		b.world.createEntity(b.arch)
	}
}

// NewEntitiesWithValueSet spawns count entities, all initialized to comp.
func (b *Builder[T]) NewEntitiesWithValueSet(count int, comp T) {
	for i := 0; i < count; i++ {
		b.NewEntityWith(comp)
	}
}

// Get returns a pointer to the entity's component of type `T`, or nil if the
// entity is invalid or has moved to an archetype without it.
func (b *Builder[T]) Get(e Entity) *T {
	return GetComponent[T](b.world, e)
}

// Set sets the entity's component of type `T`, adding it if missing.
func (b *Builder[T]) Set(e Entity, comp T) {
	SetComponent(b.world, e, comp)
}

// Builder2 is the two-component variant of Builder.
type Builder2[T1, T2 any] struct {
	world *World
	arch  *archetype
	id1   ComponentID
	id2   ComponentID
}

// NewBuilder2 creates a builder for entities carrying exactly the components
// `T1` and `T2`.
func NewBuilder2[T1, T2 any](w *World) *Builder2[T1, T2] {
	t1 := reflect.TypeOf((*T1)(nil)).Elem()
	t2 := reflect.TypeOf((*T2)(nil)).Elem()
	id1 := w.getCompTypeID(t1)
	id2 := w.getCompTypeID(t2)
	var mask bitmask256
	mask.set(uint8(id1))
	mask.set(uint8(id2))
	specs := []compSpec{
		{id: id1, typ: t1, size: w.components.compIDToSize[id1]},
		{id: id2, typ: t2, size: w.components.compIDToSize[id2]},
	}
	arch := w.getOrCreateArchetype(mask, specs)
	return &Builder2[T1, T2]{world: w, arch: arch, id1: id1, id2: id2}
}

// NewEntity spawns one entity with zero-value components.
func (b *Builder2[T1, T2]) NewEntity() Entity {
	return b.world.createEntity(b.arch)
}

// NewEntities spawns count entities with zero-value components.
func (b *Builder2[T1, T2]) NewEntities(count int) {
	for i := 0; i < count; i++ {
		b.world.createEntity(b.arch)
	}
}

// NewEntityWith spawns one entity and initializes both components.
func (b *Builder2[T1, T2]) NewEntityWith(c1 T1, c2 T2) Entity {
	e := b.world.createEntity(b.arch)
	meta := b.world.entities.metas[e.ID]
	p1 := unsafe.Add(b.arch.compPointers[b.id1], uintptr(meta.index)*b.arch.compSizes[b.id1])
	p2 := unsafe.Add(b.arch.compPointers[b.id2], uintptr(meta.index)*b.arch.compSizes[b.id2])
	*(*T1)(p1) = c1
	*(*T2)(p2) = c2
	return e
}

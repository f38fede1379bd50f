package mihari

import (
	"reflect"
	"unsafe"
)

// GetComponent retrieves a pointer to the component of type `T` for the given
// entity. It provides a direct, type-safe way to access component data.
//
// If the entity is invalid, does not have the component, or if the entity ID is
// out of bounds, this function returns nil. The returned pointer is valid until
// the entity changes archetype or its archetype's columns are reallocated; do
// not hold it across structural mutations.
//
// Parameters:
//   - w: The World containing the entity.
//   - e: The Entity from which to retrieve the component.
//
// Returns:
//   - A pointer to the component data (*T), or nil if not found.
func GetComponent[T any](w *World, e Entity) *T {
	if !w.IsValid(e) {
		return nil
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(uint8(id)) {
		return nil
	}
	return (*T)(unsafe.Add(a.compPointers[id], uintptr(meta.index)*a.compSizes[id]))
}

// HasComponent reports whether the entity is valid and carries a component of
// type `T`.
func HasComponent[T any](w *World, e Entity) bool {
	if !w.IsValid(e) {
		return false
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	return w.archetypes.archetypes[meta.archetypeIndex].mask.containsBit(uint8(id))
}

// SetComponent adds a component of type `T` with the given value to an entity,
// or updates it if the component already exists.
//
// If the entity does not already have the component, adding it will cause the
// entity to move to a different archetype. This is a relatively expensive
// operation compared to updating an existing component. If the entity is
// invalid, this function does nothing.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
//   - val: The component data of type `T` to set.
func SetComponent[T any](w *World, e Entity, val T) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	t := reflect.TypeOf((*T)(nil)).Elem()
	id := w.getCompTypeID(t)
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if a.mask.containsBit(uint8(id)) {
		// already has, just set
		ptr := unsafe.Add(a.compPointers[id], uintptr(meta.index)*a.compSizes[id])
		*(*T)(ptr) = val
		return
	}
	// add new
	newMask := a.mask
	newMask.set(uint8(id))
	targetA := w.archetypeForTransition(a, newMask, id, true)
	newIdx := w.archetypePush(targetA, a.entityIDs[meta.index])
	// copy existing components
	for _, cid := range a.compOrder {
		src := unsafe.Add(a.compPointers[cid], uintptr(meta.index)*a.compSizes[cid])
		dst := unsafe.Add(targetA.compPointers[cid], uintptr(newIdx)*targetA.compSizes[cid])
		memCopy(dst, src, a.compSizes[cid])
	}
	// set new component
	dst := unsafe.Add(targetA.compPointers[id], uintptr(newIdx)*targetA.compSizes[id])
	*(*T)(dst) = val
	// remove from old
	w.removeFromArchetype(a, meta)
	// update meta
	meta.archetypeIndex = targetA.index
	meta.index = newIdx
	w.mutationVersion++
}

// RemoveComponent removes the component of type `T` from the specified entity.
//
// This operation will cause the entity to move to a new archetype that does not
// include the removed component. This can be an expensive operation. If the
// entity is invalid or does not have the component, this function does nothing.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
func RemoveComponent[T any](w *World, e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	t := reflect.TypeOf((*T)(nil)).Elem()
	id := w.getCompTypeID(t)
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(uint8(id)) {
		return
	}
	newMask := a.mask
	newMask.unset(uint8(id))
	targetA := w.archetypeForTransition(a, newMask, id, false)
	newIdx := w.archetypePush(targetA, a.entityIDs[meta.index])
	// copy existing components except removed
	for _, cid := range a.compOrder {
		if cid == id {
			continue
		}
		src := unsafe.Add(a.compPointers[cid], uintptr(meta.index)*a.compSizes[cid])
		dst := unsafe.Add(targetA.compPointers[cid], uintptr(newIdx)*targetA.compSizes[cid])
		memCopy(dst, src, a.compSizes[cid])
	}
	w.removeFromArchetype(a, meta)
	meta.archetypeIndex = targetA.index
	meta.index = newIdx
	w.mutationVersion++
}

// archetypeForTransition resolves the target archetype when moving out of `a`
// after adding (include=true) or removing (include=false) component `id`.
func (w *World) archetypeForTransition(a *archetype, newMask bitmask256, id ComponentID, include bool) *archetype {
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		return w.archetypes.archetypes[idx]
	}
	// build specs only when creating a new archetype
	var tempSpecs [MaxComponentTypes]compSpec
	count := 0
	for _, cid := range a.compOrder {
		if !include && cid == id {
			continue
		}
		tempSpecs[count] = compSpec{id: cid, typ: w.components.compIDToType[cid], size: w.components.compIDToSize[cid]}
		count++
	}
	if include {
		tempSpecs[count] = compSpec{id: id, typ: w.components.compIDToType[id], size: w.components.compIDToSize[id]}
		count++
	}
	return w.getOrCreateArchetype(newMask, tempSpecs[:count])
}

// archetypePush appends a row for e and returns its index. meta is not updated.
func (w *World) archetypePush(a *archetype, e Entity) int {
	if a.size == a.capacity {
		w.growArchetype(a, 1)
	}
	idx := a.size
	a.entityIDs[idx] = e
	a.size++
	return idx
}

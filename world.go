package mihari

import (
	"reflect"
	"unsafe"

	"go.uber.org/zap"
)

// MaxComponentTypes defines the maximum number of unique component types that
// can be registered in a World. This value is fixed at 256.
const MaxComponentTypes = 256

// Entity represents a unique identifier for an object in the World. It combines
// a 32-bit ID with a 32-bit version to ensure that recycled IDs are not confused
// with new entities.
type Entity struct {
	// ID is the unique, recyclable identifier for the entity.
	ID uint32
	// Version is a generation counter to protect against stale entity references.
	// It is incremented each time an entity ID is reused.
	Version uint32
}

// ComponentID is the per-world identifier assigned to a registered component type.
type ComponentID uint8

// entityMeta holds the internal location and state of an entity.
type entityMeta struct {
	archetypeIndex int    // index in World.archetypes
	index          int    // row inside the archetype's columns
	version        uint32 // current version, 0 if the entity is dead
}

// compSpec bundles a component type’s ID and reflect.Type.
type compSpec struct {
	typ  reflect.Type
	size uintptr
	id   ComponentID
}

// archetype holds column storage for one unique component-set mask. Each
// component occupies one contiguous column, grown geometrically.
type archetype struct {
	entityIDs    []Entity
	compPointers [MaxComponentTypes]unsafe.Pointer
	compOrder    []ComponentID // list of component IDs in this arch
	compSizes    [MaxComponentTypes]uintptr
	mask         bitmask256 // which component bits this arch uses
	index        int        // position in world.archetypes
	size         int        // live rows
	capacity     int        // allocated rows
}

// componentRegistry ...
type componentRegistry struct {
	compIDToType   [MaxComponentTypes]reflect.Type
	compTypeMap    map[reflect.Type]ComponentID
	compIDToSize   [MaxComponentTypes]uintptr
	nextCompTypeID uint16 // counter for assigning new component type IDs
}

// entityRegistry ...
type entityRegistry struct {
	freeIDs         []uint32     // stack of recycled entity IDs
	metas           []entityMeta // stores metadata for each entity, indexed by entity ID
	capacity        int          // current maximum number of entities
	initialCapacity int          // initial capacity, used for expansion
	nextEntityVer   uint32       // version for the next created entity
}

// archetypeRegistry ...
type archetypeRegistry struct {
	maskToArcIndex   map[bitmask256]int // lookup mask→archetype index
	archetypes       []*archetype       // list of all archetypes in the world
	archetypeVersion uint32             // incremented when a new archetype is created
}

// RemoveHook is invoked synchronously inside RemoveEntity, before the entity's
// data is destroyed. The entity is still valid and its components addressable.
// A hook must not perform structural mutation inline; it enqueues through
// World.Defer instead.
type RemoveHook func(*World, Entity)

// World is the single-writer container for all entity, component, observer and
// index state. It is not safe for concurrent mutation; the owning runtime is
// expected to serialize all structural changes through one goroutine.
type World struct {
	resources       *Resources
	archetypes      archetypeRegistry
	entities        entityRegistry
	components      componentRegistry
	events          eventRegistry
	observers       observerRegistry
	commands        []Command
	removeHooks     [MaxComponentTypes]RemoveHook
	hookMask        bitmask256 // set bits for components carrying a remove hook
	flushing        bool
	log             *zap.Logger
	mutationVersion uint32 // incremented on entity mutations
}

// NewWorld creates and initializes a new World with a specified initial
// capacity for entities. It pre-allocates memory for the entity metadata and
// free ID list to optimize performance.
//
// Parameters:
//   - initialCapacity: The number of entities to pre-allocate memory for.
//     Choosing a suitable capacity can prevent re-allocations during runtime.
//
// Returns:
//   - A pointer to the newly created World.
func NewWorld(initialCapacity int) *World {
	w := &World{
		resources: &Resources{},
		components: componentRegistry{
			compTypeMap: make(map[reflect.Type]ComponentID, 16),
		},
		entities: entityRegistry{
			capacity:        initialCapacity,
			initialCapacity: initialCapacity,
			freeIDs:         make([]uint32, initialCapacity),
			metas:           make([]entityMeta, initialCapacity),
			nextEntityVer:   1,
		},
		archetypes: archetypeRegistry{
			maskToArcIndex: make(map[bitmask256]int),
			archetypes:     make([]*archetype, 0, 16),
		},
		events: eventRegistry{
			eventTypeMap: make(map[reflect.Type]EventID, 16),
		},
		log: zap.NewNop(),
	}
	for i := range w.entities.freeIDs {
		w.entities.freeIDs[i] = uint32(initialCapacity - 1 - i)
	}
	for i := range w.entities.metas {
		w.entities.metas[i].archetypeIndex = -1
		w.entities.metas[i].index = -1
		w.entities.metas[i].version = 0
	}
	// Pre-create the empty archetype
	var emptyMask bitmask256
	w.getOrCreateArchetype(emptyMask, []compSpec{})
	w.initObserverState()
	return w
}

// SetLogger installs a structured logger for the world's lifecycle paths
// (deferred flushes, observer cascades, clone propagation). The default is a
// no-op logger, which keeps the hot path silent.
func (w *World) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	w.log = log
}

// IsValid checks if the entity is currently alive in the world. An entity is
// valid if its ID is within bounds and its version matches the world's current
// version for that ID. This prevents "stale" entity references from accessing
// incorrect data after an entity has been deleted and its ID recycled.
//
// Parameters:
//   - e: The Entity to validate.
//
// Returns:
//   - true if the entity is valid, false otherwise.
func (w *World) IsValid(e Entity) bool {
	if int(e.ID) >= len(w.entities.metas) {
		return false
	}
	meta := w.entities.metas[e.ID]
	return meta.version != 0 && meta.version == e.Version
}

// Resources returns the world's resource manager, a typed key-value store for
// global data such as counters, lookup tables or shared services.
func (w *World) Resources() *Resources {
	return w.resources
}

// getCompTypeID register or fetch a component type ID for T.
func (w *World) getCompTypeID(t reflect.Type) ComponentID {
	if id, ok := w.components.compTypeMap[t]; ok {
		return id
	}
	if w.components.nextCompTypeID >= MaxComponentTypes {
		panic("ecs: too many component types")
	}
	id := ComponentID(w.components.nextCompTypeID)
	w.components.compTypeMap[t] = id
	w.components.compIDToType[id] = t
	w.components.compIDToSize[id] = t.Size()
	w.components.nextCompTypeID++
	return id
}

// ComponentIDFor registers (if needed) and returns the world-local ID for the
// component type T.
func ComponentIDFor[T any](w *World) ComponentID {
	return w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
}

// RegisterRemoveHook installs fn as the removal hook for component type T. The
// hook fires once per removed entity that carries T, while the entity's data
// is still addressable. At most one hook per component type; installing again
// replaces the previous hook.
func RegisterRemoveHook[T any](w *World, fn RemoveHook) {
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	w.removeHooks[id] = fn
	w.hookMask.set(uint8(id))
}

// getOrCreateArchetype returns an archetype for the given mask;
// if missing, registers it with empty columns (grown on first insert).
func (w *World) getOrCreateArchetype(mask bitmask256, specs []compSpec) *archetype {
	if idx, ok := w.archetypes.maskToArcIndex[mask]; ok {
		return w.archetypes.archetypes[idx]
	}
	a := &archetype{
		index:     len(w.archetypes.archetypes),
		mask:      mask,
		compOrder: make([]ComponentID, len(specs)),
	}
	for i, sp := range specs {
		a.compOrder[i] = sp.id
		a.compSizes[sp.id] = sp.size
	}
	w.archetypes.archetypes = append(w.archetypes.archetypes, a)
	w.archetypes.maskToArcIndex[mask] = a.index
	w.archetypes.archetypeVersion++
	return a
}

// growArchetype reallocates the archetype's columns to hold at least
// size+additional rows. Columns are allocated through reflect.MakeSlice so the
// garbage collector keeps tracing pointer-bearing component types.
func (w *World) growArchetype(a *archetype, additional int) {
	newCap := a.capacity * 2
	if newCap == 0 {
		newCap = 64
	}
	for newCap < a.size+additional {
		newCap *= 2
	}
	ids := make([]Entity, newCap)
	copy(ids, a.entityIDs[:a.size])
	a.entityIDs = ids
	for _, cid := range a.compOrder {
		typ := w.components.compIDToType[cid]
		col := reflect.MakeSlice(reflect.SliceOf(typ), newCap, newCap)
		ptr := col.UnsafePointer()
		if a.size > 0 {
			memCopy(ptr, a.compPointers[cid], uintptr(a.size)*a.compSizes[cid])
		}
		a.compPointers[cid] = ptr
	}
	a.capacity = newCap
}

// expand automatically increases entity capacity when full.
func (w *World) expand(additional int) {
	oldCap := w.entities.capacity
	newCap := oldCap * 2
	if newCap == 0 {
		newCap = 1
	}
	if newCap < oldCap+additional {
		newCap = oldCap + additional
	}
	delta := newCap - oldCap
	newMetas := make([]entityMeta, delta)
	for i := range newMetas {
		newMetas[i].archetypeIndex = -1
		newMetas[i].index = -1
		newMetas[i].version = 0
	}
	w.entities.metas = append(w.entities.metas, newMetas...)
	newFree := make([]uint32, delta)
	for i := 0; i < delta; i++ {
		newFree[i] = uint32(newCap - 1 - i)
	}
	w.entities.freeIDs = append(w.entities.freeIDs, newFree...)
	w.entities.capacity = newCap
}

// createEntity bumps an entity into the given archetype.
func (w *World) createEntity(a *archetype) Entity {
	if len(w.entities.freeIDs) == 0 {
		w.expand(1)
	}
	// pop an ID
	last := len(w.entities.freeIDs) - 1
	id := w.entities.freeIDs[last]
	w.entities.freeIDs = w.entities.freeIDs[:last]
	if a.size == a.capacity {
		w.growArchetype(a, 1)
	}
	idx := a.size
	meta := &w.entities.metas[id]
	meta.archetypeIndex = a.index
	meta.index = idx
	meta.version = w.entities.nextEntityVer
	ent := Entity{ID: id, Version: meta.version}
	a.entityIDs[idx] = ent
	a.size++
	w.entities.nextEntityVer++
	w.mutationVersion++
	return ent
}

// CreateEntity creates a new entity with no components.
func (w *World) CreateEntity() Entity {
	emptyMask := bitmask256{}
	idx, ok := w.archetypes.maskToArcIndex[emptyMask]
	if !ok {
		panic("ecs: empty archetype not found")
	}
	return w.createEntity(w.archetypes.archetypes[idx])
}

// CreateEntities creates a batch of entities with no components and returns them.
func (w *World) CreateEntities(count int) []Entity {
	if count == 0 {
		return nil
	}
	ents := make([]Entity, count)
	for i := range ents {
		ents[i] = w.CreateEntity()
	}
	return ents
}

// RemoveEntity removes a single entity. Remove hooks for the entity's hooked
// components fire first, while the data is still addressable; any despawns
// they enqueue are drained before RemoveEntity returns, unless this removal is
// itself running inside a flush, in which case the enclosing drain picks them
// up in FIFO order.
func (w *World) RemoveEntity(e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if a.mask.intersects(w.hookMask) {
		for _, cid := range a.compOrder {
			if h := w.removeHooks[cid]; h != nil {
				h(w, e)
			}
		}
		// hooks may mutate other entities and shuffle rows around;
		// re-read the location before tearing the row down
		meta = &w.entities.metas[e.ID]
		a = w.archetypes.archetypes[meta.archetypeIndex]
	}
	w.removeFromArchetype(a, meta)
	meta.archetypeIndex = -1
	meta.index = -1
	meta.version = 0
	w.entities.freeIDs = append(w.entities.freeIDs, e.ID)
	w.mutationVersion++
	w.Flush()
}

// RemoveEntities removes a batch of entities.
func (w *World) RemoveEntities(ents []Entity) {
	for _, e := range ents {
		w.RemoveEntity(e)
	}
}

// removeFromArchetype removes the entity's row without freeing the ID or
// invalidating the version. The last row is swapped into the hole.
func (w *World) removeFromArchetype(a *archetype, meta *entityMeta) {
	idx := meta.index
	last := a.size - 1
	if idx < last {
		lastEnt := a.entityIDs[last]
		a.entityIDs[idx] = lastEnt
		for _, cid := range a.compOrder {
			size := a.compSizes[cid]
			src := unsafe.Add(a.compPointers[cid], uintptr(last)*size)
			dst := unsafe.Add(a.compPointers[cid], uintptr(idx)*size)
			memCopy(dst, src, size)
		}
		w.entities.metas[lastEnt.ID].index = idx
	}
	a.size--
	w.mutationVersion++
}

// memCopy copies size bytes from src to dst using built-in copy for performance.
func memCopy(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	dstBytes := unsafe.Slice((*byte)(dst), size)
	srcBytes := unsafe.Slice((*byte)(src), size)
	copy(dstBytes, srcBytes)
}

package mihari

import (
	"slices"
	"unsafe"

	"go.uber.org/zap"
)

// Cloner duplicates entities within one world. Component data is copied
// row-by-row (a shallow copy, exactly like the world's own archetype moves);
// the observer lifecycle components are never byte-copied. By default a clone
// starts with no observer registration at all; propagating the source's
// observers onto the clone is opt-in through AddObservers.
type Cloner struct {
	world        *World
	skip         []ComponentID
	skipMask     bitmask256
	addObservers bool
}

// NewCloner creates a Cloner for the given world.
func NewCloner(w *World) *Cloner {
	c := &Cloner{world: w}
	for _, cid := range []ComponentID{ComponentIDFor[ObservedBy](w), ComponentIDFor[Observer](w)} {
		c.skip = append(c.skip, cid)
		c.skipMask.set(uint8(cid))
	}
	return c
}

// AddObservers sets the option to automatically add cloned entities to the
// observers targeting the source entity. Defaults to false.
func (c *Cloner) AddObservers(add bool) *Cloner {
	c.addObservers = add
	return c
}

// CloneEntity duplicates src and returns the new entity. The clone carries
// value-identical copies of every component except ObservedBy and Observer.
//
// When AddObservers(true) is set and src is watched, the observer propagation
// runs as a deferred unit: cloning is itself an in-progress structural
// operation, so the index repair is enqueued and drained before CloneEntity
// returns. After propagation the clone's registration is content-identical to
// the source's at the moment of cloning but fully independent of it.
//
// Cloning a dead entity panics.
func (c *Cloner) CloneEntity(src Entity) Entity {
	w := c.world
	if !w.IsValid(src) {
		panic("ecs: cannot clone a dead entity")
	}
	srcMeta := w.entities.metas[src.ID]
	srcA := w.archetypes.archetypes[srcMeta.archetypeIndex]
	mask := srcA.mask
	for _, cid := range c.skip {
		mask.unset(uint8(cid))
	}
	var tempSpecs [MaxComponentTypes]compSpec
	count := 0
	for _, cid := range srcA.compOrder {
		if c.skipMask.containsBit(uint8(cid)) {
			continue
		}
		tempSpecs[count] = compSpec{id: cid, typ: w.components.compIDToType[cid], size: w.components.compIDToSize[cid]}
		count++
	}
	targetA := w.getOrCreateArchetype(mask, tempSpecs[:count])
	target := w.createEntity(targetA)
	// createEntity may have grown columns; re-read both locations
	srcMeta = w.entities.metas[src.ID]
	srcA = w.archetypes.archetypes[srcMeta.archetypeIndex]
	targetMeta := w.entities.metas[target.ID]
	for _, cid := range targetA.compOrder {
		size := srcA.compSizes[cid]
		sp := unsafe.Add(srcA.compPointers[cid], uintptr(srcMeta.index)*size)
		dp := unsafe.Add(targetA.compPointers[cid], uintptr(targetMeta.index)*size)
		memCopy(dp, sp, size)
	}
	if c.addObservers && HasComponent[ObservedBy](w, src) {
		w.log.Debug("observer propagation enqueued",
			zap.Uint32("source", src.ID),
			zap.Uint32("target", target.ID))
		w.Defer(func(w *World) {
			propagateObservers(w, src, target)
		})
	}
	w.Flush()
	return target
}

// propagateObservers extends every observer watching source to also watch
// target, and mirrors source's index entries under the target key. It runs
// deferred, with full exclusive world access. If either entity vanished before
// the flush the whole unit is skipped; a watched entity without its ObservedBy
// record, or a listed observer without its descriptor, is index corruption and
// fails loudly.
func propagateObservers(w *World, source, target Entity) {
	if !w.IsValid(source) || !w.IsValid(target) {
		return
	}
	ob := GetComponent[ObservedBy](w, source)
	if ob == nil {
		panic("ecs: clone source lost its ObservedBy record")
	}
	watchers := slices.Clone(ob.observers)
	SetComponent(w, target, ObservedBy{observers: slices.Clone(watchers)})
	for _, oe := range watchers {
		if !w.IsValid(oe) {
			continue
		}
		obs := GetComponent[Observer](w, oe)
		if obs == nil {
			panic("ecs: observer entity missing Observer descriptor")
		}
		// the new subject is alive: despawnedWatched stays untouched
		obs.entities = append(obs.entities, target)
		for _, ev := range obs.events {
			reg := w.observers.byEvent[ev]
			if reg == nil {
				continue
			}
			if len(obs.components) == 0 {
				if set, ok := reg.entityObservers[source]; ok {
					reg.entityObservers[target] = set.clone()
				}
			} else {
				for _, cid := range obs.components {
					ci := reg.componentObservers[cid]
					if ci == nil {
						continue
					}
					if set, ok := ci.entityComponentObservers[source]; ok {
						ci.entityComponentObservers[target] = set.clone()
					}
				}
			}
		}
	}
	w.log.Debug("propagated observers to clone",
		zap.Uint32("source", source.ID),
		zap.Uint32("target", target.ID),
		zap.Int("observers", len(watchers)))
}

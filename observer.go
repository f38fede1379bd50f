package mihari

import (
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// ObservedBy tracks the list of observer entities watching the entity it is
// attached to. It is created implicitly when the first observer registers
// against an entity, and drained exactly once when the entity is removed.
// Only the registration path appends to it and only the despawn cascade
// drains it; there is no other mutation surface.
type ObservedBy struct {
	observers []Entity
}

// Observers provides a read-only view of the entities observing this entity,
// in registration order. The returned slice is owned by the component; callers
// must not mutate it and should copy it for long-term use.
func (o *ObservedBy) Observers() []Entity {
	return o.observers
}

// Observer is the descriptor attached to an observer entity: which entities,
// component kinds and event kinds it watches, plus a count of watched subjects
// that have already been removed from the world. An observer with no watched
// entities and no component scope is global for its event kinds.
type Observer struct {
	entities         []Entity
	components       []ComponentID
	events           []EventID
	despawnedWatched int
	runner           any
}

// WatchedEntities returns the subjects this observer is registered against, in
// registration order. Read-only; owned by the descriptor.
func (o *Observer) WatchedEntities() []Entity {
	return o.entities
}

// Components returns the component kinds this observer is scoped to. Empty
// means the observer watches whole entities, not components.
func (o *Observer) Components() []ComponentID {
	return o.components
}

// Events returns the event kinds this observer reacts to.
func (o *Observer) Events() []EventID {
	return o.events
}

// observerSet is a set of observer entities, keyed by full Entity so recycled
// IDs never alias old registrations.
type observerSet map[Entity]struct{}

func (s observerSet) clone() observerSet {
	out := make(observerSet, len(s))
	for e := range s {
		out[e] = struct{}{}
	}
	return out
}

// componentIndex holds the observers scoped to one component kind for one
// event kind: those watching the component anywhere, and those watching it on
// specific entities.
type componentIndex struct {
	global                   observerSet
	entityComponentObservers map[Entity]observerSet
}

// eventObservers is the world-wide dispatch index for one event kind.
type eventObservers struct {
	global             observerSet
	entityObservers    map[Entity]observerSet
	componentObservers map[ComponentID]*componentIndex
}

func (r *eventObservers) comp(id ComponentID) *componentIndex {
	ci := r.componentObservers[id]
	if ci == nil {
		ci = &componentIndex{
			global:                   make(observerSet, 4),
			entityComponentObservers: make(map[Entity]observerSet, 4),
		}
		r.componentObservers[id] = ci
	}
	return ci
}

// observerRegistry maps event kinds to their dispatch index. It is owned by
// the world; only the registration path, the despawn cascade and the clone
// propagation mutate it, always under the world's single-writer discipline.
type observerRegistry struct {
	byEvent map[EventID]*eventObservers
}

func (r *observerRegistry) get(ev EventID) *eventObservers {
	reg := r.byEvent[ev]
	if reg == nil {
		reg = &eventObservers{
			global:             make(observerSet, 4),
			entityObservers:    make(map[Entity]observerSet, 8),
			componentObservers: make(map[ComponentID]*componentIndex, 4),
		}
		r.byEvent[ev] = reg
	}
	return reg
}

// initObserverState reserves the lifecycle component types and installs their
// remove hooks. Called once from NewWorld.
func (w *World) initObserverState() {
	w.observers = observerRegistry{
		byEvent: make(map[EventID]*eventObservers, 8),
	}
	RegisterRemoveHook[ObservedBy](w, observedByOnRemove)
	RegisterRemoveHook[Observer](w, observerOnRemove)
}

// ObserverBuilder configures and spawns one observer entity. Built in the
// world's builder style; Spawn performs the registration.
type ObserverBuilder[T any] struct {
	world      *World
	runner     func(*World, Entity, T)
	targets    []Entity
	components []ComponentID
}

// NewObserver starts building an observer that reacts to events of type `T`.
// The callback receives the world, the target entity the event was delivered
// to (the zero Entity for untargeted triggers), and the event value. The
// callback must not perform structural mutation inline; it enqueues through
// World.Defer.
//
// Parameters:
//   - w: The World the observer will live in.
//   - fn: The reaction callback.
//
// Returns:
//   - A builder; call Watch/WatchComponent to scope it, then Spawn.
func NewObserver[T any](w *World, fn func(*World, Entity, T)) *ObserverBuilder[T] {
	if fn == nil {
		panic("ecs: observer callback must not be nil")
	}
	return &ObserverBuilder[T]{world: w, runner: fn}
}

// Watch registers the observer against the given watched entities. Without any
// Watch or WatchComponent call the observer is global for its event kind.
func (b *ObserverBuilder[T]) Watch(targets ...Entity) *ObserverBuilder[T] {
	b.targets = append(b.targets, targets...)
	return b
}

// WatchComponent scopes the observer to the given component kinds: it reacts
// only when the event targets an entity carrying one of them.
func (b *ObserverBuilder[T]) WatchComponent(ids ...ComponentID) *ObserverBuilder[T] {
	b.components = append(b.components, ids...)
	return b
}

// Spawn creates the observer entity and wires all three structures at once:
// the descriptor, each watched entity's ObservedBy record, and the global
// index for the event kind. Registering against a dead entity panics.
//
// Returns:
//   - The observer entity.
func (b *ObserverBuilder[T]) Spawn() Entity {
	w := b.world
	for _, t := range b.targets {
		if !w.IsValid(t) {
			panic("ecs: observer target is not alive")
		}
	}
	evID := w.getEventTypeID(reflect.TypeOf((*T)(nil)).Elem())
	oe := w.CreateEntity()
	SetComponent(w, oe, Observer{
		entities:   slices.Clone(b.targets),
		components: slices.Clone(b.components),
		events:     []EventID{evID},
		runner:     b.runner,
	})
	reg := w.observers.get(evID)
	if len(b.components) == 0 {
		if len(b.targets) == 0 {
			reg.global[oe] = struct{}{}
		}
		for _, t := range b.targets {
			set := reg.entityObservers[t]
			if set == nil {
				set = make(observerSet, 1)
				reg.entityObservers[t] = set
			}
			set[oe] = struct{}{}
		}
	} else {
		for _, cid := range b.components {
			ci := reg.comp(cid)
			if len(b.targets) == 0 {
				ci.global[oe] = struct{}{}
			}
			for _, t := range b.targets {
				set := ci.entityComponentObservers[t]
				if set == nil {
					set = make(observerSet, 1)
					ci.entityComponentObservers[t] = set
				}
				set[oe] = struct{}{}
			}
		}
	}
	for _, t := range b.targets {
		ob := GetComponent[ObservedBy](w, t)
		if ob == nil {
			SetComponent(w, t, ObservedBy{})
			ob = GetComponent[ObservedBy](w, t)
		}
		ob.observers = append(ob.observers, oe)
	}
	return oe
}

// observedByOnRemove is the despawn cascade (the ObservedBy remove hook). It
// runs synchronously while the watched entity's data is still addressable.
//
// The list is taken before processing, so a re-entrant removal can never
// double-process the same watchers, and a second removal of the same entity
// can never double-count despawnedWatched. A watcher that no longer exists is
// an expected race between independent removals and is skipped; a live watcher
// without a descriptor means the bidirectional invariant was already broken
// elsewhere and fails loudly. Observer despawns are enqueued, never executed
// inline: a structural despawn inside another entity's removal would alias the
// store being mutated.
func observedByOnRemove(w *World, e Entity) {
	ob := GetComponent[ObservedBy](w, e)
	if ob == nil {
		panic("ecs: removed entity lost its ObservedBy record")
	}
	watchers := ob.observers
	ob.observers = nil
	for _, oe := range watchers {
		if !w.IsValid(oe) {
			continue
		}
		obs := GetComponent[Observer](w, oe)
		if obs == nil {
			panic("ecs: observer entity missing Observer descriptor")
		}
		obs.despawnedWatched++
		if obs.despawnedWatched == len(obs.entities) {
			w.log.Debug("observer out of live subjects, despawn enqueued",
				zap.Uint32("observer", oe.ID),
				zap.Uint32("subject", e.ID))
			w.Defer(func(w *World) {
				w.RemoveEntity(oe)
			})
		}
	}
}

// observerOnRemove unregisters a despawned observer: its index entries are
// deleted and it is detached from every still-live subject's ObservedBy.
// Subjects that are already dead were handled by their own cascade.
func observerOnRemove(w *World, e Entity) {
	obs := GetComponent[Observer](w, e)
	if obs == nil {
		panic("ecs: removed entity lost its Observer descriptor")
	}
	for _, ev := range obs.events {
		reg := w.observers.byEvent[ev]
		if reg == nil {
			continue
		}
		if len(obs.components) == 0 {
			if len(obs.entities) == 0 {
				delete(reg.global, e)
			}
			for _, t := range obs.entities {
				if set := reg.entityObservers[t]; set != nil {
					delete(set, e)
					if len(set) == 0 {
						delete(reg.entityObservers, t)
					}
				}
			}
		} else {
			for _, cid := range obs.components {
				ci := reg.componentObservers[cid]
				if ci == nil {
					continue
				}
				if len(obs.entities) == 0 {
					delete(ci.global, e)
				}
				for _, t := range obs.entities {
					if set := ci.entityComponentObservers[t]; set != nil {
						delete(set, e)
						if len(set) == 0 {
							delete(ci.entityComponentObservers, t)
						}
					}
				}
			}
		}
	}
	for _, t := range obs.entities {
		if !w.IsValid(t) {
			continue
		}
		ob := GetComponent[ObservedBy](w, t)
		if ob == nil {
			continue
		}
		if i := slices.Index(ob.observers, e); i >= 0 {
			ob.observers = slices.Delete(ob.observers, i, i+1)
		}
	}
}

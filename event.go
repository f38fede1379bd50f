package mihari

import "reflect"

// MaxEventTypes defines the maximum number of unique event types that can be
// registered in a World. This value is fixed at 256.
const MaxEventTypes = 256

// EventID is the per-world identifier assigned to a registered event type.
// Event kinds, like component kinds, are plain Go types.
type EventID uint8

// eventRegistry assigns stable IDs to event types.
type eventRegistry struct {
	eventTypeMap    map[reflect.Type]EventID
	nextEventTypeID uint16 // counter for assigning new event type IDs
}

// getEventTypeID retrieves or assigns an ID for the event type.
func (w *World) getEventTypeID(t reflect.Type) EventID {
	if id, ok := w.events.eventTypeMap[t]; ok {
		return id
	}
	if w.events.nextEventTypeID >= MaxEventTypes {
		panic("ecs: too many event types")
	}
	id := EventID(w.events.nextEventTypeID)
	w.events.eventTypeMap[t] = id
	w.events.nextEventTypeID++
	return id
}

// EventIDFor registers (if needed) and returns the world-local ID for the
// event type T.
func EventIDFor[T any](w *World) EventID {
	return w.getEventTypeID(reflect.TypeOf((*T)(nil)).Elem())
}

// Trigger delivers ev to every global observer of its event kind, i.e. every
// observer spawned without entity or component scope. Observers scoped to
// entities or components only react to TriggerTargets.
//
// Observer callbacks run synchronously, in no particular order relative to
// each other. Structural mutations they enqueue through World.Defer are
// flushed before Trigger returns.
func Trigger[T any](w *World, ev T) {
	id, ok := w.events.eventTypeMap[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return
	}
	reg := w.observers.byEvent[id]
	if reg == nil || len(reg.global) == 0 {
		return
	}
	// snapshot: callbacks may register or despawn observers
	cands := make([]Entity, 0, len(reg.global))
	for oe := range reg.global {
		cands = append(cands, oe)
	}
	for _, oe := range cands {
		runObserver(w, oe, Entity{}, ev)
	}
	w.Flush()
}

// TriggerTargets delivers ev once per (observer, target) pair: for each live
// target it fires the global observers of the event kind, the observers
// registered against that entity, and the component-scoped observers whose
// component the target currently carries. An observer reachable through more
// than one index bucket fires once per target, not once per bucket.
//
// Dead targets are skipped silently. Candidate observers are re-validated
// before their callback runs, so index entries left behind by a despawned
// subject can never produce a spurious reaction.
func TriggerTargets[T any](w *World, ev T, targets ...Entity) {
	id, ok := w.events.eventTypeMap[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return
	}
	reg := w.observers.byEvent[id]
	if reg == nil {
		return
	}
	var cands []Entity
	seen := make(map[Entity]struct{}, 8)
	add := func(oe Entity) {
		if _, dup := seen[oe]; dup {
			return
		}
		seen[oe] = struct{}{}
		cands = append(cands, oe)
	}
	for _, target := range targets {
		if !w.IsValid(target) {
			continue
		}
		cands = cands[:0]
		clear(seen)
		for oe := range reg.global {
			add(oe)
		}
		if set := reg.entityObservers[target]; set != nil {
			for oe := range set {
				add(oe)
			}
		}
		meta := w.entities.metas[target.ID]
		a := w.archetypes.archetypes[meta.archetypeIndex]
		for _, cid := range a.compOrder {
			ci := reg.componentObservers[cid]
			if ci == nil {
				continue
			}
			for oe := range ci.global {
				add(oe)
			}
			if set := ci.entityComponentObservers[target]; set != nil {
				for oe := range set {
					add(oe)
				}
			}
		}
		for _, oe := range cands {
			runObserver(w, oe, target, ev)
		}
	}
	w.Flush()
}

// runObserver invokes the observer's callback if the observer entity is still
// alive and carries a matching descriptor. A dead or mismatched candidate is
// skipped: the index is allowed to run ahead of despawns between flushes.
func runObserver[T any](w *World, oe, target Entity, ev T) {
	if !w.IsValid(oe) {
		return
	}
	obs := GetComponent[Observer](w, oe)
	if obs == nil {
		return
	}
	fn, ok := obs.runner.(func(*World, Entity, T))
	if !ok {
		return
	}
	fn(w, target, ev)
}

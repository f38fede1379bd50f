package mihari

import (
	"testing"
)

// --- Test Components ---
type Position struct{ X, Y float32 }
type Velocity struct{ VX, VY float32 }
type Health struct{ Current, Max int }

func TestCreateEntity(t *testing.T) {
	w := NewWorld(16)
	e1 := w.CreateEntity()
	e2 := w.CreateEntity()
	if e1 == e2 {
		t.Fatal("expected distinct entities")
	}
	if !w.IsValid(e1) || !w.IsValid(e2) {
		t.Error("freshly created entities must be valid")
	}
}

func TestRemoveEntityInvalidates(t *testing.T) {
	w := NewWorld(16)
	e := w.CreateEntity()
	w.RemoveEntity(e)
	if w.IsValid(e) {
		t.Fatal("removed entity must be invalid")
	}
	// second removal is a no-op
	w.RemoveEntity(e)
}

func TestEntityIDRecycling(t *testing.T) {
	w := NewWorld(1)
	e1 := w.CreateEntity()
	w.RemoveEntity(e1)
	e2 := w.CreateEntity()
	if e2.ID != e1.ID {
		t.Fatalf("expected recycled ID %d, got %d", e1.ID, e2.ID)
	}
	if e2.Version == e1.Version {
		t.Error("recycled ID must carry a new version")
	}
	if w.IsValid(e1) {
		t.Error("stale reference to recycled ID must stay invalid")
	}
}

func TestSetGetComponent(t *testing.T) {
	w := NewWorld(16)
	e := w.CreateEntity()
	SetComponent(w, e, Position{X: 100, Y: 200})
	p := GetComponent[Position](w, e)
	if p == nil {
		t.Fatal("GetComponent returned nil after SetComponent")
	}
	if p.X != 100 || p.Y != 200 {
		t.Errorf("component data incorrect, got %+v", *p)
	}
	// update in place
	SetComponent(w, e, Position{X: 5, Y: 7})
	p = GetComponent[Position](w, e)
	if p.X != 5 || p.Y != 7 {
		t.Errorf("expected {5 7}, got %+v", *p)
	}
}

func TestComponentSurvivesArchetypeMove(t *testing.T) {
	w := NewWorld(16)
	e := w.CreateEntity()
	SetComponent(w, e, Position{X: 1, Y: 2})
	SetComponent(w, e, Velocity{VX: 3, VY: 4})
	SetComponent(w, e, Health{Current: 9, Max: 10})
	p := GetComponent[Position](w, e)
	v := GetComponent[Velocity](w, e)
	h := GetComponent[Health](w, e)
	if p == nil || v == nil || h == nil {
		t.Fatal("components lost on archetype move")
	}
	if p.X != 1 || v.VX != 3 || h.Current != 9 {
		t.Errorf("component data corrupted: %+v %+v %+v", *p, *v, *h)
	}
}

func TestRemoveComponent(t *testing.T) {
	w := NewWorld(16)
	e := w.CreateEntity()
	SetComponent(w, e, Position{X: 1})
	SetComponent(w, e, Velocity{VX: 2})
	RemoveComponent[Position](w, e)
	if GetComponent[Position](w, e) != nil {
		t.Error("removed component still present")
	}
	v := GetComponent[Velocity](w, e)
	if v == nil || v.VX != 2 {
		t.Error("sibling component lost on removal")
	}
	if !HasComponent[Velocity](w, e) || HasComponent[Position](w, e) {
		t.Error("HasComponent disagrees with storage")
	}
}

func TestSwapRemoveKeepsSiblings(t *testing.T) {
	w := NewWorld(16)
	b := NewBuilder[Position](w)
	e1 := b.NewEntityWith(Position{X: 1})
	e2 := b.NewEntityWith(Position{X: 2})
	e3 := b.NewEntityWith(Position{X: 3})
	w.RemoveEntity(e1)
	if p := GetComponent[Position](w, e2); p == nil || p.X != 2 {
		t.Errorf("entity 2 corrupted after swap-remove")
	}
	if p := GetComponent[Position](w, e3); p == nil || p.X != 3 {
		t.Errorf("entity 3 corrupted after swap-remove")
	}
}

func TestBuilderAndFilter(t *testing.T) {
	w := NewWorld(16)
	b := NewBuilder[Position](w)
	b.NewEntitiesWithValueSet(100, Position{X: 1})
	f := NewFilter[Position](w)
	count := 0
	sum := float32(0)
	for f.Next() {
		count++
		sum += f.Get().X
	}
	if count != 100 {
		t.Fatalf("expected 100 matches, got %d", count)
	}
	if sum != 100 {
		t.Errorf("expected sum 100, got %f", sum)
	}
	// filter picks up archetypes created later
	SetComponent(w, w.CreateEntity(), Position{X: 1})
	SetComponent(w, w.CreateEntity(), Velocity{})
	f.Reset()
	count = 0
	for f.Next() {
		count++
	}
	if count != 101 {
		t.Fatalf("expected 101 matches after reset, got %d", count)
	}
}

func TestBuilder2(t *testing.T) {
	w := NewWorld(16)
	b := NewBuilder2[Position, Velocity](w)
	e := b.NewEntityWith(Position{X: 1}, Velocity{VX: 2})
	p := GetComponent[Position](w, e)
	v := GetComponent[Velocity](w, e)
	if p == nil || v == nil || p.X != 1 || v.VX != 2 {
		t.Errorf("Builder2 entity incorrect: %+v %+v", p, v)
	}
}

func TestAutoExpand(t *testing.T) {
	w := NewWorld(2)
	ents := w.CreateEntities(100)
	for _, e := range ents {
		if !w.IsValid(e) {
			t.Fatal("entity invalid after capacity expansion")
		}
	}
}

func TestRemoveHookFires(t *testing.T) {
	w := NewWorld(16)
	var hooked []Entity
	RegisterRemoveHook[Health](w, func(w *World, e Entity) {
		// data must still be addressable inside the hook
		if h := GetComponent[Health](w, e); h == nil || h.Current != 42 {
			t.Error("component not addressable inside remove hook")
		}
		hooked = append(hooked, e)
	})
	e := w.CreateEntity()
	SetComponent(w, e, Health{Current: 42})
	other := w.CreateEntity()
	SetComponent(w, other, Position{})
	w.RemoveEntity(e)
	w.RemoveEntity(other)
	if len(hooked) != 1 || hooked[0] != e {
		t.Fatalf("expected one hook invocation for %v, got %v", e, hooked)
	}
}

func TestDeferFIFO(t *testing.T) {
	w := NewWorld(16)
	var order []int
	w.Defer(func(w *World) { order = append(order, 1) })
	w.Defer(func(w *World) {
		order = append(order, 2)
		// enqueued mid-drain, must run in the same pass, after 3
		w.Defer(func(w *World) { order = append(order, 4) })
	})
	w.Defer(func(w *World) { order = append(order, 3) })
	w.Flush()
	want := []int{1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
	if len(w.commands) != 0 {
		t.Error("queue not drained")
	}
}

func TestFlushReentrancy(t *testing.T) {
	w := NewWorld(16)
	ran := false
	w.Defer(func(w *World) {
		// a re-entrant flush must not restart the drain
		w.Flush()
		ran = true
	})
	w.Flush()
	if !ran {
		t.Fatal("deferred command did not run")
	}
}

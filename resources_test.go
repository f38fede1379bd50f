package mihari

import "testing"

type cfgResource struct{ Name string }
type statsResource struct{ Hits int }

func TestResourcesAddGet(t *testing.T) {
	r := &Resources{}
	id := r.Add(&cfgResource{Name: "alpha"})
	if !r.Has(id) {
		t.Fatal("resource not present after Add")
	}
	res, gotID := GetResource[cfgResource](r)
	if res == nil || res.Name != "alpha" {
		t.Fatalf("GetResource returned %+v", res)
	}
	if gotID != id {
		t.Errorf("expected ID %d, got %d", id, gotID)
	}
}

func TestResourcesDuplicatePanics(t *testing.T) {
	r := &Resources{}
	r.Add(&cfgResource{})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate resource type")
		}
	}()
	r.Add(&cfgResource{})
}

func TestResourcesRemoveAndReuse(t *testing.T) {
	r := &Resources{}
	id := r.Add(&cfgResource{})
	r.Remove(id)
	if r.Has(id) {
		t.Fatal("resource still present after Remove")
	}
	if ok, _ := HasResource[cfgResource](r); ok {
		t.Fatal("type lookup must be cleared by Remove")
	}
	// freed ID is reused
	id2 := r.Add(&statsResource{})
	if id2 != id {
		t.Errorf("expected reused ID %d, got %d", id, id2)
	}
}

func TestResourcesClear(t *testing.T) {
	r := &Resources{}
	r.Add(&cfgResource{})
	r.Add(&statsResource{})
	r.Clear()
	if ok, _ := HasResource[cfgResource](r); ok {
		t.Fatal("Clear must drop all resources")
	}
	if ok, _ := HasResource[statsResource](r); ok {
		t.Fatal("Clear must drop all resources")
	}
}

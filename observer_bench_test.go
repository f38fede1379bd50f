package mihari

import (
	"fmt"
	"testing"
)

func BenchmarkTriggerTargets(b *testing.B) {
	sizes := []int{1, 8, 64}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dobservers", size), func(b *testing.B) {
			w := NewWorld(1024)
			e := w.CreateEntity()
			sink := 0
			for i := 0; i < size; i++ {
				NewObserver[Ping](w, func(w *World, _ Entity, ev Ping) { sink += ev.Amount }).Watch(e).Spawn()
			}
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				TriggerTargets(w, Ping{Amount: 1}, e)
			}
			_ = sink
		})
	}
}

func BenchmarkDespawnCascade(b *testing.B) {
	sizes := []int{10, 100, 1000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dwatched", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				w := NewWorld(size * 2)
				subjects := w.CreateEntities(size)
				for _, s := range subjects {
					NewObserver[Ping](w, func(w *World, _ Entity, _ Ping) {}).Watch(s).Spawn()
				}
				b.StartTimer()
				for _, s := range subjects {
					w.RemoveEntity(s)
				}
			}
		})
	}
}

func BenchmarkCloneWithObservers(b *testing.B) {
	w := NewWorld(1 << 16)
	src := w.CreateEntity()
	SetComponent(w, src, Position{X: 1, Y: 2})
	NewObserver[Ping](w, func(w *World, _ Entity, _ Ping) {}).Watch(src).Spawn()
	cloner := NewCloner(w).AddObservers(true)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		clone := cloner.CloneEntity(src)
		b.StopTimer()
		w.RemoveEntity(clone)
		b.StartTimer()
	}
}

// Profiling:
// go build ./profile/cascade
// go tool pprof -http=":8000" -nodefraction=0.001 ./cascade mem.pprof

package main

import (
	"github.com/pkg/profile"
	"github.com/takeshi-arihori/mihari"
)

type health struct {
	Current int64
	Max     int64
}

type damage struct {
	Amount int64
}

func main() {
	rounds := 50
	numEntities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, numEntities)
	p.Stop()
}

func run(rounds, numEntities int) {
	sink := int64(0)
	for i := 0; i < rounds; i++ {
		w := mihari.NewWorld(numEntities * 2)
		builder := mihari.NewBuilder[health](w)
		subjects := make([]mihari.Entity, 0, numEntities)
		for j := 0; j < numEntities; j++ {
			s := builder.NewEntityWith(health{Current: 100, Max: 100})
			subjects = append(subjects, s)
			mihari.NewObserver[damage](w, func(w *mihari.World, target mihari.Entity, ev damage) {
				h := mihari.GetComponent[health](w, target)
				h.Current -= ev.Amount
				sink += h.Current
			}).Watch(s).Spawn()
		}
		for _, s := range subjects {
			mihari.TriggerTargets(w, damage{Amount: 5}, s)
		}
		for _, s := range subjects {
			w.RemoveEntity(s)
		}
	}
	_ = sink
}

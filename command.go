package mihari

import "go.uber.org/zap"

// Command is a deferred world mutation. Reactive code (remove hooks, observer
// callbacks, clone extension points) runs while a structural operation is
// already in progress and therefore cannot mutate the world inline; it wraps
// the mutation in a Command instead and hands it to World.Defer.
type Command func(*World)

// Defer enqueues cmd to run at the next flush point, after the current
// structural operation has returned. Commands run in enqueue order.
func (w *World) Defer(cmd Command) {
	w.commands = append(w.commands, cmd)
}

// Flush drains the deferred command queue in FIFO order. Commands enqueued
// while the drain is running are executed in the same pass, which is what lets
// a chain of cascading despawns resolve in a single flush. Re-entrant calls
// (a command removing an entity re-enters RemoveEntity, which calls Flush)
// return immediately and leave the drain to the outermost caller.
func (w *World) Flush() {
	if w.flushing || len(w.commands) == 0 {
		return
	}
	w.flushing = true
	for i := 0; i < len(w.commands); i++ {
		w.commands[i](w)
	}
	w.log.Debug("flushed deferred commands", zap.Int("count", len(w.commands)))
	for i := range w.commands {
		w.commands[i] = nil
	}
	w.commands = w.commands[:0]
	w.flushing = false
}

package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/types"
)

// TickFinished is broadcast at LevelSystem when a tick completes.
const TickFinished = "<Tick finished.>"

// Tick advances the world one step. Every entity live at the start of the
// tick, and not despawned before its turn, gets its tick behaviour called
// and a tick event fired. Entities spawned during the tick wait for the
// next one. Despawns during the tick are resolved after the last entity.
//
// A failing behaviour or system is logged and the tick moves on to the next
// entity. Tick returns ErrTickInProgress if called from inside a tick.
func (w *World) Tick() error {
	if w.pending != nil {
		return ErrTickInProgress
	}
	w.pending = map[string]struct{}{}
	defer func() { w.pending = nil }()

	w.ticks++
	log := w.log.WithField("tick", w.ticks)

	snapshot := append([]string(nil), w.order...)
	for i, id := range snapshot {
		if _, queued := w.pending[id]; queued {
			continue
		}
		rec, ok := w.entities[id]
		if !ok {
			continue
		}
		w.tickEntity(log, &Entity{world: w, rec: rec})
		log.Debugf("tick: %d/%d entities", i+1, len(snapshot))
	}

	w.Broadcast(types.LevelSystem, TickFinished)
	w.resolveRemovals()
	return nil
}

func (w *World) tickEntity(log logrus.FieldLogger, e *Entity) {
	fields := logrus.Fields{"entity": e.rec.ID, "type": e.rec.TypeID}

	if t := e.Type(); t != nil && t.Has("tick") {
		if _, err := e.Call("tick"); err != nil {
			log.WithFields(fields).WithField("verb", "tick").WithError(err).Error("tick behaviour failed")
		}
	}
	if err := e.Event("tick"); err != nil {
		log.WithFields(fields).WithField("event", "tick").WithError(err).Error("tick system failed")
	}
}

// queueRemoval defers removal of id to the end of the running tick, or
// removes it at once when no tick is running.
func (w *World) queueRemoval(id string) {
	if w.pending != nil {
		w.pending[id] = struct{}{}
		return
	}
	if w.remove(id) {
		w.removed[id] = struct{}{}
		w.compact()
	}
}

// resolveRemovals deletes every pending id. The removed set is replaced by
// this tick's removals.
func (w *World) resolveRemovals() {
	w.removed = make(map[string]struct{}, len(w.pending))
	for _, id := range sortedKeys(w.pending) {
		if w.remove(id) {
			w.removed[id] = struct{}{}
		}
	}
	w.pending = map[string]struct{}{}
	w.compact()
}

func (w *World) remove(id string) bool {
	rec, ok := w.entities[id]
	if !ok {
		return false
	}
	delete(w.entities, id)
	w.unindex(rec.Name, id)
	return true
}

// compact drops removed ids from the insertion order.
func (w *World) compact() {
	kept := w.order[:0]
	for _, id := range w.order {
		if _, ok := w.entities[id]; ok {
			kept = append(kept, id)
		}
	}
	w.order = kept
}

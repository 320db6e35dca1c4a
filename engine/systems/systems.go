// Package systems holds native event handlers that content can attach to
// types, variants or the whole world by name.
package systems

import (
	"sort"
	"sync"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

// Library returns the native systems keyed by content name.
func Library() map[string]engine.System {
	return map[string]engine.System{
		"drops":    Drops,
		"obituary": Obituary,
		"pinata":   Pinata,
	}
}

// killer returns the instigator of a death: the event argument if one was
// passed, else the stored instigator pointer.
func killer(e *engine.Entity, args []any) *engine.Entity {
	if len(args) > 0 {
		if k, ok := args[0].(*engine.Entity); ok && k != nil && !k.Despawned() {
			return k
		}
	}
	return e.Pointer(engine.AttrInstigator)
}

// Obituary announces deaths to the place they happened in.
func Obituary(event string, e *engine.Entity, args ...any) error {
	if event != "death" {
		return nil
	}
	w := e.World()
	if k := killer(e, args); k != nil {
		w.BroadcastIn(types.LevelImportant, []string{e.Place()}, e, " was slain by ", k.DisplayName(), "!")
	} else {
		w.BroadcastIn(types.LevelImportant, []string{e.Place()}, e, " died!")
	}
	return nil
}

// Entry is one event seen by a Journal.
type Entry struct {
	Event  string
	Entity string // id
	Name   string
	Args   []any
}

// Journal records every event it sees.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
}

// System returns the journal's event handler.
func (j *Journal) System() engine.System {
	return func(event string, e *engine.Entity, args ...any) error {
		j.mu.Lock()
		j.entries = append(j.entries, Entry{
			Event:  event,
			Entity: e.ID(),
			Name:   e.Name(),
			Args:   append([]any(nil), args...),
		})
		j.mu.Unlock()
		return nil
	}
}

// Entries returns a copy of the recorded events.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

// Count returns how many times event was seen.
func (j *Journal) Count(event string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, en := range j.entries {
		if en.Event == event {
			n++
		}
	}
	return n
}

func sortedNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

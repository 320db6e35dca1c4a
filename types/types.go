// Package types defines the shared data structures for the world runtime.
// This package contains only type definitions and trivial accessors.
package types

// Level is the severity of a broadcast message. Channels subscribe with a
// minimum level and only receive messages at or above it.
type Level int

// Broadcast levels.
const (
	LevelVerbose     Level = -2
	LevelDebug       Level = -1
	LevelInfo        Level = 0
	LevelInteresting Level = 1
	LevelImportant   Level = 2
	LevelEvent       Level = 3
	LevelSystem      Level = 4 // tick notifications, joins
)

// Place is a location in the world. Items is the ground inventory
// (item name → count) and is mutated in place.
type Place struct {
	Name  string         `json:"name"`
	Attr  map[string]any `json:"attr"`
	Items map[string]int `json:"items"`
}

// ItemType is a catalog entry. Attr may carry "recipe" and
// "prerequisites" maps (item name → count).
type ItemType struct {
	Name  string         `json:"name"`
	Attr  map[string]any `json:"attr"`
	Flags []string       `json:"flags"`
}

// HasFlag reports whether the item type carries the given flag.
func (it *ItemType) HasFlag(flag string) bool {
	for _, f := range it.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Path is a set of place names mutually reachable in one move.
type Path []string

// Contains reports whether the path touches the given place.
func (p Path) Contains(place string) bool {
	for _, name := range p {
		if name == place {
			return true
		}
	}
	return false
}

// Spawn is a population instruction applied when a world is first built.
type Spawn struct {
	Place   string // place name
	Type    string // entity type id
	Variant string // "*" for any, or a ';'-separated list to choose from
	Amount  string // "3" or "1-4"
}

// Item flags understood by the drop rules.
const (
	FlagAlwaysDrop = "alwaysDrop"
	FlagNeverDrop  = "neverDrop"
	FlagWeapon     = "weapon"
)

package engine

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/types"
)

// dragonDef is a small type used across the engine tests: a base health,
// a base flag, an adult variant that is playable and a whelp that is not.
func dragonDef() TypeDef {
	return TypeDef{
		ID:    "dragon",
		Name:  "Dragon",
		Attr:  map[string]any{"health": 50, "size": "big", "color": "red"},
		Flags: []string{"flying", "scaly"},
		Variants: []VariantDef{
			{
				ID:       "adult",
				Name:     "adult dragon",
				Attr:     map[string]any{"size": "huge"},
				Flags:    []string{"isPlayer"},
				Defaults: map[string]any{"health": 100, "inventory": map[string]any{}},
			},
			{
				ID:      "whelp",
				Name:    "whelp",
				Attr:    map[string]any{"size": "small"},
				Unflags: []string{"flying"},
			},
		},
	}
}

func mustType(t *testing.T, def TypeDef) *EntityType {
	t.Helper()
	et, err := NewEntityType(def)
	if err != nil {
		t.Fatalf("NewEntityType(%s): %v", def.ID, err)
	}
	return et
}

// newTestWorld builds a three-place world (Cave - Field - Peak) with the
// given types registered, a silent logger and an unpaced hub.
func newTestWorld(t *testing.T, defs ...TypeDef) (*World, *test.Hook) {
	t.Helper()
	reg := NewRegistry()
	for _, def := range defs {
		if err := reg.Register(mustType(t, def)); err != nil {
			t.Fatalf("register %s: %v", def.ID, err)
		}
	}

	log, hook := test.NewNullLogger()
	hub := broadcast.New(broadcast.WithLogger(log), broadcast.WithPace(0))
	w := New(Defs{
		Types: reg,
		Places: []types.Place{
			{Name: "Cave", Items: map[string]int{"rock": 2}},
			{Name: "Field"},
			{Name: "Peak"},
			{Name: "Island"},
		},
		Paths: []types.Path{{"Cave", "Field"}, {"Field", "Peak"}},
		Items: []types.ItemType{
			{Name: "rock"},
			{Name: "gold", Flags: []string{types.FlagAlwaysDrop}},
		},
		Beginning: []string{"Cave"},
	}, WithSeed(42), WithLogger(log), WithHub(hub))
	return w, hook
}

func mustSpawn(t *testing.T, w *World, typeID, variant, place, name string) *Entity {
	t.Helper()
	e, err := w.Spawn(typeID, variant, place, name, nil)
	if err != nil {
		t.Fatalf("spawn %s/%s: %v", typeID, variant, err)
	}
	return e
}

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

package systems

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/types"
)

func dragonType(t *testing.T) *engine.EntityType {
	t.Helper()
	et, err := engine.NewEntityType(engine.TypeDef{
		ID:       "dragon",
		Name:     "Dragon",
		Attr:     map[string]any{"living": true},
		Defaults: map[string]any{"health": 50},
		Variants: []engine.VariantDef{
			{
				ID:       "adult",
				Name:     "adult dragon",
				Flags:    []string{"isPlayer"},
				Defaults: map[string]any{"health": 100, "inventory": map[string]any{}},
			},
			{ID: "whelp", Name: "whelp"},
		},
		Systems: []engine.System{Drops, Obituary},
	})
	if err != nil {
		t.Fatal(err)
	}
	return et
}

type fixture struct {
	world   *engine.World
	hook    *test.Hook
	out     *broadcast.Buffer
	journal *Journal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := engine.NewRegistry()
	if err := reg.Register(dragonType(t)); err != nil {
		t.Fatal(err)
	}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	j := &Journal{}
	w := engine.New(engine.Defs{
		Types: reg,
		Places: []types.Place{
			{Name: "Cave", Items: map[string]int{"rock": 1}},
			{Name: "Field"},
		},
		Paths: []types.Path{{"Cave", "Field"}},
		Items: []types.ItemType{
			{Name: "rock"},
			{Name: "scale"},
			{Name: "gold", Flags: []string{types.FlagAlwaysDrop}},
			{Name: "soul", Flags: []string{types.FlagNeverDrop}},
		},
		GlobalSystems: []engine.System{j.System()},
	}, engine.WithSeed(9), engine.WithLogger(log),
		engine.WithHub(broadcast.New(broadcast.WithLogger(log), broadcast.WithPace(0))))

	out := &broadcast.Buffer{}
	w.AddBroadcastChannel(types.LevelInfo, out, "watcher")
	return &fixture{world: w, hook: hook, out: out, journal: j}
}

func (f *fixture) spawn(t *testing.T, variant, place, name string) *engine.Entity {
	t.Helper()
	e, err := f.world.Spawn("dragon", variant, place, name, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func (f *fixture) lines() []string {
	f.world.Hub.Flush(context.Background())
	return f.out.Drain()
}

func TestDrops_AdultDragonDiesInCave(t *testing.T) {
	f := newFixture(t)
	smaug := f.spawn(t, "adult", "Cave", "Smaug")

	if got := smaug.Int("health"); got != 100 {
		t.Fatalf("expected adult health 100, got %d", got)
	}
	if !smaug.Bool("isPlayer") {
		t.Fatal("expected adult to carry isPlayer")
	}

	smaug.Set("inventory", map[string]any{"rock": 2, "scale": 3})
	smaug.Set("health", 0)
	if err := smaug.Event("death"); err != nil {
		t.Fatal(err)
	}

	cave := f.world.FindPlace("Cave")
	if cave.Items["rock"] != 3 || cave.Items["scale"] != 3 {
		t.Errorf("expected inventory on the Cave floor, got %v", cave.Items)
	}
	if inv := smaug.Counts("inventory"); len(inv) != 0 {
		t.Errorf("expected inventory emptied, got %v", inv)
	}
}

func TestDrops_PlayerKillerInherits(t *testing.T) {
	f := newFixture(t)
	victim := f.spawn(t, "adult", "Cave", "Smaug")
	hero := f.spawn(t, "adult", "Cave", "Bilbo")
	hero.Set(engine.AttrControlled, true)
	hero.Set("inventory", map[string]any{"rock": 1})

	victim.Set("inventory", map[string]any{"scale": 2, "gold": 5, "soul": 1})
	if err := victim.Event("death", hero); err != nil {
		t.Fatal(err)
	}

	inv := hero.Counts("inventory")
	if inv["scale"] != 2 || inv["rock"] != 1 {
		t.Errorf("expected scales added to the killer's inventory, got %v", inv)
	}
	if inv["gold"] != 0 || inv["soul"] != 0 {
		t.Errorf("expected gold and soul withheld from the killer, got %v", inv)
	}
	cave := f.world.FindPlace("Cave")
	if cave.Items["gold"] != 5 {
		t.Errorf("expected alwaysDrop gold on the ground, got %v", cave.Items)
	}
	if cave.Items["soul"] != 0 {
		t.Errorf("expected neverDrop soul to vanish, got %v", cave.Items)
	}
}

func TestDrops_UncontrolledKillerLeavesLootOnGround(t *testing.T) {
	f := newFixture(t)
	victim := f.spawn(t, "adult", "Field", "Smaug")
	beast := f.spawn(t, "whelp", "Field", "Puff")

	victim.SetPointer(engine.AttrInstigator, beast)
	victim.Set("inventory", map[string]any{"scale": 1})
	victim.Set("drops", map[string]any{"rock": []any{2, 2}, "scale": 1})
	if err := victim.Event("death"); err != nil {
		t.Fatal(err)
	}

	field := f.world.FindPlace("Field")
	if field.Items["scale"] != 2 || field.Items["rock"] != 2 {
		t.Errorf("expected rolled drops plus inventory on the ground, got %v", field.Items)
	}
	if inv := beast.Counts("inventory"); len(inv) != 0 {
		t.Errorf("expected the npc killer to get nothing, got %v", inv)
	}
}

func TestDrops_UnknownItemLogged(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "adult", "Cave", "Smaug")
	e.Set("inventory", map[string]any{"mithril": 1, "scale": 1})

	if err := e.Event("death"); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, entry := range f.hook.AllEntries() {
		if entry.Message == "dropped item not in catalog" && entry.Level == logrus.WarnLevel {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning for the unknown item")
	}
	if got := f.world.FindPlace("Cave").Items["scale"]; got != 1 {
		t.Errorf("expected the known item still dropped, got %d", got)
	}
}

func TestDrops_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "adult", "Cave", "Smaug")
	e.Set("inventory", map[string]any{"scale": 1})

	if err := e.Event("move", "Cave", "Field"); err != nil {
		t.Fatal(err)
	}
	if got := e.Counts("inventory")["scale"]; got != 1 {
		t.Errorf("expected inventory untouched, got %d", got)
	}
}

func TestPinata_SpillsInventory(t *testing.T) {
	f := newFixture(t)
	smaug := f.spawn(t, "adult", "Field", "Smaug")
	bilbo := f.spawn(t, "adult", "Field", "Bilbo")
	smaug.Set("inventory", map[string]any{"scale": 2, "gold": 5, "mithril": 1})

	if err := Pinata("death", smaug, bilbo); err != nil {
		t.Fatal(err)
	}
	field := f.world.FindPlace("Field")
	if field.Items["scale"] != 2 {
		t.Errorf("expected scales on the ground even with a player killer, got %v", field.Items)
	}
	if field.Items["gold"] != 0 {
		t.Errorf("expected alwaysDrop items left alone, got %v", field.Items)
	}
	if inv := bilbo.Counts("inventory"); len(inv) != 0 {
		t.Errorf("expected the killer to get nothing, got %v", inv)
	}
	if f.hook.LastEntry() == nil || f.hook.LastEntry().Message != "dropped item not in catalog" {
		t.Error("expected the unknown item to be logged")
	}
}

func TestObituary(t *testing.T) {
	f := newFixture(t)
	smaug := f.spawn(t, "adult", "Cave", "Smaug")
	bilbo := f.spawn(t, "adult", "Cave", "Bilbo")
	puff := f.spawn(t, "whelp", "Field", "Puff")
	f.lines()

	if err := smaug.Event("death", bilbo); err != nil {
		t.Fatal(err)
	}
	if err := puff.Event("death"); err != nil {
		t.Fatal(err)
	}

	got := f.lines()
	expected := []string{
		"Smaug the adult dragon from Cave was slain by Bilbo!",
		"Puff the whelp from Field died!",
	}
	if len(got) != len(expected) {
		t.Fatalf("expected %d lines, got %v", len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}

func TestJournal_RecordsGlobalEvents(t *testing.T) {
	f := newFixture(t)
	e := f.spawn(t, "whelp", "Cave", "Puff")

	if err := e.Event("move", "Cave", "Field"); err != nil {
		t.Fatal(err)
	}
	if err := e.Event("death"); err != nil {
		t.Fatal(err)
	}

	if got := f.journal.Count("move"); got != 1 {
		t.Errorf("expected 1 move, got %d", got)
	}
	entries := f.journal.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	last := entries[1]
	if last.Event != "death" || last.Name != "Puff" || last.Entity != e.ID() {
		t.Errorf("unexpected entry %+v", last)
	}
	if len(entries[0].Args) != 2 || entries[0].Args[1] != "Field" {
		t.Errorf("expected move args recorded, got %v", entries[0].Args)
	}
}

func TestLibrary_Names(t *testing.T) {
	lib := Library()
	for _, name := range []string{"drops", "obituary", "pinata"} {
		if lib[name] == nil {
			t.Errorf("expected %q in library", name)
		}
	}
}

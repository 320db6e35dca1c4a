package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestEntity_GetPrecedence(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "")

	// Variant default applied at instantiation.
	if got := e.Get("health"); got != 100 {
		t.Errorf("health: expected 100, got %v", got)
	}
	// Per-entity override wins.
	e.Set("health", 42)
	if got := e.Get("health"); got != 42 {
		t.Errorf("health after set: expected 42, got %v", got)
	}
	// Resolved variant attribute.
	if got := e.Get("size"); got != "huge" {
		t.Errorf("size: expected huge, got %v", got)
	}
	// Flag-only key.
	if got := e.Get("isPlayer"); got != true {
		t.Errorf("isPlayer: expected true, got %v", got)
	}
	// Absent.
	if got := e.Get("wings"); got != nil {
		t.Errorf("wings: expected nil, got %v", got)
	}
}

func TestEntity_VariantValueIsCopy(t *testing.T) {
	def := dragonDef()
	def.Attr["hoard"] = map[string]any{"gold": 1}
	w, _ := newTestWorld(t, def)
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "")

	e.Map("hoard")["gold"] = 99
	if got := e.Type().Variant("adult").Attr["hoard"].(map[string]any)["gold"]; got != 1 {
		t.Errorf("expected variant attribute untouched, got %v", got)
	}
}

func TestEntity_ViewsShareWrites(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	a := mustSpawn(t, w, "dragon", "adult", "Cave", "")
	b := w.FromID(a.ID())

	a.Set("health", 7)
	if got := b.Int("health"); got != 7 {
		t.Errorf("expected second view to see 7, got %d", got)
	}
	b.SetPlace("Field")
	if a.Place() != "Field" {
		t.Errorf("expected first view to see Field, got %q", a.Place())
	}
}

func TestEntity_SetNormalizesNumbers(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "")

	e.Set("speed", 3.0)
	if _, ok := e.Get("speed").(int); !ok {
		t.Errorf("expected integral float to be stored as int, got %T", e.Get("speed"))
	}
	e.Set("agility", 0.25)
	if got := e.Float("agility"); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
}

func TestEntity_DespawnedViewNoOps(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "")
	other := w.FromID(e.ID())

	w.pending = map[string]struct{}{} // simulate a running tick
	e.Despawn()

	if _, ok := w.entities[e.ID()]; !ok {
		t.Fatal("expected backing record to remain until tick end")
	}
	if got := e.Get("health"); got != nil {
		t.Errorf("expected nil read after despawn, got %v", got)
	}
	e.Set("health", 1)
	if got := w.entities[e.ID()].Attr["health"]; got != 100 {
		t.Errorf("expected set to be ignored, stored health is %v", got)
	}
	if !other.Despawned() {
		t.Error("expected other views to observe despawned")
	}
	if res, err := e.Call("anything"); res != nil || err != nil {
		t.Errorf("expected call on despawned view to no-op, got (%v, %v)", res, err)
	}
	if w.FromID(e.ID()) != nil {
		t.Error("expected pending entity to be unreachable by id")
	}

	w.resolveRemovals()
	w.pending = nil
	if _, ok := w.entities[e.ID()]; ok {
		t.Error("expected record removed after resolution")
	}
}

func TestEntity_PointerListSkipsStale(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	owner := mustSpawn(t, w, "dragon", "adult", "Cave", "owner")
	alive := mustSpawn(t, w, "dragon", "whelp", "Cave", "alive")
	dead := mustSpawn(t, w, "dragon", "whelp", "Cave", "dead")

	owner.AppendPointer("friends", alive)
	owner.AppendPointer("friends", dead)
	owner.AppendPointer("friends", alive)
	dead.Despawn()

	var got []string
	for f := range owner.PointerList("friends") {
		got = append(got, f.Name())
	}
	if len(got) != 1 || got[0] != "alive" {
		t.Errorf("expected [alive], got %v", got)
	}
	if ids := AsIDs(owner.Get("friends")); len(ids) != 2 {
		t.Errorf("expected stored list of 2 ids, got %v", ids)
	}
}

func TestEntity_PointerStale(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	a := mustSpawn(t, w, "dragon", "adult", "Cave", "")
	b := mustSpawn(t, w, "dragon", "whelp", "Cave", "")

	a.SetPointer("target", b)
	if got := a.Pointer("target"); got == nil || got.ID() != b.ID() {
		t.Fatalf("expected pointer to b, got %v", got)
	}
	b.Despawn()
	if got := a.Pointer("target"); got != nil {
		t.Errorf("expected stale pointer to resolve to nil, got %v", got)
	}
	if a.Pointer("nothing") != nil {
		t.Error("expected absent pointer to resolve to nil")
	}
}

func TestEntity_SpawnDefaultsToOwnTypeAndPlace(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	parent := mustSpawn(t, w, "dragon", "adult", "Peak", "")

	child, err := parent.Spawn(SpawnOptions{Variant: "whelp", Attr: map[string]any{"parent": parent.ID()}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !child.Of("dragon") || child.Place() != "Peak" {
		t.Errorf("expected dragon at Peak, got %s at %s", child.TypeID(), child.Place())
	}
	if child.Pointer("parent").ID() != parent.ID() {
		t.Error("expected parent pointer")
	}

	if _, err := parent.Spawn(SpawnOptions{Type: "wyvern"}); !errors.Is(err, ErrUnknownEntityType) {
		t.Errorf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestEntity_CallDispatch(t *testing.T) {
	def := dragonDef()
	def.Functions = map[string]Behavior{
		"roar": func(e *Entity, args ...any) (any, error) {
			return e.Name() + " roars at " + args[0].(string), nil
		},
		"explode": func(e *Entity, args ...any) (any, error) {
			panic("boom")
		},
	}
	w, _ := newTestWorld(t, def)
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "Smaug")

	res, err := e.Call("roar", "Bilbo")
	if err != nil || res != "Smaug roars at Bilbo" {
		t.Errorf("roar: got (%v, %v)", res, err)
	}

	if _, err := e.Call("fly"); !errors.Is(err, ErrUnknownVerb) {
		t.Errorf("expected ErrUnknownVerb, got %v", err)
	}

	_, err = e.Call("explode")
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("expected ScriptError from panic, got %v", err)
	}
	if se.Verb != "explode" || se.Entity != e.ID() || se.Type != "dragon" {
		t.Errorf("unexpected error context: %+v", se)
	}
}

func TestEntity_EventOrderAndIsolation(t *testing.T) {
	var order []string
	record := func(tag string) System {
		return func(event string, e *Entity, args ...any) error {
			order = append(order, tag+":"+event)
			return nil
		}
	}

	def := dragonDef()
	def.Systems = []System{
		record("type"),
		func(string, *Entity, ...any) error { return errors.New("type failed") },
	}
	def.Variants[0].Systems = []System{
		func(string, *Entity, ...any) error { panic("variant exploded") },
		record("variant"),
	}
	w, _ := newTestWorld(t, def)
	w.GlobalSystems = []System{record("global")}
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "")

	err := e.Event("death")
	want := []string{"type:death", "variant:death", "global:death"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, order)
	}
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !strings.Contains(err.Error(), "type failed") || !strings.Contains(err.Error(), "variant exploded") {
		t.Errorf("expected both failures in %q", err.Error())
	}
}

func TestEntity_Label(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "Smaug")

	if got := e.Label(); got != "Smaug the adult dragon from Cave" {
		t.Errorf("unexpected label %q", got)
	}
	e.Set("fancy_name", "Smaug the Golden")
	if got := e.String(); got != "Smaug the Golden the adult dragon from Cave" {
		t.Errorf("unexpected fancy label %q", got)
	}
}

func TestEntity_SetVariant(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "")

	if err := e.SetVariant("whelp"); err != nil {
		t.Fatalf("SetVariant: %v", err)
	}
	if got := e.Get("health"); got != 50 {
		t.Errorf("expected adult default dropped in favour of base 50, got %v", got)
	}
	if e.Bool("isPlayer") {
		t.Error("expected isPlayer flag gone")
	}
	if err := e.SetVariant("elder"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestEntity_SetNameReindexes(t *testing.T) {
	w, _ := newTestWorld(t, dragonDef())
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "Old")

	e.SetName("New")
	if w.FromName("Old") != nil {
		t.Error("expected old name to be unindexed")
	}
	if got := w.FromName("New"); got == nil || got.ID() != e.ID() {
		t.Error("expected new name to resolve")
	}
}

func TestEntity_Delete(t *testing.T) {
	w, hook := newTestWorld(t, dragonDef())
	e := mustSpawn(t, w, "dragon", "adult", "Cave", "")

	if old := e.Delete("health"); old != 100 {
		t.Errorf("expected deleted value 100, got %v", old)
	}
	if got := e.Get("health"); got != 50 {
		t.Errorf("expected fallback to variant 50, got %v", got)
	}
	if e.Delete("health") != nil {
		t.Error("expected nil deleting absent key")
	}
	if hook.LastEntry() == nil || hook.LastEntry().Message != "deleting absent attribute" {
		t.Error("expected warning for absent key")
	}
}

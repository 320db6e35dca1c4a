package player

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/engine/behaviors"
	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/types"
)

// seen records the arguments the special verb received.
var seen []any

func testWorld(t *testing.T) *engine.World {
	t.Helper()
	seen = nil
	et, err := engine.NewEntityType(engine.TypeDef{
		ID:       "raptor",
		Name:     "Velociraptor",
		Attr:     map[string]any{"living": true, "agility": 1, "speed": 1, "strength": 10},
		Defaults: map[string]any{"health": 30, "inventory": map[string]any{"stick": 2}},
		Variants: []engine.VariantDef{{ID: "striped", Name: "striped raptor", Flags: []string{"isPlayer"}}},
		Functions: map[string]engine.Behavior{
			"init":           behaviors.Init,
			VerbMove:         behaviors.Move,
			VerbAttack:       behaviors.Attack,
			VerbCraft:        behaviors.Craft,
			VerbPickUp:       behaviors.PickUp,
			VerbInfect:       behaviors.Infect,
			VerbWield:        behaviors.Wield,
			"take_damage":    behaviors.TakeDamage,
			VerbSpecial: func(e *engine.Entity, args ...any) (any, error) {
				seen = append([]any(nil), args...)
				return "SPECIAL", nil
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	reg := engine.NewRegistry()
	if err := reg.Register(et); err != nil {
		t.Fatal(err)
	}
	log, _ := test.NewNullLogger()
	return engine.New(engine.Defs{
		Types:  reg,
		Places: []types.Place{{Name: "Plain", Items: map[string]int{"stone": 2}}, {Name: "Ridge"}},
		Paths:  []types.Path{{"Plain", "Ridge"}},
		Items: []types.ItemType{
			{Name: "stone"},
			{Name: "stick"},
			{Name: "club", Flags: []string{types.FlagWeapon}, Attr: map[string]any{"recipe": map[string]any{"stick": 2}}},
		},
	}, engine.WithSeed(2), engine.WithLogger(log),
		engine.WithHub(broadcast.New(broadcast.WithLogger(log), broadcast.WithPace(0))))
}

func TestJoin(t *testing.T) {
	w := testWorld(t)
	p, err := Join(w, "Rex", "Plain", "raptor", "striped")
	if err != nil {
		t.Fatal(err)
	}
	e := p.Entity()
	if e == nil {
		t.Fatal("expected a live entity")
	}
	if e.Name() != "Rex" || e.Place() != "Plain" || !e.Bool(engine.AttrControlled) {
		t.Errorf("unexpected entity %s controlled=%v", e.Label(), e.Get(engine.AttrControlled))
	}
	if p.ControllerName() != "Rex" || p.ID() != e.ID() {
		t.Errorf("interface = %q/%q", p.ControllerName(), p.ID())
	}

	if _, err := Join(w, "Ghost", "Plain", "wraith", ""); !errors.Is(err, engine.ErrUnknownEntityType) {
		t.Errorf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestVerbs_PassController(t *testing.T) {
	w := testWorld(t)
	p, err := Join(w, "Rex", "Plain", "raptor", "")
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Special("Ridge")
	if err != nil || res != "SPECIAL" {
		t.Fatalf("special = (%v, %v)", res, err)
	}
	if len(seen) != 2 || seen[0] != p || seen[1] != "Ridge" {
		t.Errorf("expected (interface, Ridge), got %v", seen)
	}
}

func TestVerbs(t *testing.T) {
	w := testWorld(t)
	rex, err := Join(w, "Rex", "Plain", "raptor", "")
	if err != nil {
		t.Fatal(err)
	}
	blue, err := Join(w, "Blue", "Plain", "raptor", "")
	if err != nil {
		t.Fatal(err)
	}

	if res, err := rex.PickUp(1, "stone"); err != nil || res != 1 {
		t.Errorf("pickup = (%v, %v)", res, err)
	}
	if res, err := rex.Craft("club", 1); err != nil || res != behaviors.Crafted {
		t.Errorf("craft = (%v, %v)", res, err)
	}
	if res, err := rex.Wield("club"); err != nil || res != behaviors.Wielded {
		t.Errorf("wield = (%v, %v)", res, err)
	}
	if res, err := rex.Wield(""); err != nil || res != behaviors.Unwield {
		t.Errorf("unwield = (%v, %v)", res, err)
	}
	if res, err := rex.AttackName("Blue"); err != nil || (res != behaviors.Hit && res != behaviors.Kill) {
		t.Errorf("attack = (%v, %v)", res, err)
	}
	if res, err := rex.AttackName("Nobody"); err != nil || res != behaviors.NoTarget {
		t.Errorf("attack nobody = (%v, %v)", res, err)
	}
	if res, err := rex.Infect(blue.Entity()); err != nil || res == nil {
		t.Errorf("infect = (%v, %v)", res, err)
	}
	if res, err := rex.Move("Ridge"); err != nil || res != behaviors.Success {
		t.Errorf("move = (%v, %v)", res, err)
	}
	if rex.Entity().Place() != "Ridge" {
		t.Errorf("expected Rex at Ridge, got %s", rex.Entity().Place())
	}
}

func TestVerbs_MissingTargetIsNil(t *testing.T) {
	var got []any
	record := func(e *engine.Entity, args ...any) (any, error) {
		got = append(got, args[len(args)-1])
		return nil, nil
	}
	et, err := engine.NewEntityType(engine.TypeDef{
		ID:        "gecko",
		Variants:  []engine.VariantDef{{ID: "green", Flags: []string{"isPlayer"}}},
		Functions: map[string]engine.Behavior{VerbAttack: record, VerbInfect: record},
	})
	if err != nil {
		t.Fatal(err)
	}
	reg := engine.NewRegistry()
	if err := reg.Register(et); err != nil {
		t.Fatal(err)
	}
	log, _ := test.NewNullLogger()
	w := engine.New(engine.Defs{Types: reg, Places: []types.Place{{Name: "Rock"}}},
		engine.WithLogger(log), engine.WithHub(broadcast.New(broadcast.WithLogger(log), broadcast.WithPace(0))))

	p, err := Join(w, "Rex", "Rock", "gecko", "green")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.AttackName("Nobody"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Infect(nil); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != nil || got[1] != nil {
		t.Errorf("targets = %#v, want two untyped nils", got)
	}
}

func TestEntity_ReResolves(t *testing.T) {
	w := testWorld(t)
	p, err := Join(w, "Rex", "Plain", "raptor", "")
	if err != nil {
		t.Fatal(err)
	}
	first := p.Entity()
	first.Set("mark", 1)
	if got := p.Entity().Int("mark"); got != 1 {
		t.Errorf("expected a fresh view to see writes, got %d", got)
	}

	if _, err := first.Call("take_damage", 1000); err != nil {
		t.Fatal(err)
	}
	if p.Entity() != nil || p.Alive() {
		t.Error("expected the interface to see its entity gone")
	}
	if _, err := p.Move("Ridge"); !errors.Is(err, ErrGone) {
		t.Errorf("expected ErrGone, got %v", err)
	}
}

func TestAttach(t *testing.T) {
	w := testWorld(t)
	e, err := w.Spawn("raptor", "", "Ridge", "Echo", nil)
	if err != nil {
		t.Fatal(err)
	}
	p := Attach(w, "Echo", e)
	if !p.Alive() || !p.Entity().Bool(engine.AttrControlled) {
		t.Error("expected an attached, controlled entity")
	}
}

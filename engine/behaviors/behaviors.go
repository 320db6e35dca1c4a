// Package behaviors is the native verb library. Content binds verbs to
// these functions by name, for example functions = { tick = "creature.tick" }.
package behaviors

import (
	"github.com/sentientmushes/smadventure/engine"
)

// Library returns every native behaviour keyed by its content name.
func Library() map[string]engine.Behavior {
	return map[string]engine.Behavior{
		"creature.init":        Init,
		"creature.tick":        Tick,
		"creature.move":        Move,
		"creature.pathmove":    PathMove,
		"creature.attack":      Attack,
		"creature.take_damage": TakeDamage,
		"creature.pick_up":     PickUp,
		"creature.craft":       Craft,
		"creature.wield":       Wield,
		"creature.infect":      Infect,
		"creature.special":     Special,
		"special.dash":         Dash,
		"special.firebreath":   Firebreath,
	}
}

// Result codes returned by the verbs.
const (
	Success  = "SUCCESS"
	Slow     = "SLOW"
	Dead     = "DEAD"
	Already  = "ALREADY"
	NoPath   = "NOPATH"
	NoTarget = "NOTARGET"
	Far      = "FAR"
	NotAlive = "NOTLIVING"
	Self     = "SELF"
	Miss     = "MISS"
	Hit      = "HIT"
	Kill     = "KILL"
	Resisted = "RESISTED"
	Infected = "INFECTED"
	Crafted  = "CRAFTED"
	Missing  = "MISSING"
	NoRecipe = "NORECIPE"
	NoPrereq = "NOPREREQ"
	Wielded  = "WIELDED"
	Unwield  = "UNWIELDED"
	Nothing  = "NOTHING"
	NoWeapon = "NOTWEAPON"
	None     = "NONE"
)

// Defaults for attributes content may leave out.
const (
	DefaultPickupLimit = 20
	DefaultDurability  = 10
	DefaultInfectPower = 50.0
	DefaultStrength    = 5.0
)

// resolve turns an entity, an id or a name into a live entity.
func resolve(w *engine.World, v any) *engine.Entity {
	switch t := v.(type) {
	case *engine.Entity:
		if t == nil || t.Despawned() {
			return nil
		}
		return t
	case string:
		if e := w.FromID(t); e != nil {
			return e
		}
		return w.FromName(t)
	}
	return nil
}

func argString(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func argInt(args []any, i int, def int) int {
	if i >= len(args) {
		return def
	}
	if n, ok := engine.AsInt(engine.Normalize(args[i])); ok {
		return n
	}
	return def
}

func argFloat(args []any, i int, def float64) float64 {
	if i >= len(args) {
		return def
	}
	if f, ok := engine.AsFloat(args[i]); ok {
		return f
	}
	return def
}

// floatOr reads a numeric attribute, falling back when absent.
func floatOr(e *engine.Entity, key string, def float64) float64 {
	if f, ok := engine.AsFloat(e.Get(key)); ok {
		return f
	}
	return def
}

func intOr(e *engine.Entity, key string, def int) int {
	if n, ok := engine.AsInt(e.Get(key)); ok {
		return n
	}
	return def
}

func isDead(e *engine.Entity) bool {
	return e == nil || e.Despawned() || e.Bool(engine.AttrDead)
}

// living reports whether e is a creature that can be hurt or infected.
func living(e *engine.Entity) bool {
	if e.Get("living") == nil {
		return e.Get(engine.AttrHealth) != nil
	}
	return e.Bool("living")
}

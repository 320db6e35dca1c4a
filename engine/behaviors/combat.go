package behaviors

import (
	"fmt"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

// hurt applies damage through the target's own take_damage verb when it
// has one, else through TakeDamage. It reports whether the target died.
func hurt(target *engine.Entity, amount float64, by *engine.Entity) (bool, error) {
	var (
		res any
		err error
	)
	if t := target.Type(); t != nil && t.Has("take_damage") {
		res, err = target.Call("take_damage", amount, by)
	} else {
		res, err = TakeDamage(target, amount, by)
	}
	killed, _ := res.(bool)
	return killed, err
}

// checkTarget runs the checks shared by the verbs aimed at another
// creature. It returns "" when target is fair game.
func checkTarget(e, target *engine.Entity) string {
	switch {
	case isDead(e):
		return Dead
	case target == nil:
		return NoTarget
	case target.ID() == e.ID():
		return Self
	case target.Place() != e.Place():
		return Far
	case !living(target) || isDead(target):
		return NotAlive
	}
	return ""
}

// Attack hits another creature in the same place. Damage scales with the
// attacker's strength and wielded weapon; the target's dodge chance can
// turn it into a miss. Results: DEAD, NOTARGET, SELF, FAR, NOTLIVING,
// MISS, HIT, KILL.
func Attack(e *engine.Entity, args ...any) (any, error) {
	_, args = engine.SplitController(args)
	w := e.World()

	var target *engine.Entity
	if len(args) > 0 {
		target = resolve(w, args[0])
	}
	if code := checkTarget(e, target); code != "" {
		return code, nil
	}
	place := []string{e.Place()}

	if w.RNG.Chance(floatOr(target, "dodge", 0)) {
		w.BroadcastIn(types.LevelInteresting, place, e.DisplayName(), " missed ", target.DisplayName(), "!")
		return Miss, nil
	}

	damage := floatOr(e, "strength", DefaultStrength) * (0.5 + w.RNG.Float64())
	if weapon := e.Str("weapon"); weapon != "" {
		if item := w.FindItem(weapon); item != nil {
			if bonus, ok := engine.AsFloat(item.Attr["damage"]); ok {
				damage += bonus
			}
		}
		if uses := e.Int("weaponUses") - 1; uses > 0 {
			e.Set("weaponUses", uses)
		} else {
			e.Set("weapon", nil)
			e.Set("weaponUses", 0)
			w.BroadcastIn(types.LevelInteresting, place, e.DisplayName(), "'s ", weapon, " broke!")
		}
	}

	w.BroadcastIn(types.LevelInteresting, place,
		e.DisplayName(), " attacked ", target.DisplayName(), " for ", fmt.Sprintf("%.2f", damage), " damage!")

	killed, err := hurt(target, damage, e)
	if err != nil {
		return nil, err
	}
	if killed {
		return Kill, nil
	}
	return Hit, nil
}

// TakeDamage lowers health. The instigator, if any, is remembered. At zero
// health the creature is marked dead, its death event fires with the
// instigator, and it despawns. It reports whether this call killed it.
func TakeDamage(e *engine.Entity, args ...any) (any, error) {
	if isDead(e) {
		return false, nil
	}
	amount := argFloat(args, 0, 0)
	var by *engine.Entity
	if len(args) > 1 {
		by = resolve(e.World(), args[1])
	}
	if by != nil {
		e.SetPointer(engine.AttrInstigator, by)
	}

	health := floatOr(e, engine.AttrHealth, 0) - amount
	if health > 0 {
		e.Set(engine.AttrHealth, health)
		return false, nil
	}

	e.Set(engine.AttrHealth, 0)
	e.Set(engine.AttrDead, true)

	var err error
	if by != nil {
		err = e.Event("death", by)
	} else {
		err = e.Event("death")
	}
	if err != nil {
		e.World().Log().WithField("entity", e.ID()).WithError(err).Warn("death event failed")
	}
	e.Despawn()
	return true, nil
}

// Infect turns a weakened creature into a mush. The target resists while
// its immunity, scaled by its remaining health, exceeds the infector's
// infectPower. Infector and infectee become friends. Results: DEAD,
// NOTARGET, SELF, FAR, NOTLIVING, ALREADY, RESISTED, INFECTED.
func Infect(e *engine.Entity, args ...any) (any, error) {
	_, args = engine.SplitController(args)
	w := e.World()

	var target *engine.Entity
	if len(args) > 0 {
		target = resolve(w, args[0])
	}
	if code := checkTarget(e, target); code != "" {
		return code, nil
	}
	if target.Bool("mush") {
		return Already, nil
	}
	place := []string{e.Place()}

	ratio := 1.0
	if spawn := floatOr(target, "spawnHealth", 0); spawn > 0 {
		ratio = floatOr(target, engine.AttrHealth, 0) / spawn
	}
	if floatOr(target, "immune", 0)*ratio > floatOr(e, "infectPower", DefaultInfectPower) {
		w.BroadcastIn(types.LevelInteresting, place, target.DisplayName(), " resisted ", e.DisplayName(), "'s infection!")
		return Resisted, nil
	}

	target.Set("mush", true)
	target.AppendPointer("friends", e)
	e.AppendPointer("friends", target)
	w.BroadcastIn(types.LevelImportant, place, e.DisplayName(), " infected ", target.DisplayName(), "! It is now a mush.")

	if dmg := floatOr(e, "infectDamage", 0); dmg > 0 {
		if _, err := hurt(target, dmg, e); err != nil {
			return nil, err
		}
	}
	return Infected, nil
}

// Special is the placeholder for creatures without a special move.
func Special(e *engine.Entity, args ...any) (any, error) {
	return None, nil
}

// Dash moves up to dashSteps places toward a destination ignoring agility,
// at the cost of dashCost health.
func Dash(e *engine.Entity, args ...any) (any, error) {
	_, args = engine.SplitController(args)
	if isDead(e) {
		return Dead, nil
	}
	res := step(e, argString(args, 0), intOr(e, "dashSteps", 2))
	if res != Success {
		return res, nil
	}
	if _, err := hurt(e, floatOr(e, "dashCost", 5), nil); err != nil {
		return nil, err
	}
	return Success, nil
}

// Firebreath burns every other living creature in the place for
// fireDamage. It returns HIT if anything was burnt, else NOTARGET.
func Firebreath(e *engine.Entity, args ...any) (any, error) {
	if isDead(e) {
		return Dead, nil
	}
	w := e.World()
	dmg := floatOr(e, "fireDamage", 10)
	w.BroadcastIn(types.LevelImportant, []string{e.Place()}, e.DisplayName(), " breathes fire!")

	res := NoTarget
	for _, other := range w.AllInPlace(e.Place()) {
		if other.ID() == e.ID() || !living(other) || isDead(other) {
			continue
		}
		if _, err := hurt(other, dmg, e); err != nil {
			return nil, err
		}
		res = Hit
	}
	return res, nil
}

package behaviors

import (
	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

// Init records the spawn health and immunity so later rules can compare
// against them.
func Init(e *engine.Entity, args ...any) (any, error) {
	if e.Get("spawnHealth") == nil && e.Get(engine.AttrHealth) != nil {
		e.Set("spawnHealth", e.Get(engine.AttrHealth))
	}
	if e.Get("spawnImmune") == nil && e.Get("immune") != nil {
		e.Set("spawnImmune", e.Get("immune"))
	}
	return nil, nil
}

// Tick is the autonomous step of a creature: the pick-up counter resets,
// health regenerates, and creatures nobody controls may wander.
func Tick(e *engine.Entity, args ...any) (any, error) {
	if isDead(e) {
		return nil, nil
	}
	e.Set("pickups", 0)

	if regen := floatOr(e, "regen", 0); regen > 0 {
		top := floatOr(e, "spawnHealth", floatOr(e, engine.AttrHealth, 0))
		health := floatOr(e, engine.AttrHealth, 0) + regen
		if health > top {
			health = top
		}
		e.Set(engine.AttrHealth, health)
	}

	if e.Bool(engine.AttrControlled) {
		return nil, nil
	}

	w := e.World()
	if chance := floatOr(e, "wanderChance", 0); w.RNG.Chance(chance) {
		adj := w.Adjacent(e.Place())
		if len(adj) > 0 {
			return PathMove(e, adj[w.RNG.Intn(len(adj))])
		}
	}
	return nil, nil
}

// PathMove moves a creature one step toward a place without any agility
// check. It returns the same codes as Move.
func PathMove(e *engine.Entity, args ...any) (any, error) {
	dest := argString(args, 0)
	if isDead(e) {
		return Dead, nil
	}
	return step(e, dest, 1), nil
}

// Move is the player move verb: up to speed steps along the shortest route
// toward a place. An agility roll decides whether the creature manages to
// move at all this turn.
//
// Results: SUCCESS (moved), SLOW (failed the roll), DEAD, ALREADY (already
// there), NOPATH (unknown or unreachable place). Only SUCCESS changes the
// entity's place.
func Move(e *engine.Entity, args ...any) (any, error) {
	_, args = engine.SplitController(args)
	dest := argString(args, 0)

	if isDead(e) {
		return Dead, nil
	}
	w := e.World()
	if w.FindPlace(dest) == nil {
		return NoPath, nil
	}
	if dest == e.Place() {
		return Already, nil
	}
	if w.Route(e.Place(), dest) == nil {
		return NoPath, nil
	}
	if !w.RNG.Chance(floatOr(e, "agility", 1)) {
		return Slow, nil
	}
	return step(e, dest, intOr(e, "speed", 1)), nil
}

func step(e *engine.Entity, dest string, steps int) string {
	w := e.World()
	from := e.Place()
	if w.FindPlace(dest) == nil {
		return NoPath
	}
	if dest == from {
		return Already
	}
	route := w.Route(from, dest)
	if route == nil {
		return NoPath
	}
	if steps < 1 {
		steps = 1
	}
	if steps > len(route) {
		steps = len(route)
	}
	to := route[steps-1]
	e.SetPlace(to)

	w.Log().WithFields(logrus.Fields{"entity": e.ID(), "from": from, "to": to}).Debug("moved")
	if err := e.Event("move", from, to); err != nil {
		w.Log().WithField("entity", e.ID()).WithError(err).Warn("move event failed")
	}
	if !e.Bool(engine.AttrControlled) {
		w.BroadcastIn(types.LevelInfo, []string{from, to}, e.DisplayName(), " wandered from ", from, " to ", to, ".")
	}
	return Success
}

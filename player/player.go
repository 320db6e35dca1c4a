// Package player wraps a human-controlled entity. Every verb re-resolves
// the entity by id and passes straight through to the entity's behaviour
// with the interface as the first argument.
package player

import (
	"errors"
	"fmt"

	"github.com/sentientmushes/smadventure/engine"
)

// ErrGone is returned by verbs once the controlled entity no longer exists.
var ErrGone = errors.New("player entity is gone")

// Verb names called on the controlled entity.
const (
	VerbMove    = "player_move"
	VerbAttack  = "player_attack"
	VerbCraft   = "craft"
	VerbPickUp  = "pick_up"
	VerbInfect  = "infect"
	VerbWield   = "wield"
	VerbSpecial = "player_special"
)

// Interface is the association between a player name and an entity id.
type Interface struct {
	name  string
	id    string
	world *engine.World
}

// Join spawns a controlled entity named name and wraps it.
func Join(w *engine.World, name, place, typeID, variant string) (*Interface, error) {
	e, err := w.Spawn(typeID, variant, place, name, map[string]any{engine.AttrControlled: true})
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", name, err)
	}
	return &Interface{name: name, id: e.ID(), world: w}, nil
}

// Attach wraps an existing entity, for example one restored from a save.
func Attach(w *engine.World, name string, e *engine.Entity) *Interface {
	e.Set(engine.AttrControlled, true)
	return &Interface{name: name, id: e.ID(), world: w}
}

// ControllerName returns the player name.
func (p *Interface) ControllerName() string {
	return p.name
}

// ID returns the controlled entity's id.
func (p *Interface) ID() string {
	return p.id
}

// Entity returns a fresh view of the controlled entity, or nil once it is
// gone.
func (p *Interface) Entity() *engine.Entity {
	return p.world.FromID(p.id)
}

// Alive reports whether the entity exists and is not dead.
func (p *Interface) Alive() bool {
	e := p.Entity()
	return e != nil && !e.Bool(engine.AttrDead)
}

func (p *Interface) call(verb string, args ...any) (any, error) {
	e := p.Entity()
	if e == nil {
		return nil, ErrGone
	}
	return e.Call(verb, append([]any{p}, args...)...)
}

// Move heads one turn toward place.
func (p *Interface) Move(place string) (any, error) {
	return p.call(VerbMove, place)
}

// Attack attacks another entity.
func (p *Interface) Attack(other *engine.Entity) (any, error) {
	return p.call(VerbAttack, target(other))
}

// AttackName attacks the entity with the given name.
func (p *Interface) AttackName(name string) (any, error) {
	return p.Attack(p.world.FromName(name))
}

// Craft crafts amount units of item.
func (p *Interface) Craft(item string, amount int) (any, error) {
	return p.call(VerbCraft, item, amount)
}

// PickUp picks up amount units of item; an empty item picks whatever lies
// first on the ground.
func (p *Interface) PickUp(amount int, item string) (any, error) {
	if item == "" {
		return p.call(VerbPickUp, amount)
	}
	return p.call(VerbPickUp, amount, item)
}

// Infect tries to infect another entity.
func (p *Interface) Infect(other *engine.Entity) (any, error) {
	return p.call(VerbInfect, target(other))
}

// target passes a missing entity as a plain nil so verbs, Lua ones
// included, see no target rather than a nil pointer.
func target(e *engine.Entity) any {
	if e == nil {
		return nil
	}
	return e
}

// Wield wields item, or puts the current weapon away when item is empty.
func (p *Interface) Wield(item string) (any, error) {
	if item == "" {
		return p.call(VerbWield)
	}
	return p.call(VerbWield, item)
}

// Special performs the entity's special move.
func (p *Interface) Special(args ...any) (any, error) {
	return p.call(VerbSpecial, args...)
}

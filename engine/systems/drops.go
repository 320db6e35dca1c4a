package systems

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

// rollDrops reads the "drops" attribute: item name to either a fixed
// count or a [min, max] range.
func rollDrops(e *engine.Entity) map[string]int {
	out := map[string]int{}
	rng := e.World().RNG
	for item, spec := range e.Map("drops") {
		switch v := spec.(type) {
		case []any:
			if len(v) != 2 {
				continue
			}
			lo, ok1 := engine.AsInt(v[0])
			hi, ok2 := engine.AsInt(v[1])
			if ok1 && ok2 {
				out[item] += rng.Range(lo, hi)
			}
		default:
			if n, ok := engine.AsInt(v); ok {
				out[item] += n
			}
		}
	}
	return out
}

// Drops hands out a creature's belongings when it dies: its rolled drops
// plus its inventory. Items go to the killer's inventory when the killer is
// a player, else to the ground of the place it died in. Items flagged
// neverDrop vanish and items flagged alwaysDrop always land on the ground.
// Unknown items are logged and skipped.
func Drops(event string, e *engine.Entity, args ...any) error {
	if event != "death" {
		return nil
	}
	w := e.World()
	log := w.Log().WithFields(logrus.Fields{"entity": e.ID(), "type": e.TypeID(), "event": event})

	loot := rollDrops(e)
	for item, n := range e.Counts(engine.AttrInventory) {
		loot[item] += n
	}
	if len(loot) == 0 {
		return nil
	}

	var heir *engine.Entity
	if k := killer(e, args); k != nil && k.Bool(engine.AttrControlled) {
		heir = k
	}
	var heirInv map[string]int
	if heir != nil {
		heirInv = heir.Counts(engine.AttrInventory)
	}

	for _, item := range sortedNames(loot) {
		n := loot[item]
		if n <= 0 {
			continue
		}
		it := w.FindItem(item)
		if it == nil {
			log.WithError(fmt.Errorf("%w: %q", engine.ErrItemNotFound, item)).Warn("dropped item not in catalog")
			continue
		}
		switch {
		case it.HasFlag(types.FlagNeverDrop):
			continue
		case heir == nil || it.HasFlag(types.FlagAlwaysDrop):
			if err := w.AddPlaceItem(e.Place(), item, n); err != nil {
				log.WithError(err).Warn("cannot drop on ground")
			}
		default:
			heirInv[item] += n
		}
	}

	if heir != nil {
		heir.Set(engine.AttrInventory, heirInv)
	}
	e.Set(engine.AttrInventory, map[string]any{})
	return nil
}

// Pinata spills a dead creature's whole inventory on the ground where it
// died, whoever the killer was. Items flagged alwaysDrop are left to Drops.
func Pinata(event string, e *engine.Entity, args ...any) error {
	if event != "death" {
		return nil
	}
	inv := e.Counts(engine.AttrInventory)
	if len(inv) == 0 {
		return nil
	}
	w := e.World()
	log := w.Log().WithFields(logrus.Fields{"entity": e.ID(), "type": e.TypeID(), "event": event})

	for _, item := range sortedNames(inv) {
		it := w.FindItem(item)
		if it == nil {
			log.WithError(fmt.Errorf("%w: %q", engine.ErrItemNotFound, item)).Warn("dropped item not in catalog")
			continue
		}
		if it.HasFlag(types.FlagAlwaysDrop) {
			continue
		}
		if err := w.AddPlaceItem(e.Place(), item, inv[item]); err != nil {
			log.WithError(err).Warn("cannot drop on ground")
		}
	}
	return nil
}

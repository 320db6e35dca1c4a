package behaviors

import (
	"fmt"
	"sort"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

func addCount(counts map[string]int, item string, n int) {
	counts[item] += n
	if counts[item] <= 0 {
		delete(counts, item)
	}
}

// PickUp takes up to amount of an item from the ground. With no item named
// it takes the first item lying there, by name. The per-turn total is
// capped by pickupLimit. It returns the number of items picked up.
func PickUp(e *engine.Entity, args ...any) (any, error) {
	_, args = engine.SplitController(args)
	if isDead(e) {
		return 0, nil
	}
	w := e.World()
	amount := argInt(args, 0, 1)
	item := argString(args, 1)

	place := w.FindPlace(e.Place())
	if place == nil {
		return 0, fmt.Errorf("%w: %q", engine.ErrUnknownPlace, e.Place())
	}
	if item == "" {
		for _, name := range sortedNames(place.Items) {
			if place.Items[name] > 0 {
				item = name
				break
			}
		}
		if item == "" {
			return 0, nil
		}
	}
	if w.FindItem(item) == nil {
		return 0, fmt.Errorf("%w: %q", engine.ErrItemNotFound, item)
	}

	left := intOr(e, "pickupLimit", DefaultPickupLimit) - e.Int("pickups")
	if amount > left {
		amount = left
	}
	if amount > place.Items[item] {
		amount = place.Items[item]
	}
	if amount <= 0 {
		return 0, nil
	}

	if err := w.AddPlaceItem(place.Name, item, -amount); err != nil {
		return 0, err
	}
	inv := e.Counts(engine.AttrInventory)
	addCount(inv, item, amount)
	e.Set(engine.AttrInventory, inv)
	e.Set("pickups", e.Int("pickups")+amount)

	w.BroadcastIn(types.LevelInfo, []string{place.Name}, e.DisplayName(), " picked up ", amount, " ", item, ".")
	return amount, nil
}

// Craft makes amount units of an item from its recipe. Recipe ingredients
// are consumed; prerequisites must be held but are kept. Results: CRAFTED,
// NORECIPE, NOPREREQ, MISSING, DEAD.
func Craft(e *engine.Entity, args ...any) (any, error) {
	_, args = engine.SplitController(args)
	if isDead(e) {
		return Dead, nil
	}
	w := e.World()
	name := argString(args, 0)
	amount := argInt(args, 1, 1)
	if amount < 1 {
		amount = 1
	}

	item := w.FindItem(name)
	if item == nil {
		return nil, fmt.Errorf("%w: %q", engine.ErrItemNotFound, name)
	}
	recipe := engine.AsCounts(item.Attr["recipe"])
	prereqs := engine.AsCounts(item.Attr["prerequisites"])
	if len(recipe) == 0 && len(prereqs) == 0 {
		return NoRecipe, nil
	}

	inv := e.Counts(engine.AttrInventory)
	for req, n := range prereqs {
		if inv[req] < n {
			return NoPrereq, nil
		}
	}
	for ing, n := range recipe {
		if inv[ing] < n*amount {
			return Missing, nil
		}
	}

	for ing, n := range recipe {
		addCount(inv, ing, -n*amount)
	}
	addCount(inv, name, amount)
	e.Set(engine.AttrInventory, inv)

	w.BroadcastIn(types.LevelInfo, []string{e.Place()}, e.DisplayName(), " crafted ", amount, " ", name, ".")
	return Crafted, nil
}

// Wield takes a weapon from the inventory into the hand. A weapon already
// wielded goes back to the inventory. With no item named, the current
// weapon is put away. Results: WIELDED, UNWIELDED, NOTHING, NOTWEAPON,
// MISSING, DEAD.
func Wield(e *engine.Entity, args ...any) (any, error) {
	_, args = engine.SplitController(args)
	if isDead(e) {
		return Dead, nil
	}
	w := e.World()
	name := argString(args, 0)
	inv := e.Counts(engine.AttrInventory)
	current := e.Str("weapon")

	if name == "" {
		if current == "" {
			return Nothing, nil
		}
		addCount(inv, current, 1)
		e.Set(engine.AttrInventory, inv)
		e.Set("weapon", nil)
		e.Set("weaponUses", 0)
		return Unwield, nil
	}

	item := w.FindItem(name)
	if item == nil {
		return nil, fmt.Errorf("%w: %q", engine.ErrItemNotFound, name)
	}
	if !item.HasFlag(types.FlagWeapon) {
		return NoWeapon, nil
	}
	if inv[name] < 1 {
		return Missing, nil
	}

	if current != "" {
		addCount(inv, current, 1)
	}
	addCount(inv, name, -1)
	e.Set(engine.AttrInventory, inv)
	e.Set("weapon", name)

	uses := DefaultDurability
	if n, ok := engine.AsInt(item.Attr["durability"]); ok && n > 0 {
		uses = n
	}
	e.Set("weaponUses", uses)
	return Wielded, nil
}

func sortedNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

package game

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/engine/behaviors"
	"github.com/sentientmushes/smadventure/player"
	"github.com/sentientmushes/smadventure/types"
)

// call is one command invocation. name and seat are set when the sender
// has joined.
type call struct {
	who  string
	name string
	seat *seat
	args []string
	cmd  Command
}

func (c *call) entity() *engine.Entity {
	if c.seat == nil {
		return nil
	}
	return c.seat.p.Entity()
}

type command struct {
	name   string
	usage  string
	doc    string
	seated bool // sender must have joined
	turn   bool // and it must be their turn
	run    func(s *Session, c *call) ([]string, error)
}

func commandTable() map[string]*command {
	list := []*command{
		{name: "join", usage: "join [name]", doc: "Join the game as a random creature.", run: cmdJoin},
		{name: "leave", doc: "Kills you and leaves the game.", seated: true, run: cmdLeave},
		{name: "pass", doc: "Passes your turn.", turn: true, run: cmdPass},
		{name: "move", usage: "move <place>", doc: "Heads toward a place. Faster creatures cover more ground per turn.", turn: true, run: cmdMove},
		{name: "attack", usage: "attack <enemy name>", doc: "Attacks a creature at your place.", turn: true, run: cmdAttack},
		{name: "infect", usage: "infect <name>", doc: "Tries to turn a weakened creature into a mush.", turn: true, run: cmdInfect},
		{name: "special", usage: "special [args]", doc: "Performs your kind's special move.", turn: true, run: cmdSpecial},
		{name: "craft", usage: "craft <amount> <item name>", doc: "Crafts items from the ones in your inventory. See 'recipe'.", seated: true, run: cmdCraft},
		{name: "pickup", usage: "pickup [amount] [item]", doc: "Picks up items lying around your place. List them with 'listitems'.", seated: true, run: cmdPickUp},
		{name: "wield", usage: "wield [item]", doc: "Wields a weapon from your inventory, or puts yours away.", seated: true, run: cmdWield},
		{name: "stats", usage: "stats [name]", doc: "Status about you, or about another creature.", run: cmdStats},
		{name: "inventory", doc: "Lists what you carry.", seated: true, run: cmdInventory},
		{name: "listitems", doc: "Lists the items lying around your place.", seated: true, run: cmdListItems},
		{name: "listobjects", doc: "Lists the creatures at your place.", seated: true, run: cmdListObjects},
		{name: "paths", doc: "Lists the places you can reach from here.", seated: true, run: cmdPaths},
		{name: "recipe", usage: "recipe <item>", doc: "Shows what crafting an item takes.", run: cmdRecipe},
		{name: "turn", doc: "Says whose turn it is.", run: cmdTurn},
		{name: "players", doc: "Lists the players currently in the game.", run: cmdPlayers},
		{name: "dumpplaces", doc: "Lists every place in the world.", run: cmdPlaces},
		{name: "list", doc: "Lists the available commands.", run: cmdList},
		{name: "guide", usage: "guide [command]", doc: "Explains a command.", run: cmdGuide},
		{name: "quickstart", doc: "How to play.", run: cmdQuickstart},
		{name: "ping", doc: "Life check.", run: cmdPing},
	}
	table := make(map[string]*command, len(list))
	for _, c := range list {
		table[c.name] = c
	}
	return table
}

func cmdJoin(s *Session, c *call) ([]string, error) {
	name := c.who
	if len(c.args) > 0 {
		name = c.cmd.Rest(0)
	}
	if st, ok := s.seats[name]; ok && st.p.Alive() {
		return []string{fmt.Sprintf("There is already a player with the name '%s'!", name)}, nil
	}
	if c.seat != nil && c.name != name && c.seat.p.Alive() {
		return []string{fmt.Sprintf("You are already playing as %s!", c.name)}, nil
	}

	choices := s.world.Types.PlayerVariants()
	if len(choices) == 0 {
		return []string{"Nobody can be played in this world!"}, nil
	}
	// Pick the type first, then one of its variants, so types with many
	// variants aren't favoured.
	byType := map[string][]string{}
	var typeIDs []string
	for _, ch := range choices {
		if _, ok := byType[ch.Type]; !ok {
			typeIDs = append(typeIDs, ch.Type)
		}
		byType[ch.Type] = append(byType[ch.Type], ch.Variant)
	}
	rng := s.world.RNG
	typeID := typeIDs[rng.Intn(len(typeIDs))]
	variant := byType[typeID][rng.Intn(len(byType[typeID]))]

	place := s.world.StartPlace()
	if place == "" {
		return nil, fmt.Errorf("join %s: world has no beginning place", name)
	}

	p, err := player.Join(s.world, name, place, typeID, variant)
	if err != nil {
		return nil, err
	}
	s.addSeat(name, p)
	s.names[c.who] = name

	e := p.Entity()
	s.log.WithFields(logrus.Fields{"player": name, "entity": e.ID(), "type": typeID, "variant": variant}).Info("player joined")
	s.world.Broadcast(types.LevelSystem, "A new player joined: ", e, "! Currently it is ", s.turnName(), "'s turn.")
	return []string{fmt.Sprintf("Welcome, %s! You are %s at %s.", name, article(e.Variant().Name), place)}, nil
}

func cmdLeave(s *Session, c *call) ([]string, error) {
	e := c.entity()
	s.world.Broadcast(types.LevelEvent, e, " left the game!")
	e.Set("leaving", true)

	for i := 0; i < 8 && c.seat.p.Alive(); i++ {
		if err := kill(e); err != nil {
			return nil, err
		}
	}
	if c.seat.p.Alive() {
		e.Despawn()
	}
	s.drop(c.name)
	return []string{"Farewell!"}, nil
}

// kill deals far more damage than the entity has health.
func kill(e *engine.Entity) error {
	amount := e.Float(engine.AttrHealth)*1000 + 1
	var err error
	if t := e.Type(); t != nil && t.Has("take_damage") {
		_, err = e.Call("take_damage", amount)
	} else {
		_, err = behaviors.TakeDamage(e, amount)
	}
	return err
}

func cmdPass(s *Session, c *call) ([]string, error) {
	s.world.Broadcast(types.LevelEvent, c.name, " passed the turn!")
	s.advance()
	return nil, nil
}

func cmdMove(s *Session, c *call) ([]string, error) {
	if len(c.args) == 0 {
		return []string{"Syntax: move <place>"}, nil
	}
	dest := c.cmd.Rest(0)
	if s.world.FindPlace(dest) == nil {
		return []string{"No such place!"}, nil
	}

	e := c.entity()
	from := e.Place()
	res, err := c.seat.p.Move(dest)
	if err != nil {
		return nil, err
	}
	to := e.Place()
	if to != from {
		s.world.Hub.Scope(c.seat.sub, to)
	}

	var msg string
	switch res {
	case behaviors.Dead:
		msg = fmt.Sprintf("%s is dead and cannot move!", c.name)
	case behaviors.Already:
		msg = fmt.Sprintf("%s is already at %s!", c.name, dest)
	case behaviors.NoPath:
		msg = fmt.Sprintf("%s has found no path toward %s!", c.name, dest)
	case behaviors.Slow:
		msg = fmt.Sprintf("%s is slow and could not move to another place in one turn while heading toward %s!", c.name, dest)
	case behaviors.Success:
		if to == dest {
			msg = fmt.Sprintf("%s has moved with success to %s!", c.name, to)
		} else {
			msg = fmt.Sprintf("%s has moved with success to %s, heading toward %s!", c.name, to, dest)
		}
	default:
		msg = fmt.Sprintf("%s tried to move toward %s: %v", c.name, dest, res)
	}
	s.world.BroadcastIn(types.LevelImportant, []string{to}, msg)
	if to != from {
		s.world.BroadcastIn(types.LevelInteresting, []string{from}, msg)
	}

	if res == behaviors.Success || res == behaviors.Slow {
		s.advance()
	}
	return nil, nil
}

// targetReply explains a failed targeting result; "" means the verb went
// through.
func targetReply(res any, name string) string {
	switch res {
	case behaviors.NoTarget:
		return fmt.Sprintf("No such creature '%s'!", name)
	case behaviors.Far:
		return fmt.Sprintf("%s is not here!", name)
	case behaviors.Self:
		return "You can't do that to yourself!"
	case behaviors.NotAlive:
		return fmt.Sprintf("'%s' is not a living creature!", name)
	case behaviors.Dead:
		return "You're dead!"
	}
	return ""
}

func cmdAttack(s *Session, c *call) ([]string, error) {
	if len(c.args) == 0 {
		return []string{"Syntax: attack <enemy name>"}, nil
	}
	name := c.cmd.Rest(0)
	res, err := c.seat.p.AttackName(name)
	if err != nil {
		return nil, err
	}
	if reply := targetReply(res, name); reply != "" {
		return []string{reply}, nil
	}
	s.advance()
	return nil, nil
}

func cmdInfect(s *Session, c *call) ([]string, error) {
	if len(c.args) == 0 {
		return []string{"Syntax: infect <name>"}, nil
	}
	name := c.cmd.Rest(0)
	res, err := c.seat.p.Infect(s.world.FromName(name))
	if err != nil {
		return nil, err
	}
	if reply := targetReply(res, name); reply != "" {
		return []string{reply}, nil
	}
	if res == behaviors.Already {
		return []string{fmt.Sprintf("%s is already a mush!", name)}, nil
	}
	s.advance()
	return nil, nil
}

func cmdSpecial(s *Session, c *call) ([]string, error) {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		args[i] = a
	}
	res, err := c.seat.p.Special(args...)
	if err != nil {
		return nil, err
	}
	switch res {
	case behaviors.None:
		return []string{"Your kind has no special move."}, nil
	case behaviors.Dead:
		return []string{"You're dead!"}, nil
	}
	s.advance()
	return []string{"Special performed."}, nil
}

func cmdCraft(s *Session, c *call) ([]string, error) {
	if len(c.args) < 2 {
		return []string{"Syntax: craft <amount> <item name>"}, nil
	}
	amount, err := strconv.Atoi(c.args[0])
	if err != nil || amount < 1 {
		return []string{"Syntax: craft <amount> <item name>"}, nil
	}
	item := resolveItem(s, c.cmd.Rest(1), amount)
	if item == "" {
		return []string{unknownItem(s, c.cmd.Rest(1))}, nil
	}

	res, err := c.seat.p.Craft(item, amount)
	if err != nil {
		return nil, err
	}
	switch res {
	case behaviors.Crafted:
		return nil, nil
	case behaviors.NoRecipe:
		return []string{fmt.Sprintf("%s can't be crafted.", plural(item, 2))}, nil
	case behaviors.NoPrereq:
		return []string{fmt.Sprintf("You lack the tools to craft %s. See 'recipe %s'.", plural(item, 2), item)}, nil
	case behaviors.Missing:
		return []string{fmt.Sprintf("You lack the ingredients for %d %s.", amount, plural(item, amount))}, nil
	}
	return []string{fmt.Sprintf("Crafting failed: %v", res)}, nil
}

// resolveItem finds the catalog name for an item word, accepting plurals
// when more than one unit is asked for. It returns "" for unknown items.
func resolveItem(s *Session, word string, amount int) string {
	if s.world.FindItem(word) != nil {
		return word
	}
	if amount > 1 {
		for _, cand := range singulars(word) {
			if s.world.FindItem(cand) != nil {
				return cand
			}
		}
	}
	return ""
}

func unknownItem(s *Session, item string) string {
	return fmt.Sprintf("No such item '%s'! Is that from some Greek myth? Like, %s don't really exist either.",
		item, greekItems[s.world.RNG.Intn(len(greekItems))])
}

func cmdPickUp(s *Session, c *call) ([]string, error) {
	amount, item := 1, c.cmd.Rest(0)
	if len(c.args) > 0 {
		if n, err := strconv.Atoi(c.args[0]); err == nil {
			amount, item = n, c.cmd.Rest(1)
		}
	}
	if amount < 1 {
		return []string{"Syntax: pickup [amount] [item]"}, nil
	}

	if item != "" {
		found := resolveItem(s, item, amount)
		if found == "" {
			return []string{unknownItem(s, item)}, nil
		}
		item = found
	}

	res, err := c.seat.p.PickUp(amount, item)
	if err != nil {
		return nil, err
	}
	if n, _ := engine.AsInt(res); n == 0 {
		return []string{"There's nothing like that to pick up, or your hands are full for this turn."}, nil
	}

	e := c.entity()
	limit := e.Int("pickupLimit")
	if limit <= 0 {
		limit = s.cfg.PickupLimit
	}
	if e.Int("pickups") >= limit && s.rotation[0] == c.name {
		s.advance()
	}
	return nil, nil
}

func cmdWield(s *Session, c *call) ([]string, error) {
	item := c.cmd.Rest(0)
	if item != "" && s.world.FindItem(item) == nil {
		return []string{unknownItem(s, item)}, nil
	}
	res, err := c.seat.p.Wield(item)
	if err != nil {
		return nil, err
	}
	switch res {
	case behaviors.Wielded:
		return []string{fmt.Sprintf("You now wield %s.", article(item))}, nil
	case behaviors.Unwield:
		return []string{"You put your weapon away."}, nil
	case behaviors.Nothing:
		return []string{"You aren't wielding anything."}, nil
	case behaviors.NoWeapon:
		return []string{fmt.Sprintf("%s is not a weapon!", article(item))}, nil
	case behaviors.Missing:
		return []string{fmt.Sprintf("You don't have any %s!", plural(item, 2))}, nil
	}
	return []string{fmt.Sprintf("Wielding failed: %v", res)}, nil
}

func cmdStats(s *Session, c *call) ([]string, error) {
	var e *engine.Entity
	name := c.cmd.Rest(0)
	switch {
	case name != "":
		e = s.world.FromName(name)
	case c.seat != nil:
		name = c.name
		e = c.entity()
	default:
		return []string{"Not joined! Maybe try querying on someone (or something) else, instead?"}, nil
	}
	if e == nil {
		return []string{fmt.Sprintf("No such creature named '%s'!", name)}, nil
	}
	if !isCreature(e) {
		return []string{fmt.Sprintf("'%s' is not a creature!", name)}, nil
	}

	mush := ""
	if e.Bool("mush") {
		mush = ", is a mush"
	}
	weapon := "nothing"
	if w := e.Str("weapon"); w != "" {
		weapon = article(w)
	}
	var friends []string
	for f := range e.PointerList("friends") {
		friends = append(friends, f.DisplayName())
	}
	friendList := "nobody"
	if len(friends) > 0 {
		friendList = joinWords(friends)
	}

	return []string{fmt.Sprintf("%s is %s, with %.2f hitpoints (initially %v), at %s. Has %.2f immune level%s; wields %s, and is friends with %s.",
		e.DisplayName(), article(e.Variant().Name), e.Float(engine.AttrHealth), e.Get("spawnHealth"),
		e.Place(), e.Float("immune"), mush, weapon, friendList)}, nil
}

func isCreature(e *engine.Entity) bool {
	if e.Get("living") == nil {
		return e.Get(engine.AttrHealth) != nil
	}
	return e.Bool("living")
}

func cmdInventory(s *Session, c *call) ([]string, error) {
	e := c.entity()
	out := []string{fmt.Sprintf("You have %s.", countList(e.Counts(engine.AttrInventory)))}
	if w := e.Str("weapon"); w != "" {
		out = append(out, fmt.Sprintf("You wield %s with %d uses left.", article(w), e.Int("weaponUses")))
	}
	return out, nil
}

func cmdListItems(s *Session, c *call) ([]string, error) {
	place := s.world.FindPlace(c.entity().Place())
	if place == nil {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownPlace, c.entity().Place())
	}
	return []string{fmt.Sprintf("Here you can see %s.", countList(place.Items))}, nil
}

func cmdListObjects(s *Session, c *call) ([]string, error) {
	me := c.entity()
	var others []string
	for _, e := range s.world.AllInPlace(me.Place()) {
		if e.ID() != me.ID() {
			others = append(others, e.Label())
		}
	}
	if len(others) == 0 {
		return []string{"There's nobody else here."}, nil
	}
	return []string{fmt.Sprintf("Here you can see %s.", joinWords(others))}, nil
}

func cmdPaths(s *Session, c *call) ([]string, error) {
	adj := s.world.Adjacent(c.entity().Place())
	if len(adj) == 0 {
		return []string{"There's no way out of here!"}, nil
	}
	return []string{fmt.Sprintf("From here you can go to %s.", joinWords(adj))}, nil
}

func cmdRecipe(s *Session, c *call) ([]string, error) {
	name := c.cmd.Rest(0)
	if name == "" {
		return []string{"Syntax: recipe <item>"}, nil
	}
	item := s.world.FindItem(name)
	if item == nil {
		return []string{unknownItem(s, name)}, nil
	}
	recipe := engine.AsCounts(item.Attr["recipe"])
	prereqs := engine.AsCounts(item.Attr["prerequisites"])
	if len(recipe) == 0 && len(prereqs) == 0 {
		return []string{fmt.Sprintf("%s can't be crafted.", plural(name, 2))}, nil
	}

	out := []string{fmt.Sprintf("In order to craft 1 %s, you will spend %s.", name, countList(recipe))}
	if len(prereqs) > 0 {
		out = append(out, fmt.Sprintf("You also need to have %s, which you keep.", countList(prereqs)))
	}
	return out, nil
}

func cmdTurn(s *Session, c *call) ([]string, error) {
	if len(s.seats) == 0 {
		return []string{"Nobody's playing! :<"}, nil
	}
	return []string{fmt.Sprintf("It's now %s's turn! There are %d people around.", s.turnName(), len(s.seats))}, nil
}

func cmdPlayers(s *Session, c *call) ([]string, error) {
	names := s.playerNames()
	if len(names) == 0 {
		return []string{"Nobody's playing! :<"}, nil
	}
	return []string{fmt.Sprintf("There are the following %d players: %s", len(names), strings.Join(names, ", "))}, nil
}

func cmdPlaces(s *Session, c *call) ([]string, error) {
	places := s.world.Places()
	names := make([]string, len(places))
	for i, p := range places {
		names[i] = p.Name
	}
	return []string{fmt.Sprintf("%d places: %s", len(names), strings.Join(names, ", "))}, nil
}

func cmdList(s *Session, c *call) ([]string, error) {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return []string{"Available commands: " + strings.Join(names, ", ")}, nil
}

func cmdGuide(s *Session, c *call) ([]string, error) {
	topic := strings.TrimPrefix(strings.ToLower(c.cmd.Rest(0)), "command.")
	if topic == "" {
		return []string{"Use 'guide <command>' to learn about a command, or 'quickstart' to learn to play."}, nil
	}
	if alias, ok := verbAliases[topic]; ok {
		topic = alias
	}
	cmd, ok := s.commands[topic]
	if !ok {
		return []string{"There is no such command!"}, nil
	}
	usage := cmd.usage
	if usage == "" {
		usage = cmd.name
	}
	return []string{fmt.Sprintf("%s: %s", usage, cmd.doc)}, nil
}

func cmdQuickstart(s *Session, c *call) ([]string, error) {
	return []string{
		"First, use 'join' to become part of the game.",
		"Look around before acting: 'stats' tells you about yourself and others, 'listobjects' lists the creatures here and 'listitems' what you can 'pickup'.",
		"Use 'wield' on weapons, which lie around or can be crafted ('craft', 'recipe'). Then 'attack' an enemy; once it is weak you may finish it off or 'infect' it.",
		"Explore with 'paths' and 'move'. Every kind of creature has its own 'special'. For more commands, do 'list'. Good luck!",
	}, nil
}

func cmdPing(s *Session, c *call) ([]string, error) {
	return []string{"Pong!"}, nil
}

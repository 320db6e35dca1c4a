// Package game runs a multiplayer session over one world: players join,
// take turns in a fixed rotation, and every full round of the rotation
// ends with a world tick.
package game

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/engine/behaviors"
	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/engine/save"
	"github.com/sentientmushes/smadventure/player"
	"github.com/sentientmushes/smadventure/types"
)

// Config holds the session's tunables.
type Config struct {
	// PickupLimit ends a player's turn once they picked up this many items
	// in it, for creatures that don't carry their own pickupLimit.
	PickupLimit int
	// InboxLevel and InboxBelow bound the levels a player's private inbox
	// receives from their current place.
	InboxLevel types.Level
	InboxBelow types.Level
}

// DefaultConfig returns the stock session settings.
func DefaultConfig() Config {
	return Config{
		PickupLimit: behaviors.DefaultPickupLimit,
		InboxLevel:  types.LevelInfo,
		InboxBelow:  types.LevelEvent,
	}
}

// tickSlot marks the world's own turn in the rotation.
const tickSlot = ""

const nobody = "(nobody)"

const failure = "Something went wrong; the command was not completed."

// seat is one joined player.
type seat struct {
	p     *player.Interface
	sub   string // hub subscription of the inbox
	inbox *broadcast.Buffer
}

// Session serializes commands from any number of senders against a
// world. All exported methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	world    *engine.World
	cfg      Config
	log      logrus.FieldLogger
	seats    map[string]*seat  // by player name
	names    map[string]string // sender → player name
	rotation []string
	commands map[string]*command
}

// New creates a session over w. The rotation starts with only the tick
// slot.
func New(w *engine.World, cfg Config, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.PickupLimit <= 0 {
		cfg.PickupLimit = behaviors.DefaultPickupLimit
	}
	s := &Session{
		world:    w,
		cfg:      cfg,
		log:      log.WithField("component", "session"),
		seats:    map[string]*seat{},
		names:    map[string]string{},
		rotation: []string{tickSlot},
	}
	s.commands = commandTable()
	return s
}

// World returns the session's world. Callers must not mutate it while
// commands may be running.
func (s *Session) World() *engine.World {
	return s.world
}

// Exec runs one command line on behalf of sender who and returns the
// direct replies. Broadcasts produced by the command go through the hub.
func (s *Session) Exec(who, line string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := Parse(line)
	if cmd.Verb == "" {
		return nil
	}
	c, ok := s.commands[cmd.Verb]
	if !ok {
		return []string{fmt.Sprintf("Unknown command '%s'! Try 'list'.", cmd.Verb)}
	}

	out := s.run(c, who, cmd)
	s.prune()
	s.rescope()
	return out
}

func (s *Session) run(c *command, who string, cmd Command) (out []string) {
	log := s.log.WithFields(logrus.Fields{"sender": who, "command": c.name})
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("command panicked: %v", r)
			out = []string{failure}
		}
	}()

	in := &call{who: who, args: cmd.Args, cmd: cmd}
	if name, ok := s.names[who]; ok {
		if st, ok := s.seats[name]; ok {
			in.name, in.seat = name, st
		}
	}

	if c.seated || c.turn {
		if in.seat == nil {
			return []string{"Join first!"}
		}
		if !in.seat.p.Alive() {
			return []string{"You're dead! Join back after a tick."}
		}
	}
	if c.turn && s.rotation[0] != in.name {
		return []string{fmt.Sprintf("It isn't your turn yet; it's %s's turn right now!", s.turnName())}
	}

	out, err := c.run(s, in)
	if err != nil {
		log.WithError(err).Warn("command failed")
		return append(out, failure)
	}
	return out
}

// Drain returns the lines the sender's inbox collected since the last
// call. Only broadcasts already delivered by the hub are included.
func (s *Session) Drain(who string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.seats[s.names[who]]
	if st == nil {
		return nil
	}
	return st.inbox.Drain()
}

// PlayerOf returns the player name sender who plays as.
func (s *Session) PlayerOf(who string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[who]
	if !ok {
		return "", false
	}
	_, ok = s.seats[name]
	return name, ok
}

// Players returns the joined player names in sorted order.
func (s *Session) Players() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerNames()
}

func (s *Session) playerNames() []string {
	names := make([]string, 0, len(s.seats))
	for name := range s.seats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Turn returns the name of the player whose turn it is.
func (s *Session) Turn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnName()
}

// Rotation returns a copy of the turn rotation; the tick slot is "".
func (s *Session) Rotation() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rotation...)
}

// Status is a snapshot of one player for drivers.
type Status struct {
	Player string
	Place  string
	Health float64
	Tick   int
	Turn   string
	Alive  bool
}

// Status returns the snapshot for sender who.
func (s *Session) Status(who string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Tick: s.world.Ticks(), Turn: s.turnName()}
	name, ok := s.names[who]
	if !ok {
		return st
	}
	st.Player = name
	if seat := s.seats[name]; seat != nil {
		if e := seat.p.Entity(); e != nil {
			st.Place = e.Place()
			st.Health = e.Float(engine.AttrHealth)
			st.Alive = !e.Bool(engine.AttrDead)
		}
	}
	return st
}

// Tick forces a world tick outside the rotation.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()
	s.rescope()
}

// Save exports the world.
func (s *Session) Save() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return save.Save(s.world)
}

// Load replaces the world state with a save. Players whose controlled
// entity survived the load keep their seats; the rest are dropped.
// Controlled entities nobody holds a seat for get one under their own name.
func (s *Session) Load(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sd, err := save.Load(data)
	if err != nil {
		return err
	}
	if err := save.Apply(s.world, sd); err != nil {
		return err
	}

	for _, name := range s.playerNames() {
		if !s.seats[name].p.Alive() {
			s.drop(name)
		}
	}
	held := map[string]bool{}
	for _, st := range s.seats {
		held[st.p.ID()] = true
	}
	for _, e := range s.world.Entities() {
		if !e.Bool(engine.AttrControlled) || held[e.ID()] || e.Bool(engine.AttrDead) {
			continue
		}
		if _, taken := s.seats[e.Name()]; taken {
			continue
		}
		s.addSeat(e.Name(), player.Attach(s.world, e.Name(), e))
		s.names[e.Name()] = e.Name()
	}
	s.rescope()
	s.log.WithFields(logrus.Fields{"ticks": s.world.Ticks(), "players": len(s.seats)}).Info("world loaded")
	return nil
}

// addSeat registers a player and subscribes their inbox.
func (s *Session) addSeat(name string, p *player.Interface) *seat {
	st := &seat{p: p, sub: "player:" + uuid.NewString(), inbox: &broadcast.Buffer{}}
	var places []string
	if e := p.Entity(); e != nil {
		places = []string{e.Place()}
	}
	s.world.Hub.Subscribe(st.sub, st.inbox, broadcast.Filter{
		Min:    s.cfg.InboxLevel,
		Below:  s.cfg.InboxBelow,
		Places: places,
	})
	s.seats[name] = st

	if len(s.rotation) > 1 {
		s.rotation = append(s.rotation, name)
	} else {
		s.rotation = append([]string{name}, s.rotation...)
	}
	return st
}

// drop removes a player from the session. When it was their turn the
// rotation moves on, ticking if it lands on the tick slot.
func (s *Session) drop(name string) {
	st, ok := s.seats[name]
	if !ok {
		return
	}
	delete(s.seats, name)
	s.world.Hub.Unsubscribe(st.sub)
	for who, n := range s.names {
		if n == name {
			delete(s.names, who)
		}
	}
	s.log.WithField("player", name).Info("player removed")

	i := slices.Index(s.rotation, name)
	if i < 0 {
		return
	}
	s.rotation = slices.Delete(s.rotation, i, i+1)
	if i != 0 || len(s.rotation) < 2 {
		return
	}
	if s.rotation[0] == tickSlot {
		s.announceTurn("Wait for the tick to end processing first.")
		s.tick()
		s.rotate()
		return
	}
	s.announceTurn("")
}

// prune drops every player whose entity died or vanished.
func (s *Session) prune() {
	for _, name := range s.playerNames() {
		if st, ok := s.seats[name]; ok && !st.p.Alive() {
			s.drop(name)
		}
	}
}

// rescope points every inbox at its player's current place.
func (s *Session) rescope() {
	for _, st := range s.seats {
		if e := st.p.Entity(); e != nil {
			s.world.Hub.Scope(st.sub, e.Place())
		}
	}
}

func (s *Session) turnName() string {
	if s.rotation[0] != tickSlot {
		return s.rotation[0]
	}
	if len(s.rotation) > 1 {
		return s.rotation[1]
	}
	return nobody
}

func (s *Session) rotate() {
	if len(s.rotation) < 2 {
		return
	}
	s.rotation = append(s.rotation[1:], s.rotation[0])
}

func (s *Session) announceTurn(extra string) {
	if extra != "" {
		s.world.Broadcast(types.LevelEvent, "It's now ", s.turnName(), "'s turn! ", extra)
		return
	}
	s.world.Broadcast(types.LevelEvent, "It's now ", s.turnName(), "'s turn!")
}

// advance hands the turn to the next slot. Landing on the tick slot runs
// the world's tick and hands the turn on again.
func (s *Session) advance() {
	if len(s.rotation) < 2 {
		return
	}
	s.rotate()
	if s.rotation[0] != tickSlot {
		s.announceTurn("")
		return
	}
	s.announceTurn("Wait for the tick to end processing first.")
	s.tick()
	s.rotate()
}

func (s *Session) tick() {
	if err := s.world.Tick(); err != nil {
		s.log.WithError(err).Error("tick failed")
	}
	s.log.WithField("tick", s.world.Ticks()).Debug("tick finished")
	s.prune()
}

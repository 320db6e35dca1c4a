package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/types"
)

// Defs is everything a content loader hands to a new world.
type Defs struct {
	Types         *Registry
	Places        []types.Place
	Items         []types.ItemType
	Paths         []types.Path
	Beginning     []string
	Spawns        []types.Spawn
	GlobalSystems []System
}

// World owns the entity table, the place and item catalogs, and the paths
// between places. It is not safe for concurrent use: callers serialize
// commands and ticks. Only the broadcast hub is shared with other
// goroutines.
type World struct {
	Types         *Registry
	RNG           *RNG
	Hub           *broadcast.Hub
	GlobalSystems []System
	Beginning     []string

	places     map[string]*types.Place
	placeOrder []string
	items      map[string]*types.ItemType
	paths      []types.Path
	spawns     []types.Spawn

	entities map[string]*Record
	order    []string // insertion order of entity ids
	names    map[string]map[string]struct{}

	pending map[string]struct{} // non-nil only while a tick runs
	removed map[string]struct{} // ids removed by the last resolution
	ticks   int

	log logrus.FieldLogger
}

// Option configures a World.
type Option func(*World)

// WithSeed seeds the world's RNG.
func WithSeed(seed int64) Option {
	return func(w *World) { w.RNG = NewRNG(seed) }
}

// WithRNG installs an RNG, for example one restored from a save.
func WithRNG(rng *RNG) Option {
	return func(w *World) { w.RNG = rng }
}

// WithLogger sets the world's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *World) { w.log = log }
}

// WithHub sets the broadcast hub. By default the world creates its own.
func WithHub(h *broadcast.Hub) Option {
	return func(w *World) { w.Hub = h }
}

// New builds a world from loaded definitions. The entity table starts
// empty; see Populate.
func New(defs Defs, opts ...Option) *World {
	w := &World{
		Types:         defs.Types,
		GlobalSystems: append([]System(nil), defs.GlobalSystems...),
		Beginning:     append([]string(nil), defs.Beginning...),
		places:        make(map[string]*types.Place, len(defs.Places)),
		items:         make(map[string]*types.ItemType, len(defs.Items)),
		paths:         append([]types.Path(nil), defs.Paths...),
		spawns:        append([]types.Spawn(nil), defs.Spawns...),
		entities:      map[string]*Record{},
		names:         map[string]map[string]struct{}{},
		removed:       map[string]struct{}{},
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.Types == nil {
		w.Types = NewRegistry()
	}
	if w.RNG == nil {
		w.RNG = NewRNG(1)
	}
	if w.Hub == nil {
		w.Hub = broadcast.New(broadcast.WithLogger(w.log))
	}

	for _, p := range defs.Places {
		w.putPlace(p)
	}
	for i := range defs.Items {
		it := defs.Items[i]
		it.Attr = NormalizeMap(it.Attr)
		it.Flags = append([]string(nil), it.Flags...)
		w.items[it.Name] = &it
	}
	return w
}

func (w *World) putPlace(p types.Place) {
	if _, ok := w.places[p.Name]; !ok {
		w.placeOrder = append(w.placeOrder, p.Name)
	}
	items := make(map[string]int, len(p.Items))
	for k, n := range p.Items {
		items[k] = n
	}
	w.places[p.Name] = &types.Place{Name: p.Name, Attr: NormalizeMap(p.Attr), Items: items}
}

// Log returns the world's logger.
func (w *World) Log() logrus.FieldLogger {
	return w.log
}

// newID draws ids until one is neither live nor removed last tick.
func (w *World) newID() string {
	for {
		id := w.RNG.Token(IDLength)
		if _, live := w.entities[id]; live {
			continue
		}
		if _, gone := w.removed[id]; gone {
			continue
		}
		return id
	}
}

// AddEntity inserts a record and fires the type's init behaviour, if any.
// The entity stays inserted even if init fails; the error is returned.
func (w *World) AddEntity(rec *Record) (*Entity, error) {
	if rec == nil {
		return nil, fmt.Errorf("add entity: nil record")
	}
	if _, dup := w.entities[rec.ID]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, rec.ID)
	}
	t := w.Types.Lookup(rec.TypeID)
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, rec.TypeID)
	}
	if rec.Attr == nil {
		rec.Attr = map[string]any{}
	}

	w.insert(rec)

	e := &Entity{world: w, rec: rec}
	if t.Has("init") {
		if _, err := e.Call("init"); err != nil {
			w.log.WithFields(logrus.Fields{
				"entity": rec.ID,
				"type":   rec.TypeID,
				"verb":   "init",
			}).WithError(err).Error("init behaviour failed")
			return e, err
		}
	}
	return e, nil
}

func (w *World) insert(rec *Record) {
	w.entities[rec.ID] = rec
	w.order = append(w.order, rec.ID)
	w.index(rec.Name, rec.ID)
}

func (w *World) index(name, id string) {
	set, ok := w.names[name]
	if !ok {
		set = map[string]struct{}{}
		w.names[name] = set
	}
	set[id] = struct{}{}
}

func (w *World) unindex(name, id string) {
	set := w.names[name]
	delete(set, id)
	if len(set) == 0 {
		delete(w.names, name)
	}
}

func (w *World) rename(rec *Record, name string) {
	w.unindex(rec.Name, rec.ID)
	rec.Name = name
	w.index(name, rec.ID)
}

// Spawn instantiates typeID and inserts the result.
func (w *World) Spawn(typeID, variant, place, name string, extra map[string]any) (*Entity, error) {
	t := w.Types.Lookup(typeID)
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, typeID)
	}
	rec, err := t.Instantiate(w, place, variant, name, extra)
	if err != nil {
		return nil, err
	}
	return w.AddEntity(rec)
}

// gone reports whether rec is no longer a live table entry.
func (w *World) gone(rec *Record) bool {
	if _, pending := w.pending[rec.ID]; pending {
		return true
	}
	cur, ok := w.entities[rec.ID]
	return !ok || cur != rec
}

// FromID returns a view of the live entity with the given id, or nil.
func (w *World) FromID(id string) *Entity {
	rec, ok := w.entities[id]
	if !ok {
		return nil
	}
	if _, pending := w.pending[id]; pending {
		return nil
	}
	return &Entity{world: w, rec: rec}
}

// FromName returns a live entity with the given name, or nil. When names
// collide the smallest id wins.
func (w *World) FromName(name string) *Entity {
	for _, id := range sortedKeys(w.names[name]) {
		if e := w.FromID(id); e != nil {
			return e
		}
	}
	return nil
}

// Entities returns views of every live entity in insertion order.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.order))
	for _, id := range w.order {
		if e := w.FromID(id); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// AllInPlace returns the live entities in place, in insertion order.
func (w *World) AllInPlace(place string) []*Entity {
	var out []*Entity
	for _, e := range w.Entities() {
		if e.rec.Place == place {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return len(w.entities) - len(w.pending)
}

// Removed reports whether id was removed by the last removal resolution.
func (w *World) Removed(id string) bool {
	_, ok := w.removed[id]
	return ok
}

// Ticks returns the number of ticks run so far.
func (w *World) Ticks() int {
	return w.ticks
}

// InTick reports whether a tick is in progress.
func (w *World) InTick() bool {
	return w.pending != nil
}

// FindPlace returns the named place, or nil.
func (w *World) FindPlace(name string) *types.Place {
	return w.places[name]
}

// Places returns every place in declaration order.
func (w *World) Places() []*types.Place {
	out := make([]*types.Place, len(w.placeOrder))
	for i, name := range w.placeOrder {
		out[i] = w.places[name]
	}
	return out
}

// FindItem returns the named item type, or nil.
func (w *World) FindItem(name string) *types.ItemType {
	return w.items[name]
}

// Items returns the item catalog sorted by name.
func (w *World) Items() []*types.ItemType {
	out := make([]*types.ItemType, 0, len(w.items))
	for _, name := range sortedKeys(w.items) {
		out = append(out, w.items[name])
	}
	return out
}

// AddPlaceItem adjusts a place's ground count of item by n. Counts that
// drop to zero or below are removed.
func (w *World) AddPlaceItem(place, item string, n int) error {
	p := w.places[place]
	if p == nil {
		return fmt.Errorf("%w: %q", ErrUnknownPlace, place)
	}
	if p.Items == nil {
		p.Items = map[string]int{}
	}
	p.Items[item] += n
	if p.Items[item] <= 0 {
		delete(p.Items, item)
	}
	return nil
}

// Paths returns the path list.
func (w *World) Paths() []types.Path {
	return append([]types.Path(nil), w.paths...)
}

// Adjacent returns the places reachable from place in one move, sorted.
func (w *World) Adjacent(place string) []string {
	seen := map[string]struct{}{}
	for _, p := range w.paths {
		if !p.Contains(place) {
			continue
		}
		for _, other := range p {
			if other != place {
				seen[other] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// Route returns the shortest sequence of moves from one place to another,
// excluding from and including to. It is empty when from == to and nil
// when no route exists.
func (w *World) Route(from, to string) []string {
	if from == to {
		return []string{}
	}
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range w.Adjacent(cur) {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				var route []string
				for at := to; at != from; at = prev[at] {
					route = append(route, at)
				}
				for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
					route[i], route[j] = route[j], route[i]
				}
				return route
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// StartPlace picks one of the beginning places at random, or "" if none.
func (w *World) StartPlace() string {
	if len(w.Beginning) == 0 {
		return ""
	}
	return w.Beginning[w.RNG.Intn(len(w.Beginning))]
}

// Populate applies the spawn list. Bad spawns are logged and skipped; the
// joined errors are returned.
func (w *World) Populate() error {
	var errs []error
	for _, sp := range w.spawns {
		lo, hi, err := parseAmount(sp.Amount)
		if err != nil {
			errs = append(errs, fmt.Errorf("spawn %s in %s: %w", sp.Type, sp.Place, err))
			continue
		}
		n := w.RNG.Range(lo, hi)
		for i := 0; i < n; i++ {
			if _, err := w.Spawn(sp.Type, sp.Variant, sp.Place, "", nil); err != nil {
				w.log.WithFields(logrus.Fields{"type": sp.Type, "place": sp.Place}).
					WithError(err).Warn("spawn failed")
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

// parseAmount reads "3" or "1-4".
func parseAmount(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, 1, nil
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, 0, fmt.Errorf("bad amount %q", s)
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, fmt.Errorf("bad amount %q", s)
		}
		return a, b, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, 0, fmt.Errorf("bad amount %q", s)
	}
	return n, n, nil
}

// Records returns deep copies of every live record in insertion order.
func (w *World) Records() []*Record {
	out := make([]*Record, 0, len(w.order))
	for _, e := range w.Entities() {
		out = append(out, e.rec.Clone())
	}
	return out
}

// Restore replaces the entity table and the places' mutable state. Every
// record must name a registered type and variant. Nothing is changed if
// validation fails.
func (w *World) Restore(records []*Record, places []types.Place, ticks int) error {
	if w.InTick() {
		return ErrTickInProgress
	}
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		t := w.Types.Lookup(rec.TypeID)
		if t == nil {
			return fmt.Errorf("%w: %q (entity %s)", ErrUnknownEntityType, rec.TypeID, rec.ID)
		}
		if t.Variant(rec.VariantID) == nil {
			return fmt.Errorf("%w: %q of type %q (entity %s)", ErrUnknownVariant, rec.VariantID, rec.TypeID, rec.ID)
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}

	w.entities = make(map[string]*Record, len(records))
	w.order = nil
	w.names = map[string]map[string]struct{}{}
	w.removed = map[string]struct{}{}
	for _, rec := range records {
		c := rec.Clone()
		w.insert(c)
	}
	for _, p := range places {
		w.putPlace(p)
	}
	w.ticks = ticks
	return nil
}

// Broadcast renders parts and posts them at level to every channel.
func (w *World) Broadcast(level types.Level, parts ...any) {
	w.Hub.Post(broadcast.Message{Level: level, Text: Render(parts...)})
}

// BroadcastIn posts a message scoped to the given places.
func (w *World) BroadcastIn(level types.Level, places []string, parts ...any) {
	w.Hub.Post(broadcast.Message{
		Level:  level,
		Text:   Render(parts...),
		Places: append([]string(nil), places...),
	})
}

// BroadcastTo posts a message that is also delivered directly to to.
func (w *World) BroadcastTo(level types.Level, to broadcast.Channel, parts ...any) {
	w.Hub.Post(broadcast.Message{Level: level, Text: Render(parts...), To: to})
}

// AddBroadcastChannel subscribes ch to every message at or above level and
// returns the subscription name.
func (w *World) AddBroadcastChannel(level types.Level, ch broadcast.Channel, name string) string {
	return w.Hub.Subscribe(name, ch, broadcast.Filter{Min: level})
}

// RemoveBroadcastChannel drops the named subscription.
func (w *World) RemoveBroadcastChannel(name string) bool {
	return w.Hub.Unsubscribe(name)
}

// Render concatenates parts, using the label form of entities and types.
func Render(parts ...any) string {
	var b strings.Builder
	for _, p := range parts {
		if s, ok := p.(string); ok {
			b.WriteString(s)
			continue
		}
		fmt.Fprint(&b, p)
	}
	return b.String()
}

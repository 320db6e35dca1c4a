package engine

import (
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"
)

// Entity is a transient view over one record in the World's table. Views
// share the stored record, so a write through any view is seen by all of
// them. Once despawned, reads return nil and writes are ignored.
type Entity struct {
	world     *World
	rec       *Record
	despawned bool
}

// ID returns the entity's unique id.
func (e *Entity) ID() string {
	return e.rec.ID
}

// World returns the world that owns the entity.
func (e *Entity) World() *World {
	return e.world
}

// Type returns the entity's type.
func (e *Entity) Type() *EntityType {
	return e.world.Types.Lookup(e.rec.TypeID)
}

// TypeID returns the id of the entity's type.
func (e *Entity) TypeID() string {
	return e.rec.TypeID
}

// Of reports whether the entity belongs to the type with the given id.
func (e *Entity) Of(typeID string) bool {
	return e.rec.TypeID == typeID
}

// Variant returns the entity's resolved variant.
func (e *Entity) Variant() *Variant {
	if t := e.Type(); t != nil {
		return t.Variant(e.rec.VariantID)
	}
	return nil
}

// Name returns the raw name.
func (e *Entity) Name() string {
	return e.rec.Name
}

// SetName renames the entity, keeping the world's name index current.
func (e *Entity) SetName(name string) {
	if e.Despawned() || name == e.rec.Name {
		return
	}
	e.world.rename(e.rec, name)
}

// DisplayName prefers a fancy_name attribute over the raw name.
func (e *Entity) DisplayName() string {
	if fancy, ok := e.Get("fancy_name").(string); ok && fancy != "" {
		return fancy
	}
	return e.rec.Name
}

// Place returns the name of the place the entity is in.
func (e *Entity) Place() string {
	return e.rec.Place
}

// SetPlace moves the entity without any path checks.
func (e *Entity) SetPlace(place string) {
	if e.Despawned() {
		return
	}
	e.rec.Place = place
}

// Despawned reports whether the view is dead: despawned through this view,
// queued for removal by anyone, or already gone from the table.
func (e *Entity) Despawned() bool {
	return e.despawned || e.world.gone(e.rec)
}

// Get reads an attribute: the entity's own value, else the variant's
// resolved value, else true if key is a variant flag, else nil.
func (e *Entity) Get(key string) any {
	if e.Despawned() {
		return nil
	}
	if v, ok := e.rec.Attr[key]; ok && v != nil {
		return v
	}
	variant := e.Variant()
	if variant == nil {
		return nil
	}
	if v, ok := variant.Attr[key]; ok && v != nil {
		return CloneValue(v)
	}
	if variant.HasFlag(key) {
		return true
	}
	return nil
}

// Set writes a per-entity attribute. Values are normalized to their JSON
// form.
func (e *Entity) Set(key string, val any) {
	if e.Despawned() {
		return
	}
	e.rec.Attr[key] = Normalize(val)
}

// Delete removes a per-entity attribute and returns its previous value.
func (e *Entity) Delete(key string) any {
	if e.Despawned() {
		return nil
	}
	old, ok := e.rec.Attr[key]
	if !ok {
		e.world.log.WithFields(logrus.Fields{"entity": e.rec.ID, "key": key}).
			Warn("deleting absent attribute")
		return nil
	}
	delete(e.rec.Attr, key)
	return old
}

// Attributes returns a copy of the per-entity attributes.
func (e *Entity) Attributes() map[string]any {
	return CloneMap(e.rec.Attr)
}

// Int reads a numeric attribute as int (0 if absent or not a number).
func (e *Entity) Int(key string) int {
	n, _ := AsInt(e.Get(key))
	return n
}

// Float reads a numeric attribute as float64.
func (e *Entity) Float(key string) float64 {
	f, _ := AsFloat(e.Get(key))
	return f
}

// Str reads a string attribute.
func (e *Entity) Str(key string) string {
	s, _ := AsString(e.Get(key))
	return s
}

// Bool applies the loose truth test to an attribute.
func (e *Entity) Bool(key string) bool {
	return Truthy(e.Get(key))
}

// Map reads a map attribute, or nil.
func (e *Entity) Map(key string) map[string]any {
	m, _ := e.Get(key).(map[string]any)
	return m
}

// List reads a list attribute, or nil.
func (e *Entity) List(key string) []any {
	l, _ := e.Get(key).([]any)
	return l
}

// Counts reads an item-count map attribute such as "inventory".
// The result is a copy; write it back with Set.
func (e *Entity) Counts(key string) map[string]int {
	return AsCounts(e.Get(key))
}

// SetVariant switches the entity to another variant of its type. Default
// attributes still holding the old variant's default are swapped for the
// new variant's defaults.
func (e *Entity) SetVariant(id string) error {
	if e.Despawned() {
		return nil
	}
	t := e.Type()
	next := t.Variant(id)
	if next == nil {
		return fmt.Errorf("%w: type %q has no variant %q", ErrUnknownVariant, t.ID, id)
	}
	if old := e.Variant(); old != nil {
		for k, v := range old.Defaults {
			if cur, ok := e.rec.Attr[k]; ok && equalValues(cur, v) {
				delete(e.rec.Attr, k)
			}
		}
	}
	e.rec.VariantID = id
	for k, v := range next.Defaults {
		if _, ok := e.rec.Attr[k]; !ok {
			e.rec.Attr[k] = CloneValue(v)
		}
	}
	return nil
}

// Pointer resolves an attribute holding an entity id. Absent or stale
// references yield nil.
func (e *Entity) Pointer(key string) *Entity {
	id, ok := e.Get(key).(string)
	if !ok || id == "" {
		return nil
	}
	return e.world.FromID(id)
}

// SetPointer stores a reference to other, or clears it when other is nil.
func (e *Entity) SetPointer(key string, other *Entity) {
	if other == nil {
		e.Set(key, nil)
		return
	}
	e.Set(key, other.ID())
}

// AppendPointer adds other's id to the id list stored at key.
func (e *Entity) AppendPointer(key string, other *Entity) {
	if other == nil || e.Despawned() {
		return
	}
	ids := AsIDs(e.Get(key))
	for _, id := range ids {
		if id == other.ID() {
			return
		}
	}
	list := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		list = append(list, id)
	}
	e.Set(key, append(list, other.ID()))
}

// PointerList lazily resolves a stored list of entity ids. Ids that no
// longer exist are skipped.
func (e *Entity) PointerList(key string) iter.Seq[*Entity] {
	ids := AsIDs(e.Get(key))
	return func(yield func(*Entity) bool) {
		for _, id := range ids {
			other := e.world.FromID(id)
			if other == nil {
				continue
			}
			if !yield(other) {
				return
			}
		}
	}
}

// SpawnOptions controls Entity.Spawn. Zero fields default to the spawning
// entity's type and place, and a random variant.
type SpawnOptions struct {
	Type    string
	Variant string
	Place   string
	Name    string
	Attr    map[string]any
}

// Spawn instantiates and inserts a new entity.
func (e *Entity) Spawn(opts SpawnOptions) (*Entity, error) {
	typeID := opts.Type
	if typeID == "" {
		typeID = e.rec.TypeID
	}
	place := opts.Place
	if place == "" {
		place = e.rec.Place
	}
	return e.world.Spawn(typeID, opts.Variant, place, opts.Name, opts.Attr)
}

// Call dispatches verb to the entity type's behaviour with this entity as
// the actor. Calls on a despawned view return (nil, nil).
func (e *Entity) Call(verb string, args ...any) (result any, err error) {
	if e.Despawned() {
		return nil, nil
	}
	t := e.Type()
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, e.rec.TypeID)
	}
	if !t.Has(verb) {
		return nil, fmt.Errorf("%w: type %q has no %q", ErrUnknownVerb, t.ID, verb)
	}

	e.world.log.WithFields(logrus.Fields{
		"entity": e.rec.ID,
		"type":   t.ID,
		"verb":   verb,
		"name":   e.rec.Name,
	}).Debug("entity call")

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ScriptError{Entity: e.rec.ID, Type: t.ID, Verb: verb, Err: recovered(r)}
		}
	}()

	result, err = t.Call(verb, e, args...)
	if err != nil {
		var se *ScriptError
		if !errors.As(err, &se) {
			err = &ScriptError{Entity: e.rec.ID, Type: t.ID, Verb: verb, Err: err}
		}
	}
	return result, err
}

// Event fires a named event to the type's systems, then the variant's
// systems, then the world's global systems, in that order. Every system
// runs even if an earlier one fails; failures are joined and returned.
func (e *Entity) Event(name string, args ...any) error {
	if e.Despawned() {
		return nil
	}
	var chain []System
	if t := e.Type(); t != nil {
		chain = append(chain, t.Systems...)
	}
	if v := e.Variant(); v != nil {
		chain = append(chain, v.Systems...)
	}
	chain = append(chain, e.world.GlobalSystems...)

	var errs []error
	for _, sys := range chain {
		if err := e.runSystem(sys, name, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Entity) runSystem(sys System, name string, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ScriptError{Entity: e.rec.ID, Type: e.rec.TypeID, Event: name, Err: recovered(r)}
		}
	}()
	if err := sys(name, e, args...); err != nil {
		return &ScriptError{Entity: e.rec.ID, Type: e.rec.TypeID, Event: name, Err: err}
	}
	return nil
}

// Despawn queues the entity for removal and marks this view dead. Inside a
// tick the record stays in the table until the tick ends; outside a tick it
// is removed at once.
func (e *Entity) Despawn() {
	if e.Despawned() {
		e.despawned = true
		return
	}
	e.despawned = true
	e.world.queueRemoval(e.rec.ID)
}

// Label renders "<name> the <variant> from <place>".
func (e *Entity) Label() string {
	variant := e.rec.VariantID
	if v := e.Variant(); v != nil {
		variant = v.Name
	}
	return fmt.Sprintf("%s the %s from %s", e.DisplayName(), variant, e.rec.Place)
}

func (e *Entity) String() string {
	return e.Label()
}

// equalValues compares two normalized attribute values.
func equalValues(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValues(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !equalValues(v, bv[k]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

package engine

import (
	"fmt"
	"strings"

	"github.com/sentientmushes/smadventure/engine/namegen"
)

// Behavior is a verb implementation. The acting entity is always the
// first argument; the rest are verb-specific.
type Behavior func(e *Entity, args ...any) (any, error)

// System reacts to a named event fired on an entity.
type System func(event string, e *Entity, args ...any) error

// VariantDef is the unresolved definition of a variant as content
// declares it.
type VariantDef struct {
	ID       string
	Name     string
	Attr     map[string]any // overrides of the type's base attributes
	Flags    []string
	Unflags  []string       // inherited base flags this variant drops
	Defaults map[string]any // per-entity attributes applied at instantiation
	Systems  []System
}

// TypeDef is the unresolved definition of an entity type.
type TypeDef struct {
	ID        string // empty: assigned by the Registry
	Name      string
	Attr      map[string]any // base attributes inherited by every variant
	Flags     []string       // base flags inherited by every variant
	Defaults  map[string]any // per-entity attributes applied before variant defaults
	Variants  []VariantDef
	Functions map[string]Behavior
	Systems   []System
}

// Variant is a sub-kind of a type. Attr and Flags are fully resolved: every
// base attribute or flag the variant does not override is already copied in.
type Variant struct {
	ID       string
	Name     string
	Attr     map[string]any
	Flags    map[string]struct{}
	Defaults map[string]any
	Systems  []System
}

// HasFlag reports whether the variant carries flag.
func (v *Variant) HasFlag(flag string) bool {
	_, ok := v.Flags[flag]
	return ok
}

// FlagList returns the resolved flags in sorted order.
func (v *Variant) FlagList() []string {
	return sortedKeys(v.Flags)
}

// EntityType is a category of entity: shared attributes, variants, verbs
// and systems.
type EntityType struct {
	ID        string
	Name      string
	Defaults  map[string]any
	Functions map[string]Behavior
	Systems   []System

	variants   map[string]*Variant
	variantIDs []string // declaration order
}

// NewEntityType resolves a definition. Base attributes and flags are
// copied into every variant here, once, so lookups never walk a chain.
func NewEntityType(def TypeDef) (*EntityType, error) {
	if len(def.Variants) == 0 {
		return nil, fmt.Errorf("entity type %q declares no variants", def.Name)
	}

	t := &EntityType{
		ID:        def.ID,
		Name:      def.Name,
		Defaults:  NormalizeMap(def.Defaults),
		Functions: map[string]Behavior{},
		Systems:   append([]System(nil), def.Systems...),
		variants:  make(map[string]*Variant, len(def.Variants)),
	}
	for verb, fn := range def.Functions {
		t.Functions[verb] = fn
	}

	base := NormalizeMap(def.Attr)

	for _, vd := range def.Variants {
		if vd.ID == "" {
			return nil, fmt.Errorf("entity type %q has a variant without id", def.Name)
		}
		if _, dup := t.variants[vd.ID]; dup {
			return nil, fmt.Errorf("entity type %q declares variant %q twice", def.Name, vd.ID)
		}

		v := &Variant{
			ID:       vd.ID,
			Name:     vd.Name,
			Attr:     NormalizeMap(vd.Attr),
			Flags:    map[string]struct{}{},
			Defaults: NormalizeMap(vd.Defaults),
			Systems:  append([]System(nil), vd.Systems...),
		}
		if v.Name == "" {
			v.Name = vd.ID
		}

		for k, val := range base {
			if _, ok := v.Attr[k]; !ok {
				v.Attr[k] = CloneValue(val)
			}
		}

		dropped := map[string]bool{}
		for _, f := range vd.Unflags {
			dropped[f] = true
		}
		for _, f := range def.Flags {
			if !dropped[f] {
				v.Flags[f] = struct{}{}
			}
		}
		for _, f := range vd.Flags {
			v.Flags[f] = struct{}{}
		}

		t.variants[vd.ID] = v
		t.variantIDs = append(t.variantIDs, vd.ID)
	}

	return t, nil
}

func (t *EntityType) String() string {
	return t.Name
}

// Variant returns the variant with the given id, or nil.
func (t *EntityType) Variant(id string) *Variant {
	return t.variants[id]
}

// VariantIDs returns variant ids in declaration order.
func (t *EntityType) VariantIDs() []string {
	return append([]string(nil), t.variantIDs...)
}

// Has reports whether the type defines verb.
func (t *EntityType) Has(verb string) bool {
	_, ok := t.Functions[verb]
	return ok
}

// Call invokes verb with e as the acting entity. A nil entity is a dead
// reference and yields (nil, nil), so chained calls after a death are safe.
func (t *EntityType) Call(verb string, e *Entity, args ...any) (any, error) {
	if e == nil {
		return nil, nil
	}
	fn, ok := t.Functions[verb]
	if !ok {
		return nil, fmt.Errorf("%w: type %q has no %q", ErrUnknownVerb, t.ID, verb)
	}
	return fn(e, args...)
}

// pickVariant resolves "", "*" or a ';'-separated list to one variant id.
func (t *EntityType) pickVariant(rng *RNG, id string) (string, error) {
	if id == "" || id == "*" {
		return t.variantIDs[rng.Intn(len(t.variantIDs))], nil
	}
	choices := splitList(id)
	if len(choices) > 1 {
		id = choices[rng.Intn(len(choices))]
	}
	if _, ok := t.variants[id]; !ok {
		return "", fmt.Errorf("%w: type %q has no variant %q", ErrUnknownVariant, t.ID, id)
	}
	return id, nil
}

// Instantiate builds a fresh record: type defaults, overlaid by variant
// defaults, overlaid by extra. The id is unique among the world's live and
// just-removed entities. The record is not inserted; see World.AddEntity.
func (t *EntityType) Instantiate(w *World, place, variant, name string, extra map[string]any) (*Record, error) {
	vid, err := t.pickVariant(w.RNG, variant)
	if err != nil {
		return nil, err
	}
	v := t.variants[vid]

	attr := CloneMap(t.Defaults)
	for k, val := range v.Defaults {
		attr[k] = CloneValue(val)
	}
	for k, val := range extra {
		attr[k] = CloneValue(Normalize(val))
	}

	if name == "" {
		name = namegen.Generate(w.RNG, w.RNG.Range(6, 15))
	}

	return &Record{
		ID:        w.newID(),
		TypeID:    t.ID,
		Name:      name,
		Place:     place,
		VariantID: vid,
		Attr:      attr,
	}, nil
}

// Registry owns the entity types of a world and the counter that numbers
// types declared without an explicit id.
type Registry struct {
	types map[string]*EntityType
	next  int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]*EntityType{}}
}

// Register adds t, assigning the next counter id if t.ID is empty.
func (r *Registry) Register(t *EntityType) error {
	if t.ID == "" {
		for {
			r.next++
			id := fmt.Sprintf("%d", r.next)
			if _, taken := r.types[id]; !taken {
				t.ID = id
				break
			}
		}
	}
	if _, dup := r.types[t.ID]; dup {
		return fmt.Errorf("entity type %q registered twice", t.ID)
	}
	r.types[t.ID] = t
	return nil
}

// Lookup returns the type with the given id, or nil.
func (r *Registry) Lookup(id string) *EntityType {
	return r.types[id]
}

// All returns every registered type sorted by id.
func (r *Registry) All() []*EntityType {
	out := make([]*EntityType, 0, len(r.types))
	for _, id := range sortedKeys(r.types) {
		out = append(out, r.types[id])
	}
	return out
}

// Choice identifies one type/variant pair.
type Choice struct {
	Type    string
	Variant string
}

// PlayerVariants lists every type/variant pair playable by a human: the
// variant is flagged isPlayer or carries a truthy isPlayer attribute.
func (r *Registry) PlayerVariants() []Choice {
	var out []Choice
	for _, t := range r.All() {
		for _, vid := range t.variantIDs {
			v := t.variants[vid]
			if v.HasFlag("isPlayer") || Truthy(v.Attr["isPlayer"]) {
				out = append(out, Choice{Type: t.ID, Variant: vid})
			}
		}
	}
	return out
}

// splitList splits a ';'-separated choice list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

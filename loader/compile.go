package loader

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/engine/behaviors"
	"github.com/sentientmushes/smadventure/engine/systems"
	"github.com/sentientmushes/smadventure/types"
)

// rawType holds an entity type table before compilation.
type rawType struct {
	id    string
	table *lua.LTable
}

// rawPlace holds a place table before compilation.
type rawPlace struct {
	name  string
	table *lua.LTable
}

// rawItem holds an item table before compilation.
type rawItem struct {
	name  string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively. Entity
// userdata converts to *engine.Entity.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return engine.Normalize(float64(val))
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LUserData:
		if e, ok := val.Value.(*engine.Entity); ok {
			return e
		}
		return nil
	case *lua.LTable:
		// Sequential integer keys starting at 1 make an array.
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// toAttrValue is toGoValue for values stored in attributes: entities are
// stored by id.
func toAttrValue(v lua.LValue) any {
	return attrValue(toGoValue(v))
}

func attrValue(v any) any {
	switch val := v.(type) {
	case *engine.Entity:
		return val.ID()
	case []any:
		for i := range val {
			val[i] = attrValue(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = attrValue(val[k])
		}
		return val
	}
	return v
}

// tableToAnyMap converts a Lua table to a map[string]any, skipping keys.
func tableToAnyMap(tbl *lua.LTable, skip ...string) map[string]any {
	if tbl == nil {
		return nil
	}
	skipped := map[string]bool{}
	for _, k := range skip {
		skipped[k] = true
	}
	m := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && !skipped[string(ks)] {
			m[string(ks)] = toAttrValue(v)
		}
	})
	return m
}

// tableToStrings converts an array table to a string slice.
func tableToStrings(tbl *lua.LTable) []string {
	if tbl == nil {
		return nil
	}
	var out []string
	for i := 1; i <= tbl.MaxN(); i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// tableToCounts converts an item-count table.
func tableToCounts(tbl *lua.LTable) map[string]int {
	counts := map[string]int{}
	if tbl == nil {
		return counts
	}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		if n, ok := v.(lua.LNumber); ok {
			counts[string(ks)] = int(n)
		}
	})
	return counts
}

// compile converts all collected Lua data into world definitions.
func (c *Content) compile(coll *collector) error {
	defs := engine.Defs{Types: engine.NewRegistry()}

	if coll.world != nil {
		defs.Beginning = tableToStrings(getTable(coll.world, "beginning"))
		spawns, err := compileSpawns(getTable(coll.world, "spawns"))
		if err != nil {
			return err
		}
		defs.Spawns = spawns
	}

	for _, raw := range coll.places {
		defs.Places = append(defs.Places, types.Place{
			Name:  raw.name,
			Attr:  tableToAnyMap(raw.table, "items"),
			Items: tableToCounts(getTable(raw.table, "items")),
		})
	}

	for _, raw := range coll.items {
		defs.Items = append(defs.Items, types.ItemType{
			Name:  raw.name,
			Attr:  tableToAnyMap(raw.table, "flags"),
			Flags: tableToStrings(getTable(raw.table, "flags")),
		})
	}

	defs.Paths = append(defs.Paths, coll.paths...)

	for _, raw := range coll.types {
		def, err := c.compileType(raw)
		if err != nil {
			return fmt.Errorf("compiling entity type %s: %w", raw.id, err)
		}
		et, err := engine.NewEntityType(def)
		if err != nil {
			return fmt.Errorf("compiling entity type %s: %w", raw.id, err)
		}
		if err := defs.Types.Register(et); err != nil {
			return err
		}
	}

	for _, v := range coll.globals {
		sys, err := c.system(v)
		if err != nil {
			return fmt.Errorf("compiling global system: %w", err)
		}
		defs.GlobalSystems = append(defs.GlobalSystems, sys)
	}

	c.Defs = defs
	return nil
}

func compileSpawns(tbl *lua.LTable) ([]types.Spawn, error) {
	if tbl == nil {
		return nil, nil
	}
	var out []types.Spawn
	for i := 1; i <= tbl.MaxN(); i++ {
		st, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("spawn %d is not a table", i)
		}
		amount := ""
		switch v := st.RawGetString("amount").(type) {
		case lua.LNumber:
			amount = fmt.Sprint(int(v))
		case lua.LString:
			amount = string(v)
		}
		out = append(out, types.Spawn{
			Place:   getString(st, "place"),
			Type:    getString(st, "type"),
			Variant: getString(st, "variant"),
			Amount:  amount,
		})
	}
	return out, nil
}

func (c *Content) compileType(raw rawType) (engine.TypeDef, error) {
	tbl := raw.table
	def := engine.TypeDef{
		ID:        raw.id,
		Name:      getString(tbl, "name"),
		Attr:      tableToAnyMap(getTable(tbl, "attr")),
		Flags:     tableToStrings(getTable(tbl, "flags")),
		Defaults:  tableToAnyMap(getTable(tbl, "defaults")),
		Functions: map[string]engine.Behavior{},
	}
	if def.Name == "" {
		def.Name = raw.id
	}

	if fns := getTable(tbl, "functions"); fns != nil {
		var err error
		fns.ForEach(func(k, v lua.LValue) {
			if err != nil {
				return
			}
			verb, ok := k.(lua.LString)
			if !ok {
				return
			}
			var b engine.Behavior
			if b, err = c.behavior(v); err == nil {
				def.Functions[string(verb)] = b
			} else {
				err = fmt.Errorf("function %s: %w", verb, err)
			}
		})
		if err != nil {
			return def, err
		}
	}

	sys, err := c.systemList(getTable(tbl, "systems"))
	if err != nil {
		return def, err
	}
	def.Systems = sys

	variants, err := c.compileVariants(getTable(tbl, "variants"))
	if err != nil {
		return def, err
	}
	def.Variants = variants
	return def, nil
}

// compileVariants accepts either an array of tables carrying an id, which
// keeps declaration order, or a table keyed by id, which is sorted.
func (c *Content) compileVariants(tbl *lua.LTable) ([]engine.VariantDef, error) {
	if tbl == nil {
		return nil, nil
	}
	type entry struct {
		id    string
		table *lua.LTable
	}
	var entries []entry
	if tbl.MaxN() > 0 {
		for i := 1; i <= tbl.MaxN(); i++ {
			vt, ok := tbl.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("variant %d is not a table", i)
			}
			entries = append(entries, entry{id: getString(vt, "id"), table: vt})
		}
	} else {
		tbl.ForEach(func(k, v lua.LValue) {
			ks, ok1 := k.(lua.LString)
			vt, ok2 := v.(*lua.LTable)
			if ok1 && ok2 {
				entries = append(entries, entry{id: string(ks), table: vt})
			}
		})
		sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	}

	out := make([]engine.VariantDef, 0, len(entries))
	for _, en := range entries {
		if en.id == "" {
			return nil, fmt.Errorf("variant without id")
		}
		sys, err := c.systemList(getTable(en.table, "systems"))
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", en.id, err)
		}
		name := getString(en.table, "name")
		if name == "" {
			name = en.id
		}
		out = append(out, engine.VariantDef{
			ID:       en.id,
			Name:     name,
			Attr:     tableToAnyMap(getTable(en.table, "attr")),
			Flags:    tableToStrings(getTable(en.table, "flags")),
			Unflags:  tableToStrings(getTable(en.table, "unflags")),
			Defaults: tableToAnyMap(getTable(en.table, "defaults")),
			Systems:  sys,
		})
	}
	return out, nil
}

func (c *Content) systemList(tbl *lua.LTable) ([]engine.System, error) {
	if tbl == nil {
		return nil, nil
	}
	var out []engine.System
	for i := 1; i <= tbl.MaxN(); i++ {
		sys, err := c.system(tbl.RawGetInt(i))
		if err != nil {
			return nil, err
		}
		out = append(out, sys)
	}
	return out, nil
}

// behavior resolves a Lua function or the name of a native behaviour.
func (c *Content) behavior(v lua.LValue) (engine.Behavior, error) {
	switch fn := v.(type) {
	case *lua.LFunction:
		return c.luaBehavior(fn), nil
	case lua.LString:
		if b, ok := behaviors.Library()[string(fn)]; ok {
			return b, nil
		}
		return nil, fmt.Errorf("unknown native behaviour %q", string(fn))
	}
	return nil, fmt.Errorf("expected function or behaviour name, got %s", v.Type())
}

// system resolves a Lua function or the name of a native system.
func (c *Content) system(v lua.LValue) (engine.System, error) {
	switch fn := v.(type) {
	case *lua.LFunction:
		return c.luaSystem(fn), nil
	case lua.LString:
		if s, ok := systems.Library()[string(fn)]; ok {
			return s, nil
		}
		return nil, fmt.Errorf("unknown native system %q", string(fn))
	}
	return nil, fmt.Errorf("expected function or system name, got %s", v.Type())
}

// sortedLuaFiles returns .lua files in a directory, with world.lua first
// and the rest sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var worldFile string
	var others []string
	for _, f := range files {
		if f == "world.lua" {
			worldFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if worldFile != "" {
		return append([]string{worldFile}, others...)
	}
	return others
}

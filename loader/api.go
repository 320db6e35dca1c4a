package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/sentientmushes/smadventure/types"
)

// registerAPI registers the content constructors and the runtime API.
func (c *Content) registerAPI(coll *collector) {
	c.registerConstructors(coll)
	c.registerRuntime()
}

func (c *Content) registerConstructors(coll *collector) {
	L := c.L

	// World { beginning = {...}, spawns = {...} }
	L.SetGlobal("World", L.NewFunction(func(L *lua.LState) int {
		coll.world = L.CheckTable(1)
		return 0
	}))

	// EntityType "id" { ... } is curried: EntityType("id") returns a function taking the table.
	L.SetGlobal("EntityType", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.types = append(coll.types, rawType{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Place "name" { items = {...}, ... }
	L.SetGlobal("Place", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.places = append(coll.places, rawPlace{name: name, table: L.OptTable(1, L.NewTable())})
			return 0
		}))
		return 1
	}))

	// Item "name" { flags = {...}, ... }
	L.SetGlobal("Item", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.items = append(coll.items, rawItem{name: name, table: L.OptTable(1, L.NewTable())})
			return 0
		}))
		return 1
	}))

	// Path { "A", "B", ... }
	L.SetGlobal("Path", L.NewFunction(func(L *lua.LState) int {
		places := tableToStrings(L.CheckTable(1))
		if len(places) < 2 {
			L.ArgError(1, "a path needs at least two places")
		}
		coll.paths = append(coll.paths, types.Path(places))
		return 0
	}))

	// GlobalSystem(fn) or GlobalSystem "name"
	L.SetGlobal("GlobalSystem", L.NewFunction(func(L *lua.LState) int {
		v := L.CheckAny(1)
		if v.Type() != lua.LTFunction && v.Type() != lua.LTString {
			L.ArgError(1, "function or system name expected")
		}
		coll.globals = append(coll.globals, v)
		return 0
	}))

	levels := L.NewTable()
	for name, lvl := range map[string]types.Level{
		"VERBOSE":     types.LevelVerbose,
		"DEBUG":       types.LevelDebug,
		"INFO":        types.LevelInfo,
		"INTERESTING": types.LevelInteresting,
		"IMPORTANT":   types.LevelImportant,
		"EVENT":       types.LevelEvent,
		"SYSTEM":      types.LevelSystem,
	} {
		levels.RawSetString(name, lua.LNumber(lvl))
	}
	L.SetGlobal("Level", levels)
}

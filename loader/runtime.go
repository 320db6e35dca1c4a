package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

const entityTypeName = "Entity"

var errUnbound = errors.New("content is not bound to a world")

func (c *Content) registerRuntime() {
	L := c.L

	mt := L.NewTypeMetatable(entityTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), c.entityMethods()))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkEntity(L, 1).Label()))
		return 1
	}))
	L.SetField(mt, "__eq", L.NewFunction(func(L *lua.LState) int {
		a, b := checkEntity(L, 1), checkEntity(L, 2)
		L.Push(lua.LBool(a.ID() == b.ID()))
		return 1
	}))

	L.SetGlobal("world", L.SetFuncs(L.NewTable(), c.worldFuncs()))

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		c.log.WithField("source", "lua").Info(strings.Join(parts, "\t"))
		return 0
	}))

	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("random", L.NewFunction(c.luaRandom))
	}
}

// luaBehavior wraps a Lua function as a behaviour. The function receives
// the entity followed by the call arguments; a controller argument arrives
// as its name. Its first return value is the result.
func (c *Content) luaBehavior(fn *lua.LFunction) engine.Behavior {
	return func(e *engine.Entity, args ...any) (any, error) {
		if c.L == nil {
			return nil, errors.New("lua state closed")
		}
		largs := make([]lua.LValue, 0, len(args)+1)
		largs = append(largs, c.entityValue(e))
		for _, a := range args {
			largs = append(largs, c.toLua(a))
		}
		if err := c.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
			return nil, err
		}
		ret := c.L.Get(-1)
		c.L.Pop(1)
		return toGoValue(ret), nil
	}
}

// luaSystem wraps a Lua function as a system called with the event name,
// the entity and the event arguments.
func (c *Content) luaSystem(fn *lua.LFunction) engine.System {
	return func(event string, e *engine.Entity, args ...any) error {
		if c.L == nil {
			return errors.New("lua state closed")
		}
		largs := make([]lua.LValue, 0, len(args)+2)
		largs = append(largs, lua.LString(event), c.entityValue(e))
		for _, a := range args {
			largs = append(largs, c.toLua(a))
		}
		return c.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, largs...)
	}
}

func (c *Content) entityValue(e *engine.Entity) lua.LValue {
	if e == nil {
		return lua.LNil
	}
	ud := c.L.NewUserData()
	ud.Value = e
	c.L.SetMetatable(ud, c.L.GetTypeMetatable(entityTypeName))
	return ud
}

// toLua converts a Go value to Lua.
func (c *Content) toLua(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case *engine.Entity:
		return c.entityValue(val)
	case engine.Controller:
		return lua.LString(val.ControllerName())
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := c.L.NewTable()
		for _, item := range val {
			tbl.Append(c.toLua(item))
		}
		return tbl
	case []string:
		tbl := c.L.NewTable()
		for _, item := range val {
			tbl.Append(lua.LString(item))
		}
		return tbl
	case map[string]any:
		tbl := c.L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, c.toLua(item))
		}
		return tbl
	case map[string]int:
		tbl := c.L.NewTable()
		for k, n := range val {
			tbl.RawSetString(k, lua.LNumber(n))
		}
		return tbl
	case types.Level:
		return lua.LNumber(val)
	}
	if f, ok := engine.AsFloat(v); ok {
		return lua.LNumber(f)
	}
	return lua.LString(fmt.Sprint(v))
}

func checkEntity(L *lua.LState, n int) *engine.Entity {
	ud := L.CheckUserData(n)
	if e, ok := ud.Value.(*engine.Entity); ok {
		return e
	}
	L.ArgError(n, "entity expected")
	return nil
}

// optEntity accepts entity userdata, an id or a name.
func (c *Content) optEntity(L *lua.LState, n int) *engine.Entity {
	switch v := L.Get(n).(type) {
	case *lua.LUserData:
		if e, ok := v.Value.(*engine.Entity); ok && !e.Despawned() {
			return e
		}
	case lua.LString:
		if c.world == nil {
			return nil
		}
		if e := c.world.FromID(string(v)); e != nil {
			return e
		}
		return c.world.FromName(string(v))
	}
	return nil
}

func (c *Content) pushEntities(L *lua.LState, list []*engine.Entity) {
	tbl := L.NewTable()
	for _, e := range list {
		tbl.Append(c.entityValue(e))
	}
	L.Push(tbl)
}

// restArgs converts Lua arguments from index n on.
func restArgs(L *lua.LState, n int) []any {
	var out []any
	for i := n; i <= L.GetTop(); i++ {
		out = append(out, toGoValue(L.Get(i)))
	}
	return out
}

func (c *Content) entityMethods() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"id": func(L *lua.LState) int {
			L.Push(lua.LString(checkEntity(L, 1).ID()))
			return 1
		},
		"name": func(L *lua.LState) int {
			L.Push(lua.LString(checkEntity(L, 1).Name()))
			return 1
		},
		"set_name": func(L *lua.LState) int {
			checkEntity(L, 1).SetName(L.CheckString(2))
			return 0
		},
		"display_name": func(L *lua.LState) int {
			L.Push(lua.LString(checkEntity(L, 1).DisplayName()))
			return 1
		},
		"label": func(L *lua.LState) int {
			L.Push(lua.LString(checkEntity(L, 1).Label()))
			return 1
		},
		"place": func(L *lua.LState) int {
			L.Push(lua.LString(checkEntity(L, 1).Place()))
			return 1
		},
		"set_place": func(L *lua.LState) int {
			checkEntity(L, 1).SetPlace(L.CheckString(2))
			return 0
		},
		"variant": func(L *lua.LState) int {
			e := checkEntity(L, 1)
			if v := e.Variant(); v != nil {
				L.Push(lua.LString(v.ID))
			} else {
				L.Push(lua.LNil)
			}
			return 1
		},
		"set_variant": func(L *lua.LState) int {
			if err := checkEntity(L, 1).SetVariant(L.CheckString(2)); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"type": func(L *lua.LState) int {
			L.Push(lua.LString(checkEntity(L, 1).TypeID()))
			return 1
		},
		"despawned": func(L *lua.LState) int {
			L.Push(lua.LBool(checkEntity(L, 1).Despawned()))
			return 1
		},
		"get": func(L *lua.LState) int {
			L.Push(c.toLua(checkEntity(L, 1).Get(L.CheckString(2))))
			return 1
		},
		"set": func(L *lua.LState) int {
			checkEntity(L, 1).Set(L.CheckString(2), toAttrValue(L.Get(3)))
			return 0
		},
		"delete": func(L *lua.LState) int {
			L.Push(c.toLua(checkEntity(L, 1).Delete(L.CheckString(2))))
			return 1
		},
		"pointer": func(L *lua.LState) int {
			L.Push(c.entityValue(checkEntity(L, 1).Pointer(L.CheckString(2))))
			return 1
		},
		"set_pointer": func(L *lua.LState) int {
			checkEntity(L, 1).SetPointer(L.CheckString(2), c.optEntity(L, 3))
			return 0
		},
		"append_pointer": func(L *lua.LState) int {
			if other := c.optEntity(L, 3); other != nil {
				checkEntity(L, 1).AppendPointer(L.CheckString(2), other)
			}
			return 0
		},
		"pointer_list": func(L *lua.LState) int {
			var list []*engine.Entity
			for other := range checkEntity(L, 1).PointerList(L.CheckString(2)) {
				list = append(list, other)
			}
			c.pushEntities(L, list)
			return 1
		},
		"spawn": func(L *lua.LState) int {
			e := checkEntity(L, 1)
			opts := L.OptTable(2, L.NewTable())
			spawned, err := e.Spawn(engine.SpawnOptions{
				Type:    getString(opts, "type"),
				Variant: getString(opts, "variant"),
				Place:   getString(opts, "place"),
				Name:    getString(opts, "name"),
				Attr:    tableToAnyMap(getTable(opts, "attr")),
			})
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(c.entityValue(spawned))
			return 1
		},
		"call": func(L *lua.LState) int {
			e := checkEntity(L, 1)
			res, err := e.Call(L.CheckString(2), restArgs(L, 3)...)
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(c.toLua(res))
			return 1
		},
		"event": func(L *lua.LState) int {
			e := checkEntity(L, 1)
			if err := e.Event(L.CheckString(2), restArgs(L, 3)...); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"despawn": func(L *lua.LState) int {
			checkEntity(L, 1).Despawn()
			return 0
		},
	}
}

// bound returns the bound world or raises a Lua error.
func (c *Content) bound(L *lua.LState) *engine.World {
	if c.world == nil {
		L.RaiseError("%s", errUnbound.Error())
	}
	return c.world
}

func placeList(v lua.LValue) []string {
	switch p := v.(type) {
	case lua.LString:
		return []string{string(p)}
	case *lua.LTable:
		return tableToStrings(p)
	}
	return nil
}

func (c *Content) worldFuncs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"broadcast": func(L *lua.LState) int {
			w := c.bound(L)
			w.Broadcast(types.Level(L.CheckInt(1)), restArgs(L, 2)...)
			return 0
		},
		"broadcast_in": func(L *lua.LState) int {
			w := c.bound(L)
			w.BroadcastIn(types.Level(L.CheckInt(1)), placeList(L.Get(2)), restArgs(L, 3)...)
			return 0
		},
		"find_place": func(L *lua.LState) int {
			p := c.bound(L).FindPlace(L.CheckString(1))
			if p == nil {
				L.Push(lua.LNil)
				return 1
			}
			tbl := L.NewTable()
			tbl.RawSetString("name", lua.LString(p.Name))
			tbl.RawSetString("attr", c.toLua(p.Attr))
			tbl.RawSetString("items", c.toLua(p.Items))
			L.Push(tbl)
			return 1
		},
		"find_item": func(L *lua.LState) int {
			it := c.bound(L).FindItem(L.CheckString(1))
			if it == nil {
				L.Push(lua.LNil)
				return 1
			}
			tbl := L.NewTable()
			tbl.RawSetString("name", lua.LString(it.Name))
			tbl.RawSetString("attr", c.toLua(it.Attr))
			tbl.RawSetString("flags", c.toLua(it.Flags))
			L.Push(tbl)
			return 1
		},
		"place_items": func(L *lua.LState) int {
			p := c.bound(L).FindPlace(L.CheckString(1))
			if p == nil {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(c.toLua(p.Items))
			return 1
		},
		"add_place_item": func(L *lua.LState) int {
			err := c.bound(L).AddPlaceItem(L.CheckString(1), L.CheckString(2), L.OptInt(3, 1))
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"from_id": func(L *lua.LState) int {
			L.Push(c.entityValue(c.bound(L).FromID(L.CheckString(1))))
			return 1
		},
		"from_name": func(L *lua.LState) int {
			L.Push(c.entityValue(c.bound(L).FromName(L.CheckString(1))))
			return 1
		},
		"adjacent": func(L *lua.LState) int {
			L.Push(c.toLua(c.bound(L).Adjacent(L.CheckString(1))))
			return 1
		},
		"all_in_place": func(L *lua.LState) int {
			c.pushEntities(L, c.bound(L).AllInPlace(L.CheckString(1)))
			return 1
		},
		"random": func(L *lua.LState) int {
			L.Push(lua.LNumber(c.bound(L).RNG.Float64()))
			return 1
		},
		"roll": func(L *lua.LState) int {
			L.Push(lua.LNumber(c.bound(L).RNG.Roll(L.CheckInt(1))))
			return 1
		},
		// weighted({3, 1}) returns 1 three times as often as 2.
		"weighted": func(L *lua.LState) int {
			weights := make([]int, 0)
			tbl := L.CheckTable(1)
			for i := 1; i <= tbl.MaxN(); i++ {
				n, ok := tbl.RawGetInt(i).(lua.LNumber)
				if !ok || n < 1 {
					L.ArgError(1, "positive weights expected")
				}
				weights = append(weights, int(n))
			}
			if len(weights) == 0 {
				L.ArgError(1, "no weights")
			}
			L.Push(lua.LNumber(c.bound(L).RNG.WeightedSelect(weights) + 1))
			return 1
		},
		"chance": func(L *lua.LState) int {
			L.Push(lua.LBool(c.bound(L).RNG.Chance(float64(L.CheckNumber(1)))))
			return 1
		},
		"ticks": func(L *lua.LState) int {
			L.Push(lua.LNumber(c.bound(L).Ticks()))
			return 1
		},
		"log": func(L *lua.LState) int {
			entry := c.log.WithField("source", "lua")
			if c.world != nil {
				entry = entry.WithField("tick", c.world.Ticks())
			}
			lvl, err := logrus.ParseLevel(L.CheckString(1))
			if err != nil {
				lvl = logrus.InfoLevel
			}
			entry.Log(lvl, fmt.Sprint(restArgs(L, 2)...))
			return 0
		},
	}
}

// luaRandom mirrors math.random on top of the world RNG so content stays
// deterministic under a seed.
func (c *Content) luaRandom(L *lua.LState) int {
	rng := c.bound(L).RNG
	switch L.GetTop() {
	case 0:
		L.Push(lua.LNumber(rng.Float64()))
	case 1:
		L.Push(lua.LNumber(rng.Range(1, L.CheckInt(1))))
	default:
		L.Push(lua.LNumber(rng.Range(L.CheckInt(1), L.CheckInt(2))))
	}
	return 1
}

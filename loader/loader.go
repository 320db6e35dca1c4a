// Package loader loads Lua world content: entity types, places, items,
// paths and spawns. Content functions stay in the Lua VM and run as entity
// behaviours and systems, so the VM lives as long as the Content.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

// collector accumulates Lua definitions during file execution.
type collector struct {
	world   *lua.LTable
	types   []rawType
	places  []rawPlace
	items   []rawItem
	paths   []types.Path
	globals []lua.LValue
}

// Content is loaded world content bound to a live Lua VM. It is not safe
// for concurrent use; calls must be serialized with the world they drive.
type Content struct {
	Defs engine.Defs

	L     *lua.LState
	log   logrus.FieldLogger
	world *engine.World
}

// Option configures Load.
type Option func(*Content)

// WithLogger sets the logger used for Lua print output and runtime
// warnings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Content) { c.log = log }
}

// Load reads all .lua files from dir, compiles them into world
// definitions and validates references.
func Load(dir string, opts ...Option) (*Content, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading content directory %s: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	luaFiles = sortedLuaFiles(luaFiles)

	c := newContent(opts)
	coll := &collector{}
	c.registerAPI(coll)

	for _, f := range luaFiles {
		if err := c.L.DoFile(filepath.Join(dir, f)); err != nil {
			c.Close()
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}
	if err := c.finish(coll); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// LoadString compiles a single chunk of Lua source.
func LoadString(name, src string, opts ...Option) (*Content, error) {
	c := newContent(opts)
	coll := &collector{}
	c.registerAPI(coll)

	fn, err := c.L.Load(strings.NewReader(src), name)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	c.L.Push(fn)
	if err := c.L.PCall(0, lua.MultRet, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("executing %s: %w", name, err)
	}
	if err := c.finish(coll); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func newContent(opts []Option) *Content {
	c := &Content{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	c.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(c.L)
	sandbox(c.L)
	return c
}

func (c *Content) finish(coll *collector) error {
	if err := c.compile(coll); err != nil {
		return fmt.Errorf("compiling content: %w", err)
	}
	return validate(c.Defs)
}

// NewWorld builds a world from the content and binds the Lua world API
// to it.
func (c *Content) NewWorld(opts ...engine.Option) *engine.World {
	w := engine.New(c.Defs, opts...)
	c.Bind(w)
	return w
}

// Bind points the Lua world API at w.
func (c *Content) Bind(w *engine.World) {
	c.world = w
}

// Close releases the Lua VM. Behaviours defined in Lua fail afterwards.
func (c *Content) Close() {
	if c.L != nil {
		c.L.Close()
		c.L = nil
	}
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	// print, type, tostring, tonumber, pairs, ipairs, pcall, error
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// math.random is rebound to the world RNG once the API is registered.
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
	}
}

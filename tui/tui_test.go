package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/game"
	"github.com/sentientmushes/smadventure/loader"
	"github.com/sentientmushes/smadventure/types"
)

const testWorld = `
World { beginning = { "Den" } }

Place "Den" { items = { bone = 2 } }
Place "Grove" {}
Path { "Den", "Grove" }

Item "bone" {}

EntityType "wolf" {
  name = "Wolf",
  attr = { living = true, agility = 1, speed = 1, strength = 5 },
  defaults = { health = 20 },
  variants = { { id = "grey", name = "grey wolf", flags = { "isPlayer" } } },
  functions = {
    init = "creature.init",
    tick = "creature.tick",
    player_move = "creature.move",
    pick_up = "creature.pick_up",
  },
}
`

func newTestModel(t *testing.T) Model {
	t.Helper()
	log, _ := test.NewNullLogger()
	content, err := loader.LoadString("test.lua", testWorld, loader.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(content.Close)

	w := content.NewWorld(engine.WithSeed(3), engine.WithLogger(log),
		engine.WithHub(broadcast.New(broadcast.WithLogger(log), broadcast.WithPace(0))))
	m := New(game.New(w, game.DefaultConfig(), log), "Rex")
	m.slots = game.Slots{Dir: t.TempDir()}
	t.Cleanup(m.Close)
	return m
}

// enter submits a line and returns the updated model.
func enter(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)
	next, _ := m.handleEnter()
	return next.(Model)
}

func hasLine(m Model, kind lineKind, prefix string) bool {
	for _, rl := range m.rawLines {
		if rl.kind == kind && strings.HasPrefix(rl.text, prefix) {
			return true
		}
	}
	return false
}

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"Unknown command 'dance'! Try 'list'.", kindError},
		{"Syntax: move <place>", kindError},
		{"No such place!", kindError},
		{"Join first!", kindError},
		{"It isn't your turn yet; it's Blue's turn right now!", kindError},
		{"Blue is not here!", kindError},
		{"stone is not a weapon!", kindError},
		{"Welcome, Rex! You are a grey wolf at Den.", kindReply},
		{"You have 2 bones.", kindReply},
		{"Pong!", kindReply},
	}
	for _, tt := range tests {
		if got := classifyReply(tt.line); got != tt.want {
			t.Errorf("classifyReply(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		level types.Level
		want  lineKind
	}{
		{types.LevelInfo, kindNearby},
		{types.LevelImportant, kindNearby},
		{types.LevelEvent, kindEvent},
		{types.LevelSystem, kindWorld},
	}
	for _, tt := range tests {
		if got := kindFor(tt.level); got != tt.want {
			t.Errorf("kindFor(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 80, "short"},
		{"hello world", 5, "hello\nworld"},
		{"Rex the grey wolf from Den has moved with success to Grove!", 30,
			"Rex the grey wolf from Den has\nmoved with success to Grove!"},
		{"Rex the grey wolf from Den has moved with success to Grove!", 29,
			"Rex the grey wolf from Den\nhas moved with success to\nGrove!"},
		{"", 80, ""},
		{"a b c d e", 3, "a b\nc d\ne"},
	}
	for _, tt := range tests {
		if got := wordWrap(tt.text, tt.width); got != tt.want {
			t.Errorf("wordWrap(%q, %d) =\n  %q\nwant:\n  %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		st   game.Status
		want string
	}{
		{game.Status{Tick: 2, Turn: "(nobody)"}, " Rex | not joined, type 'join' to play"},
		{game.Status{Player: "Rex", Place: "Den", Health: 20, Alive: true}, " Rex | Den | HP 20.0"},
		{game.Status{Player: "Rex", Place: "Grove"}, " Rex | dead at Grove"},
	}
	for _, tt := range tests {
		if got := statusLeft(tt.st, "Rex"); got != tt.want {
			t.Errorf("statusLeft(%+v) = %q, want %q", tt.st, got, tt.want)
		}
	}
	if got := statusRight(game.Status{Tick: 4, Turn: "Blue"}); got != "Turn: Blue | T:4 " {
		t.Errorf("statusRight = %q", got)
	}
}

func TestRecall_Older(t *testing.T) {
	r := newRecall(5)
	r.add("join")
	r.add("move Grove")
	r.add("pickup bone")

	for _, want := range []string{"pickup bone", "move Grove", "join", "join"} {
		got, ok := r.older("")
		if !ok || got != want {
			t.Errorf("older() = %q (ok=%v), want %q", got, ok, want)
		}
	}
}

func TestRecall_NewerRestoresDraft(t *testing.T) {
	r := newRecall(5)
	r.add("join")
	r.add("pass")

	r.older("attack Gr")
	r.older("")

	if got, ok := r.newer(); !ok || got != "pass" {
		t.Errorf("newer() = %q (ok=%v), want pass", got, ok)
	}
	if got, ok := r.newer(); !ok || got != "attack Gr" {
		t.Errorf("newer() past the newest = %q (ok=%v), want the draft", got, ok)
	}
	if _, ok := r.newer(); ok {
		t.Error("expected nothing once back at the draft")
	}
}

func TestRecall_Empty(t *testing.T) {
	r := newRecall(5)
	if _, ok := r.older("x"); ok {
		t.Error("expected false on empty history")
	}
	if _, ok := r.newer(); ok {
		t.Error("expected false on empty history")
	}
}

func TestRecall_LimitAndSkips(t *testing.T) {
	r := newRecall(2)
	r.add("a")
	r.add("b")
	r.add("b")
	r.add("again")
	r.add("G")
	r.add("c")

	if len(r.lines) != 2 {
		t.Fatalf("expected 2 entries, got %v", r.lines)
	}
	if got, _ := r.older(""); got != "c" {
		t.Errorf("expected c, got %q", got)
	}
	if got, _ := r.older(""); got != "b" {
		t.Errorf("expected b, got %q", got)
	}
}

func TestRecall_AddStopsBrowsing(t *testing.T) {
	r := newRecall(5)
	r.add("join")
	r.add("pass")

	r.older("")
	r.older("")
	r.add("paths")
	if got, _ := r.older(""); got != "paths" {
		t.Errorf("expected the newest entry after add, got %q", got)
	}
}

func TestHandleMeta_Quit(t *testing.T) {
	m := newTestModel(t)
	for _, cmd := range []string{"/quit", "/exit"} {
		if _, quit := m.handleMeta(cmd); !quit {
			t.Errorf("expected quit=true for %s", cmd)
		}
	}
}

func TestHandleMeta_SaveAndLoad(t *testing.T) {
	m := newTestModel(t)
	m = enter(t, m, "join")

	output, quit := m.handleMeta("/save test")
	if quit || len(output) == 0 || output[0] != "World saved to test." {
		t.Fatalf("save = %v (quit=%v)", output, quit)
	}

	m = enter(t, m, "move Grove")
	if st := m.session.Status("Rex"); st.Place != "Grove" {
		t.Fatalf("expected Rex in Grove, got %+v", st)
	}

	output, _ = m.handleMeta("/load test")
	if len(output) == 0 || !strings.HasPrefix(output[0], "World loaded from test") {
		t.Fatalf("load = %v", output)
	}
	if st := m.session.Status("Rex"); st.Place != "Den" {
		t.Errorf("expected Rex back in Den, got %+v", st)
	}
}

func TestHandleMeta_LoadNonexistent(t *testing.T) {
	m := newTestModel(t)
	output, quit := m.handleMeta("/load nonexistent")
	if quit {
		t.Error("load should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Load failed") {
		t.Errorf("expected load failure, got %v", output)
	}
}

func TestHandleMeta_Help(t *testing.T) {
	m := newTestModel(t)
	output, quit := m.handleMeta("/help")
	if quit {
		t.Error("help should not quit")
	}
	joined := strings.Join(output, "\n")
	for _, expected := range []string{"/save", "/load", "/tick", "/as", "join", "pass"} {
		if !strings.Contains(joined, expected) {
			t.Errorf("expected %q in help output", expected)
		}
	}
}

func TestHandleMeta_Unknown(t *testing.T) {
	m := newTestModel(t)
	output, quit := m.handleMeta("/bogus")
	if quit {
		t.Error("unknown command should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Unknown command") {
		t.Errorf("expected unknown command message, got %v", output)
	}
}

func TestHandleMeta_TickAndStatus(t *testing.T) {
	m := newTestModel(t)
	output, _ := m.handleMeta("/tick")
	if len(output) == 0 || output[0] != "Tick 1 done." {
		t.Errorf("tick = %v", output)
	}

	joined := strings.Join(func() []string { out, _ := m.handleMeta("/status"); return out }(), "\n")
	for _, want := range []string{"Tick: 1", "Turn: (nobody)", "Rotation: (tick)", "Rex has not joined."} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in status:\n%s", want, joined)
		}
	}
}

func TestHandleMeta_As(t *testing.T) {
	m := newTestModel(t)
	output, _ := m.handleMeta("/as Blue")
	if m.player != "Blue" || output[0] != "Now playing as Blue." {
		t.Errorf("player = %q, output = %v", m.player, output)
	}
	if output, _ = m.handleMeta("/as"); output[0] != "Playing as Blue." {
		t.Errorf("output = %v", output)
	}
}

func TestHandleEnter_Command(t *testing.T) {
	m := newTestModel(t)
	m = enter(t, m, "join")

	if !hasLine(m, kindInput, "> join") {
		t.Error("expected the input echoed")
	}
	if !hasLine(m, kindReply, "Welcome, Rex! You are a grey wolf at Den.") {
		t.Errorf("expected a welcome reply, got %+v", m.rawLines)
	}
	if !hasLine(m, kindWorld, "A new player joined: Rex") {
		t.Errorf("expected the join broadcast, got %+v", m.rawLines)
	}

	m = enter(t, m, "pickup bone")
	if !hasLine(m, kindNearby, "Rex picked up 1 bone.") {
		t.Errorf("expected the pickup seen nearby, got %+v", m.rawLines)
	}

	m = enter(t, m, "move Nowhere")
	if !hasLine(m, kindError, "No such place!") {
		t.Errorf("expected an error line, got %+v", m.rawLines)
	}
}

func TestHandleEnter_Again(t *testing.T) {
	m := newTestModel(t)
	m = enter(t, m, "g")
	if !hasLine(m, kindMeta, "Nothing to repeat.") {
		t.Error("expected nothing to repeat")
	}

	m = enter(t, m, "join")
	m = enter(t, m, "again")
	if !hasLine(m, kindError, "There is already a player with the name 'Rex'!") {
		t.Errorf("expected the repeated join refused, got %+v", m.rawLines)
	}
}

func TestUpdate_PollPicksUpBroadcasts(t *testing.T) {
	m := newTestModel(t)
	m.session.World().Broadcast(types.LevelEvent, "The ground shakes!")

	next, cmd := m.Update(pollMsg{})
	if cmd == nil {
		t.Error("expected polling to continue")
	}
	if !hasLine(next.(Model), kindEvent, "The ground shakes!") {
		t.Errorf("expected the broadcast shown, got %+v", next.(Model).rawLines)
	}
}

func TestUpdate_BroadcastMsg(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(broadcastMsg{level: types.LevelSystem, text: "Tick 3 finished."})
	if !hasLine(next.(Model), kindWorld, "Tick 3 finished.") {
		t.Errorf("expected the broadcast shown, got %+v", next.(Model).rawLines)
	}
}

func TestAppendOutput_Scrollback(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < scrollback+10; i++ {
		m = m.appendOutput(outputMsg{lines: []rawLine{{text: fmt.Sprintf("line %d", i), kind: kindEvent}}})
	}
	if len(m.rawLines) != scrollback {
		t.Fatalf("kept %d lines, want %d", len(m.rawLines), scrollback)
	}
	if m.rawLines[0].text != "line 10" {
		t.Errorf("oldest kept line = %q, want line 10", m.rawLines[0].text)
	}
}

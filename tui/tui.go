// Package tui provides a Bubble Tea terminal UI for a game session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/game"
	"github.com/sentientmushes/smadventure/types"
)

const pollInterval = 150 * time.Millisecond

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text string
	kind lineKind
}

// tray collects world-wide broadcasts with their levels.
type tray struct {
	mu   sync.Mutex
	msgs []broadcast.Message
}

func (t *tray) Deliver(_ context.Context, m broadcast.Message) (bool, error) {
	t.mu.Lock()
	t.msgs = append(t.msgs, m)
	t.mu.Unlock()
	return true, nil
}

func (t *tray) drain() []broadcast.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.msgs
	t.msgs = nil
	return out
}

// Model is the Bubble Tea model for the game TUI.
type Model struct {
	session *game.Session
	player  string
	events  *tray
	// flush delivers queued broadcasts on every poll. Off when a hub
	// loop runs elsewhere.
	flush bool

	viewport viewport.Model
	input    textinput.Model
	history  *recall

	rawLines []rawLine // accumulated lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	quitting bool
	lastCmd  string
	slots    game.Slots
}

// pollMsg asks the model to pick up delivered broadcasts.
type pollMsg struct{}

// broadcastMsg is one world-wide broadcast sent in by the hub.
type broadcastMsg struct {
	level types.Level
	text  string
}

// outputMsg carries lines into the Update loop.
type outputMsg struct {
	input string // echoed player input
	lines []rawLine
}

// New creates a TUI model acting as player. It subscribes to world-wide
// broadcasts; Close releases the subscription.
func New(s *game.Session, player string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	events := &tray{}
	s.World().Hub.Subscribe("tui", events, broadcast.Filter{Min: types.LevelEvent})

	return Model{
		session: s,
		player:  player,
		events:  events,
		flush:   true,
		input:   ti,
		history: newRecall(100),
		slots:   game.DefaultSlots(),
	}
}

// Close unsubscribes the model from the world's broadcasts.
func (m Model) Close() {
	m.session.World().Hub.Unsubscribe("tui")
}

// Run starts the Bubble Tea program. The caller runs the hub's delivery
// loop; world-wide broadcasts reach the program through Send.
func Run(ctx context.Context, s *game.Session, player string) error {
	m := New(s, player)
	defer m.Close()
	m.flush = false
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	s.World().Hub.Subscribe("tui", broadcast.ChannelFunc(func(_ context.Context, msg broadcast.Message) (bool, error) {
		p.Send(broadcastMsg{level: msg.Level, text: msg.Text})
		return true, nil
	}), broadcast.Filter{Min: types.LevelEvent})

	_, err := p.Run()
	return err
}

// Init shows the banner and starts polling for broadcasts.
func (m Model) Init() tea.Cmd {
	banner := outputMsg{lines: []rawLine{
		{text: "Sentient Mushes: Adventure", kind: kindWorld},
		{text: "[Type 'join' to play, 'quickstart' to learn how, or /help.]", kind: kindMeta},
	}}
	return tea.Batch(textinput.Blink, func() tea.Msg { return banner }, poll())
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

// Update handles messages (key presses, window resize, game output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.older(m.input.Value()); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.newer(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case pollMsg:
		if lines := m.collect(); len(lines) > 0 {
			m = m.appendOutput(outputMsg{lines: lines})
		}
		return m, poll()

	case broadcastMsg:
		m = m.appendOutput(outputMsg{lines: []rawLine{{text: msg.text, kind: kindFor(msg.level)}}})

	case outputMsg:
		m = m.appendOutput(msg)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// collect gathers delivered broadcasts: world-wide events first, then
// what the active player saw nearby.
func (m Model) collect() []rawLine {
	if m.flush {
		m.session.World().Hub.Flush(context.Background())
	}
	var lines []rawLine
	for _, msg := range m.events.drain() {
		lines = append(lines, rawLine{text: msg.Text, kind: kindFor(msg.Level)})
	}
	for _, text := range m.session.Drain(m.player) {
		lines = append(lines, rawLine{text: text, kind: kindNearby})
	}
	return lines
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.add(input)

	// Handle "again" / "g".
	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if m.lastCmd == "" {
			m = m.appendOutput(outputMsg{input: input, lines: meta("Nothing to repeat.")})
			return m, nil
		}
		input = m.lastCmd
	} else if !strings.HasPrefix(input, "/") {
		m.lastCmd = input
	}

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(outputMsg{input: input, lines: meta(output...)})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	var lines []rawLine
	for _, reply := range m.session.Exec(m.player, input) {
		lines = append(lines, rawLine{text: reply, kind: classifyReply(reply)})
	}
	lines = append(lines, m.collect()...)
	m = m.appendOutput(outputMsg{input: input, lines: lines})
	return m, nil
}

func meta(texts ...string) []rawLine {
	lines := make([]rawLine, len(texts))
	for i, t := range texts {
		lines[i] = rawLine{text: t, kind: kindMeta}
	}
	return lines
}

// scrollback bounds the kept output; broadcasts keep arriving while the
// game runs.
const scrollback = 2000

// appendOutput adds lines to the scrollback and refreshes the viewport. A
// submitted command is echoed first and followed by a blank line.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: "> " + msg.input, kind: kindInput})
	}
	m.rawLines = append(m.rawLines, msg.lines...)
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{})
	}
	if over := len(m.rawLines) - scrollback; over > 0 {
		m.rawLines = append(m.rawLines[:0:0], m.rawLines[over:]...)
	}

	m.refreshViewport()
	return m
}

// refreshViewport re-wraps and re-styles the scrollback at the current
// width. It follows new output unless the user scrolled up to read.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()

	width := max(m.width, 10)
	styled := make([]string, len(m.rawLines))
	for i, rl := range m.rawLines {
		if rl.text != "" {
			styled[i] = renderLineKind(wordWrap(rl.text, width), rl.kind)
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

// wordWrap breaks text at spaces so no line is wider than width cells.
// Words wider than a line are left whole.
func wordWrap(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wLen := lipgloss.Width(word)
		switch {
		case i == 0:
			lineLen = wLen
		case lineLen+1+wLen > width:
			result.WriteString("\n")
			lineLen = wLen
		default:
			result.WriteString(" ")
			lineLen += 1 + wLen
		}
		result.WriteString(word)
	}
	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/tick":
		m.session.Tick()
		return []string{fmt.Sprintf("Tick %d done.", m.session.World().Ticks())}, false

	case "/as":
		if arg == "" {
			return []string{fmt.Sprintf("Playing as %s.", m.player)}, false
		}
		m.player = arg
		m.lastCmd = ""
		return []string{fmt.Sprintf("Now playing as %s.", arg)}, false

	case "/status":
		return m.cmdStatus(), false

	case "/help":
		return m.cmdHelp(), false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(name string) []string {
	if err := m.session.SaveFile(m.slots.Path(name)); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}
	return []string{fmt.Sprintf("World saved to %s.", m.slots.Name(name))}
}

func (m *Model) cmdLoad(name string) []string {
	if err := m.session.LoadFile(m.slots.Path(name)); err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}
	return []string{fmt.Sprintf("World loaded from %s (tick %d).", m.slots.Name(name), m.session.World().Ticks())}
}

func (m *Model) cmdStatus() []string {
	st := m.session.Status(m.player)
	rotation := m.session.Rotation()
	for i, name := range rotation {
		if name == "" {
			rotation[i] = "(tick)"
		}
	}
	output := []string{
		fmt.Sprintf("Tick: %d", st.Tick),
		fmt.Sprintf("Turn: %s", st.Turn),
		fmt.Sprintf("Rotation: %s", strings.Join(rotation, ", ")),
	}
	if st.Player == "" {
		return append(output, fmt.Sprintf("%s has not joined.", m.player))
	}
	return append(output,
		fmt.Sprintf("Place: %s", st.Place),
		fmt.Sprintf("Health: %.2f", st.Health),
		fmt.Sprintf("Alive: %v", st.Alive),
	)
}

func (m *Model) cmdHelp() []string {
	return []string{
		"System:",
		"  /save [name]  Save the world (default: quicksave)",
		"  /load [name]  Load the world (default: quicksave)",
		"  /tick         Run a world tick now",
		"  /as <name>    Act as another local player",
		"  /status       Show the active player and the rotation",
		"  /quit         Exit",
		"  /help         Show this help",
		"",
		"Game commands ('list' shows them all, 'guide <command>' explains one):",
		"  join [name]             Join as a random creature",
		"  move <place> (go)       Head toward a place",
		"  attack <name> (hit)     Attack a creature here",
		"  pickup [amount] [item]  Pick up items here",
		"  craft <amount> <item>   Craft from your inventory",
		"  wield [item]            Wield or put away a weapon",
		"  inventory (i)           Check what you're carrying",
		"  pass (wait, z)          End your turn",
		"  again (g)               Repeat your last command",
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}

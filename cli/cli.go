// Package cli is a plain line-oriented driver for a game session. Lines
// of the form "name: command" act as that player; other lines act as the
// default player, so several people can share one terminal.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/game"
	"github.com/sentientmushes/smadventure/types"
)

// CLI handles terminal interaction.
type CLI struct {
	Session   *game.Session
	Player    string // sender for lines without a "name:" prefix
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	EchoInput bool // echo each input line after the prompt (for script playback)

	senders []string // local senders in order of first use
	lastCmd map[string]string
	events  *broadcast.Buffer
}

// New creates a CLI on stdin/stdout for the session.
func New(s *game.Session, player string) *CLI {
	return &CLI{
		Session: s,
		Player:  player,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: game.DefaultSlots().Dir,
	}
}

// Run reads commands until input ends, /quit, or ctx is done.
func (c *CLI) Run(ctx context.Context) {
	hub := c.Session.World().Hub
	c.events = &broadcast.Buffer{}
	c.lastCmd = map[string]string{}
	sub := hub.Subscribe("cli", c.events, broadcast.Filter{Min: types.LevelEvent})
	defer hub.Unsubscribe(sub)

	c.printLine("Sentient Mushes: Adventure")
	c.printSystem("Type 'join' to play, 'quickstart' to learn how, or /help.")

	scanner := bufio.NewScanner(c.In)
	for ctx.Err() == nil {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return
			}
			c.flush(ctx)
			continue
		}

		who, line := c.split(input)

		// "again" / "g" repeats the sender's last command.
		if lower := strings.ToLower(line); lower == "again" || lower == "g" {
			if c.lastCmd[who] == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			line = c.lastCmd[who]
		} else {
			c.lastCmd[who] = line
		}

		for _, reply := range c.Session.Exec(who, line) {
			c.printLine(reply)
		}
		c.flush(ctx)
	}
}

// split separates an optional "name:" prefix from the command.
func (c *CLI) split(input string) (string, string) {
	who := c.Player
	if name, rest, ok := strings.Cut(input, ":"); ok && name != "" && !strings.ContainsAny(name, " \t") {
		who, input = name, strings.TrimSpace(rest)
	}
	for _, s := range c.senders {
		if s == who {
			return who, input
		}
	}
	c.senders = append(c.senders, who)
	return who, input
}

// flush delivers queued broadcasts and prints what reached the terminal:
// world-wide events, then each local player's inbox.
func (c *CLI) flush(ctx context.Context) {
	c.Session.World().Hub.Flush(ctx)
	for _, line := range c.events.Drain() {
		c.printSystem(line)
	}
	for _, who := range c.senders {
		for _, line := range c.Session.Drain(who) {
			if len(c.senders) > 1 {
				c.printLine(fmt.Sprintf("(%s) %s", who, line))
			} else {
				c.printLine(line)
			}
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the driver should
// exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/tick":
		c.Session.Tick()
		c.printSystem(fmt.Sprintf("Tick %d done.", c.Session.World().Ticks()))

	case "/status":
		c.cmdStatus(arg)

	case "/help":
		c.cmdHelp()

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(name string) {
	path := game.Slots{Dir: c.SaveDir}.Path(name)
	if err := c.Session.SaveFile(path); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("World saved to %s.", path))
}

func (c *CLI) cmdLoad(name string) {
	path := game.Slots{Dir: c.SaveDir}.Path(name)
	if err := c.Session.LoadFile(path); err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("World loaded from %s (tick %d).", path, c.Session.World().Ticks()))
}

func (c *CLI) cmdStatus(who string) {
	if who == "" {
		who = c.Player
	}
	st := c.Session.Status(who)
	if st.Player == "" {
		c.printSystem(fmt.Sprintf("%s has not joined. Tick %d, %s's turn.", who, st.Tick, st.Turn))
		return
	}
	c.printSystem(fmt.Sprintf("%s at %s with %.2f health. Tick %d, %s's turn.", st.Player, st.Place, st.Health, st.Tick, st.Turn))
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]    Save the world (default: quicksave)",
		"  /load [name]    Load the world (default: quicksave)",
		"  /tick           Run a world tick now",
		"  /status [name]  Show a player's place, health and turn",
		"  /quit           Exit",
		"  /help           Show this help",
		"",
		"Game commands ('list' shows them all, 'guide <command>' explains one):",
		"  join [name]             Join as a random creature",
		"  move <place> (go)       Head toward a place",
		"  attack <name> (hit)     Attack a creature here",
		"  pickup [amount] [item]  Pick up items here",
		"  craft <amount> <item>   Craft from your inventory",
		"  wield [item]            Wield or put away a weapon",
		"  pass (wait, z)          End your turn",
		"  again (g)               Repeat your last command",
		"",
		"Prefix a line with 'name:' to act as another local player.",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}

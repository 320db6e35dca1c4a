package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sentientmushes/smadventure/types"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleStatusDead = lipgloss.NewStyle().
			Background(lipgloss.Color("52")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleReply = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleNearby = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	styleEvent = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)

	styleWorld = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleMeta = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindReply  lineKind = iota // direct answer to a command
	kindNearby                 // something seen in the player's place
	kindEvent                  // turn changes, deaths, departures
	kindWorld                  // joins and finished ticks
	kindMeta                   // driver messages such as saves
	kindError
	kindInput
)

// errorPrefixes start the replies that refuse a command.
var errorPrefixes = []string{
	"Unknown command",
	"Syntax:",
	"No such",
	"Join first",
	"It isn't your turn",
	"You're dead",
	"You can't",
	"You lack",
	"You don't have",
	"You aren't",
	"Something went wrong",
	"There is no such",
	"There is already",
	"You are already",
	"There's nothing like that",
}

// classifyReply decides how a command reply is shown.
func classifyReply(line string) lineKind {
	for _, p := range errorPrefixes {
		if strings.HasPrefix(line, p) {
			return kindError
		}
	}
	if strings.HasSuffix(line, " is not here!") || strings.HasSuffix(line, " is not a weapon!") ||
		strings.HasSuffix(line, " is not a living creature!") {
		return kindError
	}
	return kindReply
}

// kindFor maps a broadcast level onto a line kind.
func kindFor(level types.Level) lineKind {
	switch {
	case level >= types.LevelSystem:
		return kindWorld
	case level >= types.LevelEvent:
		return kindEvent
	default:
		return kindNearby
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindNearby:
		return styleNearby.Render(line)
	case kindEvent:
		return styleEvent.Render(line)
	case kindWorld:
		return styleWorld.Render(line)
	case kindMeta:
		return styleMeta.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindInput:
		return stylePlayerInput.Render(line)
	default:
		return styleReply.Render(line)
	}
}

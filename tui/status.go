package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sentientmushes/smadventure/game"
)

// statusLeft describes the active player: name, place and health.
func statusLeft(st game.Status, player string) string {
	if st.Player == "" {
		return fmt.Sprintf(" %s | not joined, type 'join' to play", player)
	}
	if !st.Alive {
		return fmt.Sprintf(" %s | dead at %s", st.Player, st.Place)
	}
	return fmt.Sprintf(" %s | %s | HP %.1f", st.Player, st.Place, st.Health)
}

// statusRight shows whose turn it is and the tick count.
func statusRight(st game.Status) string {
	return fmt.Sprintf("Turn: %s | T:%d ", st.Turn, st.Tick)
}

// renderStatusBar produces a full-width inverted status line. It turns red
// while the active player is dead.
func (m Model) renderStatusBar() string {
	st := m.session.Status(m.player)
	left := statusLeft(st, m.player)
	right := statusRight(st)

	// Drop the turn holder first when space runs out.
	if lipgloss.Width(left)+lipgloss.Width(right) > m.width {
		right = fmt.Sprintf("T:%d ", st.Tick)
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	style := styleStatusBar
	if st.Player != "" && !st.Alive {
		style = styleStatusDead
	}
	return style.Width(m.width).Render(bar)
}

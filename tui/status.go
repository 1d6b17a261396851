package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderStatusBar produces a full-width inverted status line showing
// location, clock, action points, fragments, and the focused character.
func (m Model) renderStatusBar() string {
	sess := m.engine.Session()
	cat := m.engine.Catalog()

	place := "灰色空间"
	if w, ok := cat.World(sess.CurrentWorld); ok {
		place = w.Name
		if s, ok := cat.Scene(sess.CurrentScene); ok {
			place += " · " + s.Name
		}
	}

	period := cat.Period(sess.CurrentPeriodIndex)
	left := fmt.Sprintf(" %s | 第%d天 %s | 行动 %d/%d",
		place, sess.CurrentDay, period.Name, sess.ActionPoints, cat.MaxAP)

	right := fmt.Sprintf("碎片 %d/4 ", sess.SoulFragments)
	if m.busy {
		right = "叙述中... | " + right
	}

	// Show the focused character's affection if it fits.
	if ch, ok := cat.Character(sess.CurrentCharacter); ok {
		aff := sess.CharacterStats[ch.ID]["affection"]
		candidate := fmt.Sprintf("%s 好感%d | %s", ch.Name, aff, right)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleStatChange = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleEpisode = lipgloss.NewStyle().
			Foreground(lipgloss.Color("179")).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindDialogue
	kindStatChange
	kindChoice
	kindSystem
	kindEpisode
	kindError
)

var (
	statLineRe   = regexp.MustCompile(`[【\[][^】\]]*[+-]\d+[^】\]]*[】\]]`)
	choiceLineRe = regexp.MustCompile(`^\s*[1-4][.、．]\s`)
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "第") && strings.Contains(line, "天"):
		return kindEpisode
	case strings.HasPrefix(line, "请求失败"), strings.HasPrefix(line, "操作失败"):
		return kindError
	case choiceLineRe.MatchString(line):
		return kindChoice
	case statLineRe.MatchString(line):
		return kindStatChange
	case strings.Contains(line, "「") && strings.Contains(line, "」"):
		return kindDialogue
	default:
		return kindNarrative
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindDialogue:
		return styleDialogue.Render(line)
	case kindStatChange:
		return styleStatChange.Render(line)
	case kindChoice:
		return styleChoice.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindEpisode:
		return styleEpisode.Render(line)
	case kindError:
		return styleError.Render(line)
	default:
		return styleNarrative.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}

// Package parser turns one block of narrator text into three disjoint
// artifacts: display narrative, stat-change directives, and the trailing
// action-choice list. Narrator text is untrusted — anything that does not
// resolve is left as prose or dropped, never an error.
package parser

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/mirrorloop/types"
)

// globalAliases maps the five fixed player-stat directive labels to keys.
// These are part of the textual contract with the narrator and do not vary
// per world.
var globalAliases = map[string]string{
	"颜值": "beauty",
	"智慧": "wisdom",
	"体力": "stamina",
	"魅力": "charm",
	"运气": "luck",
}

// statColors drives the stat-change display group styling.
var statColors = map[string]string{
	"好感度": "#ff6b9d", "好感": "#ff6b9d",
	"信任度": "#4fc3f7", "信任": "#4fc3f7",
	"颜值": "#ff6b9d",
	"智慧": "#4fc3f7",
	"体力": "#66bb6a",
	"魅力": "#ab47bc",
	"运气": "#ffa726",
}

var (
	choiceLineRe = regexp.MustCompile(`^([1-4]|[A-Da-d])[.、．]\s*(.+)$`)
	leadInRe     = regexp.MustCompile(`选择|选项|你可以|接下来|你的行动`)

	// 【subject label±N】 — subject and label separated by whitespace.
	charDirectiveRe = regexp.MustCompile(`[【\[]([^\s\]】]+)\s+([^\s\]】+-]+?)([+-])(\d+)[】\]]`)
	// 【label±N】 — no whitespace inside.
	globalDirectiveRe = regexp.MustCompile(`[【\[]([^\s\]】+-]+?)([+-])(\d+)[】\]]`)
	// [ENDING:HE] — explicit terminal-ending token, ASCII or full-width.
	endingDirectiveRe = regexp.MustCompile(`[【\[]ENDING[:：](TE|HE|NE)[】\]]`)

	// A line that is nothing but one bracketed delta token.
	pureStatLineRe = regexp.MustCompile(`^[【\[][^】\]]*[+-]\d+[^】\]]*[】\]]$`)
	// Leading 【name】 speaker tag.
	speakerTagRe = regexp.MustCompile(`^[【\[]([^\]】]+)[】\]]`)

	statUpRe   = regexp.MustCompile(`(\+\d+[万%]?)`)
	statDownRe = regexp.MustCompile(`(-\d+[万%]?)`)
)

// ExtractChoices scans backward over trailing enumerated "N. text" lines and
// returns the choices in top-to-bottom order with numbering stripped, plus
// the text with those lines (and a recognized lead-in line) removed. Fewer
// than two matching lines means the narrator supplied no choices: the text
// comes back unmodified and the caller synthesizes a fallback list.
func ExtractChoices(text string) (string, []string) {
	lines := strings.Split(text, "\n")
	var choices []string
	start := len(lines)

	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		m := choiceLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			break
		}
		choices = append([]string{m[2]}, choices...)
		start = i
	}

	if len(choices) < 2 {
		return text, nil
	}

	cut := start
	if cut > 0 && leadInRe.MatchString(strings.TrimSpace(lines[cut-1])) {
		cut--
	}
	if cut > 0 && strings.TrimSpace(lines[cut-1]) == "" {
		cut--
	}

	return strings.TrimSpace(strings.Join(lines[:cut], "\n")), choices
}

// ParseDirectives extracts the dual-track stat directives from narrator text.
// Character directives resolve the subject against the current world's roster
// (full name or first-rune shorthand) and the label against that character's
// stat metadata (label, label+度, label+值). Global directives resolve against
// the five fixed aliases. Unresolved directives are dropped silently; order
// is preserved and duplicates accumulate.
func ParseDirectives(text string, roster []types.Character) types.Directives {
	var d types.Directives

	nameToChar := map[string]types.Character{}
	for _, ch := range roster {
		nameToChar[ch.Name] = ch
		runes := []rune(ch.Name)
		if len(runes) >= 2 {
			nameToChar[string(runes[0])] = ch
		}
	}

	for _, m := range charDirectiveRe.FindAllStringSubmatch(text, -1) {
		subject, label, sign, numStr := m[1], m[2], m[3], m[4]
		ch, ok := nameToChar[subject]
		if !ok {
			continue
		}
		key, ok := resolveStatKey(ch, label)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		if sign == "-" {
			n = -n
		}
		d.Character = append(d.Character, types.CharacterDelta{
			CharacterID: ch.ID,
			StatKey:     key,
			Delta:       n,
		})
	}

	for _, m := range globalDirectiveRe.FindAllStringSubmatch(text, -1) {
		label, sign, numStr := m[1], m[2], m[3]
		key, ok := globalAliases[label]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		if sign == "-" {
			n = -n
		}
		d.Global = append(d.Global, types.GlobalDelta{StatKey: key, Delta: n})
	}

	if m := endingDirectiveRe.FindStringSubmatch(text); m != nil {
		d.Ending = types.EndingType(m[1])
	}

	return d
}

// resolveStatKey matches a directive label against a character's stat metas,
// accepting the bare label plus the 度 and 值 suffix spellings.
func resolveStatKey(ch types.Character, label string) (string, bool) {
	for _, meta := range ch.StatMetas {
		if label == meta.Label || label == meta.Label+"度" || label == meta.Label+"值" {
			return meta.Key, true
		}
	}
	return "", false
}

// Rendered is the display form of one narrator reply.
type Rendered struct {
	Narrative    string   // escaped paragraph markup with character names annotated
	StatLines    []string // colorized pure-directive lines, kept out of the narrative
	SpeakerColor string   // theme color of the detected speaking character, or ""
}

// RenderNarrative escapes the text, renders paragraphs, splits pure
// directive lines into a separate stat-change group, and wraps known
// character names in theme-color markers, longest name first so a short
// alias never shadows a longer name containing it.
func RenderNarrative(text string, roster []types.Character) Rendered {
	lines := strings.Split(text, "\n")
	var narrativeLines []string
	var statLines []string
	speakerColor := ""

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if line == "" {
			narrativeLines = append(narrativeLines, "")
			continue
		}

		if pureStatLineRe.MatchString(line) {
			statLines = append(statLines, colorizeStats(html.EscapeString(line)))
			continue
		}

		if strings.HasPrefix(line, "【获得") || strings.HasPrefix(line, "[获得") {
			statLines = append(statLines, fmt.Sprintf(`<div class="item-gain">%s</div>`, html.EscapeString(line)))
			continue
		}

		if speakerColor == "" {
			if m := speakerTagRe.FindStringSubmatch(line); m != nil {
				speakerColor = colorForName(m[1], roster)
			}
		}

		narrativeLines = append(narrativeLines, raw)
	}

	narrative := renderParagraphs(strings.TrimSpace(strings.Join(narrativeLines, "\n")))
	narrative = annotateNames(narrative, roster)

	if speakerColor == "" {
		for _, alias := range rosterAliases(roster) {
			if strings.Contains(text, alias.name) {
				speakerColor = alias.color
				break
			}
		}
	}

	return Rendered{Narrative: narrative, StatLines: statLines, SpeakerColor: speakerColor}
}

// renderParagraphs escapes raw prose and wraps blank-line-separated blocks
// in <p>, with single newlines kept as <br>.
func renderParagraphs(raw string) string {
	if raw == "" {
		return ""
	}
	var out strings.Builder
	for _, block := range strings.Split(raw, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		escaped := make([]string, 0, 4)
		for _, l := range strings.Split(block, "\n") {
			escaped = append(escaped, html.EscapeString(strings.TrimSpace(l)))
		}
		out.WriteString("<p>")
		out.WriteString(strings.Join(escaped, "<br>"))
		out.WriteString("</p>")
	}
	return out.String()
}

type nameAlias struct {
	name  string
	color string
}

// rosterAliases returns the annotatable names for a roster: the full name
// and, for names of three or more runes, the given name with the surname
// dropped. Sorted longest first.
func rosterAliases(roster []types.Character) []nameAlias {
	var aliases []nameAlias
	for _, ch := range roster {
		aliases = append(aliases, nameAlias{ch.Name, ch.ThemeColor})
		runes := []rune(ch.Name)
		if len(runes) >= 3 {
			aliases = append(aliases, nameAlias{string(runes[1:]), ch.ThemeColor})
		}
	}
	sort.SliceStable(aliases, func(i, j int) bool {
		return len(aliases[i].name) > len(aliases[j].name)
	})
	return aliases
}

// annotateNames wraps every alias occurrence in a theme-color span. A
// two-pass placeholder substitution keeps a short alias from re-matching
// inside a span already inserted for a longer name.
func annotateNames(markup string, roster []types.Character) string {
	aliases := rosterAliases(roster)
	for i, a := range aliases {
		markup = strings.ReplaceAll(markup, a.name, fmt.Sprintf("\x00%d\x00", i))
	}
	for i, a := range aliases {
		span := fmt.Sprintf(`<span class="char-name" style="color:%s">%s</span>`, a.color, a.name)
		markup = strings.ReplaceAll(markup, fmt.Sprintf("\x00%d\x00", i), span)
	}
	return markup
}

func colorForName(name string, roster []types.Character) string {
	for _, a := range rosterAliases(roster) {
		if a.name == name {
			return a.color
		}
	}
	return ""
}

// colorizeStats styles a pure directive line: known labels get their color,
// signed magnitudes get up/down markers. Input is already escaped.
func colorizeStats(line string) string {
	labels := make([]string, 0, len(statColors))
	for label := range statColors {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return len(labels[i]) > len(labels[j]) })

	for i, label := range labels {
		line = strings.ReplaceAll(line, label, fmt.Sprintf("\x00%d\x00", i))
	}
	for i, label := range labels {
		span := fmt.Sprintf(`<span class="stat-change" style="color:%s;font-weight:600">%s</span>`, statColors[label], label)
		line = strings.ReplaceAll(line, fmt.Sprintf("\x00%d\x00", i), span)
	}

	line = statUpRe.ReplaceAllString(line, `<span class="stat-up">$1</span>`)
	line = statDownRe.ReplaceAllString(line, `<span class="stat-down">$1</span>`)
	return line
}

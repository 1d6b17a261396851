package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/mirrorloop/engine"
	"github.com/nathoo/mirrorloop/engine/save"
	"github.com/nathoo/mirrorloop/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for meta-command output and system messages
}

// Model is the Bubble Tea model for the mirrorloop TUI.
type Model struct {
	engine *engine.Engine

	viewport viewport.Model
	input    textinput.Model
	history  *inputHistory

	rawLines  []rawLine // accumulated narrative lines (unstyled, for re-wrapping)
	streaming string    // partial narrator reply of the turn in flight
	lastMsgID string    // newest transcript message already rendered
	skipEcho  bool      // next transcript append drops the already-echoed input

	stream chan tea.Msg // chunk/done messages of the turn in flight

	width    int
	height   int
	ready    bool
	busy     bool
	quitting bool
}

// chunkMsg carries one streamed narrator fragment.
type chunkMsg string

// turnDoneMsg signals the end of a narrator turn.
type turnDoneMsg struct{ err error }

// New creates a TUI model wired to the given engine.
func New(eng *engine.Engine) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	m := Model{
		engine:  eng,
		input:   ti,
		history: newInputHistory(100),
	}
	m.appendTranscript()
	m.appendChoices()
	return m
}

// Run starts the Bubble Tea program.
func Run(eng *engine.Engine) error {
	p := tea.NewProgram(New(eng), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init returns the initial blink command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages (key presses, window resize, narrator output).
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
			if prev, ok := m.history.Older(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Newer(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case chunkMsg:
		m.streaming += string(msg)
		m.refreshViewport()
		return m, m.waitStream()

	case turnDoneMsg:
		m = m.finishTurn(msg.err)
		return m, nil
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" || m.busy {
		return m, nil
	}

	m.history.Add(input)

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		for _, line := range output {
			m.rawLines = append(m.rawLines, rawLine{text: line, isSystem: true})
		}
		m.rawLines = append(m.rawLines, rawLine{})
		m.refreshViewport()
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// A bare number picks the matching suggested choice.
	if n, err := strconv.Atoi(input); err == nil {
		choices := m.engine.Session().Choices
		if n >= 1 && n <= len(choices) {
			input = choices[n-1]
		}
	}

	return m.startTurn(input)
}

// startTurn launches the narrator turn in the background and begins
// listening for its chunks.
func (m Model) startTurn(input string) (tea.Model, tea.Cmd) {
	m.busy = true
	m.streaming = ""
	m.markRendered()
	m.skipEcho = true
	m.rawLines = append(m.rawLines, rawLine{text: "> " + input, isInput: true})
	m.refreshViewport()

	ch := make(chan tea.Msg, 16)
	m.stream = ch
	eng := m.engine
	go func() {
		err := eng.SubmitTurn(context.Background(), input, func(chunk string) {
			ch <- chunkMsg(chunk)
		})
		ch <- turnDoneMsg{err}
		close(ch)
	}()
	return m, m.waitStream()
}

// waitStream returns a command that delivers the next in-flight turn message.
func (m Model) waitStream() tea.Cmd {
	ch := m.stream
	return func() tea.Msg {
		return <-ch
	}
}

// finishTurn replaces the streamed preview with the final transcript
// rendering and the next choices.
func (m Model) finishTurn(err error) Model {
	m.busy = false
	m.streaming = ""
	m.stream = nil

	switch {
	case err == nil:
	case errors.Is(err, engine.ErrNoActionPoints):
		m.skipEcho = false
		m.rawLines = append(m.rawLines,
			rawLine{text: "今天的行动点已经用完，夜深了。", isSystem: true}, rawLine{})
		m.refreshViewport()
		return m
	case errors.Is(err, engine.ErrEnded):
		m.skipEcho = false
		m.rawLines = append(m.rawLines,
			rawLine{text: "故事已经落幕。输入 /reset 重新开始。", isSystem: true}, rawLine{})
		m.refreshViewport()
		return m
	}

	m.appendTranscript()
	if err == nil {
		m.appendChoices()
	}
	m.refreshViewport()
	return m
}

// markRendered notes the newest transcript message so appendTranscript only
// adds what follows it.
func (m *Model) markRendered() {
	msgs := m.engine.Session().Messages
	if len(msgs) == 0 {
		m.lastMsgID = ""
		return
	}
	m.lastMsgID = msgs[len(msgs)-1].ID
}

// appendTranscript renders transcript messages newer than the last rendered
// one. Compaction and transcript clears are handled by falling back to the
// full transcript when the marker is gone.
func (m *Model) appendTranscript() {
	msgs := m.engine.Session().Messages
	start := 0
	if m.lastMsgID != "" {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].ID == m.lastMsgID {
				start = i + 1
				break
			}
		}
	}
	for _, msg := range msgs[start:] {
		if m.skipEcho && msg.Role == types.RoleUser {
			m.skipEcho = false
			continue
		}
		m.appendMessage(msg)
	}
	m.markRendered()
}

func (m *Model) appendMessage(msg types.Message) {
	switch {
	case msg.Role == types.RoleUser:
		m.rawLines = append(m.rawLines, rawLine{text: "> " + msg.Content, isInput: true})
	case msg.Type == types.MessageEpisode:
		m.rawLines = append(m.rawLines, rawLine{text: msg.Content, kind: kindEpisode})
	case msg.Role == types.RoleSystem:
		for _, line := range strings.Split(msg.Content, "\n") {
			if line == "" {
				m.rawLines = append(m.rawLines, rawLine{})
				continue
			}
			m.rawLines = append(m.rawLines, rawLine{text: line, isSystem: true})
		}
	default:
		for _, line := range strings.Split(msg.Content, "\n") {
			if line == "" {
				m.rawLines = append(m.rawLines, rawLine{})
				continue
			}
			m.rawLines = append(m.rawLines, rawLine{text: line, kind: classifyLine(line)})
		}
	}
	m.rawLines = append(m.rawLines, rawLine{})
}

func (m *Model) appendChoices() {
	choices := m.engine.Session().Choices
	for i, choice := range choices {
		m.rawLines = append(m.rawLines, rawLine{
			text: fmt.Sprintf("%d. %s", i+1, choice),
			kind: kindChoice,
		})
	}
	if len(choices) > 0 {
		m.rawLines = append(m.rawLines, rawLine{})
	}
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(rl.text))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(rl.text))
		default:
			styled = append(styled, renderLineKind(rl.text, rl.kind))
		}
	}

	if m.streaming != "" {
		for _, line := range strings.Split(m.streaming, "\n") {
			styled = append(styled, styleNarrative.Render(line))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "加载中..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = strings.Join(parts[1:], " ")
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"再见。"}, true

	case "/save":
		return m.cmdSave(), false

	case "/load":
		return m.cmdLoad(), false

	case "/reset":
		return m.cmdReset(arg), false

	case "/help":
		return cmdHelp(), false

	case "/status":
		return m.cmdStatus(), false

	case "/worlds":
		return m.cmdWorlds(), false

	case "/world":
		return m.cmdWorld(arg), false

	case "/scene":
		return m.cmdScene(arg), false

	case "/char":
		return m.cmdChar(arg), false

	case "/items":
		return m.cmdItems(), false

	case "/use":
		return m.cmdUse(arg), false

	case "/records":
		return m.cmdRecords(), false

	case "/complete":
		return m.cmdComplete(), false

	default:
		return []string{fmt.Sprintf("未知命令: %s。输入 /help 查看可用命令。", cmd)}, false
	}
}

func (m *Model) cmdSave() []string {
	if err := m.engine.Save(context.Background()); err != nil {
		return []string{fmt.Sprintf("存档失败: %v", err)}
	}
	return []string{"进度已保存。"}
}

func (m *Model) cmdLoad() []string {
	if err := m.engine.Load(context.Background()); err != nil {
		if errors.Is(err, save.ErrNotFound) {
			return []string{"没有找到存档。"}
		}
		return []string{fmt.Sprintf("读档失败: %v", err)}
	}
	m.rawLines = nil
	m.lastMsgID = ""
	m.skipEcho = false
	m.appendTranscript()
	m.appendChoices()
	return []string{"进度已读取。"}
}

func (m *Model) cmdReset(name string) []string {
	m.engine.Reset()
	if name == "" {
		name = "旅人"
	}
	if err := m.engine.StartSession(name, ""); err != nil {
		return []string{fmt.Sprintf("重置失败: %v", err)}
	}
	m.rawLines = nil
	m.lastMsgID = ""
	m.appendTranscript()
	m.appendChoices()
	return []string{"新的轮回开始了。"}
}

func cmdHelp() []string {
	return []string{
		"系统:",
		"  /save           — 保存进度",
		"  /load           — 读取进度",
		"  /reset [名字]   — 重新开始",
		"  /quit           — 退出",
		"",
		"游戏:",
		"  /status         — 当前状态",
		"  /worlds         — 列出四个世界",
		"  /world <id>     — 进入一个世界",
		"  /scene <id>     — 移动到已解锁的场景",
		"  /char <id>      — 选择交互角色（留空取消）",
		"  /items          — 查看背包",
		"  /use <id>       — 使用道具",
		"  /records        — 翻看故事记录",
		"  /complete       — 回收当前世界的灵魂碎片",
		"",
		"其它输入都会作为你的行动交给叙述者。输入 1-4 可直接选择推荐选项。",
		"PgUp/PgDn 滚动，Up/Down 翻查输入历史。",
	}
}

func (m *Model) cmdStatus() []string {
	sess := m.engine.Session()
	cat := m.engine.Catalog()
	period := cat.Period(sess.CurrentPeriodIndex)

	out := []string{
		fmt.Sprintf("第%d天 · %s (%s) | 行动点 %d/%d | 碎片 %d/4",
			sess.CurrentDay, period.Name, period.Hours, sess.ActionPoints, cat.MaxAP, sess.SoulFragments),
	}

	var stats []string
	for _, g := range cat.GlobalStats {
		stats = append(stats, fmt.Sprintf("%s%d", g.Label, sess.PlayerStats[g.Key]))
	}
	out = append(out, "属性: "+strings.Join(stats, " "))

	if sess.CurrentWorld == "" {
		out = append(out, "所在: 灰色空间")
	} else if w, ok := cat.World(sess.CurrentWorld); ok {
		out = append(out, "所在: "+w.Name)
		for _, ch := range cat.WorldCharacters(sess.CurrentWorld) {
			cs := sess.CharacterStats[ch.ID]
			mark := " "
			if ch.ID == sess.CurrentCharacter {
				mark = "*"
			}
			out = append(out, fmt.Sprintf("%s %s (%s): 好感%d 信任%d",
				mark, ch.Name, ch.ID, cs["affection"], cs["trust"]))
		}
	}
	if len(sess.LostMemories) > 0 {
		out = append(out, fmt.Sprintf("失去的记忆: %d段", len(sess.LostMemories)))
	}
	return out
}

func (m *Model) cmdWorlds() []string {
	sess := m.engine.Session()
	var out []string
	for _, w := range m.engine.Catalog().Worlds {
		mark := " "
		for _, done := range sess.CompletedWorlds {
			if done == w.ID {
				mark = "✓"
			}
		}
		if w.ID == sess.CurrentWorld {
			mark = "*"
		}
		out = append(out, fmt.Sprintf("%s %s — %s", mark, w.ID, w.Name))
	}
	return out
}

func (m *Model) cmdWorld(id string) []string {
	if id == "" {
		return []string{"用法: /world <id>，/worlds 可列出世界。"}
	}
	if err := m.engine.SelectWorld(id); err != nil {
		return []string{errorText(err)}
	}
	// SelectWorld clears the transcript; re-render from scratch.
	m.lastMsgID = ""
	m.appendTranscript()
	m.appendChoices()
	return nil
}

func (m *Model) cmdScene(id string) []string {
	sess := m.engine.Session()
	if id == "" {
		var out []string
		for _, sid := range sess.UnlockedScenes {
			if s, ok := m.engine.Catalog().Scene(sid); ok {
				mark := " "
				if sid == sess.CurrentScene {
					mark = "*"
				}
				out = append(out, fmt.Sprintf("%s %s — %s", mark, s.ID, s.Name))
			}
		}
		return out
	}
	m.markRendered()
	if err := m.engine.SelectScene(id); err != nil {
		return []string{errorText(err)}
	}
	m.appendTranscript()
	return nil
}

func (m *Model) cmdChar(id string) []string {
	if err := m.engine.SelectCharacter(id); err != nil {
		return []string{errorText(err)}
	}
	if id == "" {
		return []string{"已取消角色选择。"}
	}
	if ch, ok := m.engine.Catalog().Character(id); ok {
		return []string{fmt.Sprintf("你将注意力转向了%s（%s）。", ch.Name, ch.Title)}
	}
	return nil
}

func (m *Model) cmdItems() []string {
	sess := m.engine.Session()
	if len(sess.Inventory) == 0 {
		return []string{"背包是空的。"}
	}
	var out []string
	for _, it := range m.engine.Catalog().Items {
		count, owned := sess.Inventory[it.ID]
		if !owned {
			continue
		}
		out = append(out, fmt.Sprintf("%s ×%d (%s) — %s", it.Name, count, it.ID, it.Description))
	}
	return out
}

func (m *Model) cmdUse(id string) []string {
	if id == "" {
		return []string{"用法: /use <id>，/items 可查看背包。"}
	}
	m.markRendered()
	if err := m.engine.UseItem(id); err != nil {
		return []string{errorText(err)}
	}
	m.appendTranscript()
	return nil
}

func (m *Model) cmdRecords() []string {
	records := m.engine.Session().Records
	if len(records) == 0 {
		return []string{"还没有故事记录。"}
	}
	var out []string
	for _, r := range records {
		out = append(out, fmt.Sprintf("第%d天·%s 「%s」 %s", r.Day, r.Period, r.Title, r.Content))
	}
	return out
}

func (m *Model) cmdComplete() []string {
	if err := m.engine.CompleteWorld(); err != nil {
		return []string{errorText(err)}
	}
	// CompleteWorld clears the transcript; re-render from scratch.
	m.lastMsgID = ""
	m.appendTranscript()
	m.appendChoices()
	return nil
}

// errorText maps engine sentinel errors to player-facing Chinese text.
func errorText(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotStarted):
		return "游戏尚未开始。"
	case errors.Is(err, engine.ErrUnknownWorld):
		return "没有这个世界。/worlds 可列出世界。"
	case errors.Is(err, engine.ErrWorldCompleted):
		return "这个世界的碎片已经回收，无法再次进入。"
	case errors.Is(err, engine.ErrNoWorld):
		return "你现在不在任何世界中。"
	case errors.Is(err, engine.ErrSceneLocked):
		return "这个场景还未解锁。"
	case errors.Is(err, engine.ErrUnknownCharacter):
		return "这个角色不在当前世界。"
	case errors.Is(err, engine.ErrNotEligible):
		return "还没有角色对你完全倾心，碎片无法回收。"
	case errors.Is(err, engine.ErrEnded):
		return "故事已经落幕。输入 /reset 重新开始。"
	case errors.Is(err, engine.ErrBusy):
		return "叙述者还在讲述中，请稍候。"
	default:
		return fmt.Sprintf("操作失败: %v", err)
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

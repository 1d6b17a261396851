// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the mirrorloop narrative engine.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nathoo/mirrorloop/engine"
	"github.com/nathoo/mirrorloop/engine/save"
	"github.com/nathoo/mirrorloop/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Engine    *engine.Engine
	In        io.Reader
	Out       io.Writer
	EchoInput bool // echo each input line after the prompt (for script playback)

	printed int // messages already written to Out
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine) *CLI {
	return &CLI{
		Engine: eng,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

// Run starts the game loop: prompt → input → dispatch → output. It prints
// whatever the session already holds first, so a freshly started or freshly
// loaded game shows its opening before the first prompt.
func (c *CLI) Run(ctx context.Context) error {
	c.flushMessages()
	c.printChoices()

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return nil // /quit
			}
			continue
		}

		// A bare number picks the matching suggested choice.
		if n, err := strconv.Atoi(input); err == nil {
			choices := c.Engine.Session().Choices
			if n >= 1 && n <= len(choices) {
				input = choices[n-1]
				c.printSystem(input)
			}
		}

		c.submitTurn(ctx, input)
	}
}

// submitTurn streams one narrator turn to Out, then prints the follow-up
// system messages (events, day changes) and the next choices.
func (c *CLI) submitTurn(ctx context.Context, input string) {
	streamed := false
	err := c.Engine.SubmitTurn(ctx, input, func(chunk string) {
		streamed = true
		c.print(chunk)
	})
	if streamed {
		c.printLine("")
		c.printLine("")
	}

	sess := c.Engine.Session()
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNoActionPoints):
			c.printSystem("今天的行动点已经用完，夜深了。")
		case errors.Is(err, engine.ErrEnded):
			c.printSystem("故事已经落幕。输入 /reset 重新开始。")
		default:
			// Narrator failure: the engine appended an explanatory system
			// message after the echoed input.
			if n := len(sess.Messages); n > 0 {
				c.printed = n - 1
				c.flushMessages()
			}
		}
		return
	}

	// The streamed text already covers the echoed input and the reply; only
	// the trailing system messages (events, day changes) still need printing.
	c.printed = len(sess.Messages)
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == types.RoleAssistant {
			c.printed = i + 1
			break
		}
	}
	c.flushMessages()
	c.printChoices()
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = strings.Join(parts[1:], " ")
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("再见。")
		return true

	case "/save":
		c.cmdSave(ctx)

	case "/load":
		c.cmdLoad(ctx)

	case "/reset":
		c.cmdReset(arg)

	case "/help":
		c.cmdHelp()

	case "/status":
		c.cmdStatus()

	case "/worlds":
		c.cmdWorlds()

	case "/world":
		c.cmdWorld(arg)

	case "/scene":
		c.cmdScene(arg)

	case "/char":
		c.cmdChar(arg)

	case "/items":
		c.cmdItems()

	case "/use":
		c.cmdUse(arg)

	case "/records":
		c.cmdRecords()

	case "/complete":
		c.cmdComplete()

	default:
		c.printSystem(fmt.Sprintf("未知命令: %s。输入 /help 查看可用命令。", cmd))
	}

	return false
}

func (c *CLI) cmdSave(ctx context.Context) {
	if err := c.Engine.Save(ctx); err != nil {
		c.printSystem(fmt.Sprintf("存档失败: %v", err))
		return
	}
	c.printSystem("进度已保存。")
}

func (c *CLI) cmdLoad(ctx context.Context) {
	if err := c.Engine.Load(ctx); err != nil {
		if errors.Is(err, save.ErrNotFound) {
			c.printSystem("没有找到存档。")
		} else {
			c.printSystem(fmt.Sprintf("读档失败: %v", err))
		}
		return
	}
	c.printSystem("进度已读取。")
	c.printed = 0
	c.flushMessages()
	c.printChoices()
}

func (c *CLI) cmdReset(name string) {
	c.Engine.Reset()
	if name == "" {
		name = "旅人"
	}
	if err := c.Engine.StartSession(name, ""); err != nil {
		c.printSystem(fmt.Sprintf("重置失败: %v", err))
		return
	}
	c.printed = 0
	c.flushMessages()
	c.printChoices()
}

func (c *CLI) cmdHelp() {
	help := []string{
		"系统:",
		"  /save           — 保存进度",
		"  /load           — 读取进度",
		"  /reset [名字]   — 重新开始",
		"  /quit           — 退出",
		"  /help           — 显示本帮助",
		"",
		"游戏:",
		"  /status         — 当前状态（天数、行动点、属性、好感）",
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
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdStatus() {
	sess := c.Engine.Session()
	cat := c.Engine.Catalog()

	period := cat.Period(sess.CurrentPeriodIndex)
	c.printSystem(fmt.Sprintf("第%d天 · %s (%s) | 行动点 %d/%d | 碎片 %d/4",
		sess.CurrentDay, period.Name, period.Hours, sess.ActionPoints, cat.MaxAP, sess.SoulFragments))

	var stats []string
	for _, g := range cat.GlobalStats {
		stats = append(stats, fmt.Sprintf("%s%d", g.Label, sess.PlayerStats[g.Key]))
	}
	c.printSystem("属性: " + strings.Join(stats, " "))

	if sess.CurrentWorld == "" {
		c.printSystem("所在: 灰色空间")
	} else if w, ok := cat.World(sess.CurrentWorld); ok {
		c.printSystem("所在: " + w.Name)
		for _, ch := range cat.WorldCharacters(sess.CurrentWorld) {
			cs := sess.CharacterStats[ch.ID]
			mark := " "
			if ch.ID == sess.CurrentCharacter {
				mark = "*"
			}
			c.printSystem(fmt.Sprintf("%s %s (%s): 好感%d 信任%d",
				mark, ch.Name, ch.ID, cs["affection"], cs["trust"]))
		}
	}
	if len(sess.LostMemories) > 0 {
		c.printSystem(fmt.Sprintf("失去的记忆: %d段", len(sess.LostMemories)))
	}
}

func (c *CLI) cmdWorlds() {
	sess := c.Engine.Session()
	for _, w := range c.Engine.Catalog().Worlds {
		mark := " "
		for _, done := range sess.CompletedWorlds {
			if done == w.ID {
				mark = "✓"
			}
		}
		if w.ID == sess.CurrentWorld {
			mark = "*"
		}
		c.printLine(fmt.Sprintf("%s %s — %s", mark, w.ID, w.Name))
	}
}

func (c *CLI) cmdWorld(id string) {
	if id == "" {
		c.printSystem("用法: /world <id>，/worlds 可列出世界。")
		return
	}
	if err := c.Engine.SelectWorld(id); err != nil {
		c.printError(err)
		return
	}
	c.printed = 0 // SelectWorld clears the transcript
	c.flushMessages()
	c.printChoices()
}

func (c *CLI) cmdScene(id string) {
	sess := c.Engine.Session()
	if id == "" {
		for _, sid := range sess.UnlockedScenes {
			if s, ok := c.Engine.Catalog().Scene(sid); ok {
				mark := " "
				if sid == sess.CurrentScene {
					mark = "*"
				}
				c.printLine(fmt.Sprintf("%s %s — %s", mark, s.ID, s.Name))
			}
		}
		return
	}
	if err := c.Engine.SelectScene(id); err != nil {
		c.printError(err)
		return
	}
	c.flushMessages()
}

func (c *CLI) cmdChar(id string) {
	if err := c.Engine.SelectCharacter(id); err != nil {
		c.printError(err)
		return
	}
	if id == "" {
		c.printSystem("已取消角色选择。")
		return
	}
	if ch, ok := c.Engine.Catalog().Character(id); ok {
		c.printSystem(fmt.Sprintf("你将注意力转向了%s（%s）。", ch.Name, ch.Title))
	}
}

func (c *CLI) cmdItems() {
	sess := c.Engine.Session()
	if len(sess.Inventory) == 0 {
		c.printSystem("背包是空的。")
		return
	}
	for _, it := range c.Engine.Catalog().Items {
		count, owned := sess.Inventory[it.ID]
		if !owned {
			continue
		}
		c.printLine(fmt.Sprintf("  %s ×%d (%s) — %s", it.Name, count, it.ID, it.Description))
	}
}

func (c *CLI) cmdUse(id string) {
	if id == "" {
		c.printSystem("用法: /use <id>，/items 可查看背包。")
		return
	}
	if err := c.Engine.UseItem(id); err != nil {
		c.printError(err)
		return
	}
	c.flushMessages()
}

func (c *CLI) cmdRecords() {
	records := c.Engine.Session().Records
	if len(records) == 0 {
		c.printSystem("还没有故事记录。")
		return
	}
	for _, r := range records {
		c.printLine(fmt.Sprintf("第%d天·%s 「%s」 %s", r.Day, r.Period, r.Title, r.Content))
	}
}

func (c *CLI) cmdComplete() {
	if err := c.Engine.CompleteWorld(); err != nil {
		c.printError(err)
		return
	}
	c.printed = 0 // CompleteWorld clears the transcript
	c.flushMessages()
	c.printChoices()
}

// flushMessages prints transcript messages not yet written to Out.
func (c *CLI) flushMessages() {
	msgs := c.Engine.Session().Messages
	if c.printed > len(msgs) {
		c.printed = len(msgs)
	}
	for _, m := range msgs[c.printed:] {
		c.printMessage(m)
	}
	c.printed = len(msgs)
}

func (c *CLI) printMessage(m types.Message) {
	switch {
	case m.Role == types.RoleUser:
		c.printLine("> " + m.Content)
	case m.Type == types.MessageScene, m.Type == types.MessageEpisode:
		c.printSystem(m.Content)
	case m.Role == types.RoleSystem:
		for _, line := range strings.Split(m.Content, "\n") {
			c.printSystem(line)
		}
	default:
		c.printLine(m.Content)
	}
	c.printLine("")
}

func (c *CLI) printChoices() {
	choices := c.Engine.Session().Choices
	for i, choice := range choices {
		c.printLine(fmt.Sprintf("  %d. %s", i+1, choice))
	}
}

// printError maps engine sentinel errors to player-facing Chinese text.
func (c *CLI) printError(err error) {
	switch {
	case errors.Is(err, engine.ErrNotStarted):
		c.printSystem("游戏尚未开始。")
	case errors.Is(err, engine.ErrUnknownWorld):
		c.printSystem("没有这个世界。/worlds 可列出世界。")
	case errors.Is(err, engine.ErrWorldCompleted):
		c.printSystem("这个世界的碎片已经回收，无法再次进入。")
	case errors.Is(err, engine.ErrNoWorld):
		c.printSystem("你现在不在任何世界中。")
	case errors.Is(err, engine.ErrSceneLocked):
		c.printSystem("这个场景还未解锁。")
	case errors.Is(err, engine.ErrUnknownCharacter):
		c.printSystem("这个角色不在当前世界。")
	case errors.Is(err, engine.ErrNotEligible):
		c.printSystem("还没有角色对你完全倾心，碎片无法回收。")
	case errors.Is(err, engine.ErrEnded):
		c.printSystem("故事已经落幕。输入 /reset 重新开始。")
	case errors.Is(err, engine.ErrBusy):
		c.printSystem("叙述者还在讲述中，请稍候。")
	default:
		c.printSystem(fmt.Sprintf("操作失败: %v", err))
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	if text == "" {
		fmt.Fprintln(c.Out)
		return
	}
	fmt.Fprintf(c.Out, "[%s]\n", text)
}

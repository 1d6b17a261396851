// Package engine is the game-state reducer. Every gameplay operation goes
// through Engine, which owns the session, the deterministic RNG, the
// narrator client, and the save store. Front-ends read the session and call
// operations; they never mutate state themselves.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/engine/clock"
	"github.com/nathoo/mirrorloop/engine/effects"
	"github.com/nathoo/mirrorloop/engine/events"
	"github.com/nathoo/mirrorloop/engine/parser"
	"github.com/nathoo/mirrorloop/engine/save"
	"github.com/nathoo/mirrorloop/engine/state"
	"github.com/nathoo/mirrorloop/narrator"
	"github.com/nathoo/mirrorloop/telemetry"
	"github.com/nathoo/mirrorloop/types"
)

var (
	ErrNotStarted       = errors.New("session not started")
	ErrAlreadyStarted   = errors.New("session already started")
	ErrEmptyName        = errors.New("player name is empty")
	ErrBusy             = errors.New("a turn is already in flight")
	ErrEnded            = errors.New("the story has ended")
	ErrUnknownWorld     = errors.New("unknown world")
	ErrWorldCompleted   = errors.New("world already completed")
	ErrNoWorld          = errors.New("not inside a world")
	ErrSceneLocked      = errors.New("scene not unlocked")
	ErrUnknownCharacter = errors.New("character not in this world")
	ErrNoActionPoints   = errors.New("no action points left")
	ErrNotEligible      = errors.New("no character is devoted enough")
)

const (
	memoryFallback = "一段模糊的温暖回忆"
	maxChoices     = 4
	totalFragments = 4
	teMaxMemories  = 2

	recordTitleRunes   = 20
	recordContentRunes = 100
	promptWindow       = 10
)

// Options configures a new Engine. Narrator and Store are required for the
// full game; Tracker and Logger default to no-ops.
type Options struct {
	Narrator narrator.Client
	Store    save.Store
	Tracker  telemetry.Tracker
	Logger   *slog.Logger
	Seed     int64
}

// Engine owns one playthrough.
type Engine struct {
	cat      *catalog.Catalog
	narrator narrator.Client
	store    save.Store
	tracker  telemetry.Tracker
	logger   *slog.Logger
	rng      *RNG
	sess     *types.Session
}

// New builds an engine with a fresh unstarted session.
func New(cat *catalog.Catalog, opts Options) *Engine {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Tracker == nil {
		opts.Tracker = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		cat:      cat,
		narrator: opts.Narrator,
		store:    opts.Store,
		tracker:  opts.Tracker,
		logger:   opts.Logger,
		rng:      NewRNG(opts.Seed),
	}
	e.sess = state.New(cat)
	e.sess.RNGSeed = opts.Seed
	return e
}

// Session exposes the live session for rendering. Callers must treat it as
// read-only.
func (e *Engine) Session() *types.Session {
	return e.sess
}

// Catalog exposes the reference data the engine was built with.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat
}

// StartSession begins a playthrough in the hub: the opening contract
// narration, the starter quest items, and the first hub choices. A blank
// name is rejected before anything mutates.
func (e *Engine) StartSession(name, gender string) error {
	if e.sess.Started {
		return ErrAlreadyStarted
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	switch gender {
	case "male", "female":
	default:
		gender = "unspecified"
	}

	e.sess.PlayerName = name
	e.sess.PlayerGender = gender
	e.sess.Started = true

	if hub, ok := e.hubScene(); ok {
		e.sess.CurrentScene = hub.ID
		e.sess.UnlockedScenes = append(e.sess.UnlockedScenes, hub.ID)
	}
	for _, it := range e.cat.Items {
		if it.WorldID == catalog.UniversalWorld && it.Type == types.ItemQuest {
			e.sess.Inventory[it.ID] = 1
		}
	}

	e.appendSystem(fmt.Sprintf(
		"你缓缓睁开眼睛，四周是一片灰白色的虚空。一面古老的铜镜悬浮在面前，镜面泛起涟漪...\n\n「%s，你死了。但你的灵魂还没有完全消散——它碎裂成了四片，散落在四个不同的世界。」\n\n「与我签订契约，穿越这四个世界，让那里的灵魂真心爱上你，你就能回收碎片，重获新生。」\n\n「但代价是——每回收一个碎片，你将失去一段珍贵的记忆。」",
		name))
	state.AddRecord(e.sess, types.StoryRecord{
		ID:      "sr-" + uuid.NewString(),
		Day:     1,
		Period:  e.cat.Period(0).Name,
		Title:   "灵魂契约",
		Content: fmt.Sprintf("%s在灰色空间中醒来，与轮回之镜签订契约。", name),
	})
	e.sess.Choices = []string{"查看四个世界", "询问更多细节", "检查自身状态", "观察轮回之镜"}

	e.tracker.Event(telemetry.EventSessionStart, map[string]any{
		"player": name, "gender": gender,
	})
	return nil
}

// SelectWorld enters a world and sets up its opening: roster stats rebuilt
// for the new roster, entry scene, welcome narration, and the first action
// choices. The transcript and history summary start empty; the narrator is
// not called until the first real turn.
func (e *Engine) SelectWorld(worldID string) error {
	if !e.sess.Started {
		return ErrNotStarted
	}
	if e.sess.EndingType != "" {
		return ErrEnded
	}
	if e.sess.IsTyping {
		return ErrBusy
	}
	world, ok := e.cat.World(worldID)
	if !ok {
		return ErrUnknownWorld
	}
	for _, done := range e.sess.CompletedWorlds {
		if done == worldID {
			return ErrWorldCompleted
		}
	}

	state.EnterWorld(e.cat, e.sess, worldID)
	e.sess.Messages = nil
	e.sess.HistorySummary = ""

	e.appendSystem(fmt.Sprintf(
		"你踏入了「%s」的世界...\n%s\n\n灵魂碎片探测器微微震动，碎片就在这个世界中。你有 %d 天的时间。",
		world.Name, world.Description, e.cat.MaxDays))
	if scene, ok := e.cat.Scene(e.sess.CurrentScene); ok {
		e.appendSceneTransition(scene)
	}
	state.AddRecord(e.sess, types.StoryRecord{
		ID:      "sr-" + uuid.NewString(),
		Day:     1,
		Period:  e.cat.Period(0).Name,
		Title:   fmt.Sprintf("进入「%s」", world.Name),
		Content: world.Description,
	})
	e.sess.Choices = []string{"环顾四周", "寻找线索", "查看碎片探测器", "向前走走"}

	e.tracker.Event(telemetry.EventWorldSelected, map[string]any{"world": worldID})
	return nil
}

// SelectScene moves to an unlocked scene and emits a scene-transition
// message. Moving to the current scene is a no-op.
func (e *Engine) SelectScene(sceneID string) error {
	if !e.sess.Started {
		return ErrNotStarted
	}
	if e.sess.EndingType != "" {
		return ErrEnded
	}
	if e.sess.CurrentScene == sceneID {
		return nil
	}
	scene, ok := e.cat.Scene(sceneID)
	if !ok {
		return ErrSceneLocked
	}
	unlocked := false
	for _, id := range e.sess.UnlockedScenes {
		if id == sceneID {
			unlocked = true
		}
	}
	if !unlocked {
		return ErrSceneLocked
	}

	e.sess.CurrentScene = sceneID
	e.appendSceneTransition(scene)
	return nil
}

// SelectCharacter focuses a character from the current world's roster.
// An empty id clears the focus.
func (e *Engine) SelectCharacter(charID string) error {
	if !e.sess.Started {
		return ErrNotStarted
	}
	if e.sess.EndingType != "" {
		return ErrEnded
	}
	if charID == "" {
		e.sess.CurrentCharacter = ""
		return nil
	}
	ch, ok := e.cat.Character(charID)
	if !ok || ch.WorldID != e.sess.CurrentWorld {
		return ErrUnknownCharacter
	}
	e.sess.CurrentCharacter = charID
	return nil
}

// SubmitTurn runs one full player turn: transcript append, narrator stream,
// directive application, choice extraction, clock advance, forced events,
// ending check, autosave. A narrator failure leaves the game state
// untouched apart from a system error message.
func (e *Engine) SubmitTurn(ctx context.Context, input string, onChunk func(string)) error {
	if !e.sess.Started {
		return ErrNotStarted
	}
	if e.sess.EndingType != "" {
		return ErrEnded
	}
	if e.sess.IsTyping {
		return ErrBusy
	}
	if e.sess.CurrentWorld != "" && !clock.CanAct(e.sess) {
		return ErrNoActionPoints
	}

	userMsg := e.newMessage(types.RoleUser, input)
	state.AppendMessage(e.sess, userMsg)
	e.sess.IsTyping = true
	e.sess.Streaming = ""

	system := BuildSystemPrompt(e.cat, e.sess)
	history := e.promptHistory()

	full, err := e.narrator.Stream(ctx, system, history, func(chunk string) {
		e.sess.Streaming += chunk
		if onChunk != nil {
			onChunk(chunk)
		}
	})
	e.sess.IsTyping = false
	e.sess.Streaming = ""
	if err != nil {
		e.appendSystem(fmt.Sprintf("请求失败: %s。时空裂隙波动，连接中断，请重试。", err))
		return err
	}

	roster := e.cat.WorldCharacters(e.sess.CurrentWorld)
	directives := parser.ParseDirectives(full, roster)
	clean, choices := parser.ExtractChoices(full)
	if len(choices) < 2 {
		choices = e.fallbackChoices()
	}
	if len(choices) > maxChoices {
		choices = choices[:maxChoices]
	}

	state.ApplyDirectives(e.cat, e.sess, directives)

	assistant := e.newMessage(types.RoleAssistant, clean)
	assistant.Character = e.detectSpeaker(full, roster)
	state.AppendMessage(e.sess, assistant)
	e.sess.Choices = choices

	state.AddRecord(e.sess, types.StoryRecord{
		ID:      "sr-" + uuid.NewString(),
		Day:     e.sess.CurrentDay,
		Period:  e.cat.Period(e.sess.CurrentPeriodIndex).Name,
		Title:   truncateRunes(input, recordTitleRunes),
		Content: truncateRunes(clean, recordContentRunes),
	})

	if e.sess.FinalChoicePending && directives.Ending != "" {
		e.setEnding(directives.Ending)
	}

	if e.sess.CurrentWorld != "" && e.sess.EndingType == "" {
		e.advanceClock()
	}

	e.checkEnding()
	e.autosave(ctx)
	e.tracker.Event(telemetry.EventTurnCommitted, map[string]any{
		"day": e.sess.CurrentDay, "period": e.sess.CurrentPeriodIndex,
	})
	return nil
}

// UseItem applies an item effect and narrates it as a system message.
// Item use costs no action points and never calls the narrator.
func (e *Engine) UseItem(itemID string) error {
	if !e.sess.Started {
		return ErrNotStarted
	}
	if e.sess.EndingType != "" {
		return ErrEnded
	}
	res, err := effects.Use(e.cat, e.sess, itemID)
	if err != nil {
		return err
	}
	e.appendSystem(res.Message)
	e.tracker.Event(telemetry.EventItemUsed, map[string]any{
		"item": itemID, "consumed": res.Consumed,
	})
	return nil
}

// CompleteWorld collects the current world's soul fragment. It requires a
// fully devoted character, costs one random memory, and returns the player
// to the hub with a cleared transcript.
func (e *Engine) CompleteWorld() error {
	if !e.sess.Started {
		return ErrNotStarted
	}
	if e.sess.EndingType != "" {
		return ErrEnded
	}
	if e.sess.CurrentWorld == "" {
		return ErrNoWorld
	}
	if !e.fragmentEarned() {
		return ErrNotEligible
	}

	lost := e.drawMemory()
	worldID := e.sess.CurrentWorld

	e.sess.SoulFragments++
	e.sess.LostMemories = append(e.sess.LostMemories, lost)
	e.sess.CompletedWorlds = append(e.sess.CompletedWorlds, worldID)
	e.sess.CurrentWorld = ""
	e.sess.CurrentCharacter = ""
	e.sess.CharacterStats = map[string]map[string]int{}
	e.sess.Messages = nil
	e.sess.HistorySummary = ""
	e.sess.Choices = nil
	if hub, ok := e.hubScene(); ok {
		e.sess.CurrentScene = hub.ID
	}

	e.appendSystem(fmt.Sprintf(
		"灵魂碎片回收成功！(%d/%d)\n代价...你失去了一段记忆：「%s」\n\n你回到了灰色空间，轮回之镜在等待你的下一个选择。",
		e.sess.SoulFragments, totalFragments, lost))
	state.AddRecord(e.sess, types.StoryRecord{
		ID:      "sr-" + uuid.NewString(),
		Day:     e.sess.CurrentDay,
		Period:  e.cat.Period(e.sess.CurrentPeriodIndex).Name,
		Title:   "碎片回收",
		Content: fmt.Sprintf("回收第%d枚灵魂碎片，失去记忆「%s」。", e.sess.SoulFragments, lost),
	})

	e.tracker.Event(telemetry.EventWorldCompleted, map[string]any{
		"world": worldID, "fragments": e.sess.SoulFragments,
	})

	if e.sess.SoulFragments >= totalFragments {
		e.checkEnding()
	}
	e.autosave(context.Background())
	return nil
}

// CheckEnding evaluates the ending rules and returns the reached ending, if
// any. Bad end takes precedence; the true end needs all fragments with at
// most two memories lost; four fragments otherwise raise the final choice.
func (e *Engine) CheckEnding() (types.EndingType, bool) {
	e.checkEnding()
	if e.sess.EndingType == "" {
		return "", false
	}
	return types.EndingType(e.sess.EndingType), true
}

// Reset discards the session and starts over with a fresh seed.
func (e *Engine) Reset() {
	seed := time.Now().UnixNano()
	e.rng = NewRNG(seed)
	e.sess = state.New(e.cat)
	e.sess.RNGSeed = seed
}

// Save snapshots the session into the autosave slot.
func (e *Engine) Save(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	e.sess.RNGSeed = e.rng.Seed()
	e.sess.RNGPosition = e.rng.Position()
	data, err := save.Encode(save.Capture(e.sess))
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	return e.store.Put(ctx, save.AutosaveSlot, data)
}

// Load replaces the session from the autosave slot, restoring the RNG to
// its saved position so future draws continue the same sequence.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return save.ErrNotFound
	}
	data, err := e.store.Get(ctx, save.AutosaveSlot)
	if err != nil {
		return err
	}
	snap, err := save.Decode(data)
	if err != nil {
		return err
	}
	e.sess = save.Restore(e.cat, snap)
	e.rng = RestoreRNG(e.sess.RNGSeed, e.sess.RNGPosition)
	return nil
}

// HasSave reports whether an autosave exists.
func (e *Engine) HasSave(ctx context.Context) (bool, error) {
	if e.store == nil {
		return false, nil
	}
	return e.store.Has(ctx, save.AutosaveSlot)
}

// ClearSave deletes the autosave.
func (e *Engine) ClearSave(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Delete(ctx, save.AutosaveSlot)
}

// ── internals ──

func (e *Engine) advanceClock() {
	res := clock.Tick(e.cat, e.sess)

	if res.DayRolled {
		chapter := e.cat.ChapterForDay(e.sess.CurrentDay)
		day := e.newMessage(types.RoleSystem,
			fmt.Sprintf("第%d天 · %s", e.sess.CurrentDay, res.Period.Name))
		day.Type = types.MessageEpisode
		state.AppendMessage(e.sess, day)
		e.tracker.Event(telemetry.EventDayAdvanced, map[string]any{
			"day": e.sess.CurrentDay, "world": e.sess.CurrentWorld,
		})

		if res.ChapterChanged {
			e.appendSystem(fmt.Sprintf("— 第%d章「%s」%s —",
				res.Chapter.ID, res.Chapter.Name, res.Chapter.Description))
			e.tracker.Event(telemetry.EventChapterEntered, map[string]any{
				"chapter": res.Chapter.ID, "day": e.sess.CurrentDay,
			})
		}
		state.AddRecord(e.sess, types.StoryRecord{
			ID:      "sr-" + uuid.NewString(),
			Day:     e.sess.CurrentDay,
			Period:  res.Period.Name,
			Title:   fmt.Sprintf("进入第%d天", e.sess.CurrentDay),
			Content: fmt.Sprintf("%s · %s", chapter.Name, res.Period.Name),
		})
	}

	for _, ev := range events.Dispatch(e.cat, e.sess) {
		e.appendSystem(fmt.Sprintf("%s\n%s", ev.Name, ev.Description))
		state.AddRecord(e.sess, types.StoryRecord{
			ID:      "sr-" + uuid.NewString(),
			Day:     e.sess.CurrentDay,
			Period:  res.Period.Name,
			Title:   ev.Name,
			Content: ev.Description,
		})
	}
}

func (e *Engine) checkEnding() {
	if e.sess.EndingType != "" {
		return
	}

	switch {
	case e.sess.CurrentWorld != "" && e.sess.CurrentDay > e.cat.MaxDays:
		e.setEnding(types.EndingBad)

	case e.sess.SoulFragments >= totalFragments && len(e.sess.LostMemories) <= teMaxMemories:
		e.setEnding(types.EndingTrue)

	case e.sess.SoulFragments >= totalFragments && e.sess.CurrentWorld == "" && !e.sess.FinalChoicePending:
		e.sess.FinalChoicePending = true
		e.appendSystem("四个灵魂碎片全部回收。轮回之镜泛起涟漪...\n\n\"你已集齐所有碎片。现在，做出你的选择：\"\n\n1. 复活 — 回到原来的世界，但失去所有记忆\n2. 保留记忆 — 放弃复活，成为轮回之镜的新器灵\n3. 相信缘分 — 带着所有记忆复活（需要足够的信念）")
		e.sess.Choices = []string{
			"复活 — 回到原来的世界，但失去所有记忆",
			"保留记忆 — 放弃复活，成为轮回之镜的新器灵",
			"相信缘分 — 带着所有记忆复活",
		}
	}
}

func (e *Engine) setEnding(t types.EndingType) {
	ending, ok := e.cat.EndingByType(t)
	if !ok {
		ending = types.Ending{Type: t, Name: string(t)}
	}
	e.sess.EndingType = string(t)
	e.sess.FinalChoicePending = false
	e.sess.Choices = nil
	e.appendSystem(fmt.Sprintf("【%s】\n%s", ending.Name, ending.Description))
	e.tracker.Event(telemetry.EventEndingReached, map[string]any{"ending": ending.ID})
}

// fragmentEarned reports whether any current-world character is fully
// devoted.
func (e *Engine) fragmentEarned() bool {
	for _, ch := range e.cat.WorldCharacters(e.sess.CurrentWorld) {
		if e.sess.CharacterStats[ch.ID]["affection"] >= 100 {
			return true
		}
	}
	return false
}

// drawMemory picks a random memory the player has not lost yet.
func (e *Engine) drawMemory() string {
	var available []string
	for _, m := range e.cat.MemoryPool {
		lost := false
		for _, l := range e.sess.LostMemories {
			if l == m {
				lost = true
			}
		}
		if !lost {
			available = append(available, m)
		}
	}
	if len(available) == 0 {
		return memoryFallback
	}
	return available[e.rng.Pick(len(available))]
}

// promptHistory maps the trailing transcript window into chat messages,
// skipping structural messages the narrator should not see as prose.
func (e *Engine) promptHistory() []types.ChatMessage {
	var out []types.ChatMessage
	for _, m := range e.sess.Messages {
		if m.Type != "" {
			continue
		}
		out = append(out, types.ChatMessage{Role: m.Role, Content: m.Content})
	}
	if len(out) > promptWindow {
		out = out[len(out)-promptWindow:]
	}
	return out
}

func (e *Engine) fallbackChoices() []string {
	if ch, ok := e.cat.Character(e.sess.CurrentCharacter); ok {
		return []string{
			fmt.Sprintf("继续和%s聊天", ch.Name),
			fmt.Sprintf("向%s表达好感", ch.Name),
			fmt.Sprintf("试探%s的真实想法", ch.Name),
			"换个话题聊聊",
		}
	}
	sceneName := "周围"
	if scene, ok := e.cat.Scene(e.sess.CurrentScene); ok {
		sceneName = scene.Name
	}
	return []string{
		fmt.Sprintf("探索%s", sceneName),
		"与角色交谈",
		"查看碎片探测器",
		"自由行动",
	}
}

// detectSpeaker matches the reply's speaker color back to a roster id.
func (e *Engine) detectSpeaker(text string, roster []types.Character) string {
	color := parser.RenderNarrative(text, roster).SpeakerColor
	if color == "" {
		return ""
	}
	for _, ch := range roster {
		if ch.ThemeColor == color {
			return ch.ID
		}
	}
	return ""
}

func (e *Engine) newMessage(role types.Role, content string) types.Message {
	return types.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (e *Engine) appendSystem(content string) {
	state.AppendMessage(e.sess, e.newMessage(types.RoleSystem, content))
}

func (e *Engine) appendSceneTransition(scene types.Scene) {
	msg := e.newMessage(types.RoleSystem,
		fmt.Sprintf("你来到了%s。%s", scene.Name, scene.Atmosphere))
	msg.Type = types.MessageScene
	msg.SceneID = scene.ID
	state.AppendMessage(e.sess, msg)
}

func (e *Engine) autosave(ctx context.Context) {
	if err := e.Save(ctx); err != nil {
		e.logger.Warn("autosave failed", "err", err)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}

// hubScene returns the universal hub scene the player occupies between
// worlds.
func (e *Engine) hubScene() (types.Scene, bool) {
	for _, s := range e.cat.Scenes {
		if s.WorldID == catalog.UniversalWorld {
			return s, true
		}
	}
	return types.Scene{}, false
}

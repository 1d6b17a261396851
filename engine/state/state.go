// Package state holds the pure session-state transitions: construction,
// stat application with clamping, the luck chain reaction, history
// compaction, and journal bookkeeping. Functions mutate the session they
// are given and never perform I/O.
package state

import (
	"fmt"
	"strings"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/types"
)

const (
	// historyHighWater triggers compaction; historyKeep messages survive it.
	historyHighWater = 15
	historyKeep      = 10
	summaryMaxRunes  = 2000

	maxRecords = 50

	relationMin = 0
	relationMax = 100

	chainThreshold = 60
	chainLuckBonus = 3
)

// New returns a fresh unstarted session with every map initialized and
// player stats seeded from the catalog's starting values.
func New(cat *catalog.Catalog) *types.Session {
	sess := &types.Session{
		PlayerGender:       "unspecified",
		CompletedWorlds:    []string{},
		LostMemories:       []string{},
		PlayerStats:        map[string]int{},
		CharacterStats:     map[string]map[string]int{},
		CurrentDay:         1,
		CurrentPeriodIndex: 0,
		ActionPoints:       cat.MaxAP,
		CurrentChapter:     1,
		TriggeredEvents:    []string{},
		Inventory:          map[string]int{},
		UnlockedScenes:     []string{},
	}
	for _, g := range cat.GlobalStats {
		sess.PlayerStats[g.Key] = g.Start
	}
	return sess
}

// EnterWorld moves the session into a world: a fresh 30-day timeline,
// relationship stats rebuilt from the new world's roster (prior rosters are
// discarded), the world's entry scene plus universal scenes unlocked, and
// the world's quest items granted once.
func EnterWorld(cat *catalog.Catalog, sess *types.Session, worldID string) {
	sess.CurrentWorld = worldID
	sess.CurrentDay = 1
	sess.CurrentPeriodIndex = 0
	sess.ActionPoints = cat.MaxAP
	sess.CurrentChapter = cat.ChapterForDay(1).ID
	sess.TriggeredEvents = []string{}
	sess.CurrentCharacter = ""
	sess.Choices = nil

	sess.CharacterStats = map[string]map[string]int{}
	for _, ch := range cat.WorldCharacters(worldID) {
		stats := map[string]int{}
		for k, v := range ch.InitialStats {
			stats[k] = v
		}
		sess.CharacterStats[ch.ID] = stats
	}

	sess.UnlockedScenes = []string{}
	for _, s := range cat.WorldScenes(worldID) {
		if s.WorldID == catalog.UniversalWorld || s.UnlockDay <= 1 {
			sess.UnlockedScenes = append(sess.UnlockedScenes, s.ID)
		}
	}
	if entry, ok := cat.FirstWorldScene(worldID); ok {
		sess.CurrentScene = entry.ID
	}

	for _, it := range cat.WorldItems(worldID) {
		if it.Type == types.ItemQuest {
			if _, owned := sess.Inventory[it.ID]; !owned {
				sess.Inventory[it.ID] = 1
			}
		}
	}
}

// UnlockDueScenes appends current-world scenes whose unlock day has arrived.
// Returns the newly unlocked scenes.
func UnlockDueScenes(cat *catalog.Catalog, sess *types.Session) []types.Scene {
	var unlocked []types.Scene
	for _, s := range cat.WorldScenes(sess.CurrentWorld) {
		if s.UnlockDay > sess.CurrentDay {
			continue
		}
		if hasString(sess.UnlockedScenes, s.ID) {
			continue
		}
		sess.UnlockedScenes = append(sess.UnlockedScenes, s.ID)
		unlocked = append(unlocked, s)
	}
	return unlocked
}

// ApplyGlobalDelta adds a parsed player-stat delta, clamped to the stat's
// declared range. Unknown keys are ignored.
func ApplyGlobalDelta(cat *catalog.Catalog, sess *types.Session, d types.GlobalDelta) {
	g, ok := cat.GlobalStat(d.StatKey)
	if !ok {
		return
	}
	sess.PlayerStats[d.StatKey] = clamp(sess.PlayerStats[d.StatKey]+d.Delta, g.Min, g.Max)
}

// ApplyCharacterDelta adds a parsed relationship delta, clamped to [0,100].
// Characters the player has not met yet get a stat map on first write.
func ApplyCharacterDelta(sess *types.Session, d types.CharacterDelta) {
	stats := sess.CharacterStats[d.CharacterID]
	if stats == nil {
		stats = map[string]int{}
		sess.CharacterStats[d.CharacterID] = stats
	}
	stats[d.StatKey] = clamp(stats[d.StatKey]+d.Delta, relationMin, relationMax)
}

// ApplyDirectives applies both directive tracks in parse order, then runs
// the chain-reaction rule over the resulting stats.
func ApplyDirectives(cat *catalog.Catalog, sess *types.Session, d types.Directives) {
	for _, cd := range d.Character {
		ApplyCharacterDelta(sess, cd)
	}
	for _, gd := range d.Global {
		ApplyGlobalDelta(cat, sess, gd)
	}
	ChainReaction(cat, sess)
}

// ChainReaction raises luck when every other core stat sits above the
// threshold. Applied after each directive batch, so a batch that lifts the
// last stat over 60 pays out immediately.
func ChainReaction(cat *catalog.Catalog, sess *types.Session) {
	for _, key := range []string{"beauty", "wisdom", "stamina", "charm"} {
		if sess.PlayerStats[key] <= chainThreshold {
			return
		}
	}
	luckMax := relationMax
	if g, ok := cat.GlobalStat("luck"); ok {
		luckMax = g.Max
	}
	if sess.PlayerStats["luck"]+chainLuckBonus > luckMax {
		sess.PlayerStats["luck"] = luckMax
		return
	}
	sess.PlayerStats["luck"] += chainLuckBonus
}

// DailyDecay applies the overnight stamina drain at day rollover.
func DailyDecay(cat *catalog.Catalog, sess *types.Session) {
	ApplyGlobalDelta(cat, sess, types.GlobalDelta{StatKey: "stamina", Delta: -3})
}

// AppendMessage adds a transcript entry and compacts history if the
// transcript has grown past the high-water mark.
func AppendMessage(sess *types.Session, msg types.Message) {
	sess.Messages = append(sess.Messages, msg)
	CompactHistory(sess)
}

// CompactHistory folds all but the newest messages into the rolling summary
// once the transcript exceeds the high-water mark. The summary itself is
// capped so the narrator context cannot grow without bound.
func CompactHistory(sess *types.Session) {
	if len(sess.Messages) <= historyHighWater {
		return
	}
	older := sess.Messages[:len(sess.Messages)-historyKeep]

	var b strings.Builder
	b.WriteString(sess.HistorySummary)
	for _, m := range older {
		speaker := "旁白"
		if m.Role == types.RoleUser {
			speaker = sess.PlayerName
			if speaker == "" {
				speaker = "玩家"
			}
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s：%s", speaker, m.Content)
	}

	summary := []rune(b.String())
	if len(summary) > summaryMaxRunes {
		summary = summary[len(summary)-summaryMaxRunes:]
	}
	sess.HistorySummary = string(summary)
	sess.Messages = append([]types.Message{}, sess.Messages[len(sess.Messages)-historyKeep:]...)
}

// AddRecord appends a journal entry, keeping only the newest entries.
func AddRecord(sess *types.Session, rec types.StoryRecord) {
	sess.Records = append(sess.Records, rec)
	if len(sess.Records) > maxRecords {
		sess.Records = sess.Records[len(sess.Records)-maxRecords:]
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

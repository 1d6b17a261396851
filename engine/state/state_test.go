package state

import (
	"fmt"
	"testing"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/types"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		MaxDays: 30,
		MaxAP:   6,
		GlobalStats: []types.GlobalStat{
			{Key: "beauty", Label: "颜值", Min: 0, Max: 100, Start: 80},
			{Key: "wisdom", Label: "智慧", Min: 0, Max: 100, Start: 85},
			{Key: "stamina", Label: "体力", Min: 0, Max: 100, Start: 70},
			{Key: "charm", Label: "魅力", Min: 0, Max: 100, Start: 85},
			{Key: "luck", Label: "运气", Min: 0, Max: 100, Start: 50},
		},
		Chapters: []types.Chapter{
			{ID: 1, DayRange: [2]int{1, 5}},
		},
		Characters: []types.Character{
			{ID: "jingheng", WorldID: "palace", Name: "萧景珩",
				InitialStats: map[string]int{"affection": 20, "trust": 10}},
			{ID: "linyuan", WorldID: "academy", Name: "林渊",
				InitialStats: map[string]int{"affection": 10, "trust": 5}},
		},
		Scenes: []types.Scene{
			{ID: "grayspace", WorldID: catalog.UniversalWorld},
			{ID: "palace_study", WorldID: "palace", UnlockDay: 1},
			{ID: "palace_garden", WorldID: "palace", UnlockDay: 3},
		},
		Items: []types.Item{
			{ID: "detector", WorldID: catalog.UniversalWorld, Type: types.ItemQuest},
			{ID: "potion", WorldID: catalog.UniversalWorld, Type: types.ItemConsumable},
		},
	}
}

func TestNew_SeedsDefaults(t *testing.T) {
	sess := New(testCatalog())
	if sess.Started {
		t.Error("new session must not be started")
	}
	if sess.PlayerStats["beauty"] != 80 || sess.PlayerStats["luck"] != 50 {
		t.Errorf("player stats not seeded from catalog: %v", sess.PlayerStats)
	}
	if sess.CurrentDay != 1 || sess.ActionPoints != 6 || sess.CurrentPeriodIndex != 0 {
		t.Errorf("clock defaults wrong: day=%d ap=%d period=%d",
			sess.CurrentDay, sess.ActionPoints, sess.CurrentPeriodIndex)
	}
	if sess.Inventory == nil || sess.CharacterStats == nil {
		t.Error("maps must be initialized")
	}
}

func TestEnterWorld_SeedsRosterAndScenes(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	EnterWorld(cat, sess, "palace")

	if sess.CharacterStats["jingheng"]["affection"] != 20 {
		t.Errorf("roster stats not seeded: %v", sess.CharacterStats)
	}
	if sess.CurrentScene != "palace_study" {
		t.Errorf("entry scene not set, got %q", sess.CurrentScene)
	}
	for _, want := range []string{"grayspace", "palace_study"} {
		found := false
		for _, id := range sess.UnlockedScenes {
			if id == want {
				found = true
			}
		}
		if !found {
			t.Errorf("scene %q should be unlocked on entry", want)
		}
	}
	for _, id := range sess.UnlockedScenes {
		if id == "palace_garden" {
			t.Error("day-gated scene unlocked too early")
		}
	}
	if sess.Inventory["detector"] != 1 {
		t.Errorf("quest item not granted: %v", sess.Inventory)
	}
}

func TestEnterWorld_ReplacesRosterStats(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	EnterWorld(cat, sess, "palace")
	sess.CharacterStats["jingheng"]["affection"] = 77

	EnterWorld(cat, sess, "academy")
	if _, kept := sess.CharacterStats["jingheng"]; kept {
		t.Errorf("prior-world roster must be discarded on entry: %v", sess.CharacterStats)
	}
	if sess.CharacterStats["linyuan"]["affection"] != 10 {
		t.Errorf("new roster not seeded from initial stats: %v", sess.CharacterStats)
	}
}

func TestEnterWorld_CarriesInventory(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	EnterWorld(cat, sess, "palace")
	sess.Inventory["potion"] = 2

	EnterWorld(cat, sess, "academy")
	if sess.Inventory["potion"] != 2 {
		t.Errorf("unused consumables must survive world entry: %v", sess.Inventory)
	}
	if sess.Inventory["detector"] != 1 {
		t.Errorf("quest items must survive world entry: %v", sess.Inventory)
	}
}

func TestUnlockDueScenes_DayGate(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	EnterWorld(cat, sess, "palace")

	sess.CurrentDay = 3
	unlocked := UnlockDueScenes(cat, sess)
	if len(unlocked) != 1 || unlocked[0].ID != "palace_garden" {
		t.Fatalf("expected palace_garden to unlock on day 3, got %v", unlocked)
	}
	if again := UnlockDueScenes(cat, sess); len(again) != 0 {
		t.Error("already-unlocked scenes must not unlock twice")
	}
}

func TestApplyGlobalDelta_Clamps(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)

	ApplyGlobalDelta(cat, sess, types.GlobalDelta{StatKey: "stamina", Delta: -200})
	if sess.PlayerStats["stamina"] != 0 {
		t.Errorf("expected floor 0, got %d", sess.PlayerStats["stamina"])
	}
	ApplyGlobalDelta(cat, sess, types.GlobalDelta{StatKey: "charm", Delta: 50})
	if sess.PlayerStats["charm"] != 100 {
		t.Errorf("expected cap 100, got %d", sess.PlayerStats["charm"])
	}
	ApplyGlobalDelta(cat, sess, types.GlobalDelta{StatKey: "ghost", Delta: 5})
	if _, ok := sess.PlayerStats["ghost"]; ok {
		t.Error("unknown stat key must be ignored")
	}
}

func TestApplyCharacterDelta_ClampsAndSeeds(t *testing.T) {
	sess := New(testCatalog())

	ApplyCharacterDelta(sess, types.CharacterDelta{CharacterID: "luye", StatKey: "affection", Delta: -10})
	if sess.CharacterStats["luye"]["affection"] != 0 {
		t.Errorf("expected floor 0 for unmet character, got %v", sess.CharacterStats["luye"])
	}
	ApplyCharacterDelta(sess, types.CharacterDelta{CharacterID: "luye", StatKey: "affection", Delta: 150})
	if sess.CharacterStats["luye"]["affection"] != 100 {
		t.Errorf("expected cap 100, got %d", sess.CharacterStats["luye"]["affection"])
	}
}

func TestChainReaction_FiresWhenAllCoreStatsHigh(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	// Defaults are 80/85/70/85, all above 60.
	luck := sess.PlayerStats["luck"]
	ChainReaction(cat, sess)
	if sess.PlayerStats["luck"] != luck+3 {
		t.Errorf("expected luck +3, got %d", sess.PlayerStats["luck"])
	}
}

func TestChainReaction_SkipsWhenAnyStatLow(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	sess.PlayerStats["stamina"] = 60 // not strictly above threshold
	luck := sess.PlayerStats["luck"]
	ChainReaction(cat, sess)
	if sess.PlayerStats["luck"] != luck {
		t.Errorf("chain reaction must not fire at 60, luck=%d", sess.PlayerStats["luck"])
	}
}

func TestChainReaction_CapsAtMax(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	sess.PlayerStats["luck"] = 99
	ChainReaction(cat, sess)
	if sess.PlayerStats["luck"] != 100 {
		t.Errorf("expected luck capped at 100, got %d", sess.PlayerStats["luck"])
	}
}

func TestDailyDecay_FloorsAtZero(t *testing.T) {
	cat := testCatalog()
	sess := New(cat)
	sess.PlayerStats["stamina"] = 2
	DailyDecay(cat, sess)
	if sess.PlayerStats["stamina"] != 0 {
		t.Errorf("expected stamina floored at 0, got %d", sess.PlayerStats["stamina"])
	}
}

func TestCompactHistory_FoldsOlderMessages(t *testing.T) {
	sess := New(testCatalog())
	sess.PlayerName = "林晚"
	for i := 0; i < 16; i++ {
		sess.Messages = append(sess.Messages, types.Message{
			ID:      fmt.Sprintf("m%d", i),
			Role:    types.RoleAssistant,
			Content: fmt.Sprintf("第%d段", i),
		})
	}

	CompactHistory(sess)
	if len(sess.Messages) != 10 {
		t.Fatalf("expected 10 surviving messages, got %d", len(sess.Messages))
	}
	if sess.Messages[0].ID != "m6" {
		t.Errorf("wrong survivors, first is %s", sess.Messages[0].ID)
	}
	if sess.HistorySummary == "" {
		t.Error("folded messages must land in the summary")
	}
}

func TestCompactHistory_SummaryCapped(t *testing.T) {
	sess := New(testCatalog())
	long := make([]rune, 500)
	for i := range long {
		long[i] = '雨'
	}
	for i := 0; i < 20; i++ {
		sess.Messages = append(sess.Messages, types.Message{
			Role: types.RoleAssistant, Content: string(long),
		})
	}

	CompactHistory(sess)
	if n := len([]rune(sess.HistorySummary)); n > 2000 {
		t.Errorf("summary must be capped at 2000 runes, got %d", n)
	}
}

func TestCompactHistory_NoopBelowHighWater(t *testing.T) {
	sess := New(testCatalog())
	for i := 0; i < 15; i++ {
		sess.Messages = append(sess.Messages, types.Message{Role: types.RoleUser, Content: "x"})
	}
	CompactHistory(sess)
	if len(sess.Messages) != 15 || sess.HistorySummary != "" {
		t.Error("compaction must not run at or below the high-water mark")
	}
}

func TestAddRecord_KeepsNewest(t *testing.T) {
	sess := New(testCatalog())
	for i := 0; i < 55; i++ {
		AddRecord(sess, types.StoryRecord{ID: fmt.Sprintf("r%d", i)})
	}
	if len(sess.Records) != 50 {
		t.Fatalf("expected 50 records, got %d", len(sess.Records))
	}
	if sess.Records[0].ID != "r5" || sess.Records[49].ID != "r54" {
		t.Errorf("wrong records kept: first=%s last=%s", sess.Records[0].ID, sess.Records[49].ID)
	}
}

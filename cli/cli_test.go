package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/engine"
	"github.com/nathoo/mirrorloop/engine/save"
	"github.com/nathoo/mirrorloop/narrator"
	"github.com/nathoo/mirrorloop/types"
)

// testCatalog returns a one-world catalog for CLI testing.
func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Story:   types.StoryInfo{Title: "镜中轮回"},
		MaxDays: 30,
		MaxAP:   6,
		Periods: []types.Period{
			{Index: 0, Name: "清晨", Hours: "05:00-08:59"},
			{Index: 1, Name: "上午", Hours: "09:00-11:59"},
			{Index: 2, Name: "深夜", Hours: "20:00-04:59"},
		},
		GlobalStats: []types.GlobalStat{
			{Key: "stamina", Label: "体力", Min: 0, Max: 100, Start: 70},
		},
		MemoryPool: []string{"童年夏天在院子里追蝴蝶的午后"},
		Worlds: []types.World{
			{ID: "palace", Name: "权谋深宫", Description: "大胤王朝的深宫。"},
		},
		Characters: []types.Character{
			{ID: "jingheng", WorldID: "palace", Name: "萧景珩", Title: "太子",
				ThemeColor: "#4a90d9",
				StatMetas: []types.StatMeta{
					{Key: "affection", Label: "好感"},
					{Key: "trust", Label: "信任"},
				},
				InitialStats: map[string]int{"affection": 20, "trust": 10}},
		},
		Scenes: []types.Scene{
			{ID: "grayspace", WorldID: catalog.UniversalWorld, Name: "灰色空间"},
			{ID: "palace_study", WorldID: "palace", Name: "东宫书房", UnlockDay: 1},
		},
		Items: []types.Item{
			{ID: "detector", WorldID: catalog.UniversalWorld, Name: "灵魂碎片探测器",
				Type: types.ItemQuest, Description: "可探测灵魂碎片位置"},
			{ID: "potion", WorldID: catalog.UniversalWorld, Name: "恢复药水",
				Type: types.ItemConsumable, Description: "恢复体力值"},
		},
		Chapters: []types.Chapter{
			{ID: 1, Name: "初入世界", DayRange: [2]int{1, 30}},
		},
		Endings: []types.Ending{
			{ID: "be-dissolve", Name: "消散", Type: types.EndingBad},
		},
	}
}

func newTestCLI(t *testing.T, input string, replies ...string) (*CLI, *bytes.Buffer) {
	t.Helper()
	if len(replies) == 0 {
		replies = []string{"镜面泛起涟漪。\n\n1. 环顾四周\n2. 等待"}
	}
	store, err := save.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(testCatalog(), engine.Options{
		Narrator: &narrator.Scripted{Replies: replies},
		Store:    store,
		Seed:     42,
	})
	if err := eng.StartSession("林小小", "female"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	c := &CLI{
		Engine: eng,
		In:     strings.NewReader(input),
		Out:    &out,
	}
	return c, &out
}

func run(t *testing.T, c *CLI) {
	t.Helper()
	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestCLI_OpeningAndChoices(t *testing.T) {
	c, out := newTestCLI(t, "/quit\n")
	run(t, c)

	output := out.String()
	if !strings.Contains(output, "灰白色的虚空") {
		t.Error("expected the contract opening in output")
	}
	if !strings.Contains(output, "1. 查看四个世界") {
		t.Error("expected numbered hub choices in output")
	}
}

func TestCLI_TurnStreamsReply(t *testing.T) {
	c, out := newTestCLI(t, "观察轮回之镜\n/quit\n")
	run(t, c)

	if !strings.Contains(out.String(), "镜面泛起涟漪。") {
		t.Error("expected streamed narrator reply in output")
	}
}

func TestCLI_NumberPicksChoice(t *testing.T) {
	c, out := newTestCLI(t, "3\n/quit\n")
	run(t, c)

	// Hub choice 3 is "检查自身状态"; it is echoed before being submitted.
	if !strings.Contains(out.String(), "[检查自身状态]") {
		t.Error("expected the picked choice echoed as input")
	}
}

func TestCLI_SelectWorld(t *testing.T) {
	c, out := newTestCLI(t, "/world palace\n/quit\n")
	run(t, c)

	output := out.String()
	if !strings.Contains(output, "你踏入了「权谋深宫」的世界") {
		t.Error("expected world entry narration")
	}
	if !strings.Contains(output, "1. 环顾四周") {
		t.Error("expected world opening choices")
	}
}

func TestCLI_SelectWorldUnknown(t *testing.T) {
	c, out := newTestCLI(t, "/world atlantis\n/quit\n")
	run(t, c)

	if !strings.Contains(out.String(), "没有这个世界") {
		t.Error("expected unknown-world message")
	}
}

func TestCLI_StatusCommand(t *testing.T) {
	c, out := newTestCLI(t, "/status\n/quit\n")
	run(t, c)

	output := out.String()
	if !strings.Contains(output, "第1天") {
		t.Error("expected day in status output")
	}
	if !strings.Contains(output, "行动点 6/6") {
		t.Error("expected action points in status output")
	}
	if !strings.Contains(output, "体力70") {
		t.Error("expected player stats in status output")
	}
}

func TestCLI_ItemsAndUse(t *testing.T) {
	c, out := newTestCLI(t, "/items\n/use detector\n/quit\n")
	run(t, c)

	output := out.String()
	if !strings.Contains(output, "灵魂碎片探测器") {
		t.Error("expected detector in inventory listing")
	}
	if !strings.Contains(output, "0/4") {
		t.Error("expected detector report after use")
	}
}

func TestCLI_UseNotOwned(t *testing.T) {
	c, out := newTestCLI(t, "/use candy\n/quit\n")
	run(t, c)

	if !strings.Contains(out.String(), "操作失败") {
		t.Error("expected failure message for unowned item")
	}
}

func TestCLI_SaveAndLoad(t *testing.T) {
	c, out := newTestCLI(t, "/save\n/load\n/quit\n")
	run(t, c)

	output := out.String()
	if !strings.Contains(output, "进度已保存") {
		t.Error("expected save confirmation")
	}
	if !strings.Contains(output, "进度已读取") {
		t.Error("expected load confirmation")
	}
}

func TestCLI_HelpCommand(t *testing.T) {
	c, out := newTestCLI(t, "/help\n/quit\n")
	run(t, c)

	output := out.String()
	for _, want := range []string{"/save", "/world", "/complete"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in help output", want)
		}
	}
}

func TestCLI_UnknownMetaCommand(t *testing.T) {
	c, out := newTestCLI(t, "/bogus\n/quit\n")
	run(t, c)

	if !strings.Contains(out.String(), "未知命令") {
		t.Error("expected unknown command message")
	}
}

func TestCLI_CompleteWorldNotEligible(t *testing.T) {
	c, out := newTestCLI(t, "/world palace\n/complete\n/quit\n")
	run(t, c)

	if !strings.Contains(out.String(), "还没有角色对你完全倾心") {
		t.Error("expected not-eligible message")
	}
}

func TestCLI_CompleteWorldCollectsFragment(t *testing.T) {
	c, out := newTestCLI(t, "/complete\n/quit\n")
	if err := c.Engine.SelectWorld("palace"); err != nil {
		t.Fatal(err)
	}
	c.Engine.Session().CharacterStats["jingheng"]["affection"] = 100
	run(t, c)

	output := out.String()
	if !strings.Contains(output, "灵魂碎片回收成功") {
		t.Error("expected fragment collection narration")
	}
	if !strings.Contains(output, "失去了一段记忆") {
		t.Error("expected memory cost narration")
	}
}

func TestCLI_EmptyInputSkipped(t *testing.T) {
	c, out := newTestCLI(t, "\n\n/quit\n")
	run(t, c)

	if strings.Count(out.String(), "未知命令") > 0 {
		t.Error("empty lines should be silently skipped")
	}
}

func TestCLI_CommentLinesSkipped(t *testing.T) {
	c, out := newTestCLI(t, "# script comment\n/quit\n")
	run(t, c)

	if strings.Contains(out.String(), "script comment") {
		t.Error("comment lines should not reach the engine")
	}
}

package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/mirrorloop/types"
)

const storyLua = `
Story {
  title = "镜中轮回",
  subtitle = "四世界灵魂契约",
  script = "玩家穿越四个世界回收灵魂碎片。",
}

Settings {
  max_days = 30,
  max_action_points = 6,
  periods = {
    { name = "清晨", hours = "06:00-09:00" },
    { name = "上午", hours = "09:00-12:00" },
    { name = "中午", hours = "12:00-14:00" },
    { name = "下午", hours = "14:00-17:00" },
    { name = "傍晚", hours = "17:00-20:00" },
    { name = "深夜", hours = "20:00-24:00" },
  },
}

GlobalStats {
  { key = "beauty", label = "颜值", start = 80 },
  { key = "stamina", label = "体力", start = 70 },
}

MemoryPool {
  "童年夏天在院子里追蝴蝶的午后",
  "第一次学会骑自行车时的欢笑",
}

Scene "grayspace" {
  world = "universal",
  name = "灰色空间",
  atmosphere = "无边的灰白虚空。",
}

Item "detector" {
  world = "universal",
  name = "碎片探测器",
  type = "quest",
  description = "感应灵魂碎片的方位。",
}

Chapter(1) { name = "初入世界", days = {1, 15} }
Chapter(2) { name = "渐入佳境", days = {16, 30} }

Ending "be-dissolve" { name = "消散", type = "BE", description = "灵魂随风而逝。" }
`

const palaceLua = `
World "palace" {
  name = "权谋深宫",
  description = "重重宫阙之内，人心深不可测。",
  atmosphere = "威严而压抑",
}

Character "jingheng" {
  world = "palace",
  name = "萧景珩",
  title = "太子",
  theme_color = "#d4af37",
  personality = "外冷内热",
  trigger_points = { "背叛", "谎言" },
  stats = {
    { key = "affection", label = "好感", category = "relation" },
    { key = "trust", label = "信任", category = "relation" },
  },
  initial = { affection = 20, trust = 10 },
}

Scene "palace_study" {
  world = "palace",
  name = "东宫书房",
  atmosphere = "墨香盈室。",
  unlock_day = 1,
}

Event "midpoint_crisis" {
  name = "中期危机",
  day = 15,
  description = "暗流涌动。",
}
`

func writeContent(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoad_CompilesCatalog(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"story.lua":  storyLua,
		"palace.lua": palaceLua,
	})

	cat, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if cat.Story.Title != "镜中轮回" {
		t.Errorf("story title: %q", cat.Story.Title)
	}
	if cat.MaxDays != 30 || cat.MaxAP != 6 || len(cat.Periods) != 6 {
		t.Errorf("settings wrong: days=%d ap=%d periods=%d", cat.MaxDays, cat.MaxAP, len(cat.Periods))
	}
	if cat.Periods[5].Name != "深夜" {
		t.Errorf("period order wrong: %v", cat.Periods)
	}
	if len(cat.MemoryPool) != 2 {
		t.Errorf("memory pool: %v", cat.MemoryPool)
	}

	w, ok := cat.World("palace")
	if !ok || w.Name != "权谋深宫" {
		t.Errorf("world not compiled: %v", w)
	}
	ch, ok := cat.Character("jingheng")
	if !ok {
		t.Fatal("character not compiled")
	}
	if ch.WorldID != "palace" || ch.InitialStats["affection"] != 20 {
		t.Errorf("character fields wrong: %+v", ch)
	}
	if len(ch.StatMetas) != 2 || ch.StatMetas[0].Key != "affection" {
		t.Errorf("stat metas wrong: %v", ch.StatMetas)
	}
	if len(ch.TriggerPoints) != 2 {
		t.Errorf("trigger points wrong: %v", ch.TriggerPoints)
	}

	if _, ok := cat.Scene("grayspace"); !ok {
		t.Error("universal scene missing")
	}
	if it, ok := cat.Item("detector"); !ok || it.Type != types.ItemQuest {
		t.Errorf("item wrong: %v", it)
	}
	if cat.ChapterForDay(20).ID != 2 {
		t.Error("chapter ranges not compiled")
	}
	if ev := cat.EventsDue(15, 3, nil); len(ev) != 1 || ev[0].Period != -1 {
		t.Errorf("event default period should be -1: %v", ev)
	}
	if e, ok := cat.EndingByType(types.EndingBad); !ok || e.ID != "be-dissolve" {
		t.Errorf("ending wrong: %v", e)
	}
}

func TestLoad_MissingStoryFails(t *testing.T) {
	dir := writeContent(t, map[string]string{"palace.lua": palaceLua})
	if _, err := Load(dir); err == nil {
		t.Error("expected error without a Story block")
	}
}

func TestLoad_UnknownWorldRefFails(t *testing.T) {
	bad := palaceLua + "\nCharacter \"ghost\" { world = \"atlantis\", name = \"无名\", stats = { { key = \"affection\", label = \"好感\" } } }\n"
	dir := writeContent(t, map[string]string{
		"story.lua":  storyLua,
		"palace.lua": bad,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "atlantis") {
		t.Errorf("expected unknown-world error, got %v", err)
	}
}

func TestLoad_BrokenChapterCoverageFails(t *testing.T) {
	broken := strings.Replace(storyLua, "days = {16, 30}", "days = {18, 30}", 1)
	dir := writeContent(t, map[string]string{
		"story.lua":  broken,
		"palace.lua": palaceLua,
	})
	if _, err := Load(dir); err == nil {
		t.Error("expected error for a gap in chapter coverage")
	}
}

func TestLoad_SandboxBlocksIO(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"story.lua": storyLua,
		"evil.lua":  `dofile("/etc/passwd")`,
	})
	if _, err := Load(dir); err == nil {
		t.Error("expected sandboxed dofile to fail")
	}
}

func TestLoad_EmptyDirFails(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for a directory without content")
	}
}

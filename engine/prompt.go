package engine

import (
	"fmt"
	"strings"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/types"
)

// BuildSystemPrompt assembles the full narrator briefing from the catalog
// and the live session. It is rebuilt before every turn so the model always
// sees current stats, clock, scene, and history summary.
func BuildSystemPrompt(cat *catalog.Catalog, sess *types.Session) string {
	world, _ := cat.World(sess.CurrentWorld)
	scene, _ := cat.Scene(sess.CurrentScene)
	chapter := cat.ChapterForDay(sess.CurrentDay)
	period := cat.Period(sess.CurrentPeriodIndex)

	worldName := world.Name
	if worldName == "" {
		worldName = "灰色空间"
	}

	genderLabel := "未指定"
	switch sess.PlayerGender {
	case "male":
		genderLabel = "男"
	case "female":
		genderLabel = "女"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "你是《%s》的AI叙述者。\n\n", cat.Story.Title)
	fmt.Fprintf(&b, "## 游戏剧本\n%s\n\n", cat.Story.Script)

	fmt.Fprintf(&b, "## 世界观\n")
	fmt.Fprintf(&b, "你是轮回之镜的器灵，引导玩家完成灵魂契约。玩家死后灵魂碎裂成四片，散落在四个世界。\n")
	fmt.Fprintf(&b, "当前世界：%s — %s\n\n", worldName, world.Atmosphere)

	fmt.Fprintf(&b, "## 核心设定\n")
	fmt.Fprintf(&b, "- 男主们是因执念困在轮回边缘的灵魂，玩家让他们真心爱上自己才能回收碎片\n")
	fmt.Fprintf(&b, "- 每回收一个碎片，玩家失去一段记忆（已失去%d段）\n", len(sess.LostMemories))
	fmt.Fprintf(&b, "- 已收集灵魂碎片：%d/4\n\n", sess.SoulFragments)

	fmt.Fprintf(&b, "## 玩家信息\n")
	fmt.Fprintf(&b, "「%s」，性别%s\n", sess.PlayerName, genderLabel)
	fmt.Fprintf(&b, "属性：")
	for _, g := range cat.GlobalStats {
		fmt.Fprintf(&b, "%s%d ", g.Label, sess.PlayerStats[g.Key])
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## 当前状态\n")
	fmt.Fprintf(&b, "第%d天/%d天 · %s\n", sess.CurrentDay, cat.MaxDays, period.Name)
	fmt.Fprintf(&b, "第%d章「%s」— %s\n", chapter.ID, chapter.Name, chapter.Description)
	fmt.Fprintf(&b, "当前场景：%s\n", orUnknown(scene.Name))
	if ch, ok := cat.Character(sess.CurrentCharacter); ok {
		fmt.Fprintf(&b, "当前交互角色：%s（%s）\n", ch.Name, ch.Title)
	}
	fmt.Fprintf(&b, "行动点：%d/%d\n\n", sess.ActionPoints, cat.MaxAP)

	if ch, ok := cat.Character(sess.CurrentCharacter); ok {
		writeCharacterBrief(&b, sess, ch)
	}

	fmt.Fprintf(&b, "## 当前数值\n%s\n\n", statsSnapshot(cat, sess))

	fmt.Fprintf(&b, "## 背包\n%s\n\n", inventoryLine(cat, sess))

	fmt.Fprintf(&b, "## 已触发事件\n%s\n\n", orNone(strings.Join(sess.TriggeredEvents, "、")))

	summary := sess.HistorySummary
	if summary == "" {
		summary = "旅程刚刚开始"
	}
	fmt.Fprintf(&b, "## 历史摘要\n%s\n\n", summary)

	b.WriteString(`## 叙述风格
- 每段回复 200-400 字（关键剧情 500-800 字），文学性描写，营造沉浸感
- 角色对话格式：【角色名】"对话内容"（语气动作描写）
- 数值变化必须在回复末尾标注：【角色名 好感+N】【角色名 信任+N】
- 玩家属性变化：【颜值+N】【智慧+N】【体力+N】【魅力+N】【运气+N】
- 环境描写用（括号）标注
- 严格遵循剧本中的角色性格、隐藏关系和事件触发条件

## 选项系统（必须严格遵守）
每次回复末尾必须给出恰好4个行动选项，格式严格如下：
1. 选项文本（简洁，15字以内）
2. 选项文本
3. 选项文本
4. 选项文本
规则：
- 必须恰好4个，不能多也不能少
- 选项前不要加"你的选择"等标题行
- 选项应涵盖不同的情感策略和行动方向
- 每个选项要具体、有剧情推动力，不要笼统`)

	if sess.FinalChoicePending {
		b.WriteString("\n\n## 终局裁决\n玩家正面临最终选择。根据玩家的回应判定结局，并在回复末尾输出对应标记：[ENDING:HE]（复活但失忆）、[ENDING:NE]（留守为器灵）或 [ENDING:TE]（带着记忆复活）。")
	}

	return b.String()
}

// writeCharacterBrief appends the focused-character section: persona,
// secrets, trigger points, live stats and the affection-band behavior rules.
func writeCharacterBrief(b *strings.Builder, sess *types.Session, ch types.Character) {
	fmt.Fprintf(b, "## 当前交互角色详情\n")
	fmt.Fprintf(b, "%s（%s）\n", ch.Name, ch.Title)
	fmt.Fprintf(b, "性格：%s\n", ch.Personality)
	fmt.Fprintf(b, "说话风格：%s\n", ch.SpeakingStyle)
	fmt.Fprintf(b, "行为模式：%s\n", ch.BehaviorPatterns)
	fmt.Fprintf(b, "秘密：%s\n", ch.Secret)
	fmt.Fprintf(b, "雷点：%s\n\n", strings.Join(ch.TriggerPoints, "、"))

	fmt.Fprintf(b, "当前数值：\n")
	for _, m := range ch.StatMetas {
		val := sess.CharacterStats[ch.ID][m.Key]
		fmt.Fprintf(b, "%s: %d/100 (%s)\n", m.Label, val, catalog.LevelFor(val).Name)
	}

	b.WriteString(`
## 好感度等级行为准则
- 0-30疏离期：冷漠戒备，保持距离，礼貌疏离
- 31-60好奇期：开始关注，偶尔主动接近，以各种借口帮忙
- 61-80接纳期：接纳进入生活，展现真实一面，愿意分享秘密
- 81-100倾心期：深爱，情绪因玩家波动，为玩家可以做任何事

`)
}

func statsSnapshot(cat *catalog.Catalog, sess *types.Session) string {
	var b strings.Builder
	b.WriteString("玩家属性:\n")
	for _, g := range cat.GlobalStats {
		fmt.Fprintf(&b, "%s: %d\n", g.Label, sess.PlayerStats[g.Key])
	}
	b.WriteString("\nNPC关系:\n")
	for _, ch := range cat.WorldCharacters(sess.CurrentWorld) {
		stats, met := sess.CharacterStats[ch.ID]
		if !met {
			continue
		}
		level := catalog.LevelFor(stats["affection"])
		fmt.Fprintf(&b, "%s: 好感 %d/100 (%s) · 信任 %d/100\n",
			ch.Name, stats["affection"], level.Name, stats["trust"])
	}
	return strings.TrimRight(b.String(), "\n")
}

func inventoryLine(cat *catalog.Catalog, sess *types.Session) string {
	var parts []string
	for _, it := range cat.Items {
		if count := sess.Inventory[it.ID]; count > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", it.Name, count))
		}
	}
	if len(parts) == 0 {
		return "空"
	}
	return strings.Join(parts, "、")
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "无"
	}
	return s
}

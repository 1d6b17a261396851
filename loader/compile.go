// Package loader loads Lua content files into the reference catalog at
// startup. The Lua VM is discarded after loading — zero Lua at runtime.
package loader

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/types"
)

// rawDef holds a curried definition table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// rawChapter holds a chapter table before compilation.
type rawChapter struct {
	id    int
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getNumber returns a numeric field from a Lua table, or def if missing.
func getNumber(tbl *lua.LTable, key string, def float64) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

// getInt returns an int field from a Lua table, or def if missing.
func getInt(tbl *lua.LTable, key string, def int) int {
	return int(getNumber(tbl, key, float64(def)))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// stringList converts a Lua array table to []string.
func stringList(tbl *lua.LTable) []string {
	if tbl == nil {
		return nil
	}
	var out []string
	for i := 1; i <= tbl.MaxN(); i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// intMap converts a Lua table to map[string]int.
func intMap(tbl *lua.LTable) map[string]int {
	if tbl == nil {
		return nil
	}
	m := map[string]int{}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, kok := k.(lua.LString)
		vn, vok := v.(lua.LNumber)
		if kok && vok {
			m[string(ks)] = int(vn)
		}
	})
	return m
}

// compile converts all collected Lua data into a Catalog.
func compile(coll *collector) (*catalog.Catalog, error) {
	cat := &catalog.Catalog{}

	if coll.story == nil {
		return nil, fmt.Errorf("missing Story block")
	}
	cat.Story = types.StoryInfo{
		Title:       getString(coll.story, "title"),
		Subtitle:    getString(coll.story, "subtitle"),
		Description: getString(coll.story, "description"),
		Goal:        getString(coll.story, "goal"),
		Script:      getString(coll.story, "script"),
	}

	if coll.settings == nil {
		return nil, fmt.Errorf("missing Settings block")
	}
	cat.MaxDays = getInt(coll.settings, "max_days", 30)
	cat.MaxAP = getInt(coll.settings, "max_action_points", 6)
	if periods := getTable(coll.settings, "periods"); periods != nil {
		for i := 1; i <= periods.MaxN(); i++ {
			if p, ok := periods.RawGetInt(i).(*lua.LTable); ok {
				cat.Periods = append(cat.Periods, types.Period{
					Index: i - 1,
					Name:  getString(p, "name"),
					Hours: getString(p, "hours"),
				})
			}
		}
	}

	if coll.globalStats != nil {
		for i := 1; i <= coll.globalStats.MaxN(); i++ {
			if g, ok := coll.globalStats.RawGetInt(i).(*lua.LTable); ok {
				cat.GlobalStats = append(cat.GlobalStats, types.GlobalStat{
					Key:   getString(g, "key"),
					Label: getString(g, "label"),
					Min:   getInt(g, "min", 0),
					Max:   getInt(g, "max", 100),
					Start: getInt(g, "start", 0),
				})
			}
		}
	}

	cat.MemoryPool = stringList(coll.memoryPool)

	for _, raw := range coll.worlds {
		cat.Worlds = append(cat.Worlds, types.World{
			ID:          raw.id,
			Name:        getString(raw.table, "name"),
			Description: getString(raw.table, "description"),
			Atmosphere:  getString(raw.table, "atmosphere"),
		})
	}

	for _, raw := range coll.characters {
		ch := types.Character{
			ID:               raw.id,
			WorldID:          getString(raw.table, "world"),
			Name:             getString(raw.table, "name"),
			Title:            getString(raw.table, "title"),
			ThemeColor:       getString(raw.table, "theme_color"),
			Personality:      getString(raw.table, "personality"),
			SpeakingStyle:    getString(raw.table, "speaking_style"),
			Secret:           getString(raw.table, "secret"),
			TriggerPoints:    stringList(getTable(raw.table, "trigger_points")),
			BehaviorPatterns: getString(raw.table, "behavior_patterns"),
			InitialStats:     intMap(getTable(raw.table, "initial")),
		}
		if stats := getTable(raw.table, "stats"); stats != nil {
			for i := 1; i <= stats.MaxN(); i++ {
				if m, ok := stats.RawGetInt(i).(*lua.LTable); ok {
					ch.StatMetas = append(ch.StatMetas, types.StatMeta{
						Key:      getString(m, "key"),
						Label:    getString(m, "label"),
						Color:    getString(m, "color"),
						Category: getString(m, "category"),
					})
				}
			}
		}
		cat.Characters = append(cat.Characters, ch)
	}

	for _, raw := range coll.scenes {
		cat.Scenes = append(cat.Scenes, types.Scene{
			ID:         raw.id,
			WorldID:    getString(raw.table, "world"),
			Name:       getString(raw.table, "name"),
			Atmosphere: getString(raw.table, "atmosphere"),
			Tags:       stringList(getTable(raw.table, "tags")),
			UnlockDay:  getInt(raw.table, "unlock_day", 1),
		})
	}

	for _, raw := range coll.items {
		cat.Items = append(cat.Items, types.Item{
			ID:          raw.id,
			WorldID:     getString(raw.table, "world"),
			Name:        getString(raw.table, "name"),
			Type:        types.ItemType(getString(raw.table, "type")),
			Description: getString(raw.table, "description"),
			MaxCount:    getInt(raw.table, "max_count", 0),
		})
	}

	for _, raw := range coll.chapters {
		days := getTable(raw.table, "days")
		chapter := types.Chapter{
			ID:          raw.id,
			Name:        getString(raw.table, "name"),
			Description: getString(raw.table, "description"),
			Objectives:  stringList(getTable(raw.table, "objectives")),
		}
		if days != nil && days.MaxN() >= 2 {
			if lo, ok := days.RawGetInt(1).(lua.LNumber); ok {
				chapter.DayRange[0] = int(lo)
			}
			if hi, ok := days.RawGetInt(2).(lua.LNumber); ok {
				chapter.DayRange[1] = int(hi)
			}
		}
		cat.Chapters = append(cat.Chapters, chapter)
	}

	for _, raw := range coll.events {
		cat.Events = append(cat.Events, types.ForcedEvent{
			ID:          raw.id,
			Name:        getString(raw.table, "name"),
			TriggerDay:  getInt(raw.table, "day", 0),
			Period:      getInt(raw.table, "period", -1),
			Description: getString(raw.table, "description"),
		})
	}

	for _, raw := range coll.endings {
		cat.Endings = append(cat.Endings, types.Ending{
			ID:          raw.id,
			Name:        getString(raw.table, "name"),
			Type:        types.EndingType(getString(raw.table, "type")),
			Description: getString(raw.table, "description"),
			Condition:   getString(raw.table, "condition"),
		})
	}

	return cat, nil
}

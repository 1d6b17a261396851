// Package catalog holds the immutable reference data — worlds, characters,
// scenes, items, chapters, forced events, endings — and pure lookup functions
// over it. No mutation, no I/O; unknown ids return zero values, never panic.
// The prompt builder and the front-ends both read from the same catalog.
package catalog

import "github.com/nathoo/mirrorloop/types"

// UniversalWorld is the world id shared scenes and items carry.
const UniversalWorld = "universal"

// Catalog is the compiled, referentially stable reference data set.
type Catalog struct {
	Story       types.StoryInfo
	Periods     []types.Period
	MaxDays     int
	MaxAP       int
	GlobalStats []types.GlobalStat
	MemoryPool  []string

	Worlds     []types.World
	Characters []types.Character
	Scenes     []types.Scene
	Items      []types.Item
	Chapters   []types.Chapter
	Events     []types.ForcedEvent
	Endings    []types.Ending
}

// World returns the world with the given id, or a zero World.
func (c *Catalog) World(id string) (types.World, bool) {
	for _, w := range c.Worlds {
		if w.ID == id {
			return w, true
		}
	}
	return types.World{}, false
}

// Character returns the character with the given id, or a zero Character.
func (c *Catalog) Character(id string) (types.Character, bool) {
	for _, ch := range c.Characters {
		if ch.ID == id {
			return ch, true
		}
	}
	return types.Character{}, false
}

// WorldCharacters returns the roster of a world in declaration order.
func (c *Catalog) WorldCharacters(worldID string) []types.Character {
	var out []types.Character
	for _, ch := range c.Characters {
		if ch.WorldID == worldID {
			out = append(out, ch)
		}
	}
	return out
}

// Scene returns the scene with the given id.
func (c *Catalog) Scene(id string) (types.Scene, bool) {
	for _, s := range c.Scenes {
		if s.ID == id {
			return s, true
		}
	}
	return types.Scene{}, false
}

// WorldScenes returns a world's scenes plus universal scenes, in
// declaration order.
func (c *Catalog) WorldScenes(worldID string) []types.Scene {
	var out []types.Scene
	for _, s := range c.Scenes {
		if s.WorldID == worldID || s.WorldID == UniversalWorld {
			out = append(out, s)
		}
	}
	return out
}

// FirstWorldScene returns the first non-universal scene of a world, falling
// back to the first scene of the world set.
func (c *Catalog) FirstWorldScene(worldID string) (types.Scene, bool) {
	scenes := c.WorldScenes(worldID)
	for _, s := range scenes {
		if s.WorldID != UniversalWorld {
			return s, true
		}
	}
	if len(scenes) > 0 {
		return scenes[0], true
	}
	return types.Scene{}, false
}

// Item returns the item with the given id.
func (c *Catalog) Item(id string) (types.Item, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return types.Item{}, false
}

// WorldItems returns a world's items plus universal items.
func (c *Catalog) WorldItems(worldID string) []types.Item {
	var out []types.Item
	for _, it := range c.Items {
		if it.WorldID == worldID || it.WorldID == UniversalWorld {
			out = append(out, it)
		}
	}
	return out
}

// ChapterForDay returns the chapter whose day range contains day. Out-of-range
// days fall back to the first chapter, matching the defensive catalog contract.
func (c *Catalog) ChapterForDay(day int) types.Chapter {
	for _, ch := range c.Chapters {
		if day >= ch.DayRange[0] && day <= ch.DayRange[1] {
			return ch
		}
	}
	if len(c.Chapters) > 0 {
		return c.Chapters[0]
	}
	return types.Chapter{ID: 1}
}

// EventsDue returns forced events due on the given day and period whose ids
// are not yet in triggered. Period -1 on the event matches any period.
func (c *Catalog) EventsDue(day, period int, triggered []string) []types.ForcedEvent {
	var out []types.ForcedEvent
	for _, ev := range c.Events {
		if ev.TriggerDay != day {
			continue
		}
		if ev.Period >= 0 && ev.Period != period {
			continue
		}
		if containsString(triggered, ev.ID) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Ending returns the ending with the given id.
func (c *Catalog) Ending(id string) (types.Ending, bool) {
	for _, e := range c.Endings {
		if e.ID == id {
			return e, true
		}
	}
	return types.Ending{}, false
}

// EndingByType returns the first ending of the given type.
func (c *Catalog) EndingByType(t types.EndingType) (types.Ending, bool) {
	for _, e := range c.Endings {
		if e.Type == t {
			return e, true
		}
	}
	return types.Ending{}, false
}

// Period returns the period at index, clamped into range.
func (c *Catalog) Period(index int) types.Period {
	if len(c.Periods) == 0 {
		return types.Period{}
	}
	if index < 0 || index >= len(c.Periods) {
		index = 0
	}
	return c.Periods[index]
}

// GlobalStat returns the global-stat meta for a key.
func (c *Catalog) GlobalStat(key string) (types.GlobalStat, bool) {
	for _, g := range c.GlobalStats {
		if g.Key == key {
			return g, true
		}
	}
	return types.GlobalStat{}, false
}

// GlobalStatByLabel resolves a directive alias (e.g. "颜值") to its meta.
func (c *Catalog) GlobalStatByLabel(label string) (types.GlobalStat, bool) {
	for _, g := range c.GlobalStats {
		if g.Label == label {
			return g, true
		}
	}
	return types.GlobalStat{}, false
}

// StatLevel is a named affection band.
type StatLevel struct {
	Level int
	Name  string
	Color string
}

// LevelFor maps a 0–100 relationship value to its band.
func LevelFor(value int) StatLevel {
	switch {
	case value >= 81:
		return StatLevel{4, "倾心", "#fbbf24"}
	case value >= 61:
		return StatLevel{3, "接纳", "#10b981"}
	case value >= 31:
		return StatLevel{2, "好奇", "#3b82f6"}
	default:
		return StatLevel{1, "疏离", "#94a3b8"}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package loader

import (
	"fmt"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/types"
)

// validate checks cross-references after compilation so broken content
// fails at startup, not mid-playthrough.
func validate(cat *catalog.Catalog) error {
	if len(cat.Periods) == 0 {
		return fmt.Errorf("settings: no periods defined")
	}
	if cat.MaxDays <= 0 {
		return fmt.Errorf("settings: max_days must be positive, got %d", cat.MaxDays)
	}
	if cat.MaxAP <= 0 {
		return fmt.Errorf("settings: max_action_points must be positive, got %d", cat.MaxAP)
	}

	worlds := map[string]bool{}
	for _, w := range cat.Worlds {
		if worlds[w.ID] {
			return fmt.Errorf("world %q: duplicate id", w.ID)
		}
		worlds[w.ID] = true
	}

	statKeys := map[string]bool{}
	statLabels := map[string]bool{}
	for _, g := range cat.GlobalStats {
		if statKeys[g.Key] {
			return fmt.Errorf("global stat %q: duplicate key", g.Key)
		}
		if statLabels[g.Label] {
			return fmt.Errorf("global stat %q: duplicate label %q", g.Key, g.Label)
		}
		statKeys[g.Key] = true
		statLabels[g.Label] = true
		if g.Min > g.Max {
			return fmt.Errorf("global stat %q: min %d > max %d", g.Key, g.Min, g.Max)
		}
		if g.Start < g.Min || g.Start > g.Max {
			return fmt.Errorf("global stat %q: start %d outside [%d,%d]", g.Key, g.Start, g.Min, g.Max)
		}
	}

	for _, ch := range cat.Characters {
		if !worlds[ch.WorldID] {
			return fmt.Errorf("character %q: unknown world %q", ch.ID, ch.WorldID)
		}
		if len(ch.StatMetas) == 0 {
			return fmt.Errorf("character %q: no stats declared", ch.ID)
		}
		for _, m := range ch.StatMetas {
			if m.Key == "" || m.Label == "" {
				return fmt.Errorf("character %q: stat meta missing key or label", ch.ID)
			}
		}
	}

	hasUniversalScene := false
	for _, s := range cat.Scenes {
		if s.WorldID == catalog.UniversalWorld {
			hasUniversalScene = true
			continue
		}
		if !worlds[s.WorldID] {
			return fmt.Errorf("scene %q: unknown world %q", s.ID, s.WorldID)
		}
		if s.UnlockDay < 0 || s.UnlockDay > cat.MaxDays {
			return fmt.Errorf("scene %q: unlock_day %d outside [0,%d]", s.ID, s.UnlockDay, cat.MaxDays)
		}
	}
	if !hasUniversalScene {
		return fmt.Errorf("no universal hub scene defined")
	}

	for _, it := range cat.Items {
		if it.WorldID != catalog.UniversalWorld && !worlds[it.WorldID] {
			return fmt.Errorf("item %q: unknown world %q", it.ID, it.WorldID)
		}
		switch it.Type {
		case types.ItemConsumable, types.ItemCollectible, types.ItemQuest, types.ItemSocial:
		default:
			return fmt.Errorf("item %q: unknown type %q", it.ID, it.Type)
		}
	}

	prevEnd := 0
	for _, ch := range cat.Chapters {
		if ch.DayRange[0] > ch.DayRange[1] {
			return fmt.Errorf("chapter %d: inverted day range %v", ch.ID, ch.DayRange)
		}
		if ch.DayRange[0] != prevEnd+1 {
			return fmt.Errorf("chapter %d: day range starts at %d, expected %d", ch.ID, ch.DayRange[0], prevEnd+1)
		}
		prevEnd = ch.DayRange[1]
	}
	if len(cat.Chapters) > 0 && prevEnd != cat.MaxDays {
		return fmt.Errorf("chapters end at day %d, expected %d", prevEnd, cat.MaxDays)
	}

	for _, ev := range cat.Events {
		if ev.TriggerDay < 1 || ev.TriggerDay > cat.MaxDays {
			return fmt.Errorf("event %q: trigger day %d outside [1,%d]", ev.ID, ev.TriggerDay, cat.MaxDays)
		}
		if ev.Period < -1 || ev.Period >= len(cat.Periods) {
			return fmt.Errorf("event %q: period %d outside [-1,%d]", ev.ID, ev.Period, len(cat.Periods)-1)
		}
	}

	for _, e := range cat.Endings {
		switch e.Type {
		case types.EndingTrue, types.EndingHappy, types.EndingNormal, types.EndingBad:
		default:
			return fmt.Errorf("ending %q: unknown type %q", e.ID, e.Type)
		}
	}

	return nil
}

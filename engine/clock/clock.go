// Package clock advances the in-world timeline. One player turn costs one
// action point and moves the day forward one period; rolling past the last
// period starts a new day with restored action points, overnight stamina
// decay, freshly unlocked scenes, and a possible chapter change.
package clock

import (
	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/engine/state"
	"github.com/nathoo/mirrorloop/types"
)

// TickResult reports what one clock advance changed, so the caller can emit
// the matching transcript notices.
type TickResult struct {
	Period         types.Period
	DayRolled      bool
	ChapterChanged bool
	Chapter        types.Chapter
	NewScenes      []types.Scene
	DaysExhausted  bool // the day counter has run past the world's limit
}

// Tick consumes one action point and advances one period. Callers gate on
// CanAct; a tick at zero action points still advances time, matching the
// rule that time never waits for the player.
func Tick(cat *catalog.Catalog, sess *types.Session) TickResult {
	if sess.ActionPoints > 0 {
		sess.ActionPoints--
	}

	sess.CurrentPeriodIndex++
	res := TickResult{}

	if sess.CurrentPeriodIndex >= len(cat.Periods) {
		sess.CurrentPeriodIndex = 0
		sess.CurrentDay++
		sess.ActionPoints = cat.MaxAP
		res.DayRolled = true

		state.DailyDecay(cat, sess)
		res.NewScenes = state.UnlockDueScenes(cat, sess)

		chapter := cat.ChapterForDay(sess.CurrentDay)
		if chapter.ID != sess.CurrentChapter {
			sess.CurrentChapter = chapter.ID
			res.ChapterChanged = true
			res.Chapter = chapter
		}
	}

	res.Period = cat.Period(sess.CurrentPeriodIndex)
	res.DaysExhausted = sess.CurrentDay > cat.MaxDays
	return res
}

// CanAct reports whether the player has an action point to spend.
func CanAct(sess *types.Session) bool {
	return sess.ActionPoints > 0
}

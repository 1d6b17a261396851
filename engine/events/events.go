// Package events dispatches scripted forced events. Each event fires at most
// once per session: dispatch marks the event triggered in the same pass that
// reports it due, so a re-entrant caller can never double-fire a beat.
package events

import (
	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/types"
)

// Dispatch returns the forced events due at the session's current day and
// period that have not fired yet, and records them as triggered. Events are
// returned in catalog declaration order.
func Dispatch(cat *catalog.Catalog, sess *types.Session) []types.ForcedEvent {
	due := cat.EventsDue(sess.CurrentDay, sess.CurrentPeriodIndex, sess.TriggeredEvents)
	for _, ev := range due {
		sess.TriggeredEvents = append(sess.TriggeredEvents, ev.ID)
	}
	return due
}

// Pending reports the events that would fire without marking them. Used by
// prompt construction, which must describe an upcoming beat to the narrator
// before the turn commits it.
func Pending(cat *catalog.Catalog, sess *types.Session) []types.ForcedEvent {
	return cat.EventsDue(sess.CurrentDay, sess.CurrentPeriodIndex, sess.TriggeredEvents)
}

// Package save converts sessions to and from versioned snapshots and
// persists them through a pluggable Store. Loading is forgiving: a snapshot
// from an older build gets missing fields defaulted instead of rejected, so
// an old save never strands a player.
package save

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/types"
)

// Version is the current snapshot format version. Snapshots from newer
// builds are refused; older ones are upgraded on load.
const Version = 2

const (
	keepMessages = 30
	keepRecords  = 50
)

// Snapshot is the persisted form of one session.
type Snapshot struct {
	Version int           `json:"version"`
	SavedAt int64         `json:"saved_at"`
	Session types.Session `json:"session"`
}

// Capture builds a snapshot of the session, trimming the transcript and
// journal to their persisted windows.
func Capture(sess *types.Session) Snapshot {
	copied := *sess

	if len(copied.Messages) > keepMessages {
		copied.Messages = copied.Messages[len(copied.Messages)-keepMessages:]
	}
	copied.Messages = append([]types.Message{}, copied.Messages...)

	if len(copied.Records) > keepRecords {
		copied.Records = copied.Records[len(copied.Records)-keepRecords:]
	}
	copied.Records = append([]types.StoryRecord{}, copied.Records...)

	copied.IsTyping = false
	copied.Streaming = ""

	return Snapshot{
		Version: Version,
		SavedAt: time.Now().Unix(),
		Session: copied,
	}
}

// Encode serializes a snapshot to JSON.
func Encode(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// Decode parses a snapshot, rejecting formats newer than this build.
func Decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > Version {
		return Snapshot{}, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, Version)
	}
	return snap, nil
}

// Restore turns a decoded snapshot into a live session, defaulting anything
// an older snapshot lacks: nil maps become empty, missing player stats get
// their catalog starting values, and clock fields are clamped into range.
func Restore(cat *catalog.Catalog, snap Snapshot) *types.Session {
	sess := snap.Session

	if sess.PlayerStats == nil {
		sess.PlayerStats = map[string]int{}
	}
	for _, g := range cat.GlobalStats {
		if _, ok := sess.PlayerStats[g.Key]; !ok {
			sess.PlayerStats[g.Key] = g.Start
		}
	}
	if sess.CharacterStats == nil {
		sess.CharacterStats = map[string]map[string]int{}
	}
	if sess.Inventory == nil {
		sess.Inventory = map[string]int{}
	}
	if sess.CompletedWorlds == nil {
		sess.CompletedWorlds = []string{}
	}
	if sess.LostMemories == nil {
		sess.LostMemories = []string{}
	}
	if sess.TriggeredEvents == nil {
		sess.TriggeredEvents = []string{}
	}
	if sess.UnlockedScenes == nil {
		sess.UnlockedScenes = []string{}
	}
	if sess.PlayerGender == "" {
		sess.PlayerGender = "unspecified"
	}

	if sess.CurrentDay < 1 {
		sess.CurrentDay = 1
	}
	if sess.CurrentPeriodIndex < 0 || sess.CurrentPeriodIndex >= len(cat.Periods) {
		sess.CurrentPeriodIndex = 0
	}
	if sess.ActionPoints < 0 || sess.ActionPoints > cat.MaxAP {
		sess.ActionPoints = cat.MaxAP
	}
	sess.CurrentChapter = cat.ChapterForDay(sess.CurrentDay).ID

	sess.IsTyping = false
	sess.Streaming = ""

	return &sess
}

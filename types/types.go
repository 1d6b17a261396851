// Package types defines the shared data structures for the mirrorloop engine.
// This package contains only type definitions — no logic, no methods.
package types

// Role identifies who produced a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageType marks structural system messages that front-ends render
// differently from plain prose. Empty for ordinary messages.
type MessageType string

const (
	MessageScene   MessageType = "scene-transition"
	MessageEpisode MessageType = "episode-change"
)

// Message is one entry in the session transcript.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Character string      `json:"character,omitempty"` // speaking character id
	Type      MessageType `json:"type,omitempty"`
	SceneID   string      `json:"scene_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ChatMessage is the role-tagged unit sent to the narrator.
type ChatMessage struct {
	Role    Role
	Content string
}

// StatMeta describes one stat a character exposes to the narrator contract.
type StatMeta struct {
	Key      string
	Label    string // directive label, e.g. "好感"
	Color    string
	Category string // "relation", "status", "skill"
}

// World is a static storyline scope descriptor.
type World struct {
	ID          string
	Name        string
	Description string
	Atmosphere  string
}

// Character is a static roster entry. A character belongs to exactly one
// world; relationship stats are seeded from InitialStats on world entry.
type Character struct {
	ID               string
	WorldID          string
	Name             string
	Title            string
	ThemeColor       string
	Personality      string
	SpeakingStyle    string
	Secret           string
	TriggerPoints    []string
	BehaviorPatterns string
	StatMetas        []StatMeta
	InitialStats     map[string]int
}

// Scene is a static location descriptor. WorldID "universal" scenes belong
// to every world.
type Scene struct {
	ID         string
	WorldID    string
	Name       string
	Atmosphere string
	Tags       []string
	UnlockDay  int // 0/1 = unlocked on world entry, else day-gated
}

// ItemType classifies per-item-use behavior.
type ItemType string

const (
	ItemConsumable  ItemType = "consumable"
	ItemCollectible ItemType = "collectible"
	ItemQuest       ItemType = "quest"
	ItemSocial      ItemType = "social"
)

// Item is a static inventory descriptor.
type Item struct {
	ID          string
	WorldID     string // "universal" or a world id
	Name        string
	Type        ItemType
	Description string
	MaxCount    int // 0 = unbounded
}

// Chapter is a day-range slice of a world's timeline.
type Chapter struct {
	ID          int
	Name        string
	DayRange    [2]int
	Description string
	Objectives  []string
}

// ForcedEvent is a scripted beat that fires exactly once when due.
type ForcedEvent struct {
	ID          string
	Name        string
	TriggerDay  int
	Period      int // -1 = any period of the day
	Description string
}

// EndingType classifies endings.
type EndingType string

const (
	EndingTrue   EndingType = "TE"
	EndingHappy  EndingType = "HE"
	EndingNormal EndingType = "NE"
	EndingBad    EndingType = "BE"
)

// Ending is a static ending descriptor.
type Ending struct {
	ID          string
	Name        string
	Type        EndingType
	Description string
	Condition   string
}

// Period is one of the fixed subdivisions of an in-world day.
type Period struct {
	Index int
	Name  string
	Hours string
}

// StoryInfo holds story-level metadata fed to the narrator.
type StoryInfo struct {
	Title       string
	Subtitle    string
	Description string
	Goal        string
	Script      string // the full scenario brief included in every prompt
}

// GlobalStat describes one of the five player-wide stats.
type GlobalStat struct {
	Key   string
	Label string // directive alias, e.g. "颜值"
	Min   int
	Max   int
	Start int
}

// StoryRecord is a journal entry summarizing one story beat.
type StoryRecord struct {
	ID      string `json:"id"`
	Day     int    `json:"day"`
	Period  string `json:"period"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CharacterDelta is one parsed per-character stat directive.
type CharacterDelta struct {
	CharacterID string
	StatKey     string
	Delta       int
}

// GlobalDelta is one parsed player-stat directive.
type GlobalDelta struct {
	StatKey string
	Delta   int
}

// Directives is the dual-track result of parsing one narrator reply.
type Directives struct {
	Character []CharacterDelta
	Global    []GlobalDelta
	Ending    EndingType // from an explicit [ENDING:...] token, else ""
}

// Session is the complete mutable game state, owned by the reducer.
type Session struct {
	Started      bool   `json:"started"`
	PlayerName   string `json:"player_name"`
	PlayerGender string `json:"player_gender"` // "male", "female", "unspecified"

	CurrentWorld    string   `json:"current_world,omitempty"`
	CompletedWorlds []string `json:"completed_worlds"`
	SoulFragments   int      `json:"soul_fragments"`
	LostMemories    []string `json:"lost_memories"`

	PlayerStats    map[string]int            `json:"player_stats"`
	CharacterStats map[string]map[string]int `json:"character_stats"`

	CurrentDay         int      `json:"current_day"`
	CurrentPeriodIndex int      `json:"current_period_index"`
	ActionPoints       int      `json:"action_points"`
	CurrentChapter     int      `json:"current_chapter"`
	TriggeredEvents    []string `json:"triggered_events"`

	Inventory      map[string]int `json:"inventory"`
	UnlockedScenes []string       `json:"unlocked_scenes"`

	CurrentScene     string `json:"current_scene"`
	CurrentCharacter string `json:"current_character,omitempty"`

	Messages       []Message     `json:"messages"`
	HistorySummary string        `json:"history_summary"`
	Records        []StoryRecord `json:"records"`
	Choices        []string      `json:"choices"`

	EndingType         string `json:"ending_type,omitempty"`
	FinalChoicePending bool   `json:"final_choice_pending"`

	RNGSeed     int64 `json:"rng_seed"`
	RNGPosition int64 `json:"rng_position"`

	// Transient — never persisted.
	IsTyping  bool   `json:"-"`
	Streaming string `json:"-"`
}

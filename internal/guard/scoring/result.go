package scoring

import (
	"github.com/disgoorg/snowflake/v2"
)

// Category identifies the kind of coordinated activity behind a detection.
// Bot-driven categories receive harsher default mitigation than generic ones.
type Category string

const (
	CategoryJoinRaid       Category = "join_raid"
	CategoryBotRaid        Category = "bot_raid"
	CategoryMessageRaid    Category = "message_raid"
	CategoryBotMessageRaid Category = "bot_message_raid"
)

// Level is the coarse threat bucket derived from a raid score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Result is the transient outcome of one evaluation. Produced fresh on every
// call and never mutated.
type Result struct {
	IsRaid     bool
	Category   Category
	Score      int
	Indicators []string
	Level      Level
	Affected   []snowflake.ID
}

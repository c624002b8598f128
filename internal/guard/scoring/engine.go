package scoring

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/guard/signals"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
)

// joinExtractors are the signal extractors applied to a join window, in the
// order their indicators appear in results.
var joinExtractors = []func([]window.JoinEvent, *config.Protection) signals.Signal{
	signals.JoinVolume,
	signals.AccountAges,
	signals.BotAccounts,
	signals.NameSimilarity,
	signals.NamePatterns,
	signals.DefaultAvatars,
	signals.SequentialTiming,
	signals.CreationVariance,
}

// messageExtractors are the signal extractors applied to a message window.
var messageExtractors = []func([]window.MessageEvent, *config.Protection) signals.Signal{
	signals.MessageVolume,
	signals.DuplicateContent,
	signals.ChannelFlood,
	signals.UserBurst,
	signals.BotPattern,
	signals.LinkSpam,
}

// EvaluateJoins scores the join events in a snapshot. Evaluation only runs
// once the window holds enough joins to be meaningful; below that the result
// is an empty low-level non-detection.
func EvaluateJoins(snapshot window.Snapshot, cfg *config.Protection) Result {
	if len(snapshot.Joins) < cfg.JoinThreshold {
		return Result{Category: CategoryJoinRaid, Level: LevelLow}
	}

	var (
		score      int
		indicators []string
	)

	for _, extract := range joinExtractors {
		signal := extract(snapshot.Joins, cfg)
		score += signal.Score
		indicators = append(indicators, signal.Indicators...)
	}

	category := CategoryJoinRaid
	if signals.CountBots(snapshot.Joins) >= 2 {
		category = CategoryBotRaid
	}

	affected := make([]snowflake.ID, 0, len(snapshot.Joins))
	seen := make(map[snowflake.ID]struct{}, len(snapshot.Joins))

	for _, join := range snapshot.Joins {
		if _, ok := seen[join.MemberID]; !ok {
			seen[join.MemberID] = struct{}{}
			affected = append(affected, join.MemberID)
		}
	}

	return Result{
		IsRaid:     score >= cfg.DetectionFloor,
		Category:   category,
		Score:      score,
		Indicators: indicators,
		Level:      levelFor(score, cfg),
		Affected:   affected,
	}
}

// EvaluateMessages scores the message events in a snapshot, with the same
// volume precondition as join evaluation.
func EvaluateMessages(snapshot window.Snapshot, cfg *config.Protection) Result {
	if len(snapshot.Messages) < cfg.MessageThreshold {
		return Result{Category: CategoryMessageRaid, Level: LevelLow}
	}

	var (
		score      int
		indicators []string
		botDriven  bool
	)

	for _, extract := range messageExtractors {
		signal := extract(snapshot.Messages, cfg)
		score += signal.Score
		indicators = append(indicators, signal.Indicators...)
	}

	botDriven = signals.BotPattern(snapshot.Messages, cfg).Triggered()

	category := CategoryMessageRaid
	if botDriven {
		category = CategoryBotMessageRaid
	}

	affected := make([]snowflake.ID, 0, len(snapshot.Messages))
	seen := make(map[snowflake.ID]struct{}, len(snapshot.Messages))

	for _, message := range snapshot.Messages {
		if _, ok := seen[message.AuthorID]; !ok {
			seen[message.AuthorID] = struct{}{}
			affected = append(affected, message.AuthorID)
		}
	}

	return Result{
		IsRaid:     score >= cfg.DetectionFloor,
		Category:   category,
		Score:      score,
		Indicators: indicators,
		Level:      levelFor(score, cfg),
		Affected:   affected,
	}
}

// levelFor maps a total score onto a threat level. Scores below the
// detection floor are always low.
func levelFor(score int, cfg *config.Protection) Level {
	switch {
	case score >= cfg.CriticalScore:
		return LevelCritical
	case score >= cfg.HighScore:
		return LevelHigh
	case score >= cfg.DetectionFloor:
		return LevelMedium
	default:
		return LevelLow
	}
}

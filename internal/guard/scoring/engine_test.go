package scoring_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/guard/scoring"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
)

var baseTime = time.Unix(1_700_000_000, 0)

func testProtection() *config.Protection {
	cfg := config.Default()
	return &cfg.Protection
}

var organicNames = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
	"hotel", "india", "kilo", "lima", "mike", "november", "oscar", "papa",
}

// freshJoins builds n joins of very new accounts spaced 3s apart with
// dissimilar usernames and spread ages, so only volume and age signals fire.
func freshJoins(n int) []window.JoinEvent {
	joins := make([]window.JoinEvent, n)
	for i := range joins {
		joins[i] = window.JoinEvent{
			MemberID:   snowflake.ID(i + 1),
			Timestamp:  baseTime.Add(time.Duration(i) * 3 * time.Second),
			AccountAge: time.Duration(i+1) * 90 * time.Minute,
			Username:   organicNames[i%len(organicNames)],
			HasAvatar:  true,
		}
	}

	return joins
}

func TestEvaluateJoinsVolumePrecondition(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	snapshot := window.Snapshot{Joins: freshJoins(cfg.JoinThreshold - 1)}
	result := scoring.EvaluateJoins(snapshot, cfg)

	assert.False(t, result.IsRaid)
	assert.Equal(t, scoring.LevelLow, result.Level)
	assert.Zero(t, result.Score)
}

func TestEvaluateJoinsVeryNewAccounts(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	// All accounts younger than the very-new cutoff at threshold volume
	// must detect at high or critical level.
	for _, n := range []int{cfg.JoinThreshold, cfg.JoinThreshold + 3, cfg.JoinThreshold + 10} {
		result := scoring.EvaluateJoins(window.Snapshot{Joins: freshJoins(n)}, cfg)

		require.True(t, result.IsRaid, "n=%d", n)
		assert.Contains(t, []scoring.Level{scoring.LevelHigh, scoring.LevelCritical}, result.Level, "n=%d", n)
		assert.Len(t, result.Affected, n)
	}
}

func TestEvaluateJoinsMonotonicUnderAddedBot(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	// Adding an automated-account join to a qualifying window must never
	// lower the score, regardless of the bot's own age or avatar.
	t.Run("very new bot", func(t *testing.T) {
		t.Parallel()

		joins := freshJoins(cfg.JoinThreshold)
		before := scoring.EvaluateJoins(window.Snapshot{Joins: joins}, cfg)
		require.True(t, before.IsRaid)

		withBot := append(append([]window.JoinEvent{}, joins...), window.JoinEvent{
			MemberID:   snowflake.ID(999),
			Timestamp:  baseTime.Add(time.Minute),
			AccountAge: time.Hour,
			Username:   "bot-account",
			IsBot:      true,
		})

		after := scoring.EvaluateJoins(window.Snapshot{Joins: withBot}, cfg)
		assert.GreaterOrEqual(t, after.Score, before.Score)
	})

	t.Run("aged bot with avatar", func(t *testing.T) {
		t.Parallel()

		// Six joins: three very-new accounts, five without a custom
		// avatar, the rest well established.
		ages := []time.Duration{
			2 * time.Hour, 5 * time.Hour, 10 * time.Hour,
			40 * 24 * time.Hour, 90 * 24 * time.Hour, 300 * 24 * time.Hour,
		}

		joins := make([]window.JoinEvent, len(ages))
		for i := range joins {
			joins[i] = window.JoinEvent{
				MemberID:   snowflake.ID(i + 1),
				Timestamp:  baseTime.Add(time.Duration(i) * 3 * time.Second),
				AccountAge: ages[i],
				Username:   organicNames[i],
				HasAvatar:  i == len(ages)-1,
			}
		}

		before := scoring.EvaluateJoins(window.Snapshot{Joins: joins}, cfg)
		require.True(t, before.IsRaid)

		// The appended bot is five years old and has a custom avatar, so
		// it weakens every ratio-style reading of the window.
		withBot := append(append([]window.JoinEvent{}, joins...), window.JoinEvent{
			MemberID:   snowflake.ID(999),
			Timestamp:  baseTime.Add(time.Minute),
			AccountAge: 5 * 365 * 24 * time.Hour,
			Username:   "bot-account",
			IsBot:      true,
			HasAvatar:  true,
		})

		after := scoring.EvaluateJoins(window.Snapshot{Joins: withBot}, cfg)
		assert.GreaterOrEqual(t, after.Score, before.Score)
	})
}

func TestEvaluateJoinsBotRaidScenario(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	// 5 members join within 15 seconds, all created under 24h ago, 2 are
	// automated accounts, all on default avatars.
	joins := make([]window.JoinEvent, 5)
	for i := range joins {
		joins[i] = window.JoinEvent{
			MemberID:   snowflake.ID(i + 1),
			Timestamp:  baseTime.Add(time.Duration(i) * 3 * time.Second),
			AccountAge: time.Duration(i+1) * 3 * time.Hour,
			Username:   fmt.Sprintf("newjoin%c", 'a'+i),
		}
	}

	joins[1].IsBot = true
	joins[3].IsBot = true

	result := scoring.EvaluateJoins(window.Snapshot{Joins: joins}, cfg)

	require.True(t, result.IsRaid)
	assert.GreaterOrEqual(t, result.Score, 80)
	assert.Equal(t, scoring.CategoryBotRaid, result.Category)
	assert.Equal(t, scoring.LevelCritical, result.Level)
	assert.NotEmpty(t, result.Indicators)
}

func TestEvaluateJoinsDeterministic(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	snapshot := window.Snapshot{Joins: freshJoins(6)}

	first := scoring.EvaluateJoins(snapshot, cfg)
	second := scoring.EvaluateJoins(snapshot, cfg)

	assert.Equal(t, first, second)
}

func TestEvaluateMessagesDuplicateFlood(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	// 4 distinct users post the exact same string within 8 seconds across
	// 2 channels.
	messages := make([]window.MessageEvent, 4)
	for i := range messages {
		messages[i] = window.MessageEvent{
			AuthorID:  snowflake.ID(i + 1),
			ChannelID: snowflake.ID(1 + i%2),
			Content:   window.NormalizeContent("free nitro click here"),
			Timestamp: baseTime.Add(time.Duration(i) * 2 * time.Second),
		}
	}

	result := scoring.EvaluateMessages(window.Snapshot{Messages: messages}, cfg)

	require.True(t, result.IsRaid)

	var sawDuplicate, sawFlood bool

	for _, indicator := range result.Indicators {
		switch {
		case indicator == "4 users posted identical content":
			sawDuplicate = true
		case indicator == "4 messages concentrated in 2 channels":
			sawFlood = true
		}
	}

	assert.True(t, sawDuplicate, "duplicate-message indicator present")
	assert.True(t, sawFlood, "channel-flood indicator present")
	assert.Len(t, result.Affected, 4)
}

func TestEvaluateMessagesVolumePrecondition(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	messages := []window.MessageEvent{
		{AuthorID: 1, ChannelID: 1, Content: "spam", Timestamp: baseTime},
		{AuthorID: 2, ChannelID: 1, Content: "spam", Timestamp: baseTime},
	}

	result := scoring.EvaluateMessages(window.Snapshot{Messages: messages}, cfg)
	assert.False(t, result.IsRaid)
}

func TestEvaluateMessagesOrganicChatter(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	messages := []window.MessageEvent{
		{AuthorID: 1, ChannelID: 1, Content: "hey all", Timestamp: baseTime},
		{AuthorID: 2, ChannelID: 2, Content: "anyone up for a game tonight", Timestamp: baseTime.Add(2 * time.Second)},
		{AuthorID: 3, ChannelID: 3, Content: "sure thing", Timestamp: baseTime.Add(5 * time.Second)},
		{AuthorID: 4, ChannelID: 4, Content: "count me in as well", Timestamp: baseTime.Add(7 * time.Second)},
	}

	result := scoring.EvaluateMessages(window.Snapshot{Messages: messages}, cfg)
	assert.False(t, result.IsRaid)
}

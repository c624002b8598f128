package signals_test

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/wardenhq/warden/internal/guard/signals"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
)

func testProtection() *config.Protection {
	cfg := config.Default()
	return &cfg.Protection
}

func joinAt(id int, offset time.Duration, age time.Duration) window.JoinEvent {
	return window.JoinEvent{
		MemberID:   snowflake.ID(id),
		Timestamp:  time.Unix(1_700_000_000, 0).Add(offset),
		AccountAge: age,
		Username:   "member",
	}
}

func TestJoinVolume(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	t.Run("below threshold", func(t *testing.T) {
		t.Parallel()

		joins := []window.JoinEvent{joinAt(1, 0, time.Hour), joinAt(2, time.Second, time.Hour)}
		assert.False(t, signals.JoinVolume(joins, cfg).Triggered())
	})

	t.Run("at threshold", func(t *testing.T) {
		t.Parallel()

		joins := make([]window.JoinEvent, cfg.JoinThreshold)
		for i := range joins {
			joins[i] = joinAt(i, time.Duration(i)*time.Second, time.Hour)
		}

		signal := signals.JoinVolume(joins, cfg)
		assert.True(t, signal.Triggered())
		assert.Equal(t, cfg.Weights.Volume, signal.Score)
	})
}

func TestAccountAges(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	t.Run("very new accounts escalate", func(t *testing.T) {
		t.Parallel()

		joins := []window.JoinEvent{
			joinAt(1, 0, 2*time.Hour),
			joinAt(2, time.Second, 5*time.Hour),
			joinAt(3, 2*time.Second, 10*time.Hour),
		}

		signal := signals.AccountAges(joins, cfg)
		assert.Equal(t, cfg.Weights.VeryNewAccounts+cfg.Weights.AvgAgeDay, signal.Score)
		assert.Len(t, signal.Indicators, 2)
	})

	t.Run("suspicious but not very new", func(t *testing.T) {
		t.Parallel()

		joins := []window.JoinEvent{
			joinAt(1, 0, 3*24*time.Hour),
			joinAt(2, time.Second, 4*24*time.Hour),
		}

		signal := signals.AccountAges(joins, cfg)
		assert.Equal(t, cfg.Weights.SuspiciousAccounts+cfg.Weights.AvgAgeWeek, signal.Score)
	})

	t.Run("established accounts do not fire", func(t *testing.T) {
		t.Parallel()

		joins := []window.JoinEvent{
			joinAt(1, 0, 400*24*time.Hour),
			joinAt(2, time.Second, 900*24*time.Hour),
		}

		assert.False(t, signals.AccountAges(joins, cfg).Triggered())
	})
}

func TestBotAccounts(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	joins := []window.JoinEvent{
		joinAt(1, 0, time.Hour),
		joinAt(2, time.Second, time.Hour),
		joinAt(3, 2*time.Second, time.Hour),
	}
	joins[0].IsBot = true
	joins[2].IsBot = true

	signal := signals.BotAccounts(joins, cfg)
	assert.Equal(t, cfg.Weights.BotAccounts, signal.Score)

	// Bot signal must outweigh plain volume roughly twofold
	assert.GreaterOrEqual(t, cfg.Weights.BotAccounts, 2*cfg.Weights.Volume)
}

func TestNameSimilarityCountsPairsOnce(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	joins := []window.JoinEvent{
		joinAt(1, 0, time.Hour),
		joinAt(2, time.Second, time.Hour),
		joinAt(3, 2*time.Second, time.Hour),
	}
	joins[0].Username = "user1234"
	joins[1].Username = "user1235"
	joins[2].Username = "completely-different"

	signal := signals.NameSimilarity(joins, cfg)
	assert.True(t, signal.Triggered())
	// One qualifying pair, counted once, not once per member
	assert.Contains(t, signal.Indicators[0], "1 similar username pairs")
}

func TestNamePatterns(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	joins := []window.JoinEvent{
		joinAt(1, 0, time.Hour),
		joinAt(2, time.Second, time.Hour),
	}
	joins[0].Username = "raider001"
	joins[1].Username = "xk7f9q2mzp4w"

	assert.True(t, signals.NamePatterns(joins, cfg).Triggered())
}

func TestDefaultAvatars(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	withAvatars := func(n, plain int) []window.JoinEvent {
		joins := make([]window.JoinEvent, n)
		for i := range joins {
			joins[i] = joinAt(i, time.Duration(i)*time.Second, time.Hour)
			joins[i].HasAvatar = i >= plain
		}

		return joins
	}

	t.Run("enough plain accounts", func(t *testing.T) {
		t.Parallel()
		assert.True(t, signals.DefaultAvatars(withAvatars(5, 4), cfg).Triggered())
	})

	t.Run("counts are insensitive to window growth", func(t *testing.T) {
		t.Parallel()

		// Ten avatared accounts joining alongside do not mask four plain ones
		assert.True(t, signals.DefaultAvatars(withAvatars(14, 4), cfg).Triggered())
	})

	t.Run("too few plain accounts", func(t *testing.T) {
		t.Parallel()
		assert.False(t, signals.DefaultAvatars(withAvatars(5, 3), cfg).Triggered())
	})
}

func TestSequentialTiming(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	t.Run("sub-second burst", func(t *testing.T) {
		t.Parallel()

		joins := make([]window.JoinEvent, 4)
		for i := range joins {
			joins[i] = joinAt(i, time.Duration(i)*500*time.Millisecond, time.Hour)
		}

		assert.True(t, signals.SequentialTiming(joins, cfg).Triggered())
	})

	t.Run("spread out joins", func(t *testing.T) {
		t.Parallel()

		joins := make([]window.JoinEvent, 4)
		for i := range joins {
			joins[i] = joinAt(i, time.Duration(i)*5*time.Second, time.Hour)
		}

		assert.False(t, signals.SequentialTiming(joins, cfg).Triggered())
	})
}

func TestCreationVariance(t *testing.T) {
	t.Parallel()
	cfg := testProtection()

	t.Run("batch-created accounts", func(t *testing.T) {
		t.Parallel()

		joins := []window.JoinEvent{
			joinAt(1, 0, 2*time.Hour),
			joinAt(2, time.Second, 2*time.Hour+10*time.Second),
			joinAt(3, 2*time.Second, 2*time.Hour+20*time.Second),
		}

		signal := signals.CreationVariance(joins, cfg)
		assert.True(t, signal.Triggered())
		assert.GreaterOrEqual(t, cfg.Weights.CreationVariance, 2*cfg.Weights.Volume)
	})

	t.Run("organic age spread", func(t *testing.T) {
		t.Parallel()

		joins := []window.JoinEvent{
			joinAt(1, 0, 2*time.Hour),
			joinAt(2, time.Second, 30*24*time.Hour),
			joinAt(3, 2*time.Second, 400*24*time.Hour),
		}

		assert.False(t, signals.CreationVariance(joins, cfg).Triggered())
	})
}

package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/wardenhq/warden/internal/database"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

const (
	// DailyStatsKeyPrefix prefixes the per-day counter hash in Redis.
	DailyStatsKeyPrefix = "daily_stats"

	FieldVerifySucceeded = "verify_succeeded"
	FieldVerifyExhausted = "verify_exhausted"
	FieldVerifyExpired   = "verify_expired"
	FieldSuspicious      = "suspicious_attempts"
	FieldRaidsDetected   = "raids_detected"
	FieldMembersKicked   = "members_kicked"
	FieldMembersBanned   = "members_banned"
	FieldLockdowns       = "lockdowns"
	FieldDismissals      = "dismissals"
)

// DayCounters holds one day of live counters.
type DayCounters struct {
	Started    int
	Succeeded  int
	Exhausted  int
	Expired    int
	Suspicious int
	Raids      int
}

// Snapshot is a point-in-time copy of the aggregate statistics.
type Snapshot struct {
	VerificationsStarted   int
	VerificationsSucceeded int
	VerificationsExhausted int
	VerificationsExpired   int
	SuspiciousAttempts     int
	AvgCompletionTime      time.Duration
	RaidsDetected          int
	MembersKicked          int
	MembersBanned          int
	Lockdowns              int
	Dismissals             int
	PerDay                 map[string]DayCounters
}

// Client accumulates live counters in memory, mirrors the hot counters to
// Redis, and writes terminal outcomes durably through the database layer.
// The Redis client and database may both be nil, which disables the
// respective sink. It implements the recorder interfaces of the
// verification manager and the mitigation controller.
type Client struct {
	mu                sync.Mutex
	started           int
	succeeded         int
	exhausted         int
	expired           int
	suspicious        int
	completionTotal   time.Duration
	completionSamples int
	raids             int
	kicked            int
	banned            int
	lockdowns         int
	dismissals        int
	days              map[string]*DayCounters
	redis             rueidis.Client
	db                database.Client
	logger            *zap.Logger
	now               func() time.Time
}

// NewClient creates a statistics client.
func NewClient(redis rueidis.Client, db database.Client, logger *zap.Logger) *Client {
	return &Client{
		days:   make(map[string]*DayCounters),
		redis:  redis,
		db:     db,
		logger: logger.Named("stats"),
		now:    time.Now,
	}
}

// Snapshot returns a copy of all live counters.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	perDay := make(map[string]DayCounters, len(c.days))
	for date, counters := range c.days {
		perDay[date] = *counters
	}

	var avg time.Duration
	if c.completionSamples > 0 {
		avg = c.completionTotal / time.Duration(c.completionSamples)
	}

	return Snapshot{
		VerificationsStarted:   c.started,
		VerificationsSucceeded: c.succeeded,
		VerificationsExhausted: c.exhausted,
		VerificationsExpired:   c.expired,
		SuspiciousAttempts:     c.suspicious,
		AvgCompletionTime:      avg,
		RaidsDetected:          c.raids,
		MembersKicked:          c.kicked,
		MembersBanned:          c.banned,
		Lockdowns:              c.lockdowns,
		Dismissals:             c.dismissals,
		PerDay:                 perDay,
	}
}

// SessionStarted records a newly issued verification session.
func (c *Client) SessionStarted(ctx context.Context, _, _ snowflake.ID) {
	c.mu.Lock()
	c.started++
	c.dayLocked().Started++
	c.mu.Unlock()
}

// SessionSucceeded records a successful verification and folds the
// completion time into the rolling average.
func (c *Client) SessionSucceeded(ctx context.Context, communityID, memberID snowflake.ID, elapsed time.Duration) {
	c.mu.Lock()
	c.succeeded++
	c.completionTotal += elapsed
	c.completionSamples++
	c.dayLocked().Succeeded++
	c.mu.Unlock()

	c.mirror(ctx, FieldVerifySucceeded, 1)
	c.persistVerification(ctx, communityID, memberID, types.VerificationOutcomeSuccess, elapsed)
}

// SessionExhausted records a session that ran out of attempts.
func (c *Client) SessionExhausted(ctx context.Context, communityID, memberID snowflake.ID) {
	c.mu.Lock()
	c.exhausted++
	c.dayLocked().Exhausted++
	c.mu.Unlock()

	c.mirror(ctx, FieldVerifyExhausted, 1)
	c.persistVerification(ctx, communityID, memberID, types.VerificationOutcomeExhausted, 0)
}

// SessionExpired records a session that outlived its deadline.
func (c *Client) SessionExpired(ctx context.Context, communityID, memberID snowflake.ID) {
	c.mu.Lock()
	c.expired++
	c.dayLocked().Expired++
	c.mu.Unlock()

	c.mirror(ctx, FieldVerifyExpired, 1)
	c.persistVerification(ctx, communityID, memberID, types.VerificationOutcomeExpired, 0)
}

// SuspiciousAttempt records an answer submitted against a session the
// acting member does not own.
func (c *Client) SuspiciousAttempt(ctx context.Context, _, _ snowflake.ID) {
	c.mu.Lock()
	c.suspicious++
	c.dayLocked().Suspicious++
	c.mu.Unlock()

	c.mirror(ctx, FieldSuspicious, 1)
}

// RaidDetected records a raid detection and writes the audit row.
func (c *Client) RaidDetected(
	ctx context.Context, communityID snowflake.ID, category, level string,
	score int, indicators []string, affected int,
) {
	c.mu.Lock()
	c.raids++
	c.dayLocked().Raids++
	c.mu.Unlock()

	c.mirror(ctx, FieldRaidsDetected, 1)

	if c.db == nil {
		return
	}

	record := &types.RaidRecord{
		UUID:          uuid.New(),
		CommunityID:   uint64(communityID),
		Category:      category,
		Score:         score,
		Level:         level,
		Indicators:    indicators,
		AffectedCount: affected,
		ActionTaken:   level,
		Timestamp:     c.now(),
	}
	if err := c.db.Model().Raid().Create(ctx, record); err != nil {
		c.logger.Error("Failed to persist raid record", zap.Error(err))
	}
}

// MembersKicked records members removed during mitigation.
func (c *Client) MembersKicked(ctx context.Context, _ snowflake.ID, count int) {
	c.mu.Lock()
	c.kicked += count
	c.mu.Unlock()

	c.mirror(ctx, FieldMembersKicked, count)
}

// MembersBanned records members banned during mitigation.
func (c *Client) MembersBanned(ctx context.Context, _ snowflake.ID, count int) {
	c.mu.Lock()
	c.banned += count
	c.mu.Unlock()

	c.mirror(ctx, FieldMembersBanned, count)
}

// LockdownStarted records a community entering lockdown.
func (c *Client) LockdownStarted(ctx context.Context, _ snowflake.ID) {
	c.mu.Lock()
	c.lockdowns++
	c.mu.Unlock()

	c.mirror(ctx, FieldLockdowns, 1)
}

// FalsePositiveDismissed records a moderator dismissing a detection.
func (c *Client) FalsePositiveDismissed(ctx context.Context, _ snowflake.ID) {
	c.mu.Lock()
	c.dismissals++
	c.mu.Unlock()

	c.mirror(ctx, FieldDismissals, 1)
}

// dayLocked returns the counter bucket for the current UTC date. Callers
// must hold the mutex.
func (c *Client) dayLocked() *DayCounters {
	date := c.now().UTC().Format(time.DateOnly)

	counters, ok := c.days[date]
	if !ok {
		counters = &DayCounters{}
		c.days[date] = counters
	}

	return counters
}

// RecentRaids returns the most recent persisted raid detections for a
// community. Returns nil when no database sink is configured.
func (c *Client) RecentRaids(ctx context.Context, communityID snowflake.ID, limit int) ([]*types.RaidRecord, error) {
	if c.db == nil {
		return nil, nil
	}

	return c.db.Model().Raid().GetRecent(ctx, uint64(communityID), limit)
}

// RaidCountSince returns how many raid detections were persisted for a
// community since the given time. Returns zero when no database sink is
// configured.
func (c *Client) RaidCountSince(ctx context.Context, communityID snowflake.ID, since time.Time) (int, error) {
	if c.db == nil {
		return 0, nil
	}

	return c.db.Model().Raid().CountSince(ctx, uint64(communityID), since.Unix())
}

// DailyBreakdown returns the per-day verification outcome aggregates for
// the last given number of days. Returns nil when no database sink is
// configured.
func (c *Client) DailyBreakdown(ctx context.Context, days int) ([]*types.DailyVerificationStats, error) {
	if c.db == nil {
		return nil, nil
	}

	return c.db.Model().Verification().GetDailyBreakdown(ctx, days)
}

// mirror increments a counter in the Redis daily stats hash.
func (c *Client) mirror(ctx context.Context, field string, amount int) {
	if c.redis == nil {
		return
	}

	key := fmt.Sprintf("%s:%s", DailyStatsKeyPrefix, c.now().UTC().Format(time.DateOnly))

	cmd := c.redis.B().Hincrby().Key(key).Field(field).Increment(int64(amount)).Build()
	if err := c.redis.Do(ctx, cmd).Error(); err != nil {
		c.logger.Error("Failed to mirror counter to Redis",
			zap.String("field", field),
			zap.Error(err))
	}
}

// persistVerification writes a terminal session outcome to the database.
func (c *Client) persistVerification(
	ctx context.Context, communityID, memberID snowflake.ID,
	outcome types.VerificationOutcome, elapsed time.Duration,
) {
	if c.db == nil {
		return
	}

	record := &types.VerificationRecord{
		UUID:        uuid.New(),
		CommunityID: uint64(communityID),
		MemberID:    uint64(memberID),
		Outcome:     outcome,
		DurationMS:  elapsed.Milliseconds(),
		Timestamp:   c.now(),
	}
	if err := c.db.Model().Verification().Create(ctx, record); err != nil {
		c.logger.Error("Failed to persist verification record",
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}

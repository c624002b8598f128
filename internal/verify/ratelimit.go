package verify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/wardenhq/warden/internal/setup/config"
	"go.uber.org/zap"
)

// Ledger throttles challenge issuance per member using Redis: a sliding
// window of recent requests, a per-day attempt counter, and a temporary
// ban marker set when a member exhausts their attempts. Redis errors are
// logged and treated as "allow" so verification keeps working when the
// ledger is unreachable.
type Ledger struct {
	client rueidis.Client
	cfg    *config.Verification
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a rate ledger backed by the given Redis client.
func NewLedger(client rueidis.Client, cfg *config.Verification, logger *zap.Logger) *Ledger {
	return &Ledger{
		client: client,
		cfg:    cfg,
		logger: logger.Named("rate_ledger"),
		now:    time.Now,
	}
}

// Allow checks the temporary ban, the rolling request window, and the
// daily cap, in that order. It only reads the ledger; the caller invokes
// Record for the one request that actually becomes a session.
func (l *Ledger) Allow(ctx context.Context, communityID, memberID snowflake.ID) (bool, string) {
	banKey := fmt.Sprintf("verify:tempban:%d:%d", communityID, memberID)
	banned, err := l.client.Do(ctx, l.client.B().Exists().Key(banKey).Build()).ToInt64()
	if err != nil {
		l.logger.Error("Failed to check temporary ban", zap.Error(err))
		return true, ""
	}

	if banned > 0 {
		return false, "temporarily banned after exhausting attempts"
	}

	now := l.now()
	window := l.cfg.RateLimitWindow()
	requestKey := fmt.Sprintf("verify:requests:%d:%d", communityID, memberID)

	// Drop request timestamps that fell out of the rolling window
	err = l.client.Do(ctx, l.client.B().Zremrangebyscore().Key(requestKey).
		Min("-inf").Max(strconv.FormatInt(now.Add(-window).UnixMilli(), 10)).Build()).Error()
	if err != nil {
		l.logger.Error("Failed to prune request window", zap.Error(err))
		return true, ""
	}

	recent, err := l.client.Do(ctx, l.client.B().Zcard().Key(requestKey).Build()).ToInt64()
	if err != nil {
		l.logger.Error("Failed to count recent requests", zap.Error(err))
		return true, ""
	}

	if recent >= int64(l.cfg.RateLimitMax) {
		return false, "challenge request rate limit reached"
	}

	dayKey := fmt.Sprintf("verify:daily:%d:%d:%s", communityID, memberID, now.UTC().Format(time.DateOnly))
	daily, err := l.client.Do(ctx, l.client.B().Get().Key(dayKey).Build()).ToInt64()
	if err != nil && !rueidis.IsRedisNil(err) {
		l.logger.Error("Failed to read daily attempt count", zap.Error(err))
		return true, ""
	}

	if daily >= int64(l.cfg.DailyAttemptCap) {
		return false, "daily verification attempt cap reached"
	}

	return true, ""
}

// Record counts one issued challenge against the member's rolling window
// and daily cap.
func (l *Ledger) Record(ctx context.Context, communityID, memberID snowflake.ID) {
	now := l.now()
	requestKey := fmt.Sprintf("verify:requests:%d:%d", communityID, memberID)
	dayKey := fmt.Sprintf("verify:daily:%d:%d:%s", communityID, memberID, now.UTC().Format(time.DateOnly))

	l.record(ctx, requestKey, dayKey, now, l.cfg.RateLimitWindow())
}

// record stores the granted request in the rolling window and the daily
// counter. Failures only lose throttling accuracy, so they are logged
// and ignored.
func (l *Ledger) record(ctx context.Context, requestKey, dayKey string, now time.Time, window time.Duration) {
	member := strconv.FormatInt(now.UnixNano(), 10)

	err := l.client.Do(ctx, l.client.B().Zadd().Key(requestKey).ScoreMember().
		ScoreMember(float64(now.UnixMilli()), member).Build()).Error()
	if err != nil {
		l.logger.Error("Failed to record challenge request", zap.Error(err))
	}

	if err := l.client.Do(ctx, l.client.B().Expire().Key(requestKey).Seconds(int64(window.Seconds())+1).Build()).Error(); err != nil {
		l.logger.Error("Failed to expire request window", zap.Error(err))
	}

	if err := l.client.Do(ctx, l.client.B().Incr().Key(dayKey).Build()).Error(); err != nil {
		l.logger.Error("Failed to increment daily attempt count", zap.Error(err))
	}

	if err := l.client.Do(ctx, l.client.B().Expire().Key(dayKey).Seconds(int64((24 * time.Hour).Seconds())).Build()).Error(); err != nil {
		l.logger.Error("Failed to expire daily attempt count", zap.Error(err))
	}
}

// MarkExhausted places a temporary ban on a member who used all their
// attempts, blocking new challenge issuance until it lapses.
func (l *Ledger) MarkExhausted(ctx context.Context, communityID, memberID snowflake.ID) {
	banKey := fmt.Sprintf("verify:tempban:%d:%d", communityID, memberID)

	err := l.client.Do(ctx, l.client.B().Set().Key(banKey).Value("1").
		Ex(l.cfg.TempBan()).Build()).Error()
	if err != nil {
		l.logger.Error("Failed to set temporary ban",
			zap.Uint64("memberID", uint64(memberID)),
			zap.Error(err))
	}
}

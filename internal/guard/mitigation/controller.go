package mitigation

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/guard/scoring"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
	"go.uber.org/zap"
)

// Dispatch summarizes what one detection actually did. Counts reflect
// members acted upon, not the requested set.
type Dispatch struct {
	Skipped     bool
	Lockdown    bool
	Kicked      int
	Banned      int
	Quarantined int
	Slowmode    bool
}

// Controller maps threat levels to automated moderation responses and
// exposes manual overrides for moderators.
type Controller struct {
	store     *window.Store
	moderator Moderator
	recorder  Recorder
	cfg       *config.Protection
	logger    *zap.Logger
	now       func() time.Time
}

// NewController creates a mitigation controller.
func NewController(
	store *window.Store, moderator Moderator, recorder Recorder,
	cfg *config.Protection, logger *zap.Logger,
) *Controller {
	return &Controller{
		store:     store,
		moderator: moderator,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger.Named("mitigation"),
		now:       time.Now,
	}
}

// HandleDetection dispatches the tiered automated response for a detection.
// A cooldown per community prevents one raid wave from re-triggering
// mitigation repeatedly. Individual action failures are logged and never
// propagate to the caller.
func (c *Controller) HandleDetection(ctx context.Context, communityID snowflake.ID, result scoring.Result) Dispatch {
	if !result.IsRaid {
		return Dispatch{Skipped: true}
	}

	now := c.now()

	if !c.store.ClaimRaid(communityID, now, c.cfg.Cooldown()) {
		c.logger.Debug("Raid detection within cooldown, already handling this wave",
			zap.Uint64("community_id", uint64(communityID)))

		return Dispatch{Skipped: true}
	}

	c.store.Flag(communityID, result.Affected...)

	c.recorder.RaidDetected(ctx, communityID,
		string(result.Category), string(result.Level), result.Score, result.Indicators, len(result.Affected))

	c.logger.Warn("Raid detected",
		zap.Uint64("community_id", uint64(communityID)),
		zap.String("category", string(result.Category)),
		zap.String("level", string(result.Level)),
		zap.Int("score", result.Score),
		zap.Strings("indicators", result.Indicators),
		zap.Int("affected", len(result.Affected)))

	var dispatch Dispatch

	switch result.Level {
	case scoring.LevelCritical:
		dispatch.Lockdown = c.lockdown(ctx, communityID)

		if c.cfg.BanEnabled {
			dispatch.Banned = c.banAll(ctx, communityID, result.Affected)
		}
	case scoring.LevelHigh:
		dispatch.Lockdown = c.lockdown(ctx, communityID)

		if c.cfg.KickEnabled {
			dispatch.Kicked = c.kickAll(ctx, communityID, result.Affected)
		}
	case scoring.LevelMedium:
		if c.cfg.QuarantineEnabled {
			dispatch.Quarantined = c.quarantineAll(ctx, communityID, result.Affected)
		}

		dispatch.Slowmode = c.slowmode(ctx, communityID)
	case scoring.LevelLow:
		// Record only, no automated action
	}

	return dispatch
}

// lockdown engages community-wide lockdown when the automated response is
// enabled in config.
func (c *Controller) lockdown(ctx context.Context, communityID snowflake.ID) bool {
	if !c.cfg.LockdownEnabled {
		return false
	}

	return c.engageLockdown(ctx, communityID)
}

// engageLockdown performs the lockdown itself. Idempotent: an already
// locked community is left as-is.
func (c *Controller) engageLockdown(ctx context.Context, communityID snowflake.ID) bool {
	if c.store.Lockdown(communityID) {
		return true
	}

	if err := c.moderator.Lockdown(ctx, communityID); err != nil {
		c.logger.Warn("Failed to engage lockdown",
			zap.Uint64("community_id", uint64(communityID)),
			zap.Error(err))

		return false
	}

	c.store.SetLockdown(communityID, true)
	c.recorder.LockdownStarted(ctx, communityID)

	return true
}

// slowmode applies the configured slow mode to all text channels.
func (c *Controller) slowmode(ctx context.Context, communityID snowflake.ID) bool {
	if !c.cfg.SlowmodeEnabled {
		return false
	}

	if err := c.moderator.Slowmode(ctx, communityID, c.cfg.SlowmodeSeconds); err != nil {
		c.logger.Warn("Failed to apply slow mode",
			zap.Uint64("community_id", uint64(communityID)),
			zap.Error(err))

		return false
	}

	return true
}

// kickAll kicks each member independently; one member's failure does not
// abort the batch. Returns the number of members actually kicked.
func (c *Controller) kickAll(ctx context.Context, communityID snowflake.ID, memberIDs []snowflake.ID) int {
	kicked := 0

	for _, memberID := range memberIDs {
		if err := c.moderator.Kick(ctx, communityID, memberID, "Raid mitigation"); err != nil {
			c.logger.Warn("Failed to kick member during mitigation",
				zap.Uint64("community_id", uint64(communityID)),
				zap.Uint64("member_id", uint64(memberID)),
				zap.Error(err))

			continue
		}

		kicked++
	}

	if kicked > 0 {
		c.recorder.MembersKicked(ctx, communityID, kicked)
	}

	return kicked
}

// banAll bans each member independently, tolerating partial failure.
// Returns the number of members actually banned.
func (c *Controller) banAll(ctx context.Context, communityID snowflake.ID, memberIDs []snowflake.ID) int {
	banned := 0

	for _, memberID := range memberIDs {
		if err := c.moderator.Ban(ctx, communityID, memberID, "Raid mitigation"); err != nil {
			c.logger.Warn("Failed to ban member during mitigation",
				zap.Uint64("community_id", uint64(communityID)),
				zap.Uint64("member_id", uint64(memberID)),
				zap.Error(err))

			continue
		}

		banned++
	}

	if banned > 0 {
		c.recorder.MembersBanned(ctx, communityID, banned)
	}

	return banned
}

// quarantineAll applies the restricted role to each member, tolerating
// partial failure. Returns the number of members actually quarantined.
func (c *Controller) quarantineAll(ctx context.Context, communityID snowflake.ID, memberIDs []snowflake.ID) int {
	quarantined := 0

	for _, memberID := range memberIDs {
		if err := c.moderator.Quarantine(ctx, communityID, memberID); err != nil {
			c.logger.Warn("Failed to quarantine member during mitigation",
				zap.Uint64("community_id", uint64(communityID)),
				zap.Uint64("member_id", uint64(memberID)),
				zap.Error(err))

			continue
		}

		quarantined++
	}

	return quarantined
}

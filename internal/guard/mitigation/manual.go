package mitigation

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// ManualLockdown engages lockdown on a moderator's request. Idempotent:
// repeating the request on a locked community is a no-op.
func (c *Controller) ManualLockdown(ctx context.Context, communityID snowflake.ID) bool {
	return c.engageLockdown(ctx, communityID)
}

// LiftLockdown ends an active lockdown. Idempotent: lifting a community
// that is not locked down does nothing.
func (c *Controller) LiftLockdown(ctx context.Context, communityID snowflake.ID) bool {
	if !c.store.Lockdown(communityID) {
		return false
	}

	if err := c.moderator.LiftLockdown(ctx, communityID); err != nil {
		c.logger.Warn("Failed to lift lockdown",
			zap.Uint64("community_id", uint64(communityID)),
			zap.Error(err))

		return false
	}

	c.store.SetLockdown(communityID, false)

	return true
}

// KickRecent kicks up to n of the most recent joiners still in the
// retention window. Returns the number actually kicked.
func (c *Controller) KickRecent(ctx context.Context, communityID snowflake.ID, n int) int {
	return c.kickAll(ctx, communityID, c.store.RecentJoiners(communityID, n))
}

// BanRecent bans up to n of the most recent joiners still in the retention
// window. Returns the number actually banned.
func (c *Controller) BanRecent(ctx context.Context, communityID snowflake.ID, n int) int {
	return c.banAll(ctx, communityID, c.store.RecentJoiners(communityID, n))
}

// Dismiss marks the most recent detection as a false positive: flags are
// cleared and any lockdown lifted. Idempotent: dismissing a community with
// nothing to dismiss returns false and records nothing.
func (c *Controller) Dismiss(ctx context.Context, communityID snowflake.ID) bool {
	flagged := c.store.Flagged(communityID)
	locked := c.store.Lockdown(communityID)

	if len(flagged) == 0 && !locked {
		return false
	}

	c.store.ClearFlags(communityID)

	if locked {
		c.LiftLockdown(ctx, communityID)
	}

	c.recorder.FalsePositiveDismissed(ctx, communityID)
	c.logger.Info("Detection dismissed as false positive",
		zap.Uint64("community_id", uint64(communityID)),
		zap.Int("flagged", len(flagged)))

	return true
}

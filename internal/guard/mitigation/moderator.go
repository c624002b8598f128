package mitigation

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// Moderator abstracts the moderation surface of the chat platform. The
// production implementation drives the Discord REST API; tests substitute a
// fake. Every call must be context-bounded; failures are reported through
// the error return and never panic.
type Moderator interface {
	// Lockdown denies send/react/thread-create on all text surfaces.
	Lockdown(ctx context.Context, communityID snowflake.ID) error
	// LiftLockdown restores the permissions removed by Lockdown.
	LiftLockdown(ctx context.Context, communityID snowflake.ID) error
	// Kick removes a member from the community.
	Kick(ctx context.Context, communityID, memberID snowflake.ID, reason string) error
	// Ban permanently removes a member from the community.
	Ban(ctx context.Context, communityID, memberID snowflake.ID, reason string) error
	// Quarantine applies the restricted role to a member, creating the
	// role first when the community does not have it yet.
	Quarantine(ctx context.Context, communityID, memberID snowflake.ID) error
	// Slowmode applies a per-user message rate limit to all text channels.
	Slowmode(ctx context.Context, communityID snowflake.ID, seconds int) error
}

// Recorder receives mitigation outcomes for statistics and audit logging.
type Recorder interface {
	RaidDetected(ctx context.Context, communityID snowflake.ID, category string, level string, score int, indicators []string, affected int)
	MembersKicked(ctx context.Context, communityID snowflake.ID, count int)
	MembersBanned(ctx context.Context, communityID snowflake.ID, count int)
	LockdownStarted(ctx context.Context, communityID snowflake.ID)
	FalsePositiveDismissed(ctx context.Context, communityID snowflake.ID)
}

package bot

import (
	"context"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/setup/config"
	"go.uber.org/zap"
)

// Granter applies verification outcomes through Discord roles: success
// grants the verified role and lifts the quarantine role, exhaustion
// removes the member.
type Granter struct {
	client bot.Client
	cfg    *config.Verification
	logger *zap.Logger
}

// NewGranter creates a role-based verification granter.
func NewGranter(client bot.Client, cfg *config.Verification, logger *zap.Logger) *Granter {
	return &Granter{
		client: client,
		cfg:    cfg,
		logger: logger.Named("granter"),
	}
}

// Grant marks a member as verified.
func (g *Granter) Grant(ctx context.Context, communityID, memberID snowflake.ID) error {
	roleID, err := ensureRole(ctx, g.client, communityID, g.cfg.VerifiedRoleName)
	if err != nil {
		return err
	}

	err = g.client.Rest().AddMemberRole(communityID, memberID, roleID,
		rest.WithCtx(ctx), rest.WithReason("Verification passed"))
	if err != nil {
		return err
	}

	g.clearQuarantine(ctx, communityID, memberID)

	return nil
}

// Deny removes a member who exhausted their verification attempts.
func (g *Granter) Deny(ctx context.Context, communityID, memberID snowflake.ID) error {
	return g.client.Rest().RemoveMember(communityID, memberID,
		rest.WithCtx(ctx), rest.WithReason("Verification attempts exhausted"))
}

// clearQuarantine lifts the restricted role if the member carries it.
// The role may not exist yet, which is fine.
func (g *Granter) clearQuarantine(ctx context.Context, communityID, memberID snowflake.ID) {
	roles, err := g.client.Rest().GetRoles(communityID, rest.WithCtx(ctx))
	if err != nil {
		g.logger.Warn("Failed to list roles for quarantine cleanup", zap.Error(err))
		return
	}

	for _, role := range roles {
		if role.Name != g.cfg.QuarantineRoleName {
			continue
		}

		err := g.client.Rest().RemoveMemberRole(communityID, memberID, role.ID,
			rest.WithCtx(ctx), rest.WithReason("Verification passed"))
		if err != nil {
			g.logger.Warn("Failed to remove quarantine role",
				zap.Uint64("memberID", uint64(memberID)),
				zap.Error(err))
		}

		return
	}
}

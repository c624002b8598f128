package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// lockdownDenied are the permissions stripped from @everyone while a
// community is locked down.
const lockdownDenied = discord.PermissionSendMessages |
	discord.PermissionAddReactions |
	discord.PermissionCreatePublicThreads |
	discord.PermissionCreatePrivateThreads |
	discord.PermissionSendMessagesInThreads

// Moderator executes mitigation actions through the Discord REST API.
// It remembers the permission overwrites it changed so a lifted lockdown
// restores channels instead of clobbering their configuration.
type Moderator struct {
	client         bot.Client
	quarantineRole string
	logger         *zap.Logger

	mu sync.Mutex
	// previous deny bits per guild and channel, captured at lockdown
	saved map[snowflake.ID]map[snowflake.ID]discord.Permissions
}

// NewModerator creates a REST-backed moderator.
func NewModerator(client bot.Client, quarantineRole string, logger *zap.Logger) *Moderator {
	return &Moderator{
		client:         client,
		quarantineRole: quarantineRole,
		logger:         logger.Named("moderator"),
		saved:          make(map[snowflake.ID]map[snowflake.ID]discord.Permissions),
	}
}

// Lockdown denies posting permissions for @everyone on every text
// channel in the guild.
func (m *Moderator) Lockdown(ctx context.Context, communityID snowflake.ID) error {
	channels, err := m.client.Rest().GetGuildChannels(communityID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	saved := make(map[snowflake.ID]discord.Permissions)

	for _, channel := range channels {
		textChannel, ok := channel.(discord.GuildTextChannel)
		if !ok {
			continue
		}

		previous := everyoneDeny(textChannel.PermissionOverwrites(), communityID)
		overwrites := withEveryoneDeny(textChannel.PermissionOverwrites(), communityID, previous|lockdownDenied)

		_, err := m.client.Rest().UpdateChannel(textChannel.ID(), discord.GuildTextChannelUpdate{
			PermissionOverwrites: &overwrites,
		}, rest.WithCtx(ctx), rest.WithReason("Raid protection lockdown"))
		if err != nil {
			m.logger.Warn("Failed to lock channel",
				zap.Uint64("channelID", uint64(textChannel.ID())),
				zap.Error(err))

			continue
		}

		saved[textChannel.ID()] = previous
	}

	m.mu.Lock()
	m.saved[communityID] = saved
	m.mu.Unlock()

	return nil
}

// LiftLockdown restores the permission overwrites captured when the
// lockdown was engaged.
func (m *Moderator) LiftLockdown(ctx context.Context, communityID snowflake.ID) error {
	m.mu.Lock()
	saved := m.saved[communityID]
	delete(m.saved, communityID)
	m.mu.Unlock()

	channels, err := m.client.Rest().GetGuildChannels(communityID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	for _, channel := range channels {
		textChannel, ok := channel.(discord.GuildTextChannel)
		if !ok {
			continue
		}

		previous, ok := saved[textChannel.ID()]
		if !ok {
			// Channel was created during the lockdown or failed to lock
			previous = everyoneDeny(textChannel.PermissionOverwrites(), communityID) &^ lockdownDenied
		}

		overwrites := withEveryoneDeny(textChannel.PermissionOverwrites(), communityID, previous)

		_, err := m.client.Rest().UpdateChannel(textChannel.ID(), discord.GuildTextChannelUpdate{
			PermissionOverwrites: &overwrites,
		}, rest.WithCtx(ctx), rest.WithReason("Raid protection lockdown lifted"))
		if err != nil {
			m.logger.Warn("Failed to unlock channel",
				zap.Uint64("channelID", uint64(textChannel.ID())),
				zap.Error(err))
		}
	}

	return nil
}

// Kick removes a member from the guild.
func (m *Moderator) Kick(ctx context.Context, communityID, memberID snowflake.ID, reason string) error {
	return m.client.Rest().RemoveMember(communityID, memberID, rest.WithCtx(ctx), rest.WithReason(reason))
}

// Ban bans a member from the guild without deleting message history.
func (m *Moderator) Ban(ctx context.Context, communityID, memberID snowflake.ID, reason string) error {
	return m.client.Rest().AddBan(communityID, memberID, 0, rest.WithCtx(ctx), rest.WithReason(reason))
}

// Quarantine assigns the restricted role to a member, creating the role
// on first use.
func (m *Moderator) Quarantine(ctx context.Context, communityID, memberID snowflake.ID) error {
	roleID, err := ensureRole(ctx, m.client, communityID, m.quarantineRole)
	if err != nil {
		return err
	}

	return m.client.Rest().AddMemberRole(communityID, memberID, roleID,
		rest.WithCtx(ctx), rest.WithReason("Raid protection quarantine"))
}

// Slowmode applies a per-user message rate limit to every text channel.
func (m *Moderator) Slowmode(ctx context.Context, communityID snowflake.ID, seconds int) error {
	channels, err := m.client.Rest().GetGuildChannels(communityID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	for _, channel := range channels {
		if channel.Type() != discord.ChannelTypeGuildText {
			continue
		}

		_, err := m.client.Rest().UpdateChannel(channel.ID(), discord.GuildTextChannelUpdate{
			RateLimitPerUser: &seconds,
		}, rest.WithCtx(ctx), rest.WithReason("Raid protection slowmode"))
		if err != nil {
			m.logger.Warn("Failed to set slowmode",
				zap.Uint64("channelID", uint64(channel.ID())),
				zap.Error(err))
		}
	}

	return nil
}

// everyoneDeny returns the deny bits of the @everyone overwrite, if any.
func everyoneDeny(overwrites []discord.PermissionOverwrite, communityID snowflake.ID) discord.Permissions {
	for _, overwrite := range overwrites {
		if role, ok := overwrite.(discord.RolePermissionOverwrite); ok && role.RoleID == communityID {
			return role.Deny
		}
	}

	return discord.PermissionsNone
}

// withEveryoneDeny returns a copy of the overwrites with the @everyone
// deny bits replaced.
func withEveryoneDeny(
	overwrites []discord.PermissionOverwrite, communityID snowflake.ID, deny discord.Permissions,
) []discord.PermissionOverwrite {
	updated := make([]discord.PermissionOverwrite, 0, len(overwrites)+1)
	replaced := false

	for _, overwrite := range overwrites {
		if role, ok := overwrite.(discord.RolePermissionOverwrite); ok && role.RoleID == communityID {
			role.Deny = deny
			updated = append(updated, role)
			replaced = true

			continue
		}

		updated = append(updated, overwrite)
	}

	if !replaced {
		updated = append(updated, discord.RolePermissionOverwrite{
			RoleID: communityID,
			Deny:   deny,
		})
	}

	return updated
}

// ensureRole finds a role by name, creating it when missing.
func ensureRole(ctx context.Context, client bot.Client, communityID snowflake.ID, name string) (snowflake.ID, error) {
	roles, err := client.Rest().GetRoles(communityID, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to list roles: %w", err)
	}

	for _, role := range roles {
		if role.Name == name {
			return role.ID, nil
		}
	}

	role, err := client.Rest().CreateRole(communityID, discord.RoleCreate{
		Name: name,
	}, rest.WithCtx(ctx), rest.WithReason("Created by raid protection"))
	if err != nil {
		return 0, fmt.Errorf("failed to create role %q: %w", name, err)
	}

	return role.ID, nil
}

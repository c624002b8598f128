package bot

import (
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guildID = snowflake.ID(42)

func TestWithEveryoneDenyAddsOverwrite(t *testing.T) {
	t.Parallel()

	updated := withEveryoneDeny(nil, guildID, lockdownDenied)

	require.Len(t, updated, 1)
	role, ok := updated[0].(discord.RolePermissionOverwrite)
	require.True(t, ok)
	assert.Equal(t, guildID, role.RoleID)
	assert.Equal(t, lockdownDenied, role.Deny)
}

func TestWithEveryoneDenyPreservesOtherOverwrites(t *testing.T) {
	t.Parallel()

	moderatorRole := snowflake.ID(7)
	existing := []discord.PermissionOverwrite{
		discord.RolePermissionOverwrite{RoleID: moderatorRole, Allow: discord.PermissionSendMessages},
		discord.RolePermissionOverwrite{RoleID: guildID, Deny: discord.PermissionMentionEveryone},
	}

	updated := withEveryoneDeny(existing, guildID, discord.PermissionMentionEveryone|lockdownDenied)

	require.Len(t, updated, 2)
	assert.Equal(t, existing[0], updated[0])

	everyone, ok := updated[1].(discord.RolePermissionOverwrite)
	require.True(t, ok)
	assert.Equal(t, discord.PermissionMentionEveryone|lockdownDenied, everyone.Deny)
}

func TestEveryoneDeny(t *testing.T) {
	t.Parallel()

	overwrites := []discord.PermissionOverwrite{
		discord.MemberPermissionOverwrite{UserID: 9, Deny: discord.PermissionSendMessages},
		discord.RolePermissionOverwrite{RoleID: guildID, Deny: discord.PermissionMentionEveryone},
	}

	assert.Equal(t, discord.PermissionMentionEveryone, everyoneDeny(overwrites, guildID))
	assert.Equal(t, discord.PermissionsNone, everyoneDeny(nil, guildID))
}

func TestLockdownRoundTripRestoresDeny(t *testing.T) {
	t.Parallel()

	original := discord.PermissionMentionEveryone

	locked := original | lockdownDenied
	restored := locked &^ lockdownDenied

	assert.Equal(t, original, restored)
}

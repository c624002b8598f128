package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/verify"
	"go.uber.org/zap"
)

// handleComponentInteraction opens the answer modal when a member presses
// the verification button.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	customID := event.Data.CustomID()
	if !strings.HasPrefix(customID, VerifyButtonCustomID+":") {
		return
	}

	sessionID := strings.TrimPrefix(customID, VerifyButtonCustomID+":")

	modal := discord.NewModalCreateBuilder().
		SetCustomID(VerifyModalCustomID + ":" + sessionID).
		SetTitle("Verification").
		AddActionRow(
			discord.NewTextInput(VerifyInputCustomID, discord.TextInputStyleShort, "Answer").
				WithPlaceholder("Type your answer...").
				WithRequired(true),
		).
		Build()

	if err := event.Modal(modal); err != nil {
		b.logger.Error("Failed to show verification modal", zap.Error(err))
	}
}

// handleModalSubmit routes a challenge answer to the verification
// manager and reports the outcome back to the member.
func (b *Bot) handleModalSubmit(event *events.ModalSubmitInteractionCreate) {
	customID := event.Data.CustomID
	if !strings.HasPrefix(customID, VerifyModalCustomID+":") {
		return
	}

	sessionID := strings.TrimPrefix(customID, VerifyModalCustomID+":")
	answer := event.Data.Text(VerifyInputCustomID)

	result := b.verifier.Submit(context.Background(), sessionID, answer, event.User().ID)

	var content string

	switch result.Outcome {
	case verify.OutcomeSuccess:
		content = "✅ You are verified. Welcome!"
	case verify.OutcomeRetry:
		content = fmt.Sprintf("❌ That is not correct. You have %d attempts left.", result.AttemptsLeft)
	case verify.OutcomeExhausted:
		content = "❌ You are out of attempts. Contact a moderator if you believe this is a mistake."
	case verify.OutcomeExpired:
		content = "⏳ This challenge has expired."
	case verify.OutcomeNotFound:
		content = "This challenge is no longer active."
	case verify.OutcomeRejected:
		content = "This challenge belongs to another member."
	}

	if err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build(),
	); err != nil {
		b.logger.Error("Failed to respond to challenge answer", zap.Error(err))
	}
}

// handleApplicationCommandInteraction processes the moderator protection
// subcommands.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.CommandName() != ProtectionCommandName || event.GuildID() == nil {
		return
	}

	go func() {
		defer b.recoverHandler("protection command")

		ctx := context.Background()
		communityID := *event.GuildID()

		var content string

		switch subcommand(data.SubCommandName) {
		case SubcommandLockdown:
			if b.controller.ManualLockdown(ctx, communityID) {
				content = "🔒 Community locked down."
			} else {
				content = "Failed to engage lockdown. Check my permissions."
			}
		case SubcommandLift:
			if b.controller.LiftLockdown(ctx, communityID) {
				content = "🔓 Lockdown lifted."
			} else {
				content = "No active lockdown to lift."
			}
		case SubcommandKickRecent:
			count := b.controller.KickRecent(ctx, communityID, data.Int(OptionCount))
			content = fmt.Sprintf("Kicked %d recent joiners.", count)
		case SubcommandBanRecent:
			count := b.controller.BanRecent(ctx, communityID, data.Int(OptionCount))
			content = fmt.Sprintf("Banned %d recent joiners.", count)
		case SubcommandDismiss:
			if b.controller.Dismiss(ctx, communityID) {
				content = "Detection dismissed as a false positive."
			} else {
				content = "Nothing to dismiss."
			}
		case SubcommandVerify:
			if b.issueChallenge(ctx, communityID, data.Snowflake(OptionMember)) {
				content = "Verification challenge sent."
			} else {
				content = "Could not issue a challenge. The member may be rate limited or temporarily banned."
			}
		case SubcommandStats:
			content = b.statsMessage(ctx, communityID)
		default:
			content = "Unknown subcommand."
		}

		if err := event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent(content).
			SetEphemeral(true).
			Build(),
		); err != nil {
			b.logger.Error("Failed to respond to protection command", zap.Error(err))
		}
	}()
}

// statsMessage formats the aggregate statistics for the stats subcommand,
// including the community's recent raid history when a database is wired.
func (b *Bot) statsMessage(ctx context.Context, communityID snowflake.ID) string {
	snapshot := b.stats.Snapshot()

	var sb strings.Builder

	fmt.Fprintf(&sb,
		"**Verification**\nPending: %d | Succeeded: %d | Failed: %d | Expired: %d\n"+
			"Suspicious attempts: %d | Avg completion: %s\n\n"+
			"**Raid protection**\nRaids detected: %d | Kicked: %d | Banned: %d\n"+
			"Lockdowns: %d | Dismissed as false positives: %d",
		b.verifier.PendingCount(),
		snapshot.VerificationsSucceeded,
		snapshot.VerificationsExhausted,
		snapshot.VerificationsExpired,
		snapshot.SuspiciousAttempts,
		snapshot.AvgCompletionTime.Round(time.Second),
		snapshot.RaidsDetected,
		snapshot.MembersKicked,
		snapshot.MembersBanned,
		snapshot.Lockdowns,
		snapshot.Dismissals,
	)

	raids, err := b.stats.RecentRaids(ctx, communityID, 3)
	if err != nil {
		b.logger.Warn("Failed to load raid history for stats", zap.Error(err))
		return sb.String()
	}

	if len(raids) > 0 {
		sb.WriteString("\n\n**Recent raids**")

		for _, raid := range raids {
			fmt.Fprintf(&sb, "\n<t:%d:R> %s (%s, score %d, %d affected)",
				raid.Timestamp.Unix(), raid.Category, raid.Level, raid.Score, raid.AffectedCount)
		}
	}

	count, err := b.stats.RaidCountSince(ctx, communityID, time.Now().Add(-24*time.Hour))
	if err != nil {
		b.logger.Warn("Failed to count recent raids for stats", zap.Error(err))
		return sb.String()
	}

	if count > 0 {
		fmt.Fprintf(&sb, "\n\nRaids in this community over the last 24h: %d", count)
	}

	breakdown, err := b.stats.DailyBreakdown(ctx, 7)
	if err != nil {
		b.logger.Warn("Failed to load verification breakdown for stats", zap.Error(err))
		return sb.String()
	}

	if len(breakdown) > 0 {
		sb.WriteString("\n\n**Verification, last 7 days**")

		for _, day := range breakdown {
			fmt.Fprintf(&sb, "\n%s: %d passed, %d failed, %d expired",
				day.Date.Format("Jan 2"), day.Succeeded, day.Exhausted, day.Expired)
		}
	}

	return sb.String()
}

// subcommand unwraps the optional subcommand name.
func subcommand(name *string) string {
	if name == nil {
		return ""
	}

	return *name
}

package bot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/guard/scoring"
	"github.com/wardenhq/warden/internal/guard/window"
	"go.uber.org/zap"
)

// handleMemberJoin records the join, issues a verification challenge, and
// evaluates the join window for raid activity.
func (b *Bot) handleMemberJoin(event *events.GuildMemberJoin) {
	go func() {
		defer b.recoverHandler("member join")

		ctx := context.Background()
		user := event.Member.User
		now := time.Now()

		b.store.RecordJoin(event.GuildID, window.JoinEvent{
			MemberID:   user.ID,
			Timestamp:  now,
			AccountAge: now.Sub(user.CreatedAt()),
			Username:   user.Username,
			IsBot:      user.Bot,
			HasAvatar:  user.Avatar != nil,
		})

		if b.cfg.Verification.Enabled && !user.Bot {
			b.issueChallenge(ctx, event.GuildID, user.ID)
		}

		if !b.cfg.Protection.Enabled {
			return
		}

		snapshot := b.store.Snapshot(event.GuildID,
			b.cfg.Protection.JoinWindow(), b.cfg.Protection.MessageWindow(), now)

		result := scoring.EvaluateJoins(snapshot, &b.cfg.Protection)
		if result.IsRaid {
			b.controller.HandleDetection(ctx, event.GuildID, result)
		}
	}()
}

// handleMessageCreate records the message and evaluates the message
// window for coordinated spam.
func (b *Bot) handleMessageCreate(event *events.GuildMessageCreate) {
	// Automated accounts are scored through the join pipeline instead
	if event.Message.Author.Bot || event.Message.Author.System {
		return
	}

	go func() {
		defer b.recoverHandler("message create")

		now := time.Now()

		b.store.RecordMessage(event.GuildID, window.MessageEvent{
			AuthorID:  event.Message.Author.ID,
			ChannelID: event.ChannelID,
			Content:   window.NormalizeContent(event.Message.Content),
			Timestamp: now,
		})

		if !b.cfg.Protection.Enabled {
			return
		}

		snapshot := b.store.Snapshot(event.GuildID,
			b.cfg.Protection.JoinWindow(), b.cfg.Protection.MessageWindow(), now)

		result := scoring.EvaluateMessages(snapshot, &b.cfg.Protection)
		if result.IsRaid {
			b.controller.HandleDetection(context.Background(), event.GuildID, result)
		}
	}()
}

// issueChallenge issues a challenge session and sends the member the
// verification prompt over DM. Reports whether a session is pending for
// the member afterwards. Also serves moderator-triggered re-issuance.
func (b *Bot) issueChallenge(ctx context.Context, communityID, memberID snowflake.ID) bool {
	session := b.verifier.Begin(ctx, communityID, memberID)
	if session == nil {
		return false
	}

	channel, err := b.client.Rest().CreateDMChannel(memberID)
	if err != nil {
		b.logger.Warn("Failed to open verification DM",
			zap.Uint64("memberID", uint64(memberID)),
			zap.Error(err))

		return true
	}

	builder := discord.NewMessageCreateBuilder().
		SetContentf("Welcome! Please verify you are human.\n\n%s", session.Challenge.Prompt).
		AddActionRow(discord.NewPrimaryButton("Answer", VerifyButtonCustomID+":"+session.ID))

	if session.Challenge.Image != nil {
		builder.AddFiles(discord.NewFile("challenge.png", "", session.Challenge.Image))
	}

	if _, err := b.client.Rest().CreateMessage(channel.ID(), builder.Build()); err != nil {
		b.logger.Warn("Failed to send verification challenge",
			zap.Uint64("memberID", uint64(memberID)),
			zap.Error(err))
	}

	return true
}

// recoverHandler keeps a panicking event handler from crashing the
// gateway event loop.
func (b *Bot) recoverHandler(name string) {
	if r := recover(); r != nil {
		b.logger.Error("Panic in event handler",
			zap.String("handler", name),
			zap.Any("panic", r))
	}
}

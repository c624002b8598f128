package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/json"
	"github.com/wardenhq/warden/internal/guard/mitigation"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
	"github.com/wardenhq/warden/internal/stats"
	"github.com/wardenhq/warden/internal/verify"
	"github.com/wardenhq/warden/internal/verify/challenge"
	"go.uber.org/zap"
)

// Bot wires the Discord gateway to the protection and verification
// pipelines. Join and message events feed the window store and scoring
// engine; interactions feed the verification manager and the manual
// mitigation overrides.
type Bot struct {
	client     bot.Client
	store      *window.Store
	controller *mitigation.Controller
	verifier   *verify.Manager
	stats      *stats.Client
	cfg        *config.Config
	logger     *zap.Logger
}

// New creates the Discord client with the gateway intents and event
// listeners the pipeline needs, and wires the mitigation controller and
// verification manager to it.
func New(
	store *window.Store,
	gate verify.Gate,
	generator *challenge.Generator,
	statsClient *stats.Client,
	cfg *config.Config,
	logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		store:  store,
		stats:  statsClient,
		cfg:    cfg,
		logger: logger.Named("bot"),
	}

	client, err := disgo.New(cfg.Bot.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMemberJoin:               b.handleMemberJoin,
			OnGuildMessageCreate:            b.handleMessageCreate,
			OnComponentInteraction:          b.handleComponentInteraction,
			OnModalSubmit:                   b.handleModalSubmit,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}

	b.client = client

	moderator := NewModerator(client, cfg.Verification.QuarantineRoleName, logger)
	b.controller = mitigation.NewController(store, moderator, statsClient, &cfg.Protection, logger)

	granter := NewGranter(client, &cfg.Verification, logger)
	b.verifier = verify.NewManager(generator, gate, granter, statsClient, &cfg.Verification, logger)

	return b, nil
}

// Client returns the underlying disgo client.
func (b *Bot) Client() bot.Client {
	return b.client
}

// Verifier returns the verification session manager, for sweep
// registration.
func (b *Bot) Verifier() *verify.Manager {
	return b.verifier
}

// Start registers the moderation commands and opens the gateway
// connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), commands())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}

// commands returns the slash command definitions for moderator control.
func commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:                     ProtectionCommandName,
			Description:              "Raid protection controls",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionManageGuild),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubcommandLockdown,
					Description: "Lock the community down",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubcommandLift,
					Description: "Lift an active lockdown",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubcommandKickRecent,
					Description: "Kick the most recent joiners",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionInt{
							Name:        OptionCount,
							Description: "How many recent joiners to kick",
							Required:    true,
							MinValue:    intPtr(1),
							MaxValue:    intPtr(100),
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubcommandBanRecent,
					Description: "Ban the most recent joiners",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionInt{
							Name:        OptionCount,
							Description: "How many recent joiners to ban",
							Required:    true,
							MinValue:    intPtr(1),
							MaxValue:    intPtr(100),
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubcommandDismiss,
					Description: "Dismiss the last detection as a false positive",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubcommandVerify,
					Description: "Send a member a fresh verification challenge",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        OptionMember,
							Description: "Member to challenge",
							Required:    true,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubcommandStats,
					Description: "Show protection statistics",
				},
			},
		},
	}
}

func intPtr(v int) *int {
	return &v
}

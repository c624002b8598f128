package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardenhq/warden/internal/bot"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup"
	"github.com/wardenhq/warden/internal/verify"
	"github.com/wardenhq/warden/internal/verify/challenge"
	"github.com/wardenhq/warden/internal/worker/sweep"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// PruneInterval controls how often stale join and message events are
	// dropped from the in-memory event windows.
	PruneInterval = 30 * time.Second

	// SweepInterval controls how often expired verification sessions are
	// collected and recorded.
	SweepInterval = 5 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	// In-memory event windows back the raid scoring engine
	store := window.NewStore(app.Config.Protection.Retention(), app.Logger)

	// Redis-backed ledger throttles challenge requests per member
	ledger := verify.NewLedger(app.LedgerClient, &app.Config.Verification, app.Logger)

	// Image challenges need a captcha renderer; math challenges do not
	var renderer challenge.Renderer
	if app.Config.Verification.Kind == string(challenge.KindImage) {
		renderer = challenge.NewCaptchaRenderer()
	}

	generator := challenge.NewGenerator(renderer, app.Logger)

	// Create bot instance
	discordBot, err := bot.New(store, ledger, generator, app.Stats, app.Config, app.Logger)
	if err != nil {
		app.Logger.Error("Failed to create bot", zap.Error(err))
		return
	}

	// Background sweeps keep the event windows and session table bounded
	scheduler := sweep.NewScheduler(app.Logger)
	scheduler.Register("window_prune", PruneInterval, func(_ context.Context, now time.Time) {
		store.Prune(now)
	})
	scheduler.Register("session_sweep", SweepInterval, func(ctx context.Context, now time.Time) {
		discordBot.Verifier().Sweep(ctx, now)
	})

	go scheduler.Start(ctx)

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		app.Logger.Error("Failed to start bot", zap.Error(err))
		return
	}

	app.Logger.Info("Bot has been started, waiting for interrupt signal")

	// Wait for interrupt signal to gracefully shutdown the bot
	// This ensures all pending events are processed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Stop background sweeps before closing the gateway
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()

	discordBot.Close(closeCtx)
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"engagement-bot/internal/config"
	"engagement-bot/internal/ledger"
	"engagement-bot/internal/scheduler"
	"engagement-bot/internal/storage"
	"engagement-bot/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	ledgers, err := storage.NewLedgerFile(cfg.DataFilePath)
	if err != nil {
		log.Fatalf("failed to init ledger file: %v", err)
	}
	archive, err := storage.NewArchiveFile(cfg.HistoryFilePath)
	if err != nil {
		log.Fatalf("failed to init archive file: %v", err)
	}

	removal := ledger.IgnoreRemovals
	if cfg.CountReactionRemovals {
		removal = ledger.DecrementOnRemoval
	}
	store := ledger.NewStore(ledgers.Load(), cfg.AttributionCacheSize, removal)
	manager := storage.NewManager(store, ledgers, archive)

	// Catch a month boundary crossed while the bot was down.
	if out, err := manager.CheckAndRollover(storage.CurrentPeriod(time.Now())); err != nil {
		log.Fatalf("startup rollover check failed: %v", err)
	} else if out.Archived {
		log.Printf("archived period %s", out.Period)
	}

	sched := scheduler.New()
	sched.SetRolloverFunc(func(currentPeriod string) error {
		out, err := manager.CheckAndRollover(currentPeriod)
		if err == nil && out.Archived {
			log.Printf("archived period %s", out.Period)
		}
		return err
	})
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	bot, err := telegram.New(cfg.TelegramBotToken, store, ledgers, manager, cfg.AllowedChatIDs)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	bot.Start(ctx)
}

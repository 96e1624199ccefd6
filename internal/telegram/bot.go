package telegram

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"engagement-bot/internal/ledger"
	"engagement-bot/internal/storage"
)

const pollTimeout = 60 // seconds, long-poll

type Bot struct {
	s       sender
	updates updateSource
	store   *ledger.Store
	ledgers storage.LedgerRepo
	manager *storage.Manager
	isAdmin func(chatID, userID int64) (bool, error)
	allowed map[int64]bool // nil tracks every chat
}

func New(botToken string, store *ledger.Store, ledgers storage.LedgerRepo, manager *storage.Manager, allowedChatIDs []int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	client := botAPIClient{api: api}
	var allowed map[int64]bool
	if len(allowedChatIDs) > 0 {
		allowed = make(map[int64]bool, len(allowedChatIDs))
		for _, id := range allowedChatIDs {
			allowed[id] = true
		}
	}
	return &Bot{
		s:       client,
		updates: client,
		store:   store,
		ledgers: ledgers,
		manager: manager,
		isAdmin: client.isChatAdmin,
		allowed: allowed,
	}, nil
}

// Start consumes updates until the context is cancelled, then performs a
// final save so an orderly shutdown loses nothing.
func (b *Bot) Start(ctx context.Context) {
	log.Println("bot started")
	updates := b.poll(ctx)
	for u := range updates {
		b.dispatch(u)
	}
	log.Println("bot stopping, saving ledger")
	b.persist()
}

func (b *Bot) poll(ctx context.Context) <-chan rawUpdate {
	ch := make(chan rawUpdate, 64)
	go func() {
		defer close(ch)
		offset := 0
		for {
			if ctx.Err() != nil {
				return
			}
			batch, err := b.updates.getUpdates(offset, pollTimeout)
			if err != nil {
				log.Printf("poll updates: %v", err)
				select {
				case <-time.After(3 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, u := range batch {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				select {
				case ch <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

func (b *Bot) dispatch(u rawUpdate) {
	ev, ok := normalize(u)
	if !ok {
		return
	}
	switch e := ev.(type) {
	case messageEvent:
		if !b.chatAllowed(e.chatID) {
			return
		}
		if e.command != "" {
			b.handleCommand(e)
			return
		}
		if e.text == "" {
			return
		}
		b.store.RecordMessage(e.chat, e.user, e.username, e.messageID)
		b.persist()
	case reactionEvent:
		if !b.chatAllowed(e.chatID) {
			return
		}
		b.store.RecordReaction(e.chat, e.user, e.username, e.messageID, e.added)
		b.persist()
	}
}

func (b *Bot) chatAllowed(chatID int64) bool {
	return b.allowed == nil || b.allowed[chatID]
}

// persist saves the ledger after a mutating event. A failed save keeps the
// loop running on correct in-memory state; the next save retries durably.
func (b *Bot) persist() {
	if err := b.ledgers.Save(b.store.Snapshot()); err != nil {
		log.Printf("save ledger: %v", err)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

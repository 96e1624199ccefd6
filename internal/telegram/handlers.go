package telegram

import (
	"fmt"
	"log"
	"strings"

	"engagement-bot/internal/ledger"
)

const welcomeText = "👋 Welcome to the Engagement Bot!\n" +
	"I track user engagement through messages and reactions.\n" +
	"Use /stats to see the top users."

func (b *Bot) handleCommand(e messageEvent) {
	switch e.command {
	case "start":
		b.sendMessage(e.chatID, welcomeText)
	case "stats":
		entries := b.store.Leaderboard(e.chat, ledger.StatsLimit)
		b.sendMessage(e.chatID, renderLeaderboard("🏆 Engagement Leaderboard 🏆", entries))
	case "statsadmin":
		if !b.adminOnly(e) {
			return
		}
		entries := b.store.Leaderboard(e.chat, ledger.AdminStatsLimit)
		b.sendMessage(e.chatID, renderLeaderboard("🏆 Engagement Leaderboard (full) 🏆", entries))
	case "history":
		period, users, ok := b.manager.History(e.chat)
		if !ok {
			b.sendMessage(e.chatID, "No archived leaderboard yet — history appears after the first monthly rollover.")
			return
		}
		entries := ledger.Top(users, ledger.HistoryLimit)
		b.sendMessage(e.chatID, renderLeaderboard(fmt.Sprintf("📜 Leaderboard for %s 📜", period), entries))
	case "debug":
		b.sendMessage(e.chatID, fmt.Sprintf("Chat ID: %d", e.chatID))
	}
}

func (b *Bot) adminOnly(e messageEvent) bool {
	ok, err := b.isAdmin(e.chatID, e.userID)
	if err != nil {
		log.Printf("admin check for user %d in chat %d: %v", e.userID, e.chatID, err)
		b.sendMessage(e.chatID, "Could not verify admin rights, try again later.")
		return false
	}
	if !ok {
		b.sendMessage(e.chatID, "This command is for chat admins only.")
	}
	return ok
}

func renderLeaderboard(title string, entries []ledger.Entry) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	if len(entries) == 0 {
		sb.WriteString("No engagement recorded yet!")
		return sb.String()
	}
	for i, e := range entries {
		name := e.Record.Username
		if name == "" {
			name = "user" + e.UserID
		}
		fmt.Fprintf(&sb, "%d. @%s\n   Points: %d (Messages: %d, Reactions Given: %d, Received: %d)\n",
			i+1, name, e.Record.Points, e.Record.Messages, e.Record.ReactionsGiven, e.Record.ReactionsReceived)
	}
	return sb.String()
}

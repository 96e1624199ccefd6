package telegram

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the outbound half of the gateway, narrowed for tests.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// updateSource is the inbound half: one long-poll batch of raw updates.
type updateSource interface {
	getUpdates(offset, timeout int) ([]rawUpdate, error)
}

type botAPIClient struct{ api *tgbotapi.BotAPI }

func (c botAPIClient) Send(m tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(m)
}

// getUpdates bypasses the library's typed Update: the v5 struct predates the
// message_reaction update kind, so the raw result is decoded here instead.
func (c botAPIClient) getUpdates(offset, timeout int) ([]rawUpdate, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", timeout)
	if err := params.AddInterface("allowed_updates", []string{"message", "message_reaction"}); err != nil {
		return nil, fmt.Errorf("allowed_updates: %w", err)
	}
	resp, err := c.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	var updates []rawUpdate
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// isChatAdmin asks Telegram whether the user administers the chat. The bot
// delegates the whole admin decision to the platform.
func (c botAPIClient) isChatAdmin(chatID, userID int64) (bool, error) {
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, fmt.Errorf("getChatMember: %w", err)
	}
	return member.IsCreator() || member.IsAdministrator(), nil
}
